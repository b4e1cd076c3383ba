package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/valeevte/PriceTrackerBot/internal/extract"
	"github.com/valeevte/PriceTrackerBot/internal/fetch"
	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

// Callback data prefixes and keyboard modes.
const (
	callbackAddUser       = "addUser/"
	callbackAddItem       = "addItem/"
	callbackDelete        = "delete/"
	callbackShowHistory   = "showhistory/"
	callbackDeleteMessage = "deleteMessage"

	linkMode        = "link_mode"
	showHistoryMode = "show_history_mode"
	deleteMode      = "delete_mode"
)

const trackedURLPrefix = "https://www.zalando."

const helpText = `Start tracking a new item by sending a message with a nickname that will help you recognize the item.
Then in the second line of the same message paste the url!

Example:
Hilfiger white shoes with stripes
https://www.zalando.it/tommy-hilfiger-essential-cupsole-sneakers-basse-white-to112o0ib-a11.html`

func (b *Bot) handleMessage(msg *tgbotapi.Message) error {
	if msg.IsCommand() {
		switch msg.Command() {
		case "help":
			return b.Send(msg.From.ID, helpText)
		case "myitems":
			return b.myItems(msg.From.ID)
		}
		return nil
	}
	return b.startAddItem(msg)
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) error {
	data := callback.Data
	switch {
	case strings.HasPrefix(data, callbackAddUser):
		return b.approveUser(callback)
	case strings.HasPrefix(data, callbackAddItem):
		return b.finishAddItem(callback)
	case strings.HasPrefix(data, callbackShowHistory):
		return b.showHistory(callback)
	case strings.HasPrefix(data, callbackDelete):
		return b.deleteItem(callback)
	case data == callbackDeleteMessage:
		return b.deleteCallbackMessage(callback)
	case data == linkMode || data == showHistoryMode || data == deleteMode:
		return b.switchItemsMode(callback)
	}
	return nil
}

// myItems shows the tracked-items keyboard in link mode.
func (b *Bot) myItems(userID int64) error {
	items, err := b.store.Items(userID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return b.Send(userID, "You are not tracking any item!")
	}

	msg := tgbotapi.NewMessage(userID, "These are the items you are tracking.\nmode: Link")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = itemsKeyboard(items, linkMode)
	_, err = b.api.Send(msg)
	return err
}

// startAddItem expects an item nickname on the first line and the product
// url on the second, then offers the available sizes as buttons.
func (b *Bot) startAddItem(msg *tgbotapi.Message) error {
	lines := strings.Split(strings.TrimSpace(msg.Text), "\n")
	if len(lines) != 2 {
		return nil
	}
	url := strings.TrimSpace(lines[1])
	if !strings.HasPrefix(url, trackedURLPrefix) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var sizes []string
	if _, body, err := b.fetcher.Get(ctx, url); err == nil {
		sizes = extract.Sizes(body)
	}
	if len(sizes) == 0 {
		return b.Send(msg.From.ID, "Hmm... this url is not valid")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, size := range sizes {
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(size, callbackAddItem+size))
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	reply := tgbotapi.NewMessage(msg.From.ID, "Found it! What size would you like to track?")
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = msg.MessageID
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err := b.api.Send(reply)
	return err
}

// finishAddItem runs when a size button is pressed: the replied-to message
// still carries the nickname and url.
func (b *Bot) finishAddItem(callback *tgbotapi.CallbackQuery) error {
	userID := callback.From.ID
	size := strings.TrimPrefix(callback.Data, callbackAddItem)
	msg := callback.Message

	alertText := "Bad request"
	deleteMessages := false
	if lines := strings.Split(strings.TrimSpace(replyText(msg)), "\n"); len(lines) == 2 {
		name := strings.TrimSpace(lines[0])
		url := strings.TrimSpace(lines[1])

		items, err := b.store.Items(userID)
		if err != nil {
			return err
		}

		if hasItem(items, url, size) {
			alertText = "You are already tracking this item!"
		} else {
			alertText = "Item added!"
			deleteMessages = true

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			outcome := b.fetcher.FetchItem(ctx, tracker.New(name, url, size), time.Now())
			cancel()
			if outcome.Kind == fetch.Success {
				items = append(items, outcome.Item)
				if err := b.store.SaveItems(userID, items); err != nil {
					return err
				}
			} else {
				alertText = "Couldn't fetch the item, try again later"
				deleteMessages = false
			}
		}
	}

	alert := tgbotapi.NewCallbackWithAlert(callback.ID, alertText)
	if _, err := b.api.Request(alert); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}

	if deleteMessages && msg != nil {
		b.deleteMessage(msg.Chat.ID, msg.MessageID)
		if msg.ReplyToMessage != nil {
			b.deleteMessage(msg.Chat.ID, msg.ReplyToMessage.MessageID)
		}
	}
	return nil
}

func replyText(msg *tgbotapi.Message) string {
	if msg == nil || msg.ReplyToMessage == nil {
		return ""
	}
	return msg.ReplyToMessage.Text
}

func hasItem(items []tracker.TrackedItem, url, size string) bool {
	for _, item := range items {
		if item.URL == url && item.Size == size {
			return true
		}
	}
	return false
}

// approveUser runs when the admin presses Enable for a queued user.
func (b *Bot) approveUser(callback *tgbotapi.CallbackQuery) error {
	userID, err := strconv.ParseInt(strings.TrimPrefix(callback.Data, callbackAddUser), 10, 64)
	if err != nil {
		return fmt.Errorf("bad user id in callback %q: %w", callback.Data, err)
	}

	user, ok := b.queue.Take(userID)
	if !ok {
		user = tracker.UserInfo{ID: userID}
	}
	if err := b.createUser(user); err != nil {
		return err
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "User added")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	if callback.Message != nil {
		b.deleteMessage(callback.Message.Chat.ID, callback.Message.MessageID)
	}
	return b.Send(userID, "You are now enabled!")
}

// showHistory sends the item's full price history as date - price lines.
func (b *Bot) showHistory(callback *tgbotapi.CallbackQuery) error {
	userID := callback.From.ID
	uuid := strings.TrimPrefix(callback.Data, callbackShowHistory)

	items, err := b.store.Items(userID)
	if err != nil {
		return err
	}
	item, ok := findItem(items, uuid)
	if !ok {
		return fmt.Errorf("history requested for unknown item %s", uuid)
	}

	var lines []string
	for _, e := range item.PriceHistory {
		lines = append(lines, e.Date+" - "+e.Price)
	}
	text := fmt.Sprintf("<b>%s</b>\n%s", item.Name, strings.Join(lines, "\n"))

	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌", callbackDeleteMessage),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}

	_, err = b.api.Request(tgbotapi.NewCallback(callback.ID, ""))
	return err
}

// deleteItem removes the item and refreshes the keyboard.
func (b *Bot) deleteItem(callback *tgbotapi.CallbackQuery) error {
	userID := callback.From.ID
	uuid := strings.TrimPrefix(callback.Data, callbackDelete)
	msg := callback.Message

	items, err := b.store.Items(userID)
	if err != nil {
		return err
	}
	item, ok := findItem(items, uuid)
	if !ok {
		if msg != nil {
			edit := tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, "That list was too old!")
			_, err := b.api.Send(edit)
			return err
		}
		return nil
	}

	filtered := items[:0:0]
	for _, it := range items {
		if it.UUID != uuid {
			filtered = append(filtered, it)
		}
	}
	if err := b.store.SaveItems(userID, filtered); err != nil {
		return err
	}

	if err := b.Send(userID, "Deleted:\n"+item.URL); err != nil {
		return err
	}

	if msg != nil {
		edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, msg.Text, itemsKeyboard(filtered, deleteMode))
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(edit); err != nil {
			return err
		}
	}
	return nil
}

// switchItemsMode redraws the items keyboard in the selected mode.
func (b *Bot) switchItemsMode(callback *tgbotapi.CallbackQuery) error {
	userID := callback.From.ID
	mode := callback.Data
	msg := callback.Message
	if msg == nil {
		return nil
	}

	var description string
	switch mode {
	case deleteMode:
		description = "mode: Delete - watch out!"
	case showHistoryMode:
		description = "mode: Price history"
	case linkMode:
		description = "mode: Link"
	}

	items, err := b.store.Items(userID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		edit := tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, "You are not tracking any item!")
		_, err := b.api.Send(edit)
		return err
	}

	text := "These are the items you are tracking.\n" + description
	if text == msg.Text {
		alert := tgbotapi.NewCallbackWithAlert(callback.ID, "Already in that mode")
		_, err := b.api.Request(alert)
		return err
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, text, itemsKeyboard(items, mode))
	edit.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(edit)
	return err
}

func (b *Bot) deleteCallbackMessage(callback *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		return err
	}
	if callback.Message != nil {
		b.deleteMessage(callback.Message.Chat.ID, callback.Message.MessageID)
	}
	return nil
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Printf("telegram: failed to delete message %d: %v", messageID, err)
	}
}

// itemsKeyboard builds the mode-switch row followed by one button per item.
func itemsKeyboard(items []tracker.TrackedItem, mode string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌", deleteMode),
			tgbotapi.NewInlineKeyboardButtonData("\U0001F4C9", showHistoryMode),
			tgbotapi.NewInlineKeyboardButtonData("Link", linkMode),
		),
	}

	for _, item := range items {
		var button tgbotapi.InlineKeyboardButton
		switch mode {
		case deleteMode:
			button = tgbotapi.NewInlineKeyboardButtonData("❌"+item.Name+"❌", callbackDelete+item.UUID)
		case showHistoryMode:
			button = tgbotapi.NewInlineKeyboardButtonData("\U0001F4C9"+item.Name, callbackShowHistory+item.UUID)
		default:
			button = tgbotapi.NewInlineKeyboardButtonURL(item.Name, item.URL)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func findItem(items []tracker.TrackedItem, uuid string) (tracker.TrackedItem, bool) {
	for _, item := range items {
		if item.UUID == uuid {
			return item, true
		}
	}
	return tracker.TrackedItem{}, false
}
