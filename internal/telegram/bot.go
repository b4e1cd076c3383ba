// Package telegram is the chat interface: it delivers notifications and
// implements the command surface (help, item list, add and delete flows,
// admin approval of new users).
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/valeevte/PriceTrackerBot/internal/fetch"
	"github.com/valeevte/PriceTrackerBot/internal/oplog"
	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

// Options configures the bot.
type Options struct {
	Token   string
	AdminID int64
	// Public lets anyone use the bot. When false, new users are queued
	// until the admin presses Enable.
	Public bool
	// RetryDelay is the wait before the single retry of a send that failed
	// with a transient network error.
	RetryDelay time.Duration
}

// Bot is the Telegram front end.
type Bot struct {
	api     *tgbotapi.BotAPI
	store   *tracker.Store
	queue   *tracker.ApprovalQueue
	fetcher *fetch.Client
	log     *oplog.Logger
	opts    Options
}

// New connects to the Telegram API and builds the bot.
func New(opts Options, store *tracker.Store, fetcher *fetch.Client, log *oplog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 6 * time.Second
	}
	return &Bot{
		api:     api,
		store:   store,
		queue:   tracker.NewApprovalQueue(),
		fetcher: fetcher,
		log:     log,
		opts:    opts,
	}, nil
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	updates := b.api.GetUpdatesChan(cfg)

	b.log.Printf("telegram: bot %s listening", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(fmt.Errorf("panic handling update: %v", r))
		}
	}()

	var err error
	switch {
	case update.Message != nil:
		if !b.checkUser(update.Message.From) {
			return
		}
		err = b.handleMessage(update.Message)
	case update.CallbackQuery != nil:
		if !b.checkUser(update.CallbackQuery.From) {
			return
		}
		err = b.handleCallback(update.CallbackQuery)
	}
	if err != nil {
		b.log.Error(err)
	}
}

// Send delivers a message with HTML markup. A transient network failure is
// retried once after a short delay; anything else is reported back to the
// caller for its own retry/backoff decisions.
func (b *Bot) Send(userID int64, message string) error {
	msg := tgbotapi.NewMessage(userID, message)
	msg.ParseMode = tgbotapi.ModeHTML

	_, err := b.api.Send(msg)
	if err == nil {
		return nil
	}
	if !isTransientNetErr(err) {
		return fmt.Errorf("send to %d: %w", userID, err)
	}

	time.Sleep(b.opts.RetryDelay)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d (after retry): %w", userID, err)
	}
	return nil
}

// NotifyAdmin implements oplog.AdminNotifier.
func (b *Bot) NotifyAdmin(message string) {
	if err := b.Send(b.opts.AdminID, message); err != nil {
		b.log.Printf("telegram: failed to notify admin: %v", err)
	}
}

func isTransientNetErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection timed out") || strings.Contains(msg, "network is unreachable")
}

// checkUser reports whether the sender may use the bot, creating or queueing
// them when they are new.
func (b *Bot) checkUser(user *tgbotapi.User) bool {
	if user == nil {
		return false
	}
	userID := user.ID
	if b.store.UserExists(userID) {
		return true
	}

	isAdmin := userID == b.opts.AdminID
	if b.opts.Public || isAdmin {
		b.log.Printf("telegram: adding new user %d", userID)
		if err := b.createUser(userInfo(user)); err != nil {
			b.log.Error(err)
			return false
		}
		if err := b.Send(userID, "Welcome! Take a look at the bottom left menu for the commands"); err != nil {
			b.log.Error(err)
		}
		if !isAdmin {
			b.NotifyAdmin(fmt.Sprintf("New user %q joined", user.FirstName))
		}
		return false
	}

	if b.queue.Contains(userID) {
		return false
	}
	b.log.Printf("telegram: unknown user %d - %s", userID, user.FirstName)

	if err := b.Send(userID, "Hi! Who are you? Nevermind, just wait for the admin permission..."); err != nil {
		b.log.Error(err)
	}
	b.queue.Add(userInfo(user))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Enable", callbackAddUser+fmt.Sprint(userID)),
		),
	)
	msg := tgbotapi.NewMessage(b.opts.AdminID,
		fmt.Sprintf("New user %q tried to use the bot. Click below to enable it.", describeUser(user)))
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error(fmt.Errorf("ask admin approval: %w", err))
	}
	return false
}

func (b *Bot) createUser(user tracker.UserInfo) error {
	info := fmt.Sprintf("id: %d\nusername: %s\nfirstName: %s\nlastName: %s\n",
		user.ID, user.Username, user.FirstName, user.LastName)
	if err := b.store.CreateUser(user.ID, info); err != nil {
		return fmt.Errorf("create user %d: %w", user.ID, err)
	}
	return nil
}

func userInfo(user *tgbotapi.User) tracker.UserInfo {
	return tracker.UserInfo{
		ID:        user.ID,
		Username:  user.UserName,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func describeUser(user *tgbotapi.User) string {
	parts := []string{fmt.Sprint(user.ID)}
	for _, p := range []string{user.UserName, user.FirstName, user.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}
