package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

// historySummaryThreshold is the history length above which the full
// price chain is replaced by a summary.
const historySummaryThreshold = 20

// Message renders the notification as Telegram HTML. Pure function of the
// notification and now (now only drives the history averages).
func (n Notification) Message(now time.Time) string {
	var headers []string
	if n.PriceLowered {
		headers = append(headers, "Price lowered")
	}
	if n.CouponAdded {
		headers = append(headers, "Coupon added")
	}
	header := strings.Join(headers, " + ") + "!"

	var prices []string
	if n.PriceLowered {
		prices = append(prices, n.OldShownPrice)
	}
	newPrice := n.Item.Price
	if n.CouponAdded {
		newPrice += " + coupon"
	}
	prices = append(prices, newPrice)
	priceLine := strings.Join(prices, " ---> ")

	history := renderHistory(n.Item.PriceHistory, now)

	return fmt.Sprintf("%s\n%s\n<b>%s</b>\nquantity: %s\n<b>price history:</b>\n%s\n%s",
		header, n.Item.Name, priceLine, n.Item.Quantity, history, n.Item.URL)
}

// PriceLine is the compact "old ---> new" rendering, used for the
// operations log.
func (n Notification) PriceLine() string {
	if !n.PriceLowered {
		return n.Item.Price
	}
	return n.OldShownPrice + " ---> " + n.Item.Price
}

func renderHistory(entries []tracker.PriceHistoryEntry, now time.Time) string {
	if len(entries) > historySummaryThreshold {
		return summarizeHistory(entries, now)
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Price)
	}
	return strings.Join(parts, " -> ")
}

// summarizeHistory condenses a long history into min, max and recent
// averages. Entries that fail to parse are skipped.
func summarizeHistory(entries []tracker.PriceHistoryEntry, now time.Time) string {
	var (
		minEntry, maxEntry tracker.PriceHistoryEntry
		minPrice, maxPrice decimal.Decimal
		have               bool
	)
	sums := map[int]decimal.Decimal{90: {}, 180: {}}
	counts := map[int]int{90: 0, 180: 0}

	for _, e := range entries {
		price, err := e.PriceValue()
		if err != nil {
			continue
		}
		if !have || price.LessThan(minPrice) {
			minEntry, minPrice = e, price
		}
		if !have || price.GreaterThan(maxPrice) {
			maxEntry, maxPrice = e, price
		}
		have = true

		when, err := e.Time()
		if err != nil {
			continue
		}
		for _, days := range []int{90, 180} {
			if when.After(now.AddDate(0, 0, -(days + 1))) {
				sums[days] = sums[days].Add(price)
				counts[days]++
			}
		}
	}

	average := func(days int) string {
		if counts[days] == 0 {
			return "-"
		}
		return sums[days].Div(decimal.NewFromInt(int64(counts[days]))).StringFixed(0)
	}

	return fmt.Sprintf("min: %s - %s\nmax: %s - %s\naverage last 90 days: %s\naverage last 180 days: %s",
		minEntry.Price, minEntry.Date, maxEntry.Price, maxEntry.Date, average(90), average(180))
}
