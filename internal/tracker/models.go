package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrackedItem is one size of one product a user follows. Prices are kept as
// decimal strings with a comma as the fractional separator ("59,95") because
// that exact rendering is what gets persisted, compared and shown to users.
type TrackedItem struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Available bool   `json:"available"`
	HasCoupon bool   `json:"hasCoupon"`

	// BackInStockNotifiedPrice is the last price for which a back-in-stock
	// notification was already sent. Used only for deduplication.
	BackInStockNotifiedPrice string `json:"backInStockNotifiedPrice,omitempty"`

	NotFoundCount     int `json:"notFoundCount"`
	SizeNotFoundCount int `json:"sizeNotFoundCount"`

	PriceHistory []PriceHistoryEntry `json:"priceHistory"`
}

// PriceHistoryEntry is a single observed price. Entries are append-only and
// chronological; consecutive duplicates are never stored.
type PriceHistoryEntry struct {
	Price string `json:"price"`
	Date  string `json:"date"`
}

// TrackedItems is the envelope persisted in each user's tracked.json.
type TrackedItems struct {
	TrackedItems []TrackedItem `json:"trackedItems"`
}

// New creates an item in its initial state: no price, unavailable, empty
// history. The UUID is assigned here and never changes afterwards.
func New(name, url, size string) TrackedItem {
	return TrackedItem{
		UUID: uuid.NewString(),
		Name: name,
		URL:  url,
		Size: size,
	}
}

// ParsePrice parses a comma-decimal price string ("59,95") into a decimal.
func ParsePrice(price string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(price, ",", "."))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	return d, nil
}

// DateStamp renders t in the history date format, day-month-year without
// zero padding, matching what is already persisted.
func DateStamp(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Day(), int(t.Month()), t.Year())
}

// PriceValue parses the entry's price for numeric comparisons.
func (e PriceHistoryEntry) PriceValue() (decimal.Decimal, error) {
	return ParsePrice(e.Price)
}

// Time parses the entry's d-m-yyyy date stamp.
func (e PriceHistoryEntry) Time() (time.Time, error) {
	var day, month, year int
	if _, err := fmt.Sscanf(e.Date, "%d-%d-%d", &day, &month, &year); err != nil {
		return time.Time{}, fmt.Errorf("parse history date %q: %w", e.Date, err)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// AnyChange reports whether the item differs from other in any field that
// should trigger a save of the user's file.
func (t TrackedItem) AnyChange(other TrackedItem) bool {
	return t.Price != other.Price ||
		t.Quantity != other.Quantity ||
		t.Available != other.Available ||
		t.HasCoupon != other.HasCoupon ||
		t.BackInStockNotifiedPrice != other.BackInStockNotifiedPrice ||
		t.NotFoundCount != other.NotFoundCount ||
		t.SizeNotFoundCount != other.SizeNotFoundCount ||
		len(t.PriceHistory) != len(other.PriceHistory)
}
