package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemInitialState(t *testing.T) {
	item := New("white shoes", "https://www.zalando.it/white-shoes.html", "S")

	assert.NotEmpty(t, item.UUID)
	assert.Equal(t, "white shoes", item.Name)
	assert.Equal(t, "S", item.Size)
	assert.Empty(t, item.Price)
	assert.False(t, item.Available)
	assert.Empty(t, item.PriceHistory)

	// identity must differ between items
	other := New("white shoes", "https://www.zalando.it/white-shoes.html", "S")
	assert.NotEqual(t, item.UUID, other.UUID)
}

func TestParsePrice(t *testing.T) {
	d, err := ParsePrice("59,95")
	require.NoError(t, err)
	assert.Equal(t, "59.95", d.String())

	d, err = ParsePrice("0,05")
	require.NoError(t, err)
	assert.Equal(t, "0.05", d.String())

	_, err = ParsePrice("")
	assert.Error(t, err)
	_, err = ParsePrice("abc")
	assert.Error(t, err)
}

func TestDateStamp(t *testing.T) {
	assert.Equal(t, "1-9-2026", DateStamp(time.Date(2026, 9, 1, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "25-12-2025", DateStamp(time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)))
}

func TestHistoryEntryTime(t *testing.T) {
	e := PriceHistoryEntry{Price: "59,95", Date: "1-9-2026"}
	when, err := e.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), when)

	_, err = PriceHistoryEntry{Date: "yesterday"}.Time()
	assert.Error(t, err)
}

func TestAnyChange(t *testing.T) {
	base := New("white shoes", "https://www.zalando.it/white-shoes.html", "S")
	base.Price = "59,95"
	base.Quantity = "many"
	base.Available = true

	same := base
	assert.False(t, base.AnyChange(same))

	cases := map[string]func(*TrackedItem){
		"price":        func(i *TrackedItem) { i.Price = "39,95" },
		"quantity":     func(i *TrackedItem) { i.Quantity = "few" },
		"availability": func(i *TrackedItem) { i.Available = false },
		"coupon":       func(i *TrackedItem) { i.HasCoupon = true },
		"dedup marker": func(i *TrackedItem) { i.BackInStockNotifiedPrice = "39,95" },
		"not found":    func(i *TrackedItem) { i.NotFoundCount = 1 },
		"size gone":    func(i *TrackedItem) { i.SizeNotFoundCount = 1 },
		"history":      func(i *TrackedItem) { i.PriceHistory = []PriceHistoryEntry{{Price: "59,95", Date: "1-9-2026"}} },
	}
	for name, mutate := range cases {
		changed := base
		mutate(&changed)
		assert.True(t, base.AnyChange(changed), name)
	}
}
