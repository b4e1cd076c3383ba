package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

func item(price string, available bool, history ...tracker.PriceHistoryEntry) tracker.TrackedItem {
	return tracker.TrackedItem{
		UUID:         "abc-123",
		Name:         "white shoes",
		URL:          "https://www.zalando.it/white-shoes.html",
		Size:         "S",
		Price:        price,
		Quantity:     "many",
		Available:    available,
		PriceHistory: history,
	}
}

func snapshot(price string, available bool) tracker.TrackedItem {
	s := item(price, available, tracker.PriceHistoryEntry{Price: price, Date: "1-9-2026"})
	s.UUID = ""  // identity comes from the old item
	s.Name = ""
	return s
}

func entry(price, date string) tracker.PriceHistoryEntry {
	return tracker.PriceHistoryEntry{Price: price, Date: date}
}

func TestIdenticalSnapshotIsIdempotent(t *testing.T) {
	old := item("59,95", true, entry("59,95", "25-8-2026"))

	merged, notification := Reconcile(old, snapshot("59,95", true))

	assert.Nil(t, notification)
	assert.Equal(t, old.PriceHistory, merged.PriceHistory)
	assert.Equal(t, old.UUID, merged.UUID)
	assert.Equal(t, old.Name, merged.Name)
}

func TestHistoryGrowsByAtMostOne(t *testing.T) {
	old := item("59,95", true, entry("59,95", "25-8-2026"))

	merged, _ := Reconcile(old, snapshot("49,95", true))
	require.Len(t, merged.PriceHistory, 2)
	assert.Equal(t, entry("49,95", "1-9-2026"), merged.PriceHistory[1])

	merged, _ = Reconcile(old, snapshot("59,95", true))
	assert.Len(t, merged.PriceHistory, 1)
}

func TestDropThreshold(t *testing.T) {
	cases := []struct {
		oldPrice, newPrice string
		wantSignal         bool
	}{
		{"59,95", "59,95", false}, // unchanged
		{"59,95", "58,95", false}, // exactly 1.00, sub-unit noise
		{"59,95", "58,94", true},  // 1.01
		{"10,00", "9,00", false},
		{"10,00", "8,99", true},
		{"1200,50", "1199,49", true},
		{"59,95", "69,95", false}, // raised
		{"0,99", "0,05", false},   // sub-unit drop
	}

	for _, tc := range cases {
		old := item(tc.oldPrice, true, entry(tc.oldPrice, "25-8-2026"))
		_, notification := Reconcile(old, snapshot(tc.newPrice, true))
		if tc.wantSignal {
			require.NotNil(t, notification, "%s -> %s", tc.oldPrice, tc.newPrice)
			assert.True(t, notification.PriceLowered)
			assert.Equal(t, tc.oldPrice, notification.OldShownPrice)
		} else {
			assert.Nil(t, notification, "%s -> %s", tc.oldPrice, tc.newPrice)
		}
	}
}

// The price silently dropped from 10,00 to 8,00 while the item was out of
// stock. The first available fetch must notify once against the price last
// seen while available, and the next identical fetch must stay quiet.
func TestBackInStockNotifiesOnceAgainstOlderPrice(t *testing.T) {
	old := item("8,00", false, entry("10,00", "20-8-2026"), entry("8,00", "25-8-2026"))

	merged, notification := Reconcile(old, snapshot("8,00", true))

	require.NotNil(t, notification)
	assert.True(t, notification.PriceLowered)
	assert.Equal(t, "10,00", notification.OldShownPrice)
	assert.Equal(t, "8,00", merged.BackInStockNotifiedPrice)
	assert.Len(t, merged.PriceHistory, 2)

	// still 8,00 and still available next cycle: nothing new to say
	merged2, notification2 := Reconcile(merged, snapshot("8,00", true))
	assert.Nil(t, notification2)
	assert.Equal(t, "8,00", merged2.BackInStockNotifiedPrice)
}

// The item stays out of stock for another cycle at the silently dropped
// price before finally coming back. The unavailable cycle must not touch the
// dedup marker, or it would block the one notification the restock deserves.
func TestBackInStockSurvivesExtraUnavailableCycle(t *testing.T) {
	old := item("8,00", false, entry("10,00", "20-8-2026"), entry("8,00", "25-8-2026"))

	merged, notification := Reconcile(old, snapshot("8,00", false))
	assert.Nil(t, notification)
	assert.Empty(t, merged.BackInStockNotifiedPrice)

	merged2, notification2 := Reconcile(merged, snapshot("8,00", true))
	require.NotNil(t, notification2)
	assert.True(t, notification2.PriceLowered)
	assert.Equal(t, "10,00", notification2.OldShownPrice)
	assert.Equal(t, "8,00", merged2.BackInStockNotifiedPrice)
}

// Dedup guard proper: the item flips back to unavailable and becomes
// available again at the same already-notified price.
func TestBackInStockDedupGuard(t *testing.T) {
	old := item("8,00", false, entry("10,00", "20-8-2026"), entry("8,00", "25-8-2026"))
	old.BackInStockNotifiedPrice = "8,00"

	_, notification := Reconcile(old, snapshot("8,00", true))
	assert.Nil(t, notification)
}

func TestBackInStockNeedsTwoHistoryEntries(t *testing.T) {
	old := item("8,00", false, entry("8,00", "25-8-2026"))
	_, notification := Reconcile(old, snapshot("8,00", true))
	assert.Nil(t, notification)
}

func TestCouponOnlyNotification(t *testing.T) {
	old := item("59,95", true, entry("59,95", "25-8-2026"))
	snap := snapshot("59,95", true)
	snap.HasCoupon = true

	_, notification := Reconcile(old, snap)
	require.NotNil(t, notification)
	assert.False(t, notification.PriceLowered)
	assert.True(t, notification.CouponAdded)

	message := notification.Message(time.Now())
	assert.True(t, strings.HasPrefix(message, "Coupon added!\n"))
	assert.NotContains(t, message, " ---> ")
	assert.Contains(t, message, "59,95 + coupon")
}

func TestCouponRemovalIsNotAChangeWorthNotifying(t *testing.T) {
	old := item("59,95", true, entry("59,95", "25-8-2026"))
	old.HasCoupon = true

	_, notification := Reconcile(old, snapshot("59,95", true))
	assert.Nil(t, notification)
}

func TestUnavailableSuppressesEverything(t *testing.T) {
	old := item("59,95", true, entry("59,95", "25-8-2026"))

	snap := snapshot("39,95", false)
	snap.HasCoupon = true

	merged, notification := Reconcile(old, snap)
	assert.Nil(t, notification)
	// the history still records the drop for later cycles
	assert.Len(t, merged.PriceHistory, 2)
}

func TestPriceAndCouponTogether(t *testing.T) {
	old := item("59,95", true, entry("59,95", "25-8-2026"))
	snap := snapshot("39,95", true)
	snap.HasCoupon = true

	_, notification := Reconcile(old, snap)
	require.NotNil(t, notification)
	assert.True(t, notification.PriceLowered)
	assert.True(t, notification.CouponAdded)

	message := notification.Message(time.Now())
	assert.True(t, strings.HasPrefix(message, "Price lowered + Coupon added!\n"))
	assert.Contains(t, message, "59,95 ---> 39,95 + coupon")
}

func TestFirstFetchAfterCreation(t *testing.T) {
	// freshly created items have no price and an empty history
	old := tracker.TrackedItem{UUID: "abc-123", Name: "white shoes", Size: "S"}

	merged, notification := Reconcile(old, snapshot("59,95", true))
	assert.Nil(t, notification)
	require.Len(t, merged.PriceHistory, 1)
	assert.Equal(t, "59,95", merged.PriceHistory[0].Price)
}

func TestMergedReplacesFieldsFromSnapshot(t *testing.T) {
	old := item("59,95", false, entry("59,95", "25-8-2026"))
	old.Quantity = "few"
	old.NotFoundCount = 3

	snap := snapshot("59,95", true)
	merged, _ := Reconcile(old, snap)

	assert.Equal(t, old.UUID, merged.UUID)
	assert.Equal(t, old.Name, merged.Name)
	assert.Equal(t, "many", merged.Quantity)
	assert.True(t, merged.Available)
	assert.Zero(t, merged.NotFoundCount)
}
