// Package reconcile compares the persisted state of a tracked item against a
// freshly fetched snapshot and decides whether the change is worth telling
// the user about.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

var one = decimal.NewFromInt(1)

// Notification describes a change that should reach the user. OldShownPrice
// is the reference price to display next to the new one; for a back-in-stock
// drop it is the price last seen while the item was still available, not the
// immediately preceding out-of-stock observation.
type Notification struct {
	PriceLowered  bool
	CouponAdded   bool
	OldShownPrice string
	Item          tracker.TrackedItem
}

// Reconcile merges snapshot into old and returns the merged item together
// with an optional notification. The merged item keeps old's uuid and name,
// carries the dedup marker forward, and appends snapshot's history entry
// only when the price actually moved. An unavailable item never notifies,
// whatever the price did.
func Reconcile(old, snapshot tracker.TrackedItem) (tracker.TrackedItem, *Notification) {
	merged := snapshot
	merged.UUID = old.UUID
	merged.Name = old.Name
	merged.BackInStockNotifiedPrice = old.BackInStockNotifiedPrice

	merged.PriceHistory = append([]tracker.PriceHistoryEntry(nil), old.PriceHistory...)
	if snapshot.Price != old.Price && len(snapshot.PriceHistory) > 0 {
		merged.PriceHistory = append(merged.PriceHistory, snapshot.PriceHistory[0])
	}

	couponAdded := !old.HasCoupon && snapshot.HasCoupon

	oldShown, priceLowered := priceSignal(old, snapshot, &merged)

	if !snapshot.Available || (!priceLowered && !couponAdded) {
		return merged, nil
	}
	return merged, &Notification{
		PriceLowered:  priceLowered,
		CouponAdded:   couponAdded,
		OldShownPrice: oldShown,
		Item:          merged,
	}
}

// priceSignal decides whether the price movement deserves a notification and
// returns the reference price to display. Deltas of one unit or less are
// ignored as noise. When the price did not move at all but the item just came
// back in stock, the price may have silently dropped while unavailable:
// compare against the entry before the most recent one, and use the dedup
// marker so the next identical cycle does not fire again. The marker is set
// only on the available cycle that actually produces the notification, never
// while the item is still out of stock. The marker assignment on merged is
// the only side effect.
func priceSignal(old, snapshot tracker.TrackedItem, merged *tracker.TrackedItem) (string, bool) {
	oldPrice, err := tracker.ParsePrice(old.Price)
	if err != nil {
		// no comparable previous price (freshly created item)
		return "", false
	}
	newPrice, err := tracker.ParsePrice(snapshot.Price)
	if err != nil {
		return "", false
	}

	if oldPrice.Sub(newPrice).GreaterThan(one) {
		return old.Price, true
	}

	if old.Price == snapshot.Price && !old.Available && snapshot.Available && len(merged.PriceHistory) >= 2 {
		secondLast := merged.PriceHistory[len(merged.PriceHistory)-2]
		secondLastPrice, err := secondLast.PriceValue()
		if err != nil {
			return "", false
		}
		if secondLastPrice.Sub(newPrice).GreaterThan(one) && snapshot.Price != old.BackInStockNotifiedPrice {
			merged.BackInStockNotifiedPrice = snapshot.Price
			return secondLast.Price, true
		}
	}

	return "", false
}
