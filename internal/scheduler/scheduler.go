// Package scheduler drives the reconciliation cycles: a single worker that
// re-fetches every tracked item, reconciles it against the persisted state
// and hands notifications to the delivery collaborator.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/valeevte/PriceTrackerBot/internal/fetch"
	"github.com/valeevte/PriceTrackerBot/internal/oplog"
	"github.com/valeevte/PriceTrackerBot/internal/reconcile"
	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

// Fetcher fetches one item and classifies the attempt.
type Fetcher interface {
	FetchItem(ctx context.Context, item tracker.TrackedItem, now time.Time) fetch.Outcome
}

// Notifier delivers a message to a user.
type Notifier interface {
	Send(userID int64, message string) error
}

// PriceSink receives observed price points. Optional.
type PriceSink interface {
	RecordPrice(ctx context.Context, userID int64, item tracker.TrackedItem) error
}

// Config holds the scheduling knobs.
type Config struct {
	// Interval is the fixed delay between the end of one cycle and the
	// start of the next. Cycles never overlap.
	Interval time.Duration
	// UserDelay is the pause between users within a cycle. Users and items
	// are processed strictly sequentially, with no parallel fetches: the
	// request rate against the shop is part of the contract, not a
	// throughput knob.
	UserDelay time.Duration
	// RetryDelay is how long to wait before the single retry of a
	// transient fetch failure.
	RetryDelay time.Duration
	// FailureThreshold is how many consecutive removed/size-removed
	// classifications it takes before the user is told. Tolerates one-off
	// site glitches.
	FailureThreshold int
}

// Scheduler owns one run loop.
type Scheduler struct {
	store    *tracker.Store
	fetcher  Fetcher
	notifier Notifier
	sink     PriceSink
	log      *oplog.Logger
	cfg      Config
}

// New wires a scheduler. sink may be nil.
func New(store *tracker.Store, fetcher Fetcher, notifier Notifier, sink PriceSink, log *oplog.Logger, cfg Config) *Scheduler {
	return &Scheduler{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		sink:     sink,
		log:      log,
		cfg:      cfg,
	}
}

// Run blocks until ctx is cancelled, executing one cycle immediately and
// then again after each fixed delay.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Printf("scheduler: started, interval %v", s.cfg.Interval)
	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			s.log.Printf("scheduler: stopping, context cancelled")
			return
		case <-time.After(s.cfg.Interval):
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.log.Printf("scheduler: starting check")

	userIDs, err := s.store.UserIDs()
	if err != nil {
		s.log.Error(fmt.Errorf("list users: %w", err))
		return
	}

	totalItems := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		n, err := s.checkUser(ctx, userID)
		if err != nil {
			s.log.Error(err, fmt.Sprintf("user %d", userID))
		}
		totalItems += n

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.UserDelay):
		}
	}

	s.log.Printf("scheduler: check executed for %d users and a total of %d items", len(userIDs), totalItems)
}

// checkUser reconciles every item of one user and returns how many items it
// processed. The user's file is written at most once, after all items, and
// only when something actually changed.
func (s *Scheduler) checkUser(ctx context.Context, userID int64) (int, error) {
	items, err := s.store.Items(userID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	var (
		updated       []tracker.TrackedItem
		notifications []string
		anyChange     bool
	)

	for _, old := range items {
		if ctx.Err() != nil {
			return len(updated), ctx.Err()
		}

		item, notification := s.checkItem(ctx, userID, old)
		updated = append(updated, item)
		anyChange = anyChange || item.AnyChange(old)
		if notification != "" {
			notifications = append(notifications, notification)
		}
	}

	for _, notification := range notifications {
		if err := s.notifier.Send(userID, notification); err != nil {
			s.log.Error(fmt.Errorf("send notification: %w", err), fmt.Sprintf("user %d", userID))
		}
	}
	if len(notifications) > 0 {
		s.log.Printf("scheduler: notifications sent to user %d", userID)
	}

	if anyChange {
		if err := s.store.SaveItems(userID, updated); err != nil {
			return len(updated), err
		}
	}
	return len(updated), nil
}

// checkItem fetches and reconciles a single item. Whatever goes wrong, the
// previous state is preserved and the batch continues.
func (s *Scheduler) checkItem(ctx context.Context, userID int64, old tracker.TrackedItem) (item tracker.TrackedItem, notification string) {
	item = old
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Errorf("panic while checking item: %v", r), fmt.Sprintf("user %d", userID), old.Name)
			item, notification = old, ""
		}
	}()

	outcome := s.fetcher.FetchItem(ctx, old, time.Now())
	if outcome.Kind == fetch.TransientFailure {
		// one retry after a short delay, then give up for this cycle
		select {
		case <-ctx.Done():
			return old, ""
		case <-time.After(s.cfg.RetryDelay):
		}
		outcome = s.fetcher.FetchItem(ctx, old, time.Now())
	}

	switch outcome.Kind {
	case fetch.Success:
		merged, decision := reconcile.Reconcile(old, outcome.Item)
		if s.sink != nil && merged.Price != old.Price {
			if err := s.sink.RecordPrice(ctx, userID, merged); err != nil {
				s.log.Error(err, fmt.Sprintf("user %d", userID), merged.Name)
			}
		}
		if decision == nil {
			return merged, ""
		}
		s.log.Printf("%s - %s", merged.Name, decision.PriceLine())
		return merged, decision.Message(time.Now())

	case fetch.ItemRemoved:
		item.NotFoundCount++
		if item.NotFoundCount == s.cfg.FailureThreshold {
			notification = fmt.Sprintf("It appears that the item \"%s\" is no longer available at the specified url :(\nConsider deleting the item from your list if this error persists", old.Name)
		}
		return item, notification

	case fetch.SizeRemoved:
		item.SizeNotFoundCount++
		if item.SizeNotFoundCount == s.cfg.FailureThreshold {
			notification = fmt.Sprintf("It appears that the size %s is no longer available for item \"%s\" :(\nConsider deleting the item from your list if this error persists", old.Size, old.Name)
		}
		return item, notification

	default:
		s.log.Error(fmt.Errorf("fetch failed: %w", outcome.Cause), fmt.Sprintf("user %d", userID), old.Name)
		return old, ""
	}
}
