// Package feed exposes a continuously updated, size-bounded, time-ordered
// view of the most recent messages. Each delivery is a complete snapshot of
// the window, oldest-first, replacing the previous one; consumers must
// discard what they held, never merge.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
)

var snapshotsDelivered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatdb_feed_snapshots_total",
	Help: "Feed snapshots delivered to subscribers.",
})

// Snapshot is one complete delivery of the current message window.
type Snapshot struct {
	Messages []models.Message `json:"messages"`
	// TS is the delivery time (ns); consecutive snapshots only guarantee
	// monotonic recency of the underlying data.
	TS int64 `json:"ts"`
}

// Feed produces snapshot subscriptions over the store.
type Feed struct {
	limit int
}

// New returns a Feed bounded to limit messages per snapshot (default 50).
func New(limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{limit: limit}
}

// Limit returns the snapshot window size.
func (f *Feed) Limit() int { return f.limit }

// Subscription is one live snapshot stream. Snapshots() is closed after
// Cancel (or context cancellation); no deliveries happen afterwards.
type Subscription struct {
	ch     chan Snapshot
	cancel chan struct{}
	once   sync.Once
}

// Snapshots returns the delivery channel. The channel has capacity one and
// is written latest-wins: a slow consumer only ever observes the newest
// window, never a backlog.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.ch }

// Cancel tears the subscription down. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

// push delivers latest-wins without ever blocking the delivery goroutine.
func (s *Subscription) push(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			snapshotsDelivered.Inc()
			return
		default:
			// replace the pending snapshot
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// Subscribe opens a snapshot stream. An initial snapshot is delivered
// immediately; afterwards the full window is re-delivered on every store
// change. When userID is empty (no authenticated identity) a single empty
// snapshot is delivered and the subscription stays open so the caller can
// resubscribe once identity is available.
func (f *Feed) Subscribe(ctx context.Context, userID string) *Subscription {
	sub := &Subscription{ch: make(chan Snapshot, 1), cancel: make(chan struct{})}
	go f.run(ctx, userID, sub)
	return sub
}

func (f *Feed) run(ctx context.Context, userID string, sub *Subscription) {
	defer close(sub.ch)

	if userID == "" {
		sub.push(Snapshot{Messages: []models.Message{}, TS: time.Now().UTC().UnixNano()})
		select {
		case <-sub.cancel:
		case <-ctx.Done():
		}
		return
	}

	for {
		// grab the signal before reading so a change between read and
		// wait is never missed
		sig := store.ChangeSignal()

		msgs, err := store.ListRecent(f.limit)
		if err != nil {
			logger.Warn("feed_window_load_failed", "user", userID, "error", err)
		} else {
			sub.push(Snapshot{Messages: msgs, TS: time.Now().UTC().UnixNano()})
		}

		select {
		case <-sub.cancel:
			return
		case <-ctx.Done():
			return
		case <-sig:
		}
	}
}
