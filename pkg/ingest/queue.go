// Package ingest carries best-effort read-mark operations from the API
// layer to the persistence pipeline. The two passive trigger points
// (snapshot delivered, foreground resume) both funnel through this queue so
// redundant invocations coalesce into a single batch per user.
package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Trigger names the event that produced a read-mark op.
type Trigger string

const (
	TriggerSnapshot   Trigger = "snapshot"
	TriggerForeground Trigger = "foreground"
)

// Op is a lightweight in-memory read-mark operation. MessageIDs may be
// empty, in which case the processor marks the whole recent window.
type Op struct {
	UserID     string
	MessageIDs []string
	Trigger    Trigger
	// EnqSeq is a monotonic enqueue sequence assigned when the op is
	// accepted into the queue; used for deterministic ordering in batches.
	EnqSeq uint64
}

var (
	// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
	ErrQueueFull = errors.New("ingest queue full")
)

// Item wraps a pooled Op. Consumers MUST call Done() exactly once after
// processing to return pooled resources.
type Item struct {
	Op *Op

	once sync.Once
}

// Done releases the pooled op back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.Op != nil {
			it.Op.MessageIDs = nil
			it.Op.UserID = ""
			opPool.Put(it.Op)
			it.Op = nil
		}
	})
}

var opPool = sync.Pool{New: func() any { return &Op{} }}

// instrumentation counters (package-local)
var (
	enqueueTotal     uint64
	enqueueFailTotal uint64
	enqSeq           uint64
)

// Queue is a bounded in-memory queue. Safe for concurrent producers;
// consumers range over Out().
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

// NewQueue creates a new bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// DefaultQueue is the global queue used by handlers. It can be replaced at
// startup by SetDefaultQueue.
var DefaultQueue = NewQueue(16 * 1024)

// SetDefaultQueue replaces the global queue; call before serving traffic.
func SetDefaultQueue(q *Queue) { DefaultQueue = q }

// TryEnqueue accepts a read-mark op without blocking. Returns ErrQueueFull
// when the queue is at capacity; callers treat that as a dropped best-effort
// trigger, not an error worth surfacing.
func (q *Queue) TryEnqueue(userID string, ids []string, trig Trigger) error {
	op := opPool.Get().(*Op)
	op.UserID = userID
	op.MessageIDs = ids
	op.Trigger = trig
	op.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	it := &Item{Op: op}
	select {
	case q.ch <- it:
		atomic.AddUint64(&enqueueTotal, 1)
		return nil
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		atomic.AddUint64(&enqueueFailTotal, 1)
		return ErrQueueFull
	}
}

// Out returns the consumer channel.
func (q *Queue) Out() <-chan *Item { return q.ch }

// Len returns the current queue depth.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns the number of ops rejected at capacity.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
