package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"chatdb/pkg/logger"
)

// MarkFunc commits receipts for one user. ids may be empty, meaning "the
// recent window". Implementations must be idempotent; the processor calls
// them best-effort and only logs failures.
type MarkFunc func(ctx context.Context, userID string, ids []string)

// Processor drains the queue with a small worker pool, coalescing ops per
// user inside a flush window so a burst of snapshot triggers becomes one
// batch write.
type Processor struct {
	q        *Queue
	mark     MarkFunc
	workers  int
	maxBatch int
	flush    time.Duration

	wg sync.WaitGroup
}

// NewProcessor builds a Processor. workers/maxBatch/flush fall back to
// sane defaults when zero.
func NewProcessor(q *Queue, mark MarkFunc, workers, maxBatch int, flush time.Duration) *Processor {
	if workers <= 0 {
		workers = 2
	}
	if maxBatch <= 0 {
		maxBatch = 256
	}
	if flush <= 0 {
		flush = 250 * time.Millisecond
	}
	return &Processor{q: q, mark: mark, workers: workers, maxBatch: maxBatch, flush: flush}
}

// Start launches the worker pool. Workers exit when ctx is canceled; Wait
// blocks until they have drained.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until all workers have stopped.
func (p *Processor) Wait() { p.wg.Wait() }

type pending struct {
	ids    []string
	window bool // whole-window op seen (empty MessageIDs)
	minSeq uint64
}

func (p *Processor) run(ctx context.Context, worker int) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.flush)
	defer ticker.Stop()

	byUser := map[string]*pending{}
	size := 0

	flush := func() {
		if len(byUser) == 0 {
			return
		}
		// deterministic order: users by first enqueue sequence
		users := make([]string, 0, len(byUser))
		for u := range byUser {
			users = append(users, u)
		}
		sort.Slice(users, func(i, j int) bool { return byUser[users[i]].minSeq < byUser[users[j]].minSeq })
		for _, u := range users {
			pd := byUser[u]
			if pd.window {
				p.mark(ctx, u, nil)
			}
			if len(pd.ids) > 0 {
				p.mark(ctx, u, pd.ids)
			}
		}
		byUser = map[string]*pending{}
		size = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			logger.Debug("ingest_worker_stopped", "worker", worker)
			return
		case <-ticker.C:
			flush()
		case it, ok := <-p.q.Out():
			if !ok {
				flush()
				return
			}
			op := it.Op
			pd := byUser[op.UserID]
			if pd == nil {
				pd = &pending{minSeq: op.EnqSeq}
				byUser[op.UserID] = pd
			}
			if len(op.MessageIDs) == 0 {
				pd.window = true
			} else {
				pd.ids = append(pd.ids, op.MessageIDs...)
				size += len(op.MessageIDs)
			}
			it.Done()
			if size >= p.maxBatch {
				flush()
			}
		}
	}
}
