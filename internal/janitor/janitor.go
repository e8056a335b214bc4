// Package janitor runs the scheduled stats sampler: on every cron tick it
// walks the store and publishes message/receipt totals and disk usage as
// prometheus gauges.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"

	"chatdb/pkg/config"
	"chatdb/pkg/logger"
	"chatdb/pkg/store"
)

// Start starts the sampler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.JanitorConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("janitor_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("janitor_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid janitor cron expression: %s", cronExpr)
	}

	logger.Info("janitor_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func runScheduler(ctx context.Context, cronExpr string) {
	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("janitor_next_tick_failed", "cron", cronExpr, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			logger.Info("janitor_stopping")
			return
		case <-time.After(next.Sub(now)):
		}
		RunOnce()
	}
}

// RunOnce samples the store immediately. Exposed so tests and admin
// triggers can invoke a run on demand.
func RunOnce() {
	msgs, receipts, err := store.CountMessages()
	if err != nil {
		logger.Warn("janitor_sample_failed", "error", err)
		return
	}
	disk := store.DiskUsage()
	store.GaugeMessages.Set(float64(msgs))
	store.GaugeReceipts.Set(float64(receipts))
	store.GaugeDiskBytes.Set(float64(disk))
	logger.Info("janitor_sampled",
		"messages", msgs,
		"receipts", receipts,
		"disk", humanize.IBytes(disk),
	)
}
