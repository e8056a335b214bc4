package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatdb_messages_appended_total",
		Help: "Messages appended to the log.",
	})
	readReceipts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatdb_read_receipts_total",
		Help: "Read receipts recorded (per user per message).",
	})
	readBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatdb_read_batches_total",
		Help: "Atomic mark-read batches committed.",
	})

	// janitor-populated gauges
	GaugeMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatdb_messages",
		Help: "Messages currently in the log.",
	})
	GaugeReceipts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatdb_read_receipts",
		Help: "Read receipts currently recorded.",
	})
	GaugeDiskBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatdb_store_disk_bytes",
		Help: "On-disk size of the pebble directory.",
	})
)

// DiskUsage returns the best-effort on-disk size of the DB directory.
func DiskUsage() uint64 {
	if dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}
