package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/joho/godotenv"

	"chatdb/internal/janitor"
	"chatdb/pkg/config"
	"chatdb/pkg/feed"
	"chatdb/pkg/ingest"
	"chatdb/pkg/logger"
	"chatdb/pkg/receipts"
	"chatdb/pkg/state"
	"chatdb/pkg/store"
	"chatdb/pkg/uploads"
	"chatdb/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	fd      *feed.Feed
	queue   *ingest.Queue
	proc    *ingest.Processor
	up      *uploads.Coordinator
	blobDir string

	srv *http.Server
}

// New initializes resources that do not require a running context (state
// dirs, DB, validation, runtime keys, component wiring). It does not start
// the workers or the HTTP server; call Run to start those and block until
// shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	// runtime keys: backend keys double as user-signature signing keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range cfg.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	validation.SetRules(validation.Rules{MaxTextLen: 1000})

	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, fmt.Errorf("state dirs: %w", err)
	}
	if err := store.Open(filepath.Join(eff.DBPath, "store")); err != nil {
		return nil, fmt.Errorf("failed to open pebble under %s: %w", eff.DBPath, err)
	}

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}
	a.fd = feed.New(cfg.Feed.Limit)
	a.queue = ingest.NewQueue(cfg.Ingest.QueueCapacity)
	ingest.SetDefaultQueue(a.queue)
	a.proc = ingest.NewProcessor(a.queue, a.markRead,
		cfg.Ingest.Workers, cfg.Ingest.MaxBatchIDs, cfg.Ingest.FlushInterval.Std())

	a.blobDir = state.PathsVar.Uploads
	blobs := uploads.NewFSBlobStore(a.blobDir, "/v1/blobs")
	a.up = uploads.NewCoordinator(blobs, cfg.Uploads.FullEdge, cfg.Uploads.ThumbEdge, cfg.Uploads.Quality)
	return a, nil
}

// markRead is the best-effort sink behind the trigger funnel. A nil id list
// means "the current feed window". Failures are logged and dropped; the
// next trigger retries.
func (a *App) markRead(ctx context.Context, userID string, ids []string) {
	if len(ids) == 0 {
		receipts.MarkRecentRead(ctx, userID, a.fd.Limit())
		return
	}
	if err := receipts.MarkReadIDs(ctx, userID, ids); err != nil {
		logger.Warn("async_mark_read_failed", "user", userID, "ids", len(ids), "error", err)
	}
}

// Run starts the read-mark workers, the janitor and the HTTP server, and
// blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.proc.Start(ctx)

	jcancel, err := janitor.Start(ctx, a.eff.Config.Janitor)
	if err != nil {
		return err
	}
	defer jcancel()

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.stopHTTP()
		a.proc.Wait()
		if err := store.Close(); err != nil {
			logger.Error("store_close_failed", "error", err)
		}
		return nil
	case err := <-errCh:
		a.proc.Wait()
		_ = store.Close()
		return err
	}
}
