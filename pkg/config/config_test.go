package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/var/lib/chatdb"
security:
  rate_limit:
    rps: 10
    burst: 20
  api_keys:
    backend: ["bk1"]
    frontend: ["fk1"]
feed:
  limit: 25
ingest:
  workers: 4
  flush_interval: 100ms
uploads:
  max_bytes: "4 MiB"
  jpeg_quality: 70
janitor:
  enabled: true
  cron: "*/10 * * * *"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "/var/lib/chatdb", cfg.Server.DBPath)
	assert.Equal(t, 25, cfg.Feed.Limit)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Ingest.FlushInterval.Std())
	assert.Equal(t, ByteSize(4<<20), cfg.Uploads.MaxBytes)
	assert.Equal(t, 70, cfg.Uploads.Quality)
	assert.Equal(t, []string{"bk1"}, cfg.Security.APIKeys.Backend)
	// defaults still fill the gaps
	assert.Equal(t, 256, cfg.Ingest.MaxBatchIDs)
	assert.Equal(t, 1920, cfg.Uploads.FullEdge)
}

func TestDurationForms(t *testing.T) {
	path := writeConfig(t, "ingest:\n  flush_interval: 500\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	// bare numbers are milliseconds
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.FlushInterval.Std())

	path = writeConfig(t, "ingest:\n  flush_interval: 2s\n")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Ingest.FlushInterval.Std())

	path = writeConfig(t, "ingest:\n  flush_interval: sometimes\n")
	_, err = Load(path)
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "./.database", cfg.Server.DBPath)
	assert.Equal(t, 50, cfg.Feed.Limit)
	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.FlushInterval.Std())
	assert.Equal(t, ByteSize(8<<20), cfg.Uploads.MaxBytes)
	assert.Equal(t, "*/5 * * * *", cfg.Janitor.Cron)
}

func TestLoadEffectivePrecedence(t *testing.T) {
	path := writeConfig(t, "server:\n  address: \"127.0.0.1\"\n  port: 7000\n  db_path: \"/cfg/db\"\n")

	t.Setenv("CHATDB_ADDR", ":7100")
	eff, err := LoadEffective(Flags{Config: path, Set: map[string]bool{"config": true}})
	require.NoError(t, err)
	assert.Equal(t, ":7100", eff.Addr)
	assert.Equal(t, "/cfg/db", eff.DBPath)
	assert.Equal(t, "env", eff.Source)

	// flags outrank env
	eff, err = LoadEffective(Flags{
		Addr:   ":7200",
		Config: path,
		Set:    map[string]bool{"config": true, "addr": true},
	})
	require.NoError(t, err)
	assert.Equal(t, ":7200", eff.Addr)
	assert.Equal(t, "flags", eff.Source)
}

func TestLoadEffectiveMissingFileFallsBack(t *testing.T) {
	eff, err := LoadEffective(Flags{Config: filepath.Join(t.TempDir(), "nope.yaml"), Set: map[string]bool{"config": true}})
	require.NoError(t, err)
	assert.Equal(t, ":8080", eff.Addr)
}

func TestRuntimeKeyCopies(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		BackendKeys: map[string]struct{}{"bk": {}},
		SigningKeys: map[string]struct{}{"sk": {}},
	})
	defer SetRuntime(nil)

	got := GetSigningKeys()
	got["mutated"] = struct{}{}
	// mutating the copy must not leak into the runtime set
	assert.Len(t, GetSigningKeys(), 1)
	assert.Contains(t, GetBackendKeys(), "bk")
}
