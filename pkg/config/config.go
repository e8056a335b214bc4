package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetBackendKeys returns a copy of configured backend keys.
func GetBackendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.BackendKeys == nil {
		return out
	}
	for k := range runtimeCfg.BackendKeys {
		out[k] = struct{}{}
	}
	return out
}

// GetSigningKeys returns a copy of configured signing keys.
func GetSigningKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.SigningKeys == nil {
		return out
	}
	for k := range runtimeCfg.SigningKeys {
		out[k] = struct{}{}
	}
	return out
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" && c.Server.Port == 0 {
		c.Server.Address = ":8080"
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = "./.database"
	}
	if c.Feed.Limit <= 0 {
		c.Feed.Limit = 50
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 2
	}
	if c.Ingest.QueueCapacity <= 0 {
		c.Ingest.QueueCapacity = 16 * 1024
	}
	if c.Ingest.MaxBatchIDs <= 0 {
		c.Ingest.MaxBatchIDs = 256
	}
	if c.Ingest.FlushInterval <= 0 {
		c.Ingest.FlushInterval = Duration(250 * 1e6) // 250ms
	}
	if c.Uploads.MaxBytes == 0 {
		c.Uploads.MaxBytes = 8 << 20
	}
	if c.Uploads.FullEdge <= 0 {
		c.Uploads.FullEdge = 1920
	}
	if c.Uploads.ThumbEdge <= 0 {
		c.Uploads.ThumbEdge = 200
	}
	if c.Uploads.Quality <= 0 || c.Uploads.Quality > 100 {
		c.Uploads.Quality = 85
	}
	if c.Janitor.Cron == "" {
		c.Janitor.Cron = "*/5 * * * *"
	}
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}
