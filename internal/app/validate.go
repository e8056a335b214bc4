package app

import (
	"fmt"
	"strings"

	"chatdb/pkg/config"
)

// validateConfig checks the effective config early so startup fails fast
// with a readable error instead of a half-wired server.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.Config == nil {
		return fmt.Errorf("no config loaded")
	}
	if strings.TrimSpace(eff.Addr) == "" {
		return fmt.Errorf("empty listen address")
	}
	if strings.TrimSpace(eff.DBPath) == "" {
		return fmt.Errorf("empty db path")
	}
	cfg := eff.Config
	if cfg.Security.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must be >= 0")
	}
	if cfg.Security.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.burst must be >= 0")
	}
	if cfg.Feed.Limit < 0 {
		return fmt.Errorf("feed.limit must be >= 0")
	}
	if cfg.Uploads.ThumbEdge > cfg.Uploads.FullEdge {
		return fmt.Errorf("uploads.thumb_edge larger than uploads.full_edge")
	}
	return nil
}
