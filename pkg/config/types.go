package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds runtime key sets for use by other packages.
type RuntimeConfig struct {
	BackendKeys map[string]struct{}
	SigningKeys map[string]struct{}
}

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Feed     FeedConfig     `yaml:"feed"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Janitor  JanitorConfig  `yaml:"janitor"`
}

// ServerConfig holds http listener and storage settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	if c.Server.Port == 0 {
		return c.Server.Address
	}
	return c.Server.Address + ":" + strconv.Itoa(c.Server.Port)
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
		Admin    []string `yaml:"admin"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// FeedConfig bounds the live message feed.
type FeedConfig struct {
	// Limit is the snapshot window size (messages). Default 50.
	Limit int `yaml:"limit"`
}

// IngestConfig holds the async read-mark pipeline settings.
type IngestConfig struct {
	Workers       int      `yaml:"workers"`
	QueueCapacity int      `yaml:"queue_capacity"`
	MaxBatchIDs   int      `yaml:"max_batch_ids"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// UploadsConfig controls the image derivative pipeline.
type UploadsConfig struct {
	// MaxBytes is a humanized size ("8 MiB"); zero means the default.
	MaxBytes  ByteSize `yaml:"max_bytes"`
	FullEdge  int      `yaml:"full_edge"`
	ThumbEdge int      `yaml:"thumb_edge"`
	Quality   int      `yaml:"jpeg_quality"`
}

// JanitorConfig holds the scheduled stats sampler settings.
type JanitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// Duration wraps time.Duration so YAML may carry either a bare number of
// milliseconds or a Go duration string ("250ms", "2s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asInt int64
	if err := value.Decode(&asInt); err == nil {
		*d = Duration(time.Duration(asInt) * time.Millisecond)
		return nil
	}
	var asStr string
	if err := value.Decode(&asStr); err != nil {
		return err
	}
	dur, err := time.ParseDuration(asStr)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", asStr, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// ByteSize parses humanized sizes ("8 MiB", "512kb") or bare byte counts.
type ByteSize uint64

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var asInt uint64
	if err := value.Decode(&asInt); err == nil {
		*b = ByteSize(asInt)
		return nil
	}
	var asStr string
	if err := value.Decode(&asStr); err != nil {
		return err
	}
	n, err := humanize.ParseBytes(asStr)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", asStr, err)
	}
	*b = ByteSize(n)
	return nil
}
