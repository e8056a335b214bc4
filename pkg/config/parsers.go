package config

import (
	"flag"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult is the merged view of flags, environment and config
// file. Source records which layer supplied the listen address and DB path.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "env", or "config"
}

// envOverrides mirrors the environment variables honored at startup.
// Precedence: flags > env > config file.
type envOverrides struct {
	Addr         string   `envconfig:"ADDR"`
	DBPath       string   `envconfig:"DB_PATH"`
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	BackendKeys  []string `envconfig:"BACKEND_KEYS"`
	FrontendKeys []string `envconfig:"FRONTEND_KEYS"`
	AdminKeys    []string `envconfig:"ADMIN_KEYS"`
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ResolveConfigPath picks the config file path: an explicit flag wins,
// then CHATDB_CONFIG, then the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if p := strings.TrimSpace(os.Getenv("CHATDB_CONFIG")); p != "" {
		return p
	}
	return flagVal
}

// LoadEffective merges the config file, environment overrides and flags
// into an EffectiveConfigResult.
func LoadEffective(flags Flags) (EffectiveConfigResult, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return EffectiveConfigResult{}, err
		}
		cfg = Default()
	}

	var env envOverrides
	if err := envconfig.Process("CHATDB", &env); err != nil {
		return EffectiveConfigResult{}, err
	}

	eff := EffectiveConfigResult{Config: cfg, Addr: cfg.Addr(), DBPath: cfg.Server.DBPath, Source: "config"}
	if env.Addr != "" {
		eff.Addr = env.Addr
		eff.Source = "env"
	}
	if env.DBPath != "" {
		eff.DBPath = env.DBPath
		eff.Source = "env"
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if len(env.BackendKeys) > 0 {
		cfg.Security.APIKeys.Backend = append(cfg.Security.APIKeys.Backend, env.BackendKeys...)
	}
	if len(env.FrontendKeys) > 0 {
		cfg.Security.APIKeys.Frontend = append(cfg.Security.APIKeys.Frontend, env.FrontendKeys...)
	}
	if len(env.AdminKeys) > 0 {
		cfg.Security.APIKeys.Admin = append(cfg.Security.APIKeys.Admin, env.AdminKeys...)
	}
	if flags.Set["addr"] {
		eff.Addr = flags.Addr
		eff.Source = "flags"
	}
	if flags.Set["db"] {
		eff.DBPath = flags.DB
		eff.Source = "flags"
	}
	return eff, nil
}
