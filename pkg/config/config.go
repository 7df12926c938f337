// Package config loads and validates node configuration: the storage path
// for the embedded KV engine, link-store tuning knobs, the prune schedule,
// and the per-fid merge rate limit.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/goccy/go-yaml"

	"github.com/farcasterxyz/linkstore/pkg/logger"
)

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *Config
)

// Default sets a link store runs with if no config file is provided.
func Default() *Config {
	var c Config
	b, _ := yaml.Marshal(struct{}{})
	_ = yaml.Unmarshal(b, &c) // populate `default=` tags with no overrides
	return &c
}

// SetRuntime publishes the active config for other packages to read.
func SetRuntime(c *Config) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = c
}

// GetRuntime returns the active config, or nil if none has been set yet.
func GetRuntime() *Config {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	return runtimeCfg
}

// Load reads and parses a YAML config file, applying field defaults and
// running Validate on the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		// Unmarshal an empty document so `default=` struct tags still apply.
		if err := yaml.Unmarshal([]byte("{}"), &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills in any zero-valued field left over from defaulting (a
// non-positive rate-limit value is replaced by its default too) and rejects
// an invalid prune cron expression when the prune sweep is enabled.
func (c *Config) Validate() error {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "./data/links"
	}
	if c.Link.PruneSizeLimit == 0 {
		c.Link.PruneSizeLimit = 2500
	}
	if c.Link.PageSizeMax == 0 {
		c.Link.PageSizeMax = 1000
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 100
	}
	if c.RateLimit.TTL.Duration() <= 0 {
		c.RateLimit.TTL = Duration(10 * time.Minute)
	}
	if c.RateLimit.CleanupPeriod.Duration() <= 0 {
		c.RateLimit.CleanupPeriod = Duration(time.Minute)
	}
	if c.Prune.Cron == "" {
		c.Prune.Cron = "0 */6 * * *"
	}
	if c.Prune.Enabled && !gronx.IsValid(c.Prune.Cron) {
		return fmt.Errorf("invalid prune cron expression: %s", c.Prune.Cron)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}

// ResolveConfigPath prefers an explicit flag value, then LINKSTORE_CONFIG.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("LINKSTORE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// LogSummary prints the effective configuration at startup, matching the
// node's habit of surfacing config decisions before accepting traffic.
func LogSummary(c *Config) {
	logger.Info("config_loaded",
		"db_path", c.Storage.DBPath,
		"prune_size_limit", c.Link.PruneSizeLimit,
		"page_size_max", c.Link.PageSizeMax,
		"prune_enabled", c.Prune.Enabled,
		"prune_cron", c.Prune.Cron,
		"rate_limit_rps", c.RateLimit.RPS,
		"rate_limit_burst", c.RateLimit.Burst,
		"rate_limit_ttl", c.RateLimit.TTL.Duration(),
		"rate_limit_cleanup_period", c.RateLimit.CleanupPeriod.Duration(),
	)
}
