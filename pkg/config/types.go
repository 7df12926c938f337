package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml/ast"
)

// Config is the top-level configuration for a link store node.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Link      LinkConfig      `yaml:"link"`
	Prune     PruneConfig     `yaml:"prune"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig controls the embedded ordered KV engine.
type StorageConfig struct {
	DBPath      string    `yaml:"db_path,default=./data/links"`
	DisableWAL  bool      `yaml:"disable_wal,default=false"`
	CacheSize   SizeBytes `yaml:"cache_size,default=64MB"`
	BytesPerSync int64    `yaml:"bytes_per_sync,default=0"`
}

// LinkConfig holds the CRDT-level tuning knobs named by the link store spec.
type LinkConfig struct {
	// PruneSizeLimit is the per-fid retention ceiling.
	PruneSizeLimit uint32 `yaml:"prune_size_limit,default=2500"`
	// PageSizeMax bounds a single query page (PAGE_SIZE_MAX).
	PageSizeMax uint32 `yaml:"page_size_max,default=1000"`
}

// PruneConfig controls the background cron-scheduled prune sweep. Prune-size
// configuration itself is an external collaborator concern; the schedule
// that invokes it is local to this node.
type PruneConfig struct {
	Enabled bool   `yaml:"enabled,default=true"`
	Cron    string `yaml:"cron,default=0 */6 * * *"` // every 6 hours
}

// RateLimitConfig throttles merge throughput per fid, guarding the shared KV
// handle from a single noisy producer task. Idle per-fid limiter entries are
// reclaimed after TTL, checked every CleanupPeriod.
type RateLimitConfig struct {
	RPS           float64  `yaml:"rps,default=50"`
	Burst         int      `yaml:"burst,default=100"`
	TTL           Duration `yaml:"ttl,default=10m"`
	CleanupPeriod Duration `yaml:"cleanup_period,default=1m"`
}

// LoggingConfig holds logging configuration. Sink selects where the main
// logger writes ("" for stdout, "file:<path>" for a log file). AuditLogPath,
// when set, attaches a dedicated JSON audit logger that records every merge,
// prune, and compact-state commit.
type LoggingConfig struct {
	Level        string `yaml:"level,default=info"`
	Sink         string `yaml:"sink"`
	AuditLogPath string `yaml:"audit_log_path"`
}

// SizeBytes is a byte count unmarshaled from a YAML string holding either a
// human-friendly size like "64MB" or a plain byte count like "1024". Only
// string nodes are accepted; an unquoted YAML number is rejected.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node ast.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	stringNode, ok := node.(*ast.StringNode)
	if !ok {
		return fmt.Errorf("expected string node for SizeBytes, got %T", node)
	}
	raw := strings.TrimSpace(stringNode.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", stringNode.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.Bytes(uint64(s)) }

// Duration wraps time.Duration for YAML parsing from strings like "100ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node ast.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	stringNode, ok := node.(*ast.StringNode)
	if !ok {
		return fmt.Errorf("expected string node for Duration, got %T", node)
	}
	raw := strings.TrimSpace(stringNode.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", stringNode.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
