package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultPopulatesDefaultTags(t *testing.T) {
	c := Default()
	require.Equal(t, "./data/links", c.Storage.DBPath)
	require.Equal(t, uint32(2500), c.Link.PruneSizeLimit)
	require.Equal(t, uint32(1000), c.Link.PageSizeMax)
	require.True(t, c.Prune.Enabled)
	require.Equal(t, "info", c.Logging.Level)
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "./data/links", c.Storage.DBPath)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "storage:\n  db_path: /tmp/custom\nlink:\n  prune_size_limit: 99\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom", c.Storage.DBPath)
	require.Equal(t, uint32(99), c.Link.PruneSizeLimit)
}

func TestValidateRejectsInvalidCron(t *testing.T) {
	c := Default()
	c.Prune.Enabled = true
	c.Prune.Cron = "not a cron expression"
	require.Error(t, c.Validate())
}

func TestResolveConfigPathPrefersFlag(t *testing.T) {
	t.Setenv("LINKSTORE_CONFIG", "/from/env.yaml")
	require.Equal(t, "/from/flag.yaml", ResolveConfigPath("/from/flag.yaml", true))
}

func TestResolveConfigPathFallsBackToEnv(t *testing.T) {
	t.Setenv("LINKSTORE_CONFIG", "/from/env.yaml")
	require.Equal(t, "/from/env.yaml", ResolveConfigPath("", false))
}

func TestSetAndGetRuntime(t *testing.T) {
	c := Default()
	SetRuntime(c)
	require.Same(t, c, GetRuntime())
}

func TestDefaultPopulatesRateLimitDurations(t *testing.T) {
	c := Default()
	require.Equal(t, 10*time.Minute, c.RateLimit.TTL.Duration())
	require.Equal(t, time.Minute, c.RateLimit.CleanupPeriod.Duration())
}

func TestValidateFillsZeroRateLimitDurations(t *testing.T) {
	c := Default()
	c.RateLimit.TTL = 0
	c.RateLimit.CleanupPeriod = 0
	require.NoError(t, c.Validate())
	require.Equal(t, 10*time.Minute, c.RateLimit.TTL.Duration())
	require.Equal(t, time.Minute, c.RateLimit.CleanupPeriod.Duration())
}

func TestLoadFromFileOverridesRateLimitDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "rate_limit:\n  ttl: 30s\n  cleanup_period: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, c.RateLimit.TTL.Duration())
	require.Equal(t, 5*time.Second, c.RateLimit.CleanupPeriod.Duration())
}

func TestLoadFromFileSetsLoggingSinkAndAuditPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "logging:\n  sink: \"file:/tmp/links.log\"\n  audit_log_path: /tmp/links-audit.log\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "file:/tmp/links.log", c.Logging.Sink)
	require.Equal(t, "/tmp/links-audit.log", c.Logging.AuditLogPath)
}
