package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitPopulatesGlobalLogger(t *testing.T) {
	Init("debug", "")
	defer Sync()
	require.NotNil(t, Log)
	require.True(t, Log.Enabled(nil, -4)) // slog.LevelDebug
}

func TestInitDefaultsToInfoOnUnknownLevel(t *testing.T) {
	Init("not-a-level", "")
	defer Sync()
	require.False(t, Log.Enabled(nil, -4)) // debug disabled at info level
	require.True(t, Log.Enabled(nil, 0))   // slog.LevelInfo
}

func TestInitWithFileSinkWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	Init("info", "file:"+path)
	Info("hello_file_sink")
	Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "hello_file_sink")
}

func TestInitFallsBackToStdoutOnUnopenableSink(t *testing.T) {
	require.NotPanics(t, func() {
		Init("info", "file:/nonexistent-dir/does-not-exist/node.log")
		Info("still works")
		Sync()
	})
}

func TestLogCallsAreNoopsBeforeInit(t *testing.T) {
	Log = nil
	require.NotPanics(t, func() {
		Debug("msg")
		Info("msg")
		Warn("msg")
		Error("msg")
	})
}

func TestSyncIsSafeToCallWithoutInit(t *testing.T) {
	logStopCh = nil
	require.NotPanics(t, Sync)
}

func TestAttachAuditSinkWritesJSONRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, AttachAuditSink(path))
	require.NotNil(t, Audit)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "audit_sink_attached")
}

func TestAttachAuditSinkRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.log")
	require.NoError(t, os.WriteFile(real, []byte("x"), 0o600))
	link := filepath.Join(dir, "audit.log")
	require.NoError(t, os.Symlink(real, link))

	require.Error(t, AttachAuditSink(link))
}

func TestAttachAuditSinkRejectsEmptyPath(t *testing.T) {
	require.Error(t, AttachAuditSink(""))
}
