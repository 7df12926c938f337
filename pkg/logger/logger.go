// Package logger provides the process-wide structured logger used by the
// link store and its surrounding services. Logging is async and buffered so
// that merge and query paths never block on I/O to emit a log line.
package logger

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var Log *slog.Logger

// Audit is a dedicated JSON logger for the link store's commit audit trail
// (one record per merge/prune/compact-state commit). Nil until
// AttachAuditSink succeeds; callers that want an audit trail must opt in.
var Audit *slog.Logger

type asyncWriter struct {
	ch chan []byte
}

func (a *asyncWriter) Write(p []byte) (n int, err error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case a.ch <- cp:
		return len(p), nil
	default:
		// drop if queue full to avoid blocking the caller
		return len(p), nil
	}
}

var (
	logCh     chan []byte
	logStopCh chan struct{}
	logWG     sync.WaitGroup
)

// parseLevel maps a level string to a slog.Level, defaulting to Info on an
// empty or unrecognized value.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openSink resolves a sink string ("" for stdout, "file:<path>" for a log
// file) to a writer and the *os.File to close on shutdown, if any. A file
// that fails to open falls back to stdout rather than losing log output.
func openSink(sink string) (*os.File, *bufio.Writer) {
	if path, ok := strings.CutPrefix(sink, "file:"); ok && path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			return f, bufio.NewWriterSize(f, 8192)
		}
		fmt.Fprintf(os.Stderr, "failed to open log sink %s: %v\n", path, err)
	}
	return nil, bufio.NewWriterSize(os.Stdout, 8192)
}

// Init initializes the global slog logger with an async buffered text
// handler. level overrides LINKSTORE_LOG_LEVEL ("debug", "info", "warn",
// "error"); an empty level falls back to the environment variable, then
// info. sink selects the destination ("" for stdout, "file:<path>" for a
// log file); an empty sink falls back to LINKSTORE_LOG_SINK.
func Init(level, sink string) {
	lvl := strings.TrimSpace(level)
	if lvl == "" {
		lvl = os.Getenv("LINKSTORE_LOG_LEVEL")
	}
	if sink == "" {
		sink = os.Getenv("LINKSTORE_LOG_SINK")
	}

	logCh = make(chan []byte, 10000)
	logStopCh = make(chan struct{})
	aw := &asyncWriter{ch: logCh}
	Log = slog.New(slog.NewTextHandler(aw, &slog.HandlerOptions{Level: parseLevel(lvl)}))

	f, buf := openSink(sink)

	logWG.Add(1)
	go func() {
		defer logWG.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case b := <-logCh:
				buf.Write(b)
			case <-ticker.C:
				buf.Flush()
			case <-logStopCh:
				for drained := false; !drained; {
					select {
					case b := <-logCh:
						buf.Write(b)
					default:
						drained = true
					}
				}
				buf.Flush()
				if f != nil {
					f.Close()
				}
				return
			}
		}
	}()
}

// auditRotateMax is the audit log size, in bytes, past which AttachAuditSink
// rotates the existing file aside before opening a fresh one.
const auditRotateMax = 10 * 1024 * 1024

// AttachAuditSink opens (or rotates and recreates) a JSON audit log at path
// and assigns it to Audit. Call this once at startup when an audit trail is
// wanted; the link store's event handlers write one JSON record per commit
// through Audit, independent of the human-readable Log stream.
func AttachAuditSink(path string) error {
	if path == "" {
		return fmt.Errorf("empty audit log path")
	}
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("audit log path is a symlink: %s", path)
		}
		if fi.Size() > auditRotateMax {
			bak := path + "." + strconv.FormatInt(time.Now().UnixNano(), 10)
			if err := os.Rename(path, bak); err != nil {
				return fmt.Errorf("rotating audit log: %w", err)
			}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	Audit = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Audit.Info("audit_sink_attached", "path", path)
	return nil
}

// Sync flushes any buffered logs and stops the background writer.
func Sync() {
	if logStopCh != nil {
		close(logStopCh)
		logWG.Wait()
		logStopCh = nil
	}
}

func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

// Fatalf logs at error level and exits the process. Reserved for
// unrecoverable startup failures (e.g. a corrupt on-disk KV store).
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Error(msg)
	Sync()
	os.Exit(1)
}
