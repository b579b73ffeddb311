// Package logging provides leveled logging and cycle tracing for streamsim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A CycleTrace for structured JSONL traces of every engine decision
//     (.streamsim/cycles.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level the trace
// also records per-row decisions (selected ids, session bounds).
const LevelTrace = slog.LevelDebug - 4

// TraceFile is the name of the cycle trace inside the data directory.
const TraceFile = "cycles.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// KnownLevel reports whether s names a supported level.
func KnownLevel(s string) bool {
	switch strings.ToLower(s) {
	case "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// CycleTrace writes structured cycle events to a JSONL file.
// It is safe for concurrent use. A nil CycleTrace is safe to use;
// all methods are no-ops on nil receiver.
type CycleTrace struct {
	mu      sync.Mutex
	file    *os.File
	verbose bool
}

// NewCycleTrace creates a trace writing to dir/cycles.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewCycleTrace(dir string, level string) *CycleTrace {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, TraceFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &CycleTrace{file: f, verbose: lvl <= LevelTrace}
}

// Verbose reports whether per-row detail should be recorded.
func (ct *CycleTrace) Verbose() bool {
	return ct != nil && ct.verbose
}

// Record writes one event as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
// Safe to call on nil receiver.
func (ct *CycleTrace) Record(event map[string]any) {
	if ct == nil || ct.file == nil {
		return
	}

	// Copy to avoid mutating caller's map
	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	ct.mu.Lock()
	defer ct.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = ct.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (ct *CycleTrace) Close() {
	if ct == nil || ct.file == nil {
		return
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.file.Close()
	ct.file = nil
}
