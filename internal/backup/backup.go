// Package backup archives a simulated dataset before a full reset wipes it.
//
// A backup file is one JSON header line followed by a gzip-compressed JSON
// payload holding every row of every table, deleted rows included.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/nvandessel/streamsim/internal/store"
)

const (
	filePrefix = "streamsim-backup-"
	fileExt    = ".bak"
)

// Source provides the dataset to archive.
type Source interface {
	LoadDataset(ctx context.Context) (*store.Dataset, error)
}

// GeneratePath creates a timestamped backup filename in dir. The xid suffix
// keeps names unique within one second.
func GeneratePath(dir string, now time.Time) string {
	ts := now.UTC().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s-%s%s", filePrefix, ts, xid.New().String(), fileExt))
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt)
}

// Archiver writes a backup of its source and prunes old ones.
type Archiver struct {
	src    Source
	dir    string
	keep   int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithClock overrides the wall clock used for file names and headers.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) { a.now = now }
}

// WithLogger sets the logger for pruning messages.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archiver) { a.logger = l }
}

// NewArchiver returns an Archiver writing into dir. keep <= 0 disables
// pruning.
func NewArchiver(src Source, dir string, keep int, opts ...Option) *Archiver {
	a := &Archiver{
		src:    src,
		dir:    dir,
		keep:   keep,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dir returns the backup directory.
func (a *Archiver) Dir() string { return a.dir }

// Archive writes the current dataset to a new backup file and returns its path.
func (a *Archiver) Archive(ctx context.Context) (string, error) {
	ds, err := a.src.LoadDataset(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load dataset: %w", err)
	}

	now := a.now().UTC()
	path := GeneratePath(a.dir, now)
	if err := Write(path, &Archive{Version: FormatVersion, CreatedAt: now, Dataset: ds}); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	if a.keep > 0 {
		deleted, err := ApplyRetention(a.dir, &CountPolicy{MaxCount: a.keep})
		if err != nil {
			a.logger.Warn("failed to prune backups", "dir", a.dir, "error", err)
		}
		for _, d := range deleted {
			a.logger.Debug("pruned backup", "path", d)
		}
	}
	return path, nil
}
