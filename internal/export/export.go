// Package export writes a dataset, or one day's slice of it, as pipeline
// fixtures: one file per table, either Arrow IPC or JSON lines.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/streamsim/internal/simerr"
	"github.com/nvandessel/streamsim/internal/store"
)

// Format names an output encoding.
type Format string

const (
	FormatArrow Format = "arrow"
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatArrow, FormatJSONL:
		return f, nil
	default:
		return "", simerr.Configuration("export.format", "unknown format %q (valid: arrow, jsonl)", s)
	}
}

// Ext returns the file extension of the format.
func (f Format) Ext() string {
	if f == FormatArrow {
		return ".arrow"
	}
	return ".jsonl"
}

// Write writes users, posts, events and ledger files for ds into dir and
// returns their paths.
func Write(ds *store.Dataset, dir string, format Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	var writers []tableWriter
	switch format {
	case FormatArrow:
		writers = arrowWriters(ds)
	case FormatJSONL:
		writers = jsonlWriters(ds)
	default:
		return nil, simerr.Configuration("export.write", "unknown format %q", format)
	}

	paths := make([]string, 0, len(writers))
	for _, tw := range writers {
		path := filepath.Join(dir, tw.name+format.Ext())
		if err := writeFile(path, tw.write); err != nil {
			return paths, fmt.Errorf("failed to export %s: %w", tw.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// tableWriter encodes one table.
type tableWriter struct {
	name  string
	write func(f *os.File) error
}

// writeFile writes through a temp file and renames it into place.
func writeFile(path string, write func(f *os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
