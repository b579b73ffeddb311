package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/streamsim/internal/store"
)

// FormatVersion is the current archive layout.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed payload (1GB).
const MaxDecompressedSize = 1 << 30

// Archive is the payload of a backup file.
type Archive struct {
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Dataset   *store.Dataset `json:"dataset"`
}

// Header is the plain-text first line of a backup file. It can be read
// without touching the compressed payload.
type Header struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Checksum   string    `json:"checksum"`
	IDStrategy string    `json:"id_strategy"`
	Users      int       `json:"users"`
	Posts      int       `json:"posts"`
	Events     int       `json:"events"`
	LedgerRows int       `json:"ledger_rows"`
	LastDay    string    `json:"last_day,omitempty"`
}

func newHeader(a *Archive, checksum string) Header {
	h := Header{
		Version:   FormatVersion,
		CreatedAt: a.CreatedAt,
		Checksum:  checksum,
	}
	if ds := a.Dataset; ds != nil {
		h.IDStrategy = ds.IDStrategy
		h.Users = len(ds.Users)
		h.Posts = len(ds.Posts)
		h.Events = len(ds.Events)
		h.LedgerRows = len(ds.Ledger)
		if n := len(ds.Ledger); n > 0 {
			h.LastDay = ds.Ledger[n-1].SimDay.Format("2006-01-02")
		}
	}
	return h
}

func checksumOf(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Write stores a as a header line followed by the gzip-compressed JSON payload.
func Write(path string, a *Archive) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	headerBytes, err := json.Marshal(newHeader(a, checksumOf(compressed.Bytes())))
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	headerBytes = append(headerBytes, '\n')
	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing compressed payload: %w", err)
	}
	return f.Close()
}

// open reads the header of path and returns a reader positioned at the payload.
func open(path string) (*os.File, *bufio.Reader, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening file: %w", err)
	}

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, nil, nil, fmt.Errorf("unsupported backup version %d", header.Version)
	}
	return f, reader, &header, nil
}

// readPayload reads the compressed payload and checks it against the header.
func readPayload(r io.Reader, header *Header) ([]byte, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksumOf(compressed); actual != header.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return compressed, nil
}

// Read loads and verifies a backup file.
func Read(path string) (*Archive, error) {
	f, reader, header, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	compressed, err := readPayload(reader, header)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var a Archive
	if err := json.Unmarshal(decompressed, &a); err != nil {
		return nil, fmt.Errorf("parsing backup data: %w", err)
	}
	return &a, nil
}

// ReadHeader reads only the header line of a backup file.
func ReadHeader(path string) (*Header, error) {
	f, _, header, err := open(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	return header, nil
}

// VerifyChecksum checks the payload of a backup file without decompressing it.
func VerifyChecksum(path string) error {
	f, reader, header, err := open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = readPayload(reader, header)
	return err
}
