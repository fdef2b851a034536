package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/italolelis/grabber/internal/storage"
)

const (
	filePerm = 0644
	dirPerm  = 0755
	indent   = "    "
)

// Store keeps the history as a pretty-printed JSON array in a single file.
// Appends are serialized; the file is rewritten in full each time.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by path. The file is created on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Append reads the current history, appends record and writes it back.
func (s *Store) Append(ctx context.Context, record storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}

	return s.write(append(records, record))
}

// Load returns the persisted history, or an empty slice if the file is absent.
func (s *Store) Load(ctx context.Context) ([]storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read()
}

func (s *Store) read() ([]storage.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []storage.Record{}, nil
		}

		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []storage.Record{}, nil
	}

	var records []storage.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", storage.ErrCorruptHistory, s.path, err)
	}

	if records == nil {
		records = []storage.Record{}
	}

	return records, nil
}

// write replaces the file through a temp file in the same directory so a
// reader never observes a partially written array.
func (s *Store) write(records []storage.Record) error {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)

	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to write history: %w", err)
	}

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to chmod history: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}

	return nil
}
