package storage

import (
	"context"
	"errors"
)

// Record is one completed transfer.
type Record struct {
	URL      string `json:"url" yaml:"url"`
	FilePath string `json:"file_path" yaml:"file_path"`
}

// ErrCorruptHistory is returned when the persisted history cannot be decoded.
var ErrCorruptHistory = errors.New("history store is corrupt")

// HistoryRepository is an append-only, ordered list of completed transfers.
// Load on an absent store returns an empty slice, never an error.
type HistoryRepository interface {
	Append(ctx context.Context, record Record) error
	Load(ctx context.Context) ([]Record, error)
}
