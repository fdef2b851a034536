package storage

import (
	"context"

	"github.com/italolelis/grabber/internal/telemetry"
)

// InstrumentedHistoryRepository wraps a HistoryRepository with telemetry.
type InstrumentedHistoryRepository struct {
	repo      HistoryRepository
	telemetry *telemetry.Telemetry
	backend   string
}

// NewInstrumentedHistoryRepository creates a new instrumented history repository.
func NewInstrumentedHistoryRepository(repo HistoryRepository, tel *telemetry.Telemetry, backend string) *InstrumentedHistoryRepository {
	return &InstrumentedHistoryRepository{
		repo:      repo,
		telemetry: tel,
		backend:   backend,
	}
}

// Append appends a record with telemetry.
func (r *InstrumentedHistoryRepository) Append(ctx context.Context, record Record) error {
	return r.telemetry.InstrumentHistoryOperation(ctx, r.backend, "append", func(ctx context.Context) error {
		return r.repo.Append(ctx, record)
	})
}

// Load loads all records with telemetry.
func (r *InstrumentedHistoryRepository) Load(ctx context.Context) ([]Record, error) {
	var result []Record

	var err error

	instrumentedErr := r.telemetry.InstrumentHistoryOperation(ctx, r.backend, "load", func(ctx context.Context) error {
		result, err = r.repo.Load(ctx)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
