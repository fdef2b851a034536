package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepository struct {
	records []storage.Record
	err     error
}

func (m *memoryRepository) Append(ctx context.Context, record storage.Record) error {
	if m.err != nil {
		return m.err
	}

	m.records = append(m.records, record)

	return nil
}

func (m *memoryRepository) Load(ctx context.Context) ([]storage.Record, error) {
	if m.err != nil {
		return nil, m.err
	}

	return m.records, nil
}

func TestInstrumentedHistoryRepository_Delegates(t *testing.T) {
	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)

	inner := &memoryRepository{}
	repo := storage.NewInstrumentedHistoryRepository(inner, tel, "memory")

	require.NoError(t, repo.Append(context.Background(), storage.Record{URL: "http://a/1", FilePath: "/tmp/1"}))
	require.NoError(t, repo.Append(context.Background(), storage.Record{URL: "http://a/2", FilePath: "/tmp/2"}))

	records, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []storage.Record{
		{URL: "http://a/1", FilePath: "/tmp/1"},
		{URL: "http://a/2", FilePath: "/tmp/2"},
	}, records)
}

func TestInstrumentedHistoryRepository_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	repo := storage.NewInstrumentedHistoryRepository(&memoryRepository{err: boom}, nil, "memory")

	require.ErrorIs(t, repo.Append(context.Background(), storage.Record{}), boom)

	records, err := repo.Load(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Nil(t, records)
}
