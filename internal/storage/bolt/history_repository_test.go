package bolt_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/storage/bolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepository_EmptyLoad(t *testing.T) {
	repo, err := bolt.NewHistoryRepository(filepath.Join(t.TempDir(), "history.bolt"))
	require.NoError(t, err)
	defer repo.Close()

	records, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestHistoryRepository_OrderSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.bolt")

	repo, err := bolt.NewHistoryRepository(path)
	require.NoError(t, err)

	// more than 255 entries checks keys sort numerically, not lexically
	var want []storage.Record
	for i := 0; i < 300; i++ {
		r := storage.Record{URL: fmt.Sprintf("http://h/%d", i), FilePath: fmt.Sprintf("/tmp/%d", i)}
		want = append(want, r)
		require.NoError(t, repo.Append(context.Background(), r))
	}

	require.NoError(t, repo.Close())

	repo, err = bolt.NewHistoryRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
