package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/italolelis/grabber/internal/storage"
	"go.etcd.io/bbolt"
)

const historyBucket = "history"

// HistoryRepository implements storage.HistoryRepository on a bbolt file.
// Keys are the bucket sequence in big-endian so cursor order is append order.
type HistoryRepository struct {
	db *bbolt.DB
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository opens (or creates) the database at path.
func NewHistoryRepository(path string) (*HistoryRepository, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucket))

		return err
	})
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}

	return &HistoryRepository{db: db}, nil
}

// Close releases the database file lock.
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}

func (r *HistoryRepository) Append(ctx context.Context, record storage.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		return b.Put(key, data)
	})
}

func (r *HistoryRepository) Load(ctx context.Context) ([]storage.Record, error) {
	records := []storage.Record{}

	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(historyBucket)).ForEach(func(k, v []byte) error {
			var record storage.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("%w: key %x: %v", storage.ErrCorruptHistory, k, err)
			}

			records = append(records, record)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
