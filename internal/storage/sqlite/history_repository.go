package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/grabber/internal/storage"
)

// HistoryRepository implements storage.HistoryRepository on SQLite.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.HistoryRepository = (*HistoryRepository)(nil)

func NewHistoryRepository(dbConn *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: dbConn, now: time.Now}
}

func (r *HistoryRepository) Append(ctx context.Context, record storage.Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO history (url, file_path, downloaded_at) VALUES (?, ?, ?)`,
		record.URL, record.FilePath, r.now().Format(time.RFC3339),
	)

	return err
}

// Load returns every record in insertion order.
func (r *HistoryRepository) Load(ctx context.Context) ([]storage.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT url, file_path FROM history ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []storage.Record{}

	for rows.Next() {
		var record storage.Record
		if err := rows.Scan(&record.URL, &record.FilePath); err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}
