package postgres

import (
	"context"
	"fmt"
	"time"

	"eventcache/internal/domain/record"
	"eventcache/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

// opTimeout bounds every store call so a slow backend cannot stall the
// handler pipeline.
const opTimeout = 5 * time.Second

// RecordRepository is the queryable record store backed by Postgres.
type RecordRepository struct {
	pool  *pgxpool.Pool
	table string
}

func NewRecordRepository(pool *pgxpool.Pool, table string) *RecordRepository {
	return &RecordRepository{pool: pool, table: table}
}

// Insert writes the record, relying on the primary key for atomicity.
// ON CONFLICT DO NOTHING keeps the insert race-free: of two concurrent
// inserts with the same id exactly one reports a row affected.
func (r *RecordRepository) Insert(ctx context.Context, rec *record.HandlingRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_name, recorded_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, r.table)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, query, rec.ID, nullIfEmpty(rec.EventName), rec.RecordedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert handling record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return store.ErrDuplicateKey
	}

	return nil
}

func (r *RecordRepository) DeleteByID(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete handling record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

// FindExpired scans for records whose expiry has passed, optionally narrowed
// to one event name. Used only by the cleanup scheduler, never on the hot
// insertion path.
func (r *RecordRepository) FindExpired(ctx context.Context, now time.Time, eventName string) ([]*record.HandlingRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, COALESCE(event_name, ''), recorded_at, expires_at
		FROM %s
		WHERE expires_at <= $1
	`, r.table)

	args := []any{now.UTC()}
	if eventName != "" {
		query += ` AND event_name = $2`
		args = append(args, eventName)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expired records: %w", err)
	}
	defer rows.Close()

	var records []*record.HandlingRecord
	for rows.Next() {
		rec := &record.HandlingRecord{}
		if err := rows.Scan(&rec.ID, &rec.EventName, &rec.RecordedAt, &rec.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan handling record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired records: %w", err)
	}

	return records, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
