package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// ArchiveType is the source type of the archive.
const ArchiveType = "sqlite"

// Archive stores encoded structures in the database and replays them as
// a record source.
type Archive struct {
	store *Store
}

var _ driven.RecordSource = (*Archive)(nil)

// Type returns the source type identifier.
func (a *Archive) Type() string {
	return ArchiveType
}

// Put stores or replaces a record.
func (a *Archive) Put(ctx context.Context, rec domain.RawRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record id is required", domain.ErrInvalidInput)
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = a.store.db.ExecContext(ctx, `
		INSERT INTO archive (id, content, metadata, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			added_at = excluded.added_at
	`, rec.ID, rec.Content, string(metaJSON), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("archiving %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves one record by ID.
func (a *Archive) Get(ctx context.Context, id string) (*domain.RawRecord, error) {
	row := a.store.db.QueryRowContext(ctx, "SELECT id, content, metadata FROM archive WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// Count returns the number of archived records.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM archive").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting archive: %w", err)
	}
	return n, nil
}

// Records streams every archived record in ID order.
func (a *Archive) Records(ctx context.Context) (<-chan domain.RawRecord, <-chan error) {
	records := make(chan domain.RawRecord)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)

		rows, err := a.store.db.QueryContext(ctx, "SELECT id, content, metadata FROM archive ORDER BY id")
		if err != nil {
			errs <- fmt.Errorf("%w: querying archive: %w", domain.ErrSource, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case records <- *rec:
			}
		}
		if err := rows.Err(); err != nil && ctx.Err() == nil {
			errs <- fmt.Errorf("%w: iterating archive: %w", domain.ErrSource, err)
		}
	}()

	return records, errs
}

// Close is a no-op; the Store owns the connection.
func (a *Archive) Close() error {
	return nil
}

func scanRecord(row scanner) (*domain.RawRecord, error) {
	var (
		rec      domain.RawRecord
		metadata sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Content, &metadata); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scanning archive row: %w", domain.ErrSource, err)
	}
	if metadata.Valid && metadata.String != "" && metadata.String != jsonNull {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			return nil, &driven.RecordError{ID: rec.ID, Err: fmt.Errorf("%w: metadata: %w", domain.ErrSource, err)}
		}
	}
	if rec.Metadata == nil {
		rec.Metadata = make(map[string]any)
	}
	rec.Metadata["source"] = ArchiveType
	return &rec, nil
}

// jsonNull is the JSON representation of null.
const jsonNull = "null"
