package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
)

// manifestStore implements driven.ManifestStore.
type manifestStore struct {
	store *Store
}

var _ driven.ManifestStore = (*manifestStore)(nil)

const runColumns = `id, started_at, inputs, decoded, failed, excluded_structures, excluded_chains,
	records, partitions, abandoned, duration_ns, cancelled`

// SaveRun stores a run summary and replaces its manifest entries.
func (s *manifestStore) SaveRun(ctx context.Context, run domain.RunSummary, manifest []domain.ManifestEntry) error {
	if run.RunID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	st := run.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			inputs = excluded.inputs,
			decoded = excluded.decoded,
			failed = excluded.failed,
			excluded_structures = excluded.excluded_structures,
			excluded_chains = excluded.excluded_chains,
			records = excluded.records,
			partitions = excluded.partitions,
			abandoned = excluded.abandoned,
			duration_ns = excluded.duration_ns,
			cancelled = excluded.cancelled
	`, run.RunID, formatTime(run.StartedAt), st.Inputs, st.Decoded, st.Failed,
		st.ExcludedStructures, st.ExcludedChains, st.Records, st.Partitions, st.Abandoned,
		int64(st.Duration), boolToInt(run.Cancelled))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM manifest_entries WHERE run_id = ?", run.RunID); err != nil {
		return fmt.Errorf("clearing manifest: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO manifest_entries (run_id, seq, record_id, kind, stage, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing manifest insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range manifest {
		if _, err := stmt.ExecContext(ctx, run.RunID, i, e.ID, string(e.Kind), string(e.Stage), nullString(e.Message)); err != nil {
			return fmt.Errorf("saving manifest entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// GetRun retrieves a run summary by ID.
func (s *manifestStore) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs, most recent first.
func (s *manifestStore) ListRuns(ctx context.Context) ([]domain.RunSummary, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Manifest returns the manifest entries of a run in the order saved.
func (s *manifestStore) Manifest(ctx context.Context, runID string) ([]domain.ManifestEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT record_id, kind, stage, message
		FROM manifest_entries
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying manifest: %w", err)
	}
	defer rows.Close()

	var entries []domain.ManifestEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			e           domain.ManifestEntry
			kind, stage string
			message     sql.NullString
		)
		if err := rows.Scan(&e.ID, &kind, &stage, &message); err != nil {
			return nil, fmt.Errorf("scanning manifest entry: %w", err)
		}
		e.Kind = domain.ErrorKind(kind)
		e.Stage = domain.Stage(stage)
		e.Message = message.String
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating manifest: %w", err)
	}
	return entries, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.RunSummary, error) {
	var (
		run        domain.RunSummary
		startedAt  string
		durationNS int64
		cancelled  int
	)
	st := &run.Stats
	err := row.Scan(&run.RunID, &startedAt, &st.Inputs, &st.Decoded, &st.Failed,
		&st.ExcludedStructures, &st.ExcludedChains, &st.Records, &st.Partitions, &st.Abandoned,
		&durationNS, &cancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	st.Duration = time.Duration(durationNS)
	run.Cancelled = cancelled != 0
	return &run, nil
}
