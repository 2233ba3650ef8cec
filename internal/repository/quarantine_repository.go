package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/casklane/stockfeed/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type quarantineRepository struct {
	pool *pgxpool.Pool
}

// NewQuarantineRepository creates the rejected-row store.
func NewQuarantineRepository(pool *pgxpool.Pool) QuarantineRepository {
	return &quarantineRepository{pool: pool}
}

func (r *quarantineRepository) InsertBatch(ctx context.Context, tx pgx.Tx, runID uuid.UUID, envelopeID *uuid.UUID, rejections []domain.RowRejection) error {
	if len(rejections) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rejection := range rejections {
		rawJSON, err := json.Marshal(rejection.RawRow)
		if err != nil {
			return fmt.Errorf("failed to encode quarantined row %d: %w", rejection.RowNumber, err)
		}
		batch.Queue(
			`INSERT INTO quarantine_rows (run_id, envelope_id, row_number, raw_row, violated_rules)
			 VALUES ($1, $2, $3, $4, $5)`,
			runID, envelopeID, rejection.RowNumber, rawJSON, rejection.ViolatedRules,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range rejections {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert quarantined rows for run %s: %w", runID, err)
		}
	}
	return nil
}

func (r *quarantineRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.QuarantinedRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, run_id, envelope_id, row_number, raw_row, violated_rules, created_at
		 FROM quarantine_rows
		 WHERE run_id = $1
		 ORDER BY row_number`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantined rows: %w", err)
	}
	defer rows.Close()

	quarantined := []domain.QuarantinedRow{}
	for rows.Next() {
		var (
			row        domain.QuarantinedRow
			envelopeID *uuid.UUID
			rawJSON    []byte
		)
		if scanErr := rows.Scan(
			&row.ID,
			&row.RunID,
			&envelopeID,
			&row.RowNumber,
			&rawJSON,
			&row.ViolatedRules,
			&row.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan quarantined row: %w", scanErr)
		}
		row.EnvelopeID = envelopeID
		if len(rawJSON) > 0 {
			if err := json.Unmarshal(rawJSON, &row.RawRow); err != nil {
				return nil, fmt.Errorf("failed to decode quarantined row payload: %w", err)
			}
		}
		quarantined = append(quarantined, row)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate quarantined rows: %w", rowsErr)
	}
	return quarantined, nil
}
