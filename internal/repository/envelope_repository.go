package repository

import (
	"context"
	"fmt"

	"github.com/casklane/stockfeed/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type envelopeRepository struct {
	pool *pgxpool.Pool
}

// NewEnvelopeRepository creates the file-receipt repository.
func NewEnvelopeRepository(pool *pgxpool.Pool) EnvelopeRepository {
	return &envelopeRepository{pool: pool}
}

func (r *envelopeRepository) Create(ctx context.Context, envelope domain.Envelope) (domain.Envelope, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO envelopes (target, source_filename, file_hash, file_size)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, target, source_filename, file_hash, file_size, received_at`,
		envelope.Target,
		envelope.SourceFilename,
		envelope.FileHash,
		envelope.FileSize,
	)

	var created domain.Envelope
	if err := row.Scan(
		&created.ID,
		&created.Target,
		&created.SourceFilename,
		&created.FileHash,
		&created.FileSize,
		&created.ReceivedAt,
	); err != nil {
		return domain.Envelope{}, fmt.Errorf("failed to create envelope: %w", err)
	}
	return created, nil
}

func (r *envelopeRepository) ListByHash(ctx context.Context, target, fileHash string) ([]domain.Envelope, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, target, source_filename, file_hash, file_size, received_at
		 FROM envelopes
		 WHERE target = $1 AND file_hash = $2
		 ORDER BY received_at DESC`,
		target, fileHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list envelopes: %w", err)
	}
	defer rows.Close()

	envelopes := []domain.Envelope{}
	for rows.Next() {
		var envelope domain.Envelope
		if scanErr := rows.Scan(
			&envelope.ID,
			&envelope.Target,
			&envelope.SourceFilename,
			&envelope.FileHash,
			&envelope.FileSize,
			&envelope.ReceivedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan envelope: %w", scanErr)
		}
		envelopes = append(envelopes, envelope)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate envelopes: %w", rowsErr)
	}
	return envelopes, nil
}
