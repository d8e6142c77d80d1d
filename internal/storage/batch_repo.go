package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_batch_store.go -package=mocks research-backend/internal/storage BatchStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// BatchStore defines the interface for the ingestion ledger.
type BatchStore interface {
	// Get returns the batch with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Batch, error)
	// Insert records a finished batch. An empty ID is replaced with a new UUID.
	Insert(ctx context.Context, batch *Batch) error
	// ListRecent returns up to limit batches, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Batch, error)
}

// BatchRepo provides methods for batch ledger operations.
// It implements the BatchStore interface.
type BatchRepo struct {
	db *sql.DB
}

// NewBatchRepo creates a new BatchRepo.
func NewBatchRepo(db *sql.DB) *BatchRepo {
	return &BatchRepo{db: db}
}

// Insert records a finished batch.
func (r *BatchRepo) Insert(ctx context.Context, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ingest_batches
			(id, kind, client_id, items, added, status, error,
			 chunk_min, chunk_max, chunk_mean, chunk_p95, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.Kind, batch.ClientID, batch.Items, batch.Added, batch.Status, batch.Error,
		batch.ChunkStats.Min, batch.ChunkStats.Max, batch.ChunkStats.Mean, batch.ChunkStats.P95,
		batch.StartedAt.UTC().Format(timeLayout), batch.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

// Get returns the batch with the given id, or ErrNotFound.
func (r *BatchRepo) Get(ctx context.Context, id string) (*Batch, error) {
	row := r.db.QueryRowContext(ctx, selectBatch+" WHERE id = ?", id)
	batch, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}
	return batch, nil
}

// ListRecent returns up to limit batches, newest first.
func (r *BatchRepo) ListRecent(ctx context.Context, limit int) ([]*Batch, error) {
	if limit <= 0 {
		return []*Batch{}, nil
	}

	rows, err := r.db.QueryContext(ctx, selectBatch+" ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	batches := []*Batch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return batches, nil
}

const selectBatch = `SELECT id, kind, client_id, items, added, status, error,
	chunk_min, chunk_max, chunk_mean, chunk_p95, started_at, finished_at
	FROM ingest_batches`

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (*Batch, error) {
	var (
		b                 Batch
		started, finished string
	)
	err := s.Scan(&b.ID, &b.Kind, &b.ClientID, &b.Items, &b.Added, &b.Status, &b.Error,
		&b.ChunkStats.Min, &b.ChunkStats.Max, &b.ChunkStats.Mean, &b.ChunkStats.P95,
		&started, &finished)
	if err != nil {
		return nil, err
	}

	if b.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	if b.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at timestamp: %w", err)
	}
	return &b, nil
}
