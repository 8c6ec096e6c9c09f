package receipt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/swappilot/quoterank/internal/domain"
)

// PostgresStore persists receipts in a decision_receipts table with the
// full receipt as a JSONB payload.
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// Connect opens and pings a PostgreSQL pool for receipt storage.
func Connect(dsn string, maxOpen, maxIdle int, timeout time.Duration) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect receipt store: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return NewPostgresStore(db, timeout), nil
}

// Put upserts a receipt. The id is derived from the request, so a repeated
// request legitimately rewrites its receipt.
func (s *PostgresStore) Put(ctx context.Context, receipt domain.DecisionReceipt) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	query := `
		INSERT INTO decision_receipts (id, created_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET created_at = $2, payload = $3`

	if _, err := s.db.ExecContext(ctx, query, receipt.ID, receipt.CreatedAt, payload); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("failed to insert receipt (%s): %w", pqErr.Code, err)
		}
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// Get loads a receipt by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.DecisionReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload []byte
	query := `SELECT payload FROM decision_receipts WHERE id = $1`
	if err := s.db.QueryRowxContext(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}

	var receipt domain.DecisionReceipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &receipt, nil
}
