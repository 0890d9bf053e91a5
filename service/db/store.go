package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/genesis/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const table = "session_transactions"

// ErrNotFound is returned when a journal row does not exist.
var ErrNotFound = errors.New("transaction not found")

// Store is the settled-transaction journal.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Transaction is a settled session transaction as stored in the journal.
type Transaction struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Hash        *string    `json:"hash,omitempty"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Network     string     `json:"network"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	RecordedAt  time.Time  `json:"recorded_at"`
}

// CreateTransactionParams contains the parameters for journaling a transaction.
type CreateTransactionParams struct {
	ID          string
	SessionID   string
	Hash        *string
	Kind        string
	Status      string
	Amount      float64
	Currency    string
	FromAddress string
	ToAddress   string
	Network     string
	Error       *string
	CreatedAt   time.Time
	SettledAt   *time.Time
}

// ListTransactionsByAddressParams contains pagination parameters.
type ListTransactionsByAddressParams struct {
	Address string
	Network string
	Limit   int32
	Offset  int32
}

const columns = `id, session_id, hash, kind, status, amount, currency,
	from_address, to_address, network, error, created_at, settled_at, recorded_at`

// Migrate creates the journal table and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, schema)
	s.metrics.RecordDBQuery("migrate", table, metrics.Since(start), err)
	if err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

// RecordTransaction inserts a settled transaction. Settled records are
// immutable, so recording the same ID twice returns the stored row.
func (s *Store) RecordTransaction(ctx context.Context, params CreateTransactionParams) (*Transaction, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		INSERT INTO session_transactions (
			id, session_id, hash, kind, status, amount, currency,
			from_address, to_address, network, error, created_at, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
		RETURNING `+columns,
		params.ID, params.SessionID, params.Hash, params.Kind, params.Status,
		params.Amount, params.Currency, params.FromAddress, params.ToAddress,
		params.Network, params.Error, params.CreatedAt, params.SettledAt,
	)
	if err != nil {
		s.metrics.RecordDBQuery("insert", table, metrics.Since(start), err)
		return nil, err
	}
	txn, err := pgx.CollectOneRow(rows, scanTransaction)
	s.metrics.RecordDBQuery("insert", table, metrics.Since(start), ignoreNoRows(err))
	if errors.Is(err, pgx.ErrNoRows) {
		return s.GetTransaction(ctx, params.ID)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// GetTransaction retrieves a journaled transaction by record ID.
func (s *Store) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM session_transactions WHERE id = $1`, id)
	if err != nil {
		s.metrics.RecordDBQuery("select", table, metrics.Since(start), err)
		return nil, err
	}
	txn, err := pgx.CollectOneRow(rows, scanTransaction)
	s.metrics.RecordDBQuery("select", table, metrics.Since(start), ignoreNoRows(err))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return txn, err
}

// ListTransactionsBySession returns a session's journal, newest first.
func (s *Store) ListTransactionsBySession(ctx context.Context, sessionID string, limit, offset int32) ([]*Transaction, error) {
	return s.list(ctx, `
		SELECT `+columns+` FROM session_transactions
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		sessionID, limit, offset,
	)
}

// ListTransactionsByAddress returns transactions sent from or to an address,
// newest first.
func (s *Store) ListTransactionsByAddress(ctx context.Context, params ListTransactionsByAddressParams) ([]*Transaction, error) {
	return s.list(ctx, `
		SELECT `+columns+` FROM session_transactions
		WHERE (from_address = $1 OR to_address = $1) AND network = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		params.Address, params.Network, params.Limit, params.Offset,
	)
}

// CountTransactionsByAddress counts transactions sent from or to an address.
func (s *Store) CountTransactionsByAddress(ctx context.Context, address, network string) (int64, error) {
	start := time.Now()
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM session_transactions
		WHERE (from_address = $1 OR to_address = $1) AND network = $2`,
		address, network,
	).Scan(&n)
	s.metrics.RecordDBQuery("count", table, metrics.Since(start), err)
	return n, err
}

// DeleteTransactionsOlderThan prunes journal rows settled before the cutoff
// and returns how many were removed.
func (s *Store) DeleteTransactionsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `DELETE FROM session_transactions WHERE created_at < $1`, before)
	s.metrics.RecordDBQuery("delete", table, metrics.Since(start), err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.metrics.RecordDBQuery("select", table, metrics.Since(start), err)
		return nil, err
	}
	txns, err := pgx.CollectRows(rows, scanTransaction)
	s.metrics.RecordDBQuery("select", table, metrics.Since(start), err)
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func scanTransaction(row pgx.CollectableRow) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.SessionID, &t.Hash, &t.Kind, &t.Status, &t.Amount, &t.Currency,
		&t.FromAddress, &t.ToAddress, &t.Network, &t.Error, &t.CreatedAt, &t.SettledAt, &t.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
