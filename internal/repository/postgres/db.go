package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"travel/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier          = (*sql.DB)(nil)
	_ Querier          = (*sql.Tx)(nil)
	_ repository.Store = (*Store)(nil)
)

// SQLSTATE codes mapped to repository errors.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// Store is a PostgreSQL implementation of repository.Store.
type Store struct {
	db *sql.DB // nil when bound to a transaction
	q  Querier
}

// NewStore creates a store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// newTxStore creates a store whose repositories all run on tx.
func newTxStore(tx *sql.Tx) *Store {
	return &Store{q: tx}
}

func (s *Store) Users() repository.UserRepository       { return &UserRepository{q: s.q} }
func (s *Store) Listings() repository.ListingRepository { return &ListingRepository{q: s.q} }
func (s *Store) Bookings() repository.BookingRepository { return &BookingRepository{q: s.q} }
func (s *Store) Payments() repository.PaymentRepository { return &PaymentRepository{q: s.q} }
func (s *Store) Reviews() repository.ReviewRepository   { return &ReviewRepository{q: s.q} }

// WithinTx runs fn inside a database transaction. Nested calls reuse the
// outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(newTxStore(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapWriteError(err))
	}
	return nil
}

// mapWriteError translates driver errors into repository errors. A write
// aborted by deadlock detection or serialization checks lost a race the same
// way a stale version does.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case uniqueViolation:
		return repository.ErrDuplicate
	case serializationFailure, deadlockDetected:
		return fmt.Errorf("%s: %w", pqErr.Message, repository.ErrVersionConflict)
	}
	return err
}

// checkVersioned interprets the result of an optimistic update. When no row
// matched, exists tells whether the row is missing or merely stale.
func checkVersioned(ctx context.Context, q Querier, result sql.Result, table, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := q.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
