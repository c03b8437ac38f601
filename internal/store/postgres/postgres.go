// Package postgres implements store.Store on PostgreSQL with pgx.
//
// The Event aggregate is a single row whose children (tasks, budget ledger,
// collaborators, permissions) are JSONB columns, so an aggregate write is one
// UPDATE guarded by the row version. Registration writes lock the event row
// with SELECT ... FOR UPDATE and recompute registered_count inside the same
// transaction.
package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/store"
)

// Store implements store.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mutateTries int
	mutateDelay time.Duration
}

var _ store.Store = (*Store)(nil)

// New creates a postgres store over pool.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger, mutateTries: 5, mutateDelay: 20 * time.Millisecond}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// limitArg turns a zero limit into SQL NULL (no limit).
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
