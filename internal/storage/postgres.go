package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"wakebell/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// The store accepts this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time assertion that Postgres implements Store.
var _ types.Store = (*Postgres)(nil)

// Postgres is a Store backed by a single key-value table:
//
//	CREATE TABLE engine_state (
//	    key        TEXT PRIMARY KEY,
//	    value      BYTEA NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Postgres struct {
	db DBTX
}

// NewPostgres creates a Postgres store backed by the given connection
// (pool or transaction).
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Load returns the value for key, or (nil, nil) if the key is absent.
func (s *Postgres) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM engine_state WHERE key = $1`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStorageUnavailable, "failed to load engine state", err)
	}
	return value, nil
}

// Save upserts the value for key.
func (s *Postgres) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO engine_state (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeStorageUnavailable, "failed to save engine state", err)
	}
	return nil
}
