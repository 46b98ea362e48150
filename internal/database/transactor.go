package database

import (
	"context"
	"database/sql"

	"storefront/internal/repository"
)

// Transactor runs a group of repository operations as a single unit of work
type Transactor interface {
	// WithinTx commits when fn returns nil and rolls back otherwise. Every
	// repository built on q takes part in the same transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, q repository.Querier) error) error
}

type sqlTransactor struct {
	db *sql.DB
}

// NewTransactor creates a Transactor backed by the connection pool
func NewTransactor(db *sql.DB) Transactor {
	return &sqlTransactor{db: db}
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, q repository.Querier) error) error {
	return WithTx(ctx, t.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}
