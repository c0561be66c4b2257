// Package repository provides the record-store access layer.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// DefaultUsersTable is the table holding account records.
const DefaultUsersTable = "test_users"

// Repository provides database access methods.
// The pool is shared across requests; no per-request state lives here.
type Repository struct {
	pool       *pgxpool.Pool
	usersTable string // already quoted
}

// New creates a new Repository with a connection pool.
// An empty usersTable selects DefaultUsersTable.
func New(ctx context.Context, databaseURL, usersTable string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewWithPool(pool, usersTable), nil
}

// NewWithPool wraps an existing pool. Used by tools and tests.
func NewWithPool(pool *pgxpool.Pool, usersTable string) *Repository {
	if usersTable == "" {
		usersTable = DefaultUsersTable
	}
	return &Repository{
		pool:       pool,
		usersTable: pq.QuoteIdentifier(usersTable),
	}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}
