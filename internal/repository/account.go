package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/promptgate/promptgate/internal/model"
)

// Common errors for account repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrStaleCount means the stored counter no longer equals the value the
	// caller read, so the conditional update was not applied.
	ErrStaleCount = errors.New("calls_made changed since it was read")
	ErrKeyExists  = errors.New("user key already exists")
)

// GetAccountByKey retrieves an account by its user key.
func (r *Repository) GetAccountByKey(ctx context.Context, key string) (*model.Account, error) {
	query := `
		SELECT user_key, name, email, gemini_api_key, calls_made, max_calls
		FROM ` + r.usersTable + `
		WHERE user_key = $1
	`

	var (
		account    model.Account
		name       *string
		email      *string
		credential *string
		callsMade  *int
		maxCalls   *int
	)

	err := r.pool.QueryRow(ctx, query, key).Scan(
		&account.Key,
		&name,
		&email,
		&credential,
		&callsMade,
		&maxCalls,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by key: %w", err)
	}

	account.Name = deref(name)
	account.Email = deref(email)
	account.BackendCredential = deref(credential)
	if callsMade != nil {
		account.CallsMade = *callsMade
	}
	account.CallsAllowed = maxCalls

	return &account, nil
}

// AccountExists reports whether a record with the key exists without reading
// any secret columns.
func (r *Repository) AccountExists(ctx context.Context, key string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM ` + r.usersTable + ` WHERE user_key = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return exists, nil
}

// IncrementCalls sets calls_made to expectedPrior+1, but only if the stored
// counter still equals expectedPrior. It returns the new counter value, or
// ErrStaleCount when another writer got there first (or the row vanished).
func (r *Repository) IncrementCalls(ctx context.Context, key string, expectedPrior int) (int, error) {
	query := `
		UPDATE ` + r.usersTable + `
		SET calls_made = $2 + 1
		WHERE user_key = $1 AND COALESCE(calls_made, 0) = $2
		RETURNING calls_made
	`

	var updated int
	err := r.pool.QueryRow(ctx, query, key, expectedPrior).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrStaleCount
		}
		return 0, fmt.Errorf("failed to increment calls: %w", err)
	}

	return updated, nil
}

// ResetCalls sets calls_made back to zero.
func (r *Repository) ResetCalls(ctx context.Context, key string) error {
	query := `
		UPDATE ` + r.usersTable + `
		SET calls_made = 0
		WHERE user_key = $1
	`

	result, err := r.pool.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to reset calls: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// CreateAccount inserts a new account record.
func (r *Repository) CreateAccount(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO ` + r.usersTable + ` (user_key, name, email, gemini_api_key, calls_made, max_calls)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		account.Key,
		account.Name,
		account.Email,
		account.BackendCredential,
		account.CallsMade,
		account.CallsAllowed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrKeyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

const uniqueViolationCode = "23505"

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
