// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package postgres implements account persistence using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/account"
)

// poolIface is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it, so unit tests run without a database.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements account.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, email, first_name, last_name, credential_hash,
	       verified, token_digest, failed_attempts, locked_until,
	       created_at, updated_at`

// Create stores a new account. The unique index on email makes the
// check-and-insert atomic; a concurrent registration of the same email
// surfaces as account.ErrDuplicateEmail, never as a raw driver error.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, email, first_name, last_name, credential_hash,
			verified, token_digest, failed_attempts, locked_until,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		acct.ID.String(),
		acct.Email,
		acct.FirstName,
		acct.LastName,
		acct.CredentialHash,
		acct.Verified,
		acct.TokenDigest,
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation &&
			strings.Contains(pgErr.ConstraintName, "email") {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", acct.Email).
				Wrap(account.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("email", acct.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id.String())

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return acct, nil
}

// GetByTokenDigest retrieves the account holding the outstanding token with
// the given digest.
func (r *AccountRepository) GetByTokenDigest(ctx context.Context, digest string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE token_digest = $1
	`, digest)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_TOKEN_FAILED").
			With("operation", "get account by token digest").
			Wrap(err)
	}
	return acct, nil
}

// Update persists all mutable fields of an existing account.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			first_name = $3,
			last_name = $4,
			credential_hash = $5,
			verified = $6,
			token_digest = $7,
			failed_attempts = $8,
			locked_until = $9,
			updated_at = $10
		WHERE id = $1
	`,
		acct.ID.String(),
		acct.Email,
		acct.FirstName,
		acct.LastName,
		acct.CredentialHash,
		acct.Verified,
		acct.TokenDigest,
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", acct.ID.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdateCredential replaces the credential hash and token digest together,
// so the consumed reset token and the old credential disappear in one
// statement.
func (r *AccountRepository) UpdateCredential(ctx context.Context, id ulid.ULID, credentialHash, tokenDigest string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET credential_hash = $2, token_digest = $3, updated_at = $4
		WHERE id = $1
	`, id.String(), credentialHash, tokenDigest, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_CREDENTIAL_FAILED").
			With("operation", "update credential").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		idStr          string
		email          string
		firstName      string
		lastName       string
		credentialHash string
		verified       bool
		tokenDigest    string
		failedAttempts int
		lockedUntil    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&idStr,
		&email,
		&firstName,
		&lastName,
		&credentialHash,
		&verified,
		&tokenDigest,
		&failedAttempts,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &account.Account{
		ID:             id,
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		CredentialHash: credentialHash,
		Verified:       verified,
		TokenDigest:    tokenDigest,
		FailedAttempts: failedAttempts,
		LockedUntil:    lockedUntil,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ account.AccountRepository = (*AccountRepository)(nil)
