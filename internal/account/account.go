// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Secret policy.
const (
	// DefaultMinSecretLength is the minimum secret length accepted by
	// Register and CompletePasswordReset unless a caller supplies its own
	// policy.
	DefaultMinSecretLength = 8
)

// emailRegex is a light syntactic check. Real validation is proving
// control of the mailbox via the verification token.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Account is a registered user's persisted identity and credential record.
type Account struct {
	ID             ulid.ULID
	Email          string
	FirstName      string
	LastName       string
	CredentialHash string
	Verified       bool

	// TokenDigest is the SHA-256 digest of the one outstanding opaque
	// token. It gates verification after registration and is reused to
	// gate password reset. At most one token is live per account.
	TokenDigest string

	FailedAttempts int
	LockedUntil    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates a validated, unverified Account. The secret is hashed
// before the value is returned; no Account ever carries a plaintext secret.
// tokenDigest is the digest of the initial verification token.
func NewAccount(hasher CredentialHasher, email, firstName, lastName, secret, tokenDigest string) (*Account, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if tokenDigest == "" {
		return nil, oops.Code("ACCOUNT_INVALID_TOKEN_DIGEST").Errorf("token digest cannot be empty")
	}

	hash, err := hasher.Hash(secret)
	if err != nil {
		return nil, oops.Code("ACCOUNT_HASH_FAILED").Wrap(err)
	}

	now := time.Now()
	return &Account{
		ID:             ulid.Make(),
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		CredentialHash: hash,
		Verified:       false,
		TokenDigest:    tokenDigest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsLocked returns true if the account is currently locked out.
func (a *Account) IsLocked() bool {
	return IsLockedOut(a.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (a *Account) RecordFailure() {
	a.FailedAttempts++
	a.LockedUntil = ComputeLockoutTime(a.FailedAttempts)
	a.UpdatedAt = time.Now()
}

// RecordSuccess resets the failure counter and lockout.
func (a *Account) RecordSuccess() {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = time.Now()
}

// NormalizeEmail lowers and trims an email address. Uniqueness checks and
// lookups always operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the syntactic shape of an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("ACCOUNT_INVALID_EMAIL").
			With("email", email).
			Errorf("email address is not valid")
	}
	return nil
}

// ValidateSecret checks a plaintext secret against the length policy.
func ValidateSecret(secret string, minLength int) error {
	if len(secret) < minLength {
		return oops.Code("ACCOUNT_WEAK_SECRET").
			With("min", minLength).
			Errorf("secret must be at least %d characters", minLength)
	}
	return nil
}

// AccountRepository manages account persistence.
//
// Create must be atomic with respect to the email uniqueness check: the
// backing store enforces uniqueness with a constraint, not with a
// check-then-insert in the caller, so concurrent registrations of the same
// email cannot both succeed.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateEmail if the
	// normalized email is already registered.
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByTokenDigest retrieves the account whose outstanding token has
	// the given digest. Returns ErrNotFound if no such account exists.
	GetByTokenDigest(ctx context.Context, digest string) (*Account, error)

	// Update persists all mutable fields of an existing account.
	// Last writer wins; uniqueness stays with the store's constraints.
	Update(ctx context.Context, acct *Account) error

	// UpdateCredential replaces the credential hash and token digest in
	// one statement. Used by password reset so the consumed token and
	// the old credential disappear together.
	UpdateCredential(ctx context.Context, id ulid.ULID, credentialHash, tokenDigest string) error
}
