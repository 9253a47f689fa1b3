// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/observability"
	"github.com/accountd/accountd/pkg/errutil"
)

// Notifier delivers lifecycle messages out of band. Dispatch success does
// not guarantee delivery.
type Notifier interface {
	// SendVerification dispatches the post-registration verification
	// message carrying the plaintext token.
	SendVerification(ctx context.Context, to, firstName, token string) error

	// SendPasswordReset dispatches the reset message carrying the
	// plaintext token and the request context shown to the user.
	SendPasswordReset(ctx context.Context, to, firstName, token string, req ResetRequest) error
}

// Location is a rough, human-readable place derived from a client IP.
type Location struct {
	City    string
	Region  string
	Country string
}

// PlaceholderLocation is what reset messages show when the client IP could
// not be resolved. The reset flow never fails on geolocation.
func PlaceholderLocation() Location {
	return Location{
		City:    "City not found",
		Region:  "Region not found",
		Country: "Country not found",
	}
}

// LocationResolver resolves a client IP to a best-effort Location.
type LocationResolver interface {
	Resolve(ctx context.Context, ip string) (Location, error)
}

// ResetRequest is the human-readable context of a password reset request,
// included in the reset message so the user can judge whether it was theirs.
type ResetRequest struct {
	IP       string
	Time     time.Time
	Location Location
}

// Service is the account lifecycle engine. It validates input, consults and
// mutates the AccountRepository, and asks the Notifier to deliver messages.
// It holds no in-process mutable state.
type Service struct {
	accounts AccountRepository
	hasher   CredentialHasher
	notifier Notifier
	locator  LocationResolver
	logger   *slog.Logger
}

// NewService creates a new Service with the default logger.
func NewService(accounts AccountRepository, hasher CredentialHasher, notifier Notifier, locator LocationResolver) (*Service, error) {
	return NewServiceWithLogger(accounts, hasher, notifier, locator, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(accounts AccountRepository, hasher CredentialHasher, notifier Notifier, locator LocationResolver, logger *slog.Logger) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("credential hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if locator == nil {
		return nil, oops.Errorf("location resolver is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		notifier: notifier,
		locator:  locator,
		logger:   logger,
	}, nil
}

// dummyCredentialHash is used when an account doesn't exist to prevent timing
// attacks. We still run secret verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any secret.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyCredentialHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Secret    string
}

// Register creates a new unverified account using the default secret policy.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	return s.RegisterWithPolicy(ctx, in, DefaultMinSecretLength)
}

// RegisterWithPolicy creates a new unverified account, hashes the secret,
// persists the account, and dispatches the verification message.
//
// The secret-length check and the email-uniqueness check are independent and
// reported together, so the caller sees all problems at once. Dispatch
// failure does not roll back account creation; it is logged and Register
// still succeeds.
func (s *Service) RegisterWithPolicy(ctx context.Context, in RegisterInput, minSecretLength int) (*Account, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	var issues []error
	if err := ValidateSecret(in.Secret, minSecretLength); err != nil {
		issues = append(issues, err)
	}

	// Pre-check for an existing account so weak-secret and taken-email can
	// be reported in the same response. The race with a concurrent
	// registration is closed by the store's atomic insert below.
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		issues = append(issues, emailTakenError(email))
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	if len(issues) > 0 {
		return nil, errors.Join(issues...)
	}

	token, digest, err := GenerateToken()
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "GenerateToken").
			Wrap(err)
	}

	acct, err := NewAccount(s.hasher, email, in.FirstName, in.LastName, in.Secret, digest)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost the race against a concurrent registration.
			return nil, emailTakenError(email)
		}
		return nil, oops.Code("STORE_UNAVAILABLE").
			With("operation", "Create").
			Wrap(err)
	}

	observability.RecordRegistration()

	// Best effort: the account outlives a failed dispatch. The user can
	// recover via the password reset flow, which re-issues a token.
	if err := s.notifier.SendVerification(ctx, acct.Email, acct.FirstName, token); err != nil {
		errutil.LogError(s.logger, "verification dispatch failed", err)
	}

	return acct, nil
}

func emailTakenError(email string) error {
	return oops.Code("ACCOUNT_EMAIL_TAKEN").
		With("email", email).
		Errorf("an account already exists with this email")
}

// Verify marks the account holding the token as verified and retires the
// token so it cannot be replayed. An unknown token is a silent no-op: no
// state change and no error.
func (s *Service) Verify(ctx context.Context, token string) error {
	acct, err := s.accounts.GetByTokenDigest(ctx, DigestToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("ignoring unmatched verification token")
			return nil
		}
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "GetByTokenDigest").
			Wrap(err)
	}

	retired, err := RetireToken()
	if err != nil {
		return oops.Code("ACCOUNT_VERIFY_FAILED").
			With("operation", "RetireToken").
			Wrap(err)
	}

	acct.Verified = true
	acct.TokenDigest = retired
	acct.UpdatedAt = time.Now()

	if err := s.accounts.Update(ctx, acct); err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "Update").
			Wrap(err)
	}

	s.logger.Info("account verified", "account_id", acct.ID.String())
	return nil
}

// Login authenticates an account by email and secret.
//
// Unknown email and wrong secret produce the same error value so callers
// cannot enumerate accounts. A matching secret on an unverified account is
// the one distinct, user-visible failure. Uses constant-time operations to
// prevent timing-based enumeration.
func (s *Service) Login(ctx context.Context, email, secret string) (*Account, error) {
	acct, lookupErr := s.accounts.GetByEmail(ctx, NormalizeEmail(email))

	// Determine which hash to verify against (real or dummy for timing
	// attack prevention).
	var targetHash string
	var exists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			targetHash = dummyCredentialHash
			exists = false
		} else {
			observability.RecordLogin("error")
			return nil, oops.Code("STORE_UNAVAILABLE").
				With("operation", "GetByEmail").
				Wrap(lookupErr)
		}
	} else {
		targetHash = acct.CredentialHash
		exists = true
	}

	// Always verify the secret to keep response time consistent.
	valid, verifyErr := s.hasher.Verify(secret, targetHash)
	if verifyErr != nil {
		// A malformed stored hash must read as a mismatch, not a fault
		// the caller can probe.
		valid = false
		if exists {
			errutil.LogError(s.logger, "credential verification failed", verifyErr)
		}
	}

	if !exists || !valid {
		if exists {
			acct.RecordFailure()
			_ = s.accounts.Update(ctx, acct) //nolint:errcheck // Best effort
		}
		observability.RecordLogin("invalid")
		return nil, invalidCredentialsError()
	}

	// Lockout is checked after secret verification to maintain constant time.
	if acct.IsLocked() {
		observability.RecordLogin("locked")
		return nil, oops.Code("ACCOUNT_LOCKED").
			With("locked_until", acct.LockedUntil).
			Errorf("account is temporarily locked")
	}

	if !acct.Verified {
		observability.RecordLogin("unverified")
		return nil, oops.Code("ACCOUNT_NOT_VERIFIED").
			Errorf("email has not been verified; check your email or use the password reset flow")
	}

	acct.RecordSuccess()

	// Upgrade legacy hashes (e.g. imported bcrypt) on successful login.
	if s.hasher.NeedsUpgrade(acct.CredentialHash) {
		if newHash, hashErr := s.hasher.Hash(secret); hashErr == nil {
			acct.CredentialHash = newHash
		}
	}

	// Ignore errors - login succeeds even if the bookkeeping update fails.
	_ = s.accounts.Update(ctx, acct) //nolint:errcheck // Best effort

	observability.RecordLogin("ok")
	return acct, nil
}

// invalidCredentialsError is the single undifferentiated login failure.
// Every call site returns this same value shape so nothing leaks about
// which of email or secret was wrong.
func invalidCredentialsError() error {
	return oops.Code("ACCOUNT_INVALID_CREDENTIALS").Errorf("email or password are incorrect")
}

// RequestPasswordReset issues a new token for the account registered under
// email, overwriting any previously outstanding token, and dispatches the
// reset message with the request context.
//
// Unlike registration, dispatch failure surfaces to the caller: the user
// has no other path to recover. The email-exists disclosure is deliberate;
// usability wins over enumeration safety here.
func (s *Service) RequestPasswordReset(ctx context.Context, email, clientIP string) error {
	acct, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("ACCOUNT_EMAIL_NOT_FOUND").
				Errorf("no account is registered with this email")
		}
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	token, digest, err := GenerateToken()
	if err != nil {
		return oops.Code("ACCOUNT_RESET_REQUEST_FAILED").
			With("operation", "GenerateToken").
			Wrap(err)
	}

	acct.TokenDigest = digest
	acct.UpdatedAt = time.Now()

	if err := s.accounts.Update(ctx, acct); err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "Update").
			Wrap(err)
	}

	loc, locErr := s.locator.Resolve(ctx, clientIP)
	if locErr != nil {
		// Best effort only; the reset must not fail on geolocation.
		loc = PlaceholderLocation()
	}

	req := ResetRequest{IP: clientIP, Time: time.Now(), Location: loc}
	if err := s.notifier.SendPasswordReset(ctx, acct.Email, acct.FirstName, token, req); err != nil {
		return oops.Code("NOTIFY_DISPATCH_FAILED").
			With("operation", "SendPasswordReset").
			Wrap(err)
	}

	s.logger.Info("password reset requested", "account_id", acct.ID.String())
	return nil
}

// CompletePasswordReset replaces the credential for the account holding the
// token, using the default secret policy.
func (s *Service) CompletePasswordReset(ctx context.Context, token, newSecret string) error {
	return s.CompletePasswordResetWithPolicy(ctx, token, newSecret, DefaultMinSecretLength)
}

// CompletePasswordResetWithPolicy validates newSecret, consumes the token,
// and stores the new credential hash. The consumed token is rotated to a
// fresh value that was never issued, so it cannot be replayed.
func (s *Service) CompletePasswordResetWithPolicy(ctx context.Context, token, newSecret string, minSecretLength int) error {
	// Policy is checked before touching the store.
	if err := ValidateSecret(newSecret, minSecretLength); err != nil {
		return err
	}

	acct, err := s.accounts.GetByTokenDigest(ctx, DigestToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("ACCOUNT_TOKEN_INVALID").
				Errorf("reset token is invalid or has expired")
		}
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "GetByTokenDigest").
			Wrap(err)
	}

	newHash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return oops.Code("ACCOUNT_RESET_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	retired, err := RetireToken()
	if err != nil {
		return oops.Code("ACCOUNT_RESET_FAILED").
			With("operation", "RetireToken").
			Wrap(err)
	}

	if err := s.accounts.UpdateCredential(ctx, acct.ID, newHash, retired); err != nil {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", "UpdateCredential").
			Wrap(err)
	}

	s.logger.Info("password reset completed", "account_id", acct.ID.String())
	return nil
}
