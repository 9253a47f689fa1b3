// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/accountd/accountd/internal/account"
	"github.com/accountd/accountd/internal/account/mocks"
	"github.com/accountd/accountd/pkg/errutil"
)

func newTestService(t *testing.T) (*account.Service, *mocks.MockAccountRepository, *mocks.MockNotifier, *mocks.MockLocationResolver) {
	t.Helper()

	repo := mocks.NewMockAccountRepository(t)
	notifier := mocks.NewMockNotifier(t)
	locator := mocks.NewMockLocationResolver(t)

	svc, err := account.NewService(repo, account.NewArgon2idHasher(), notifier, locator)
	require.NoError(t, err)
	return svc, repo, notifier, locator
}

// testAccount builds a verified account whose credential is "s3cret-enough".
func testAccount(t *testing.T) *account.Account {
	t.Helper()

	hasher := account.NewArgon2idHasher()
	acct, err := account.NewAccount(hasher, "ada@example.com", "Ada", "Lovelace", "s3cret-enough", "digest")
	require.NoError(t, err)
	acct.Verified = true
	return acct
}

func TestNewService(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	hasher := account.NewArgon2idHasher()
	notifier := mocks.NewMockNotifier(t)
	locator := mocks.NewMockLocationResolver(t)

	tests := []struct {
		name string
		fn   func() (*account.Service, error)
		want string
	}{
		{"nil repository", func() (*account.Service, error) {
			return account.NewService(nil, hasher, notifier, locator)
		}, "accounts repository is required"},
		{"nil hasher", func() (*account.Service, error) {
			return account.NewService(repo, nil, notifier, locator)
		}, "credential hasher is required"},
		{"nil notifier", func() (*account.Service, error) {
			return account.NewService(repo, hasher, nil, locator)
		}, "notifier is required"},
		{"nil locator", func() (*account.Service, error) {
			return account.NewService(repo, hasher, notifier, nil)
		}, "location resolver is required"},
		{"nil logger", func() (*account.Service, error) {
			return account.NewServiceWithLogger(repo, hasher, notifier, locator, nil)
		}, "logger is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServiceRegister(t *testing.T) {
	ctx := context.Background()
	input := account.RegisterInput{
		Email:     "Ada@Example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Secret:    "s3cret-enough",
	}

	t.Run("creates unverified account and dispatches token", func(t *testing.T) {
		svc, repo, notifier, _ := newTestService(t)

		repo.On("GetByEmail", ctx, "ada@example.com").Return(nil, account.ErrNotFound)

		var created *account.Account
		repo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
			created = args.Get(1).(*account.Account)
		}).Return(nil)

		var sentToken string
		notifier.On("SendVerification", ctx, "ada@example.com", "Ada", mock.Anything).
			Run(func(args mock.Arguments) {
				sentToken = args.String(3)
			}).Return(nil)

		acct, err := svc.Register(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, "ada@example.com", acct.Email)
		assert.False(t, acct.Verified)
		assert.Same(t, created, acct)

		// The dispatched token matches the stored digest; the plaintext is
		// never persisted.
		assert.True(t, account.MatchToken(sentToken, acct.TokenDigest))
		assert.NotEqual(t, sentToken, acct.TokenDigest)
	})

	t.Run("invalid email fails before touching the store", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)

		bad := input
		bad.Email = "not-an-email"
		_, err := svc.Register(ctx, bad)
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_EMAIL")
	})

	t.Run("weak secret", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ada@example.com").Return(nil, account.ErrNotFound)

		weak := input
		weak.Secret = "short"
		_, err := svc.Register(ctx, weak)
		errutil.AssertErrorCode(t, err, "ACCOUNT_WEAK_SECRET")
	})

	t.Run("taken email", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ada@example.com").Return(testAccount(t), nil)

		_, err := svc.Register(ctx, input)
		errutil.AssertErrorCode(t, err, "ACCOUNT_EMAIL_TAKEN")
	})

	t.Run("weak secret and taken email reported together", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ada@example.com").Return(testAccount(t), nil)

		weak := input
		weak.Secret = "short"
		_, err := svc.Register(ctx, weak)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret must be at least")
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("lost registration race maps to taken email", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ada@example.com").Return(nil, account.ErrNotFound)
		repo.On("Create", ctx, mock.Anything).Return(account.ErrDuplicateEmail)

		_, err := svc.Register(ctx, input)
		errutil.AssertErrorCode(t, err, "ACCOUNT_EMAIL_TAKEN")
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ada@example.com").Return(nil, errors.New("connection refused"))

		_, err := svc.Register(ctx, input)
		errutil.AssertErrorCode(t, err, "STORE_UNAVAILABLE")
	})

	t.Run("dispatch failure does not fail registration", func(t *testing.T) {
		svc, repo, notifier, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ada@example.com").Return(nil, account.ErrNotFound)
		repo.On("Create", ctx, mock.Anything).Return(nil)
		notifier.On("SendVerification", ctx, "ada@example.com", "Ada", mock.Anything).
			Return(errors.New("smtp down"))

		acct, err := svc.Register(ctx, input)
		require.NoError(t, err)
		assert.NotNil(t, acct)
	})

	t.Run("custom secret policy", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ada@example.com").Return(nil, account.ErrNotFound)

		_, err := svc.RegisterWithPolicy(ctx, input, 20)
		errutil.AssertErrorCode(t, err, "ACCOUNT_WEAK_SECRET")
	})
}

func TestServiceVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("marks verified and retires token", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)

		token, digest, err := account.GenerateToken()
		require.NoError(t, err)

		acct := testAccount(t)
		acct.Verified = false
		acct.TokenDigest = digest

		repo.On("GetByTokenDigest", ctx, digest).Return(acct, nil)

		var updated *account.Account
		repo.On("Update", ctx, mock.Anything).Run(func(args mock.Arguments) {
			updated = args.Get(1).(*account.Account)
		}).Return(nil)

		require.NoError(t, svc.Verify(ctx, token))

		assert.True(t, updated.Verified)
		assert.NotEqual(t, digest, updated.TokenDigest, "consumed token is rotated out")
		assert.False(t, account.MatchToken(token, updated.TokenDigest))
	})

	t.Run("unknown token is a silent no-op", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByTokenDigest", ctx, mock.Anything).Return(nil, account.ErrNotFound)

		assert.NoError(t, svc.Verify(ctx, "deadbeef"))
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByTokenDigest", ctx, mock.Anything).Return(nil, errors.New("connection refused"))

		errutil.AssertErrorCode(t, svc.Verify(ctx, "deadbeef"), "STORE_UNAVAILABLE")
	})
}

func TestServiceLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("verified account with matching secret", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		acct := testAccount(t)

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)
		repo.On("Update", ctx, mock.Anything).Return(nil)

		got, err := svc.Login(ctx, "Ada@Example.com", "s3cret-enough")
		require.NoError(t, err)
		assert.Equal(t, acct.ID, got.ID)
		assert.Zero(t, got.FailedAttempts)
	})

	t.Run("wrong secret and unknown email are indistinguishable", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ada@example.com").Return(testAccount(t), nil)
		repo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, account.ErrNotFound)
		repo.On("Update", ctx, mock.Anything).Return(nil)

		_, errWrongSecret := svc.Login(ctx, "ada@example.com", "not-the-secret")
		_, errNoAccount := svc.Login(ctx, "ghost@example.com", "whatever")

		errutil.AssertErrorCode(t, errWrongSecret, "ACCOUNT_INVALID_CREDENTIALS")
		errutil.AssertErrorCode(t, errNoAccount, "ACCOUNT_INVALID_CREDENTIALS")
		assert.Equal(t, errWrongSecret.Error(), errNoAccount.Error())
	})

	t.Run("unverified account with matching secret", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		acct := testAccount(t)
		acct.Verified = false

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)

		_, err := svc.Login(ctx, "ada@example.com", "s3cret-enough")
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_VERIFIED")
	})

	t.Run("unverified account with wrong secret reads as invalid credentials", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		acct := testAccount(t)
		acct.Verified = false

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)
		repo.On("Update", ctx, mock.Anything).Return(nil)

		_, err := svc.Login(ctx, "ada@example.com", "not-the-secret")
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_CREDENTIALS")
	})

	t.Run("locked account", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		acct := testAccount(t)
		until := time.Now().Add(10 * time.Minute)
		acct.FailedAttempts = account.LockoutThreshold
		acct.LockedUntil = &until

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)

		_, err := svc.Login(ctx, "ada@example.com", "s3cret-enough")
		errutil.AssertErrorCode(t, err, "ACCOUNT_LOCKED")
	})

	t.Run("expired lockout admits a valid login", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		acct := testAccount(t)
		past := time.Now().Add(-time.Minute)
		acct.FailedAttempts = account.LockoutThreshold
		acct.LockedUntil = &past

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)

		var updated *account.Account
		repo.On("Update", ctx, mock.Anything).Run(func(args mock.Arguments) {
			updated = args.Get(1).(*account.Account)
		}).Return(nil)

		_, err := svc.Login(ctx, "ada@example.com", "s3cret-enough")
		require.NoError(t, err)
		assert.Zero(t, updated.FailedAttempts)
		assert.Nil(t, updated.LockedUntil)
	})

	t.Run("repeated failures lock the account", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		acct := testAccount(t)
		acct.FailedAttempts = account.LockoutThreshold - 1

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)

		var updated *account.Account
		repo.On("Update", ctx, mock.Anything).Run(func(args mock.Arguments) {
			updated = args.Get(1).(*account.Account)
		}).Return(nil)

		_, err := svc.Login(ctx, "ada@example.com", "not-the-secret")
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_CREDENTIALS")
		assert.True(t, updated.IsLocked())
	})

	t.Run("legacy bcrypt credential upgrades on login", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)

		legacy, err := bcrypt.GenerateFromPassword([]byte("s3cret-enough"), bcrypt.MinCost)
		require.NoError(t, err)

		acct := testAccount(t)
		acct.CredentialHash = string(legacy)

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)

		var updated *account.Account
		repo.On("Update", ctx, mock.Anything).Run(func(args mock.Arguments) {
			updated = args.Get(1).(*account.Account)
		}).Return(nil)

		_, err = svc.Login(ctx, "ada@example.com", "s3cret-enough")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(updated.CredentialHash, "$argon2id$"))
	})

	t.Run("corrupt stored hash reads as invalid credentials", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		acct := testAccount(t)
		acct.CredentialHash = "corrupt"

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)
		repo.On("Update", ctx, mock.Anything).Return(nil)

		_, err := svc.Login(ctx, "ada@example.com", "s3cret-enough")
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_CREDENTIALS")
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := svc.Login(ctx, "ada@example.com", "s3cret-enough")
		errutil.AssertErrorCode(t, err, "STORE_UNAVAILABLE")
	})
}

func TestServiceRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("issues fresh token and dispatches with location", func(t *testing.T) {
		svc, repo, notifier, locator := newTestService(t)
		acct := testAccount(t)
		oldDigest := acct.TokenDigest

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)

		var updated *account.Account
		repo.On("Update", ctx, mock.Anything).Run(func(args mock.Arguments) {
			updated = args.Get(1).(*account.Account)
		}).Return(nil)

		locator.On("Resolve", ctx, "203.0.113.7").
			Return(account.Location{City: "Berlin", Region: "Berlin", Country: "DE"}, nil)

		var sentToken string
		var sentReq account.ResetRequest
		notifier.On("SendPasswordReset", ctx, "ada@example.com", "Ada", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				sentToken = args.String(3)
				sentReq = args.Get(4).(account.ResetRequest)
			}).Return(nil)

		require.NoError(t, svc.RequestPasswordReset(ctx, "Ada@Example.com", "203.0.113.7"))

		assert.NotEqual(t, oldDigest, updated.TokenDigest, "new token replaces outstanding one")
		assert.True(t, account.MatchToken(sentToken, updated.TokenDigest))
		assert.Equal(t, "203.0.113.7", sentReq.IP)
		assert.Equal(t, "Berlin", sentReq.Location.City)
	})

	t.Run("unknown email is disclosed", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, account.ErrNotFound)

		err := svc.RequestPasswordReset(ctx, "ghost@example.com", "203.0.113.7")
		errutil.AssertErrorCode(t, err, "ACCOUNT_EMAIL_NOT_FOUND")
	})

	t.Run("geolocation failure falls back to placeholders", func(t *testing.T) {
		svc, repo, notifier, locator := newTestService(t)
		acct := testAccount(t)

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)
		repo.On("Update", ctx, mock.Anything).Return(nil)
		locator.On("Resolve", ctx, "203.0.113.7").
			Return(account.Location{}, errors.New("lookup failed"))

		var sentReq account.ResetRequest
		notifier.On("SendPasswordReset", ctx, "ada@example.com", "Ada", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				sentReq = args.Get(4).(account.ResetRequest)
			}).Return(nil)

		require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com", "203.0.113.7"))
		assert.Equal(t, account.PlaceholderLocation(), sentReq.Location)
	})

	t.Run("dispatch failure surfaces", func(t *testing.T) {
		svc, repo, notifier, locator := newTestService(t)
		acct := testAccount(t)

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)
		repo.On("Update", ctx, mock.Anything).Return(nil)
		locator.On("Resolve", ctx, mock.Anything).Return(account.PlaceholderLocation(), nil)
		notifier.On("SendPasswordReset", ctx, "ada@example.com", "Ada", mock.Anything, mock.Anything).
			Return(errors.New("smtp down"))

		err := svc.RequestPasswordReset(ctx, "ada@example.com", "203.0.113.7")
		errutil.AssertErrorCode(t, err, "NOTIFY_DISPATCH_FAILED")
	})

	t.Run("store update failure surfaces before dispatch", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		acct := testAccount(t)

		repo.On("GetByEmail", ctx, "ada@example.com").Return(acct, nil)
		repo.On("Update", ctx, mock.Anything).Return(errors.New("connection refused"))

		err := svc.RequestPasswordReset(ctx, "ada@example.com", "203.0.113.7")
		errutil.AssertErrorCode(t, err, "STORE_UNAVAILABLE")
	})
}

func TestServiceCompletePasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces credential and consumes token", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)

		token, digest, err := account.GenerateToken()
		require.NoError(t, err)

		acct := testAccount(t)
		acct.TokenDigest = digest

		repo.On("GetByTokenDigest", ctx, digest).Return(acct, nil)

		var newHash, newDigest string
		repo.On("UpdateCredential", ctx, acct.ID, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				newHash = args.String(2)
				newDigest = args.String(3)
			}).Return(nil)

		require.NoError(t, svc.CompletePasswordReset(ctx, token, "brand-new-secret"))

		ok, err := account.NewArgon2idHasher().Verify("brand-new-secret", newHash)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.False(t, account.MatchToken(token, newDigest), "consumed token cannot be replayed")
	})

	t.Run("weak secret rejected before the store is touched", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)

		err := svc.CompletePasswordReset(ctx, "sometoken", "short")
		errutil.AssertErrorCode(t, err, "ACCOUNT_WEAK_SECRET")
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		repo.On("GetByTokenDigest", ctx, mock.Anything).Return(nil, account.ErrNotFound)

		err := svc.CompletePasswordReset(ctx, "deadbeef", "brand-new-secret")
		errutil.AssertErrorCode(t, err, "ACCOUNT_TOKEN_INVALID")
	})

	t.Run("custom secret policy", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)

		err := svc.CompletePasswordResetWithPolicy(ctx, "sometoken", "only-twelve!", 20)
		errutil.AssertErrorCode(t, err, "ACCOUNT_WEAK_SECRET")
	})
}

// memoryRepository is a map-backed AccountRepository for lifecycle tests.
type memoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*account.Account // keyed by ID
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{accounts: make(map[string]*account.Account)}
}

func (r *memoryRepository) Create(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == acct.Email {
			return account.ErrDuplicateEmail
		}
	}
	stored := *acct
	r.accounts[acct.ID.String()] = &stored
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acct, ok := r.accounts[id.String()]; ok {
		copied := *acct
		return &copied, nil
	}
	return nil, account.ErrNotFound
}

func (r *memoryRepository) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acct := range r.accounts {
		if acct.Email == email {
			copied := *acct
			return &copied, nil
		}
	}
	return nil, account.ErrNotFound
}

func (r *memoryRepository) GetByTokenDigest(_ context.Context, digest string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acct := range r.accounts {
		if acct.TokenDigest == digest {
			copied := *acct
			return &copied, nil
		}
	}
	return nil, account.ErrNotFound
}

func (r *memoryRepository) Update(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[acct.ID.String()]; !ok {
		return account.ErrNotFound
	}
	stored := *acct
	r.accounts[acct.ID.String()] = &stored
	return nil
}

func (r *memoryRepository) UpdateCredential(_ context.Context, id ulid.ULID, credentialHash, tokenDigest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id.String()]
	if !ok {
		return account.ErrNotFound
	}
	acct.CredentialHash = credentialHash
	acct.TokenDigest = tokenDigest
	acct.UpdatedAt = time.Now()
	return nil
}

// captureNotifier records dispatched tokens.
type captureNotifier struct {
	verificationToken string
	resetToken        string
}

func (n *captureNotifier) SendVerification(_ context.Context, _, _, token string) error {
	n.verificationToken = token
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, _, _, token string, _ account.ResetRequest) error {
	n.resetToken = token
	return nil
}

type staticLocator struct{}

func (staticLocator) Resolve(context.Context, string) (account.Location, error) {
	return account.PlaceholderLocation(), nil
}

// TestAccountLifecycle drives the whole state machine end to end against an
// in-memory store: register, fail to log in unverified, verify, log in,
// reset the password, and confirm old credential and consumed tokens are
// dead.
func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	notifier := &captureNotifier{}

	svc, err := account.NewService(repo, account.NewArgon2idHasher(), notifier, staticLocator{})
	require.NoError(t, err)

	// Register.
	acct, err := svc.Register(ctx, account.RegisterInput{
		Email:     "Grace@Example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
		Secret:    "first-secret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, notifier.verificationToken)

	// Duplicate registration fails.
	_, err = svc.Register(ctx, account.RegisterInput{
		Email:     "grace@example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
		Secret:    "another-secret",
	})
	errutil.AssertErrorCode(t, err, "ACCOUNT_EMAIL_TAKEN")

	// Login before verification is refused distinctly.
	_, err = svc.Login(ctx, "grace@example.com", "first-secret")
	errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_VERIFIED")

	// Verify; replaying the token afterwards is a silent no-op.
	require.NoError(t, svc.Verify(ctx, notifier.verificationToken))
	require.NoError(t, svc.Verify(ctx, notifier.verificationToken))

	got, err := svc.Login(ctx, "grace@example.com", "first-secret")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)

	// Reset flow.
	require.NoError(t, svc.RequestPasswordReset(ctx, "grace@example.com", "203.0.113.7"))
	require.NotEmpty(t, notifier.resetToken)
	require.NoError(t, svc.CompletePasswordReset(ctx, notifier.resetToken, "second-secret"))

	// New credential works; the old one and the consumed token do not.
	_, err = svc.Login(ctx, "grace@example.com", "second-secret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "grace@example.com", "first-secret")
	errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_CREDENTIALS")

	err = svc.CompletePasswordReset(ctx, notifier.resetToken, "third-secret")
	errutil.AssertErrorCode(t, err, "ACCOUNT_TOKEN_INVALID")
}
