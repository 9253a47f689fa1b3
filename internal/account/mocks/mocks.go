// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package mocks provides hand-maintained testify mocks for the account
// package's collaborator interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/accountd/accountd/internal/account"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockAccountRepository mocks account.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock wired to the test lifecycle.
func NewMockAccountRepository(t testingT) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, acct *account.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByTokenDigest(ctx context.Context, digest string) (*account.Account, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, acct *account.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *MockAccountRepository) UpdateCredential(ctx context.Context, id ulid.ULID, credentialHash, tokenDigest string) error {
	args := m.Called(ctx, id, credentialHash, tokenDigest)
	return args.Error(0)
}

// MockCredentialHasher mocks account.CredentialHasher.
type MockCredentialHasher struct {
	mock.Mock
}

// NewMockCredentialHasher creates a mock wired to the test lifecycle.
func NewMockCredentialHasher(t testingT) *MockCredentialHasher {
	m := &MockCredentialHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCredentialHasher) Hash(secret string) (string, error) {
	args := m.Called(secret)
	return args.String(0), args.Error(1)
}

func (m *MockCredentialHasher) Verify(secret, hash string) (bool, error) {
	args := m.Called(secret, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockCredentialHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

// MockNotifier mocks account.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a mock wired to the test lifecycle.
func NewMockNotifier(t testingT) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) SendVerification(ctx context.Context, to, firstName, token string) error {
	args := m.Called(ctx, to, firstName, token)
	return args.Error(0)
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, to, firstName, token string, req account.ResetRequest) error {
	args := m.Called(ctx, to, firstName, token, req)
	return args.Error(0)
}

// MockLocationResolver mocks account.LocationResolver.
type MockLocationResolver struct {
	mock.Mock
}

// NewMockLocationResolver creates a mock wired to the test lifecycle.
func NewMockLocationResolver(t testingT) *MockLocationResolver {
	m := &MockLocationResolver{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLocationResolver) Resolve(ctx context.Context, ip string) (account.Location, error) {
	args := m.Called(ctx, ip)
	loc, _ := args.Get(0).(account.Location)
	return loc, args.Error(1)
}
