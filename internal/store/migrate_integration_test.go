//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/accountd/accountd/internal/store"
)

func TestMigrator_FullCycle(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close()

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	pending, err := migrator.PendingMigrations()
	require.NoError(t, err)
	assert.NotEmpty(t, pending)

	require.NoError(t, migrator.Up())

	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// The schema must be usable after Up.
	pool, err := store.Connect(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	var count int
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Duplicate emails differ only in case must be rejected by the schema.
	_, err = pool.Exec(ctx, `
		INSERT INTO accounts (id, email, first_name, last_name, credential_hash, token_digest)
		VALUES ('01ARZ3NDEKTSV4RRFFQ69G5FAV', 'dup@example.com', 'A', 'B', 'h', 'd1')
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO accounts (id, email, first_name, last_name, credential_hash, token_digest)
		VALUES ('01ARZ3NDEKTSV4RRFFQ69G5FAW', 'DUP@example.com', 'A', 'B', 'h', 'd2')
	`)
	require.Error(t, err)

	require.NoError(t, migrator.Down())

	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)
}
