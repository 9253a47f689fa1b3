// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLockedOut(t *testing.T) {
	assert.False(t, IsLockedOut(nil))

	past := time.Now().Add(-time.Minute)
	assert.False(t, IsLockedOut(&past), "expired lockout is not a lockout")

	future := time.Now().Add(time.Minute)
	assert.True(t, IsLockedOut(&future))
}

func TestComputeLockoutTime(t *testing.T) {
	assert.Nil(t, ComputeLockoutTime(0))
	assert.Nil(t, ComputeLockoutTime(LockoutThreshold-1))

	lockout := ComputeLockoutTime(LockoutThreshold)
	require.NotNil(t, lockout)
	assert.WithinDuration(t, time.Now().Add(LockoutDuration), *lockout, 5*time.Second)

	// More failures keep the lockout, they do not clear it.
	assert.NotNil(t, ComputeLockoutTime(LockoutThreshold+5))
}
