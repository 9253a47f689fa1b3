// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by AccountRepository.Create when the
// normalized email is already registered. Store implementations map their
// engine's unique-constraint violation to this sentinel so callers never
// see a driver error for an expected outcome.
var ErrDuplicateEmail = errors.New("email already registered")
