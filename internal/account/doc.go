// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package account implements the account lifecycle state machine:
// registration, email verification, login, and password reset.
//
// # Domain Types
//
// Account values should be created with the NewAccount factory, which
// hashes the plaintext secret before the value exists. Direct struct
// initialization bypasses validation and can produce an account carrying
// a plaintext secret, which no code in this module may do.
//
// # Services
//
// The Service type coordinates the lifecycle operations. It holds no
// mutable state of its own; all state lives behind AccountRepository,
// so the service is safe to replicate. Service is created with
// NewService, which validates its dependencies.
//
// The engine never renders UI and never talks to SMTP or HTTP directly;
// it calls the Notifier and LocationResolver collaborators.
package account
