// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package notify delivers lifecycle messages (verification, password reset)
// through an out-of-band channel. The account engine only sees the
// Dispatcher and account.Notifier contracts; transport lives here.
package notify

import (
	"context"
	"log/slog"
)

// Dispatcher hands a message to an external delivery mechanism.
// Dispatch success does not guarantee delivery.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

// LogDispatcher writes messages to the log instead of sending them.
// Used in development and tests.
type LogDispatcher struct {
	Logger *slog.Logger
}

// Send logs the message and reports success.
func (d *LogDispatcher) Send(_ context.Context, to, subject, bodyHTML string) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email (not sent)",
		"to", to,
		"subject", subject,
		"body_bytes", len(bodyHTML),
	)
	return nil
}

var _ Dispatcher = (*LogDispatcher)(nil)
