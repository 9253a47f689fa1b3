// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package notify

import (
	"context"
	"time"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"
)

// DefaultSendTimeout bounds a single SMTP dial-and-send so a slow mail
// transport cannot stall a lifecycle operation.
const DefaultSendTimeout = 10 * time.Second

// SMTPDispatcher sends messages over SMTP using gomail.
type SMTPDispatcher struct {
	dialer  *gomail.Dialer
	from    string
	timeout time.Duration
}

// NewSMTPDispatcher creates an SMTPDispatcher.
// from is the sender address placed in the From header.
func NewSMTPDispatcher(host string, port int, username, password, from string) *SMTPDispatcher {
	return &SMTPDispatcher{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		timeout: DefaultSendTimeout,
	}
}

// WithTimeout returns a copy of the dispatcher with a different per-send
// timeout.
func (d *SMTPDispatcher) WithTimeout(timeout time.Duration) *SMTPDispatcher {
	copied := *d
	copied.timeout = timeout
	return &copied
}

// Send delivers one HTML message. The send runs in its own goroutine and is
// abandoned when the context or the timeout expires; gomail has no native
// context support, so the goroutine is left to finish and its result is
// discarded.
func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, bodyHTML string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", bodyHTML)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return oops.Code("NOTIFY_DISPATCH_FAILED").
				With("to", to).
				With("subject", subject).
				Wrap(err)
		}
		return nil
	case <-ctx.Done():
		return oops.Code("NOTIFY_DISPATCH_FAILED").
			With("to", to).
			With("subject", subject).
			Wrap(ctx.Err())
	}
}

var _ Dispatcher = (*SMTPDispatcher)(nil)
