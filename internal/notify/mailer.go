// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package notify

import (
	"context"
	"html/template"
	"strings"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/account"
	"github.com/accountd/accountd/internal/observability"
)

// Message subjects.
const (
	verificationSubject = "Verify your email"
	resetSubject        = "Reset Password Request"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`
<html>
  <body>
    <h1>Verify Your Email</h1>
    <p>Dear {{.FirstName}},</p>
    <p>Thank you for registering! Please click the verification button below to activate your account.</p>
    <div>
      <a href="{{.BaseURL}}/verify/{{.Token}}" target="_blank">
        <button style="background-color: #4CAF50; color: white; padding: 10px 20px; border: none; border-radius: 5px; cursor: pointer;">
          Verify Email
        </button>
      </a>
    </div>
    <p>Best regards,</p>
    <p>The accountd team</p>
  </body>
</html>
`))

var resetTmpl = template.Must(template.New("reset").Parse(`
<html>
  <body>
    <h1>Reset your password</h1>
    <p>Dear {{.FirstName}},</p>
    <p>You are receiving this email as there has been a request to reset your password.</p>
    <div>
      <a href="{{.BaseURL}}/reset-password/{{.Token}}" target="_blank">
        <button style="background-color: #4CAF50; color: white; padding: 10px 20px; border: none; border-radius: 5px; cursor: pointer;">
          Reset Password
        </button>
      </a>
    </div>
    <p>The request came from the following location. If this was not you, you can safely ignore this email.</p>
    <table style="border-collapse: collapse;">
      <tr><td style="padding: 8px; border: 1px solid #ccc; font-weight: bold;">IP</td><td style="padding: 8px; border: 1px solid #ccc;">{{.IP}}</td></tr>
      <tr><td style="padding: 8px; border: 1px solid #ccc; font-weight: bold;">Time</td><td style="padding: 8px; border: 1px solid #ccc;">{{.Time}}</td></tr>
      <tr><td style="padding: 8px; border: 1px solid #ccc; font-weight: bold;">City</td><td style="padding: 8px; border: 1px solid #ccc;">{{.City}}</td></tr>
      <tr><td style="padding: 8px; border: 1px solid #ccc; font-weight: bold;">Region</td><td style="padding: 8px; border: 1px solid #ccc;">{{.Region}}</td></tr>
      <tr><td style="padding: 8px; border: 1px solid #ccc; font-weight: bold;">Country</td><td style="padding: 8px; border: 1px solid #ccc;">{{.Country}}</td></tr>
    </table>
    <p>Thanks,</p>
    <p>The accountd team</p>
  </body>
</html>
`))

// Mailer implements account.Notifier on top of a Dispatcher. BaseURL is the
// externally reachable address used to build token links.
type Mailer struct {
	dispatcher Dispatcher
	baseURL    string
}

// NewMailer creates a Mailer.
func NewMailer(dispatcher Dispatcher, baseURL string) (*Mailer, error) {
	if dispatcher == nil {
		return nil, oops.Errorf("dispatcher is required")
	}
	if baseURL == "" {
		return nil, oops.Errorf("base URL is required")
	}
	return &Mailer{
		dispatcher: dispatcher,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}, nil
}

// SendVerification dispatches the post-registration verification message.
func (m *Mailer) SendVerification(ctx context.Context, to, firstName, token string) error {
	var body strings.Builder
	err := verificationTmpl.Execute(&body, struct {
		FirstName string
		BaseURL   string
		Token     string
	}{firstName, m.baseURL, token})
	if err != nil {
		observability.RecordNotification("verification", "error")
		return oops.Code("NOTIFY_RENDER_FAILED").
			With("template", "verification").
			Wrap(err)
	}

	if err := m.dispatcher.Send(ctx, to, verificationSubject, body.String()); err != nil {
		observability.RecordNotification("verification", "error")
		return err
	}

	observability.RecordNotification("verification", "ok")
	return nil
}

// SendPasswordReset dispatches the reset message with the request context
// the user sees (IP, time, best-effort location).
func (m *Mailer) SendPasswordReset(ctx context.Context, to, firstName, token string, req account.ResetRequest) error {
	var body strings.Builder
	err := resetTmpl.Execute(&body, struct {
		FirstName string
		BaseURL   string
		Token     string
		IP        string
		Time      string
		City      string
		Region    string
		Country   string
	}{
		FirstName: firstName,
		BaseURL:   m.baseURL,
		Token:     token,
		IP:        req.IP,
		Time:      req.Time.Format("Jan 02 2006 03:04:05 PM"),
		City:      req.Location.City,
		Region:    req.Location.Region,
		Country:   req.Location.Country,
	})
	if err != nil {
		observability.RecordNotification("password_reset", "error")
		return oops.Code("NOTIFY_RENDER_FAILED").
			With("template", "reset").
			Wrap(err)
	}

	if err := m.dispatcher.Send(ctx, to, resetSubject, body.String()); err != nil {
		observability.RecordNotification("password_reset", "error")
		return err
	}

	observability.RecordNotification("password_reset", "ok")
	return nil
}

// Compile-time interface check.
var _ account.Notifier = (*Mailer)(nil)
