// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package httpapi exposes the account lifecycle over a small JSON API.
// It is deliberately thin: request decoding, code-to-status mapping, and
// nothing else. All rules live in the account engine.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/account"
)

// AccountService is the subset of the account engine the API exposes.
type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput) (*account.Account, error)
	Verify(ctx context.Context, token string) error
	Login(ctx context.Context, email, secret string) (*account.Account, error)
	RequestPasswordReset(ctx context.Context, email, clientIP string) error
	CompletePasswordReset(ctx context.Context, token, newSecret string) error
}

// Handler serves the account JSON API.
type Handler struct {
	svc    AccountService
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a Handler. logger may be nil, in which case the default
// logger is used.
func NewHandler(svc AccountService, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, oops.Errorf("account service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{svc: svc, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /register", h.handleRegister)
	h.mux.HandleFunc("GET /verify/{token}", h.handleVerify)
	h.mux.HandleFunc("POST /login", h.handleLogin)
	h.mux.HandleFunc("POST /password-reset/request", h.handleResetRequest)
	h.mux.HandleFunc("POST /password-reset/complete", h.handleResetComplete)
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Verified  bool   `json:"verified"`
}

type errorResponse struct {
	Code   string   `json:"code"`
	Errors []string `json:"errors"`
}

func toAccountResponse(acct *account.Account) accountResponse {
	return accountResponse{
		ID:        acct.ID.String(),
		Email:     acct.Email,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
		Verified:  acct.Verified,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Password  string `json:"password"`
	}
	if !h.decode(w, r, &in) {
		return
	}

	acct, err := h.svc.Register(r.Context(), account.RegisterInput{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Secret:    in.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Verify(r.Context(), r.PathValue("token")); err != nil {
		h.writeError(w, r, err)
		return
	}
	// Unknown tokens are indistinguishable from consumed ones.
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &in) {
		return
	}

	acct, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !h.decode(w, r, &in) {
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), in.Email, clientIP(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleResetComplete(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &in) {
		return
	}

	if err := h.svc.CompletePasswordReset(r.Context(), in.Token, in.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:   "BAD_REQUEST",
			Errors: []string{"invalid JSON body"},
		})
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("failed to encode response", "error", err)
	}
}

// writeError maps engine error codes to HTTP statuses. Joined validation
// errors surface as one 400 with every message listed.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	h.writeJSON(w, status, errorResponse{Code: code, Errors: messages(err)})
}

func classify(err error) (code string, status int) {
	for _, e := range flatten(err) {
		if oopsErr, ok := oops.AsOops(e); ok {
			if c, ok := oopsErr.Code().(string); ok && c != "" {
				code = c
				break
			}
		}
	}

	switch code {
	case "ACCOUNT_INVALID_EMAIL", "ACCOUNT_WEAK_SECRET", "ACCOUNT_TOKEN_INVALID":
		return code, http.StatusBadRequest
	case "ACCOUNT_EMAIL_TAKEN":
		return code, http.StatusConflict
	case "ACCOUNT_INVALID_CREDENTIALS":
		return code, http.StatusUnauthorized
	case "ACCOUNT_NOT_VERIFIED":
		return code, http.StatusForbidden
	case "ACCOUNT_LOCKED":
		return code, http.StatusLocked
	case "ACCOUNT_EMAIL_NOT_FOUND":
		return code, http.StatusNotFound
	case "NOTIFY_DISPATCH_FAILED":
		return code, http.StatusBadGateway
	case "":
		return "INTERNAL", http.StatusInternalServerError
	default:
		return code, http.StatusInternalServerError
	}
}

// flatten unwraps one level of errors.Join so each joined validation issue
// is classified and reported on its own.
func flatten(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

func messages(err error) []string {
	flat := flatten(err)
	msgs := make([]string, 0, len(flat))
	for _, e := range flat {
		msgs = append(msgs, e.Error())
	}
	return msgs
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
