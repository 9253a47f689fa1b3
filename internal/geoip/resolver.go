// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package geoip resolves client IPs to coarse locations via the ipinfo.io
// HTTP API. Resolution is best-effort; callers fall back to placeholder
// values when it fails.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/account"
)

// DefaultTimeout bounds a single lookup. Resets should not wait on a slow
// geolocation backend.
const DefaultTimeout = 5 * time.Second

const defaultEndpoint = "https://ipinfo.io"

// Resolver looks up IP locations against ipinfo.io.
type Resolver struct {
	client   *http.Client
	endpoint string
	token    string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the HTTP client used for lookups.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithEndpoint replaces the API base URL. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(r *Resolver) {
		r.endpoint = endpoint
	}
}

// NewResolver creates a Resolver. token is the ipinfo.io API token; it may
// be empty, in which case unauthenticated rate limits apply.
func NewResolver(token string, opts ...Option) *Resolver {
	r := &Resolver{
		client:   &http.Client{Timeout: DefaultTimeout},
		endpoint: defaultEndpoint,
		token:    token,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up ip. Fields the backend does not know come back as the
// placeholder values, so a partially known location still renders.
func (r *Resolver) Resolve(ctx context.Context, ip string) (account.Location, error) {
	lookupURL := fmt.Sprintf("%s/%s/json", r.endpoint, url.PathEscape(ip))
	if r.token != "" {
		lookupURL += "?token=" + url.QueryEscape(r.token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return account.PlaceholderLocation(), oops.Code("GEOIP_LOOKUP_FAILED").
			With("ip", ip).
			Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return account.PlaceholderLocation(), oops.Code("GEOIP_LOOKUP_FAILED").
			With("ip", ip).
			Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return account.PlaceholderLocation(), oops.Code("GEOIP_LOOKUP_FAILED").
			With("ip", ip).
			With("status", resp.StatusCode).
			Errorf("ipinfo returned status %d", resp.StatusCode)
	}

	var payload struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return account.PlaceholderLocation(), oops.Code("GEOIP_LOOKUP_FAILED").
			With("ip", ip).
			Wrap(err)
	}

	loc := account.PlaceholderLocation()
	if payload.City != "" {
		loc.City = payload.City
	}
	if payload.Region != "" {
		loc.Region = payload.Region
	}
	if payload.Country != "" {
		loc.Country = payload.Country
	}
	return loc, nil
}

var _ account.LocationResolver = (*Resolver)(nil)
