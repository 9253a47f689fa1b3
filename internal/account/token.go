// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/samber/oops"
)

// TokenBytes is the entropy of an opaque token: 32 bytes = 64 hex chars,
// well above the 128-bit floor.
const TokenBytes = 32

// GenerateToken creates a secure random opaque token and its digest.
// Returns (plaintext_token, sha256_digest, error). The plaintext token goes
// to the user out of band; only the digest is stored. Tokens carry no
// structure, expiry, or account reference.
func GenerateToken() (token, digest string, err error) {
	buf := make([]byte, TokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("ACCOUNT_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(buf)
	digest = DigestToken(token)

	return token, digest, nil
}

// RetireToken returns a fresh digest whose token was never issued. Stored
// in place of a consumed digest so the old token cannot be replayed while
// the "one outstanding token" shape of the record is preserved.
func RetireToken() (string, error) {
	_, digest, err := GenerateToken()
	return digest, err
}

// MatchToken checks a plaintext token against a stored digest in constant
// time.
func MatchToken(token, digest string) bool {
	if token == "" || digest == "" {
		return false
	}
	computed := DigestToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// DigestToken computes the hex-encoded SHA-256 digest of a token.
func DigestToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
