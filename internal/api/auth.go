package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// TokenVerifier resolves a bearer token to a user identity.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

var errInvalidToken = errors.New("invalid token")

// HMACVerifier verifies tokens of the form base64url(userID).base64url(sig)
// where sig = HMAC-SHA256(secret, userID). Tokens are minted by the identity
// frontend sharing the same secret.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier. The secret must be at least 32 bytes.
func NewHMACVerifier(secret []byte) (*HMACVerifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("auth secret must be at least 32 bytes")
	}
	return &HMACVerifier{secret: secret}, nil
}

// Verify checks the token signature and returns the embedded user ID.
func (v *HMACVerifier) Verify(token string) (string, error) {
	encodedID, encodedSig, ok := strings.Cut(token, ".")
	if !ok {
		return "", errInvalidToken
	}

	idBytes, err := base64.RawURLEncoding.DecodeString(encodedID)
	if err != nil {
		return "", errInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return "", errInvalidToken
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(idBytes)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return "", errInvalidToken
	}

	userID := string(idBytes)
	if userID == "" {
		return "", errInvalidToken
	}
	return userID, nil
}

// GuestOnlyVerifier rejects every token, forcing the guest identity.
// Used when no auth secret is configured.
type GuestOnlyVerifier struct{}

// Verify always fails.
func (GuestOnlyVerifier) Verify(string) (string, error) {
	return "", errInvalidToken
}

// MintToken creates a token for the given user ID. Used by tests and local
// tooling; production tokens come from the identity frontend.
func (v *HMACVerifier) MintToken(userID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(userID))
	return base64.RawURLEncoding.EncodeToString([]byte(userID)) +
		"." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
