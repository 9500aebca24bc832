// Package auth implements the challenge/response authentication
// algebra: server nonce generation, the fixed MAC message shape, and
// constant-time comparison.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// ModeOpen and ModePSK are the two auth modes recognized in a HELLO's
// requested auth field.
const (
	ModeOpen = "open"
	ModePSK  = "psk-hmac-sha256"
)

// NewNonce returns a fresh 32-byte random nonce, base64-encoded for
// the wire.
func NewNonce() (raw []byte, encoded string, err error) {
	raw = make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generate nonce: %w", err)
	}
	return raw, base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeNonce reverses the base64 encoding produced by NewNonce.
func DecodeNonce(encoded string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	return b, nil
}

// ComputeMAC implements the fixed challenge-response message shape:
//
//	mac = HMAC_SHA256(key=UTF-8(sharedKey),
//	                   msg=serverNonce||clientNonce||UTF-8(serverDeviceId)||UTF-8(clientDeviceId))
//
// with no length prefixes between fields.
func ComputeMAC(sharedKey string, serverNonce, clientNonce []byte, serverDeviceID, clientDeviceID string) []byte {
	h := hmac.New(sha256.New, []byte(sharedKey))
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(serverDeviceID))
	h.Write([]byte(clientDeviceID))
	return h.Sum(nil)
}

// EncodeMAC/DecodeMAC move a raw MAC to/from its wire (base64) form.
func EncodeMAC(mac []byte) string { return base64.StdEncoding.EncodeToString(mac) }

func DecodeMAC(encoded string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode mac: %w", err)
	}
	return b, nil
}

// Verify reports whether candidate equals the MAC computed from the
// given shared key and message fields, using constant-time comparison
// so a single-bit difference never short-circuits. A missing/empty
// sharedKey always fails as an AUTH_FAILED case — the caller never
// needs to special-case "no key configured" on the verifying side.
func Verify(sharedKey string, serverNonce, clientNonce []byte, serverDeviceID, clientDeviceID string, candidate []byte) bool {
	if sharedKey == "" {
		return false
	}
	expected := ComputeMAC(sharedKey, serverNonce, clientNonce, serverDeviceID, clientDeviceID)
	return subtle.ConstantTimeCompare(expected, candidate) == 1
}
