// Package signer computes the message authentication signature required on
// authenticated exchange calls.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"optionflow/models"
)

// Sign computes the hex encoded HMAC-SHA256 of payload under secret. The
// payload must be the exact canonicalized request body, byte for byte.
// An empty secret is a fatal configuration error: an unsigned
// authenticated call must never be sent.
func Sign(payload, secret string) (string, error) {
	if secret == "" {
		return "", &models.ConfigurationError{Field: "secret_key"}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
