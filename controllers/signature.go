package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signatureHeader = "X-Hub-Signature-256"

// verifyMetaSignature checks header ("sha256=<hex>") against the HMAC-SHA256
// of rawBody keyed with the Meta App Secret.
func verifyMetaSignature(header string, rawBody []byte, secret string) (bool, string) {
	sig := strings.TrimSpace(header)
	if sig == "" {
		return false, "missing " + signatureHeader
	}
	if !strings.HasPrefix(sig, "sha256=") {
		return false, "invalid " + signatureHeader + " format"
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil {
		return false, "invalid signature hex"
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return false, "signature mismatch"
	}
	return true, ""
}
