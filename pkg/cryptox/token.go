package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token.
// Short-lived secrets such as 2FA codes are stored by fingerprint so a dump
// of the backing store doesn't reveal live values.
//
// The fingerprint is returned as a base64url-encoded string (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MatchFingerprint reports whether candidate fingerprints to want, in
// constant time.
func MatchFingerprint(candidate, want string) bool {
	return subtle.ConstantTimeCompare([]byte(FingerprintToken(candidate)), []byte(want)) == 1
}
