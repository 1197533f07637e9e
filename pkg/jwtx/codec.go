package jwtx

import (
	"time"
)

// Codec issues and verifies session tokens with one shared secret. The
// secret is read-only after construction so a Codec is safe for concurrent
// use.
type Codec struct {
	signer   Signer
	verifier Verifier
	issuer   string
	now      func() time.Time
}

// NewHS256Codec builds a Codec for the given secret and issuer.
func NewHS256Codec(secret []byte, issuer string) (*Codec, error) {
	signer, err := NewSignerHS256(secret)
	if err != nil {
		return nil, err
	}
	verifier, err := NewVerifierHS256(secret, issuer, 0)
	if err != nil {
		return nil, err
	}

	return &Codec{
		signer:   signer,
		verifier: verifier,
		issuer:   issuer,
		now:      time.Now,
	}, nil
}

// Issue signs a token for subject with the given role that expires after
// ttl. A non-positive ttl falls back to DefaultTokenTTL.
func (c *Codec) Issue(subject, role string, ttl time.Duration) (string, error) {
	claims := NewClaims(subject, role, ttl, c.issuer, c.now().UTC())
	return c.signer.Sign(claims)
}

// Verify checks the signature and expiry of token. See HS256Verifier.Verify
// for the error contract.
func (c *Codec) Verify(token string) (Claims, error) {
	return c.verifier.Verify(token)
}

// Alg reports the signing algorithm in use.
func (c *Codec) Alg() string { return c.signer.Alg() }
