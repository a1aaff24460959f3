// Package pkce implements Proof Key for Code Exchange (RFC 7636) for the
// authorization code flow. A fresh verifier/challenge pair is generated per
// login attempt; the challenge travels in the authorization URL and the
// verifier is only disclosed during the final code exchange.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// verifierBytes is the entropy of a generated verifier. 32 random bytes
// encode to 43 base64url characters, the RFC 7636 minimum length.
const verifierBytes = 32

// Pair holds a PKCE code verifier and its S256 code challenge.
type Pair struct {
	// Verifier is the secret held locally until the code exchange
	Verifier string

	// Challenge is the URL-safe base64 encoded SHA-256 of the verifier,
	// embedded in the authorization URL
	Challenge string
}

// Generate creates a fresh verifier/challenge pair from a cryptographically
// secure random source. Encodings are unpadded base64url.
func Generate() (Pair, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return Pair{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(b)

	return Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
	}, nil
}

// Challenge computes the S256 code challenge for a verifier.
func Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// VerifyChallenge reports whether verifier matches challenge under the S256
// method. Comparison is constant time.
func VerifyChallenge(challenge, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	computed := Challenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// ValidateVerifier checks the RFC 7636 constraints on a code verifier:
// 43-128 characters drawn from [A-Za-z0-9-._~].
func ValidateVerifier(verifier string) error {
	if len(verifier) < 43 {
		return fmt.Errorf("code verifier must be at least 43 characters")
	}
	if len(verifier) > 128 {
		return fmt.Errorf("code verifier must be at most 128 characters")
	}
	for _, ch := range verifier {
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') && (ch < '0' || ch > '9') &&
			ch != '-' && ch != '.' && ch != '_' && ch != '~' {
			return fmt.Errorf("code verifier contains invalid characters (must be [A-Za-z0-9-._~])")
		}
	}
	return nil
}
