package auth

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	verifierLength   = 128
	verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewVerifier returns a 128 character PKCE code verifier drawn from [A-Za-z0-9] with crypto/rand.
func NewVerifier() (string, error) {
	// 248 is the largest multiple of 62 that fits in a byte; higher values are rejected to avoid bias.
	const limit = 256 - 256%len(verifierAlphabet)

	out := make([]byte, 0, verifierLength)
	buf := make([]byte, verifierLength)
	for len(out) < verifierLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate code verifier: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, verifierAlphabet[int(b)%len(verifierAlphabet)])
			if len(out) == verifierLength {
				break
			}
		}
	}
	return string(out), nil
}

// Challenge derives the S256 code challenge: unpadded base64url of SHA-256(verifier).
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
