// Package commit implements the hash-commitment primitive of the wagering
// protocol: a party publishes sha256(move|salt) before play and reveals the
// move and salt at settlement.
package commit

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const saltBytes = 16

// New computes the commitment hash for a move and salt
func New(move, salt string) string {
	sum := sha256.Sum256([]byte(move + "|" + salt))
	return hex.EncodeToString(sum[:])
}

// NewSalt generates a random hex salt
func NewSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Placeholder returns a random commitment published at wager creation for
// house-operated participants. The real move is chosen only at settlement;
// this stands in for a move commitment so the wire format stays uniform.
func Placeholder() (string, error) {
	buf := make([]byte, sha256.Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate placeholder commitment: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Verify checks a revealed move and salt against a commitment hash
func Verify(hash, move, salt string) bool {
	expected := New(move, salt)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(hash)) == 1
}
