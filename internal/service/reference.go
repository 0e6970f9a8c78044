package service

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// DefaultReferencePrefix is prepended to every booking reference unless
// configured otherwise.
const DefaultReferencePrefix = "BK"

// referenceBytes is the amount of randomness in a booking reference.
const referenceBytes = 8

// ReferenceGenerator returns a new booking reference candidate.
type ReferenceGenerator func() (string, error)

// NewReferenceGenerator returns a generator producing prefix followed by 16
// uppercase hex characters drawn from crypto/rand.
func NewReferenceGenerator(prefix string) ReferenceGenerator {
	return func() (string, error) {
		b := make([]byte, referenceBytes)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		return prefix + strings.ToUpper(hex.EncodeToString(b)), nil
	}
}
