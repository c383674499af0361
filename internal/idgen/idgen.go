// Package idgen generates random identifiers for records.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// Prefixes used across moodguard records.
const (
	PrefixAssessment = "ra_"
	PrefixResource   = "cr_"
	PrefixRequest    = "req_"
)

// WithPrefix returns prefix followed by 24 random hex chars.
func WithPrefix(prefix string) string {
	return prefix + Hex(12)
}

// Hex returns numBytes random bytes hex-encoded.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
