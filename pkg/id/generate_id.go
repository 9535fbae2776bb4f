// Package id mints the 32-char hex identifiers used for advances, reservations and repayments.
package id

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID32 returns a UUIDv7 as 32 lowercase hex chars. Ids sort by creation time.
func NewID32() string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return hex.EncodeToString(u[:])
}

// Valid reports whether s has the NewID32 shape.
func Valid(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
