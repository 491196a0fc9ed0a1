package giftcard

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gift card codes are GC- followed by 12 uppercase hex characters, derived
// from the owning application, the current time and a random nonce. The
// UNIQUE constraint on gift_cards.code is the real collision guard; the
// issuer regenerates on conflict up to maxCodeAttempts times.
const (
	codePrefix      = "GC-"
	codeLength      = 12
	maxCodeAttempts = 3
)

// GenerateCode produces one candidate code for an application.
func GenerateCode(applicationID uuid.UUID) string {
	var nonce [8]byte
	rand.Read(nonce[:])

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))

	h := sha256.New()
	h.Write(applicationID[:])
	h.Write(ts[:])
	h.Write(nonce[:])

	hex := fmt.Sprintf("%X", h.Sum(nil))
	return codePrefix + hex[:codeLength]
}

// ValidCode reports whether a string has the issued code shape.
func ValidCode(code string) bool {
	if len(code) != len(codePrefix)+codeLength || !strings.HasPrefix(code, codePrefix) {
		return false
	}
	for _, c := range code[len(codePrefix):] {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
