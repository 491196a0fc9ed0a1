package giftcard_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tripline/tripline-api/internal/domain/giftcard"
)

func TestGenerateCodeFormat(t *testing.T) {
	appID := uuid.New()

	for i := 0; i < 100; i++ {
		code := giftcard.GenerateCode(appID)
		if !giftcard.ValidCode(code) {
			t.Fatalf("generated code %q does not match GC- + 12 uppercase hex", code)
		}
	}
}

func TestGenerateCodeVaries(t *testing.T) {
	appID := uuid.New()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := giftcard.GenerateCode(appID)
		if seen[code] {
			t.Fatalf("duplicate code %q generated within 1000 attempts", code)
		}
		seen[code] = true
	}
}

func TestValidCode(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"GC-0123456789AB", true},
		{"GC-ABCDEF012345", true},
		{"GC-abcdef012345", false}, // lowercase
		{"GC-0123456789A", false},  // too short
		{"GC-0123456789ABC", false},
		{"XX-0123456789AB", false},
		{"GC-0123456789AG", false}, // non-hex
		{"", false},
	}

	for _, c := range cases {
		if got := giftcard.ValidCode(c.code); got != c.want {
			t.Fatalf("ValidCode(%q) = %v, want %v", c.code, got, c.want)
		}
	}
}
