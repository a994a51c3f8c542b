package security

import (
	"encoding/hex"
	"testing"
)

func TestGenerateNumericCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("expected only digits, got %q", code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatal("expected distinct codes across runs")
	}
}

func TestGenerateNumericCodeRejectsInvalidLength(t *testing.T) {
	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := GenerateNumericCode(-1); err == nil {
		t.Fatal("expected error for negative length")
	}
}

func TestGenerateSessionToken(t *testing.T) {
	token, err := GenerateSessionToken(32)
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Fatalf("token is not valid hex: %v", err)
	}

	other, err := GenerateSessionToken(32)
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}
	if token == other {
		t.Fatal("expected distinct tokens")
	}
}

func TestGenerateSessionTokenRejectsInvalidLength(t *testing.T) {
	if _, err := GenerateSessionToken(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}
