package app

import (
	"strconv"
	"testing"
)

func TestGenerateCodeFormat(t *testing.T) {
	codec := NewOtpCodec([]byte("test-secret"))
	for i := 0; i < 200; i++ {
		code, err := codec.GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6-digit code, got %q", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("code %q is not numeric: %v", code, err)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("code %d outside [100000, 999999]", n)
		}
	}
}

func TestHashCodeDeterministic(t *testing.T) {
	codec := NewOtpCodec([]byte("test-secret"))
	if codec.HashCode("123456") != codec.HashCode("123456") {
		t.Error("same code and secret must hash identically")
	}
	if codec.HashCode("123456") == codec.HashCode("123457") {
		t.Error("different codes must not collide")
	}

	other := NewOtpCodec([]byte("another-secret"))
	if codec.HashCode("123456") == other.HashCode("123456") {
		t.Error("hash must be keyed by the secret")
	}
}

func TestMatches(t *testing.T) {
	codec := NewOtpCodec([]byte("test-secret"))
	hash := codec.HashCode("654321")

	if !codec.Matches("654321", hash) {
		t.Error("correct code must match its stored hash")
	}
	if codec.Matches("654322", hash) {
		t.Error("wrong code must not match")
	}
	if codec.Matches("", hash) {
		t.Error("empty code must not match")
	}
}
