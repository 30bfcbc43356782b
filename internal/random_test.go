package internal

import (
	"strings"
	"testing"
)

func TestNewOTPLengthAndCharset(t *testing.T) {
	for _, digits := range []int{6, 8, 10} {
		otp, err := NewOTP(digits)
		if err != nil {
			t.Fatalf("NewOTP(%d) failed: %v", digits, err)
		}
		if len(otp) != digits {
			t.Fatalf("NewOTP(%d) returned %d chars", digits, len(otp))
		}
		if !IsNumericString(otp) {
			t.Fatalf("NewOTP(%d) returned non-numeric %q", digits, otp)
		}
	}

	for _, digits := range []int{0, 5, 11} {
		if _, err := NewOTP(digits); err == nil {
			t.Fatalf("NewOTP(%d) should be rejected", digits)
		}
	}
}

func TestResetTokenRoundTrip(t *testing.T) {
	secret, err := NewResetSecret()
	if err != nil {
		t.Fatalf("NewResetSecret failed: %v", err)
	}

	token := EncodeResetToken(secret)
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("token must be url-safe without padding, got %q", token)
	}

	decoded, err := DecodeResetToken(token)
	if err != nil {
		t.Fatalf("DecodeResetToken failed: %v", err)
	}
	if decoded != secret {
		t.Fatal("decoded secret differs from original")
	}

	if _, err := DecodeResetToken("not!!base64"); err == nil {
		t.Fatal("expected decode error for invalid encoding")
	}
	if _, err := DecodeResetToken("c2hvcnQ"); err == nil {
		t.Fatal("expected decode error for wrong length")
	}
}

func TestHashesAreStable(t *testing.T) {
	secret, err := NewResetSecret()
	if err != nil {
		t.Fatalf("NewResetSecret failed: %v", err)
	}

	if HashResetSecret(secret) != HashResetSecret(secret) {
		t.Fatal("HashResetSecret must be deterministic")
	}
	if HashCredentialBytes([]byte("123456")) == HashCredentialBytes([]byte("123457")) {
		t.Fatal("different credentials must hash differently")
	}
}

func TestIsNumericString(t *testing.T) {
	if !IsNumericString("0123456789") {
		t.Fatal("digits must be numeric")
	}
	for _, v := range []string{"12a456", "12 456", "１２３４５６"} {
		if IsNumericString(v) {
			t.Fatalf("%q must not be numeric", v)
		}
	}
}
