package otp

import (
	"encoding/base32"
	"testing"
	"time"
)

// rfcSecret is the RFC 6238 test key "12345678901234567890", base32-encoded.
var rfcSecret = base32.StdEncoding.EncodeToString([]byte("12345678901234567890"))

func TestCodeReferenceVectors(t *testing.T) {
	// Truncated to 6 digits from the RFC 6238 appendix vectors.
	tests := []struct {
		at   int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}

	for _, tt := range tests {
		code, err := Code(rfcSecret, time.Unix(tt.at, 0).UTC())
		if err != nil {
			t.Fatalf("Code(t=%d): %v", tt.at, err)
		}
		if code != tt.want {
			t.Errorf("Code(t=%d) = %q, want %q", tt.at, code, tt.want)
		}
	}
}

func TestVerify(t *testing.T) {
	at := time.Unix(59, 0).UTC()

	if !Verify(rfcSecret, "287082", at) {
		t.Error("expected the correct code to verify")
	}
	if Verify(rfcSecret, "000000", at) {
		t.Error("expected a wrong code to fail")
	}
	if Verify(rfcSecret, "", at) {
		t.Error("expected an empty code to fail")
	}
	// The same code one full time step later must fail: no skew window.
	if Verify(rfcSecret, "287082", at.Add(30*time.Second)) {
		t.Error("expected the code to be rejected outside its time step")
	}
	if Verify("not base32!", "287082", at) {
		t.Error("expected an undecodable secret to fail")
	}
}

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(secret) != 32 {
		t.Errorf("expected 32-character secret, got %d", len(secret))
	}

	raw, err := base32.StdEncoding.DecodeString(secret)
	if err != nil {
		t.Fatalf("secret is not valid base32: %v", err)
	}
	if len(raw) != SecretBytes {
		t.Errorf("expected %d raw bytes, got %d", SecretBytes, len(raw))
	}

	other, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if secret == other {
		t.Error("expected two generated secrets to differ")
	}
}
