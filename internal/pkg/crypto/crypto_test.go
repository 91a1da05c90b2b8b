package crypto

import (
	"errors"
	"strings"
	"testing"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestHashString(t *testing.T) {
	// Known SHA-256 vector.
	got := HashString("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("HashString(abc) = %s, want %s", got, want)
	}

	if HashString("abc") != HashString("abc") {
		t.Error("hash is not deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different inputs produced the same hash")
	}
}

func TestValidateSHA256(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid digest", HashString("anything"), true},
		{"too short", "ba7816bf", false},
		{"too long", strings.Repeat("a", 65), false},
		{"non-hex characters", strings.Repeat("g", 64), false},
		{"uppercase hex", strings.Repeat("A", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateSHA256(tt.input); got != tt.want {
				t.Errorf("ValidateSHA256(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	plaintext := "JBSWY3DPEHPK3PXP"
	ciphertext, err := enc.EncryptString(plaintext)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if ciphertext == plaintext {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := enc.DecryptString(ciphertext)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("round trip = %q, want %q", decrypted, plaintext)
	}

	// GCM nonces are random, so encrypting twice must differ.
	again, err := enc.EncryptString(plaintext)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if again == ciphertext {
		t.Error("two encryptions produced identical ciphertext")
	}
}

func TestEncryptorWrongKey(t *testing.T) {
	enc, err := NewEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	other, err := NewEncryptor([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	ciphertext, err := enc.EncryptString("secret")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}

	if _, err := other.DecryptString(ciphertext); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("DecryptString with wrong key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestEncryptorBadInput(t *testing.T) {
	if _, err := NewEncryptor([]byte("short")); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("NewEncryptor(short key) error = %v, want ErrInvalidKeySize", err)
	}

	enc, err := NewEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	if _, err := enc.DecryptString("not base64!!"); err == nil {
		t.Error("expected an error for undecodable ciphertext")
	}
	if _, err := enc.DecryptString("YWJj"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("DecryptString(too short) error = %v, want ErrInvalidCiphertext", err)
	}
}

func TestRandomString(t *testing.T) {
	s, err := RandomString(32, LowercaseAlphabet+Digits)
	if err != nil {
		t.Fatalf("RandomString: %v", err)
	}
	if len(s) != 32 {
		t.Errorf("length = %d, want 32", len(s))
	}
	for _, c := range s {
		if !strings.ContainsRune(LowercaseAlphabet+Digits, c) {
			t.Errorf("character %q outside the charset", c)
		}
	}

	other, err := RandomString(32, LowercaseAlphabet+Digits)
	if err != nil {
		t.Fatalf("RandomString: %v", err)
	}
	if s == other {
		t.Error("two random strings are identical")
	}

	if _, err := RandomString(0, Digits); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("RandomString(0) error = %v, want ErrInvalidLength", err)
	}
	if _, err := RandomString(8, ""); err == nil {
		t.Error("expected an error for an empty charset")
	}
}

func TestParseHexKey(t *testing.T) {
	hexKey, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	if len(hexKey) != KeySize*2 {
		t.Fatalf("master key length = %d, want %d", len(hexKey), KeySize*2)
	}

	key, err := ParseHexKey(hexKey)
	if err != nil {
		t.Fatalf("ParseHexKey: %v", err)
	}
	if len(key) != KeySize {
		t.Errorf("parsed key length = %d, want %d", len(key), KeySize)
	}

	if _, err := ParseHexKey("abcd"); !errors.Is(err, ErrInvalidHexKey) {
		t.Errorf("ParseHexKey(short) error = %v, want ErrInvalidHexKey", err)
	}
	if _, err := ParseHexKey(strings.Repeat("z", 64)); !errors.Is(err, ErrInvalidHexKey) {
		t.Errorf("ParseHexKey(non-hex) error = %v, want ErrInvalidHexKey", err)
	}
}
