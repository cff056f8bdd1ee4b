package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testKey(fill byte) string {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = fill + byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	material, _ := DecodeKey(testKey(1))
	enc, err := NewEncryptor(material, 1)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"short", "hello"},
		{"api_key", "PKX7abc123XYZ789"},
		{"long", "a very long broker secret that nobody should ever see in a log line"},
		{"unicode", "clé-secrète-🔐"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := enc.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if !strings.HasPrefix(sealed, "ENC[v1]:") {
				t.Fatalf("sealed = %q, expected ENC[v1]: prefix", sealed)
			}
			opened, err := enc.Decrypt(sealed)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if opened != tt.plaintext {
				t.Fatalf("Decrypt() = %q, expected %q", opened, tt.plaintext)
			}
		})
	}
}

func TestEncryptNonceUniqueness(t *testing.T) {
	material, _ := DecodeKey(testKey(1))
	enc, _ := NewEncryptor(material, 1)

	c1, _ := enc.Encrypt("same-secret")
	c2, _ := enc.Encrypt("same-secret")
	if c1 == c2 {
		t.Fatalf("two seals of the same plaintext produced identical ciphertext")
	}
}

func TestNewEncryptorRejectsShortKey(t *testing.T) {
	if _, err := NewEncryptor([]byte("short"), 1); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("NewEncryptor() error = %v, expected ErrInvalidKey", err)
	}
}

func TestDecryptRejectsMalformed(t *testing.T) {
	material, _ := DecodeKey(testKey(1))
	enc, _ := NewEncryptor(material, 1)

	for _, bad := range []string{
		"",
		"not-encrypted",
		"ENC[v1]:",
		"ENC[v1]:!!!invalid",
	} {
		if _, err := enc.Decrypt(bad); err == nil {
			t.Fatalf("Decrypt(%q) succeeded, expected error", bad)
		}
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	material, _ := DecodeKey(testKey(1))
	enc, _ := NewEncryptor(material, 1)

	sealed, _ := enc.Encrypt("secret")
	tampered := sealed[:len(sealed)-2] + "AA"
	if tampered == sealed {
		tampered = sealed[:len(sealed)-2] + "BB"
	}
	if _, err := enc.Decrypt(tampered); err == nil {
		t.Fatalf("Decrypt() accepted tampered ciphertext")
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		ciphertext string
		expected   int
	}{
		{"ENC[v1]:data", 1},
		{"ENC[v2]:data", 2},
		{"ENC[v10]:data", 10},
		{"invalid", 0},
		{"ENC[vX]:data", 0},
	}
	for _, tt := range tests {
		if got := ParseVersion(tt.ciphertext); got != tt.expected {
			t.Fatalf("ParseVersion(%q) = %d, expected %d", tt.ciphertext, got, tt.expected)
		}
	}
}

func TestDecodeKeyForms(t *testing.T) {
	if _, err := DecodeKey(testKey(3)); err != nil {
		t.Fatalf("DecodeKey(base64) error = %v", err)
	}
	if _, err := DecodeKey(strings.Repeat("k", KeySize)); err != nil {
		t.Fatalf("DecodeKey(raw 32 bytes) error = %v", err)
	}
	if _, err := DecodeKey("too-short"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("DecodeKey(short) error = %v, expected ErrInvalidKey", err)
	}
}

func TestGenerateKeyUsable(t *testing.T) {
	keyStr, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	kr, err := NewKeyring(keyStr)
	if err != nil {
		t.Fatalf("NewKeyring(generated key) error = %v", err)
	}
	sealed, err := kr.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if opened, err := kr.Decrypt(sealed); err != nil || opened != "secret" {
		t.Fatalf("Decrypt() = %q, %v, expected secret", opened, err)
	}
}

func TestKeyringRotation(t *testing.T) {
	kr, err := NewKeyring(testKey(1), testKey(40))
	if err != nil {
		t.Fatalf("NewKeyring() error = %v", err)
	}
	if kr.CurrentVersion() != 2 {
		t.Fatalf("CurrentVersion() = %d, expected 2", kr.CurrentVersion())
	}

	// A value sealed by the old key alone must still open after rotation.
	old, err := NewKeyring(testKey(1))
	if err != nil {
		t.Fatalf("NewKeyring() error = %v", err)
	}
	sealed, err := old.Encrypt("legacy-secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	opened, err := kr.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt(v1 value) error = %v", err)
	}
	if opened != "legacy-secret" {
		t.Fatalf("Decrypt() = %q, expected legacy-secret", opened)
	}

	resealed, err := kr.ReEncrypt(sealed)
	if err != nil {
		t.Fatalf("ReEncrypt() error = %v", err)
	}
	if ParseVersion(resealed) != 2 {
		t.Fatalf("ReEncrypt() version = %d, expected 2", ParseVersion(resealed))
	}
}

func TestKeyringUnknownVersion(t *testing.T) {
	v2only, err := NewKeyring(testKey(40))
	if err != nil {
		t.Fatalf("NewKeyring() error = %v", err)
	}
	if _, err := v2only.Decrypt("ENC[v9]:YWJjZGVmZ2hpamtsbW5vcA=="); !errors.Is(err, ErrVersionUnavailable) {
		t.Fatalf("Decrypt() error = %v, expected ErrVersionUnavailable", err)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	kr, err := NewKeyring(testKey(7))
	if err != nil {
		t.Fatalf("NewKeyring() error = %v", err)
	}

	creds := Credentials{APIKey: "PKTEST123", APISecret: "sssh-very-secret"}
	sealed, err := kr.SealCredentials(creds)
	if err != nil {
		t.Fatalf("SealCredentials() error = %v", err)
	}
	if strings.Contains(sealed, "PKTEST123") || strings.Contains(sealed, "sssh") {
		t.Fatalf("sealed credentials leak plaintext: %s", sealed)
	}

	opened, err := kr.OpenCredentials(sealed)
	if err != nil {
		t.Fatalf("OpenCredentials() error = %v", err)
	}
	if opened != creds {
		t.Fatalf("OpenCredentials() = %+v, expected %+v", opened, creds)
	}
}
