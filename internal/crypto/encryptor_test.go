package crypto

import (
	"testing"
)

func TestNewTokenEncryptor(t *testing.T) {
	if _, err := NewTokenEncryptor(""); err == nil {
		t.Fatal("expected error for empty key")
	}

	enc, err := NewTokenEncryptor("any-passphrase")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc == nil {
		t.Fatal("expected non-nil encryptor")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, _ := NewTokenEncryptor("test-key")

	secrets := []string{
		"1//0abcdef-refresh-token",
		"canvas-api-key-123",
		"short",
	}

	for _, secret := range secrets {
		ciphertext, err := enc.Encrypt(secret)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		if ciphertext == secret {
			t.Error("ciphertext should differ from plaintext")
		}

		plaintext, err := enc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if plaintext != secret {
			t.Errorf("expected %q, got %q", secret, plaintext)
		}
	}
}

func TestEncryptEmptyPassesThrough(t *testing.T) {
	enc, _ := NewTokenEncryptor("test-key")

	ciphertext, err := enc.Encrypt("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ciphertext != "" {
		t.Errorf("expected empty string, got %q", ciphertext)
	}

	plaintext, err := enc.Decrypt("")
	if err != nil || plaintext != "" {
		t.Errorf("expected empty round trip, got %q, %v", plaintext, err)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	enc, _ := NewTokenEncryptor("test-key")

	a, _ := enc.Encrypt("same-secret")
	b, _ := enc.Encrypt("same-secret")
	if a == b {
		t.Error("expected distinct ciphertexts for repeated encryptions")
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc1, _ := NewTokenEncryptor("key-one")
	enc2, _ := NewTokenEncryptor("key-two")

	ciphertext, _ := enc1.Encrypt("secret")
	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption with wrong key to fail")
	}
}

func TestDecryptGarbageFails(t *testing.T) {
	enc, _ := NewTokenEncryptor("test-key")

	if _, err := enc.Decrypt("not-base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if _, err := enc.Decrypt("c2hvcnQ="); err == nil {
		t.Fatal("expected error for truncated ciphertext")
	}
}
