package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/ssh"
)

func testSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	return signer
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptionManagerFromSigner(testSigner(t))
	if err != nil {
		t.Fatalf("failed to create encryption manager: %v", err)
	}

	plaintext := []byte(`anthropic = "sk-ant-test"`)
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if string(ciphertext) == string(plaintext) {
		t.Fatal("ciphertext equals plaintext")
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("round trip mismatch: got %q", decrypted)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	enc1, err := NewEncryptionManagerFromSigner(testSigner(t))
	if err != nil {
		t.Fatal(err)
	}
	enc2, err := NewEncryptionManagerFromSigner(testSigner(t))
	if err != nil {
		t.Fatal(err)
	}

	ciphertext, err := enc1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Error("expected decryption with a different key to fail")
	}
}

func TestCredentialStorePlaintext(t *testing.T) {
	dir := t.TempDir()

	store, err := NewCredentialStore(SecurityPlainText, nil)
	if err != nil {
		t.Fatal(err)
	}
	store.Set("anthropic", "sk-ant-abc")
	if err := store.Save(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := NewCredentialStore(SecurityPlainText, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := reloaded.Get("anthropic"); got != "sk-ant-abc" {
		t.Errorf("expected stored key, got %q", got)
	}
}

func TestCredentialStoreEncrypted(t *testing.T) {
	dir := t.TempDir()
	enc, err := NewEncryptionManagerFromSigner(testSigner(t))
	if err != nil {
		t.Fatal(err)
	}

	store, err := NewCredentialStore(SecuritySSHKey, enc)
	if err != nil {
		t.Fatal(err)
	}
	store.Set("openai", "sk-test")
	if err := store.Save(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := NewCredentialStore(SecuritySSHKey, enc)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := reloaded.Get("openai"); got != "sk-test" {
		t.Errorf("expected stored key, got %q", got)
	}
}

func TestCredentialEnvOverride(t *testing.T) {
	store, err := NewCredentialStore(SecurityPlainText, nil)
	if err != nil {
		t.Fatal(err)
	}
	store.Set("anthropic", "from-file")

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	if got := store.Get("anthropic"); got != "from-env" {
		t.Errorf("environment should win, got %q", got)
	}
}

func TestLoadMissingCredentialsFile(t *testing.T) {
	store, err := NewCredentialStore(SecurityPlainText, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Load(t.TempDir()); err != nil {
		t.Errorf("missing credentials file should not error: %v", err)
	}
}
