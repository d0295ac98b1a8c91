package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/ssh"
)

// keyDerivationChallenge is signed with the user's SSH key to derive a stable
// symmetric key. Changing it invalidates every encrypted credential file.
const keyDerivationChallenge = "atlasd-credential-encryption-v1"

// EncryptionManager encrypts small blobs (credential files) with an AES-256
// key derived deterministically from an SSH key signature. Ed25519 and RSA
// keys produce deterministic signatures, so the same key always derives the
// same AES key without storing any key material next to the ciphertext.
type EncryptionManager struct {
	signer ssh.Signer
	aesKey []byte
}

// NewEncryptionManager loads the SSH private key at keyPath and derives the
// AES key. Passphrase-protected keys are not supported on a headless server;
// point ssh_key_path at an unencrypted deploy key instead.
func NewEncryptionManager(keyPath string) (*EncryptionManager, error) {
	data, err := os.ReadFile(ExpandPath(keyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key (encrypted keys are not supported): %w", err)
	}

	return NewEncryptionManagerFromSigner(signer)
}

// NewEncryptionManagerFromSigner derives the AES key from an already-loaded
// signer. Split out from NewEncryptionManager so tests can use in-memory keys.
func NewEncryptionManagerFromSigner(signer ssh.Signer) (*EncryptionManager, error) {
	sig, err := signer.Sign(rand.Reader, []byte(keyDerivationChallenge))
	if err != nil {
		return nil, fmt.Errorf("failed to sign key-derivation challenge: %w", err)
	}

	key := sha256.Sum256(sig.Blob)
	return &EncryptionManager{signer: signer, aesKey: key[:]}, nil
}

// Encrypt seals plaintext with AES-256-GCM. The nonce is prepended to the
// returned ciphertext.
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func (e *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt (wrong SSH key?): %w", err)
	}

	return plaintext, nil
}
