// Package secret protects credentials stored in the settings file.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyFile is the name of the key file kept next to the settings.
const KeyFile = "key"

// ErrMalformed is returned when a ciphertext cannot be decoded or opened.
var ErrMalformed = errors.New("malformed ciphertext")

// Cipher encrypts and decrypts opaque blobs.
type Cipher interface {
	Encrypt(plain []byte) (string, error)
	Decrypt(sealed string) ([]byte, error)
}

// Box is an XChaCha20-Poly1305 Cipher. Ciphertexts are base64(nonce||sealed).
type Box struct {
	key []byte
}

// NewBox creates a Box from a 32 byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Box{key: append([]byte(nil), key...)}, nil
}

// LoadOrCreate reads the key file in dir, generating it on first use.
func LoadOrCreate(dir string) (*Box, error) {
	path := filepath.Join(dir, KeyFile)
	key, err := os.ReadFile(path)
	if err == nil {
		return NewBox(key)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to read key file %s: %w", path, err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("unable to generate key: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("unable to write key file %s: %w", path, err)
	}
	return NewBox(key)
}

func (b *Box) Encrypt(plain []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("unable to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, plain, nil)), nil
}

func (b *Box) Decrypt(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, ErrMalformed
	}
	nonce, body := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return plain, nil
}
