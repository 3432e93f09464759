package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
)

// KeySize is the size in bytes of the deployment's shared key.
const KeySize = 32

var (
	errKeySize         = errors.New("key must be 32 bytes (AES-256)")
	errCiphertextShort = errors.New("ciphertext too short")
)

// Encrypt encrypts data using AES-GCM.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	return seal(gcm, plaintext, nil)
}

// Decrypt decrypts data using AES-GCM. Any failure, including a wrong key or
// tampered ciphertext, is reported as ErrCrypto.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCrypto, err)
	}

	return open(gcm, ciphertext, nil)
}

// GenerateKey returns a fresh hex encoded shared key.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}

	return hex.EncodeToString(key), nil
}

// ParseKey decodes a hex encoded shared key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("failed to decode shared key: %w", err))
	}
	if len(key) != KeySize {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("shared key must be %d bytes, got %d", KeySize, len(key)))
	}

	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

func seal(aead cipher.AEAD, plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

func open(aead cipher.AEAD, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < aead.NonceSize() {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCrypto, errCiphertextShort)
	}

	nonce, ciphertext := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCrypto, err)
	}

	return plaintext, nil
}
