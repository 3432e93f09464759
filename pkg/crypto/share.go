package crypto

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/sss"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	AlgAESGCM            = "aes-gcm"
	AlgXChaCha20Poly1305 = "xchacha20-poly1305"

	hkdfInfo = "secagg|share-cipher|v1|"
	shareAAD = "secagg-share-v1"
)

// ShareCipher encrypts individual shares under a key derived from the
// deployment's shared key.
type ShareCipher struct {
	alg   string
	aead  cipher.AEAD
	keyID string
}

// NewShareCipher derives the AEAD key for alg from the shared key.
func NewShareCipher(key []byte, alg string) (*ShareCipher, error) {
	if len(key) != KeySize {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, errKeySize)
	}

	alg = strings.ToLower(strings.TrimSpace(alg))
	if alg == "" {
		alg = AlgAESGCM
	}

	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(hkdfInfo+alg)), derived); err != nil {
		return nil, fmt.Errorf("failed to derive share key: %w", err)
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch alg {
	case AlgAESGCM:
		aead, err = newGCM(derived)
	case AlgXChaCha20Poly1305:
		aead, err = chacha20poly1305.NewX(derived)
	default:
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("unknown share cipher %q", alg))
	}
	if err != nil {
		return nil, err
	}

	sum := blake3.Sum256(key)

	return &ShareCipher{
		alg:   alg,
		aead:  aead,
		keyID: hex.EncodeToString(sum[:8]),
	}, nil
}

// Algorithm returns the AEAD in use.
func (c *ShareCipher) Algorithm() string {
	return c.alg
}

// KeyID returns a short fingerprint of the shared key, safe to log.
func (c *ShareCipher) KeyID() string {
	return c.keyID
}

// Seal encrypts one share and returns it base64 encoded.
func (c *ShareCipher) Seal(share sss.Share) (string, error) {
	payload, err := sss.MarshalShare(share)
	if err != nil {
		return "", err
	}

	ct, err := seal(c.aead, payload, []byte(shareAAD))
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(ct), nil
}

// Open decrypts a share produced by Seal. Every failure wraps ErrCrypto.
func (c *ShareCipher) Open(encoded string) (sss.Share, error) {
	ct, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return sss.Share{}, pkgerrors.Wrap(pkgerrors.ErrCrypto, err)
	}

	payload, err := open(c.aead, ct, []byte(shareAAD))
	if err != nil {
		return sss.Share{}, err
	}

	share, err := sss.UnmarshalShare(payload)
	if err != nil {
		return sss.Share{}, pkgerrors.Wrap(pkgerrors.ErrCrypto, err)
	}

	return share, nil
}
