package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidKeySize    = errors.New("encryption key must be 32 bytes")
	ErrMalformedPayload  = errors.New("malformed ciphertext payload")
	ErrDecryptionFailure = errors.New("decryption failed")
)

// Codec is the at-rest encryption boundary for message bodies. Decrypt is the
// inverse of Encrypt for any string, including the empty string.
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type aesCodec struct {
	aead cipher.AEAD
}

// NewAESCodec builds an AES-256-GCM codec from a 32-byte key. The random GCM
// nonce is prepended to the ciphertext and the whole payload base64-encoded.
func NewAESCodec(key []byte) (Codec, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init gcm: %w", err)
	}

	return &aesCodec{aead: aead}, nil
}

func (c *aesCodec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *aesCodec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformedPayload
	}

	if len(raw) < c.aead.NonceSize() {
		return "", ErrMalformedPayload
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailure
	}

	return string(plaintext), nil
}
