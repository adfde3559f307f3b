package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) Codec {
	t.Helper()
	codec, err := NewAESCodec(bytes.Repeat([]byte("s"), 32))
	require.NoError(t, err)
	return codec
}

func TestNewAESCodecKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 24, 31, 33} {
		_, err := NewAESCodec(make([]byte, size))
		assert.ErrorIs(t, err, ErrInvalidKeySize, "size %d", size)
	}

	_, err := NewAESCodec(make([]byte, 32))
	assert.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := testCodec(t)

	cases := []string{
		"hello",
		"",
		"こんにちは世界 🌍",
		strings.Repeat("long message ", 10_000),
	}
	for _, plaintext := range cases {
		ciphertext, err := codec.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := codec.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	codec := testCodec(t)

	first, err := codec.Encrypt("same message")
	require.NoError(t, err)
	second, err := codec.Encrypt("same message")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "a fresh nonce must yield a fresh ciphertext")
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	codec := testCodec(t)

	t.Run("not base64", func(t *testing.T) {
		_, err := codec.Decrypt("%%% not base64 %%%")
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("too short for nonce", func(t *testing.T) {
		_, err := codec.Decrypt("c2hvcnQ=")
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		ciphertext, err := codec.Encrypt("integrity matters")
		require.NoError(t, err)

		raw := []byte(ciphertext)
		raw[len(raw)-5] ^= 1
		_, err = codec.Decrypt(string(raw))
		assert.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		ciphertext, err := codec.Encrypt("secret")
		require.NoError(t, err)

		other, err := NewAESCodec(bytes.Repeat([]byte("x"), 32))
		require.NoError(t, err)

		_, err = other.Decrypt(ciphertext)
		assert.ErrorIs(t, err, ErrDecryptionFailure)
	})
}
