package fieldcrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testIV  = "a0a1a2a3a4a5a6a7a8a9aaabacadaeaf"
)

func TestAESCodec_RoundTrip(t *testing.T) {
	codec, err := New(Options{KeyHex: testKey})
	require.NoError(t, err)

	for _, in := range []string{"", "Alice", "221B Baker Street", "ñandú 東京", strings.Repeat("x", 4096)} {
		enc, err := codec.Encrypt(in)
		require.NoError(t, err)
		if in != "" {
			assert.NotEqual(t, in, enc)
			assert.True(t, strings.HasPrefix(enc, sealedPrefix))
		}
		dec, err := codec.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, in, dec)
	}
}

func TestAESCodec_EmptyPassesThrough(t *testing.T) {
	codec, err := New(Options{KeyHex: testKey})
	require.NoError(t, err)

	enc, err := codec.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, enc)

	dec, err := codec.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestAESCodec_NonDeterministic(t *testing.T) {
	codec, err := New(Options{KeyHex: testKey})
	require.NoError(t, err)

	a, err := codec.Encrypt("Alice")
	require.NoError(t, err)
	b, err := codec.Encrypt("Alice")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAESCodec_LegacyCompat(t *testing.T) {
	writer, err := New(Options{KeyHex: testKey, LegacyIVHex: testIV, LegacyWrite: true})
	require.NoError(t, err)

	legacy, err := writer.Encrypt("Alice")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(legacy, sealedPrefix))
	assert.Len(t, legacy, len("Alice")*2)

	again, err := writer.Encrypt("Alice")
	require.NoError(t, err)
	assert.Equal(t, legacy, again, "static iv is deterministic")

	reader, err := New(Options{KeyHex: testKey, LegacyIVHex: testIV})
	require.NoError(t, err)
	dec, err := reader.Decrypt(legacy)
	require.NoError(t, err)
	assert.Equal(t, "Alice", dec)

	noIV, err := New(Options{KeyHex: testKey})
	require.NoError(t, err)
	_, err = noIV.Decrypt(legacy)
	assert.ErrorIs(t, err, ErrLegacyUnsupported)
}

func TestAESCodec_TamperedCiphertext(t *testing.T) {
	codec, err := New(Options{KeyHex: testKey})
	require.NoError(t, err)

	enc, err := codec.Encrypt("Alice")
	require.NoError(t, err)
	tampered := enc[:len(enc)-2] + "AA"
	if tampered == enc {
		tampered = enc[:len(enc)-2] + "BB"
	}
	_, err = codec.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = codec.Decrypt(sealedPrefix + "!!")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{KeyHex: "abcd"})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = New(Options{KeyHex: testKey, LegacyIVHex: "zz"})
	assert.ErrorIs(t, err, ErrInvalidIV)

	_, err = New(Options{KeyHex: testKey, LegacyWrite: true})
	assert.ErrorIs(t, err, ErrInvalidIV)
}
