// Package fieldcrypt cifra los campos personales antes de persistirlos.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	keySize      = 32
	sealedPrefix = "v2:"
)

var (
	ErrInvalidKey        = errors.New("encryption key must be 32 bytes hex encoded")
	ErrInvalidIV         = errors.New("encryption iv must be 16 bytes hex encoded")
	ErrMalformed         = errors.New("malformed ciphertext")
	ErrLegacyUnsupported = errors.New("legacy ciphertext without configured iv")
)

// Codec es la transformacion reversible aplicada en el borde de persistencia.
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Options configura el codec. LegacyIV habilita la lectura (y con LegacyWrite,
// la escritura) del formato AES-256-CTR hex con IV fijo.
type Options struct {
	KeyHex      string
	LegacyIVHex string
	LegacyWrite bool
}

// AESCodec sella con AES-256-GCM y nonce aleatorio por valor.
type AESCodec struct {
	aead        cipher.AEAD
	block       cipher.Block
	legacyIV    []byte
	legacyWrite bool
}

// New construye un AESCodec a partir de claves en hex.
func New(opts Options) (*AESCodec, error) {
	key, err := hex.DecodeString(strings.TrimSpace(opts.KeyHex))
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	c := &AESCodec{aead: aead, block: block}
	if iv := strings.TrimSpace(opts.LegacyIVHex); iv != "" {
		raw, err := hex.DecodeString(iv)
		if err != nil || len(raw) != aes.BlockSize {
			return nil, ErrInvalidIV
		}
		c.legacyIV = raw
		c.legacyWrite = opts.LegacyWrite
	} else if opts.LegacyWrite {
		return nil, ErrInvalidIV
	}
	return c, nil
}

func (c *AESCodec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if c.legacyWrite {
		return hex.EncodeToString(c.ctr([]byte(plaintext))), nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	// nonce || ciphertext
	payload := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(payload), nil
}

func (c *AESCodec) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !strings.HasPrefix(ciphertext, sealedPrefix) {
		return c.decryptLegacy(ciphertext)
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	nonceSize := c.aead.NonceSize()
	if len(payload) < nonceSize {
		return "", ErrMalformed
	}
	plaintext, err := c.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(plaintext), nil
}

func (c *AESCodec) decryptLegacy(ciphertext string) (string, error) {
	if c.legacyIV == nil {
		return "", ErrLegacyUnsupported
	}
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(c.ctr(raw)), nil
}

// CTR es simetrico: la misma operacion cifra y descifra.
func (c *AESCodec) ctr(in []byte) []byte {
	out := make([]byte, len(in))
	cipher.NewCTR(c.block, c.legacyIV).XORKeyStream(out, in)
	return out
}
