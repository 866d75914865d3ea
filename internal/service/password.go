package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PasswordHasher calcula y verifica hashes de password.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Argon2Params son los costos de argon2id. Los valores por defecto coinciden
// con node-argon2, asi los hashes existentes siguen verificando.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Time:        3,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

var errInvalidPHC = errors.New("invalid argon2 hash")

type argon2Hasher struct {
	params Argon2Params
}

func NewArgon2Hasher(params Argon2Params) PasswordHasher {
	if params.Memory == 0 || params.Time == 0 || params.Parallelism == 0 {
		params = DefaultArgon2Params
	}
	if params.SaltLength == 0 {
		params.SaltLength = DefaultArgon2Params.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = DefaultArgon2Params.KeyLength
	}
	return &argon2Hasher{params: params}
}

// Hash devuelve el formato PHC: $argon2id$v=19$m=..,t=..,p=..$salt$hash.
func (h *argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *argon2Hasher) Verify(password, encoded string) (bool, error) {
	p, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func parsePHC(encoded string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, errInvalidPHC
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return Argon2Params{}, nil, nil, errInvalidPHC
	}

	var p Argon2Params
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return Argon2Params{}, nil, nil, errInvalidPHC
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return Argon2Params{}, nil, nil, errInvalidPHC
		}
		switch k {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Time = uint32(n)
		case "p":
			if n > 255 {
				return Argon2Params{}, nil, nil, errInvalidPHC
			}
			p.Parallelism = uint8(n)
		default:
			return Argon2Params{}, nil, nil, errInvalidPHC
		}
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return Argon2Params{}, nil, nil, errInvalidPHC
	}

	salt, err := decodePHCBase64(parts[4])
	if err != nil || len(salt) == 0 {
		return Argon2Params{}, nil, nil, errInvalidPHC
	}
	key, err := decodePHCBase64(parts[5])
	if err != nil || len(key) == 0 {
		return Argon2Params{}, nil, nil, errInvalidPHC
	}
	return p, salt, key, nil
}

// PHC usa base64 sin padding, pero se aceptan ambos.
func decodePHCBase64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
