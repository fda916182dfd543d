// Package pin hashes and verifies the admin PIN with argon2id.
package pin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidPIN is returned when a PIN does not satisfy the policy.
var ErrInvalidPIN = errors.New("pin must be 4-8 digits")

type params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

var defaultParams = params{
	memory:      64 * 1024,
	iterations:  2,
	parallelism: 1,
	saltLength:  16,
	keyLength:   32,
}

// ValidatePolicy checks the PIN shape: 4 to 8 digits.
func ValidatePolicy(code string) error {
	if len(code) < 4 || len(code) > 8 {
		return ErrInvalidPIN
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrInvalidPIN
		}
	}
	return nil
}

// CreateDigest validates the PIN and returns its encoded argon2id digest.
func CreateDigest(code string) (string, error) {
	if err := ValidatePolicy(code); err != nil {
		return "", err
	}

	p := defaultParams
	salt := make([]byte, p.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(code), salt, p.iterations, p.memory, p.parallelism, p.keyLength)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", p.memory, p.iterations, p.parallelism, b64Salt, b64Hash), nil
}

// Verify reports whether code matches the encoded digest.
func Verify(code, encodedDigest string) (bool, error) {
	p, salt, hash, err := decodeDigest(encodedDigest)
	if err != nil {
		return false, err
	}

	otherHash := argon2.IDKey([]byte(code), salt, p.iterations, p.memory, p.parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}

func decodeDigest(encoded string) (params, []byte, []byte, error) {
	var p params
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return p, nil, nil, errors.New("invalid digest format")
	}
	if parts[1] != "argon2id" {
		return p, nil, nil, errors.New("invalid digest variant")
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, nil, nil, errors.New("invalid digest parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errors.New("invalid salt")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, errors.New("invalid hash")
	}
	p.saltLength = uint32(len(salt))
	p.keyLength = uint32(len(hash))
	return p, salt, hash, nil
}
