// Package cryptox holds the password hashing used for local-password
// accounts. Hashes are Argon2id PHC strings:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<key>
//
// salt and key are unpadded standard base64. Parameters travel with every
// hash, so stored hashes keep verifying after the defaults change.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"golang.org/x/crypto/argon2"
)

// Params are the Argon2 cost settings used for new hashes.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  int
	KeyLength   uint32
}

// DefaultParams match the argon2 reference defaults (19 MiB, t=2, p=1).
var DefaultParams = Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// upper bounds accepted when parsing a stored hash
const (
	maxMemory     = 1 << 20
	maxIterations = 16
	maxKeyLength  = 128
)

// randRead is a seam for tests that simulate entropy failure.
var randRead = common.GenerateRandBytes

// PasswordHasher hashes and verifies local-account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

// Argon2Hasher implements PasswordHasher with Argon2id.
type Argon2Hasher struct {
	params Params
}

func NewArgon2Hasher(p Params) *Argon2Hasher {
	return &Argon2Hasher{params: p}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	return hashWithParams(password, h.params)
}

func (h *Argon2Hasher) Verify(password, encoded string) bool {
	return VerifyPassword(password, encoded)
}

// HashPassword hashes with DefaultParams and a fresh random salt, so two
// calls on the same password never return the same string.
func HashPassword(password string) (string, error) {
	return hashWithParams(password, DefaultParams)
}

func hashWithParams(password string, p Params) (string, error) {
	salt, err := randRead(p.SaltLength)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrHashing, err)
	}

	secret := []byte(password)
	key := argon2.IDKey(secret, salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	common.WipeByteArray(secret)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password produced encoded. A hash that
// cannot be parsed is a failed verification, not an error.
func VerifyPassword(password, encoded string) bool {
	d, err := decodeHash(encoded)
	if err != nil {
		return false
	}

	var candidate []byte
	switch d.variant {
	case "argon2id":
		candidate = argon2.IDKey([]byte(password), d.salt, d.iterations, d.memory, d.parallelism, uint32(len(d.key)))
	case "argon2i":
		candidate = argon2.Key([]byte(password), d.salt, d.iterations, d.memory, d.parallelism, uint32(len(d.key)))
	default:
		return false
	}

	return subtle.ConstantTimeCompare(candidate, d.key) == 1
}

type decodedHash struct {
	variant     string
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodeHash(encoded string) (*decodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("unexpected hash format")
	}

	d := &decodedHash{variant: parts[1]}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("bad version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.memory, &d.iterations, &parallelism); err != nil {
		return nil, fmt.Errorf("bad parameters: %w", err)
	}
	if d.memory == 0 || d.memory > maxMemory || d.iterations == 0 || d.iterations > maxIterations ||
		parallelism == 0 || parallelism > 255 {
		return nil, fmt.Errorf("parameters out of range")
	}
	d.parallelism = uint8(parallelism)

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("bad salt: %w", err)
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("bad key: %w", err)
	}
	if len(d.salt) == 0 || len(d.key) == 0 || len(d.key) > maxKeyLength {
		return nil, fmt.Errorf("bad salt or key length")
	}

	return d, nil
}
