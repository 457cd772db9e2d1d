package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anucarts/marketplace-backend/pkg/config"
	"golang.org/x/crypto/argon2"
)

const phcFormat = "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"

var (
	// ErrInvalidHash is returned for stored hashes that are not argon2id PHC strings.
	ErrInvalidHash = errors.New("invalid argon2id hash")
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")

	b64 = base64.RawStdEncoding
)

// Params are the argon2id cost settings encoded into every hash.
type Params struct {
	MemoryKB uint32
	Passes   uint32
	Threads  uint8
	SaltLen  uint32
	KeyLen   uint32
}

// ParamsFromConfig bounds the configured costs to values argon2 accepts and
// a login request can afford.
func ParamsFromConfig(cfg config.PasswordConfig) Params {
	return Params{
		MemoryKB: bounded(cfg.ArgonMemoryKB, 8, 512*1024),
		Passes:   bounded(cfg.ArgonTime, 1, 10),
		Threads:  uint8(bounded(cfg.ArgonParallelism, 1, 255)),
		SaltLen:  bounded(cfg.ArgonSaltLen, 8, 64),
		KeyLen:   bounded(cfg.ArgonKeyLen, 16, 64),
	}
}

// Hasher hashes and verifies account passwords.
type Hasher struct {
	params Params
}

func NewHasher(cfg config.PasswordConfig) *Hasher {
	return &Hasher{params: ParamsFromConfig(cfg)}
}

// Hash returns a PHC-formatted argon2id hash with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	p := h.params
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Passes, p.MemoryKB, p.Threads, p.KeyLen)
	return fmt.Sprintf(phcFormat, argon2.Version, p.MemoryKB, p.Passes, p.Threads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify checks password against a stored hash using the costs recorded in
// the hash, so hashes made under older settings keep verifying.
func (h *Hasher) Verify(password, stored string) (bool, error) {
	p, salt, key, err := parsePHC(stored)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(password), salt, p.Passes, p.MemoryKB, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// NeedsRehash reports whether stored was produced with different costs than
// the hasher currently uses.
func (h *Hasher) NeedsRehash(stored string) bool {
	p, _, _, err := parsePHC(stored)
	if err != nil {
		return true
	}
	return p != h.params
}

func parsePHC(stored string) (Params, []byte, []byte, error) {
	segments := strings.Split(stored, "$")
	if len(segments) != 6 || segments[0] != "" || segments[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(segments[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, ErrInvalidHash
	}
	var p Params
	if _, err := fmt.Sscanf(segments[3], "m=%d,t=%d,p=%d", &p.MemoryKB, &p.Passes, &p.Threads); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	salt, err := b64.DecodeString(segments[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(segments[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	p.SaltLen, p.KeyLen = uint32(len(salt)), uint32(len(key))
	return p, salt, key, nil
}

func bounded(v, lo, hi int) uint32 {
	switch {
	case v < lo:
		return uint32(lo)
	case v > hi:
		return uint32(hi)
	}
	return uint32(v)
}
