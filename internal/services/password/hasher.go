// Package password hashes and verifies account passwords.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported algorithms
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

const argon2Prefix = "$argon2id$"

// BcryptMaxBytes is the longest password bcrypt accepts, in bytes
const BcryptMaxBytes = 72

// Hasher turns plaintext passwords into salted digests and checks them.
type Hasher interface {
	// Hash produces a salted digest with the preferred algorithm.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext reproduces hash. Mismatches and
	// unparseable hashes are false, never an error.
	Verify(plaintext, hash string) bool

	// NeedsUpgrade reports whether hash should be re-hashed with the preferred settings.
	NeedsUpgrade(hash string) bool

	// Algorithm names the preferred algorithm.
	Algorithm() string

	// MaxBytes is the longest plaintext Hash accepts, or 0 for no limit.
	MaxBytes() int
}

// Service hashes with one preferred algorithm and verifies any supported one
type Service struct {
	algorithm  string
	bcryptCost int
}

var _ Hasher = (*Service)(nil)

// New creates a hasher preferring the named algorithm.
// bcryptCost is only used for bcrypt; zero means bcrypt.DefaultCost.
func New(algorithm string, bcryptCost int) (*Service, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	switch algorithm {
	case AlgorithmBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("unknown password hasher %q", algorithm)
	}
	return &Service{algorithm: algorithm, bcryptCost: bcryptCost}, nil
}

// Algorithm returns the preferred algorithm name
func (s *Service) Algorithm() string {
	return s.algorithm
}

// MaxBytes returns BcryptMaxBytes for bcrypt and 0 for argon2id
func (s *Service) MaxBytes() int {
	if s.algorithm == AlgorithmBcrypt {
		return BcryptMaxBytes
	}
	return 0
}

func (s *Service) Hash(plaintext string) (string, error) {
	if s.algorithm == AlgorithmArgon2id {
		return hashArgon2id(plaintext)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) Verify(plaintext, hash string) bool {
	switch {
	case strings.HasPrefix(hash, argon2Prefix):
		return verifyArgon2id(plaintext, hash)
	case isBcrypt(hash):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
	default:
		return false
	}
}

func (s *Service) NeedsUpgrade(hash string) bool {
	if s.algorithm == AlgorithmArgon2id {
		return !strings.HasPrefix(hash, argon2Prefix)
	}
	if !isBcrypt(hash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hash))
	return err != nil || cost != s.bcryptCost
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// hashArgon2id encodes as PHC: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func hashArgon2id(plaintext string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyArgon2id(plaintext, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if threads == 0 || threads > 255 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 || len(expected) > 1<<10 {
		return false
	}

	computed := argon2.IDKey([]byte(plaintext), salt, iterations, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
