// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

// Package credential hashes and verifies person secrets with argon2id.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Lower bounds enforced by NewHasher. Configuration applies stricter floors.
const (
	MinSaltLength = 24
	MinKeyLength  = 16
)

// Ceilings on the memory cost read back from a stored hash. Verify rejects
// hashes that ask for more than MemoryCeilingFactor times the configured
// memory, and decode rejects anything above MaxMemoryKiB outright.
const (
	MemoryCeilingFactor = 16
	MaxMemoryKiB        = 4 * 1024 * 1024
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("CREDENTIAL_EMPTY_PASSWORD").Errorf("password cannot be empty")

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32 // bytes
	KeyLength   uint32 // bytes
}

// DefaultParams returns parameters suitable for interactive logins on a
// small host. Production deployments should raise Memory towards hundreds of
// MiB and calibrate against the logged hash durations.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  24,
		KeyLength:   32,
	}
}

// Validate checks that the parameters can produce a hash.
func (p Params) Validate() error {
	switch {
	case p.Iterations < 1:
		return oops.Code("CREDENTIAL_INVALID_PARAMS").With("iterations", p.Iterations).Errorf("iterations must be at least 1")
	case p.Parallelism < 1:
		return oops.Code("CREDENTIAL_INVALID_PARAMS").With("parallelism", p.Parallelism).Errorf("parallelism must be at least 1")
	case p.Memory < 8*uint32(p.Parallelism):
		return oops.Code("CREDENTIAL_INVALID_PARAMS").
			With("memory", p.Memory).
			With("parallelism", p.Parallelism).
			Errorf("memory must be at least 8 KiB per lane")
	case p.Memory > MaxMemoryKiB:
		return oops.Code("CREDENTIAL_INVALID_PARAMS").With("memory", p.Memory).Errorf("memory must not exceed %d KiB", MaxMemoryKiB)
	case p.SaltLength < MinSaltLength:
		return oops.Code("CREDENTIAL_INVALID_PARAMS").With("salt_length", p.SaltLength).Errorf("salt must be at least %d bytes", MinSaltLength)
	case p.KeyLength < MinKeyLength:
		return oops.Code("CREDENTIAL_INVALID_PARAMS").With("key_length", p.KeyLength).Errorf("key must be at least %d bytes", MinKeyLength)
	}
	return nil
}

// Hasher produces and verifies argon2id PHC strings:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
//
// It holds no per-call state and is safe for concurrent use.
type Hasher struct {
	params Params
	random io.Reader
}

// NewHasher creates a Hasher with the given parameters.
func NewHasher(params Params) (*Hasher, error) {
	return NewHasherWithReader(params, rand.Reader)
}

// NewHasherWithReader creates a Hasher drawing salts from r.
func NewHasherWithReader(params Params, r io.Reader) (*Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, oops.Code("CREDENTIAL_INVALID_PARAMS").Errorf("random source is required")
	}
	return &Hasher{params: params, random: r}, nil
}

// Params returns the configured parameters.
func (h *Hasher) Params() Params {
	return h.params
}

// Hash produces an argon2id hash of the password with a fresh salt.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return "", oops.Code("CREDENTIAL_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the encoded hash.
// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	d, err := decode(encoded)
	if err != nil {
		return false, err
	}
	if limit := uint64(h.params.Memory) * MemoryCeilingFactor; uint64(d.params.Memory) > limit {
		return false, oops.Code("CREDENTIAL_INVALID_HASH").
			With("memory", d.params.Memory).
			With("limit", limit).
			Errorf("hash memory cost %d KiB exceeds limit %d KiB", d.params.Memory, limit)
	}

	computed := argon2.IDKey([]byte(password), d.salt, d.params.Iterations, d.params.Memory, d.params.Parallelism, d.params.KeyLength)
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsRehash returns true if encoded was produced by another algorithm or
// with parameters that differ from the configured ones.
func (h *Hasher) NeedsRehash(encoded string) bool {
	d, err := decode(encoded)
	if err != nil {
		return true
	}
	return d.params != h.params
}

type decoded struct {
	params Params
	salt   []byte
	key    []byte
}

func decode(encoded string) (*decoded, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").With("version", version).Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Wrap(err)
	}
	if memory == 0 || memory > MaxMemoryKiB {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("memory value %d out of range", memory)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	if iterations == 0 {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("iterations must be positive")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<30 {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &decoded{
		params: Params{
			Memory:      memory,
			Iterations:  iterations,
			Parallelism: uint8(threads),
			SaltLength:  uint32(len(salt)), //nolint:gosec // bounded by the encoded string length
			KeyLength:   uint32(len(key)),  //nolint:gosec // checked above
		},
		salt: salt,
		key:  key,
	}, nil
}
