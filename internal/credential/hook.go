// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/sitter-id/sitter/internal/person"
)

// MinPasswordLength is the shortest secret accepted on create.
const MinPasswordLength = 8

// HashDuration observes wall-clock time spent hashing, for calibrating Params.
// Use RegisterMetrics to register this with a Prometheus registry.
var HashDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "sitter_credential_hash_duration_seconds",
	Help:    "Time spent computing argon2id hashes",
	Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
})

// RegisterMetrics registers credential metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(HashDuration)
}

// Hook enforces password strength and replaces plaintext with an encoded hash.
type Hook struct {
	hasher *Hasher
	logger *slog.Logger
}

// NewHook creates a Hook using hasher.
func NewHook(hasher *Hasher, logger *slog.Logger) (*Hook, error) {
	if hasher == nil {
		return nil, oops.Code("CREDENTIAL_INVALID_CONFIG").Errorf("hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{hasher: hasher, logger: logger}, nil
}

// Name implements person.Named.
func (h *Hook) Name() string { return "credential" }

// Validate rejects short passwords on create. Updates are not strength-checked.
func (h *Hook) Validate(_ context.Context, req *person.Request, action person.Action) error {
	if action != person.ActionCreate {
		return nil
	}
	if n := utf8.RuneCountInString(req.Password); n < MinPasswordLength {
		return oops.Code("CREDENTIAL_TOO_WEAK").
			With("min_length", MinPasswordLength).
			Wrapf(person.ErrPolicy, "credential too weak: must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Prepare hashes the password on create, and on update when one was supplied.
func (h *Hook) Prepare(ctx context.Context, req *person.Request, action person.Action) error {
	switch action {
	case person.ActionCreate:
	case person.ActionUpdate:
		if !req.HasPassword() {
			return nil
		}
	default:
		return nil
	}

	start := time.Now()
	encoded, err := h.hasher.Hash(req.Password)
	elapsed := time.Since(start)
	if err != nil {
		return oops.Code("CREDENTIAL_HASH_FAILED").
			With("action", string(action)).
			Wrap(errors.Join(person.ErrPreparation, err))
	}

	HashDuration.Observe(elapsed.Seconds())
	h.logger.DebugContext(ctx, "password hashed",
		"action", string(action),
		"duration_ms", elapsed.Milliseconds(),
		"memory_kib", h.hasher.params.Memory,
		"iterations", h.hasher.params.Iterations,
		"parallelism", h.hasher.params.Parallelism,
	)

	req.Password = encoded
	return nil
}

// Compile-time interface checks.
var (
	_ person.Validator = (*Hook)(nil)
	_ person.Preparer  = (*Hook)(nil)
)
