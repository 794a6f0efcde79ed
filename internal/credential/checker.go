// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package credential

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/sitter-id/sitter/internal/person"
)

// People is the slice of person.Engine the Checker needs.
type People interface {
	Get(ctx context.Context, id uuid.UUID) (*person.Person, error)
	Update(ctx context.Context, id uuid.UUID, req *person.Request) (*person.Person, error)
}

// Result reports the outcome of a Check.
type Result struct {
	Valid bool `json:"valid"`
	// Rehashed is true when a valid secret was stored again under the
	// current parameters.
	Rehashed bool `json:"rehashed"`
}

// Checker verifies a plaintext secret against a stored person and upgrades
// hashes produced with outdated parameters.
type Checker struct {
	hasher *Hasher
	people People
	logger *slog.Logger
}

// NewChecker creates a Checker.
func NewChecker(hasher *Hasher, people People, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{hasher: hasher, people: people, logger: logger}
}

// Check verifies password for the person with id. A failed rehash is logged
// and does not change a positive result.
func (c *Checker) Check(ctx context.Context, id uuid.UUID, password string) (Result, error) {
	p, err := c.people.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	ok, err := c.hasher.Verify(password, p.PasswordHash)
	if err != nil {
		return Result{}, oops.Code("CREDENTIAL_VERIFY_FAILED").With("person_id", id.String()).Wrap(err)
	}
	if !ok {
		return Result{}, nil
	}

	if !c.hasher.NeedsRehash(p.PasswordHash) {
		return Result{Valid: true}, nil
	}
	if _, err := c.people.Update(ctx, id, &person.Request{Password: password}); err != nil {
		c.logger.WarnContext(ctx, "credential rehash failed", "person_id", id.String(), "error", err)
		return Result{Valid: true}, nil
	}
	c.logger.InfoContext(ctx, "credential rehashed with current parameters", "person_id", id.String())
	return Result{Valid: true, Rehashed: true}, nil
}
