// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package person

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages person persistence. Implementations must run inside the
// transaction carried by ctx when one was opened by the Transactor.
type Repository interface {
	// Insert stores a new person and returns it with the store-assigned ID.
	// Returns ErrAlreadyExists when the email is taken.
	Insert(ctx context.Context, req *Request) (*Person, error)

	// Get retrieves a person by ID. Returns ErrNotFound if no row matches.
	Get(ctx context.Context, id uuid.UUID) (*Person, error)

	// GetByEmail retrieves a person by email (case-insensitive).
	// Returns ErrNotFound if no row matches.
	GetByEmail(ctx context.Context, email string) (*Person, error)

	// List returns every person ordered by creation time.
	List(ctx context.Context) ([]*Person, error)

	// Update applies the non-empty fields of req to the person.
	// Returns ErrNotFound if no row matches.
	Update(ctx context.Context, id uuid.UUID, req *Request) (*Person, error)

	// Delete removes a person and returns the removed row, or nil when no row
	// matched. The returned row is the one this call deleted.
	Delete(ctx context.Context, id uuid.UUID) (*Person, error)
}

// Transactor runs fn inside a single transaction, committing when fn returns
// nil and rolling back otherwise.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
