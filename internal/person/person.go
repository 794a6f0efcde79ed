// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package person

import (
	"time"

	"github.com/google/uuid"
)

// Action names the lifecycle transition a hook is invoked for.
type Action string

// Lifecycle actions.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// String implements fmt.Stringer.
func (a Action) String() string {
	return string(a)
}

// Person is a persisted account record.
// PasswordHash only ever holds an encoded hash.
type Person struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Request carries caller-supplied attributes for Create and Update.
// Hooks may rewrite it in place during the prepare stage; after that
// Password holds whatever the preparers left there (normally an encoded hash).
// An empty Password on update means "keep the current credential", and an
// empty Email on update means "keep the current email".
type Request struct {
	Email    string
	Password string
}

// HasPassword reports whether a new secret was supplied.
func (r *Request) HasPassword() bool {
	return r.Password != ""
}
