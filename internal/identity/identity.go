// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

// Package identity checks the syntactic shape of person identifiers.
package identity

import (
	"context"
	"regexp"

	"github.com/samber/oops"

	"github.com/sitter-id/sitter/internal/person"
)

// emailPattern accepts local@label(.label)* where labels are word characters.
// Hyphenated labels and bracketed IPv6 literals are rejected. The local part
// excludes every whitespace rune, not only the ASCII ones \s covers.
var emailPattern = regexp.MustCompile(`^[^@\s\v\p{Z}\x{85}]+@(\w+\.)*\w+$`)

// ValidEmail reports whether email is well-formed.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Hook validates the email address of create and update requests.
type Hook struct{}

// NewHook creates an identity Hook.
func NewHook() *Hook { return &Hook{} }

// Name implements person.Named.
func (*Hook) Name() string { return "identity" }

// Validate rejects malformed emails. An empty email on update means no change.
func (*Hook) Validate(_ context.Context, req *person.Request, action person.Action) error {
	if action == person.ActionUpdate && req.Email == "" {
		return nil
	}
	if !ValidEmail(req.Email) {
		return oops.Code("IDENTITY_INVALID_EMAIL").
			With("email", req.Email).
			With("action", string(action)).
			Wrapf(person.ErrValidation, "invalid email address")
	}
	return nil
}

var _ person.Validator = (*Hook)(nil)
