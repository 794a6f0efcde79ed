// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package person

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to classify failures returned by the Engine.
var (
	// ErrValidation means the request content is unacceptable for the action.
	ErrValidation = errors.New("validation failed")

	// ErrPolicy means a request violated a credential policy. It is also an ErrValidation.
	ErrPolicy = fmt.Errorf("credential policy violated: %w", ErrValidation)

	// ErrPreparation means a hook could not transform the request or identifier.
	ErrPreparation = errors.New("preparation failed")

	// ErrPersistence means the store rejected or failed the operation.
	ErrPersistence = errors.New("persistence failed")

	// ErrAlreadyExists means a unique constraint was violated. It is also an ErrPersistence.
	ErrAlreadyExists = fmt.Errorf("already exists: %w", ErrPersistence)

	// ErrNotFound is returned when a requested person does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRegistrySealed is returned when registering a hook after an Engine took ownership.
	ErrRegistrySealed = errors.New("hook registry is sealed")
)
