// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package person

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Hook is any value implementing zero or more of the stage interfaces below.
type Hook any

// Validator checks a request without mutating it.
type Validator interface {
	Validate(ctx context.Context, req *Request, action Action) error
}

// Preparer may rewrite a request before it is persisted.
type Preparer interface {
	Prepare(ctx context.Context, req *Request, action Action) error
}

// IdentifierPreparer may rewrite or reject an ID before a targeted lookup.
type IdentifierPreparer interface {
	PrepareIdentifier(ctx context.Context, id *uuid.UUID, action Action) error
}

// Processor observes a person after the operation committed.
// Errors are logged by the Engine and never change the result.
type Processor interface {
	Processed(ctx context.Context, p *Person, action Action) error
}

// Named lets a hook report a stable name for logs and error context.
type Named interface {
	Name() string
}

// HookName returns the hook's Name, or its Go type when it has none.
func HookName(h Hook) string {
	if n, ok := h.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}

type entry[T any] struct {
	name string
	hook T
}

// Registry holds hooks grouped by stage. Registration order is invocation order.
type Registry struct {
	mu     sync.Mutex
	sealed bool

	validators          []entry[Validator]
	preparers           []entry[Preparer]
	identifierPreparers []entry[IdentifierPreparer]
	processors          []entry[Processor]
	names               []string
}

// NewRegistry creates a Registry and registers the given hooks in order.
func NewRegistry(hooks ...Hook) (*Registry, error) {
	r := &Registry{}
	for _, h := range hooks {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a hook to every stage it implements.
func (r *Registry) Register(h Hook) error {
	if h == nil {
		return oops.Code("HOOK_INVALID").Errorf("hook cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := HookName(h)
	if r.sealed {
		return oops.Code("HOOK_REGISTRY_SEALED").With("hook", name).Wrap(ErrRegistrySealed)
	}

	if v, ok := h.(Validator); ok {
		r.validators = append(r.validators, entry[Validator]{name, v})
	}
	if p, ok := h.(Preparer); ok {
		r.preparers = append(r.preparers, entry[Preparer]{name, p})
	}
	if ip, ok := h.(IdentifierPreparer); ok {
		r.identifierPreparers = append(r.identifierPreparers, entry[IdentifierPreparer]{name, ip})
	}
	if p, ok := h.(Processor); ok {
		r.processors = append(r.processors, entry[Processor]{name, p})
	}
	r.names = append(r.names, name)
	return nil
}

// Names returns the registered hook names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// seal freezes the registry. Stage slices are never written afterwards,
// so the Engine reads them without locking.
func (r *Registry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) validate(ctx context.Context, req *Request, action Action) error {
	for _, e := range r.validators {
		if err := e.hook.Validate(ctx, req, action); err != nil {
			return classify(err, ErrValidation, "PERSON_VALIDATION_FAILED", e.name, action)
		}
	}
	return nil
}

func (r *Registry) prepare(ctx context.Context, req *Request, action Action) error {
	for _, e := range r.preparers {
		if err := e.hook.Prepare(ctx, req, action); err != nil {
			return classify(err, ErrPreparation, "PERSON_PREPARE_FAILED", e.name, action)
		}
	}
	return nil
}

func (r *Registry) prepareIdentifier(ctx context.Context, id *uuid.UUID, action Action) error {
	for _, e := range r.identifierPreparers {
		if err := e.hook.PrepareIdentifier(ctx, id, action); err != nil {
			return classify(err, ErrPreparation, "PERSON_PREPARE_FAILED", e.name, action)
		}
	}
	return nil
}

type hookFailure struct {
	hook string
	err  error
}

// processed runs every processor and collects failures in registration order.
// A failing processor does not stop the ones after it.
func (r *Registry) processed(ctx context.Context, p *Person, action Action) []hookFailure {
	var failures []hookFailure
	for _, e := range r.processors {
		if err := e.hook.Processed(ctx, p, action); err != nil {
			failures = append(failures, hookFailure{hook: e.name, err: err})
		}
	}
	return failures
}

// classify makes sure err matches sentinel under errors.Is. Errors a hook
// already classified pass through with the hook name attached.
func classify(err, sentinel error, code, hook string, action Action) error {
	if isClassified(err) {
		return oops.With("hook", hook).With("action", string(action)).Wrap(err)
	}
	return oops.Code(code).
		With("hook", hook).
		With("action", string(action)).
		Wrap(fmt.Errorf("%w: %w", sentinel, err))
}

func isClassified(err error) bool {
	for _, s := range []error{ErrValidation, ErrPreparation, ErrPersistence, ErrNotFound} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
