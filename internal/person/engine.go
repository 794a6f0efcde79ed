// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package person

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sitter-id/sitter/pkg/errutil"
)

var tracer = otel.Tracer("sitter/person")

// Engine runs person lifecycle operations through the hook pipeline.
type Engine struct {
	repo   Repository
	tx     Transactor
	hooks  *Registry
	logger *slog.Logger
}

// NewEngine creates an Engine using the default logger.
// The registry is sealed: hooks cannot be added once the Engine exists.
func NewEngine(repo Repository, tx Transactor, hooks *Registry) (*Engine, error) {
	return NewEngineWithLogger(repo, tx, hooks, slog.Default())
}

// NewEngineWithLogger creates an Engine with an explicit logger.
func NewEngineWithLogger(repo Repository, tx Transactor, hooks *Registry, logger *slog.Logger) (*Engine, error) {
	if repo == nil {
		return nil, oops.Code("ENGINE_INVALID_CONFIG").Errorf("repository is required")
	}
	if tx == nil {
		return nil, oops.Code("ENGINE_INVALID_CONFIG").Errorf("transactor is required")
	}
	if hooks == nil {
		hooks = &Registry{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	hooks.seal()
	return &Engine{repo: repo, tx: tx, hooks: hooks, logger: logger}, nil
}

// Create validates and prepares req, inserts it and returns the stored person.
// req is mutated by preparers; callers must not reuse it.
func (e *Engine) Create(ctx context.Context, req *Request) (p *Person, err error) {
	ctx, finish := e.begin(ctx, ActionCreate)
	defer func() { finish(err) }()

	if req == nil {
		return nil, oops.Code("PERSON_VALIDATION_FAILED").Wrapf(ErrValidation, "request cannot be nil")
	}
	if err = e.hooks.validate(ctx, req, ActionCreate); err != nil {
		return nil, err
	}
	if err = e.hooks.prepare(ctx, req, ActionCreate); err != nil {
		return nil, err
	}

	err = e.tx.InTransaction(ctx, func(ctx context.Context) error {
		var insertErr error
		p, insertErr = e.repo.Insert(ctx, req)
		return insertErr
	})
	if err != nil {
		return nil, persistenceError(err, ActionCreate)
	}

	e.runProcessed(ctx, p, ActionCreate)
	return p, nil
}

// Read fetches a single person when id is non-nil, or every person otherwise.
// A missing id yields ErrNotFound; an empty store yields an empty slice.
func (e *Engine) Read(ctx context.Context, id *uuid.UUID) (people []*Person, err error) {
	ctx, finish := e.begin(ctx, ActionRead)
	defer func() { finish(err) }()

	if id == nil {
		people, err = e.repo.List(ctx)
		if err != nil {
			return nil, persistenceError(err, ActionRead)
		}
		if people == nil {
			people = []*Person{}
		}
		return people, nil
	}

	target := *id
	if err = e.hooks.prepareIdentifier(ctx, &target, ActionRead); err != nil {
		return nil, err
	}
	p, err := e.repo.Get(ctx, target)
	if err != nil {
		return nil, persistenceError(err, ActionRead)
	}
	return []*Person{p}, nil
}

// Get is Read for a single id.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Person, error) {
	people, err := e.Read(ctx, &id)
	if err != nil {
		return nil, err
	}
	return people[0], nil
}

// Update applies req to the person with the given id. An empty Password keeps
// the stored credential; preparers only run when a new one is supplied.
func (e *Engine) Update(ctx context.Context, id uuid.UUID, req *Request) (p *Person, err error) {
	ctx, finish := e.begin(ctx, ActionUpdate)
	defer func() { finish(err) }()

	if req == nil {
		return nil, oops.Code("PERSON_VALIDATION_FAILED").Wrapf(ErrValidation, "request cannot be nil")
	}
	if err = e.hooks.prepareIdentifier(ctx, &id, ActionUpdate); err != nil {
		return nil, err
	}
	if err = e.hooks.validate(ctx, req, ActionUpdate); err != nil {
		return nil, err
	}
	if req.HasPassword() {
		if err = e.hooks.prepare(ctx, req, ActionUpdate); err != nil {
			return nil, err
		}
	}

	err = e.tx.InTransaction(ctx, func(ctx context.Context) error {
		var updateErr error
		p, updateErr = e.repo.Update(ctx, id, req)
		return updateErr
	})
	if err != nil {
		return nil, persistenceError(err, ActionUpdate)
	}

	e.runProcessed(ctx, p, ActionUpdate)
	return p, nil
}

// Delete removes the person with the given id and returns the number of rows
// removed (0 or 1). Processors observe the row the delete itself returned and
// are skipped when nothing was removed, including when a concurrent delete won.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) (affected int64, err error) {
	ctx, finish := e.begin(ctx, ActionDelete)
	defer func() { finish(err) }()

	if err = e.hooks.prepareIdentifier(ctx, &id, ActionDelete); err != nil {
		return 0, err
	}

	var snapshot *Person
	err = e.tx.InTransaction(ctx, func(ctx context.Context) error {
		var delErr error
		snapshot, delErr = e.repo.Delete(ctx, id)
		return delErr
	})
	if err != nil {
		return 0, persistenceError(err, ActionDelete)
	}

	if snapshot == nil {
		return 0, nil
	}
	e.runProcessed(ctx, snapshot, ActionDelete)
	return 1, nil
}

// runProcessed invokes processors after commit. Failures are logged and counted only.
func (e *Engine) runProcessed(ctx context.Context, p *Person, action Action) {
	for _, f := range e.hooks.processed(ctx, p, action) {
		ProcessedFailures.WithLabelValues(f.hook, string(action)).Inc()
		errutil.LogWarn(ctx, e.logger, "processed hook failed after commit",
			f.err,
			"hook", f.hook,
			"action", string(action),
			"person_id", p.ID.String(),
		)
	}
}

// begin starts a span and returns a func that records metrics and ends it.
func (e *Engine) begin(ctx context.Context, action Action) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "person."+string(action),
		trace.WithAttributes(attribute.String("person.action", string(action))),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		recordOperation(action, err, time.Since(start))
	}
}

// persistenceError keeps classified store errors and marks the rest as ErrPersistence.
func persistenceError(err error, action Action) error {
	if isClassified(err) {
		return err
	}
	return oops.Code("PERSON_PERSIST_FAILED").
		With("action", string(action)).
		Wrap(errors.Join(ErrPersistence, err))
}
