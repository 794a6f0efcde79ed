// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package persontest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sitter-id/sitter/internal/person"
)

// CallLog collects hook invocations across several Recorders, in order.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

// Add appends an entry.
func (l *CallLog) Add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, entry)
}

// Calls returns a copy of the entries.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Recorder is a hook implementing every stage. Each call is logged as
// "<name>.<stage>:<action>" and returns the matching configured error.
type Recorder struct {
	HookName string
	Log      *CallLog

	ValidateErr          error
	PrepareErr           error
	PrepareIdentifierErr error
	ProcessedErr         error

	// Mutate, when set, runs during Prepare.
	Mutate func(req *person.Request)

	// Seen receives the entity passed to Processed.
	Seen []person.Person
}

// Name implements person.Named.
func (r *Recorder) Name() string { return r.HookName }

// Validate implements person.Validator.
func (r *Recorder) Validate(_ context.Context, _ *person.Request, action person.Action) error {
	r.record("validate", action)
	return r.ValidateErr
}

// Prepare implements person.Preparer.
func (r *Recorder) Prepare(_ context.Context, req *person.Request, action person.Action) error {
	r.record("prepare", action)
	if r.PrepareErr != nil {
		return r.PrepareErr
	}
	if r.Mutate != nil {
		r.Mutate(req)
	}
	return nil
}

// PrepareIdentifier implements person.IdentifierPreparer.
func (r *Recorder) PrepareIdentifier(_ context.Context, _ *uuid.UUID, action person.Action) error {
	r.record("prepare_identifier", action)
	return r.PrepareIdentifierErr
}

// Processed implements person.Processor.
func (r *Recorder) Processed(_ context.Context, p *person.Person, action person.Action) error {
	r.record("processed", action)
	r.Seen = append(r.Seen, *p)
	return r.ProcessedErr
}

func (r *Recorder) record(stage string, action person.Action) {
	if r.Log != nil {
		r.Log.Add(fmt.Sprintf("%s.%s:%s", r.HookName, stage, action))
	}
}
