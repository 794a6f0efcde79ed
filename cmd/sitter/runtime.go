// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/sitter-id/sitter/internal/audit"
	"github.com/sitter-id/sitter/internal/config"
	"github.com/sitter-id/sitter/internal/credential"
	"github.com/sitter-id/sitter/internal/identity"
	"github.com/sitter-id/sitter/internal/person"
)

// auditDrainTimeout bounds how long a command waits for queued audit entries.
const auditDrainTimeout = 5 * time.Second

// runtime is the lifecycle engine wired with the configured hooks.
type runtime struct {
	backend *Backend
	engine  *person.Engine
	checker *credential.Checker
	audit   *audit.Hook
}

// open connects the backend and wires identity, credential and audit hooks
// into a new engine, in that order.
func (a *app) open(ctx context.Context) (*runtime, error) {
	b, err := a.deps.OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	rt, err := a.wire(b)
	if err != nil {
		b.Close()
		return nil, err
	}
	return rt, nil
}

func (a *app) wire(b *Backend) (*runtime, error) {
	hasher, err := credential.NewHasher(a.cfg.Credential.Params())
	if err != nil {
		return nil, err
	}
	credHook, err := credential.NewHook(hasher, a.logger)
	if err != nil {
		return nil, err
	}
	hooks := []person.Hook{identity.NewHook(), credHook}

	rt := &runtime{backend: b}
	if w := a.auditWriter(b); w != nil {
		rt.audit, err = audit.NewHook(w, audit.Options{Buffer: a.cfg.Audit.Buffer, Logger: a.logger})
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, rt.audit)
	}

	reg, err := person.NewRegistry(hooks...)
	if err != nil {
		return nil, err
	}
	rt.engine, err = person.NewEngineWithLogger(b.People, b.Tx, reg, a.logger)
	if err != nil {
		return nil, err
	}
	rt.checker = credential.NewChecker(hasher, rt.engine, a.logger)
	return rt, nil
}

func (a *app) auditWriter(b *Backend) audit.Writer {
	switch a.cfg.Audit.Writer {
	case config.AuditWriterLog:
		return audit.NewSlogWriter(a.logger)
	case config.AuditWriterPostgres:
		return b.Audit
	default:
		return nil
	}
}

// Close drains the audit queue and releases the backend.
func (rt *runtime) Close() error {
	defer rt.backend.Close()
	if rt.audit == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditDrainTimeout)
	defer cancel()
	if err := rt.audit.Close(ctx); err != nil {
		return oops.With("operation", "drain audit queue").Wrap(err)
	}
	return nil
}
