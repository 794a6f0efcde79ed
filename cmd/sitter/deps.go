// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/sitter-id/sitter/internal/audit"
	"github.com/sitter-id/sitter/internal/config"
	"github.com/sitter-id/sitter/internal/person"
	"github.com/sitter-id/sitter/internal/person/postgres"
	"github.com/sitter-id/sitter/internal/store"
)

// AuditStore writes and lists audit entries.
type AuditStore interface {
	audit.Writer
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Backend is the persistence a command runs against.
type Backend struct {
	People person.Repository
	Tx     person.Transactor
	Audit  AuditStore
	Ping   func(ctx context.Context) error
	Close  func()
}

// Migrator wraps the methods used by the migrate command from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// OpenBackend connects to the configured database.
	// Default: openPostgres
	OpenBackend func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

func (d Deps) withDefaults() Deps {
	if d.OpenBackend == nil {
		d.OpenBackend = openPostgres
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	return d
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	pool, err := store.Connect(ctx, store.PoolConfig{
		URL:            cfg.Database.URL,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		Retries:        cfg.Database.ConnectRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &Backend{
		People: postgres.NewRepository(pool),
		Tx:     postgres.NewTransactor(pool),
		Audit:  audit.NewPostgresWriter(pool),
		Ping:   pool.Ping,
		Close:  pool.Close,
	}, nil
}
