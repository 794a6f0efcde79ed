// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sitter-id/sitter/internal/person"
)

// Pool is the subset of *pgxpool.Pool used by PostgresWriter.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresWriter stores entries in the person_audit table.
type PostgresWriter struct {
	pool Pool
}

// NewPostgresWriter creates a PostgresWriter.
func NewPostgresWriter(pool Pool) *PostgresWriter {
	return &PostgresWriter{pool: pool}
}

// Write implements Writer.
func (w *PostgresWriter) Write(ctx context.Context, e Entry) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO person_audit (id, action, person_id, email, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID.String(), string(e.Action), e.PersonID.String(), e.Email, e.At,
	)
	if err != nil {
		return oops.Code("AUDIT_WRITE_FAILED").
			With("audit_id", e.ID.String()).
			With("person_id", e.PersonID.String()).
			Wrap(err)
	}
	return nil
}

// Filter narrows List results.
type Filter struct {
	// PersonID restricts entries to one person when non-nil.
	PersonID *uuid.UUID
	// After returns entries strictly newer than this ID. Zero means from the start.
	After ulid.ULID
	Limit int
}

// DefaultListLimit applies when Filter.Limit is not positive.
const DefaultListLimit = 100

// List returns entries in ID order.
func (w *PostgresWriter) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, action, person_id::text, email, created_at FROM person_audit WHERE id > $1`
	args := []any{f.After.String()}
	if f.PersonID != nil {
		query += ` AND person_id = $2 ORDER BY id LIMIT $3`
		args = append(args, f.PersonID.String(), limit)
	} else {
		query += ` ORDER BY id LIMIT $2`
		args = append(args, limit)
	}

	rows, err := w.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("AUDIT_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var idStr, action, pidStr string
		if err := rows.Scan(&idStr, &action, &pidStr, &e.Email, &e.At); err != nil {
			return nil, oops.Code("AUDIT_LIST_FAILED").With("operation", "scan audit row").Wrap(err)
		}
		if e.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("AUDIT_CORRUPT_ROW").With("id", idStr).Wrap(err)
		}
		if e.PersonID, err = uuid.Parse(pidStr); err != nil {
			return nil, oops.Code("AUDIT_CORRUPT_ROW").With("id", idStr).With("person_id", pidStr).Wrap(err)
		}
		e.Action = person.Action(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("AUDIT_LIST_FAILED").With("operation", "iterate audit rows").Wrap(err)
	}
	return entries, nil
}

var _ Writer = (*PostgresWriter)(nil)
