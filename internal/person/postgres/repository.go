// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

// Package postgres implements person persistence on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/sitter-id/sitter/internal/person"
)

// querier abstracts query execution for both a pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool used here. pgxmock.PgxPoolIface satisfies it.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

const personColumns = `id::text, email, password_hash, created_at, updated_at`

// Repository implements person.Repository using PostgreSQL.
type Repository struct {
	pool Pool
}

// NewRepository creates a new Repository.
func NewRepository(pool Pool) *Repository {
	return &Repository{pool: pool}
}

// conn returns the transaction stored in ctx, or the pool.
func (r *Repository) conn(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Insert stores a new person; the database assigns the ID and timestamps.
func (r *Repository) Insert(ctx context.Context, req *person.Request) (*person.Person, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO persons (email, password_hash)
		VALUES ($1, $2)
		RETURNING `+personColumns,
		req.Email, req.Password,
	)

	p, err := scanPerson(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("PERSON_ALREADY_EXISTS").
				With("email", req.Email).
				Wrap(errors.Join(person.ErrAlreadyExists, err))
		}
		return nil, oops.Code("PERSON_CREATE_FAILED").
			With("operation", "insert person").
			With("email", req.Email).
			Wrap(errors.Join(person.ErrPersistence, err))
	}
	return p, nil
}

// Get retrieves a person by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*person.Person, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+personColumns+`
		FROM persons
		WHERE id = $1
	`, id.String())

	p, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PERSON_NOT_FOUND").
			With("id", id.String()).
			Wrap(person.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PERSON_GET_FAILED").
			With("operation", "get person by id").
			With("id", id.String()).
			Wrap(errors.Join(person.ErrPersistence, err))
	}
	return p, nil
}

// GetByEmail retrieves a person by email (case-insensitive).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*person.Person, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+personColumns+`
		FROM persons
		WHERE LOWER(email) = LOWER($1)
	`, email)

	p, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PERSON_NOT_FOUND").
			With("email", email).
			Wrap(person.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PERSON_GET_BY_EMAIL_FAILED").
			With("operation", "get person by email").
			With("email", email).
			Wrap(errors.Join(person.ErrPersistence, err))
	}
	return p, nil
}

// List returns every person ordered by creation time.
// TODO: add keyset pagination once the HTTP list endpoint accepts a cursor.
func (r *Repository) List(ctx context.Context) ([]*person.Person, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+personColumns+`
		FROM persons
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, oops.Code("PERSON_LIST_FAILED").
			With("operation", "list persons").
			Wrap(errors.Join(person.ErrPersistence, err))
	}
	defer rows.Close()

	people := []*person.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, oops.Code("PERSON_LIST_FAILED").
				With("operation", "scan person row").
				Wrap(errors.Join(person.ErrPersistence, err))
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PERSON_LIST_FAILED").
			With("operation", "iterate persons").
			Wrap(errors.Join(person.ErrPersistence, err))
	}
	return people, nil
}

// Update applies the non-empty fields of req. Empty fields keep their stored value.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, req *person.Request) (*person.Person, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE persons SET
			email = COALESCE(NULLIF($2, ''), email),
			password_hash = COALESCE(NULLIF($3, ''), password_hash),
			updated_at = now()
		WHERE id = $1
		RETURNING `+personColumns,
		id.String(), req.Email, req.Password,
	)

	p, err := scanPerson(row)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, oops.Code("PERSON_NOT_FOUND").
			With("id", id.String()).
			Wrap(person.ErrNotFound)
	case isUniqueViolation(err):
		return nil, oops.Code("PERSON_ALREADY_EXISTS").
			With("id", id.String()).
			With("email", req.Email).
			Wrap(errors.Join(person.ErrAlreadyExists, err))
	default:
		return nil, oops.Code("PERSON_UPDATE_FAILED").
			With("operation", "update person").
			With("id", id.String()).
			Wrap(errors.Join(person.ErrPersistence, err))
	}
}

// Delete removes a person and returns the deleted row, or nil when no row
// matched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (*person.Person, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		DELETE FROM persons
		WHERE id = $1
		RETURNING `+personColumns, id.String())

	p, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("PERSON_DELETE_FAILED").
			With("operation", "delete person").
			With("id", id.String()).
			Wrap(errors.Join(person.ErrPersistence, err))
	}
	return p, nil
}

// scanPerson scans a single row into a Person.
// pgx.ErrNoRows is returned unchanged for callers to handle with context.
func scanPerson(row pgx.Row) (*person.Person, error) {
	var (
		idStr        string
		email        string
		passwordHash string
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(&idStr, &email, &passwordHash, &createdAt, &updatedAt); err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PERSON_INVALID_ID").
			With("operation", "parse person id").
			With("id", idStr).
			Wrap(err)
	}

	return &person.Person{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ person.Repository = (*Repository)(nil)
