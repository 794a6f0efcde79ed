// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

// Package persontest provides in-memory test doubles for the person package.
package persontest

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/sitter-id/sitter/internal/person"
)

// Store is an in-memory person.Repository and person.Transactor.
// Transactions are serialized and roll back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex

	mu    sync.Mutex
	rows  map[uuid.UUID]person.Person
	seq   int
	order map[uuid.UUID]int

	// Transaction counters.
	Begins    int
	Commits   int
	Rollbacks int

	// Fault injection. A non-nil error is returned by the matching call.
	InsertErr error
	UpdateErr error
	DeleteErr error
	CommitErr error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		rows:  make(map[uuid.UUID]person.Person),
		order: make(map[uuid.UUID]int),
	}
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Raw returns the stored row without going through the engine.
func (s *Store) Raw(id uuid.UUID) (person.Person, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	return p, ok
}

type txKey struct{}

// InTransaction runs fn and restores the previous state when it fails.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.Begins++
	snapshot := maps.Clone(s.rows)
	orderSnapshot := maps.Clone(s.order)
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, true))
	if err == nil && s.CommitErr != nil {
		err = oops.Code("TX_COMMIT_FAILED").Wrap(errors.Join(person.ErrPersistence, s.CommitErr))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.rows = snapshot
		s.order = orderSnapshot
		s.Rollbacks++
		return err
	}
	s.Commits++
	return nil
}

// Insert stores a new row with a generated ID.
func (s *Store) Insert(_ context.Context, req *person.Request) (*person.Person, error) {
	if s.InsertErr != nil {
		return nil, s.InsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(req.Email, uuid.Nil) {
		return nil, oops.Code("PERSON_ALREADY_EXISTS").With("email", req.Email).Wrap(person.ErrAlreadyExists)
	}
	now := time.Now().UTC()
	p := person.Person{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: req.Password,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.rows[p.ID] = p
	s.seq++
	s.order[p.ID] = s.seq
	return &p, nil
}

// Get returns a copy of the row.
func (s *Store) Get(_ context.Context, id uuid.UUID) (*person.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return nil, oops.Code("PERSON_NOT_FOUND").With("id", id.String()).Wrap(person.ErrNotFound)
	}
	return &p, nil
}

// GetByEmail returns the row with a case-insensitively equal email.
func (s *Store) GetByEmail(_ context.Context, email string) (*person.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, oops.Code("PERSON_NOT_FOUND").With("email", email).Wrap(person.ErrNotFound)
}

// List returns every row in insertion order.
func (s *Store) List(_ context.Context) ([]*person.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.SortedFunc(maps.Keys(s.rows), func(a, b uuid.UUID) int {
		return s.order[a] - s.order[b]
	})
	people := make([]*person.Person, 0, len(ids))
	for _, id := range ids {
		p := s.rows[id]
		people = append(people, &p)
	}
	return people, nil
}

// Update applies the non-empty fields of req.
func (s *Store) Update(_ context.Context, id uuid.UUID, req *person.Request) (*person.Person, error) {
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return nil, oops.Code("PERSON_NOT_FOUND").With("id", id.String()).Wrap(person.ErrNotFound)
	}
	if req.Email != "" {
		if s.emailTaken(req.Email, id) {
			return nil, oops.Code("PERSON_ALREADY_EXISTS").With("email", req.Email).Wrap(person.ErrAlreadyExists)
		}
		p.Email = req.Email
	}
	if req.Password != "" {
		p.PasswordHash = req.Password
	}
	p.UpdatedAt = time.Now().UTC()
	s.rows[id] = p
	return &p, nil
}

// Delete removes the row and returns a copy of it, or nil when absent.
func (s *Store) Delete(_ context.Context, id uuid.UUID) (*person.Person, error) {
	if s.DeleteErr != nil {
		return nil, s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	delete(s.rows, id)
	delete(s.order, id)
	return &p, nil
}

func (s *Store) emailTaken(email string, except uuid.UUID) bool {
	for id, p := range s.rows {
		if id != except && strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

// Compile-time interface checks.
var (
	_ person.Repository = (*Store)(nil)
	_ person.Transactor = (*Store)(nil)
)
