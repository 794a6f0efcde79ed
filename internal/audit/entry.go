// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

// Package audit records committed person lifecycle changes.
package audit

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/sitter-id/sitter/internal/person"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewID generates a monotonic ULID so entries sort in creation order.
func NewID(at time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy)
}

// Entry is one audit record.
type Entry struct {
	ID       ulid.ULID     `json:"id"`
	Action   person.Action `json:"action"`
	PersonID uuid.UUID     `json:"person_id"`
	Email    string        `json:"email"`
	At       time.Time     `json:"at"`
}

// NewEntry builds an Entry for p.
func NewEntry(p *person.Person, action person.Action) Entry {
	now := time.Now().UTC()
	return Entry{
		ID:       NewID(now),
		Action:   action,
		PersonID: p.ID,
		Email:    p.Email,
		At:       now,
	}
}

// Writer persists entries.
type Writer interface {
	Write(ctx context.Context, e Entry) error
}

// SlogWriter emits each entry as a structured log line.
type SlogWriter struct {
	logger *slog.Logger
}

// NewSlogWriter creates a SlogWriter. A nil logger uses slog.Default.
func NewSlogWriter(logger *slog.Logger) *SlogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogWriter{logger: logger}
}

// Write implements Writer.
func (w *SlogWriter) Write(ctx context.Context, e Entry) error {
	w.logger.InfoContext(ctx, "person audit",
		"audit_id", e.ID.String(),
		"action", string(e.Action),
		"person_id", e.PersonID.String(),
		"email", e.Email,
		"at", e.At,
	)
	return nil
}
