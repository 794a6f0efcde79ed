// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sitter-id/sitter/internal/audit"
	"github.com/sitter-id/sitter/internal/person"
	"github.com/sitter-id/sitter/internal/person/persontest"
)

// memoryWriter records entries; block, when set, stalls every Write until closed.
type memoryWriter struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
	block   chan struct{}
}

func (w *memoryWriter) Write(_ context.Context, e audit.Entry) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, e)
	return nil
}

func (w *memoryWriter) Entries() []audit.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]audit.Entry(nil), w.entries...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func closeHook(t *testing.T, h *audit.Hook) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))
}

func TestNewHook_RequiresWriter(t *testing.T) {
	_, err := audit.NewHook(nil, audit.Options{})
	require.Error(t, err)
}

func TestHook_WritesEntriesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &memoryWriter{}
	h, err := audit.NewHook(w, audit.Options{Logger: quietLogger()})
	require.NoError(t, err)

	p := &person.Person{ID: uuid.New(), Email: "a@example.com"}
	ctx := context.Background()
	for _, action := range []person.Action{person.ActionCreate, person.ActionUpdate, person.ActionDelete} {
		require.NoError(t, h.Processed(ctx, p, action))
	}
	closeHook(t, h)

	entries := w.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, person.ActionCreate, entries[0].Action)
	assert.Equal(t, person.ActionDelete, entries[2].Action)
	for i, e := range entries {
		assert.Equal(t, p.ID, e.PersonID)
		assert.Equal(t, "a@example.com", e.Email)
		if i > 0 {
			assert.Equal(t, 1, e.ID.Compare(entries[i-1].ID), "ids must increase")
		}
	}
}

func TestHook_WriterFailureIsAbsorbed(t *testing.T) {
	defer goleak.VerifyNone(t)

	before := testutil.ToFloat64(audit.FailuresTotal)
	w := &memoryWriter{err: errors.New("disk full")}
	h, err := audit.NewHook(w, audit.Options{Logger: quietLogger()})
	require.NoError(t, err)

	err = h.Processed(context.Background(), &person.Person{ID: uuid.New()}, person.ActionCreate)
	assert.NoError(t, err)
	closeHook(t, h)

	assert.Equal(t, before+1, testutil.ToFloat64(audit.FailuresTotal))
}

func TestHook_DropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	before := testutil.ToFloat64(audit.DroppedTotal)
	w := &memoryWriter{block: make(chan struct{})}
	h, err := audit.NewHook(w, audit.Options{Buffer: 1, Logger: quietLogger()})
	require.NoError(t, err)

	p := &person.Person{ID: uuid.New()}
	ctx := context.Background()
	// First entry is taken by the consumer and blocks in Write; the second
	// fills the buffer. Keep sending until a drop is observed.
	require.Eventually(t, func() bool {
		_ = h.Processed(ctx, p, person.ActionCreate)
		return testutil.ToFloat64(audit.DroppedTotal) > before
	}, 2*time.Second, time.Millisecond)

	close(w.block)
	closeHook(t, h)
}

func TestHook_AfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, err := audit.NewHook(&memoryWriter{}, audit.Options{Logger: quietLogger()})
	require.NoError(t, err)
	closeHook(t, h)
	closeHook(t, h)

	before := testutil.ToFloat64(audit.DroppedTotal)
	assert.NoError(t, h.Processed(context.Background(), &person.Person{ID: uuid.New()}, person.ActionCreate))
	assert.Equal(t, before+1, testutil.ToFloat64(audit.DroppedTotal))
}

func TestHook_CloseTimeout(t *testing.T) {
	w := &memoryWriter{block: make(chan struct{})}
	h, err := audit.NewHook(w, audit.Options{Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, h.Processed(context.Background(), &person.Person{ID: uuid.New()}, person.ActionCreate))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = h.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(w.block)
	closeHook(t, h)
}

func TestHook_ThroughEngine(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &memoryWriter{}
	h, err := audit.NewHook(w, audit.Options{Logger: quietLogger()})
	require.NoError(t, err)

	store := persontest.NewStore()
	reg, err := person.NewRegistry(h)
	require.NoError(t, err)
	engine, err := person.NewEngine(store, store, reg)
	require.NoError(t, err)

	ctx := context.Background()
	p, err := engine.Create(ctx, &person.Request{Email: "a@example.com", Password: "x"})
	require.NoError(t, err)
	_, err = engine.Delete(ctx, p.ID)
	require.NoError(t, err)
	n, err := engine.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	closeHook(t, h)

	entries := w.Entries()
	require.Len(t, entries, 2, "a delete that removed nothing is not audited")
	assert.Equal(t, person.ActionDelete, entries[1].Action)
	assert.Equal(t, "a@example.com", entries[1].Email)
}

func TestSlogWriter(t *testing.T) {
	var buf bytes.Buffer
	w := audit.NewSlogWriter(slog.New(slog.NewJSONHandler(&buf, nil)))
	id := uuid.New()

	require.NoError(t, w.Write(context.Background(), audit.NewEntry(&person.Person{ID: id, Email: "a@example.com"}, person.ActionUpdate)))
	assert.Contains(t, buf.String(), `"msg":"person audit"`)
	assert.Contains(t, buf.String(), id.String())
	assert.Contains(t, buf.String(), `"action":"update"`)
}
