// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitter-id/sitter/internal/audit"
	"github.com/sitter-id/sitter/internal/config"
	"github.com/sitter-id/sitter/internal/person/persontest"
)

// cheapConfig keeps argon2id at the smallest cost the config accepts.
const cheapConfig = `
log:
  format: text
  level: error
credential:
  memory: 19456
  iterations: 1
  parallelism: 1
audit:
  writer: postgres
`

// memoryAudit is an in-memory AuditStore.
type memoryAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memoryAudit) Write(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryAudit) List(_ context.Context, f audit.Filter) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Entry
	for _, e := range m.entries {
		if f.PersonID != nil && e.PersonID != *f.PersonID {
			continue
		}
		if e.ID.Compare(f.After) <= 0 {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memoryAudit) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, string(e.Action))
	}
	return out
}

// harness runs CLI invocations against one in-memory backend.
type harness struct {
	t      *testing.T
	store  *persontest.Store
	audit  *memoryAudit
	config string
	opened int
	closed int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cheapConfig), 0o600))
	return &harness{t: t, store: persontest.NewStore(), audit: &memoryAudit{}, config: path}
}

func (h *harness) deps() Deps {
	return Deps{
		OpenBackend: func(context.Context, *config.Config, *slog.Logger) (*Backend, error) {
			h.opened++
			return &Backend{
				People: h.store,
				Tx:     h.store,
				Audit:  h.audit,
				Ping:   func(context.Context) error { return nil },
				Close:  func() { h.closed++ },
			}, nil
		},
	}
}

// run executes the CLI and returns stdout.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	return h.runContext(context.Background(), stdin, args...)
}

func (h *harness) runContext(ctx context.Context, stdin string, args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCmd(h.deps())
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", h.config}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func hasAll(haystack []string, needles ...string) bool {
	for _, n := range needles {
		if !slices.Contains(haystack, n) {
			return false
		}
	}
	return true
}
