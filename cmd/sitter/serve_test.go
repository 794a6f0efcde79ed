// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitter-id/sitter/pkg/errutil"
)

func TestServe_StopsWhenContextEnds(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := h.runContext(ctx, "", "serve", "--http-addr", "127.0.0.1:0", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Listening on 127.0.0.1:")
	assert.Equal(t, 1, h.opened)
	assert.Equal(t, 1, h.closed)
}

func TestServe_ListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = taken.Close() })

	h := newHarness(t)
	_, err = h.run("", "serve", "--http-addr", taken.Addr().String(), "--metrics-addr", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "HTTP_LISTEN_FAILED")
	assert.Equal(t, 1, h.closed, "backend released on failure")
}
