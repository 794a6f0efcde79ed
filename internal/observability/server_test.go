// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sitter-id/sitter/internal/person"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func startServer(t *testing.T, ready ReadinessChecker, register ...func(prometheus.Registerer)) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready, quiet(), register...)
	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test URL
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil, person.RegisterMetrics, func(r prometheus.Registerer) {
		r.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "sitter_test_total", Help: "test"}))
	})

	server.Metrics().RequestsTotal.WithLabelValues("/persons", "POST", "201").Inc()

	code, body := get(t, "http://"+server.Addr()+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	for _, want := range []string{"# HELP", "go_", "process_", "sitter_test_total", "sitter_http_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, func(context.Context) error { return errors.New("db down") })

	code, body := get(t, "http://"+server.Addr()+"/healthz/liveness")
	if code != http.StatusOK || strings.TrimSpace(body) != "ok" {
		t.Errorf("liveness must not depend on readiness: %d %q", code, body)
	}
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name  string
		ready ReadinessChecker
		code  int
		body  string
	}{
		{name: "ready", ready: func(context.Context) error { return nil }, code: http.StatusOK, body: "ok"},
		{name: "not ready", ready: func(context.Context) error { return errors.New("ping failed") }, code: http.StatusServiceUnavailable, body: "not ready"},
		{name: "nil checker", ready: nil, code: http.StatusOK, body: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer("127.0.0.1:0", tt.ready, quiet())
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/readiness", nil))

			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
			if strings.TrimSpace(rec.Body.String()) != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestServer_ReadinessHasDeadline(t *testing.T) {
	var hadDeadline bool
	server := NewServer("127.0.0.1:0", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}, quiet())
	server.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz/readiness", nil))
	if !hadDeadline {
		t.Error("readiness check should run with a deadline")
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	if _, err := server.Start(); err == nil {
		t.Error("expected second Start to fail")
	}
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, quiet())
	if err := server.Stop(context.Background()); err != nil {
		t.Errorf("Stop on a stopped server: %v", err)
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, quiet())
	errCh, err := server.Start()
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if err := server.Stop(context.Background()); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}

	select {
	case err, ok := <-errCh:
		if ok {
			t.Errorf("expected closed channel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed after shutdown")
	}
}

func TestServer_ListenFailure(t *testing.T) {
	server := NewServer("256.0.0.1:0", nil, quiet())
	if _, err := server.Start(); err == nil {
		t.Fatal("expected listen failure")
	}
	if server.Addr() != "" {
		t.Error("address should be empty after failed start")
	}
}
