// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sitter-id/sitter/internal/audit"
	"github.com/sitter-id/sitter/internal/credential"
	"github.com/sitter-id/sitter/internal/httpapi"
	"github.com/sitter-id/sitter/internal/observability"
	"github.com/sitter-id/sitter/internal/person"
)

const shutdownTimeout = 10 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the person API over HTTP",
		Long: `Serve the JSON person API and, unless --metrics-addr is empty, the
metrics and health endpoints. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
	cmd.Flags().String("http-addr", "127.0.0.1:8080", "API listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics and health listen address; empty disables")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			a.logger.Warn("runtime close failed", "error", closeErr)
		}
	}()

	var (
		obs     *observability.Server
		obsErr  <-chan error
		metrics *observability.Metrics
	)
	if addr := a.cfg.Metrics.Addr; addr != "" {
		obs = observability.NewServer(addr, rt.backend.Ping, a.logger,
			person.RegisterMetrics, credential.RegisterMetrics, audit.RegisterMetrics)
		if obsErr, err = obs.Start(); err != nil {
			return err
		}
		metrics = obs.Metrics()
	}

	ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		if obs != nil {
			_ = obs.Stop(context.Background())
		}
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", a.cfg.HTTP.Addr).Wrap(err)
	}
	srv := &http.Server{
		Handler:           httpapi.New(rt.engine, rt.checker, a.logger, metrics).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.logger.Info("http server started", "addr", ln.Addr().String())
	cmd.Printf("Listening on %s\n", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
		return nil
	})
	if obsErr != nil {
		g.Go(func() error {
			if err, ok := <-obsErr; ok && err != nil {
				return oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down", "reason", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown failed", "error", err)
		}
		if obs != nil {
			if err := obs.Stop(shutdownCtx); err != nil {
				a.logger.Warn("observability shutdown failed", "error", err)
			}
		}
		return nil
	})
	return g.Wait()
}
