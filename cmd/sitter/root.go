// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sitter-id/sitter/internal/config"
	"github.com/sitter-id/sitter/internal/logging"
	"github.com/sitter-id/sitter/internal/xdg"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	deps       Deps
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

// NewRootCmd creates the root command for the sitter CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(Deps{})
}

func newRootCmd(deps Deps) *cobra.Command {
	a := &app{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "sitter",
		Short: "sitter - person record lifecycle service",
		Long: `sitter stores person records in PostgreSQL. Every create, read,
update and delete runs through a pipeline of hooks that validate emails,
hash passwords with argon2id and audit committed changes.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/sitter/config.yaml when present)")
	flags.String("database-url", "", "PostgreSQL connection URL (default $DATABASE_URL)")
	flags.String("log-format", "json", "log format: json or text")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("audit-writer", config.AuditWriterLog, "audit destination: none, log or postgres")

	cmd.AddCommand(a.newMigrateCmd())
	cmd.AddCommand(a.newPersonCmd())
	cmd.AddCommand(a.newVerifyCmd())
	cmd.AddCommand(a.newServeCmd())
	cmd.AddCommand(a.newAuditCmd())
	cmd.AddCommand(a.newConfigCmd())

	return cmd
}

// setup loads configuration and builds the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.configFile == "" {
		path, exists, err := xdg.ConfigFile()
		if err != nil {
			return err
		}
		if exists {
			a.configFile = path
		}
	}

	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.Setup(logging.Options{
		Service: "sitter",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})
	return nil
}
