// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sitter-id/sitter/internal/audit"
)

func (a *app) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	var personFlag, after string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List audit entries in ID order",
		Long: `List entries written by the postgres audit writer. Pass the last ID of
a page as --after to fetch the next one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := audit.Filter{Limit: limit}
			if personFlag != "" {
				id, err := parseID(personFlag)
				if err != nil {
					return err
				}
				f.PersonID = &id
			}
			if after != "" {
				cursor, err := ulid.ParseStrict(after)
				if err != nil {
					return oops.Code("INVALID_ARGUMENTS").With("after", after).Wrap(err)
				}
				f.After = cursor
			}

			b, err := a.deps.OpenBackend(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			entries, err := b.Audit.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []audit.Entry{}
			}
			return printJSON(cmd, entries)
		},
	}
	list.Flags().StringVar(&personFlag, "person", "", "only entries for this person id")
	list.Flags().StringVar(&after, "after", "", "only entries after this audit id")
	list.Flags().IntVar(&limit, "limit", audit.DefaultListLimit, "maximum entries to return")

	cmd.AddCommand(list)
	return cmd
}

