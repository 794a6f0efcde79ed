// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func (a *app) newVerifyCmd() *cobra.Command {
	var idFlag, email, password string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a password against a stored person",
		Long: `Check a password for the person selected by --id or --email. Hashes made
with weaker parameters than the configured ones are upgraded on success.
Exits non-zero when the password does not match.`,
		Args: cobra.NoArgs,
		RunE: a.withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) error {
			ctx := cmd.Context()
			secret, err := readPassword(cmd, password)
			if err != nil {
				return err
			}

			var id uuid.UUID
			switch {
			case idFlag != "":
				if id, err = parseID(idFlag); err != nil {
					return err
				}
			case email != "":
				p, err := rt.backend.People.GetByEmail(ctx, email)
				if err != nil {
					return err
				}
				id = p.ID
			default:
				return oops.Code("INVALID_ARGUMENTS").Errorf("one of --id or --email is required")
			}

			res, err := rt.checker.Check(ctx, id, secret)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Valid {
				return oops.Code("CREDENTIAL_MISMATCH").With("person_id", id.String()).Errorf("password does not match")
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&idFlag, "id", "", "person id")
	cmd.Flags().StringVar(&email, "email", "", "person email")
	cmd.Flags().StringVar(&password, "password", "", `password, or "-" to read it from stdin`)
	cmd.MarkFlagsMutuallyExclusive("id", "email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
