// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package main

import (
	"bufio"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sitter-id/sitter/internal/person"
)

// personOutput is what the CLI prints for a person; the hash stays out.
type personOutput struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toOutput(p *person.Person) personOutput {
	return personOutput{ID: p.ID, Email: p.Email, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

func (a *app) newPersonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Create, read, update and delete person records",
	}
	cmd.AddCommand(a.newPersonCreateCmd())
	cmd.AddCommand(a.newPersonGetCmd())
	cmd.AddCommand(a.newPersonListCmd())
	cmd.AddCommand(a.newPersonUpdateCmd())
	cmd.AddCommand(a.newPersonDeleteCmd())
	return cmd
}

func (a *app) newPersonCreateCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a person",
		Args:  cobra.NoArgs,
		RunE: a.withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) error {
			secret, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			p, err := rt.engine.Create(cmd.Context(), &person.Request{Email: email, Password: secret})
			if err != nil {
				return err
			}
			return printJSON(cmd, toOutput(p))
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", `password, or "-" to read it from stdin`)
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) newPersonGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one person",
		Args:  cobra.ExactArgs(1),
		RunE: a.withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := rt.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, toOutput(p))
		}),
	}
}

func (a *app) newPersonListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every person",
		Args:  cobra.NoArgs,
		RunE: a.withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) error {
			people, err := rt.engine.Read(cmd.Context(), nil)
			if err != nil {
				return err
			}
			out := make([]personOutput, 0, len(people))
			for _, p := range people {
				out = append(out, toOutput(p))
			}
			return printJSON(cmd, out)
		}),
	}
}

func (a *app) newPersonUpdateCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a person's email or password",
		Args:  cobra.ExactArgs(1),
		RunE: a.withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if email == "" && password == "" {
				return oops.Code("INVALID_ARGUMENTS").Errorf("nothing to update: pass --email or --password")
			}
			secret := password
			if secret != "" {
				if secret, err = readPassword(cmd, password); err != nil {
					return err
				}
			}
			p, err := rt.engine.Update(cmd.Context(), id, &person.Request{Email: email, Password: secret})
			if err != nil {
				return err
			}
			return printJSON(cmd, toOutput(p))
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&password, "password", "", `new password, or "-" to read it from stdin`)
	return cmd
}

func (a *app) newPersonDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a person",
		Args:  cobra.ExactArgs(1),
		RunE: a.withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, err := rt.engine.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			cmd.Printf("deleted %d\n", n)
			return nil
		}),
	}
}

// withRuntime opens the engine for fn and drains audit entries afterwards.
func (a *app) withRuntime(fn func(cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		rt, err := a.open(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := rt.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, rt, args)
	}
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, oops.Code("INVALID_ARGUMENTS").With("id", s).Wrap(err)
	}
	return id, nil
}

// readPassword returns flag unless it is "-", in which case the first line of
// stdin is used.
func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "-" {
		return flag, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", oops.Code("INVALID_ARGUMENTS").With("operation", "read password from stdin").Wrap(err)
		}
		return "", oops.Code("INVALID_ARGUMENTS").Errorf("empty password on stdin")
	}
	return line, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.With("operation", "write output").Wrap(err)
	}
	return nil
}
