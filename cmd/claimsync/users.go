package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"claimsync/internal/auth"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect provisioned users",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			be, err := openBackend(a.cfg.Storage, a.logger)
			if err != nil {
				return err
			}
			defer be.Close()

			users, err := be.users.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(users)
			}
			return writeUserTable(cmd, users)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	show := &cobra.Command{
		Use:   "show USERNAME",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			be, err := openBackend(a.cfg.Storage, a.logger)
			if err != nil {
				return err
			}
			defer be.Close()

			user, err := be.users.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get user: %w", err)
			}
			if user == nil {
				return fmt.Errorf("%w: %s", auth.ErrUserNotFound, args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(user)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func writeUserTable(cmd *cobra.Command, users []*auth.User) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tEMAIL\tPROVIDER\tSUBJECT\tROLES\tLAST LOGIN")
	for _, u := range users {
		lastLogin := "-"
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.Username, u.Email, u.Provider, u.OpenIDSubject, strings.Join(u.Roles, ","), lastLogin)
	}
	return tw.Flush()
}
