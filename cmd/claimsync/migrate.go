package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				// Opening a backend applies pending migrations.
				be, err := openBackend(a.cfg.Storage, a.logger)
				if err != nil {
					return err
				}
				if err := be.Close(); err != nil {
					return err
				}
				return printStatus(cmd, a)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printStatus(cmd, a)
			},
		},
	)
	return cmd
}

func printStatus(cmd *cobra.Command, a *app) error {
	status, err := migrationStatus(a.cfg.Storage)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), status)
	return err
}
