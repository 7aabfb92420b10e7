// Command claimsync runs the OpenID login service and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"claimsync/internal/config"
	"claimsync/internal/observability"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     observability.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "claimsync",
		Short:         "Provision local users from OpenID Connect logins",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			cfg.Log.Output = cmd.ErrOrStderr()
			a.cfg = cfg
			a.logger = observability.NewLogger(cfg.Log)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("CLAIMSYNC_CONFIG"), "path to a YAML config file")

	root.AddCommand(newServeCmd(a), newMigrateCmd(a), newUsersCmd(a))
	return root
}

// initSentry configures the global Sentry client when a DSN is set and
// reports whether events should be flushed on exit.
func (a *app) initSentry() bool {
	if a.cfg.Sentry.DSN == "" {
		return false
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              a.cfg.Sentry.DSN,
		Environment:      a.cfg.Sentry.Environment,
		Release:          a.cfg.Metrics.Version,
		TracesSampleRate: 1.0,
		AttachStacktrace: true,
	})
	if err != nil {
		a.logger.Warn("sentry initialization failed", "error", err)
		return false
	}
	a.logger.Info("sentry initialized",
		"environment", a.cfg.Sentry.Environment,
		"release", a.cfg.Metrics.Version,
	)
	return true
}
