//go:build !sqlite && !postgres

package main

import (
	"errors"

	"claimsync/internal/audit"
	"claimsync/internal/auth"
	"claimsync/internal/config"
	"claimsync/internal/observability"
)

// openBackend returns in-memory stores when built without storage tags.
func openBackend(cfg config.StorageConfig, logger observability.Logger) (*backend, error) {
	if cfg.SQLiteDSN != "" || cfg.DatabaseURL != "" {
		logger.Warn("storage configured, but binary not built with -tags sqlite or postgres; using in-memory store")
	}
	logger.Info("using in-memory user store")
	return &backend{
		users: auth.NewMemoryUserStore(),
		audit: audit.NewMemoryAuditLogger(),
	}, nil
}

func migrationStatus(config.StorageConfig) (string, error) {
	return "", errors.New("migrations status not available in this build (rebuild with -tags sqlite or postgres)")
}
