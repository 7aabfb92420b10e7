//go:build postgres && !sqlite

package main

import (
	"claimsync/internal/config"
	"claimsync/internal/observability"
	pgstore "claimsync/internal/storage/postgres"
)

func openBackend(cfg config.StorageConfig, logger observability.Logger) (*backend, error) {
	return openPostgres(cfg.DatabaseURL, logger)
}

func migrationStatus(cfg config.StorageConfig) (string, error) {
	return pgstore.Status(databaseURL(cfg.DatabaseURL))
}
