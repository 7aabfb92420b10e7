//go:build sqlite && postgres

package main

import (
	"claimsync/internal/config"
	"claimsync/internal/observability"
	pgstore "claimsync/internal/storage/postgres"
	sqlitestore "claimsync/internal/storage/sqlite"
)

// openBackend picks PostgreSQL if a database URL is configured, otherwise SQLite.
func openBackend(cfg config.StorageConfig, logger observability.Logger) (*backend, error) {
	if cfg.DatabaseURL != "" {
		return openPostgres(cfg.DatabaseURL, logger)
	}
	return openSQLite(cfg.SQLiteDSN, logger)
}

func migrationStatus(cfg config.StorageConfig) (string, error) {
	if cfg.DatabaseURL != "" {
		return pgstore.Status(cfg.DatabaseURL)
	}
	return sqlitestore.Status(sqliteDSN(cfg.SQLiteDSN))
}
