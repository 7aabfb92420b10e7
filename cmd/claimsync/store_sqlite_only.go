//go:build sqlite && !postgres

package main

import (
	"claimsync/internal/config"
	"claimsync/internal/observability"
	sqlitestore "claimsync/internal/storage/sqlite"
)

func openBackend(cfg config.StorageConfig, logger observability.Logger) (*backend, error) {
	return openSQLite(cfg.SQLiteDSN, logger)
}

func migrationStatus(cfg config.StorageConfig) (string, error) {
	return sqlitestore.Status(sqliteDSN(cfg.SQLiteDSN))
}
