//go:build sqlite

package main

import (
	"claimsync/internal/audit"
	"claimsync/internal/auth"
	"claimsync/internal/observability"
	sqlitestore "claimsync/internal/storage/sqlite"
)

func sqliteDSN(dsn string) string {
	if dsn == "" {
		return defaultSQLiteDSN
	}
	return dsn
}

// openSQLite opens one migrated database shared by the user store and audit logger.
func openSQLite(dsn string, logger observability.Logger) (*backend, error) {
	dsn = sqliteDSN(dsn)
	st, err := sqlitestore.New(dsn)
	if err != nil {
		return nil, err
	}
	logger.Info("using sqlite store", "dsn", dsn)
	return &backend{
		users:  auth.NewSQLiteUserStoreFromDB(st.DB()),
		audit:  audit.NewSQLiteAuditLoggerFromDB(st.DB()),
		pinger: st,
		close:  st.Close,
	}, nil
}
