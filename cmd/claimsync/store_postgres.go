//go:build postgres

package main

import (
	"claimsync/internal/audit"
	"claimsync/internal/auth"
	"claimsync/internal/observability"
	pgstore "claimsync/internal/storage/postgres"
)

func databaseURL(url string) string {
	if url == "" {
		return defaultDatabaseURL
	}
	return url
}

// openPostgres opens one migrated pool shared by the user store and audit logger.
func openPostgres(url string, logger observability.Logger) (*backend, error) {
	st, err := pgstore.New(databaseURL(url))
	if err != nil {
		return nil, err
	}
	logger.Info("using postgres store")
	return &backend{
		users:  auth.NewPostgresUserStoreFromPool(st.Pool()),
		audit:  audit.NewPostgresAuditLoggerFromPool(st.Pool()),
		pinger: st,
		close:  st.Close,
	}, nil
}
