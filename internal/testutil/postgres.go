//go:build postgres

package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartPostgres returns a connection string for integration tests and a
// cleanup func. DATABASE_URL is used as-is when set; otherwise a
// postgres:16-alpine container is started with testcontainers-go.
func StartPostgres(ctx context.Context) (string, func(), error) {
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		return connStr, func() {}, nil
	}

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("claimsync_test"),
		tcpostgres.WithUsername("claimsync"),
		tcpostgres.WithPassword("claimsync"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres container: %w", err)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return "", nil, fmt.Errorf("container connection string: %w", err)
	}
	return connStr, terminate, nil
}
