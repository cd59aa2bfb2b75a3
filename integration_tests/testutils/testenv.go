package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/Black-And-White-Club/dupr-bridge/integration_tests/containers"
)

// TestEnvironment holds the resources shared by one package's integration tests.
type TestEnvironment struct {
	Ctx         context.Context
	cancel      context.CancelFunc
	PgContainer *postgres.PostgresContainer
	DB          *bun.DB
	DSN         string
	Logger      *slog.Logger
}

var (
	sharedEnv     *TestEnvironment
	sharedEnvErr  error
	sharedEnvOnce sync.Once
)

// GetOrCreateSharedEnv starts Postgres once per test binary. Tests are
// skipped in -short mode and when no container runtime is reachable.
func GetOrCreateSharedEnv(t *testing.T) *TestEnvironment {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	sharedEnvOnce.Do(func() {
		sharedEnv, sharedEnvErr = newTestEnvironment()
	})
	if sharedEnvErr != nil {
		t.Fatalf("failed to set up integration environment: %v", sharedEnvErr)
	}
	return sharedEnv
}

// CleanupSharedEnv tears down the shared environment, if one was created.
func CleanupSharedEnv() {
	if sharedEnv != nil {
		sharedEnv.Cleanup()
		sharedEnv = nil
	}
}

func newTestEnvironment() (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pgContainer, connStr, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup postgres container: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := runMigrations(ctx, db, connStr); err != nil {
		_ = db.Close()
		_ = pgContainer.Terminate(ctx)
		cancel()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestEnvironment{
		Ctx:         ctx,
		cancel:      cancel,
		PgContainer: pgContainer,
		DB:          db,
		DSN:         connStr,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Reset truncates every table so the next test starts clean.
func (env *TestEnvironment) Reset(t *testing.T) {
	t.Helper()
	if err := CleanupDatabase(env.Ctx, env.DB); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
}

// Cleanup closes the database and terminates the container.
func (env *TestEnvironment) Cleanup() {
	if env.DB != nil {
		if err := env.DB.Close(); err != nil {
			log.Printf("Error closing DB: %v", err)
		}
	}
	if env.PgContainer != nil {
		if err := env.PgContainer.Terminate(context.Background()); err != nil {
			log.Printf("Error terminating postgres container: %v", err)
		}
	}
	env.cancel()
}
