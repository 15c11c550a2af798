// Package testutil starts throwaway infrastructure for integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	infraPostgres "github.com/sifan077/LinkPulse/internal/infra/postgres"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const postgresImage = "postgres:16-alpine"

// Postgres is a migrated database running in a container.
type Postgres struct {
	DSN  string
	Gorm *gorm.DB
	Pool *pgxpool.Pool
}

// StartPostgres runs a fresh Postgres container with the schema applied.
// The test is skipped with -short or when no container provider is reachable.
// Everything is torn down through t.Cleanup.
func StartPostgres(t *testing.T) *Postgres {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase("linkpulse"),
		tcpostgres.WithUsername("linkpulse"),
		tcpostgres.WithPassword("linkpulse"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	t.Cleanup(func() {
		if err := tc.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         infraPostgres.NewGormLogger(nil),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm connection: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := infraPostgres.Migrate(ctx, sqlDB, nil); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return &Postgres{DSN: dsn, Gorm: db, Pool: pool}
}

// Truncate empties every table so tests sharing a container start clean.
func (p *Postgres) Truncate(t *testing.T) {
	t.Helper()
	if _, err := p.Pool.Exec(context.Background(), "TRUNCATE TABLE clicks, short_urls RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}
