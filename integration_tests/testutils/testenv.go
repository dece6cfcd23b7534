package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"

	bingomigrations "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/mundo-bingo/integration_tests/containers"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/eventbus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// TestEnvironment holds the containers and connections an integration test needs.
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer testcontainers.Container
	DB            *bun.DB
	DSN           string
	NatsURL       string
	EventBus      eventbus.EventBus
	Logger        *slog.Logger
}

// NewTestEnvironment starts Postgres and NATS, applies the bingo migrations and
// connects the event bus. Resources are released through t.Cleanup.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	env := &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	t.Cleanup(env.Cleanup)

	if err := env.setup(ctx); err != nil {
		t.Fatalf("failed to set up test environment: %v", err)
	}
	return env
}

func (env *TestEnvironment) setup(ctx context.Context) error {
	pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return err
	}
	env.PgContainer = pgContainer
	env.DSN = dsn

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		return err
	}
	env.NatsContainer = natsContainer
	env.NatsURL = natsURL

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	env.DB = bun.NewDB(sqldb, pgdialect.New())
	if err := runMigrations(ctx, env.DB); err != nil {
		return err
	}

	env.EventBus, err = eventbus.NewEventBus(ctx, eventbus.Config{URL: natsURL}, env.Logger)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	return nil
}

func runMigrations(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, bingomigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// ResetDB empties the bingo tables between tests.
func (env *TestEnvironment) ResetDB(t *testing.T) {
	t.Helper()
	_, err := env.DB.ExecContext(env.Ctx, "TRUNCATE bingo_rounds, bingo_rooms")
	if err != nil {
		t.Fatalf("failed to truncate bingo tables: %v", err)
	}
}

// Cleanup closes connections and terminates the containers.
func (env *TestEnvironment) Cleanup() {
	if env.EventBus != nil {
		_ = env.EventBus.Close()
	}
	if env.DB != nil {
		_ = env.DB.Close()
	}
	ctx := context.Background()
	if env.NatsContainer != nil {
		_ = env.NatsContainer.Terminate(ctx)
	}
	if env.PgContainer != nil {
		_ = env.PgContainer.Terminate(ctx)
	}
	env.CancelContext()
}
