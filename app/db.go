package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	bingomigrations "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/mundo-bingo/pkg/attr"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// openDB connects to Postgres through pgdriver and pings it.
func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// migrateDB applies pending bingo migrations.
func migrateDB(ctx context.Context, db *bun.DB, logger *slog.Logger) error {
	migrator := migrate.NewMigrator(db, bingomigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if group.IsZero() {
		logger.InfoContext(ctx, "No new bingo migrations to run")
		return nil
	}
	logger.InfoContext(ctx, "Applied bingo migrations", attr.String("group", group.String()))
	return nil
}
