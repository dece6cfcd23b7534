package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	bingoexport "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/export"
	bingodb "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories"
	bingomigrations "github.com/Black-And-White-Club/mundo-bingo/app/modules/bingo/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/mundo-bingo/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

func main() {
	// Load configuration for database connection ONLY
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	db := bun.NewDB(pgdb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, bingomigrations.Migrations)

	cliApp := &cli.App{
		Name:  "bun",
		Usage: "bingo database tooling",
		Commands: []*cli.Command{
			newDBCommand(migrator),
			newExportCommand(db),
		},
	}

	// flag.Parse consumed -config; hand the rest to the CLI.
	if err := cliApp.Run(append([]string{os.Args[0]}, flag.Args()...)); err != nil {
		log.Fatal(err)
	}
}

func newDBCommand(migrator *migrate.Migrator) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return migrator.Init(c.Context)
				},
			},
			{
				Name:  "migrate",
				Usage: "migrate database",
				Action: func(c *cli.Context) error {
					if err := migrator.Lock(c.Context); err != nil {
						return err
					}
					defer migrator.Unlock(c.Context) //nolint:errcheck

					group, err := migrator.Migrate(c.Context)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Println("No new migrations to run")
						return nil
					}
					fmt.Printf("Migrated to %s\n", group)
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					if err := migrator.Lock(c.Context); err != nil {
						return err
					}
					defer migrator.Unlock(c.Context) //nolint:errcheck

					group, err := migrator.Rollback(c.Context)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Println("No groups to roll back")
						return nil
					}
					fmt.Printf("Rolled back %s\n", group)
					return nil
				},
			},
			{
				Name:  "create_go",
				Usage: "create Go migration",
				Action: func(c *cli.Context) error {
					name := strings.Join(c.Args().Slice(), "_")
					mf, err := migrator.CreateGoMigration(c.Context, name)
					if err != nil {
						return err
					}
					fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
					return nil
				},
			},
			{
				Name:  "create_sql",
				Usage: "create up and down SQL migrations",
				Action: func(c *cli.Context) error {
					name := strings.Join(c.Args().Slice(), "_")
					files, err := migrator.CreateSQLMigrations(c.Context, name)
					if err != nil {
						return err
					}
					for _, mf := range files {
						fmt.Printf("Created migration %s (%s)\n", mf.Name, mf.Path)
					}
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					ms, err := migrator.MigrationsWithStatus(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("Migrations: %s\n", ms)
					fmt.Printf("Applied: %s\n", ms.Applied())
					fmt.Printf("Unapplied: %s\n", ms.Unapplied())
					return nil
				},
			},
		},
	}
}

func newExportCommand(db *bun.DB) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "export game history",
		Subcommands: []*cli.Command{
			{
				Name:  "rounds",
				Usage: "write finished rounds to an xlsx workbook",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "since", Value: 30 * 24 * time.Hour, Usage: "how far back to export"},
					&cli.StringFlag{Name: "out", Value: "bingo_rounds.xlsx", Usage: "output file"},
				},
				Action: func(c *cli.Context) error {
					since := time.Now().UTC().Add(-c.Duration("since"))
					rounds, err := bingodb.NewRepository(db).ListRoundsSince(c.Context, db, since)
					if err != nil {
						return fmt.Errorf("failed to list rounds: %w", err)
					}

					out, err := os.Create(c.String("out"))
					if err != nil {
						return err
					}
					if err := bingoexport.WriteRounds(out, rounds); err != nil {
						out.Close()
						return err
					}
					if err := out.Close(); err != nil {
						return err
					}
					fmt.Printf("Exported %d rounds to %s\n", len(rounds), c.String("out"))
					return nil
				},
			},
		},
	}
}
