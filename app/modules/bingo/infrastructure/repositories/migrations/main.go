package bingomigrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the bingo module schema migrations.
var Migrations = migrate.NewMigrations()
