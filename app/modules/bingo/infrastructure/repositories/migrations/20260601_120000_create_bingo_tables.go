package bingomigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating bingo_rooms and bingo_rounds tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS bingo_rooms (
					id UUID PRIMARY KEY,
					code CHAR(6) NOT NULL,
					mode SMALLINT NOT NULL CHECK (mode IN (75, 90)),
					pattern_type VARCHAR(16) NOT NULL,
					status VARCHAR(16) NOT NULL,
					host_id VARCHAR(64) NOT NULL,
					max_players INTEGER NOT NULL,
					max_cards_per_player INTEGER NOT NULL,
					card_cost BIGINT NOT NULL DEFAULT 0,
					currency_type VARCHAR(16) NOT NULL,
					total_pot BIGINT NOT NULL DEFAULT 0,
					round INTEGER NOT NULL DEFAULT 1,
					auto_call BOOLEAN NOT NULL DEFAULT FALSE,
					drawn_numbers JSONB NOT NULL DEFAULT '[]',
					players JSONB NOT NULL DEFAULT '[]',
					last_outcome JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					closed_at TIMESTAMPTZ
				);
				CREATE UNIQUE INDEX IF NOT EXISTS uq_bingo_rooms_open_code ON bingo_rooms(code) WHERE closed_at IS NULL;
				CREATE INDEX IF NOT EXISTS idx_bingo_rooms_code ON bingo_rooms(code, created_at DESC);
			`); err != nil {
				return fmt.Errorf("failed to create bingo_rooms table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS bingo_rounds (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					room_id UUID NOT NULL REFERENCES bingo_rooms(id),
					room_code CHAR(6) NOT NULL,
					round INTEGER NOT NULL,
					mode SMALLINT NOT NULL,
					pattern_type VARCHAR(16) NOT NULL,
					host_id VARCHAR(64) NOT NULL,
					winner_id VARCHAR(64),
					winner_name VARCHAR(100),
					card_id UUID,
					exhausted BOOLEAN NOT NULL DEFAULT FALSE,
					drawn_count INTEGER NOT NULL,
					pot BIGINT NOT NULL DEFAULT 0,
					currency_type VARCHAR(16) NOT NULL,
					prize_winner BIGINT NOT NULL DEFAULT 0,
					prize_host BIGINT NOT NULL DEFAULT 0,
					prize_platform BIGINT NOT NULL DEFAULT 0,
					settled BOOLEAN NOT NULL DEFAULT FALSE,
					settled_at TIMESTAMPTZ,
					finished_at TIMESTAMPTZ NOT NULL,
					UNIQUE (room_id, round)
				);
				CREATE INDEX IF NOT EXISTS idx_bingo_rounds_finished_at ON bingo_rounds(finished_at);
			`); err != nil {
				return fmt.Errorf("failed to create bingo_rounds table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping bingo tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS bingo_rounds;`); err != nil {
				return fmt.Errorf("failed to drop bingo_rounds: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS bingo_rooms;`); err != nil {
				return fmt.Errorf("failed to drop bingo_rooms: %w", err)
			}
			return nil
		})
	})
}
