package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MatchRow is one player's line in a finished match.
type MatchRow struct {
	PlayerID   uuid.UUID
	PlayerName string
	Score      int
	DidWin     bool
}

// MatchRecord is everything persisted about a finished match.
type MatchRecord struct {
	GameID    uuid.UUID
	RoomCode  string
	Rounds    int
	StartedAt time.Time
	EndedAt   time.Time
	Rows      []MatchRow
}

// RecordMatchResult marks the game completed and writes one match_results
// row per player, in a single transaction.
func RecordMatchResult(ctx context.Context, rec MatchRecord) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, room_code, status, start_time, end_time)
			VALUES ($1, $2, 'completed', $3, $4)
			ON CONFLICT (id) DO UPDATE SET status = 'completed', room_code = $2, end_time = $4
		`
		if _, e := tx.Exec(ctx, upsertGame, rec.GameID, rec.RoomCode, rec.StartedAt, rec.EndedAt); e != nil {
			return e
		}

		q := `
			INSERT INTO match_results (game_id, player_id, player_name, score, did_win, rounds)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (game_id, player_id)
			DO UPDATE SET score = $4, did_win = $5, rounds = $6
		`
		for _, row := range rec.Rows {
			if _, e := tx.Exec(ctx, q, rec.GameID, row.PlayerID, row.PlayerName, row.Score, row.DidWin, rec.Rounds); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}
