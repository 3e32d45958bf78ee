package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/uno/internal/cache"
)

// InsertGameActions writes a batch of historian records in one transaction,
// creating the game row on first sight. A game_end record completes the game.
func InsertGameActions(ctx context.Context, batch []cache.GameActionRecord) error {
	if len(batch) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batch {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertGameActionTx: %w", err)
			}
		}
		return nil
	})
}

func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec cache.GameActionRecord) error {
	upsertGameQ := `
		INSERT INTO games (id, room_code, status, start_time)
		VALUES ($1, $2, 'in_progress', NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID, rec.RoomCode); err != nil {
		return err
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (
			game_id, action_index, actor_user_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id, action_index) DO NOTHING
	`
	_, err = tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, jsonPayload, time.UnixMilli(rec.Timestamp),
	)
	if err != nil {
		return err
	}

	if IsTerminalAction(rec.ActionType) {
		finalizeQ := `
			UPDATE games
			SET status = 'completed', end_time = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`
		if _, err = tx.Exec(ctx, finalizeQ, rec.GameID); err != nil {
			return err
		}
	}
	return nil
}

// IsTerminalAction reports whether an action type ends a game.
func IsTerminalAction(actionType string) bool {
	return actionType == "game_end"
}

// MarkGameAbandoned flags a game that is still in progress as abandoned.
// It reports whether a row changed.
func MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error) {
	tag, err := DB.Exec(ctx, `
		UPDATE games
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`, gameID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
