package database

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id         UUID PRIMARY KEY,
	room_code  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'in_progress',
	start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_time   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS game_actions (
	game_id        UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	action_index   INT NOT NULL,
	actor_user_id  UUID NOT NULL,
	action_type    TEXT NOT NULL,
	action_payload JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (game_id, action_index)
);

CREATE TABLE IF NOT EXISTS match_results (
	game_id     UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	player_id   UUID NOT NULL,
	player_name TEXT NOT NULL,
	score       INT NOT NULL,
	did_win     BOOLEAN NOT NULL,
	rounds      INT NOT NULL,
	PRIMARY KEY (game_id, player_id)
);
`

// EnsureSchema creates the tables used by the server and the historian.
func EnsureSchema(ctx context.Context) error {
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
