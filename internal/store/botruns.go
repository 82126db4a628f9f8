package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BotRun is a recorded bot session: which script ran against the bound
// world and what it accomplished.
type BotRun struct {
	ID             string    `json:"id"`
	WorldID        string    `json:"world_id"`
	ScriptName     string    `json:"script_name"`
	Steps          int       `json:"steps"`
	Moves          int       `json:"moves"`
	CoinsCollected int       `json:"coins_collected"`
	CoinsDeposited int       `json:"coins_deposited"`
	CreatedAt      time.Time `json:"created_at"`
}

// SaveBotRun inserts a bot run record for the bound world and returns its ID.
func (s *SQLiteDB) SaveBotRun(run BotRun) (string, error) {
	if err := s.requireWorld(); err != nil {
		return "", err
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.Exec(
		`INSERT INTO bot_runs (id, world_id, script_name, steps, moves, coins_collected, coins_deposited, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, s.world.ID, run.ScriptName, run.Steps, run.Moves,
		run.CoinsCollected, run.CoinsDeposited, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("store: save bot run: %w", err)
	}
	return run.ID, nil
}

// ListBotRuns returns the bound world's bot runs, newest first.
func (s *SQLiteDB) ListBotRuns(limit int) ([]BotRun, error) {
	if err := s.requireWorld(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, world_id, script_name, steps, moves, coins_collected, coins_deposited, created_at
		 FROM bot_runs WHERE world_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		s.world.ID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list bot runs: %w", err)
	}
	defer rows.Close()

	var runs []BotRun
	for rows.Next() {
		var run BotRun
		if err := rows.Scan(
			&run.ID, &run.WorldID, &run.ScriptName, &run.Steps, &run.Moves,
			&run.CoinsCollected, &run.CoinsDeposited, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan bot run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
