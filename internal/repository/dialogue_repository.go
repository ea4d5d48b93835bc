package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"anonbot/internal/dialogue"

	_ "modernc.org/sqlite"
)

// DialogueStateRepository keeps suspended dialogues in an embedded SQLite
// file so they survive process restarts. Dialogue state is process-local;
// shared data lives in Postgres.
type DialogueStateRepository struct {
	db *sql.DB
}

func NewDialogueStateRepository(path string) (*DialogueStateRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dialogue db: %w", err)
	}
	// The bot handles events one at a time; a single connection avoids
	// SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS dialogue_states (
			chat_id INTEGER PRIMARY KEY,
			script TEXT NOT NULL,
			sidecar TEXT NOT NULL,
			events TEXT NOT NULL,
			actions TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("create dialogue_states table: %w", err)
	}

	return &DialogueStateRepository{db: db}, nil
}

func (r *DialogueStateRepository) Load(ctx context.Context, chatID int64) (*dialogue.State, error) {
	var script, sidecar, events, actions string
	err := r.db.QueryRowContext(ctx,
		"SELECT script, sidecar, events, actions FROM dialogue_states WHERE chat_id = ?",
		chatID).Scan(&script, &sidecar, &events, &actions)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	st := &dialogue.State{ChatID: chatID, Script: script}
	if err := json.Unmarshal([]byte(sidecar), &st.Sidecar); err != nil {
		return nil, fmt.Errorf("decode sidecar for chat %d: %w", chatID, err)
	}
	if err := json.Unmarshal([]byte(events), &st.Events); err != nil {
		return nil, fmt.Errorf("decode events for chat %d: %w", chatID, err)
	}
	if err := json.Unmarshal([]byte(actions), &st.Actions); err != nil {
		return nil, fmt.Errorf("decode actions for chat %d: %w", chatID, err)
	}
	return st, nil
}

func (r *DialogueStateRepository) Save(ctx context.Context, st *dialogue.State) error {
	sidecar, err := json.Marshal(st.Sidecar)
	if err != nil {
		return err
	}
	events, err := json.Marshal(st.Events)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(st.Actions)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dialogue_states (chat_id, script, sidecar, events, actions, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (chat_id) DO UPDATE SET
			script = excluded.script,
			sidecar = excluded.sidecar,
			events = excluded.events,
			actions = excluded.actions,
			updated_at = excluded.updated_at`,
		st.ChatID, st.Script, string(sidecar), string(events), string(actions))
	return err
}

func (r *DialogueStateRepository) Delete(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM dialogue_states WHERE chat_id = ?", chatID)
	return err
}

func (r *DialogueStateRepository) Close() error {
	return r.db.Close()
}
