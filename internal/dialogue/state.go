package dialogue

import (
	"context"
	"encoding/json"
)

// ActionRecord is the recorded outcome of one external action. On replay
// the recorded outcome is substituted and the action is not re-executed.
type ActionRecord struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result,omitempty"`
	Err    string          `json:"err,omitempty"`
}

// State is the durable record of one suspended dialogue. There is at most
// one State per chat at any time.
type State struct {
	ChatID  int64             `json:"chat_id"`
	Script  string            `json:"script"`
	Sidecar map[string]string `json:"sidecar,omitempty"`
	Events  []Event           `json:"events"`
	Actions []ActionRecord    `json:"actions"`
}

// StateStore persists dialogue states keyed by chat id. Load returns
// (nil, nil) when the chat has no active dialogue.
type StateStore interface {
	Load(ctx context.Context, chatID int64) (*State, error)
	Save(ctx context.Context, st *State) error
	Delete(ctx context.Context, chatID int64) error
}
