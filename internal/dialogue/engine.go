package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
	"anonbot/internal/logging"
)

// ErrSuspended is returned by Wait* calls when the next event has not
// arrived yet. Scripts must propagate it unchanged; the engine persists the
// dialogue and resumes it on the next inbound event.
var ErrSuspended = errors.New("dialogue suspended")

// MismatchError reports an inbound event that does not satisfy the
// script's current wait predicate. The event is dropped and the dialogue
// stays suspended.
type MismatchError struct {
	Want string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("dialogue expected %s event", e.Want)
}

// ScriptFunc is a dialogue script. It must be deterministic: given the same
// event sequence it reaches the same Wait* and external-action calls in the
// same order. All side effects must go through Run.Reply, External or Do.
type ScriptFunc func(run *Run) error

// Engine drives dialogue scripts with replay semantics. On every inbound
// event the script re-runs from the start against the recorded event log;
// external actions whose outcome was already recorded are skipped and the
// recorded outcome substituted, so each action executes at most once per
// dialogue.
type Engine struct {
	store    StateStore
	notifier interfaces.Notifier
	scripts  map[string]ScriptFunc
}

func NewEngine(store StateStore, notifier interfaces.Notifier) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		scripts:  make(map[string]ScriptFunc),
	}
}

// Register binds a script id to its function. Registration happens once at
// startup, before any event is handled.
func (e *Engine) Register(name string, fn ScriptFunc) {
	e.scripts[name] = fn
}

// Active reports whether the chat has a suspended dialogue.
func (e *Engine) Active(ctx context.Context, chatID int64) (bool, error) {
	st, err := e.store.Load(ctx, chatID)
	if err != nil {
		return false, err
	}
	return st != nil, nil
}

// Enter starts a dialogue for the chat, tearing down any previous one
// first. The script runs immediately until its first suspension.
func (e *Engine) Enter(ctx context.Context, chatID int64, script string, sidecar map[string]string) error {
	if _, ok := e.scripts[script]; !ok {
		return fmt.Errorf("unknown dialogue script %q", script)
	}
	// Exclusivity: one dialogue per chat.
	if err := e.store.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("tear down previous dialogue: %w", err)
	}
	st := &State{ChatID: chatID, Script: script, Sidecar: sidecar}
	if err := e.store.Save(ctx, st); err != nil {
		return fmt.Errorf("persist dialogue state: %w", err)
	}
	return e.resume(ctx, st)
}

// HandleEvent feeds an inbound event to the chat's suspended dialogue.
// It reports handled=false when the chat has no active dialogue, in which
// case the caller should route the event elsewhere.
func (e *Engine) HandleEvent(ctx context.Context, chatID int64, ev Event) (bool, error) {
	st, err := e.store.Load(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("load dialogue state: %w", err)
	}
	if st == nil {
		return false, nil
	}
	st.Events = append(st.Events, ev)
	return true, e.resume(ctx, st)
}

// Abort discards the chat's dialogue, if any.
func (e *Engine) Abort(ctx context.Context, chatID int64) error {
	return e.store.Delete(ctx, chatID)
}

// resume replays the script against the state's event log and lets it
// continue live past the last recorded step.
func (e *Engine) resume(ctx context.Context, st *State) error {
	fn, ok := e.scripts[st.Script]
	if !ok {
		_ = e.store.Delete(ctx, st.ChatID)
		return fmt.Errorf("unknown dialogue script %q", st.Script)
	}

	run := &Run{ctx: ctx, engine: e, state: st}
	err := fn(run)

	switch {
	case err == nil:
		// Normal completion.
		return e.store.Delete(ctx, st.ChatID)
	case errors.Is(err, ErrSuspended):
		return e.store.Save(ctx, st)
	default:
		var mm *MismatchError
		if errors.As(err, &mm) {
			// Drop the offending event, keep the dialogue suspended.
			st.Events = st.Events[:len(st.Events)-1]
			if sErr := e.store.Save(ctx, st); sErr != nil {
				return fmt.Errorf("persist dialogue state: %w", sErr)
			}
			return err
		}
		logging.Log.Error("dialogue script failed",
			"chat_id", st.ChatID, "script", st.Script, "error", err)
		if dErr := e.store.Delete(ctx, st.ChatID); dErr != nil {
			logging.Log.Error("clear dialogue state", "chat_id", st.ChatID, "error", dErr)
		}
		return err
	}
}

// Run is the handle a script uses to wait for events and perform external
// actions. It is valid only for the duration of one script invocation.
type Run struct {
	ctx       context.Context
	engine    *Engine
	state     *State
	eventPos  int
	actionPos int
}

func (r *Run) Context() context.Context { return r.ctx }

func (r *Run) ChatID() int64 { return r.state.ChatID }

// Sidecar returns an out-of-band value stored when the dialogue was
// entered (for example the reply target id).
func (r *Run) Sidecar(key string) string {
	return r.state.Sidecar[key]
}

func (r *Run) nextEvent() (*Event, bool) {
	if r.eventPos >= len(r.state.Events) {
		return nil, false
	}
	ev := &r.state.Events[r.eventPos]
	return ev, true
}

// Wait suspends until any next event arrives and returns it. Use it where
// a step accepts both message input and a cancel button.
func (r *Run) Wait() (*Event, error) {
	ev, ok := r.nextEvent()
	if !ok {
		return nil, ErrSuspended
	}
	r.eventPos++
	return ev, nil
}

// WaitText suspends until the next event is a plain text message and
// returns its text.
func (r *Run) WaitText() (string, error) {
	ev, ok := r.nextEvent()
	if !ok {
		return "", ErrSuspended
	}
	if ev.Kind != EventMessage || ev.Payload == nil || ev.Payload.Text == "" {
		return "", &MismatchError{Want: "text"}
	}
	r.eventPos++
	return ev.Payload.Text, nil
}

// WaitCallback suspends until the next event is an inline-button click and
// returns its data.
func (r *Run) WaitCallback() (string, error) {
	ev, ok := r.nextEvent()
	if !ok {
		return "", ErrSuspended
	}
	if ev.Kind != EventCallback {
		return "", &MismatchError{Want: "callback"}
	}
	r.eventPos++
	return ev.Callback, nil
}

// WaitMessage suspends until the next event is any message and returns its
// payload.
func (r *Run) WaitMessage() (*Payload, error) {
	ev, ok := r.nextEvent()
	if !ok {
		return nil, ErrSuspended
	}
	if ev.Kind != EventMessage || ev.Payload == nil {
		return nil, &MismatchError{Want: "message"}
	}
	r.eventPos++
	return ev.Payload, nil
}

// Reply sends a text prompt to the dialogue's chat. It is an external
// action: replayed invocations do not resend.
func (r *Run) Reply(text string, kb interfaces.Keyboard) error {
	return Do(r, "reply", func(ctx context.Context) error {
		_, err := r.engine.notifier.SendToUser(ctx, r.state.ChatID, entities.ContentText, text, "", kb)
		return err
	})
}

// External runs a side-effecting action exactly once per dialogue run. On
// first execution the outcome (result or error) is recorded and persisted;
// replays substitute the recorded outcome without calling fn. The name must
// be stable across replays; a name mismatch means the script violated
// determinism and aborts the dialogue.
func External[T any](r *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r.actionPos < len(r.state.Actions) {
		rec := r.state.Actions[r.actionPos]
		if rec.Name != name {
			return zero, fmt.Errorf("dialogue replay diverged: recorded action %q, reached %q", rec.Name, name)
		}
		r.actionPos++
		if rec.Err != "" {
			return zero, errors.New(rec.Err)
		}
		if len(rec.Result) > 0 {
			if err := json.Unmarshal(rec.Result, &zero); err != nil {
				return zero, fmt.Errorf("decode recorded result of %q: %w", name, err)
			}
		}
		return zero, nil
	}

	res, err := fn(r.ctx)
	rec := ActionRecord{Name: name}
	if err != nil {
		rec.Err = err.Error()
	} else {
		raw, mErr := json.Marshal(res)
		if mErr != nil {
			return zero, fmt.Errorf("encode result of %q: %w", name, mErr)
		}
		rec.Result = raw
	}
	r.state.Actions = append(r.state.Actions, rec)
	r.actionPos++
	if sErr := r.engine.store.Save(r.ctx, r.state); sErr != nil {
		return zero, fmt.Errorf("persist dialogue state: %w", sErr)
	}
	if err != nil {
		logging.Log.Warn("external action failed",
			"chat_id", r.state.ChatID, "script", r.state.Script, "action", name, "error", err)
	}
	return res, err
}

// Do is External for actions without a result.
func Do(r *Run, name string, fn func(ctx context.Context) error) error {
	_, err := External(r, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
