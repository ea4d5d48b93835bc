package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"anonbot/internal/dialogue"
	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
)

// opRecorder collects the order of store writes across fakes. A nil
// recorder is a no-op so most tests can ignore it.
type opRecorder struct {
	ops []string
}

func (r *opRecorder) note(op string) {
	if r == nil {
		return
	}
	r.ops = append(r.ops, op)
}

type fakeMessages struct {
	nextID int64
	byID   map[int64]*entities.Message
	rec    *opRecorder
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{byID: make(map[int64]*entities.Message)}
}

func (f *fakeMessages) Create(_ context.Context, msg *entities.Message) (int64, error) {
	f.rec.note("create-message")
	f.nextID++
	m := *msg
	m.ID = f.nextID
	if m.Status == "" {
		m.Status = entities.StatusDelivered
	}
	m.CreatedAt = time.Unix(f.nextID, 0)
	f.byID[m.ID] = &m
	return m.ID, nil
}

func (f *fakeMessages) Get(_ context.Context, id int64) (*entities.Message, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessages) UpdateStatus(_ context.Context, id int64, status entities.MessageStatus, reason string) error {
	m, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("message %d not found", id)
	}
	m.Status = status
	m.RejectReason = reason
	return nil
}

func (f *fakeMessages) SetPublishedMsgID(_ context.Context, id, publishedMsgID int64) error {
	m, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("message %d not found", id)
	}
	m.PublishedMsgID = publishedMsgID
	return nil
}

func (f *fakeMessages) list(filter func(*entities.Message) bool) []entities.Message {
	var out []entities.Message
	for _, m := range f.byID {
		if filter(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeMessages) ListPending(context.Context) ([]entities.Message, error) {
	return f.list(func(m *entities.Message) bool {
		return m.Type == entities.MessageGroup && m.Status == entities.StatusPending
	}), nil
}

func (f *fakeMessages) ListChildren(_ context.Context, parentID int64) ([]entities.Message, error) {
	return f.list(func(m *entities.Message) bool { return m.ParentID == parentID }), nil
}

func (f *fakeMessages) ListUnpublished(context.Context) ([]entities.Message, error) {
	return f.list(func(m *entities.Message) bool {
		return m.Type == entities.MessageGroup && m.Status == entities.StatusApproved && m.PublishedMsgID == 0
	}), nil
}

type fakeUsers struct {
	nextID int64
	byID   map[int64]*entities.User
	rec    *opRecorder
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[int64]*entities.User)}
}

func (f *fakeUsers) add(u entities.User) *entities.User {
	f.nextID++
	u.ID = f.nextID
	f.byID[u.ID] = &u
	return &u
}

func (f *fakeUsers) find(filter func(*entities.User) bool) *entities.User {
	for _, u := range f.byID {
		if filter(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*entities.User, error) {
	return f.find(func(u *entities.User) bool { return u.ID == id }), nil
}

func (f *fakeUsers) GetByTelegramID(_ context.Context, telegramID int64) (*entities.User, error) {
	return f.find(func(u *entities.User) bool { return u.TelegramID == telegramID }), nil
}

func (f *fakeUsers) GetByLogin(_ context.Context, login string) (*entities.User, error) {
	return f.find(func(u *entities.User) bool { return u.Login == login }), nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*entities.User, error) {
	return f.find(func(u *entities.User) bool { return u.Username == username }), nil
}

func (f *fakeUsers) Create(_ context.Context, user *entities.User) (int64, error) {
	created := f.add(*user)
	user.ID = created.ID
	return created.ID, nil
}

func (f *fakeUsers) UpdateQuota(_ context.Context, id int64, count int, date time.Time) error {
	f.rec.note("record-quota")
	u, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	u.MessageCount = count
	u.LastMessageDate = date
	return nil
}

type fakeAllowList struct {
	byLogin map[string]*entities.AllowListEntry
}

func newFakeAllowList() *fakeAllowList {
	return &fakeAllowList{byLogin: make(map[string]*entities.AllowListEntry)}
}

func (f *fakeAllowList) FindByLogin(_ context.Context, login string) (*entities.AllowListEntry, error) {
	e, ok := f.byLogin[login]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeAllowList) MarkConsumed(_ context.Context, login string) error {
	if e, ok := f.byLogin[login]; ok {
		e.Consumed = true
	}
	return nil
}

type sentMessage struct {
	ChatID int64
	Kind   entities.ContentKind
	Text   string
	Group  bool
}

type fakeNotifier struct {
	sent       []sentMessage
	nextMsgID  int64
	publishErr error
}

func (f *fakeNotifier) SendToUser(_ context.Context, chatID int64, kind entities.ContentKind, text, _ string, _ interfaces.Keyboard) (int64, error) {
	f.nextMsgID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Kind: kind, Text: text})
	return f.nextMsgID, nil
}

func (f *fakeNotifier) PublishToGroup(_ context.Context, kind entities.ContentKind, text, _ string, _ interfaces.Keyboard) (int64, error) {
	if f.publishErr != nil {
		return 0, f.publishErr
	}
	f.nextMsgID++
	f.sent = append(f.sent, sentMessage{Kind: kind, Text: text, Group: true})
	return f.nextMsgID, nil
}

func (f *fakeNotifier) groupTexts() []string {
	var out []string
	for _, m := range f.sent {
		if m.Group {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeNotifier) textsFor(chatID int64) []string {
	var out []string
	for _, m := range f.sent {
		if !m.Group && m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

// memStateStore round-trips dialogue states through JSON, same as the
// durable store would across a restart.
type memStateStore struct {
	states map[int64][]byte
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: make(map[int64][]byte)}
}

func (s *memStateStore) Load(_ context.Context, chatID int64) (*dialogue.State, error) {
	raw, ok := s.states[chatID]
	if !ok {
		return nil, nil
	}
	var st dialogue.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *memStateStore) Save(_ context.Context, st *dialogue.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.states[st.ChatID] = raw
	return nil
}

func (s *memStateStore) Delete(_ context.Context, chatID int64) error {
	delete(s.states, chatID)
	return nil
}

type fakeMenu struct {
	shown []int64
}

func (f *fakeMenu) Show(_ context.Context, chatID int64) error {
	f.shown = append(f.shown, chatID)
	return nil
}

type alwaysMember struct{}

func (alwaysMember) IsChatMember(int64) bool { return true }
