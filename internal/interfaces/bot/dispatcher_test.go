package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonbot/internal/dialogue"
	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
	"anonbot/internal/usecases"
)

type sentText struct {
	chatID int64
	text   string
}

type fakeTelegram struct {
	sent    []sentText
	deleted []int
}

func (f *fakeTelegram) SendToUser(_ context.Context, chatID int64, _ entities.ContentKind, text, _ string, _ interfaces.Keyboard) (int64, error) {
	f.sent = append(f.sent, sentText{chatID: chatID, text: text})
	return int64(len(f.sent)), nil
}

func (f *fakeTelegram) PublishToGroup(_ context.Context, _ entities.ContentKind, text, _ string, _ interfaces.Keyboard) (int64, error) {
	f.sent = append(f.sent, sentText{text: text})
	return int64(len(f.sent)), nil
}

func (f *fakeTelegram) SendPersistentMenu(_ context.Context, chatID int64, text string, _ tgbotapi.ReplyKeyboardMarkup) error {
	f.sent = append(f.sent, sentText{chatID: chatID, text: text})
	return nil
}

func (f *fakeTelegram) DeleteMessage(_ int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTelegram) AnswerCallback(string) {}

func (f *fakeTelegram) UpdatesChan() tgbotapi.UpdatesChannel { return nil }

func (f *fakeTelegram) StopUpdates() {}

type nullUsers struct{}

func (nullUsers) GetByID(context.Context, int64) (*entities.User, error)         { return nil, nil }
func (nullUsers) GetByTelegramID(context.Context, int64) (*entities.User, error) { return nil, nil }
func (nullUsers) GetByLogin(context.Context, string) (*entities.User, error)     { return nil, nil }
func (nullUsers) GetByUsername(context.Context, string) (*entities.User, error)  { return nil, nil }
func (nullUsers) Create(context.Context, *entities.User) (int64, error)          { return 1, nil }
func (nullUsers) UpdateQuota(context.Context, int64, int, time.Time) error       { return nil }

type nullMessages struct{}

func (nullMessages) Create(context.Context, *entities.Message) (int64, error) { return 1, nil }
func (nullMessages) Get(context.Context, int64) (*entities.Message, error)    { return nil, nil }
func (nullMessages) UpdateStatus(context.Context, int64, entities.MessageStatus, string) error {
	return nil
}
func (nullMessages) SetPublishedMsgID(context.Context, int64, int64) error { return nil }
func (nullMessages) ListPending(context.Context) ([]entities.Message, error) {
	return nil, nil
}
func (nullMessages) ListChildren(context.Context, int64) ([]entities.Message, error) {
	return nil, nil
}
func (nullMessages) ListUnpublished(context.Context) ([]entities.Message, error) {
	return nil, nil
}

type nullAllowList struct{}

func (nullAllowList) FindByLogin(context.Context, string) (*entities.AllowListEntry, error) {
	return nil, nil
}
func (nullAllowList) MarkConsumed(context.Context, string) error { return nil }

type mapStateStore struct {
	states map[int64]*dialogue.State
}

func (s *mapStateStore) Load(_ context.Context, chatID int64) (*dialogue.State, error) {
	return s.states[chatID], nil
}

func (s *mapStateStore) Save(_ context.Context, st *dialogue.State) error {
	s.states[st.ChatID] = st
	return nil
}

func (s *mapStateStore) Delete(_ context.Context, chatID int64) error {
	delete(s.states, chatID)
	return nil
}

type memberAlways struct{}

func (memberAlways) IsChatMember(int64) bool { return true }

const testGroupID = int64(555)

func dispatcherFixture() (*Dispatcher, *fakeTelegram) {
	tg := &fakeTelegram{}
	users := nullUsers{}
	messages := nullMessages{}
	engine := dialogue.NewEngine(&mapStateStore{states: make(map[int64]*dialogue.State)}, tg)
	auth := usecases.NewAuthService(users, nullAllowList{}, memberAlways{}, "moderator", "nur_")
	content := usecases.NewContentService(tg, users, "moderator", "testbot")
	moderation := usecases.NewModerationService(messages, users, tg, content)
	menu := NewMenuService(tg, users, usecases.Quota{PerDay: 3})
	d := NewDispatcher(tg, engine, auth, moderation, menu, users, messages, testGroupID, "")
	return d, tg
}

func commandMessage(chat *tgbotapi.Chat, command string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		Chat:      chat,
		Text:      command,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}},
	}
}

func TestChatIDCommandAnswersInGroup(t *testing.T) {
	d, tg := dispatcherFixture()
	msg := commandMessage(&tgbotapi.Chat{ID: testGroupID, Type: "supergroup", Title: "Общий чат"}, "/chatid")

	d.handleMessage(context.Background(), msg)

	require.Len(t, tg.sent, 1)
	assert.Equal(t, testGroupID, tg.sent[0].chatID)
	assert.Contains(t, tg.sent[0].text, "555")
	assert.Contains(t, tg.sent[0].text, "Общий чат")
	assert.Empty(t, tg.deleted)
}

func TestChatIDCommandAnswersInPrivateChat(t *testing.T) {
	d, tg := dispatcherFixture()
	msg := commandMessage(&tgbotapi.Chat{ID: 42, Type: "private"}, "/chatid")

	d.handleMessage(context.Background(), msg)

	require.Len(t, tg.sent, 1)
	assert.Equal(t, int64(42), tg.sent[0].chatID)
	assert.Contains(t, tg.sent[0].text, "42")
}

func TestGroupServiceMessagesDeleted(t *testing.T) {
	d, tg := dispatcherFixture()
	msg := &tgbotapi.Message{
		MessageID:      10,
		Chat:           &tgbotapi.Chat{ID: testGroupID, Type: "supergroup"},
		NewChatMembers: []tgbotapi.User{{ID: 1}},
	}

	d.handleMessage(context.Background(), msg)

	assert.Equal(t, []int{10}, tg.deleted)
	assert.Empty(t, tg.sent)
}

func TestOrdinaryGroupChatterIgnored(t *testing.T) {
	d, tg := dispatcherFixture()
	msg := &tgbotapi.Message{
		MessageID: 10,
		Chat:      &tgbotapi.Chat{ID: testGroupID, Type: "supergroup"},
		Text:      "просто разговор",
	}

	d.handleMessage(context.Background(), msg)

	assert.Empty(t, tg.sent)
	assert.Empty(t, tg.deleted)
}
