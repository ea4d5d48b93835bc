package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
	"anonbot/internal/usecases"
)

type stubMessages struct {
	byID map[int64]*entities.Message
}

func (s *stubMessages) Create(_ context.Context, msg *entities.Message) (int64, error) {
	id := int64(len(s.byID) + 1)
	m := *msg
	m.ID = id
	s.byID[id] = &m
	return id, nil
}

func (s *stubMessages) Get(_ context.Context, id int64) (*entities.Message, error) {
	m, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *stubMessages) UpdateStatus(_ context.Context, id int64, status entities.MessageStatus, reason string) error {
	s.byID[id].Status = status
	s.byID[id].RejectReason = reason
	return nil
}

func (s *stubMessages) SetPublishedMsgID(_ context.Context, id, publishedMsgID int64) error {
	s.byID[id].PublishedMsgID = publishedMsgID
	return nil
}

func (s *stubMessages) ListPending(context.Context) ([]entities.Message, error) {
	var out []entities.Message
	for _, m := range s.byID {
		if m.Type == entities.MessageGroup && m.Status == entities.StatusPending {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubMessages) ListChildren(_ context.Context, parentID int64) ([]entities.Message, error) {
	var out []entities.Message
	for _, m := range s.byID {
		if m.ParentID == parentID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubMessages) ListUnpublished(context.Context) ([]entities.Message, error) {
	var out []entities.Message
	for _, m := range s.byID {
		if m.Type == entities.MessageGroup && m.Status == entities.StatusApproved && m.PublishedMsgID == 0 {
			out = append(out, *m)
		}
	}
	return out, nil
}

type stubUsers struct{}

func (stubUsers) GetByID(context.Context, int64) (*entities.User, error) {
	return &entities.User{ID: 1, TelegramID: 100, FirstName: "Аня"}, nil
}
func (stubUsers) GetByTelegramID(context.Context, int64) (*entities.User, error) { return nil, nil }
func (stubUsers) GetByLogin(context.Context, string) (*entities.User, error)     { return nil, nil }
func (stubUsers) GetByUsername(context.Context, string) (*entities.User, error)  { return nil, nil }
func (stubUsers) Create(context.Context, *entities.User) (int64, error)          { return 0, nil }
func (stubUsers) UpdateQuota(context.Context, int64, int, time.Time) error       { return nil }

type stubNotifier struct {
	groupSends int
}

func (s *stubNotifier) SendToUser(context.Context, int64, entities.ContentKind, string, string, interfaces.Keyboard) (int64, error) {
	return 1, nil
}

func (s *stubNotifier) PublishToGroup(context.Context, entities.ContentKind, string, string, interfaces.Keyboard) (int64, error) {
	s.groupSends++
	return int64(500 + s.groupSends), nil
}

func testServer(t *testing.T) (*Server, *stubMessages, *stubNotifier) {
	t.Helper()
	messages := &stubMessages{byID: make(map[int64]*entities.Message)}
	notifier := &stubNotifier{}
	content := usecases.NewContentService(notifier, stubUsers{}, "moderator", "testbot")
	moderation := usecases.NewModerationService(messages, stubUsers{}, notifier, content)
	threads := usecases.NewThreadResolver(messages)
	auth, err := usecases.NewOperatorAuth("admin", "s3cret", "signing-key")
	require.NoError(t, err)
	return NewServer(moderation, threads, auth), messages, notifier
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "s3cret"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthIsPublic(t *testing.T) {
	server, _, _ := testServer(t)
	router := server.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server, _, _ := testServer(t)
	router := server.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/messages/pending", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages/pending", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	server, _, _ := testServer(t)
	router := server.Router()

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListPendingWithToken(t *testing.T) {
	server, messages, _ := testServer(t)
	router := server.Router()
	_, err := messages.Create(context.Background(), &entities.Message{
		Type: entities.MessageGroup, Status: entities.StatusPending, Body: "ждёт", SenderID: 1,
	})
	require.NoError(t, err)

	token := login(t, router)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestPublishRetriggersFailedPublication(t *testing.T) {
	server, messages, notifier := testServer(t)
	router := server.Router()
	id, err := messages.Create(context.Background(), &entities.Message{
		Type: entities.MessageGroup, Status: entities.StatusApproved,
		ContentKind: entities.ContentText, Body: "застряло", SenderID: 1, IsAnonymous: true,
	})
	require.NoError(t, err)

	token := login(t, router)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/messages/%d/publish", id), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, notifier.groupSends)

	msg, err := messages.Get(context.Background(), id)
	require.NoError(t, err)
	assert.NotZero(t, msg.PublishedMsgID)

	// A second attempt conflicts: it is already published.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/messages/%d/publish", id), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPublishUnknownMessage(t *testing.T) {
	server, _, _ := testServer(t)
	router := server.Router()

	token := login(t, router)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages/404/publish", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
