package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonbot/internal/entities"
)

func moderationFixture() (*ModerationService, *fakeMessages, *fakeUsers, *fakeNotifier) {
	messages := newFakeMessages()
	users := newFakeUsers()
	notifier := &fakeNotifier{}
	content := NewContentService(notifier, users, "moderator", "testbot")
	return NewModerationService(messages, users, notifier, content), messages, users, notifier
}

func pendingGroupMessage(t *testing.T, messages *fakeMessages, senderID int64) int64 {
	t.Helper()
	id, err := messages.Create(context.Background(), &entities.Message{
		Type:        entities.MessageGroup,
		ContentKind: entities.ContentText,
		Body:        "на модерацию",
		SenderID:    senderID,
		Status:      entities.StatusPending,
	})
	require.NoError(t, err)
	return id
}

func TestApprovePublishesAndNotifies(t *testing.T) {
	svc, messages, users, notifier := moderationFixture()
	sender := users.add(entities.User{TelegramID: 100, FirstName: "Аня", Login: "a"})
	id := pendingGroupMessage(t, messages, sender.ID)

	require.NoError(t, svc.Approve(context.Background(), id))

	msg, err := messages.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusApproved, msg.Status)
	assert.NotZero(t, msg.PublishedMsgID)

	require.Len(t, notifier.groupTexts(), 1)
	assert.Contains(t, notifier.groupTexts()[0], "на модерацию")

	senderTexts := notifier.textsFor(100)
	require.Len(t, senderTexts, 1)
	assert.Contains(t, senderTexts[0], "одобрено")
}

func TestApprovePublishFailureKeepsApproved(t *testing.T) {
	svc, messages, users, notifier := moderationFixture()
	sender := users.add(entities.User{TelegramID: 100, FirstName: "Аня", Login: "a"})
	id := pendingGroupMessage(t, messages, sender.ID)
	notifier.publishErr = errors.New("group unreachable")

	require.NoError(t, svc.Approve(context.Background(), id))

	msg, err := messages.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusApproved, msg.Status, "status never rolls back")
	assert.Zero(t, msg.PublishedMsgID)

	unpublished, err := svc.Unpublished(context.Background())
	require.NoError(t, err)
	require.Len(t, unpublished, 1)
	assert.Equal(t, id, unpublished[0].ID)
}

func TestRepublishAfterFailure(t *testing.T) {
	svc, messages, users, notifier := moderationFixture()
	sender := users.add(entities.User{TelegramID: 100, FirstName: "Аня", Login: "a"})
	id := pendingGroupMessage(t, messages, sender.ID)

	notifier.publishErr = errors.New("group unreachable")
	require.NoError(t, svc.Approve(context.Background(), id))

	notifier.publishErr = nil
	require.NoError(t, svc.Republish(context.Background(), id))

	msg, err := messages.Get(context.Background(), id)
	require.NoError(t, err)
	assert.NotZero(t, msg.PublishedMsgID)

	// Now it is published and no longer republishable.
	err = svc.Republish(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotRepublishable)
}

func TestRejectNeverPublishes(t *testing.T) {
	svc, messages, users, notifier := moderationFixture()
	sender := users.add(entities.User{TelegramID: 100, FirstName: "Аня", Login: "a"})
	id := pendingGroupMessage(t, messages, sender.ID)

	require.NoError(t, svc.Reject(context.Background(), id, "грубость"))

	msg, err := messages.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusRejected, msg.Status)
	assert.Equal(t, "грубость", msg.RejectReason)
	assert.Empty(t, notifier.groupTexts())

	senderTexts := notifier.textsFor(100)
	require.Len(t, senderTexts, 1)
	assert.Contains(t, senderTexts[0], "отклонено")
	assert.Contains(t, senderTexts[0], "грубость")
}

func TestModerationIsSingleShot(t *testing.T) {
	svc, messages, users, _ := moderationFixture()
	sender := users.add(entities.User{TelegramID: 100, Login: "a"})
	id := pendingGroupMessage(t, messages, sender.ID)

	require.NoError(t, svc.Approve(context.Background(), id))

	assert.ErrorIs(t, svc.Approve(context.Background(), id), ErrAlreadyModerated)
	assert.ErrorIs(t, svc.Reject(context.Background(), id, ""), ErrAlreadyModerated)
	assert.ErrorIs(t, svc.RequestEdit(context.Background(), id, "правки"), ErrAlreadyModerated)
}

func TestRequestEditNotifiesSender(t *testing.T) {
	svc, messages, users, notifier := moderationFixture()
	sender := users.add(entities.User{TelegramID: 100, Login: "a"})
	id := pendingGroupMessage(t, messages, sender.ID)

	require.NoError(t, svc.RequestEdit(context.Background(), id, "убери ссылку"))

	msg, err := messages.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusEditRequested, msg.Status)

	senderTexts := notifier.textsFor(100)
	require.Len(t, senderTexts, 1)
	assert.Contains(t, senderTexts[0], "убери ссылку")
}

func TestModerateUnknownMessage(t *testing.T) {
	svc, _, _, _ := moderationFixture()
	assert.ErrorIs(t, svc.Approve(context.Background(), 404), ErrMessageNotFound)
}
