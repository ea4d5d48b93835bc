package usecases

import (
	"context"
	"errors"
	"fmt"

	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
	"anonbot/internal/logging"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrAlreadyModerated = errors.New("message already moderated")
	ErrNotRepublishable = errors.New("message is not an unpublished approved group message")
)

// ModerationService owns the PENDING → APPROVED/REJECTED/EDIT_REQUESTED
// transitions and group publication.
type ModerationService struct {
	messages interfaces.MessageStore
	users    interfaces.UserStore
	notifier interfaces.Notifier
	content  *ContentService
}

func NewModerationService(messages interfaces.MessageStore, users interfaces.UserStore, notifier interfaces.Notifier, content *ContentService) *ModerationService {
	return &ModerationService{
		messages: messages,
		users:    users,
		notifier: notifier,
		content:  content,
	}
}

// Publish posts an approved message to the group and records the group
// message id. A transport failure leaves the message APPROVED with the id
// unset; the operator re-triggers via the admin API.
func (s *ModerationService) Publish(ctx context.Context, msg *entities.Message) error {
	var sender *entities.User
	if !msg.IsAnonymous {
		u, err := s.users.GetByID(ctx, msg.SenderID)
		if err != nil {
			return fmt.Errorf("resolve sender: %w", err)
		}
		sender = u
	}

	var parentBody string
	if msg.ParentID != 0 {
		parent, err := s.messages.Get(ctx, msg.ParentID)
		if err != nil {
			return fmt.Errorf("resolve parent: %w", err)
		}
		if parent != nil {
			parentBody = parent.Body
		}
	}

	content := ExtractedContent{Kind: msg.ContentKind, Body: msg.Body, FileID: msg.FileID}
	publishedID, err := s.content.PublishToGroup(ctx, msg.ID, content, sender, parentBody)
	if err != nil {
		return err
	}
	return s.messages.SetPublishedMsgID(ctx, msg.ID, publishedID)
}

// Approve moves a pending message to APPROVED, publishes it and notifies
// the sender. Publication failure does not roll the status back.
func (s *ModerationService) Approve(ctx context.Context, messageID int64) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.Status != entities.StatusPending {
		return ErrAlreadyModerated
	}

	if err := s.messages.UpdateStatus(ctx, messageID, entities.StatusApproved, ""); err != nil {
		return fmt.Errorf("approve message %d: %w", messageID, err)
	}
	msg.Status = entities.StatusApproved

	if err := s.Publish(ctx, msg); err != nil {
		logging.Log.Error("publish approved message", "message_id", messageID, "error", err)
	}

	s.notifySender(ctx, msg.SenderID, "✅ Ваше сообщение в группу было одобрено и опубликовано!")
	return nil
}

// Reject moves a pending message to REJECTED with an optional reason and
// notifies the sender. Rejected messages are never published.
func (s *ModerationService) Reject(ctx context.Context, messageID int64, reason string) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.Status != entities.StatusPending {
		return ErrAlreadyModerated
	}

	if err := s.messages.UpdateStatus(ctx, messageID, entities.StatusRejected, reason); err != nil {
		return fmt.Errorf("reject message %d: %w", messageID, err)
	}

	notice := "❌ Ваше сообщение в группу было отклонено."
	if reason != "" {
		notice += "\n\nПричина: " + reason
	}
	s.notifySender(ctx, msg.SenderID, notice)
	return nil
}

// RequestEdit moves a pending message to EDIT_REQUESTED and asks the
// sender to submit a corrected version. The message itself stays
// EDIT_REQUESTED forever; the correction is a brand-new message.
func (s *ModerationService) RequestEdit(ctx context.Context, messageID int64, comment string) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.Status != entities.StatusPending {
		return ErrAlreadyModerated
	}

	if err := s.messages.UpdateStatus(ctx, messageID, entities.StatusEditRequested, comment); err != nil {
		return fmt.Errorf("request edit for message %d: %w", messageID, err)
	}

	s.notifySender(ctx, msg.SenderID,
		fmt.Sprintf("✏️ Твоё сообщение в группу требует редактирования.\n\nКомментарий: %s\n\nОтправь исправленную версию через меню.", comment))
	return nil
}

// Republish re-triggers publication of an approved message whose earlier
// publish failed.
func (s *ModerationService) Republish(ctx context.Context, messageID int64) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.Type != entities.MessageGroup || msg.Status != entities.StatusApproved || msg.PublishedMsgID != 0 {
		return ErrNotRepublishable
	}
	return s.Publish(ctx, msg)
}

// Unpublished lists approved group messages whose publication failed.
func (s *ModerationService) Unpublished(ctx context.Context) ([]entities.Message, error) {
	return s.messages.ListUnpublished(ctx)
}

// Pending lists messages awaiting moderation, oldest first.
func (s *ModerationService) Pending(ctx context.Context) ([]entities.Message, error) {
	return s.messages.ListPending(ctx)
}

// notifySender is best effort: the state transition already committed.
func (s *ModerationService) notifySender(ctx context.Context, senderID int64, text string) {
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil || sender == nil {
		logging.Log.Error("resolve sender for notification", "sender_id", senderID, "error", err)
		return
	}
	if _, err := s.notifier.SendToUser(ctx, sender.TelegramID, entities.ContentText, text, "", nil); err != nil {
		logging.Log.Error("notify sender", "sender_id", senderID, "error", err)
	}
}
