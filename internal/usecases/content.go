package usecases

import (
	"context"
	"fmt"

	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
	"anonbot/internal/logging"
)

// ContentService composes user-facing deliveries: personal messages, reply
// notifications, moderation requests and group publications.
type ContentService struct {
	notifier      interfaces.Notifier
	users         interfaces.UserStore
	adminUsername string
	botUsername   string
}

func NewContentService(notifier interfaces.Notifier, users interfaces.UserStore, adminUsername, botUsername string) *ContentService {
	return &ContentService{
		notifier:      notifier,
		users:         users,
		adminUsername: adminUsername,
		botUsername:   botUsername,
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func replyButton(messageID int64) interfaces.Keyboard {
	return interfaces.Keyboard{{
		{Text: "💬 Ответить", Data: fmt.Sprintf("reply_%d", messageID)},
	}}
}

func (s *ContentService) groupReplyButton(messageID int64) interfaces.Keyboard {
	return interfaces.Keyboard{{
		{Text: "💬 Ответить", URL: fmt.Sprintf("https://t.me/%s?start=reply_%d", s.botUsername, messageID)},
	}}
}

// ModerationKeyboard is the moderator's action menu for one pending message.
func ModerationKeyboard(messageID int64) interfaces.Keyboard {
	return interfaces.Keyboard{
		{{Text: "✅ Одобрить", Data: fmt.Sprintf("approve_%d", messageID)}},
		{{Text: "❌ Отклонить", Data: fmt.Sprintf("reject_%d", messageID)}},
		{{Text: "❌ Отклонить с причиной", Data: fmt.Sprintf("reject_reason_%d", messageID)}},
		{{Text: "✏️ Запросить редактирование", Data: fmt.Sprintf("request_edit_%d", messageID)}},
		{{Text: "👤 Показать автора", Data: fmt.Sprintf("view_author_%d", messageID)}},
	}
}

// NotifyPersonal delivers a personal message to its recipient.
func (s *ContentService) NotifyPersonal(ctx context.Context, recipientTelegramID, messageID int64, c ExtractedContent, isAnonymous bool, sender *entities.User) error {
	prefix := "📨 Вам пришло анонимное сообщение:\n\n"
	if !isAnonymous {
		prefix = fmt.Sprintf("📨 Вам пришло сообщение от %s:\n\n", sender.FullName())
	}
	_, err := s.notifier.SendToUser(ctx, recipientTelegramID, c.Kind, prefix+c.Body, c.FileID, replyButton(messageID))
	return err
}

// NotifyReply delivers a reply to the author of the original message.
func (s *ContentService) NotifyReply(ctx context.Context, recipientTelegramID, messageID int64, c ExtractedContent, isAnonymous bool, sender *entities.User) error {
	prefix := "💬 Вам пришёл анонимный ответ:\n\n"
	if !isAnonymous {
		prefix = fmt.Sprintf("💬 Вам ответил %s:\n\n", sender.FullName())
	}
	_, err := s.notifier.SendToUser(ctx, recipientTelegramID, c.Kind, prefix+c.Body, c.FileID, replyButton(messageID))
	return err
}

// SendToModeration forwards a pending message to the configured moderator
// with the action menu. A missing moderator is logged, not fatal: the
// message already reached PENDING and is visible via /admin.
func (s *ContentService) SendToModeration(ctx context.Context, messageID int64, sender *entities.User, c ExtractedContent, isAnonymous bool) error {
	admin, err := s.users.GetByUsername(ctx, s.adminUsername)
	if err != nil {
		return fmt.Errorf("resolve moderator: %w", err)
	}
	if admin == nil {
		logging.Log.Error("moderator not registered, pending message not forwarded",
			"moderator", s.adminUsername, "message_id", messageID)
		return nil
	}

	kindLabel := "От имени автора"
	if isAnonymous {
		kindLabel = "Анонимное"
	}
	prefix := fmt.Sprintf(
		"🔔 Новое сообщение на модерацию\n\nОт: %s (@%s)\nТип: %s\n\nСообщение:\n",
		sender.FullName(), sender.UsernameOriginal, kindLabel)

	_, err = s.notifier.SendToUser(ctx, admin.TelegramID, c.Kind, prefix+c.Body, c.FileID, ModerationKeyboard(messageID))
	return err
}

// PublishToGroup posts a message to the shared group. sender is nil for
// anonymous publications. parentBody, when non-empty, is quoted above the
// content. Returns the group message id.
func (s *ContentService) PublishToGroup(ctx context.Context, messageID int64, c ExtractedContent, sender *entities.User, parentBody string) (int64, error) {
	quote := ""
	if parentBody != "" {
		quote = fmt.Sprintf("↩️ В ответ на: \"%s\"\n\n", truncate(parentBody, 100))
	}

	var prefix string
	if sender == nil {
		prefix = "📢 Анонимное сообщение:\n\n" + quote
	} else {
		prefix = fmt.Sprintf("📢 Сообщение от [%s](tg://user?id=%d):\n\n%s",
			sender.FullName(), sender.TelegramID, quote)
	}

	return s.notifier.PublishToGroup(ctx, c.Kind, prefix+c.Body, c.FileID, s.groupReplyButton(messageID))
}
