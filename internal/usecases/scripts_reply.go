package usecases

import (
	"context"
	"fmt"
	"strconv"

	"anonbot/internal/dialogue"
	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
)

// Reply is the compose-reply dialogue. The target message id arrives via
// the sidecar; replies to group messages may go back to the group or
// privately to the author, replies to personal messages always go to the
// author.
func (s *Scripts) Reply(run *dialogue.Run) error {
	targetID, err := strconv.ParseInt(run.Sidecar(SidecarReplyTo), 10, 64)
	if err != nil || targetID == 0 {
		return run.Reply("❌ Ошибка: не найдено сообщение для ответа.", nil)
	}

	user, err := s.findSender(run)
	if err != nil {
		return err
	}
	if user == nil {
		return run.Reply(msgStartFirst, nil)
	}

	original, err := dialogue.External(run, "find-original", func(ctx context.Context) (*entities.Message, error) {
		return s.messages.Get(ctx, targetID)
	})
	if err != nil {
		return err
	}
	if original == nil {
		if err := run.Reply("❌ Сообщение не найдено.", nil); err != nil {
			return err
		}
		return s.showMenu(run)
	}
	if original.SenderID == user.ID {
		if err := run.Reply("❌ Нельзя ответить на своё же сообщение.", nil); err != nil {
			return err
		}
		return s.showMenu(run)
	}

	canSend, err := s.checkQuota(run, user)
	if err != nil {
		return err
	}
	if !canSend {
		return run.Reply(s.quotaExhaustedText(), nil)
	}

	quoted := truncate(original.Body, 200)
	if quoted == "" {
		quoted = "[медиа-контент]"
	}
	kb := interfaces.Keyboard{
		{{Text: "🕶 Анонимно", Data: cbReplyAnon}},
		{{Text: "👤 От своего имени", Data: cbReplyNamed}},
		cancelRow(),
	}
	intro := fmt.Sprintf("💬 Ответ на сообщение:\n\n\"%s\"\n\nВыбери тип ответа:", quoted)
	if err := run.Reply(intro, kb); err != nil {
		return err
	}

	choice, err := run.WaitCallback()
	if err != nil {
		return err
	}
	switch choice {
	case cbReplyAnon, cbReplyNamed:
	default:
		return s.showMenu(run)
	}
	isAnonymous := choice == cbReplyAnon

	if original.Type == entities.MessageGroup {
		return s.replyToGroupMessage(run, user, original, isAnonymous)
	}
	return s.replyToAuthor(run, user, original, isAnonymous, "✅ Ответ отправлен!")
}

// replyToGroupMessage asks where the reply goes and routes it.
func (s *Scripts) replyToGroupMessage(run *dialogue.Run, user *entities.User, original *entities.Message, isAnonymous bool) error {
	kb := interfaces.Keyboard{
		{{Text: "👤 Автору лично", Data: cbReplyToAuthor}},
		{{Text: "📢 В группу", Data: cbReplyToGroup}},
		cancelRow(),
	}
	if err := run.Reply("Куда отправить ответ?", kb); err != nil {
		return err
	}
	dest, err := run.WaitCallback()
	if err != nil {
		return err
	}
	switch dest {
	case cbReplyToAuthor:
		return s.replyToAuthor(run, user, original, isAnonymous, "✅ Ответ отправлен автору.")
	case cbReplyToGroup:
	default:
		return s.showMenu(run)
	}

	if err := run.Reply("📝 Отправьте ваш ответ:", nil); err != nil {
		return err
	}
	payload, err := run.WaitMessage()
	if err != nil {
		return err
	}
	if ok, reason := ValidateComposable(payload); !ok {
		if err := run.Reply(reason, nil); err != nil {
			return err
		}
		return s.showMenu(run)
	}
	c := ExtractContent(payload)

	if err := s.recordSend(run, user.ID); err != nil {
		return err
	}

	switch {
	case isAnonymous:
		messageID, err := s.createMessage(run, "create-reply", entities.Message{
			Type:        entities.MessageGroup,
			ContentKind: c.Kind,
			Body:        c.Body,
			FileID:      c.FileID,
			IsAnonymous: true,
			SenderID:    user.ID,
			ParentID:    original.ID,
			Status:      entities.StatusApproved,
		})
		if err != nil {
			return err
		}
		if err := s.publishToGroup(run, messageID, c, nil, original.Body); err != nil {
			return err
		}
		if err := run.Reply("✅ Ответ опубликован в группе!\n\n🔒 Никто не узнает, что это ты.", nil); err != nil {
			return err
		}

	case s.moderationOn:
		messageID, err := s.createMessage(run, "create-reply", entities.Message{
			Type:        entities.MessageGroup,
			ContentKind: c.Kind,
			Body:        c.Body,
			FileID:      c.FileID,
			SenderID:    user.ID,
			ParentID:    original.ID,
			Status:      entities.StatusPending,
		})
		if err != nil {
			return err
		}
		err = dialogue.Do(run, "send-to-moderation", func(ctx context.Context) error {
			return s.content.SendToModeration(ctx, messageID, user, c, false)
		})
		if err != nil {
			return err
		}
		if err := run.Reply("✅ Ответ отправлен на модерацию.\n\nТы получишь уведомление о результате.", nil); err != nil {
			return err
		}

	default:
		messageID, err := s.createMessage(run, "create-reply", entities.Message{
			Type:        entities.MessageGroup,
			ContentKind: c.Kind,
			Body:        c.Body,
			FileID:      c.FileID,
			SenderID:    user.ID,
			ParentID:    original.ID,
			Status:      entities.StatusApproved,
		})
		if err != nil {
			return err
		}
		if err := s.publishToGroup(run, messageID, c, user, original.Body); err != nil {
			return err
		}
		if err := run.Reply("✅ Ответ опубликован в группе!", nil); err != nil {
			return err
		}
	}

	return s.showMenu(run)
}

// replyToAuthor collects the content and delivers it privately to the
// original sender.
func (s *Scripts) replyToAuthor(run *dialogue.Run, user *entities.User, original *entities.Message, isAnonymous bool, doneText string) error {
	if err := run.Reply("📝 Отправьте ваш ответ:", nil); err != nil {
		return err
	}
	payload, err := run.WaitMessage()
	if err != nil {
		return err
	}
	if ok, reason := ValidateComposable(payload); !ok {
		if err := run.Reply(reason, nil); err != nil {
			return err
		}
		return s.showMenu(run)
	}
	c := ExtractContent(payload)

	if err := s.recordSend(run, user.ID); err != nil {
		return err
	}

	replyID, err := s.createMessage(run, "create-reply", entities.Message{
		Type:        entities.MessagePersonal,
		ContentKind: c.Kind,
		Body:        c.Body,
		FileID:      c.FileID,
		IsAnonymous: isAnonymous,
		SenderID:    user.ID,
		ReceiverID:  original.SenderID,
		ParentID:    original.ID,
	})
	if err != nil {
		return err
	}

	originalSender, err := dialogue.External(run, "find-original-sender", func(ctx context.Context) (*entities.User, error) {
		return s.users.GetByID(ctx, original.SenderID)
	})
	if err != nil {
		return err
	}
	if originalSender != nil {
		err = dialogue.Do(run, "deliver-reply", func(ctx context.Context) error {
			return s.content.NotifyReply(ctx, originalSender.TelegramID, replyID, c, isAnonymous, user)
		})
		if err != nil {
			return err
		}
	}

	if err := run.Reply(doneText, nil); err != nil {
		return err
	}
	return s.showMenu(run)
}
