package usecases

import (
	"context"

	"anonbot/internal/dialogue"
	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
)

// SendGroup is the compose-broadcast dialogue. Anonymous submissions go
// straight to the group; named ones pass moderation when it is enabled.
func (s *Scripts) SendGroup(run *dialogue.Run) error {
	user, err := s.findSender(run)
	if err != nil {
		return err
	}
	if user == nil {
		return run.Reply(msgStartFirst, nil)
	}

	canSend, err := s.checkQuota(run, user)
	if err != nil {
		return err
	}
	if !canSend {
		return run.Reply(s.quotaExhaustedText(), nil)
	}

	kb := interfaces.Keyboard{
		{{Text: "🕶 Анонимно", Data: cbGroupAnon}},
		{{Text: "👤 От своего имени", Data: cbGroupNamed}},
		cancelRow(),
	}
	if err := run.Reply("📢 Сообщение в группу\n\nКак отправить?", kb); err != nil {
		return err
	}

	choice, err := run.WaitCallback()
	if err != nil {
		return err
	}
	switch choice {
	case cbGroupAnon, cbGroupNamed:
	default:
		return s.showMenu(run)
	}
	isAnonymous := choice == cbGroupAnon

	if err := run.Reply(msgSendContent, nil); err != nil {
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
		// Anonymous submissions skip moderation entirely.
		messageID, err := s.createMessage(run, "create-message", entities.Message{
			Type:        entities.MessageGroup,
			ContentKind: c.Kind,
			Body:        c.Body,
			FileID:      c.FileID,
			IsAnonymous: true,
			SenderID:    user.ID,
			Status:      entities.StatusApproved,
		})
		if err != nil {
			return err
		}
		if err := s.publishToGroup(run, messageID, c, nil, ""); err != nil {
			return err
		}
		if err := run.Reply("✅ Сообщение опубликовано в группе!\n\n🔒 Никто не узнает, что это ты.", nil); err != nil {
			return err
		}

	case s.moderationOn:
		messageID, err := s.createMessage(run, "create-message", entities.Message{
			Type:        entities.MessageGroup,
			ContentKind: c.Kind,
			Body:        c.Body,
			FileID:      c.FileID,
			SenderID:    user.ID,
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
		if err := run.Reply("✅ Сообщение отправлено на модерацию.\n\nТы получишь уведомление о результате.", nil); err != nil {
			return err
		}

	default:
		messageID, err := s.createMessage(run, "create-message", entities.Message{
			Type:        entities.MessageGroup,
			ContentKind: c.Kind,
			Body:        c.Body,
			FileID:      c.FileID,
			SenderID:    user.ID,
			Status:      entities.StatusApproved,
		})
		if err != nil {
			return err
		}
		if err := s.publishToGroup(run, messageID, c, user, ""); err != nil {
			return err
		}
		if err := run.Reply("✅ Сообщение опубликовано в группе!", nil); err != nil {
			return err
		}
	}

	return s.showMenu(run)
}
