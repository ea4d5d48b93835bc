package usecases

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"anonbot/internal/dialogue"
	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
)

// Dialogue script ids, registered with the engine at startup.
const (
	ScriptSendPersonal     = "send-message"
	ScriptSendGroup        = "send-group-message"
	ScriptReply            = "reply-message"
	ScriptRejectWithReason = "reject-with-reason"
	ScriptRequestEdit      = "request-edit"
)

// Sidecar keys populated by the dispatcher before a dialogue is entered.
const (
	SidecarReplyTo    = "reply_to"
	SidecarModerateID = "moderate_id"
)

// Callback data used inside dialogues.
const (
	cbCancel        = "back_to_menu"
	cbGroupAnon     = "group_anon"
	cbGroupNamed    = "group_named"
	cbReplyAnon     = "reply_anon"
	cbReplyNamed    = "reply_named"
	cbReplyToAuthor = "reply_to_author"
	cbReplyToGroup  = "reply_to_group"
)

const (
	msgStartFirst  = "Пожалуйста, начните с команды /start"
	msgSendContent = "📝 Отправьте ваше сообщение (текст, фото, видео, документ, голосовое):"
)

// MenuShower displays the main menu for a chat.
type MenuShower interface {
	Show(ctx context.Context, chatID int64) error
}

// Scripts holds the dialogue scripts and their collaborators. Every script
// runs under replay semantics: all side effects go through dialogue
// externals, pure branching uses only recorded values.
type Scripts struct {
	users     interfaces.UserStore
	messages  interfaces.MessageStore
	allowList interfaces.AllowList
	notifier  interfaces.Notifier
	content   *ContentService
	auth      *AuthService
	menu      MenuShower
	quota     Quota

	moderationOn bool
	botUsername  string

	now func() time.Time
}

func NewScripts(
	users interfaces.UserStore,
	messages interfaces.MessageStore,
	allowList interfaces.AllowList,
	notifier interfaces.Notifier,
	content *ContentService,
	auth *AuthService,
	menu MenuShower,
	quota Quota,
	moderationOn bool,
	botUsername string,
) *Scripts {
	return &Scripts{
		users:        users,
		messages:     messages,
		allowList:    allowList,
		notifier:     notifier,
		content:      content,
		auth:         auth,
		menu:         menu,
		quota:        quota,
		moderationOn: moderationOn,
		botUsername:  botUsername,
		now:          time.Now,
	}
}

// Register binds all scripts to the engine.
func (s *Scripts) Register(e *dialogue.Engine) {
	e.Register(ScriptSendPersonal, s.SendPersonal)
	e.Register(ScriptSendGroup, s.SendGroup)
	e.Register(ScriptReply, s.Reply)
	e.Register(ScriptRejectWithReason, s.RejectWithReason)
	e.Register(ScriptRequestEdit, s.RequestEdit)
}

// findSender resolves the registered user behind the dialogue's chat.
func (s *Scripts) findSender(run *dialogue.Run) (*entities.User, error) {
	return dialogue.External(run, "find-sender", func(ctx context.Context) (*entities.User, error) {
		return s.users.GetByTelegramID(ctx, run.ChatID())
	})
}

// checkQuota captures the allow/deny decision so a replay crossing
// midnight cannot diverge.
func (s *Scripts) checkQuota(run *dialogue.Run, user *entities.User) (bool, error) {
	return dialogue.External(run, "check-quota", func(ctx context.Context) (bool, error) {
		return s.quota.CanSend(user, s.now()), nil
	})
}

// recordSend consumes one unit of today's quota against fresh counters.
func (s *Scripts) recordSend(run *dialogue.Run, userID int64) error {
	return dialogue.Do(run, "record-send", func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %d disappeared", userID)
		}
		count, last := s.quota.Record(u, s.now())
		return s.users.UpdateQuota(ctx, userID, count, last)
	})
}

func (s *Scripts) showMenu(run *dialogue.Run) error {
	return dialogue.Do(run, "show-menu", func(ctx context.Context) error {
		return s.menu.Show(ctx, run.ChatID())
	})
}

func (s *Scripts) quotaExhaustedText() string {
	return fmt.Sprintf("❌ Вы достигли лимита сообщений на сегодня (%d). Попробуйте завтра.", s.quota.PerDay)
}

func cancelRow() []interfaces.Button {
	return []interfaces.Button{{Text: "❌ Отмена", Data: cbCancel}}
}

// createMessage persists a new message as an external action and returns
// its id.
func (s *Scripts) createMessage(run *dialogue.Run, name string, msg entities.Message) (int64, error) {
	return dialogue.External(run, name, func(ctx context.Context) (int64, error) {
		m := msg
		return s.messages.Create(ctx, &m)
	})
}

// publishToGroup publishes and records the group message id. Transport
// failure is tolerated: the message stays approved without a published id
// and an operator re-triggers later.
func (s *Scripts) publishToGroup(run *dialogue.Run, messageID int64, c ExtractedContent, sender *entities.User, parentBody string) error {
	publishedID, err := dialogue.External(run, "publish-to-group", func(ctx context.Context) (int64, error) {
		return s.content.PublishToGroup(ctx, messageID, c, sender, parentBody)
	})
	if err != nil || publishedID == 0 {
		return nil
	}
	return dialogue.Do(run, "set-published-id", func(ctx context.Context) error {
		return s.messages.SetPublishedMsgID(ctx, messageID, publishedID)
	})
}

// SendPersonal is the compose-direct-message dialogue: recipient username,
// then content; delivery is always anonymous.
func (s *Scripts) SendPersonal(run *dialogue.Run) error {
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

	prompt := fmt.Sprintf(
		"📝 Введите username получателя (начинается с @%s):\n\nНапример: @%sivanov",
		s.auth.LoginPrefix(), s.auth.LoginPrefix())
	if err := run.Reply(prompt, interfaces.Keyboard{cancelRow()}); err != nil {
		return err
	}

	ev, err := run.Wait()
	if err != nil {
		return err
	}
	if ev.Kind == dialogue.EventCallback {
		// Any button press here means the sender backed out.
		return s.showMenu(run)
	}

	recipientUsername := strings.TrimSpace(ev.Payload.Text)
	if !s.auth.HasLoginPrefix(strings.TrimPrefix(recipientUsername, "@")) {
		if err := run.Reply(fmt.Sprintf("❌ Username должен начинаться с @%s", s.auth.LoginPrefix()), nil); err != nil {
			return err
		}
		return s.showMenu(run)
	}

	login := s.auth.ExtractLogin(recipientUsername)
	entry, err := dialogue.External(run, "find-allowlist-entry", func(ctx context.Context) (*entities.AllowListEntry, error) {
		return s.allowList.FindByLogin(ctx, login)
	})
	if err != nil {
		return err
	}
	if entry == nil {
		if err := run.Reply("❌ Пользователь не найден.", nil); err != nil {
			return err
		}
		return s.showMenu(run)
	}

	recipient, err := dialogue.External(run, "find-recipient", func(ctx context.Context) (*entities.User, error) {
		return s.users.GetByLogin(ctx, login)
	})
	if err != nil {
		return err
	}
	if recipient == nil {
		notice := fmt.Sprintf(
			"⚠️ Пользователь %s %s ещё не зарегистрирован в боте.\n\nОтправьте ему ссылку для регистрации: https://t.me/%s",
			entry.FirstName, entry.LastName, s.botUsername)
		if err := run.Reply(notice, nil); err != nil {
			return err
		}
		return s.showMenu(run)
	}
	if recipient.ID == user.ID {
		if err := run.Reply("❌ Нельзя отправить сообщение самому себе.", nil); err != nil {
			return err
		}
		return s.showMenu(run)
	}

	intro := fmt.Sprintf(
		"📨 Получатель: %s %s\n\nОтправьте ваше сообщение (текст, фото, видео, документ, голосовое):",
		entry.FirstName, entry.LastName)
	if err := run.Reply(intro, nil); err != nil {
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

	messageID, err := s.createMessage(run, "create-message", entities.Message{
		Type:        entities.MessagePersonal,
		ContentKind: c.Kind,
		Body:        c.Body,
		FileID:      c.FileID,
		IsAnonymous: true,
		SenderID:    user.ID,
		ReceiverID:  recipient.ID,
	})
	if err != nil {
		return err
	}

	err = dialogue.Do(run, "deliver-personal", func(ctx context.Context) error {
		return s.content.NotifyPersonal(ctx, recipient.TelegramID, messageID, c, true, user)
	})
	if err != nil {
		return err
	}

	if err := run.Reply("✅ Сообщение отправлено анонимно!\n\n🔒 Получатель не узнает, кто ты.", nil); err != nil {
		return err
	}
	return s.showMenu(run)
}

// RejectWithReason is the moderator dialogue collecting a free-text
// rejection reason for the message referenced by the sidecar.
func (s *Scripts) RejectWithReason(run *dialogue.Run) error {
	messageID, err := strconv.ParseInt(run.Sidecar(SidecarModerateID), 10, 64)
	if err != nil || messageID == 0 {
		return run.Reply("❌ Ошибка: не найден ID сообщения", nil)
	}

	if err := run.Reply("📝 Введите причину отклонения:", nil); err != nil {
		return err
	}
	reason, err := run.WaitText()
	if err != nil {
		return err
	}

	msg, err := dialogue.External(run, "find-message", func(ctx context.Context) (*entities.Message, error) {
		return s.messages.Get(ctx, messageID)
	})
	if err != nil {
		return err
	}
	if msg == nil {
		return run.Reply("❌ Сообщение не найдено.", nil)
	}
	if msg.Status != entities.StatusPending {
		return run.Reply("⚠️ Сообщение уже обработано.", nil)
	}

	err = dialogue.Do(run, "update-status", func(ctx context.Context) error {
		return s.messages.UpdateStatus(ctx, messageID, entities.StatusRejected, reason)
	})
	if err != nil {
		return err
	}

	if err := s.notifyModerated(run, msg.SenderID,
		fmt.Sprintf("❌ Ваше сообщение в группу было отклонено.\n\nПричина: %s", reason)); err != nil {
		return err
	}

	return run.Reply("✅ Сообщение отклонено с причиной.", nil)
}

// RequestEdit is the moderator dialogue collecting an edit comment for the
// message referenced by the sidecar.
func (s *Scripts) RequestEdit(run *dialogue.Run) error {
	messageID, err := strconv.ParseInt(run.Sidecar(SidecarModerateID), 10, 64)
	if err != nil || messageID == 0 {
		return run.Reply("❌ Ошибка: не найден ID сообщения", nil)
	}

	if err := run.Reply("📝 Введите комментарий для редактирования:", nil); err != nil {
		return err
	}
	comment, err := run.WaitText()
	if err != nil {
		return err
	}

	msg, err := dialogue.External(run, "find-message", func(ctx context.Context) (*entities.Message, error) {
		return s.messages.Get(ctx, messageID)
	})
	if err != nil {
		return err
	}
	if msg == nil {
		return run.Reply("❌ Сообщение не найдено.", nil)
	}
	if msg.Status != entities.StatusPending {
		return run.Reply("⚠️ Сообщение уже обработано.", nil)
	}

	err = dialogue.Do(run, "update-status", func(ctx context.Context) error {
		return s.messages.UpdateStatus(ctx, messageID, entities.StatusEditRequested, comment)
	})
	if err != nil {
		return err
	}

	if err := s.notifyModerated(run, msg.SenderID,
		fmt.Sprintf("✏️ Твоё сообщение в группу требует редактирования.\n\nКомментарий: %s\n\nОтправь исправленную версию через меню.", comment)); err != nil {
		return err
	}

	return run.Reply("✅ Запрос на редактирование отправлен автору.", nil)
}

// notifyModerated tells the sender about a moderation outcome.
func (s *Scripts) notifyModerated(run *dialogue.Run, senderID int64, text string) error {
	sender, err := dialogue.External(run, "find-message-sender", func(ctx context.Context) (*entities.User, error) {
		return s.users.GetByID(ctx, senderID)
	})
	if err != nil {
		return err
	}
	if sender == nil {
		return nil
	}
	return dialogue.Do(run, "notify-sender", func(ctx context.Context) error {
		_, err := s.notifier.SendToUser(ctx, sender.TelegramID, entities.ContentText, text, "", nil)
		return err
	})
}
