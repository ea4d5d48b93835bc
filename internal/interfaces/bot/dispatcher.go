package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"anonbot/internal/dialogue"
	"anonbot/internal/entities"
	"anonbot/internal/interfaces"
	"anonbot/internal/logging"
	"anonbot/internal/usecases"
)

// telegramAPI is the slice of the transport the bot layer needs.
type telegramAPI interface {
	SendToUser(ctx context.Context, chatID int64, kind entities.ContentKind, text, fileID string, kb interfaces.Keyboard) (int64, error)
	SendPersistentMenu(ctx context.Context, chatID int64, text string, kb tgbotapi.ReplyKeyboardMarkup) error
	DeleteMessage(chatID int64, messageID int) error
	AnswerCallback(callbackID string)
	UpdatesChan() tgbotapi.UpdatesChannel
	StopUpdates()
}

const (
	msgNotRegistered = "Пожалуйста, начните с команды /start"
	msgInternalError = "⚠️ Произошла ошибка. Попробуйте ещё раз через /menu."
	msgNoPermission  = "❌ Недостаточно прав."
)

// Dispatcher routes Telegram updates: commands and global buttons are
// handled directly, everything else is offered to the chat's active
// dialogue first.
type Dispatcher struct {
	tg         telegramAPI
	engine     *dialogue.Engine
	auth       *usecases.AuthService
	moderation *usecases.ModerationService
	menu       *MenuService
	users      interfaces.UserStore
	messages   interfaces.MessageStore

	groupChatID   int64
	groupChatLink string

	sessions *chatSessions
}

func NewDispatcher(
	tg telegramAPI,
	engine *dialogue.Engine,
	auth *usecases.AuthService,
	moderation *usecases.ModerationService,
	menu *MenuService,
	users interfaces.UserStore,
	messages interfaces.MessageStore,
	groupChatID int64,
	groupChatLink string,
) *Dispatcher {
	return &Dispatcher{
		tg:            tg,
		engine:        engine,
		auth:          auth,
		moderation:    moderation,
		menu:          menu,
		users:         users,
		messages:      messages,
		groupChatID:   groupChatID,
		groupChatLink: groupChatLink,
		sessions:      newChatSessions(),
	}
}

// Run consumes the update channel until the context is cancelled. Updates
// for different chats are handled concurrently; per chat they execute in
// arrival order. Enqueueing happens here, on the single receive loop, so
// the per-chat queue order is the channel's order.
func (d *Dispatcher) Run(ctx context.Context) {
	updates := d.tg.UpdatesChan()
	for {
		select {
		case <-ctx.Done():
			d.tg.StopUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			chatID := updateChatID(update)
			if chatID == 0 {
				continue
			}
			d.sessions.do(chatID, func() {
				d.dispatch(ctx, update)
			})
		}
	}
}

func updateChatID(u tgbotapi.Update) int64 {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logging.Log.Error("panic while handling update", "panic", r)
		}
	}()

	switch {
	case update.Message != nil:
		d.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat.ID == d.groupChatID || msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		// /chatid answers in the group too: that is where the operator
		// discovers the id to configure.
		if msg.IsCommand() && msg.Command() == "chatid" {
			d.sendChatInfo(ctx, msg)
			return
		}
		d.handleGroupMessage(msg)
		return
	}

	if msg.IsCommand() {
		d.handleCommand(ctx, msg)
		return
	}

	// Active dialogue gets the event first.
	handled, err := d.engine.HandleEvent(ctx, msg.Chat.ID, dialogue.MessageEvent(payloadFrom(msg)))
	if handled {
		d.reportDialogueError(ctx, msg.Chat.ID, err)
		return
	}
	if err != nil {
		logging.Log.Error("dialogue lookup failed", "chat_id", msg.Chat.ID, "error", err)
		d.sendText(ctx, msg.Chat.ID, msgInternalError)
		return
	}

	switch msg.Text {
	case btnPersonal:
		d.enterCompose(ctx, msg.Chat.ID, usecases.ScriptSendPersonal, nil)
	case btnGroup:
		d.enterCompose(ctx, msg.Chat.ID, usecases.ScriptSendGroup, nil)
	case btnMenu:
		d.showMenu(ctx, msg.Chat.ID)
	default:
		d.sendText(ctx, msg.Chat.ID, "Используйте меню для отправки сообщений 👇")
		d.showMenu(ctx, msg.Chat.ID)
	}
}

// handleGroupMessage keeps the group tidy: join and leave service messages
// are deleted right away.
func (d *Dispatcher) handleGroupMessage(msg *tgbotapi.Message) {
	if len(msg.NewChatMembers) == 0 && msg.LeftChatMember == nil {
		return
	}
	if err := d.tg.DeleteMessage(msg.Chat.ID, msg.MessageID); err != nil {
		logging.Log.Warn("delete service message", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	// Commands always win over a suspended dialogue.
	if err := d.engine.Abort(ctx, msg.Chat.ID); err != nil {
		logging.Log.Error("abort dialogue", "chat_id", msg.Chat.ID, "error", err)
	}

	switch msg.Command() {
	case "start":
		d.handleStart(ctx, msg)
	case "menu":
		d.showMenu(ctx, msg.Chat.ID)
	case "chatid":
		d.sendChatInfo(ctx, msg)
	case "admin":
		d.handleAdmin(ctx, msg.Chat.ID)
	default:
		d.showMenu(ctx, msg.Chat.ID)
	}
}

func (d *Dispatcher) sendChatInfo(ctx context.Context, msg *tgbotapi.Message) {
	info := fmt.Sprintf("ID этого чата: %d\nТип: %s", msg.Chat.ID, msg.Chat.Type)
	if msg.Chat.Title != "" {
		info += "\nНазвание: " + msg.Chat.Title
	}
	d.sendText(ctx, msg.Chat.ID, info)
}

func (d *Dispatcher) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// Deep link from a group reply button: /start reply_N.
	if arg := msg.CommandArguments(); strings.HasPrefix(arg, "reply_") {
		user := d.ensureUser(ctx, chatID)
		if user == nil {
			return
		}
		d.enterDialogue(ctx, chatID, usecases.ScriptReply,
			map[string]string{usecases.SidecarReplyTo: strings.TrimPrefix(arg, "reply_")})
		return
	}

	existing, err := d.users.GetByTelegramID(ctx, chatID)
	if err != nil {
		logging.Log.Error("lookup user", "chat_id", chatID, "error", err)
		d.sendText(ctx, chatID, msgInternalError)
		return
	}
	if existing != nil {
		d.sendText(ctx, chatID, fmt.Sprintf("С возвращением, %s! 👋", existing.FirstName))
		d.showMenu(ctx, chatID)
		return
	}

	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}
	firstName := ""
	if msg.From != nil {
		firstName = msg.From.FirstName
	}

	user, err := d.auth.Register(ctx, chatID, username, firstName)
	switch {
	case errors.Is(err, usecases.ErrBadUsername):
		d.sendText(ctx, chatID, fmt.Sprintf(
			"❌ Доступ только по корпоративному username.\n\nУстановите username вида @%s<фамилия> в настройках Telegram и повторите /start.",
			d.auth.LoginPrefix()))
		return
	case errors.Is(err, usecases.ErrNotInvited):
		d.sendText(ctx, chatID, "❌ Вас нет в списке приглашённых. Обратитесь к администратору.")
		return
	case err != nil:
		logging.Log.Error("register user", "chat_id", chatID, "error", err)
		d.sendText(ctx, chatID, msgInternalError)
		return
	}

	d.sendText(ctx, chatID, fmt.Sprintf(
		"Привет, %s! 👋\n\nЭтот бот доставляет анонимные сообщения коллегам и в общую группу.", user.FirstName))
	d.showMenu(ctx, chatID)
}

// handleAdmin lists pending messages with moderation keyboards.
func (d *Dispatcher) handleAdmin(ctx context.Context, chatID int64) {
	user, err := d.users.GetByTelegramID(ctx, chatID)
	if err != nil {
		logging.Log.Error("lookup user", "chat_id", chatID, "error", err)
		return
	}
	if user == nil || !user.IsAdmin {
		d.sendText(ctx, chatID, msgNoPermission)
		return
	}

	pending, err := d.moderation.Pending(ctx)
	if err != nil {
		logging.Log.Error("list pending messages", "error", err)
		d.sendText(ctx, chatID, msgInternalError)
		return
	}
	if len(pending) == 0 {
		d.sendText(ctx, chatID, "✅ Нет сообщений на модерации.")
		return
	}

	d.sendText(ctx, chatID, fmt.Sprintf("🔔 Сообщений на модерации: %d", len(pending)))
	if len(pending) > 5 {
		pending = pending[:5]
	}
	for _, m := range pending {
		sender, err := d.users.GetByID(ctx, m.SenderID)
		if err != nil || sender == nil {
			logging.Log.Error("resolve pending sender", "message_id", m.ID, "error", err)
			continue
		}
		header := fmt.Sprintf("От: %s (@%s)\n\n", sender.FullName(), sender.UsernameOriginal)
		if _, err := d.tg.SendToUser(ctx, chatID, m.ContentKind, header+m.Body, m.FileID,
			usecases.ModerationKeyboard(m.ID)); err != nil {
			logging.Log.Error("send pending message", "message_id", m.ID, "error", err)
		}
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	d.tg.AnswerCallback(cb.ID)
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	// Moderation buttons and dialogue entry points act globally; everything
	// else belongs to the active dialogue.
	switch {
	case data == "send_message":
		d.abortThenEnter(ctx, chatID, usecases.ScriptSendPersonal, nil)
		return
	case data == "send_group_message":
		d.abortThenEnter(ctx, chatID, usecases.ScriptSendGroup, nil)
		return
	case isNumericSuffix(data, "reply_"):
		// reply_<id> only: reply_anon and friends belong to dialogues.
		user := d.ensureUser(ctx, chatID)
		if user == nil {
			return
		}
		d.abortThenEnter(ctx, chatID, usecases.ScriptReply,
			map[string]string{usecases.SidecarReplyTo: strings.TrimPrefix(data, "reply_")})
		return
	case strings.HasPrefix(data, "approve_"):
		d.moderate(ctx, chatID, strings.TrimPrefix(data, "approve_"), func(id int64) error {
			return d.moderation.Approve(ctx, id)
		})
		return
	case strings.HasPrefix(data, "reject_reason_"):
		if !d.requireAdmin(ctx, chatID) {
			return
		}
		d.abortThenEnter(ctx, chatID, usecases.ScriptRejectWithReason,
			map[string]string{usecases.SidecarModerateID: strings.TrimPrefix(data, "reject_reason_")})
		return
	case strings.HasPrefix(data, "reject_"):
		d.moderate(ctx, chatID, strings.TrimPrefix(data, "reject_"), func(id int64) error {
			return d.moderation.Reject(ctx, id, "")
		})
		return
	case strings.HasPrefix(data, "request_edit_"):
		if !d.requireAdmin(ctx, chatID) {
			return
		}
		d.abortThenEnter(ctx, chatID, usecases.ScriptRequestEdit,
			map[string]string{usecases.SidecarModerateID: strings.TrimPrefix(data, "request_edit_")})
		return
	case strings.HasPrefix(data, "view_author_"):
		d.handleViewAuthor(ctx, chatID, strings.TrimPrefix(data, "view_author_"))
		return
	}

	handled, err := d.engine.HandleEvent(ctx, chatID, dialogue.CallbackEvent(data))
	if handled {
		d.reportDialogueError(ctx, chatID, err)
		return
	}
	if err != nil {
		logging.Log.Error("dialogue lookup failed", "chat_id", chatID, "error", err)
		return
	}

	if data == "back_to_menu" {
		d.showMenu(ctx, chatID)
	}
}

// moderate parses the message id, checks moderator rights and applies the
// transition, mapping domain errors to user-facing notices.
func (d *Dispatcher) moderate(ctx context.Context, chatID int64, rawID string, fn func(id int64) error) {
	if !d.requireAdmin(ctx, chatID) {
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		d.sendText(ctx, chatID, "❌ Ошибка: не найден ID сообщения")
		return
	}

	switch err := fn(id); {
	case errors.Is(err, usecases.ErrMessageNotFound):
		d.sendText(ctx, chatID, "❌ Сообщение не найдено.")
	case errors.Is(err, usecases.ErrAlreadyModerated):
		d.sendText(ctx, chatID, "⚠️ Сообщение уже обработано.")
	case err != nil:
		logging.Log.Error("moderation action failed", "message_id", id, "error", err)
		d.sendText(ctx, chatID, msgInternalError)
	default:
		d.sendText(ctx, chatID, "✅ Готово.")
	}
}

func (d *Dispatcher) handleViewAuthor(ctx context.Context, chatID int64, rawID string) {
	if !d.requireAdmin(ctx, chatID) {
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		d.sendText(ctx, chatID, "❌ Ошибка: не найден ID сообщения")
		return
	}

	msg, err := d.messages.Get(ctx, id)
	if err != nil || msg == nil {
		d.sendText(ctx, chatID, "❌ Сообщение не найдено.")
		return
	}
	sender, err := d.users.GetByID(ctx, msg.SenderID)
	if err != nil || sender == nil {
		d.sendText(ctx, chatID, "❌ Автор не найден.")
		return
	}
	d.sendText(ctx, chatID, fmt.Sprintf("👤 Автор: %s (@%s)", sender.FullName(), sender.UsernameOriginal))
}

func (d *Dispatcher) requireAdmin(ctx context.Context, chatID int64) bool {
	user, err := d.users.GetByTelegramID(ctx, chatID)
	if err != nil {
		logging.Log.Error("lookup user", "chat_id", chatID, "error", err)
		return false
	}
	if user == nil || !user.IsAdmin {
		d.sendText(ctx, chatID, msgNoPermission)
		return false
	}
	return true
}

// ensureUser resolves a registered user, telling the chat what to do when
// it is not authorized yet.
func (d *Dispatcher) ensureUser(ctx context.Context, chatID int64) *entities.User {
	user, err := d.auth.EnsureUser(ctx, chatID)
	switch {
	case errors.Is(err, usecases.ErrNotMember):
		notice := "❌ Доступ только для участников группы."
		if d.groupChatLink != "" {
			notice += "\n\nВступите в группу: " + d.groupChatLink
		}
		d.sendText(ctx, chatID, notice)
		return nil
	case err != nil:
		logging.Log.Error("ensure user", "chat_id", chatID, "error", err)
		d.sendText(ctx, chatID, msgInternalError)
		return nil
	case user == nil:
		d.sendText(ctx, chatID, msgNotRegistered)
		return nil
	}
	return user
}

// enterCompose gates dialogue entry on authorization, then starts the
// script.
func (d *Dispatcher) enterCompose(ctx context.Context, chatID int64, script string, sidecar map[string]string) {
	if d.ensureUser(ctx, chatID) == nil {
		return
	}
	d.enterDialogue(ctx, chatID, script, sidecar)
}

func (d *Dispatcher) abortThenEnter(ctx context.Context, chatID int64, script string, sidecar map[string]string) {
	if err := d.engine.Abort(ctx, chatID); err != nil {
		logging.Log.Error("abort dialogue", "chat_id", chatID, "error", err)
	}
	d.enterDialogue(ctx, chatID, script, sidecar)
}

func (d *Dispatcher) enterDialogue(ctx context.Context, chatID int64, script string, sidecar map[string]string) {
	if err := d.engine.Enter(ctx, chatID, script, sidecar); err != nil {
		d.reportDialogueError(ctx, chatID, err)
	}
}

// reportDialogueError translates engine errors into chat notices. A
// mismatch keeps the dialogue alive, anything else already tore it down.
func (d *Dispatcher) reportDialogueError(ctx context.Context, chatID int64, err error) {
	if err == nil {
		return
	}
	var mm *dialogue.MismatchError
	if errors.As(err, &mm) {
		want := map[string]string{
			"text":     "текстовое сообщение",
			"callback": "нажатие кнопки",
			"message":  "сообщение",
		}[mm.Want]
		if want == "" {
			want = "другое действие"
		}
		d.sendText(ctx, chatID, fmt.Sprintf("⚠️ Сейчас ожидается %s. Для отмены используйте /menu.", want))
		return
	}
	logging.Log.Error("dialogue failed", "chat_id", chatID, "error", err)
	d.sendText(ctx, chatID, msgInternalError)
}

func (d *Dispatcher) showMenu(ctx context.Context, chatID int64) {
	if err := d.menu.Show(ctx, chatID); err != nil {
		logging.Log.Error("show menu", "chat_id", chatID, "error", err)
	}
}

func (d *Dispatcher) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := d.tg.SendToUser(ctx, chatID, entities.ContentText, text, "", nil); err != nil {
		logging.Log.Error("send text", "chat_id", chatID, "error", err)
	}
}

func isNumericSuffix(data, prefix string) bool {
	if !strings.HasPrefix(data, prefix) {
		return false
	}
	_, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	return err == nil
}

// payloadFrom flattens a platform message into the dialogue event shape.
// Animation wins over Document: Telegram sets both for GIFs.
func payloadFrom(msg *tgbotapi.Message) dialogue.Payload {
	p := dialogue.Payload{Text: msg.Text, Caption: msg.Caption}
	switch {
	case len(msg.Photo) > 0:
		p.PhotoFileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		p.VideoFileID = msg.Video.FileID
	case msg.Animation != nil:
		p.AnimationFileID = msg.Animation.FileID
	case msg.Document != nil:
		p.DocumentFileID = msg.Document.FileID
	case msg.Sticker != nil:
		p.StickerFileID = msg.Sticker.FileID
	case msg.Voice != nil:
		p.VoiceFileID = msg.Voice.FileID
	case msg.VideoNote != nil:
		p.VideoNoteFileID = msg.VideoNote.FileID
	}
	return p
}
