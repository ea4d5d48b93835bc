package infrastructure

import (
	"context"
	"fmt"

	"anonbot/internal/entities"
	"anonbot/internal/interfaces"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// TelegramClient wraps the Bot API. All outbound sends pass through a
// limiter to respect the platform's flood limits.
type TelegramClient struct {
	Bot         *tgbotapi.BotAPI
	groupChatID int64
	limiter     *rate.Limiter
}

func NewTelegramClient(token string, groupChatID int64) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &TelegramClient{
		Bot:         bot,
		groupChatID: groupChatID,
		// Telegram allows ~30 messages/second overall.
		limiter: rate.NewLimiter(25, 5),
	}, nil
}

func (c *TelegramClient) Username() string {
	return c.Bot.Self.UserName
}

func (c *TelegramClient) StopUpdates() {
	c.Bot.StopReceivingUpdates()
}

func (c *TelegramClient) UpdatesChan() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	return c.Bot.GetUpdatesChan(u)
}

func toMarkup(kb interfaces.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range kb {
		var btns []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, btns)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// SendToUser delivers content of any kind to a chat. text already includes
// any prefix the caller composed; for media kinds it becomes the caption.
func (c *TelegramClient) SendToUser(ctx context.Context, chatID int64, kind entities.ContentKind, text, fileID string, kb interfaces.Keyboard) (int64, error) {
	return c.send(ctx, chatID, kind, text, fileID, kb, "")
}

// PublishToGroup posts to the shared group chat with Markdown formatting
// (sender mentions are markdown links). Fails when no group is configured.
func (c *TelegramClient) PublishToGroup(ctx context.Context, kind entities.ContentKind, text, fileID string, kb interfaces.Keyboard) (int64, error) {
	if c.groupChatID == 0 {
		return 0, fmt.Errorf("group chat not configured")
	}
	return c.send(ctx, c.groupChatID, kind, text, fileID, kb, tgbotapi.ModeMarkdown)
}

func (c *TelegramClient) send(ctx context.Context, chatID int64, kind entities.ContentKind, text, fileID string, kb interfaces.Keyboard, parseMode string) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	markup := toMarkup(kb)
	var chattable tgbotapi.Chattable

	switch kind {
	case entities.ContentPhoto:
		m := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
		m.Caption = text
		m.ParseMode = parseMode
		if markup != nil {
			m.ReplyMarkup = markup
		}
		chattable = m
	case entities.ContentVideo:
		m := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
		m.Caption = text
		m.ParseMode = parseMode
		if markup != nil {
			m.ReplyMarkup = markup
		}
		chattable = m
	case entities.ContentDocument:
		m := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
		m.Caption = text
		m.ParseMode = parseMode
		if markup != nil {
			m.ReplyMarkup = markup
		}
		chattable = m
	case entities.ContentVoice:
		m := tgbotapi.NewVoice(chatID, tgbotapi.FileID(fileID))
		m.Caption = text
		m.ParseMode = parseMode
		if markup != nil {
			m.ReplyMarkup = markup
		}
		chattable = m
	case entities.ContentAnimation:
		m := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(fileID))
		m.Caption = text
		m.ParseMode = parseMode
		if markup != nil {
			m.ReplyMarkup = markup
		}
		chattable = m
	case entities.ContentSticker, entities.ContentVideoNote:
		// Stickers and round videos carry no caption: send the text first,
		// then the media, and report the media message id.
		if text != "" {
			lead := tgbotapi.NewMessage(chatID, text)
			lead.ParseMode = parseMode
			if markup != nil {
				lead.ReplyMarkup = markup
			}
			if _, err := c.Bot.Send(lead); err != nil {
				return 0, fmt.Errorf("send lead text: %w", err)
			}
		}
		if kind == entities.ContentSticker {
			chattable = tgbotapi.NewSticker(chatID, tgbotapi.FileID(fileID))
		} else {
			chattable = tgbotapi.NewVideoNote(chatID, 0, tgbotapi.FileID(fileID))
		}
	default: // ContentText
		m := tgbotapi.NewMessage(chatID, text)
		m.ParseMode = parseMode
		if markup != nil {
			m.ReplyMarkup = markup
		}
		chattable = m
	}

	sent, err := c.Bot.Send(chattable)
	if err != nil {
		return 0, err
	}
	return int64(sent.MessageID), nil
}

// SendPersistentMenu sends text with the bottom reply keyboard attached.
func (c *TelegramClient) SendPersistentMenu(ctx context.Context, chatID int64, text string, kb tgbotapi.ReplyKeyboardMarkup) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = kb
	_, err := c.Bot.Send(m)
	return err
}

func (c *TelegramClient) AnswerCallback(callbackID string) {
	c.Bot.Request(tgbotapi.NewCallback(callbackID, ""))
}

func (c *TelegramClient) DeleteMessage(chatID int64, messageID int) error {
	_, err := c.Bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// IsChatMember reports whether the user currently belongs to the group.
// With no group configured, or when the check itself fails (the bot may not
// be a group admin), membership is assumed.
func (c *TelegramClient) IsChatMember(telegramID int64) bool {
	if c.groupChatID == 0 {
		return true
	}
	member, err := c.Bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: c.groupChatID,
			UserID: telegramID,
		},
	})
	if err != nil {
		return true
	}
	return member.Status != "left" && member.Status != "kicked"
}
