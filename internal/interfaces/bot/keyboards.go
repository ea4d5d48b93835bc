package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Persistent bottom-keyboard labels. The dispatcher matches incoming text
// against these, so keep them in sync with mainKeyboard.
const (
	btnPersonal = "✉️ Личное сообщение"
	btnGroup    = "📢 В группу"
	btnMenu     = "📬 Меню"
)

// mainKeyboard is the always-visible reply keyboard.
func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnPersonal),
			tgbotapi.NewKeyboardButton(btnGroup),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMenu),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
