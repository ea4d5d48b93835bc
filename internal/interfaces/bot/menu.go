package bot

import (
	"context"
	"fmt"
	"time"

	"anonbot/internal/interfaces"
	"anonbot/internal/usecases"
)

// MenuService renders the main menu with the sender's remaining daily
// quota and the persistent keyboard.
type MenuService struct {
	tg    telegramAPI
	users interfaces.UserStore
	quota usecases.Quota
}

func NewMenuService(tg telegramAPI, users interfaces.UserStore, quota usecases.Quota) *MenuService {
	return &MenuService{tg: tg, users: users, quota: quota}
}

// Show sends the menu to the chat. Unregistered chats get the menu without
// a quota line.
func (m *MenuService) Show(ctx context.Context, chatID int64) error {
	text := "📬 Главное меню"

	user, err := m.users.GetByTelegramID(ctx, chatID)
	if err != nil {
		return err
	}
	if user != nil {
		remaining := m.quota.Remaining(user, time.Now())
		text = fmt.Sprintf("📬 Главное меню\n\nОсталось сообщений сегодня: %d/%d", remaining, m.quota.PerDay)
	}

	return m.tg.SendPersistentMenu(ctx, chatID, text, mainKeyboard())
}
