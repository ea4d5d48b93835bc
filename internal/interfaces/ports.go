package interfaces

import (
	"context"
	"time"

	"anonbot/internal/entities"
)

// Button is a transport-agnostic inline button. Exactly one of Data or URL
// is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

type MessageStore interface {
	Create(ctx context.Context, msg *entities.Message) (int64, error)
	Get(ctx context.Context, id int64) (*entities.Message, error)
	UpdateStatus(ctx context.Context, id int64, status entities.MessageStatus, reason string) error
	SetPublishedMsgID(ctx context.Context, id int64, publishedMsgID int64) error
	ListPending(ctx context.Context) ([]entities.Message, error)
	ListChildren(ctx context.Context, parentID int64) ([]entities.Message, error)
	ListUnpublished(ctx context.Context) ([]entities.Message, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error)
	GetByLogin(ctx context.Context, login string) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	Create(ctx context.Context, user *entities.User) (int64, error)
	UpdateQuota(ctx context.Context, id int64, count int, date time.Time) error
}

type AllowList interface {
	FindByLogin(ctx context.Context, login string) (*entities.AllowListEntry, error)
	MarkConsumed(ctx context.Context, login string) error
}

// Notifier delivers content to a single chat and publishes to the shared
// group. Both return the platform message id of the delivered copy.
// Failures must surface as errors so callers can decide what to persist.
type Notifier interface {
	SendToUser(ctx context.Context, chatID int64, kind entities.ContentKind, text, fileID string, kb Keyboard) (int64, error)
	PublishToGroup(ctx context.Context, kind entities.ContentKind, text, fileID string, kb Keyboard) (int64, error)
}
