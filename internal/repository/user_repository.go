package repository

import (
	"context"
	"strings"
	"time"

	"anonbot/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, telegram_id, username, username_original, first_name, last_name,
	login, is_admin, message_count, COALESCE(last_message_date, 'epoch'::timestamp), created_at`

func (r *UserRepository) scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.UsernameOriginal,
		&u.FirstName, &u.LastName, &u.Login, &u.IsAdmin,
		&u.MessageCount, &u.LastMessageDate, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE telegram_id = $1", telegramID))
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*entities.User, error) {
	return r.scanUser(r.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE login = $1", strings.ToLower(login)))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	return r.scanUser(r.db.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (telegram_id, username, username_original, first_name, last_name, login, is_admin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		user.TelegramID,
		strings.ToLower(strings.TrimPrefix(user.Username, "@")),
		strings.TrimPrefix(user.UsernameOriginal, "@"),
		user.FirstName, user.LastName,
		strings.ToLower(user.Login), user.IsAdmin).Scan(&id)
	if err != nil {
		return 0, err
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) UpdateQuota(ctx context.Context, id int64, count int, date time.Time) error {
	_, err := r.db.Exec(ctx,
		"UPDATE users SET message_count = $2, last_message_date = $3 WHERE id = $1",
		id, count, date)
	return err
}
