package entities

import "time"

// User is a bot participant. Created on first successful /start
// authorization, never deleted.
type User struct {
	ID               int64     `json:"id"`
	TelegramID       int64     `json:"telegram_id"`
	Username         string    `json:"username"`          // lowercased, without @
	UsernameOriginal string    `json:"username_original"` // original casing, without @
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Login            string    `json:"login"` // username minus the access prefix
	IsAdmin          bool      `json:"is_admin"`
	MessageCount     int       `json:"message_count"`     // sends on LastMessageDate's day
	LastMessageDate  time.Time `json:"last_message_date"` // zero value = never sent
	CreatedAt        time.Time `json:"created_at"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
