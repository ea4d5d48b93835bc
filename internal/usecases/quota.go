package usecases

import (
	"time"

	"anonbot/internal/entities"
)

// Quota is the per-user daily send limit. The counter implicitly resets at
// the server's local midnight: a stale LastMessageDate means a fresh day.
type Quota struct {
	PerDay int
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return midnight(a).Equal(midnight(b))
}

// CanSend reports whether the user may send another message right now.
func (q Quota) CanSend(u *entities.User, now time.Time) bool {
	if u.LastMessageDate.IsZero() || !sameDay(u.LastMessageDate, now) {
		return true
	}
	return u.MessageCount < q.PerDay
}

// Remaining returns how many sends the user has left today.
func (q Quota) Remaining(u *entities.User, now time.Time) int {
	if u.LastMessageDate.IsZero() || !sameDay(u.LastMessageDate, now) {
		return q.PerDay
	}
	if q.PerDay <= u.MessageCount {
		return 0
	}
	return q.PerDay - u.MessageCount
}

// Record consumes one send and returns the counter values to persist.
func (q Quota) Record(u *entities.User, now time.Time) (count int, last time.Time) {
	if u.LastMessageDate.IsZero() || !sameDay(u.LastMessageDate, now) {
		return 1, now
	}
	return u.MessageCount + 1, now
}
