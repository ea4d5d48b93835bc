package usecases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"anonbot/internal/entities"
)

func TestQuotaFreshUser(t *testing.T) {
	q := Quota{PerDay: 3}
	u := &entities.User{}
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)

	assert.True(t, q.CanSend(u, now))
	assert.Equal(t, 3, q.Remaining(u, now))
}

func TestQuotaCountsWithinDay(t *testing.T) {
	q := Quota{PerDay: 3}
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)
	u := &entities.User{MessageCount: 2, LastMessageDate: now.Add(-time.Hour)}

	assert.True(t, q.CanSend(u, now))
	assert.Equal(t, 1, q.Remaining(u, now))

	count, last := q.Record(u, now)
	assert.Equal(t, 3, count)
	assert.Equal(t, now, last)

	u.MessageCount, u.LastMessageDate = count, last
	assert.False(t, q.CanSend(u, now))
	assert.Equal(t, 0, q.Remaining(u, now))
}

func TestQuotaResetsAtMidnight(t *testing.T) {
	q := Quota{PerDay: 3}
	yesterday := time.Date(2025, 6, 9, 23, 50, 0, 0, time.Local)
	u := &entities.User{MessageCount: 3, LastMessageDate: yesterday}

	// Ten minutes later it is a new day.
	now := time.Date(2025, 6, 10, 0, 0, 1, 0, time.Local)
	assert.True(t, q.CanSend(u, now))
	assert.Equal(t, 3, q.Remaining(u, now))

	count, _ := q.Record(u, now)
	assert.Equal(t, 1, count, "first send of the new day restarts the counter")
}

func TestQuotaOverLimitRemainingNotNegative(t *testing.T) {
	q := Quota{PerDay: 2}
	now := time.Now()
	u := &entities.User{MessageCount: 5, LastMessageDate: now}

	assert.False(t, q.CanSend(u, now))
	assert.Equal(t, 0, q.Remaining(u, now))
}
