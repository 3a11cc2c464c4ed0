package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSchedule(t *testing.T, hour, minute int, weekdays []string, tz string) *Schedule {
	t.Helper()
	s, err := New(hour, minute, weekdays, tz)
	require.NoError(t, err)
	return s
}

func TestNewDefaultsToWeekdays(t *testing.T) {
	s := mustSchedule(t, 18, 0, nil, "UTC")

	assert.True(t, s.Weekdays[time.Monday])
	assert.True(t, s.Weekdays[time.Friday])
	assert.False(t, s.Weekdays[time.Saturday])
	assert.False(t, s.Weekdays[time.Sunday])
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(18, 0, []string{"funday"}, "UTC")
	assert.Error(t, err)

	_, err = New(18, 0, nil, "Neverland/Nowhere")
	assert.Error(t, err)
}

func TestNextFireSameDay(t *testing.T) {
	s := mustSchedule(t, 18, 0, nil, "UTC")

	// Friday 2026-08-28, 10:00 — fires the same evening.
	from := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC), s.NextFire(from))
}

func TestNextFireSkipsWeekend(t *testing.T) {
	s := mustSchedule(t, 18, 0, nil, "UTC")

	// Friday 19:00, past today's fire: next is Monday.
	from := time.Date(2026, 8, 28, 19, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC), s.NextFire(from))

	// Saturday: also Monday.
	from = time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC), s.NextFire(from))
}

func TestNextFireExactTickExcluded(t *testing.T) {
	s := mustSchedule(t, 18, 0, nil, "UTC")

	// NextFire is strictly after from: at 18:00 sharp, the next fire is
	// the following scheduled day.
	from := time.Date(2026, 8, 27, 18, 0, 0, 0, time.UTC) // Thursday
	assert.Equal(t, time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC), s.NextFire(from))
}

func TestNextFireCustomWeekdays(t *testing.T) {
	s := mustSchedule(t, 9, 30, []string{"tue", "thu"}, "UTC")

	from := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC) // Friday
	next := s.NextFire(from)
	assert.Equal(t, time.Tuesday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestNextFireHonorsTimezone(t *testing.T) {
	s := mustSchedule(t, 18, 0, nil, "Asia/Kathmandu")

	// 13:00 UTC on a Friday is 18:45 in Kathmandu (+05:45): today's fire
	// already passed there, so the next one is Monday local time.
	from := time.Date(2026, 8, 28, 13, 0, 0, 0, time.UTC)
	next := s.NextFire(from)

	ktm, err := time.LoadLocation("Asia/Kathmandu")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, next.In(ktm).Weekday())
	assert.Equal(t, 18, next.In(ktm).Hour())
}
