package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/timeutil"
)

// memQueue is an in-memory task_reminders table.
type memQueue struct {
	mu      sync.Mutex
	entries []*db.QueueEntry
}

func (m *memQueue) HasUnsentFutureEntry(ctx context.Context, taskID, userID uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.TaskID == taskID && e.UserID == userID && !e.Sent && e.ScheduledAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memQueue) CountEntriesBetween(ctx context.Context, taskID, userID uuid.UUID, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.TaskID == taskID && e.UserID == userID && !e.ScheduledAt.Before(from) && e.ScheduledAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *memQueue) InsertQueueEntry(ctx context.Context, entry *db.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.New()
	m.entries = append(m.entries, entry)
	return nil
}

func tod(h, m int) timeutil.TimeOfDay { return timeutil.TimeOfDay{Hour: h, Minute: m} }

func noQuiet() *timeutil.QuietWindow {
	w := timeutil.ParseQuietWindow("00:00", "00:00")
	return &w
}

func TestNextFromSpecificTimes(t *testing.T) {
	// Wednesday
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		times []timeutil.TimeOfDay
		days  []int
		quiet *timeutil.QuietWindow
		want  *time.Time
	}{
		{"no times", nil, nil, nil, nil},
		{"later today", []timeutil.TimeOfDay{tod(9, 0), tod(18, 0)}, nil, noQuiet(),
			ptrTime(time.Date(2025, 1, 8, 18, 0, 0, 0, time.UTC))},
		{"all passed rolls to tomorrow", []timeutil.TimeOfDay{tod(8, 0), tod(9, 30)}, nil, noQuiet(),
			ptrTime(time.Date(2025, 1, 9, 8, 0, 0, 0, time.UTC))},
		{"exactly now is not strictly after", []timeutil.TimeOfDay{tod(10, 0)}, nil, noQuiet(),
			ptrTime(time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC))},
		{"weekday filter skips to friday", []timeutil.TimeOfDay{tod(9, 0)}, []int{5}, noQuiet(),
			ptrTime(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))},
		{"sunday is seven", []timeutil.TimeOfDay{tod(9, 0)}, []int{7}, noQuiet(),
			ptrTime(time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC))},
		{"inside quiet moves to window end", []timeutil.TimeOfDay{tod(23, 0)}, nil, quiet("22:00", "07:00"),
			ptrTime(time.Date(2025, 1, 9, 7, 0, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextFromSpecificTimes(now, tt.times, tt.days, tt.quiet)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s want %s", got, tt.want)
		})
	}
}

func TestNextFromRepeatHours(t *testing.T) {
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)

	assert.Nil(t, NextFromRepeatHours(now, 0, nil))
	assert.Nil(t, NextFromRepeatHours(now, -2, nil))

	got := NextFromRepeatHours(now, 3, nil)
	require.NotNil(t, got)
	assert.Equal(t, now.Add(3*time.Hour), *got)

	got = NextFromRepeatHours(now, 13, quiet("22:00", "07:00"))
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 1, 9, 7, 0, 0, 0, time.UTC), *got)
}

func TestSchedule_NoDuplicatePendingEntry(t *testing.T) {
	store := &memQueue{}
	s := NewScheduler(store, zap.NewNop())
	req := ScheduleRequest{
		TaskID: uuid.New(), UserID: uuid.New(), Title: "Report",
		Now:      time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC),
		Location: time.UTC,
		Rule:     Rule{Enabled: true, RepeatEveryHours: 2},
		Quiet:    *noQuiet(),
	}

	first, err := s.Schedule(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.Inserted)

	for i := 0; i < 3; i++ {
		again, err := s.Schedule(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, again.Inserted)
	}

	require.Len(t, store.entries, 1)
	assert.Equal(t, "Reminder: Report", store.entries[0].Message)
	assert.Equal(t, req.Now.Add(2*time.Hour), store.entries[0].ScheduledAt)
}

func TestSchedule_SpecificTimesBeatRepeatHours(t *testing.T) {
	store := &memQueue{}
	s := NewScheduler(store, zap.NewNop())

	res, err := s.Schedule(context.Background(), ScheduleRequest{
		TaskID: uuid.New(), UserID: uuid.New(),
		Now:      time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC),
		Location: time.UTC,
		Rule:     Rule{Enabled: true, SpecificTimes: []timeutil.TimeOfDay{tod(16, 30)}, RepeatEveryHours: 1},
		Quiet:    *noQuiet(),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 8, 16, 30, 0, 0, time.UTC), res.Next)
}

func TestSchedule_UsesUserTimezone(t *testing.T) {
	store := &memQueue{}
	s := NewScheduler(store, zap.NewNop())
	loc := time.FixedZone("ICT", 7*3600)

	// 10:00 UTC is 17:00 local; 18:00 local is 11:00 UTC
	res, err := s.Schedule(context.Background(), ScheduleRequest{
		TaskID: uuid.New(), UserID: uuid.New(),
		Now:      time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC),
		Location: loc,
		Rule:     Rule{Enabled: true, SpecificTimes: []timeutil.TimeOfDay{tod(18, 0)}},
		Quiet:    timeutil.DefaultQuietWindow(),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 8, 11, 0, 0, 0, time.UTC), res.Next)
	assert.Equal(t, time.UTC, store.entries[0].ScheduledAt.Location())
}

func TestSchedule_NoTimeReturnsNil(t *testing.T) {
	s := NewScheduler(&memQueue{}, zap.NewNop())
	res, err := s.Schedule(context.Background(), ScheduleRequest{Now: time.Now(), Rule: Rule{Enabled: true}})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSchedule_MaxPerDayMovesToNextDay(t *testing.T) {
	store := &memQueue{}
	taskID, userID := uuid.New(), uuid.New()
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)

	// one already delivered earlier today
	store.entries = append(store.entries, &db.QueueEntry{
		TaskID: taskID, UserID: userID, Sent: true,
		ScheduledAt: time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC),
	})

	s := NewScheduler(store, zap.NewNop())
	res, err := s.Schedule(context.Background(), ScheduleRequest{
		TaskID: taskID, UserID: userID, Now: now, Location: time.UTC,
		Rule:  Rule{Enabled: true, SpecificTimes: []timeutil.TimeOfDay{tod(9, 0), tod(15, 0)}, MaxPerDay: 1},
		Quiet: *noQuiet(),
	})
	require.NoError(t, err)
	require.True(t, res.Inserted)
	assert.Equal(t, time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC), res.Next)
}

func TestSchedule_MaxPerDayRepeatHoursRestartsAtMidnight(t *testing.T) {
	store := &memQueue{}
	taskID, userID := uuid.New(), uuid.New()
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)
	store.entries = append(store.entries, &db.QueueEntry{
		TaskID: taskID, UserID: userID, Sent: true,
		ScheduledAt: time.Date(2025, 1, 8, 8, 0, 0, 0, time.UTC),
	})

	s := NewScheduler(store, zap.NewNop())
	res, err := s.Schedule(context.Background(), ScheduleRequest{
		TaskID: taskID, UserID: userID, Now: now, Location: time.UTC,
		Rule:  Rule{Enabled: true, RepeatEveryHours: 4, MaxPerDay: 1},
		Quiet: *noQuiet(),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 9, 4, 0, 0, 0, time.UTC), res.Next)
}

func quiet(start, end string) *timeutil.QuietWindow {
	w := timeutil.ParseQuietWindow(start, end)
	return &w
}

func ptrTime(t time.Time) *time.Time { return &t }
