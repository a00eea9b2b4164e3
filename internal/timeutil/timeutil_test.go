package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2024, 3, 10, h, m, 0, 0, time.UTC)
}

func TestIsWithinQuietWindow_Overnight(t *testing.T) {
	w := ParseQuietWindow("22:00", "07:00")

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"start bound", at(22, 0), true},
		{"late evening", at(23, 59), true},
		{"midnight", at(0, 0), true},
		{"early morning", at(3, 30), true},
		{"end bound", at(7, 0), true},
		{"just after end", at(7, 1), false},
		{"noon", at(12, 0), false},
		{"just before start", at(21, 59), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWithinQuietWindow(tt.now, w))
		})
	}
}

func TestIsWithinQuietWindow_SameDay(t *testing.T) {
	w := ParseQuietWindow("12:00", "14:00")

	assert.True(t, IsWithinQuietWindow(at(13, 0), w))
	assert.False(t, IsWithinQuietWindow(at(11, 59), w))
	assert.False(t, IsWithinQuietWindow(at(14, 1), w))
}

func TestIsWithinQuietWindow_EmptyWindow(t *testing.T) {
	w := ParseQuietWindow("09:00", "09:00")
	assert.False(t, IsWithinQuietWindow(at(9, 0), w))
}

func TestNextTimeAfterQuietWindow(t *testing.T) {
	w := DefaultQuietWindow()

	t.Run("before midnight moves to next morning", func(t *testing.T) {
		got := NextTimeAfterQuietWindow(at(23, 0), w)
		assert.Equal(t, time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC), got)
	})

	t.Run("after midnight moves to same morning", func(t *testing.T) {
		got := NextTimeAfterQuietWindow(at(2, 15), w)
		assert.Equal(t, time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC), got)
	})

	t.Run("outside window is unchanged", func(t *testing.T) {
		now := at(12, 0)
		assert.Equal(t, now, NextTimeAfterQuietWindow(now, w))
	})

	t.Run("keeps location", func(t *testing.T) {
		loc := time.FixedZone("ICT", 7*3600)
		now := time.Date(2024, 3, 10, 23, 30, 0, 0, loc)
		got := NextTimeAfterQuietWindow(now, w)
		assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), got.UTC())
	})
}

func TestAddInterval(t *testing.T) {
	base := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		unit  Unit
		value int
		want  time.Time
	}{
		{"hours", UnitHours, 6, base.Add(6 * time.Hour)},
		{"days", UnitDays, 2, time.Date(2024, 2, 2, 9, 30, 0, 0, time.UTC)},
		{"weeks", UnitWeeks, 1, time.Date(2024, 2, 7, 9, 30, 0, 0, time.UTC)},
		{"months clamps to leap day", UnitMonths, 1, time.Date(2024, 2, 29, 9, 30, 0, 0, time.UTC)},
		{"quarters", UnitQuarters, 1, time.Date(2024, 4, 30, 9, 30, 0, 0, time.UTC)},
		{"years", UnitYears, 1, time.Date(2025, 1, 31, 9, 30, 0, 0, time.UTC)},
		{"zero value falls back", UnitHours, 0, base.Add(24 * time.Hour)},
		{"negative value falls back", UnitDays, -3, base.Add(24 * time.Hour)},
		{"unknown unit falls back", Unit("fortnights"), 2, base.Add(24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddInterval(base, tt.unit, tt.value))
		})
	}
}

func TestAddInterval_MonthsNonLeapYear(t *testing.T) {
	got := AddInterval(time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), UnitMonths, 1)
	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), got)
}

func TestParseUnit(t *testing.T) {
	u, ok := ParseUnit(" Days ")
	assert.True(t, ok)
	assert.Equal(t, UnitDays, u)

	_, ok = ParseUnit("minutes")
	assert.False(t, ok)
}

func TestParseTimeOfDay(t *testing.T) {
	fallback := TimeOfDay{Hour: 22}

	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 5}, ParseTimeOfDay("7:05", fallback))
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 30}, ParseTimeOfDay("29:30", fallback))
	assert.Equal(t, fallback, ParseTimeOfDay("noon", fallback))
	assert.Equal(t, fallback, ParseTimeOfDay("", fallback))
	assert.Equal(t, fallback, ParseTimeOfDay("12:75", fallback))
}

func TestParseQuietWindow_Malformed(t *testing.T) {
	w := ParseQuietWindow("late", "")
	assert.Equal(t, DefaultQuietWindow(), w)
	assert.Equal(t, "22:00-07:00", w.String())
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01 17:00:00+07", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01 10:00:00.25+00:00", time.Date(2024, 5, 1, 10, 0, 0, 250_000_000, time.UTC)},
		{"2024-05-01T10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTimestamp(tt.in)
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}

	assert.Nil(t, ParseTimestamp(""))
	assert.Nil(t, ParseTimestamp("tomorrow"))
	assert.Nil(t, ParseTimestampPtr(nil))
}

func TestLoadLocation_Fallback(t *testing.T) {
	assert.Equal(t, "Europe/Berlin", LoadLocation("Europe/Berlin").String())
	assert.Equal(t, DefaultTimezone, LoadLocation("Mars/Olympus").String())
	assert.Equal(t, DefaultTimezone, LoadLocation("").String())
}

func TestISOWeekday(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 7, ISOWeekday(sunday))
	assert.Equal(t, 1, ISOWeekday(sunday.AddDate(0, 0, 1)))
}
