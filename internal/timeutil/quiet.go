package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var (
	DefaultQuietStart = TimeOfDay{Hour: 22}
	DefaultQuietEnd   = TimeOfDay{Hour: 7}
)

var timeOfDayPattern = regexp.MustCompile(`^([0-2]?\d):([0-5]?\d)$`)

// ParseTimeOfDay accepts "H:mm" or "HH:mm". Anything else returns fallback.
// Hours above 23 are clamped.
func ParseTimeOfDay(value string, fallback TimeOfDay) TimeOfDay {
	m := timeOfDayPattern.FindStringSubmatch(value)
	if m == nil {
		return fallback
	}

	h, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback
	}
	mm, err := strconv.Atoi(m[2])
	if err != nil {
		return fallback
	}

	return TimeOfDay{Hour: min(h, 23), Minute: min(mm, 59)}
}

// ValidTimeOfDay reports whether value is a well-formed HH:mm string.
func ValidTimeOfDay(value string) bool {
	m := timeOfDayPattern.FindStringSubmatch(value)
	if m == nil {
		return false
	}
	h, _ := strconv.Atoi(m[1])
	return h <= 23
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant at this clock time on day's calendar date, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60
}

// QuietWindow is a daily do-not-disturb span. Start after End spans midnight.
type QuietWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

// DefaultQuietWindow is 22:00 to 07:00.
func DefaultQuietWindow() QuietWindow {
	return QuietWindow{Start: DefaultQuietStart, End: DefaultQuietEnd}
}

// ParseQuietWindow parses both bounds, falling back to the defaults per bound.
func ParseQuietWindow(start, end string) QuietWindow {
	return QuietWindow{
		Start: ParseTimeOfDay(start, DefaultQuietStart),
		End:   ParseTimeOfDay(end, DefaultQuietEnd),
	}
}

func (w QuietWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// IsWithinQuietWindow reports whether localNow's wall clock falls inside w.
// Both bounds are inclusive. A window whose start equals its end is empty.
func IsWithinQuietWindow(localNow time.Time, w QuietWindow) bool {
	start, end := w.Start.seconds(), w.End.seconds()
	if start == end {
		return false
	}

	now := localNow.Hour()*3600 + localNow.Minute()*60 + localNow.Second()
	// sub-second precision only matters at the end bound
	pastEnd := now > end || (now == end && localNow.Nanosecond() > 0)

	if start > end {
		return now >= start || !pastEnd
	}
	return now >= start && !pastEnd
}

// NextTimeAfterQuietWindow returns the end of the window when localNow is
// inside it (the following day when today's end already passed), otherwise
// localNow unchanged.
func NextTimeAfterQuietWindow(localNow time.Time, w QuietWindow) time.Time {
	if !IsWithinQuietWindow(localNow, w) {
		return localNow
	}

	end := w.End.On(localNow)
	if end.Before(localNow) {
		end = w.End.On(localNow.AddDate(0, 0, 1))
	}
	return end
}
