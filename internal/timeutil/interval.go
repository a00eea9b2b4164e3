// Package timeutil holds the date arithmetic used by the reminder engine:
// calendar-aware repeat intervals, clock-time parsing and quiet-hour windows.
package timeutil

import (
	"strings"
	"time"
)

// Unit is a repeat interval unit as stored on reminder settings.
type Unit string

const (
	UnitHours    Unit = "hours"
	UnitDays     Unit = "days"
	UnitWeeks    Unit = "weeks"
	UnitMonths   Unit = "months"
	UnitQuarters Unit = "quarters"
	UnitYears    Unit = "years"
)

// DefaultInterval is applied whenever a unit/value pair cannot produce a positive offset.
const DefaultInterval = 24 * time.Hour

// ParseUnit normalizes a stored unit. Unknown values return ok=false.
func ParseUnit(s string) (Unit, bool) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	switch u {
	case UnitHours, UnitDays, UnitWeeks, UnitMonths, UnitQuarters, UnitYears:
		return u, true
	}
	return "", false
}

// AddInterval adds value units to base. Month based units clamp to the last
// day of the target month, so Jan 31 + 1 month is Feb 28 (or 29).
// An unsupported unit or a non-positive value yields base + DefaultInterval.
func AddInterval(base time.Time, unit Unit, value int) time.Time {
	if value <= 0 {
		return base.Add(DefaultInterval)
	}

	switch unit {
	case UnitHours:
		return base.Add(time.Duration(value) * time.Hour)
	case UnitDays:
		return base.AddDate(0, 0, value)
	case UnitWeeks:
		return base.AddDate(0, 0, 7*value)
	case UnitMonths:
		return addMonths(base, value)
	case UnitQuarters:
		return addMonths(base, 3*value)
	case UnitYears:
		return addMonths(base, 12*value)
	default:
		return base.Add(DefaultInterval)
	}
}

func addMonths(base time.Time, months int) time.Time {
	y, m, d := base.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, base.Location())

	if last := daysIn(target.Year(), target.Month(), base.Location()); d > last {
		d = last
	}

	return time.Date(target.Year(), target.Month(), d,
		base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
