package reminder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lalithlochan/remindr/internal/db"
	"github.com/lalithlochan/remindr/internal/timeutil"
)

// Rule is the validated delivery rule for one severity.
type Rule struct {
	Enabled          bool
	SpecificTimes    []timeutil.TimeOfDay
	RepeatEveryHours int
	MaxPerDay        int
	// DaysOfWeek holds ISO weekdays (1 Monday .. 7 Sunday). Empty allows every day.
	DaysOfWeek []int
	Quiet      *timeutil.QuietWindow
}

// AllowsDay reports whether the ISO weekday is allowed by the rule.
func (r Rule) AllowsDay(isoWeekday int) bool {
	if len(r.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range r.DaysOfWeek {
		if d == isoWeekday {
			return true
		}
	}
	return false
}

// Config is one task type's preference block.
type Config struct {
	Active   bool
	Quiet    *timeutil.QuietWindow
	ByStatus map[Severity]Rule
}

// Preferences is a user's typed reminder preferences.
type Preferences struct {
	UserID    string
	OneTime   *Config
	Recurring *Config
	// Warnings lists entries dropped while validating the raw config.
	Warnings []string
}

// Lookup returns the enabled rule for key on the task type's config. The
// returned rule's Quiet is resolved against the config-level window.
func (p *Preferences) Lookup(recurring bool, key Severity) (Rule, bool) {
	if p == nil {
		return Rule{}, false
	}

	cfg := p.OneTime
	if recurring {
		cfg = p.Recurring
	}
	if cfg == nil || !cfg.Active {
		return Rule{}, false
	}

	rule, ok := cfg.ByStatus[key]
	if !ok || !rule.Enabled {
		return Rule{}, false
	}
	if rule.Quiet == nil {
		rule.Quiet = cfg.Quiet
	}
	return rule, true
}

type rawQuiet struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type rawRule struct {
	Enabled          flexBool  `json:"enabled"`
	SpecificTimes    []string  `json:"specific_times"`
	RepeatEveryHours flexInt   `json:"repeat_every_hours"`
	MaxPerDay        flexInt   `json:"max_per_day"`
	DaysOfWeek       []flexInt `json:"days_of_week"`
	QuietHours       *rawQuiet `json:"quiet_hours"`
}

type rawConfig struct {
	Active     *flexBool          `json:"active"`
	QuietHours *rawQuiet          `json:"quiet_hours"`
	ByStatus   map[string]rawRule `json:"by_status"`
}

// ParsePreferences validates a stored preference row once. Malformed
// entries are dropped with a warning rather than failing the whole row;
// an unreadable config block disables only that block.
func ParsePreferences(row *db.UserReminderPreference) *Preferences {
	prefs := &Preferences{UserID: row.UserID.String()}

	var warn []string
	prefs.OneTime, warn = parseConfig(row.OneTimeConfig, "one_time_config")
	prefs.Warnings = append(prefs.Warnings, warn...)
	prefs.Recurring, warn = parseConfig(row.RecurringConfig, "recurring_config")
	prefs.Warnings = append(prefs.Warnings, warn...)

	return prefs
}

func parseConfig(raw json.RawMessage, field string) (*Config, []string) {
	raw = unwrapJSONString(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var rc rawConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, []string{fmt.Sprintf("%s: unreadable: %v", field, err)}
	}

	cfg := &Config{
		Active:   rc.Active == nil || bool(*rc.Active),
		Quiet:    quietFrom(rc.QuietHours),
		ByStatus: make(map[Severity]Rule, len(rc.ByStatus)),
	}

	var warnings []string
	for key, rr := range rc.ByStatus {
		sev := Severity(key)
		switch sev {
		case SeverityInProgress, SeverityNearlyDue, SeverityOverdue:
		default:
			warnings = append(warnings, fmt.Sprintf("%s.by_status: unknown status %q", field, key))
			continue
		}

		rule, ruleWarnings := parseRule(rr, field+".by_status."+key)
		warnings = append(warnings, ruleWarnings...)
		cfg.ByStatus[sev] = rule
	}

	return cfg, warnings
}

func parseRule(rr rawRule, path string) (Rule, []string) {
	rule := Rule{
		Enabled: bool(rr.Enabled),
		Quiet:   quietFrom(rr.QuietHours),
	}
	var warnings []string

	seen := make(map[timeutil.TimeOfDay]bool, len(rr.SpecificTimes))
	for _, s := range rr.SpecificTimes {
		s = strings.TrimSpace(s)
		if !timeutil.ValidTimeOfDay(s) {
			warnings = append(warnings, fmt.Sprintf("%s.specific_times: dropped %q", path, s))
			continue
		}
		tod := timeutil.ParseTimeOfDay(s, timeutil.TimeOfDay{})
		if !seen[tod] {
			seen[tod] = true
			rule.SpecificTimes = append(rule.SpecificTimes, tod)
		}
	}
	sort.Slice(rule.SpecificTimes, func(i, j int) bool {
		a, b := rule.SpecificTimes[i], rule.SpecificTimes[j]
		return a.Hour < b.Hour || (a.Hour == b.Hour && a.Minute < b.Minute)
	})

	if hours := int(rr.RepeatEveryHours); hours > 0 {
		rule.RepeatEveryHours = hours
	} else if hours < 0 {
		warnings = append(warnings, fmt.Sprintf("%s.repeat_every_hours: negative value ignored", path))
	}

	if n := int(rr.MaxPerDay); n > 0 {
		rule.MaxPerDay = n
	}

	for _, d := range rr.DaysOfWeek {
		if d < 1 || d > 7 {
			warnings = append(warnings, fmt.Sprintf("%s.days_of_week: dropped %d", path, int(d)))
			continue
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, int(d))
	}

	return rule, warnings
}

func quietFrom(rq *rawQuiet) *timeutil.QuietWindow {
	if rq == nil || (rq.Start == "" && rq.End == "") {
		return nil
	}
	w := timeutil.ParseQuietWindow(rq.Start, rq.End)
	return &w
}

// Some writers store the config as a JSON string holding JSON.
func unwrapJSONString(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return raw
	}
	return json.RawMessage(inner)
}

// flexInt accepts 6, 6.0 and "6".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexInt(v)
	return nil
}

// flexBool accepts true, "true", 1 and "1".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(b), `"`)) {
	case "true", "1", "yes", "on":
		*f = true
	default:
		*f = false
	}
	return nil
}
