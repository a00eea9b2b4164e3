package reminder

import (
	"fmt"
	"strings"
	"time"
)

var statusLeads = map[Status]struct{ icon, lead string }{
	StatusPending:    {"⏳", "Pending"},
	StatusInProgress: {"⚡", "In progress"},
	StatusUpcoming:   {"⚠️", "Due soon"},
	StatusOverdue:    {"🔥", "Overdue"},
}

func titleOrDefault(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Task"
	}
	return title
}

// NotificationTitle is the in-app title for a status-keyed reminder.
func NotificationTitle(status Status, title string) string {
	m, ok := statusLeads[status]
	if !ok {
		m = statusLeads[StatusPending]
	}
	return fmt.Sprintf("%s %s: %s", m.icon, m.lead, titleOrDefault(title))
}

// NotificationBody states the due time in loc, or that there is none.
func NotificationBody(due *time.Time, loc *time.Location) string {
	if due == nil {
		return "No due date"
	}
	return "Due: " + due.In(loc).Format("02/01/2006 15:04")
}

// QueueMessage is the text stored on scheduled queue entries.
func QueueMessage(title string) string {
	return "Reminder: " + titleOrDefault(title)
}

// QueueTitle is the in-app title used when a queue entry is delivered.
func QueueTitle(title string) string {
	return "🔔 Reminder: " + titleOrDefault(title)
}

// EscalationTitle is the high-priority in-app title sent to the assigner.
func EscalationTitle(title string, overdueCount int) string {
	return fmt.Sprintf("🚨 Still overdue after %d reminders: %s", overdueCount, titleOrDefault(title))
}
