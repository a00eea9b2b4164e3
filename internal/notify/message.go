package notify

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Role labels the recipient of an overdue escalation.
type Role string

const (
	RoleAssignee Role = ""
	RoleAssigner Role = "assigner"
)

const (
	dueLayout     = "02/01/2006 15:04"
	dueDateLayout = "02/01/2006"
	footer        = "Remindr task reminders"
)

func taskTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Task"
	}
	return title
}

// EmailSubject is keyed by severity; the assigner gets a labelled subject.
func EmailSubject(severity, title string, role Role) string {
	label := ""
	if role == RoleAssigner {
		label = " (assigner)"
	}
	switch severity {
	case "overdue":
		return fmt.Sprintf("🔥 Overdue%s: %s", label, taskTitle(title))
	case "nearly_due":
		return fmt.Sprintf("⚠️ Due soon%s: %s", label, taskTitle(title))
	default:
		return fmt.Sprintf("🔔 Reminder%s: %s", label, taskTitle(title))
	}
}

// EmailHTML renders the reminder email. All interpolated text is escaped.
func EmailHTML(subject, body string, due *time.Time, loc *time.Location, role Role) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; line-height:1.6">`)
	fmt.Fprintf(&b, "<h3>%s</h3>", html.EscapeString(subject))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(body))
	if due != nil {
		fmt.Fprintf(&b, "<p><strong>Due:</strong> %s</p>", due.In(loc).Format(dueLayout))
	}
	if role == RoleAssigner {
		b.WriteString(`<p style="color:#888">You assigned this task. Please help follow up.</p>`)
	}
	fmt.Fprintf(&b, `<p style="color:#888">%s</p>`, footer)
	b.WriteString("</div>")
	return b.String()
}

// EmailText is the plain-text alternative of EmailHTML.
func EmailText(subject, body string, due *time.Time, loc *time.Location) string {
	parts := []string{subject, "", body}
	if due != nil {
		parts = append(parts, "Due: "+due.In(loc).Format(dueLayout))
	}
	return strings.Join(parts, "\n")
}

// SMSBody is a short ASCII-only overdue text.
func SMSBody(title string, due *time.Time, loc *time.Location, role Role) string {
	label := ""
	if role == RoleAssigner {
		label = " (assigner)"
	}
	s := fmt.Sprintf("[remindr] Overdue%s: %s", label, taskTitle(title))
	if due != nil {
		s += " - Due: " + due.In(loc).Format(dueDateLayout)
	}
	return s
}
