package task

import (
	"fmt"
	"strings"
	"time"
)

// BuildTaskCalendarICS renders a single-event iCalendar document for a
// task. A deadline is required so the exported event has a concrete time.
func BuildTaskCalendarICS(t Task, now time.Time) (string, error) {
	if t.Due == nil {
		return "", fmt.Errorf("task deadline required for calendar export")
	}

	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "TodoQuest Task"
	}

	uid := fmt.Sprintf("task-%s@todoquest", strings.TrimSpace(t.ID))
	if strings.TrimSpace(t.ID) == "" {
		uid = fmt.Sprintf("task-export-%d@todoquest", now.UnixNano())
	}

	stamp := "20060102T150405Z"
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//TodoQuest//Task Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + escapeICSText(uid),
		"DTSTAMP:" + now.UTC().Format(stamp),
		"SUMMARY:" + escapeICSText(title),
		"DTSTART:" + t.Due.UTC().Format(stamp),
		"DTEND:" + t.Due.UTC().Add(time.Hour).Format(stamp),
		"DESCRIPTION:" + escapeICSText(fmt.Sprintf("Worth %d XP", t.Point)),
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}
	return strings.Join(lines, "\r\n"), nil
}

func escapeICSText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
		"\r", "",
	)
	return r.Replace(s)
}
