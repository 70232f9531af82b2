// Package wrapped turns a stats snapshot into the "year in review" card
// data consumed by the presentation layer. It formats numbers and picks
// copy; it does not render anything.
package wrapped

import (
	"fmt"
	"math"
	"strings"
	"time"

	"calwrapped/internal/stats"
)

// MinutesToHours rounds minutes to whole hours.
func MinutesToHours(minutes float64) int {
	return int(math.Round(minutes / 60))
}

// FormatMinutesToHours renders minutes as "2h 5m", "45m" or "3h".
func FormatMinutesToHours(minutes float64) string {
	total := int(math.Round(minutes))
	hours, mins := total/60, total%60
	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", mins)
	case mins == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
}

// FormatMinutesToDays renders minutes as "2d 3h", "5h" or "1d". Leftover
// minutes under an hour are dropped.
func FormatMinutesToDays(minutes float64) string {
	const perDay = 60 * 24
	total := int(math.Round(minutes))
	days, hours := total/perDay, total%perDay/60
	switch {
	case days == 0:
		return fmt.Sprintf("%dh", hours)
	case hours == 0:
		return fmt.Sprintf("%dd", days)
	default:
		return fmt.Sprintf("%dd %dh", days, hours)
	}
}

// WeekdayName names a 0-6 weekday (0 = Sunday).
func WeekdayName(weekday int) string {
	if weekday < 0 || weekday > 6 {
		return ""
	}
	return time.Weekday(weekday).String()
}

// FormatDay renders a "YYYY-MM-DD" key as "March 4, 2025". Unparseable
// keys are returned unchanged.
func FormatDay(key string) string {
	t, err := time.Parse(stats.DayKeyLayout, key)
	if err != nil {
		return key
	}
	return t.Format("January 2, 2006")
}

// FormatHour renders an hour as "09:00".
func FormatHour(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// collaboratorName prefers the display name, else the mailbox part of the
// address.
func collaboratorName(c stats.CollaboratorStats) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	name, _, _ := strings.Cut(c.Email, "@")
	return name
}

func percent(part, other float64) int {
	total := part + other
	if total <= 0 {
		return 0
	}
	return int(math.Round(part / total * 100))
}
