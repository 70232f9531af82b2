package stats

import (
	"strings"
	"time"

	"calwrapped/internal/model"
)

// zone-less timestamps are interpreted in the local location.
const localDateTimeLayout = "2006-01-02T15:04:05"

var remoteMarkers = []string{"zoom", "meet.google.com", "teams.microsoft.com"}

func parseDateTime(v string, loc *time.Location) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(localDateTimeLayout, v, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func parseDate(v string, loc *time.Location) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DayKeyLayout, v, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DurationMinutes returns the scheduled length of ev in (possibly
// fractional) minutes. All-day events, events with a missing or
// unparseable endpoint, and events with end <= start yield 0.
func DurationMinutes(ev model.CalendarEvent, loc *time.Location) float64 {
	if ev.AllDay() {
		return 0
	}
	start, ok := parseDateTime(ev.Start.DateTime, orLocal(loc))
	if !ok {
		return 0
	}
	end, ok := parseDateTime(ev.End.DateTime, orLocal(loc))
	if !ok {
		return 0
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Minutes()
}

// DayKey resolves the local calendar day an event starts on. All-day
// events resolve to their start date.
func DayKey(ev model.CalendarEvent, loc *time.Location) (string, bool) {
	loc = orLocal(loc)
	if ev.Start.DateTime != "" {
		t, ok := parseDateTime(ev.Start.DateTime, loc)
		if !ok {
			return "", false
		}
		return t.In(loc).Format(DayKeyLayout), true
	}
	t, ok := parseDate(ev.Start.Date, loc)
	if !ok {
		return "", false
	}
	return t.Format(DayKeyLayout), true
}

// weekdayOf derives the weekday from a day key, never from a UTC instant.
func weekdayOf(dayKey string, loc *time.Location) (time.Weekday, bool) {
	t, ok := parseDate(dayKey, loc)
	if !ok {
		return 0, false
	}
	return t.Weekday(), true
}

// startHour is the local hour an event starts in. All-day events count as
// hour 0.
func startHour(ev model.CalendarEvent, loc *time.Location) (int, bool) {
	if ev.Start.DateTime == "" {
		if ev.Start.Date != "" {
			return 0, true
		}
		return 0, false
	}
	t, ok := parseDateTime(ev.Start.DateTime, loc)
	if !ok {
		return 0, false
	}
	return t.In(loc).Hour(), true
}

// instant resolves an endpoint for ordering; fallback is used when neither
// field parses.
func instant(et model.EventTime, fallback time.Time, loc *time.Location) time.Time {
	if et.DateTime != "" {
		if t, ok := parseDateTime(et.DateTime, loc); ok {
			return t
		}
		return fallback
	}
	if t, ok := parseDate(et.Date, loc); ok {
		return t
	}
	return fallback
}

// IsRemote reports whether a location looks like a video call.
func IsRemote(location string) bool {
	if location == "" {
		return false
	}
	loc := strings.ToLower(location)
	for _, m := range remoteMarkers {
		if strings.Contains(loc, m) {
			return true
		}
	}
	return strings.HasPrefix(loc, "https://") || strings.HasPrefix(loc, "http://")
}

// IsMeeting reports whether more than one attendee (self included, if
// listed) has not declined.
func IsMeeting(ev model.CalendarEvent) bool {
	n := 0
	for _, a := range ev.Attendees {
		if a.ResponseStatus != model.ResponseDeclined {
			n++
		}
	}
	return n > 1
}

// SeriesKey is the recurring-series key for an event title.
func SeriesKey(summary string) string {
	if summary == "" {
		return UntitledKey
	}
	return strings.ToLower(summary)
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
