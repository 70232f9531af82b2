package model

import "time"

// Response statuses used by attendees. The vocabulary follows the Google
// Calendar API; ICS PARTSTAT values are mapped onto it at parse time.
const (
	ResponseAccepted    = "accepted"
	ResponseDeclined    = "declined"
	ResponseTentative   = "tentative"
	ResponseNeedsAction = "needsAction"
)

// Event statuses.
const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
	StatusCancelled = "cancelled"
)

// EventTime is one endpoint of an event. Exactly one of Date (all-day,
// "YYYY-MM-DD") or DateTime (RFC 3339) is normally set; either may be
// empty or malformed in real payloads and consumers must tolerate that.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

// Attendee is a single invitee of an event.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	Self           bool   `json:"self,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// CalendarEvent is a single concrete calendar entry, after recurrence
// expansion, as handed from a fetcher to the stats aggregator.
type CalendarEvent struct {
	ID          string `json:"id"`
	CalendarID  string `json:"calendarId,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	Start EventTime `json:"start"`
	End   EventTime `json:"end"`

	Attendees []Attendee `json:"attendees,omitempty"`

	Organizer string `json:"organizer,omitempty"`
	Creator   string `json:"creator,omitempty"`

	// Recurrence holds the RRULE/EXDATE lines of the parent series, if any.
	Recurrence []string `json:"recurrence,omitempty"`

	Status string `json:"status,omitempty"`
}

// AllDay reports whether both endpoints are date-only.
func (e CalendarEvent) AllDay() bool {
	return e.Start.Date != "" && e.End.Date != ""
}

// Cancelled reports whether the event was cancelled by its organizer.
func (e CalendarEvent) Cancelled() bool {
	return e.Status == StatusCancelled
}

// Window is the requested [TimeMin, TimeMax] range of a fetch.
type Window struct {
	TimeMin time.Time `json:"timeMin"`
	TimeMax time.Time `json:"timeMax"`
}

// DefaultWindow is the year ending at now.
func DefaultWindow(now time.Time) Window {
	return Window{TimeMin: now.AddDate(-1, 0, 0), TimeMax: now}
}
