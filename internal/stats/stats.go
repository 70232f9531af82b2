// Package stats derives "year in review" statistics from a flat list of
// calendar events.
//
// The aggregation is a pure function: it performs no I/O, keeps no state
// between calls and never fails. Malformed per-event data contributes
// nothing instead of raising an error.
package stats

// Policy constants. These are part of the observable behavior, not
// configuration.
const (
	// BackToBackGapMinutes is the largest gap between one event's end and
	// the next event's start for the pair to count as back-to-back.
	BackToBackGapMinutes = 5

	// RecurringMinOccurrences is how often a title must appear to be
	// reported as a recurring series.
	RecurringMinOccurrences = 3

	TopCollaboratorLimit  = 5
	RecurringSummaryLimit = 10

	// UntitledKey is the series key for events without a summary.
	UntitledKey = "untitled"

	// AllCalendarsID names the single calendar-distribution bucket.
	AllCalendarsID = "all"

	// DayKeyLayout formats local calendar days ("YYYY-MM-DD").
	DayKeyLayout = "2006-01-02"
)

// BusyDay is the local calendar day with the most scheduled minutes.
type BusyDay struct {
	Date         string  `json:"date"`
	TotalMinutes float64 `json:"totalMinutes"`
}

// WeekdayIntensity sums minutes per weekday (0 = Sunday).
type WeekdayIntensity struct {
	Weekday      int     `json:"weekday"`
	TotalMinutes float64 `json:"totalMinutes"`
}

// HourBucket sums minutes per local start hour (0-23).
type HourBucket struct {
	Hour         int     `json:"hour"`
	TotalMinutes float64 `json:"totalMinutes"`
}

type CollaboratorStats struct {
	Email        string  `json:"email"`
	DisplayName  string  `json:"displayName,omitempty"`
	EventCount   int     `json:"eventCount"`
	TotalMinutes float64 `json:"totalMinutes"`
}

type CalendarDistribution struct {
	CalendarID   string  `json:"calendarId"`
	TotalMinutes float64 `json:"totalMinutes"`
}

type MeetingVsFocus struct {
	MeetingMinutes float64 `json:"meetingMinutes"`
	FocusMinutes   float64 `json:"focusMinutes"`
	// MeetingRatio is in [0,1]; 0 when both buckets are empty.
	MeetingRatio float64 `json:"meetingRatio"`
}

type RemoteVsOnsite struct {
	RemoteMinutes float64 `json:"remoteMinutes"`
	OnsiteMinutes float64 `json:"onsiteMinutes"`
	RemoteRatio   float64 `json:"remoteRatio"`
}

// RecurringSeries groups events sharing a lower-cased title.
type RecurringSeries struct {
	Key          string  `json:"key"`
	Count        int     `json:"count"`
	TotalMinutes float64 `json:"totalMinutes"`
}

type BackToBack struct {
	BackToBackDayCount   int `json:"backToBackDayCount"`
	DefinitionGapMinutes int `json:"definitionGapMinutes"`
}

type FreeDays struct {
	FreeDayCount int `json:"freeDayCount"`
}

// CalendarStats is the immutable result of one aggregation. Slices are
// never nil so the JSON form always carries arrays.
type CalendarStats struct {
	TotalEventMinutes    float64                `json:"totalEventMinutes"`
	BusiestDay           *BusyDay               `json:"busiestDay"`
	WeekdayIntensity     []WeekdayIntensity     `json:"weekdayIntensity"`
	HourlyIntensity      []HourBucket           `json:"hourlyIntensity"`
	PrimeTimeHour        *int                   `json:"primeTimeHour"`
	TopCollaborators     []CollaboratorStats    `json:"topCollaborators"`
	CalendarDistribution []CalendarDistribution `json:"calendarDistribution"`
	MeetingVsFocus       MeetingVsFocus         `json:"meetingVsFocus"`
	RemoteVsOnsite       RemoteVsOnsite         `json:"remoteVsOnsite"`
	RecurringSummary     []RecurringSeries      `json:"recurringSummary"`
	BackToBack           BackToBack             `json:"backToBack"`
	FreeDays             FreeDays               `json:"freeDays"`
}
