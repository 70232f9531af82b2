package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calwrapped/internal/log"
	"calwrapped/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	// Occurrences are concrete event instances. Cancelled instances,
	// including cancelled RECURRENCE-ID overrides, are already removed.
	Occurrences []model.CalendarEvent
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences takes a list of ParsedEvent (typically for one or more ICS
// sources) and expands them into concrete occurrences within the given time
// range. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day semantics
//   - STATUS:CANCELLED filtering (applied after overrides)
//
// All resulting occurrences are converted into the configured display
// timezone (ExpandConfig.DisplayLocation).
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	uidOrder := make([]string, 0)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			if _, seen := baseByUID[ev.UID]; !seen {
				uidOrder = append(uidOrder, ev.UID)
			}
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	allOccurrences := make([]model.CalendarEvent, 0)

	// Walk UIDs in first-seen order so output order follows the feed.
	for _, uid := range uidOrder {
		baseEvents := baseByUID[uid]
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseEvents {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			for _, o := range occ {
				if o.Cancelled() {
					continue
				}
				allOccurrences = append(allOccurrences, o)
			}
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Occurrences = allOccurrences
	return result, nil
}

// expandEvent expands a single ParsedEvent (base event) with its possible
// overrides within the given configuration, returning occurrences and whether
// the cap was hit.
func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	// Single non-recurring event
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}

	// Recurring event via RRULE
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	var out []model.CalendarEvent

	// Quick range check: if event does not intersect [RangeStart, RangeEnd], skip.
	if !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return out
	}

	baseStart := ev.Start
	baseEnd := ev.End

	// Apply any override whose RECURRENCE-ID matches this start.
	if o, ok := findOverrideForStart(ev, overrides, baseStart); ok {
		baseStart = o.Start
		baseEnd = o.End
		ev = o
	}

	out = append(out, makeOccurrence(ev, baseStart, baseEnd, cfg.DisplayLocation))
	return out
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	out := make([]model.CalendarEvent, 0)
	hitCap := false

	// Create base rule from RawRRule.
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}

	// Ensure Dtstart is set to the event's DTSTART.
	r.DTStart(ev.Start)

	// Build a set so we can apply EXDATE.
	var set rrule.Set
	set.RRule(r)

	// Apply EXDATEs.
	for _, ex := range ev.ExDates {
		// Best effort: align EXDATE location with event's start.
		exInLoc := ex.In(ev.Start.Location())
		set.ExDate(exInLoc)
	}

	// Adjust range into the event's original location for Between().
	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)

	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			// All-day: treat as [date 00:00, next day 00:00) in event's timezone.
			date := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = date
			occEnd = date.Add(24 * time.Hour)
		} else {
			// Preserve original duration.
			dur := ev.End.Sub(ev.Start)
			occEnd = occStart.Add(dur)
		}

		baseStart := occStart
		baseEnd := occEnd
		baseEv := ev

		// Apply override if any.
		if o, ok := findOverrideForStart(ev, overrides, occStart); ok {
			baseStart = o.Start
			baseEnd = o.End
			baseEv = o
		}

		out = append(out, makeOccurrence(baseEv, baseStart, baseEnd, cfg.DisplayLocation))
	}

	return out, hitCap
}

// findOverrideForStart finds an override event whose RECURRENCE-ID matches
// the given baseStart (in the base event's timezone) with exact time equality.
func findOverrideForStart(base ParsedEvent, overrides []ParsedEvent, baseStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		// Align recurrence timestamp with base event's location for comparison.
		rid := ov.Recurrence.In(baseStart.Location())
		if rid.Equal(baseStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence converts a (possibly overridden) ParsedEvent + specific
// start/end time into a model.CalendarEvent normalized into displayLoc.
// All-day occurrences carry only dates; timed ones carry RFC 3339 stamps.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.CalendarEvent {
	occ := model.CalendarEvent{
		CalendarID:  ev.Source.ID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Organizer:   ev.Organizer,
		Status:      ev.Status,
	}
	if len(ev.Attendees) > 0 {
		occ.Attendees = append([]model.Attendee(nil), ev.Attendees...)
	}
	if ev.RawRRule != "" {
		occ.Recurrence = []string{"RRULE:" + ev.RawRRule}
	}

	if ev.AllDay {
		// Dates are taken in the event's own zone; re-zoning a floating
		// midnight would shift the day.
		occ.Start.Date = start.Format("2006-01-02")
		occ.End.Date = end.Format("2006-01-02")
	} else {
		occ.Start.DateTime = start.In(displayLoc).Format(time.RFC3339)
		occ.End.DateTime = end.In(displayLoc).Format(time.RFC3339)
	}

	// Per-instance ID: UID plus the instance start, stable across refreshes.
	occ.ID = ev.UID + "/" + start.In(displayLoc).Format(time.RFC3339)

	return occ
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
