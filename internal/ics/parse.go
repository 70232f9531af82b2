package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "calwrapped/internal/log"
	"calwrapped/internal/model"
)

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion will operate on this type.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	Status      string // mapped to model.Status* (confirmed/tentative/cancelled)

	Organizer string
	Attendees []model.Attendee

	Start   time.Time
	End     time.Time
	AllDay  bool
	StartTZ string
	EndTZ   string

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present) in event's own timezone
	IsOverride bool       // true if this VEVENT is an override for a recurring instance
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - It relies on the underlying library's VTIMEZONE/TZID handling to
//     construct proper time.Time values (with Location set).
//   - It detects all-day events by inspecting the DTSTART value format.
//   - It records RRULE/EXDATE/RECURRENCE-ID but does not expand recurrences;
//     expansion is done in internal/ics/expand.go.
//   - ATTENDEE PARTSTAT values are mapped onto the model response statuses,
//     and the attendee matching src.SelfEmail is flagged as Self.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)

	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	// UID
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	// SEQUENCE (optional, used for overrides/versioning)
	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	// Summary / Description / Location
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	out.Status = model.StatusConfirmed
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Status = mapStatus(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		out.Organizer = mailtoAddress(p.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		att := model.Attendee{
			Email:          mailtoAddress(p.Value),
			ResponseStatus: model.ResponseNeedsAction,
		}
		if cn := firstParam(p.ICalParameters, "CN"); cn != "" {
			att.DisplayName = cn
		}
		if ps := firstParam(p.ICalParameters, "PARTSTAT"); ps != "" {
			att.ResponseStatus = mapPartStat(ps)
		}
		if src.SelfEmail != "" && strings.EqualFold(att.Email, src.SelfEmail) {
			att.Self = true
		}
		out.Attendees = append(out.Attendees, att)
	}

	// DTSTART / DTEND. We use the library's helpers for timezone logic,
	// except for floating values, which belong to the source's zone.
	floatingLoc := src.Location
	if floatingLoc == nil {
		floatingLoc = time.Local
	}
	start, _ := ve.GetStartAt()
	end, _ := ve.GetEndAt()
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); isFloating(p) {
		if t, err := parseICSTime(p.Value, floatingLoc); err == nil {
			start = t
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); isFloating(p) {
		if t, err := parseICSTime(p.Value, floatingLoc); err == nil {
			end = t
		}
	}

	out.Start = start
	out.End = end

	// Detect all-day: VALUE=DATE or no 'T' in the DTSTART value.
	allDay := false
	if dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart); dtStartProp != nil {
		if strings.EqualFold(firstParam(dtStartProp.ICalParameters, "VALUE"), "DATE") {
			allDay = true
		}
		if !strings.Contains(dtStartProp.Value, "T") {
			allDay = true
		}
		out.StartTZ = firstParam(dtStartProp.ICalParameters, "TZID")
	}
	if dtEndProp := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEndProp != nil {
		out.EndTZ = firstParam(dtEndProp.ICalParameters, "TZID")
	}

	out.AllDay = allDay

	// RRULE (we only keep raw string here; expansion will be in expand.go).
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE (can appear multiple times)
	exProps := ve.GetProperties(ical.ComponentPropertyExdate)
	for _, p := range exProps {
		val := p.Value
		if val == "" {
			continue
		}
		exLoc := propLocation(p, floatingLoc)
		parts := strings.Split(val, ",")
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, exLoc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	// RECURRENCE-ID (overridden instance)
	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		if t, err := parseICSTime(ridProp.Value, propLocation(ridProp, floatingLoc)); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseICSTime parses a basic ICS date/date-time string into time.Time.
// UTC values ("...Z") ignore loc; everything else is read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		const layout = "20060102T150405Z"
		return time.Parse(layout, v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		const layout = "20060102T150405"
		return time.ParseInLocation(layout, v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	const layoutDate = "20060102"
	return time.ParseInLocation(layoutDate, v, loc)
}

// isFloating reports a date-time value with neither TZID nor a UTC suffix.
func isFloating(p *ical.IANAProperty) bool {
	if p == nil || p.Value == "" {
		return false
	}
	return firstParam(p.ICalParameters, "TZID") == "" && !strings.HasSuffix(strings.TrimSpace(p.Value), "Z")
}

// propLocation resolves a property's TZID, falling back to fallback when
// the parameter is absent or unknown.
func propLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tz := firstParam(p.ICalParameters, "TZID"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return fallback
}

func firstParam(params map[string][]string, name string) string {
	if params == nil {
		return ""
	}
	if vs, ok := params[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// mailtoAddress strips the "mailto:" scheme from a CAL-ADDRESS value.
func mailtoAddress(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		v = v[7:]
	}
	return v
}

func mapStatus(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "CANCELLED":
		return model.StatusCancelled
	case "TENTATIVE":
		return model.StatusTentative
	default:
		return model.StatusConfirmed
	}
}

// mapPartStat maps RFC 5545 PARTSTAT onto the model response statuses.
func mapPartStat(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ACCEPTED":
		return model.ResponseAccepted
	case "DECLINED":
		return model.ResponseDeclined
	case "TENTATIVE":
		return model.ResponseTentative
	default:
		return model.ResponseNeedsAction
	}
}
