package stats

import (
	"sort"
	"time"

	"calwrapped/internal/model"
)

// Aggregate computes statistics for events using time.Local as the local
// calendar. See AggregateIn.
func Aggregate(events []model.CalendarEvent, timeMin, timeMax time.Time) CalendarStats {
	return AggregateIn(events, timeMin, timeMax, time.Local)
}

// AggregateIn computes statistics for events in a single pass. Day, weekday
// and hour buckets use loc (nil means time.Local). The events are expected
// to be already filtered to the window and stripped of cancelled entries;
// only the free-day scan looks at timeMin/timeMax.
//
// Ties are broken by encounter order, so the result is deterministic for a
// fixed input order.
func AggregateIn(events []model.CalendarEvent, timeMin, timeMax time.Time, loc *time.Location) CalendarStats {
	acc := newAccumulator(orLocal(loc))
	for _, ev := range events {
		acc.add(ev)
	}
	return acc.finish(timeMin, timeMax)
}

type seriesTotals struct {
	count   int
	minutes float64
}

// accumulator holds the per-call mutable state of one aggregation. It is
// never shared between calls.
type accumulator struct {
	loc *time.Location

	total float64

	minutesPerDay map[string]float64
	dayOrder      []string
	eventsByDay   map[string][]model.CalendarEvent

	minutesPerWeekday [7]float64
	weekdaySeen       [7]bool
	minutesPerHour    [24]float64
	hourSeen          [24]bool

	collaborators     []CollaboratorStats
	collaboratorIndex map[string]int

	series      map[string]*seriesTotals
	seriesOrder []string

	meeting, focus float64
	remote, onsite float64
}

func newAccumulator(loc *time.Location) *accumulator {
	return &accumulator{
		loc:               loc,
		minutesPerDay:     make(map[string]float64),
		eventsByDay:       make(map[string][]model.CalendarEvent),
		collaboratorIndex: make(map[string]int),
		series:            make(map[string]*seriesTotals),
	}
}

func (a *accumulator) add(ev model.CalendarEvent) {
	duration := DurationMinutes(ev, a.loc)
	if duration <= 0 {
		return
	}
	a.total += duration

	if key, ok := DayKey(ev, a.loc); ok {
		if _, seen := a.minutesPerDay[key]; !seen {
			a.dayOrder = append(a.dayOrder, key)
		}
		a.minutesPerDay[key] += duration

		if wd, ok := weekdayOf(key, a.loc); ok {
			a.minutesPerWeekday[wd] += duration
			a.weekdaySeen[wd] = true
		}
		if h, ok := startHour(ev, a.loc); ok {
			a.minutesPerHour[h] += duration
			a.hourSeen[h] = true
		}
		a.eventsByDay[key] = append(a.eventsByDay[key], ev)
	}

	if IsMeeting(ev) {
		a.meeting += duration
	} else {
		a.focus += duration
	}

	if IsRemote(ev.Location) {
		a.remote += duration
	} else {
		a.onsite += duration
	}

	for _, att := range ev.Attendees {
		if att.Email == "" || att.Self {
			continue
		}
		if i, ok := a.collaboratorIndex[att.Email]; ok {
			c := &a.collaborators[i]
			c.EventCount++
			c.TotalMinutes += duration
			if c.DisplayName == "" && att.DisplayName != "" {
				c.DisplayName = att.DisplayName
			}
			continue
		}
		a.collaboratorIndex[att.Email] = len(a.collaborators)
		a.collaborators = append(a.collaborators, CollaboratorStats{
			Email:        att.Email,
			DisplayName:  att.DisplayName,
			EventCount:   1,
			TotalMinutes: duration,
		})
	}

	key := SeriesKey(ev.Summary)
	s, ok := a.series[key]
	if !ok {
		s = &seriesTotals{}
		a.series[key] = s
		a.seriesOrder = append(a.seriesOrder, key)
	}
	s.count++
	s.minutes += duration
}

func (a *accumulator) finish(timeMin, timeMax time.Time) CalendarStats {
	out := CalendarStats{
		TotalEventMinutes:    a.total,
		BusiestDay:           a.busiestDay(),
		WeekdayIntensity:     make([]WeekdayIntensity, 0, 7),
		HourlyIntensity:      make([]HourBucket, 0, 24),
		TopCollaborators:     a.topCollaborators(),
		CalendarDistribution: []CalendarDistribution{},
		MeetingVsFocus: MeetingVsFocus{
			MeetingMinutes: a.meeting,
			FocusMinutes:   a.focus,
			MeetingRatio:   ratio(a.meeting, a.focus),
		},
		RemoteVsOnsite: RemoteVsOnsite{
			RemoteMinutes: a.remote,
			OnsiteMinutes: a.onsite,
			RemoteRatio:   ratio(a.remote, a.onsite),
		},
		RecurringSummary: a.recurringSummary(),
		BackToBack: BackToBack{
			BackToBackDayCount:   a.backToBackDays(),
			DefinitionGapMinutes: BackToBackGapMinutes,
		},
		FreeDays: FreeDays{FreeDayCount: a.freeDays(timeMin, timeMax)},
	}

	for wd := 0; wd < 7; wd++ {
		if a.weekdaySeen[wd] {
			out.WeekdayIntensity = append(out.WeekdayIntensity, WeekdayIntensity{Weekday: wd, TotalMinutes: a.minutesPerWeekday[wd]})
		}
	}

	var best float64
	for h := 0; h < 24; h++ {
		if !a.hourSeen[h] {
			continue
		}
		m := a.minutesPerHour[h]
		out.HourlyIntensity = append(out.HourlyIntensity, HourBucket{Hour: h, TotalMinutes: m})
		if m > best {
			best = m
			hour := h
			out.PrimeTimeHour = &hour
		}
	}

	if a.total > 0 {
		out.CalendarDistribution = append(out.CalendarDistribution, CalendarDistribution{
			CalendarID:   AllCalendarsID,
			TotalMinutes: a.total,
		})
	}

	return out
}

// busiestDay picks the strict maximum; the first day seen wins ties.
func (a *accumulator) busiestDay() *BusyDay {
	var best *BusyDay
	for _, key := range a.dayOrder {
		m := a.minutesPerDay[key]
		if best == nil || m > best.TotalMinutes {
			best = &BusyDay{Date: key, TotalMinutes: m}
		}
	}
	return best
}

func (a *accumulator) topCollaborators() []CollaboratorStats {
	out := make([]CollaboratorStats, len(a.collaborators))
	copy(out, a.collaborators)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalMinutes > out[j].TotalMinutes
	})
	if len(out) > TopCollaboratorLimit {
		out = out[:TopCollaboratorLimit]
	}
	return out
}

func (a *accumulator) recurringSummary() []RecurringSeries {
	out := make([]RecurringSeries, 0)
	for _, key := range a.seriesOrder {
		s := a.series[key]
		if s.count < RecurringMinOccurrences {
			continue
		}
		out = append(out, RecurringSeries{Key: key, Count: s.count, TotalMinutes: s.minutes})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalMinutes > out[j].TotalMinutes
	})
	if len(out) > RecurringSummaryLimit {
		out = out[:RecurringSummaryLimit]
	}
	return out
}

// backToBackDays counts days with at least one adjacent pair of events
// separated by a gap in [0, BackToBackGapMinutes].
func (a *accumulator) backToBackDays() int {
	count := 0
	for _, key := range a.dayOrder {
		dayEvents := a.eventsByDay[key]
		if len(dayEvents) < 2 {
			continue
		}
		dayStart, _ := parseDate(key, a.loc)

		type span struct{ start, end time.Time }
		spans := make([]span, len(dayEvents))
		for i, ev := range dayEvents {
			spans[i] = span{
				start: instant(ev.Start, dayStart, a.loc),
				end:   instant(ev.End, dayStart, a.loc),
			}
		}
		sort.SliceStable(spans, func(i, j int) bool {
			return spans[i].start.Before(spans[j].start)
		})

		for i := 0; i+1 < len(spans); i++ {
			gap := spans[i+1].start.Sub(spans[i].end).Minutes()
			if gap >= 0 && gap <= BackToBackGapMinutes {
				count++
				break
			}
		}
	}
	return count
}

// freeDays counts local calendar days in [timeMin, timeMax] with no
// recorded minutes. Days step by calendar date so DST shifts never skip
// or repeat one.
func (a *accumulator) freeDays(timeMin, timeMax time.Time) int {
	if timeMin.IsZero() || timeMax.IsZero() {
		return 0
	}
	start := timeMin.In(a.loc)
	endKey := timeMax.In(a.loc).Format(DayKeyLayout)

	count := 0
	for i := 0; ; i++ {
		// Noon avoids zones whose DST switch skips local midnight.
		d := time.Date(start.Year(), start.Month(), start.Day()+i, 12, 0, 0, 0, a.loc)
		key := d.Format(DayKeyLayout)
		if key > endKey {
			break
		}
		if _, ok := a.minutesPerDay[key]; !ok {
			count++
		}
	}
	return count
}

func ratio(part, other float64) float64 {
	total := part + other
	if total <= 0 {
		return 0
	}
	return part / total
}
