package wrapped

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwrapped/internal/stats"
)

func TestFormatting(t *testing.T) {
	assert.Equal(t, 2, MinutesToHours(90))
	assert.Equal(t, 1, MinutesToHours(89))

	assert.Equal(t, "45m", FormatMinutesToHours(45))
	assert.Equal(t, "3h", FormatMinutesToHours(180))
	assert.Equal(t, "2h 5m", FormatMinutesToHours(125))
	// Rounding carries into the next hour instead of yielding "60m".
	assert.Equal(t, "2h", FormatMinutesToHours(119.6))
	assert.Equal(t, "1h", FormatMinutesToHours(59.7))
	assert.Equal(t, "0m", FormatMinutesToHours(0))

	assert.Equal(t, "5h", FormatMinutesToDays(300))
	assert.Equal(t, "1d", FormatMinutesToDays(1440))
	assert.Equal(t, "2d 3h", FormatMinutesToDays(2*1440+180))
	assert.Equal(t, "1d", FormatMinutesToDays(1439.6))

	assert.Equal(t, "Sunday", WeekdayName(0))
	assert.Equal(t, "Saturday", WeekdayName(6))
	assert.Empty(t, WeekdayName(7))

	assert.Equal(t, "March 4, 2025", FormatDay("2025-03-04"))
	assert.Equal(t, "bogus", FormatDay("bogus"))
	assert.Equal(t, "09:00", FormatHour(9))
}

func TestPersonaPriority(t *testing.T) {
	cases := []struct {
		name  string
		stats stats.CalendarStats
		badge string
	}{
		{
			name:  "meeting heavy",
			stats: stats.CalendarStats{MeetingVsFocus: stats.MeetingVsFocus{MeetingMinutes: 80, FocusMinutes: 20, MeetingRatio: 0.8}},
			badge: "Meeting Warrior",
		},
		{
			name:  "focus heavy beats remote",
			stats: stats.CalendarStats{MeetingVsFocus: stats.MeetingVsFocus{MeetingMinutes: 10, FocusMinutes: 90, MeetingRatio: 0.1}, RemoteVsOnsite: stats.RemoteVsOnsite{RemoteRatio: 0.9}},
			badge: "Focus Monk",
		},
		{
			name:  "remote",
			stats: stats.CalendarStats{MeetingVsFocus: stats.MeetingVsFocus{MeetingMinutes: 60, FocusMinutes: 40, MeetingRatio: 0.6}, RemoteVsOnsite: stats.RemoteVsOnsite{RemoteRatio: 0.8}},
			badge: "Remote Hero",
		},
		{
			name: "routines",
			stats: stats.CalendarStats{
				MeetingVsFocus:   stats.MeetingVsFocus{MeetingMinutes: 60, FocusMinutes: 40, MeetingRatio: 0.6},
				RecurringSummary: make([]stats.RecurringSeries, 5),
			},
			badge: "Routine Master",
		},
		{
			name:  "empty",
			stats: stats.CalendarStats{},
			badge: "Calendar Explorer",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.badge, PersonaFor(tc.stats).Badge)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := stats.CalendarStats{
		TotalEventMinutes: 600,
		BusiestDay:        &stats.BusyDay{Date: "2025-03-04", TotalMinutes: 300},
		MeetingVsFocus:    stats.MeetingVsFocus{MeetingMinutes: 200, FocusMinutes: 400},
		RemoteVsOnsite:    stats.RemoteVsOnsite{RemoteMinutes: 0, OnsiteMinutes: 0},
	}

	got := Summarize(s, 2025)

	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 10, got.TotalHours)
	assert.Equal(t, 5, got.BusiestDayHours)
	assert.Equal(t, 33, got.MeetingPercent)
	assert.Equal(t, 67, got.FocusPercent)
	assert.Equal(t, 0, got.RemotePercent)
	assert.Equal(t, 100, got.OnsitePercent)
}

func keys(d Deck) []string {
	out := make([]string, 0, len(d.Cards))
	for _, c := range d.Cards {
		out = append(out, c.Key)
	}
	return out
}

func TestBuildEmptyStats(t *testing.T) {
	d := Build(stats.CalendarStats{FreeDays: stats.FreeDays{FreeDayCount: 365}}, 2025)

	assert.Equal(t, []string{
		"year-numbers", "back-to-back", "meetings-focus", "creature-habit", "free-days", "persona", "share",
	}, keys(d))
	assert.Equal(t, "365", d.Cards[4].Highlight)
	assert.Equal(t, "Time to recharge and breathe.", d.Cards[4].Description)
}

func TestBuildFullDeck(t *testing.T) {
	prime := 10
	s := stats.CalendarStats{
		TotalEventMinutes: 6000,
		BusiestDay:        &stats.BusyDay{Date: "2025-03-04", TotalMinutes: 480},
		WeekdayIntensity: []stats.WeekdayIntensity{
			{Weekday: 1, TotalMinutes: 1200},
			{Weekday: 2, TotalMinutes: 1800},
			{Weekday: 3, TotalMinutes: 1800},
		},
		PrimeTimeHour: &prime,
		TopCollaborators: []stats.CollaboratorStats{
			{Email: "ann@example.com", EventCount: 12, TotalMinutes: 900},
			{Email: "bob@example.com", DisplayName: "Bob", EventCount: 4, TotalMinutes: 120},
		},
		MeetingVsFocus: stats.MeetingVsFocus{MeetingMinutes: 4000, FocusMinutes: 2000, MeetingRatio: 4000.0 / 6000},
		RemoteVsOnsite: stats.RemoteVsOnsite{RemoteMinutes: 3000, OnsiteMinutes: 3000, RemoteRatio: 0.5},
		RecurringSummary: []stats.RecurringSeries{
			{Key: "standup", Count: 200, TotalMinutes: 3000},
			{Key: "planning", Count: 50, TotalMinutes: 1500},
			{Key: "retro", Count: 25, TotalMinutes: 1000},
			{Key: "lunch", Count: 10, TotalMinutes: 600},
		},
		BackToBack: stats.BackToBack{BackToBackDayCount: 1, DefinitionGapMinutes: 5},
	}

	d := Build(s, 2025)

	assert.Equal(t, []string{
		"year-numbers", "busiest-day", "prime-time", "weekday-vibe", "back-to-back",
		"meetings-focus", "remote-onsite", "partner", "crew", "routines",
		"creature-habit", "free-days", "persona", "share",
	}, keys(d))

	byKey := map[string]Card{}
	for _, c := range d.Cards {
		byKey[c.Key] = c
	}
	assert.Equal(t, "100h", byKey["year-numbers"].Highlight)
	assert.Equal(t, "March 4, 2025", byKey["busiest-day"].Subtitle)
	assert.Equal(t, "8h", byKey["busiest-day"].Highlight)
	assert.Equal(t, "10:00", byKey["prime-time"].Highlight)
	// Ties keep the earlier weekday.
	assert.Equal(t, "Tuesday", byKey["weekday-vibe"].Highlight)
	assert.Equal(t, "67% meetings / 33% focus", byKey["meetings-focus"].Highlight)
	assert.Equal(t, "ann", byKey["partner"].Highlight)
	assert.Equal(t, "15 hours together across 12 events.", byKey["partner"].Description)
	require.Len(t, byKey["crew"].Items, 2)
	assert.Equal(t, "Bob", byKey["crew"].Items[1].Label)
	require.Len(t, byKey["routines"].Items, 3)
	assert.Equal(t, "200× · 50h total", byKey["routines"].Items[0].Detail)
	assert.Equal(t, "25× · 16h 40m total", byKey["routines"].Items[2].Detail)
	assert.Equal(t, "4", byKey["creature-habit"].Highlight)
	assert.Equal(t, "Looks like you were fully booked!", byKey["free-days"].Description)
	assert.Equal(t, "Your 2025 Calendar Persona", byKey["persona"].Title)
	assert.Equal(t, "Calendar Explorer", byKey["persona"].Highlight)
	require.Len(t, byKey["share"].Items, 2)
	assert.Equal(t, "4d 4h", byKey["share"].Items[0].Detail)
}
