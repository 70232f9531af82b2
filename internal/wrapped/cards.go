package wrapped

import (
	"fmt"
	"strconv"

	"calwrapped/internal/stats"
)

// Persona is the one-line characterization shown at the end of the deck.
type Persona struct {
	Badge       string `json:"badge"`
	Description string `json:"description"`
}

// Summary holds the headline numbers derived from a snapshot.
type Summary struct {
	Year            int     `json:"year"`
	TotalHours      int     `json:"totalHours"`
	BusiestDayHours int     `json:"busiestDayHours"`
	MeetingPercent  int     `json:"meetingPercent"`
	FocusPercent    int     `json:"focusPercent"`
	RemotePercent   int     `json:"remotePercent"`
	OnsitePercent   int     `json:"onsitePercent"`
	Persona         Persona `json:"persona"`
}

// Item is one ranked row inside a card (crew member, routine).
type Item struct {
	Rank   int    `json:"rank"`
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Value  string `json:"value"`
}

// Card is the data behind one slide.
type Card struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Highlight   string `json:"highlight,omitempty"`
	Description string `json:"description,omitempty"`
	Items       []Item `json:"items,omitempty"`
}

// Deck is the full card sequence for one snapshot.
type Deck struct {
	Summary Summary `json:"summary"`
	Cards   []Card  `json:"cards"`
}

const (
	topRecurringCards = 3
	meetingHeavy      = 0.7
	remoteHeavy       = 0.75
	routineSeries     = 5
)

// PersonaFor picks the first matching persona, in priority order.
func PersonaFor(s stats.CalendarStats) Persona {
	mf, ro := s.MeetingVsFocus, s.RemoteVsOnsite
	switch {
	case mf.MeetingRatio > meetingHeavy:
		return Persona{
			Badge:       "Meeting Warrior",
			Description: "You thrive in collaboration, spending most of your time connecting with others.",
		}
	case mf.FocusMinutes > mf.MeetingMinutes:
		return Persona{
			Badge:       "Focus Monk",
			Description: "You guard your time fiercely, carving out space for deep, focused work.",
		}
	case ro.RemoteRatio > remoteHeavy:
		return Persona{
			Badge:       "Remote Hero",
			Description: "Your office is wherever you are. You've mastered the art of remote work.",
		}
	case len(s.RecurringSummary) >= routineSeries:
		return Persona{
			Badge:       "Routine Master",
			Description: "You've built a stable rhythm with consistent routines that keep you on track.",
		}
	default:
		return Persona{
			Badge:       "Calendar Explorer",
			Description: "Every day brings something new. You keep your schedule dynamic and flexible.",
		}
	}
}

// Summarize computes the headline numbers for year.
func Summarize(s stats.CalendarStats, year int) Summary {
	out := Summary{
		Year:           year,
		TotalHours:     MinutesToHours(s.TotalEventMinutes),
		MeetingPercent: percent(s.MeetingVsFocus.MeetingMinutes, s.MeetingVsFocus.FocusMinutes),
		RemotePercent:  percent(s.RemoteVsOnsite.RemoteMinutes, s.RemoteVsOnsite.OnsiteMinutes),
		Persona:        PersonaFor(s),
	}
	out.FocusPercent = 100 - out.MeetingPercent
	out.OnsitePercent = 100 - out.RemotePercent
	if s.BusiestDay != nil {
		out.BusiestDayHours = MinutesToHours(s.BusiestDay.TotalMinutes)
	}
	return out
}

// Build assembles the card deck. Cards whose data is missing (no busiest
// day, no collaborators, ...) are left out.
func Build(s stats.CalendarStats, year int) Deck {
	sum := Summarize(s, year)
	cards := make([]Card, 0, 14)

	cards = append(cards, Card{
		Key:         "year-numbers",
		Title:       "Your Year in Numbers",
		Subtitle:    fmt.Sprintf("In %d, you spent...", year),
		Highlight:   strconv.Itoa(sum.TotalHours) + "h",
		Description: "...inside your calendar. Let's dive into the details.",
	})

	if s.BusiestDay != nil {
		cards = append(cards, Card{
			Key:         "busiest-day",
			Title:       "Your Busiest Day",
			Subtitle:    FormatDay(s.BusiestDay.Date),
			Highlight:   strconv.Itoa(sum.BusiestDayHours) + "h",
			Description: "That was your marathon day, packed from start to finish.",
		})
	}

	if s.PrimeTimeHour != nil {
		cards = append(cards, Card{
			Key:         "prime-time",
			Title:       "Your Prime Time",
			Subtitle:    "Your calendar comes alive at...",
			Highlight:   FormatHour(*s.PrimeTimeHour),
			Description: "This is when you're most active and engaged.",
		})
	}

	if len(s.WeekdayIntensity) > 0 {
		busiest := s.WeekdayIntensity[0]
		for _, w := range s.WeekdayIntensity[1:] {
			if w.TotalMinutes > busiest.TotalMinutes {
				busiest = w
			}
		}
		cards = append(cards, Card{
			Key:         "weekday-vibe",
			Title:       "Your Weekday Vibe",
			Subtitle:    "Your heaviest day of the week is...",
			Highlight:   WeekdayName(busiest.Weekday),
			Description: fmt.Sprintf("With %d hours of scheduled time.", MinutesToHours(busiest.TotalMinutes)),
		})
	}

	b2b := s.BackToBack.BackToBackDayCount
	cards = append(cards, Card{
		Key:         "back-to-back",
		Title:       "Back-to-Back Marathons",
		Subtitle:    "Days with almost no break...",
		Highlight:   strconv.Itoa(b2b),
		Description: pick(b2b > 0, "You powered through with barely a moment to breathe.", "You managed to keep breathing room in your schedule!"),
	})

	cards = append(cards, Card{
		Key:       "meetings-focus",
		Title:     "Meetings vs Focus",
		Subtitle:  "How you split your time...",
		Highlight: fmt.Sprintf("%d%% meetings / %d%% focus", sum.MeetingPercent, sum.FocusPercent),
	})

	if s.RemoteVsOnsite.RemoteMinutes+s.RemoteVsOnsite.OnsiteMinutes > 0 {
		cards = append(cards, Card{
			Key:       "remote-onsite",
			Title:     "Remote or On-site?",
			Subtitle:  "Where you worked from...",
			Highlight: fmt.Sprintf("%d%% remote / %d%% on-site", sum.RemotePercent, sum.OnsitePercent),
		})
	}

	if len(s.TopCollaborators) > 0 {
		top := s.TopCollaborators[0]
		cards = append(cards, Card{
			Key:         "partner",
			Title:       "Your Partner in Crime",
			Subtitle:    "You spent the most time with...",
			Highlight:   collaboratorName(top),
			Description: fmt.Sprintf("%d hours together across %d events.", MinutesToHours(top.TotalMinutes), top.EventCount),
		})

		crew := Card{Key: "crew", Title: "Your Crew", Subtitle: "Your top collaborators this year..."}
		for i, c := range s.TopCollaborators {
			crew.Items = append(crew.Items, Item{
				Rank:   i + 1,
				Label:  collaboratorName(c),
				Detail: fmt.Sprintf("%d events", c.EventCount),
				Value:  strconv.Itoa(MinutesToHours(c.TotalMinutes)) + "h",
			})
		}
		cards = append(cards, crew)
	}

	if len(s.RecurringSummary) > 0 {
		routines := Card{Key: "routines", Title: "Your Routines", Subtitle: "Your most consistent meetings..."}
		for i, r := range s.RecurringSummary {
			if i == topRecurringCards {
				break
			}
			routines.Items = append(routines.Items, Item{
				Rank:   i + 1,
				Label:  r.Key,
				Detail: fmt.Sprintf("%d× · %s total", r.Count, FormatMinutesToHours(r.TotalMinutes)),
			})
		}
		cards = append(cards, routines)
	}

	n := len(s.RecurringSummary)
	cards = append(cards, Card{
		Key:         "creature-habit",
		Title:       "Creature of Habit?",
		Subtitle:    "You kept...",
		Highlight:   strconv.Itoa(n),
		Description: pick(n == 1, "stable routine in your calendar.", "stable routines in your calendar."),
	})

	free := s.FreeDays.FreeDayCount
	cards = append(cards, Card{
		Key:         "free-days",
		Title:       "Days Completely Free",
		Subtitle:    "Days with no events at all...",
		Highlight:   strconv.Itoa(free),
		Description: pick(free > 0, "Time to recharge and breathe.", "Looks like you were fully booked!"),
	})

	cards = append(cards, Card{
		Key:         "persona",
		Title:       fmt.Sprintf("Your %d Calendar Persona", year),
		Highlight:   sum.Persona.Badge,
		Description: sum.Persona.Description,
	})

	share := Card{
		Key:       "share",
		Title:     "Share Your Calendar Wrapped",
		Subtitle:  fmt.Sprintf("%d, a year in review", year),
		Highlight: sum.Persona.Badge,
		Items: []Item{
			{Rank: 1, Label: "Total time", Detail: FormatMinutesToDays(s.TotalEventMinutes), Value: strconv.Itoa(sum.TotalHours) + "h"},
		},
	}
	if s.BusiestDay != nil {
		share.Items = append(share.Items, Item{Rank: 2, Label: "Busiest day", Detail: FormatDay(s.BusiestDay.Date), Value: strconv.Itoa(sum.BusiestDayHours) + "h"})
	}
	cards = append(cards, share)

	return Deck{Summary: sum, Cards: cards}
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
