// Package gcal retrieves events from the Google Calendar v3 API and
// normalizes them into model.CalendarEvent values.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	appLog "calwrapped/internal/log"
	"calwrapped/internal/model"
)

const (
	// PrimaryCalendarID is used when no calendar ids are configured.
	PrimaryCalendarID = "primary"

	// pageSize is the largest page the Events.List endpoint accepts.
	pageSize = 2500
)

// Fetcher lists events of a fixed set of calendars.
type Fetcher struct {
	svc         *calendar.Service
	calendarIDs []string
}

// NewFetcher builds a Fetcher on top of the calendar API client. Auth is
// whatever opts provide (token source, HTTP client, ...).
func NewFetcher(ctx context.Context, calendarIDs []string, opts ...option.ClientOption) (*Fetcher, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcal: create calendar service: %w", err)
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{PrimaryCalendarID}
	}
	return &Fetcher{svc: svc, calendarIDs: calendarIDs}, nil
}

// NewStaticFetcher authenticates every request with a bearer access token
// obtained elsewhere. Token refresh is the caller's problem.
func NewStaticFetcher(ctx context.Context, accessToken string, calendarIDs []string, opts ...option.ClientOption) (*Fetcher, error) {
	if accessToken == "" {
		return nil, errors.New("gcal: missing access token")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	return NewFetcher(ctx, calendarIDs, opts...)
}

func (f *Fetcher) Name() string { return "google" }

// Events fetches every configured calendar in order. The first calendar
// that fails aborts the call; nothing fetched so far is returned.
func (f *Fetcher) Events(ctx context.Context, w model.Window) ([]model.CalendarEvent, error) {
	all := make([]model.CalendarEvent, 0)
	for _, id := range f.calendarIDs {
		events, err := f.FetchCalendar(ctx, id, w.TimeMin, w.TimeMax)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}

// FetchCalendar lists all pages of one calendar's expanded instances in
// [timeMin, timeMax), dropping cancelled events.
func (f *Fetcher) FetchCalendar(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]model.CalendarEvent, error) {
	call := f.svc.Events.List(calendarID).
		SingleEvents(true).
		MaxResults(pageSize).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339))

	events := make([]model.CalendarEvent, 0)
	pages, cancelled := 0, 0
	err := call.Pages(ctx, func(page *calendar.Events) error {
		pages++
		for _, item := range page.Items {
			if item == nil {
				continue
			}
			if item.Status == model.StatusCancelled {
				cancelled++
				continue
			}
			events = append(events, normalize(calendarID, item))
		}
		return nil
	})
	if err != nil {
		appLog.Error("gcal fetch failed", err, "calendar_id", calendarID, "pages", pages)
		return nil, fmt.Errorf("google calendar %s: %w", calendarID, err)
	}

	appLog.Info("gcal fetch success",
		"calendar_id", calendarID,
		"pages", pages,
		"events", len(events),
		"cancelled", cancelled,
	)
	return events, nil
}

func normalize(calendarID string, item *calendar.Event) model.CalendarEvent {
	ev := model.CalendarEvent{
		ID:          item.Id,
		CalendarID:  calendarID,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
		Recurrence:  item.Recurrence,
		Start:       eventTime(item.Start),
		End:         eventTime(item.End),
	}
	if item.Organizer != nil {
		ev.Organizer = item.Organizer.Email
	}
	if item.Creator != nil {
		ev.Creator = item.Creator.Email
	}
	for _, a := range item.Attendees {
		if a == nil {
			continue
		}
		ev.Attendees = append(ev.Attendees, model.Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			Self:           a.Self,
			ResponseStatus: a.ResponseStatus,
		})
	}
	return ev
}

func eventTime(dt *calendar.EventDateTime) model.EventTime {
	if dt == nil {
		return model.EventTime{}
	}
	return model.EventTime{Date: dt.Date, DateTime: dt.DateTime}
}
