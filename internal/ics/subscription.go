package ics

import (
	"context"
	"fmt"
	"time"

	appLog "calwrapped/internal/log"
	"calwrapped/internal/model"
)

// Subscription turns a set of ICS feeds into expanded calendar events for a
// time window. It satisfies pipeline.Source.
type Subscription struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
}

// NewSubscription wires feeds to a fetcher. loc is the display timezone
// timed occurrences are expressed in (nil means time.Local); it also reads
// floating times of feeds that set no Location of their own.
func NewSubscription(fetcher *Fetcher, sources []Source, loc *time.Location) *Subscription {
	if loc == nil {
		loc = time.Local
	}
	withLoc := make([]Source, len(sources))
	for i, src := range sources {
		if src.Location == nil {
			src.Location = loc
		}
		withLoc[i] = src
	}
	return &Subscription{fetcher: fetcher, sources: withLoc, loc: loc}
}

func (s *Subscription) Name() string { return "ics" }

// Events fetches, parses and expands every feed. Any feed that cannot be
// fetched or parsed fails the whole call; partial results are discarded.
func (s *Subscription) Events(ctx context.Context, w model.Window) ([]model.CalendarEvent, error) {
	if len(s.sources) == 0 {
		return []model.CalendarEvent{}, nil
	}

	results, err := s.fetcher.FetchAll(ctx, s.sources)
	if err != nil {
		return nil, err
	}

	parsed := make([]ParsedEvent, 0)
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			return nil, fmt.Errorf("ics %s: parse: %w", res.Source.ID, err)
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      w.TimeMin,
		RangeEnd:        w.TimeMax,
	})
	if err != nil {
		return nil, err
	}

	appLog.Info("ics events expanded",
		"feeds", len(s.sources),
		"occurrences", len(expanded.Occurrences),
		"truncated_uids", len(expanded.TruncatedEvents),
	)
	return expanded.Occurrences, nil
}
