package main

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"

	"calwrapped/internal/config"
	"calwrapped/internal/gcal"
	"calwrapped/internal/ics"
	appLog "calwrapped/internal/log"
	"calwrapped/internal/pipeline"
)

// buildSources turns the configured Google calendars and ICS feeds into
// pipeline sources, Google first.
func buildSources(ctx context.Context, conf *config.Config, loc *time.Location, gopts ...option.ClientOption) ([]pipeline.Source, error) {
	sources := make([]pipeline.Source, 0, 2)

	if conf.GoogleEnabled() {
		token, err := conf.GoogleAccessToken()
		if err != nil {
			return nil, err
		}
		f, err := gcal.NewStaticFetcher(ctx, token, conf.Google.CalendarIDs, gopts...)
		if err != nil {
			return nil, fmt.Errorf("google calendar client: %w", err)
		}
		sources = append(sources, f)
	}

	feeds := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			appLog.Info("skipping ICS source without url", "id", c.ID)
			continue
		}
		feeds = append(feeds, ics.Source{ID: c.ID, URL: c.URL, SelfEmail: conf.SelfEmail})
	}
	if len(feeds) > 0 {
		sources = append(sources, ics.NewSubscription(ics.NewFetcher(conf.CacheDir, nil), feeds, loc))
	}

	return sources, nil
}
