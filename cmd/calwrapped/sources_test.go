package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"calwrapped/internal/config"
)

func names(t *testing.T, conf *config.Config) []string {
	t.Helper()
	srcs, err := buildSources(context.Background(), conf, time.UTC, option.WithEndpoint("http://127.0.0.1:1/"))
	require.NoError(t, err)
	out := make([]string, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, s.Name())
	}
	return out
}

func TestBuildSources(t *testing.T) {
	conf := config.DefaultConfig()
	conf.CacheDir = t.TempDir()
	assert.Empty(t, names(t, conf))

	conf.ICS = []config.ICSConfig{{ID: "team", URL: "https://example.com/team.ics"}, {ID: "blank"}}
	assert.Equal(t, []string{"ics"}, names(t, conf))

	conf.Google.AccessToken = "tok"
	assert.Equal(t, []string{"google", "ics"}, names(t, conf))

	conf.ICS = nil
	assert.Equal(t, []string{"google"}, names(t, conf))
}

func TestBuildSourcesMissingTokenFile(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Google.AccessTokenFile = filepath.Join(t.TempDir(), "missing")

	_, err := buildSources(context.Background(), conf, time.UTC)
	assert.Error(t, err)
}
