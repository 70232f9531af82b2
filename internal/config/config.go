package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables (CALWRAPPED_*) override the file.

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Local"
	defaultRefreshCron = "0 */6 * * *"
	defaultCacheDir    = "./var/ics-cache"
	defaultLogLevel    = "info"

	// EnvPrefix is the envconfig prefix for overrides.
	EnvPrefix = "CALWRAPPED"
)

var (
	ErrEmptyPath    = errors.New("config path is empty")
	ErrNilConfig    = errors.New("config is nil")
	ErrNoSources    = errors.New("config: neither a Google access token nor ICS feeds are configured")
	ErrWindowOrder  = errors.New("config: window.time_max is before window.time_min")
	ErrMissingToken = errors.New("config: google access token is empty")
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// GoogleConfig selects Google calendars and the bearer token used to read
// them. Acquiring/refreshing the token happens outside this program.
type GoogleConfig struct {
	CalendarIDs     []string `yaml:"calendar_ids" json:"calendar_ids"`
	AccessToken     string   `yaml:"access_token,omitempty" json:"-"`
	AccessTokenFile string   `yaml:"access_token_file,omitempty" json:"access_token_file,omitempty"`
}

// WindowConfig pins the aggregation window. Empty bounds default to the
// year ending at refresh time.
type WindowConfig struct {
	TimeMin string `yaml:"time_min,omitempty" json:"time_min,omitempty"`
	TimeMax string `yaml:"time_max,omitempty" json:"time_max,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone whose calendar days, weekdays and
	// hours the statistics are bucketed in. "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "0 */6 * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Window WindowConfig `yaml:"window" json:"window"`

	Google GoogleConfig `yaml:"google" json:"google"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// SelfEmail identifies the user among ICS attendees.
	SelfEmail string `yaml:"self_email" json:"self_email"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// envOverrides lists the variables read with the CALWRAPPED_ prefix.
// Empty values leave the file setting untouched.
type envOverrides struct {
	Listen                string   `envconfig:"LISTEN"`
	Timezone              string   `envconfig:"TIMEZONE"`
	Refresh               string   `envconfig:"REFRESH"`
	LogLevel              string   `envconfig:"LOG_LEVEL"`
	TimeMin               string   `envconfig:"TIME_MIN"`
	TimeMax               string   `envconfig:"TIME_MAX"`
	GoogleAccessToken     string   `envconfig:"GOOGLE_ACCESS_TOKEN"`
	GoogleAccessTokenFile string   `envconfig:"GOOGLE_ACCESS_TOKEN_FILE"`
	GoogleCalendarIDs     []string `envconfig:"GOOGLE_CALENDAR_IDS"`
	SelfEmail             string   `envconfig:"SELF_EMAIL"`
	CacheDir              string   `envconfig:"CACHE_DIR"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		RefreshCron: defaultRefreshCron,
		LogLevel:    defaultLogLevel,
		Google: GoogleConfig{
			CalendarIDs: []string{"primary"},
		},
		ICS:       []ICSConfig{},
		CacheDir:  defaultCacheDir,
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if len(c.Google.CalendarIDs) == 0 {
		c.Google.CalendarIDs = []string{"primary"}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		// ID falls back to Name, then URL.
		if c.ICS[i].ID == "" {
			if c.ICS[i].Name != "" {
				c.ICS[i].ID = c.ICS[i].Name
			} else {
				c.ICS[i].ID = c.ICS[i].URL
			}
		}
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
}

// ApplyEnv overrides fields from CALWRAPPED_* environment variables.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("config: read environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Listen, env.Listen)
	set(&c.Timezone, env.Timezone)
	set(&c.RefreshCron, env.Refresh)
	set(&c.LogLevel, env.LogLevel)
	set(&c.Window.TimeMin, env.TimeMin)
	set(&c.Window.TimeMax, env.TimeMax)
	set(&c.Google.AccessToken, env.GoogleAccessToken)
	set(&c.Google.AccessTokenFile, env.GoogleAccessTokenFile)
	set(&c.SelfEmail, env.SelfEmail)
	set(&c.CacheDir, env.CacheDir)
	if len(env.GoogleCalendarIDs) > 0 {
		c.Google.CalendarIDs = env.GoogleCalendarIDs
	}
	return nil
}

// Resolved holds the parsed forms of the string settings Validate checks.
type Resolved struct {
	Location *time.Location
	// TimeMin and TimeMax are zero when unset.
	TimeMin time.Time
	TimeMax time.Time
}

// Resolve validates the config and returns its parsed timezone and window.
func (c *Config) Resolve() (Resolved, error) {
	if !c.GoogleEnabled() && len(c.ICS) == 0 {
		return Resolved{}, ErrNoSources
	}
	loc, err := c.LoadLocation()
	if err != nil {
		return Resolved{}, err
	}
	tMin, tMax, err := c.WindowBounds()
	if err != nil {
		return Resolved{}, err
	}
	if !tMin.IsZero() && !tMax.IsZero() && tMax.Before(tMin) {
		return Resolved{}, ErrWindowOrder
	}
	return Resolved{Location: loc, TimeMin: tMin, TimeMax: tMax}, nil
}

// Validate checks cross-field constraints that Normalize cannot repair.
func (c *Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// GoogleEnabled reports whether a Google token (inline or file) is set.
func (c *Config) GoogleEnabled() bool {
	return c.Google.AccessToken != "" || c.Google.AccessTokenFile != ""
}

// GoogleAccessToken returns the inline token, or the trimmed contents of
// the token file.
func (c *Config) GoogleAccessToken() (string, error) {
	if c.Google.AccessToken != "" {
		return c.Google.AccessToken, nil
	}
	if c.Google.AccessTokenFile == "" {
		return "", ErrMissingToken
	}
	data, err := os.ReadFile(c.Google.AccessTokenFile)
	if err != nil {
		return "", fmt.Errorf("config: read access token file: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// LoadLocation resolves Timezone.
func (c *Config) LoadLocation() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == defaultTimezone {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WindowBounds parses the RFC 3339 window bounds. Unset bounds are zero.
func (c *Config) WindowBounds() (timeMin, timeMax time.Time, err error) {
	if c.Window.TimeMin != "" {
		if timeMin, err = time.Parse(time.RFC3339, c.Window.TimeMin); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config: window.time_min: %w", err)
		}
	}
	if c.Window.TimeMax != "" {
		if timeMax, err = time.Parse(time.RFC3339, c.Window.TimeMax); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config: window.time_max: %w", err)
		}
	}
	return timeMin, timeMax, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied by the caller via ApplyEnv so that
// secrets passed through the environment are never written back to disk.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return ErrNilConfig
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calwrapped-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
