package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ViewsConfig struct {
	Enabled []string `mapstructure:"enabled"`
	Default string   `mapstructure:"default"`
}

type FeaturesConfig struct {
	AllDayEvents bool `mapstructure:"all_day_events"`
	Colors       bool `mapstructure:"colors"`
}

type CalendarConfig struct {
	RoutePrefix  string         `mapstructure:"route_prefix"`
	Timezone     string         `mapstructure:"timezone"`
	DefaultColor string         `mapstructure:"default_color"`
	Views        ViewsConfig    `mapstructure:"views"`
	Features     FeaturesConfig `mapstructure:"features"`
}

type DashboardConfig struct {
	UpcomingLimit int `mapstructure:"upcoming_limit"`
	RecentLimit   int `mapstructure:"recent_limit"`
	ChartMonths   int `mapstructure:"chart_months"`
}

type GoogleConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	CalendarID     string         `mapstructure:"calendar_id"`
	ServiceAccount map[string]any `mapstructure:"service_account"`
}

type WebhooksConfig struct {
	URLs     []string `mapstructure:"urls"`
	Attempts uint     `mapstructure:"attempts"`
	Workers  int      `mapstructure:"workers"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Google    GoogleConfig    `mapstructure:"google"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
}

// supportedViews lists the calendar views this service can render.
var supportedViews = []string{"month"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "calendar.db")
	v.SetDefault("calendar.route_prefix", "/events")
	v.SetDefault("calendar.timezone", "UTC")
	v.SetDefault("calendar.default_color", "#3788d8")
	v.SetDefault("calendar.views.enabled", []string{"month"})
	v.SetDefault("calendar.views.default", "month")
	v.SetDefault("calendar.features.all_day_events", true)
	v.SetDefault("calendar.features.colors", true)
	v.SetDefault("dashboard.upcoming_limit", 5)
	v.SetDefault("dashboard.recent_limit", 5)
	v.SetDefault("dashboard.chart_months", 6)
	v.SetDefault("google.enabled", false)
	v.SetDefault("webhooks.attempts", 3)
	v.SetDefault("webhooks.workers", 10)
}

// Load reads the TOML config at path, or config.toml in the working directory
// when path is empty. A missing file leaves the defaults in place. Every key
// can be overridden from the environment, e.g. CALENDAR_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("calendar")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	// Older config files nest the ID under [google.calendar].
	if id := v.GetString("google.calendar.calendar_id"); id != "" {
		cfg.Google.CalendarID = id
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills zero values and checks the settings that would otherwise
// fail late at request time.
func (c *Config) Normalize() error {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "calendar.db"
	}

	prefix := "/" + strings.Trim(c.Calendar.RoutePrefix, "/")
	if prefix == "/" {
		prefix = "/events"
	}
	c.Calendar.RoutePrefix = prefix

	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("invalid calendar.timezone %q: %w", c.Calendar.Timezone, err)
	}
	if c.Calendar.DefaultColor == "" {
		c.Calendar.DefaultColor = "#3788d8"
	}

	if len(c.Calendar.Views.Enabled) == 0 {
		c.Calendar.Views.Enabled = []string{"month"}
	}
	for _, view := range c.Calendar.Views.Enabled {
		if !slices.Contains(supportedViews, view) {
			return fmt.Errorf("unsupported calendar view %q", view)
		}
	}
	if c.Calendar.Views.Default == "" {
		c.Calendar.Views.Default = c.Calendar.Views.Enabled[0]
	}
	if !slices.Contains(c.Calendar.Views.Enabled, c.Calendar.Views.Default) {
		return fmt.Errorf("default view %q is not enabled", c.Calendar.Views.Default)
	}

	if c.Dashboard.UpcomingLimit <= 0 {
		c.Dashboard.UpcomingLimit = 5
	}
	if c.Dashboard.RecentLimit <= 0 {
		c.Dashboard.RecentLimit = 5
	}
	if c.Dashboard.ChartMonths <= 0 {
		c.Dashboard.ChartMonths = 6
	}

	if c.Google.Enabled && c.Google.CalendarID == "" {
		return errors.New("google calendar ID is not configured")
	}

	if c.Webhooks.Attempts == 0 {
		c.Webhooks.Attempts = 3
	}
	if c.Webhooks.Workers <= 0 {
		c.Webhooks.Workers = 10
	}
	return nil
}

// Location returns the configured display timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
