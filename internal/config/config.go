package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cooldown scopes
const (
	CooldownScopeGlobal  = "global"
	CooldownScopeProject = "project"
)

// Config represents the application configuration
type Config struct {
	Marketplace struct {
		BaseURL           string   `yaml:"base_url"`
		Email             string   `yaml:"email"`
		Password          string   `yaml:"password"`
		TimeoutSeconds    int      `yaml:"timeout_seconds"`
		ProjectsFile      string   `yaml:"projects_file"`
		WatchListing      bool     `yaml:"watch_listing"`
		MonitoredProjects []string `yaml:"monitored_projects"`
		LoginDelay        struct {
			MinSeconds float64 `yaml:"min_seconds"`
			MaxSeconds float64 `yaml:"max_seconds"`
		} `yaml:"login_delay"`
	} `yaml:"marketplace"`
	Notification struct {
		Timezone        string `yaml:"timezone"`
		WorkHoursStart  string `yaml:"work_hours_start"`
		WorkHoursEnd    string `yaml:"work_hours_end"`
		NightHoursEnd   string `yaml:"night_hours_end"`
		CooldownMinutes int    `yaml:"cooldown_minutes"`
		CooldownScope   string `yaml:"cooldown_scope"`
	} `yaml:"notification"`
	Schedule struct {
		IntervalMinutes        int `yaml:"interval_minutes"`
		ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
	} `yaml:"schedule"`
	Notifiers struct {
		SendGrid struct {
			APIKey string `yaml:"api_key"`
			Host   string `yaml:"host"`
			From   string `yaml:"from"`
			To     string `yaml:"to"`
		} `yaml:"sendgrid"`
		SMTP struct {
			Host     string   `yaml:"host"`
			Port     int      `yaml:"port"`
			User     string   `yaml:"user"`
			Password string   `yaml:"password"`
			From     string   `yaml:"from"`
			To       []string `yaml:"to"`
		} `yaml:"smtp"`
		Teams struct {
			WebhookURL string `yaml:"webhook_url"`
		} `yaml:"teams"`
	} `yaml:"notifiers"`
	Display struct {
		URL string `yaml:"url"`
	} `yaml:"display"`
	Status struct {
		Listen         string   `yaml:"listen"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"status"`
	Log struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
		Stdout     bool   `yaml:"stdout"`
	} `yaml:"log"`
}

// Load reads the .env file, the configuration file and the environment.
// A missing configuration file is not an error: defaults and environment apply.
func Load(path string) *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error reading configuration file: %v", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		log.Fatalf("Error parsing configuration: %v", err)
	}
	applyEnv(cfg)
	trimCredentials(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Parse decodes YAML on top of the default configuration
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	cfg.Marketplace.BaseURL = "https://app.outlier.ai"
	cfg.Marketplace.TimeoutSeconds = 15
	cfg.Marketplace.ProjectsFile = "projects.json"
	cfg.Marketplace.LoginDelay.MinSeconds = 3
	cfg.Marketplace.LoginDelay.MaxSeconds = 5
	cfg.Notification.WorkHoursStart = "09:00"
	cfg.Notification.WorkHoursEnd = "17:30"
	cfg.Notification.NightHoursEnd = "23:59"
	cfg.Notification.CooldownMinutes = 60
	cfg.Notification.CooldownScope = CooldownScopeGlobal
	cfg.Schedule.IntervalMinutes = 2
	cfg.Schedule.ShutdownTimeoutSeconds = 5
	cfg.Notifiers.SMTP.Port = 587
	cfg.Log.File = "logs/task-monitor.log"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.MaxSizeMB = 10
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 30
	cfg.Log.Stdout = true
	return cfg
}

// applyEnv overrides config values with the environment variables that are set
func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Marketplace.Email, "EMAIL")
	setFromEnv(&cfg.Marketplace.Password, "PASSWORD")
	setFromEnv(&cfg.Notifiers.SendGrid.APIKey, "SENDGRID_API_KEY")
	setFromEnv(&cfg.Notifiers.SendGrid.From, "FROM_EMAIL")
	setFromEnv(&cfg.Notifiers.SendGrid.To, "TO_EMAIL")
	setFromEnv(&cfg.Display.URL, "WEB_APP_URL")
	setFromEnv(&cfg.Log.Level, "LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*dst = value
	}
}

func trimCredentials(cfg *Config) {
	originalEmail := cfg.Marketplace.Email
	originalPass := cfg.Marketplace.Password
	cfg.Marketplace.Email = strings.TrimSpace(cfg.Marketplace.Email)
	cfg.Marketplace.Password = strings.TrimSpace(cfg.Marketplace.Password)
	if cfg.Marketplace.Email != originalEmail {
		slog.Debug("Trimmed spaces from marketplace email in config.")
	}
	if cfg.Marketplace.Password != originalPass {
		slog.Debug("Trimmed spaces from marketplace password in config.")
	}
}

// Validate checks that required values are present and well formed
func (c *Config) Validate() error {
	if c.Marketplace.Email == "" || c.Marketplace.Password == "" {
		return errors.New("EMAIL and PASSWORD are required")
	}
	if c.Marketplace.TimeoutSeconds <= 0 {
		return errors.New("marketplace.timeout_seconds must be positive")
	}
	delay := c.Marketplace.LoginDelay
	if delay.MinSeconds < 0 || delay.MaxSeconds < delay.MinSeconds {
		return fmt.Errorf("invalid login delay range [%v, %v]", delay.MinSeconds, delay.MaxSeconds)
	}
	var clocks [3]time.Duration
	for i, clock := range []string{c.Notification.WorkHoursStart, c.Notification.WorkHoursEnd, c.Notification.NightHoursEnd} {
		d, err := ParseClock(clock)
		if err != nil {
			return err
		}
		clocks[i] = d
	}
	if clocks[0] > clocks[1] || clocks[1] > clocks[2] {
		return fmt.Errorf("notification hours must satisfy work_hours_start <= work_hours_end <= night_hours_end, got %s, %s, %s",
			c.Notification.WorkHoursStart, c.Notification.WorkHoursEnd, c.Notification.NightHoursEnd)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Notification.CooldownMinutes < 0 {
		return errors.New("notification.cooldown_minutes must not be negative")
	}
	switch c.Notification.CooldownScope {
	case CooldownScopeGlobal, CooldownScopeProject:
	default:
		return fmt.Errorf("unknown cooldown scope %q", c.Notification.CooldownScope)
	}
	if c.Schedule.IntervalMinutes <= 0 {
		return errors.New("schedule.interval_minutes must be positive")
	}
	if c.Schedule.ShutdownTimeoutSeconds <= 0 {
		return errors.New("schedule.shutdown_timeout_seconds must be positive")
	}
	return nil
}

// Location resolves the configured timezone, defaulting to the local one
func (c *Config) Location() (*time.Location, error) {
	if c.Notification.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Notification.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Notification.Timezone, err)
	}
	return loc, nil
}

// ParseClock converts "HH:MM" to the offset from midnight
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Interval is the delay between two poll cycles
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalMinutes) * time.Minute
}

// ShutdownTimeout bounds how long shutdown waits for a running cycle
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Schedule.ShutdownTimeoutSeconds) * time.Second
}

// HTTPTimeout bounds every outbound HTTP request
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Marketplace.TimeoutSeconds) * time.Second
}

// Cooldown is the minimum delay between two notifications
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Notification.CooldownMinutes) * time.Minute
}
