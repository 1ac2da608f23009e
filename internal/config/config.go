package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all campusnerd configuration.
type Config struct {
	// LLM backend
	LLM LLMConfig `yaml:"llm"`

	// Browser used for extraction
	Browser BrowserConfig `yaml:"browser"`

	// Learning dashboard views and extraction policy
	Dashboard DashboardConfig `yaml:"dashboard"`

	// Reasoning loop limits
	Agent AgentConfig `yaml:"agent"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // ollama, openai
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// BrowserConfig configures the Chrome instance that holds the student's session.
type BrowserConfig struct {
	// DebuggerURL attaches to an already running, logged-in Chrome.
	DebuggerURL string `yaml:"debugger_url"`
	// Bin overrides the Chrome binary used when launching.
	Bin string `yaml:"bin"`
	// UserDataDir is the persistent profile carrying the login cookies.
	UserDataDir       string   `yaml:"user_data_dir"`
	Headless          bool     `yaml:"headless"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	AcquireTimeout    string   `yaml:"acquire_timeout"`
	Flags             []string `yaml:"flags"`
}

// DashboardConfig describes the views scraped by the extraction layer.
type DashboardConfig struct {
	CoursesURL    string   `yaml:"courses_url"`
	TimelineURL   string   `yaml:"timeline_url"`
	LoginMarkers  []string `yaml:"login_markers"`
	Timezone      string   `yaml:"timezone"`
	RetryAttempts int      `yaml:"retry_attempts"`
	RetryInitial  string   `yaml:"retry_initial"`
	RetryMax      string   `yaml:"retry_max"`
	SettleTimeout string   `yaml:"settle_timeout"`
	SettlePoll    string   `yaml:"settle_poll"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxSteps int    `yaml:"max_steps"`
	Timeout  string `yaml:"timeout"` // empty = no wall-clock limit
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, text
	Categories map[string]bool `yaml:"categories"`
	// AuditFile receives a JSON line per loop event; empty disables it.
	AuditFile string `yaml:"audit_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "ollama",
			Endpoint:    "http://localhost:11434",
			Model:       "mistral",
			Temperature: 0,
			Timeout:     "120s",
		},

		Browser: BrowserConfig{
			UserDataDir:       filepath.Join(".campus", "profile"),
			Headless:          false,
			NavigationTimeout: "30s",
			AcquireTimeout:    "2m",
		},

		Dashboard: DashboardConfig{
			CoursesURL:  "https://learning.devinci.fr/my/",
			TimelineURL: "https://learning.devinci.fr/my/",
			LoginMarkers: []string{
				"/login/",
				"/adfs/",
				"login.microsoftonline.com",
			},
			Timezone:      "Europe/Paris",
			RetryAttempts: 3,
			RetryInitial:  "500ms",
			RetryMax:      "5s",
			SettleTimeout: "15s",
			SettlePoll:    "250ms",
		},

		Agent: AgentConfig{
			MaxSteps: 6,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// OLLAMA_HOST is what the ollama CLI itself honours; the campus-specific
	// variable wins when both are set.
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.LLM.Endpoint = host
	}
	if endpoint := os.Getenv("CAMPUS_LLM_ENDPOINT"); endpoint != "" {
		c.LLM.Endpoint = endpoint
	}
	if provider := os.Getenv("CAMPUS_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = strings.ToLower(provider)
	}
	if model := os.Getenv("CAMPUS_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if url := os.Getenv("CAMPUS_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if dir := os.Getenv("CAMPUS_USER_DATA_DIR"); dir != "" {
		c.Browser.UserDataDir = dir
	}

	if url := os.Getenv("CAMPUS_COURSES_URL"); url != "" {
		c.Dashboard.CoursesURL = url
	}
	if url := os.Getenv("CAMPUS_TIMELINE_URL"); url != "" {
		c.Dashboard.TimelineURL = url
	}
	if tz := os.Getenv("CAMPUS_TIMEZONE"); tz != "" {
		c.Dashboard.Timezone = tz
	}

	if raw := os.Getenv("CAMPUS_MAX_STEPS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.Agent.MaxSteps = n
		}
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetNavigationTimeout returns the per-navigation browser timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetAcquireTimeout returns how long a question waits for the browsing context.
func (c *Config) GetAcquireTimeout() time.Duration {
	return parseDuration(c.Browser.AcquireTimeout, 2*time.Minute)
}

// GetRetryInitial returns the first backoff interval.
func (c *Config) GetRetryInitial() time.Duration {
	return parseDuration(c.Dashboard.RetryInitial, 500*time.Millisecond)
}

// GetRetryMax returns the backoff interval ceiling.
func (c *Config) GetRetryMax() time.Duration {
	return parseDuration(c.Dashboard.RetryMax, 5*time.Second)
}

// GetSettleTimeout returns how long extraction waits for loading placeholders.
func (c *Config) GetSettleTimeout() time.Duration {
	return parseDuration(c.Dashboard.SettleTimeout, 15*time.Second)
}

// GetSettlePoll returns the placeholder polling interval.
func (c *Config) GetSettlePoll() time.Duration {
	return parseDuration(c.Dashboard.SettlePoll, 250*time.Millisecond)
}

// GetAgentTimeout returns the loop wall-clock limit; zero means none.
func (c *Config) GetAgentTimeout() time.Duration {
	if strings.TrimSpace(c.Agent.Timeout) == "" {
		return 0
	}
	return parseDuration(c.Agent.Timeout, 0)
}

// Location resolves the dashboard timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Dashboard.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Dashboard.Timezone, err)
	}
	return loc, nil
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"ollama", "openai"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if strings.TrimSpace(c.LLM.Endpoint) == "" {
		return fmt.Errorf("llm.endpoint must be set")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("llm.model must be set")
	}
	if c.Dashboard.CoursesURL == "" || c.Dashboard.TimelineURL == "" {
		return fmt.Errorf("dashboard.courses_url and dashboard.timeline_url must be set")
	}
	if c.Dashboard.RetryAttempts < 1 {
		return fmt.Errorf("dashboard.retry_attempts must be >= 1")
	}
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent.max_steps must be >= 1")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
