package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for hadeck.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
	Deck          DeckConfig          `yaml:"deck"`
	ReturnToHome  ReturnToHomeConfig  `yaml:"return_to_home"`
	Logging       LoggingConfig       `yaml:"logging"`
	History       HistoryConfig       `yaml:"history"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Status        StatusConfig        `yaml:"status"`
	API           APIConfig           `yaml:"api"`
}

// HomeAssistantConfig contains the websocket connection settings for the
// Home Assistant instance hadeck synchronizes against.
type HomeAssistantConfig struct {
	// URL is the websocket endpoint, e.g. "ws://homeassistant.local:8123/api/websocket".
	// http/https URLs are accepted and rewritten to ws/wss.
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// PingInterval is the keepalive ping period in seconds.
	PingInterval int `yaml:"ping_interval"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection backoff settings.
type ReconnectConfig struct {
	// InitialDelay is the first retry delay in seconds.
	InitialDelay int `yaml:"initial_delay"`
	// MaxDelay caps the exponential backoff, in seconds.
	MaxDelay int `yaml:"max_delay"`
}

// DeckConfig contains the control-surface settings.
type DeckConfig struct {
	// LayoutFile is the path to the page layout YAML (pages, buttons, dials).
	LayoutFile string `yaml:"layout_file"`

	// Brightness is the initial panel brightness percentage (0-100).
	Brightness int `yaml:"brightness"`

	// LongPressMS is the press duration, in milliseconds, above which a
	// delayed button or touch gesture counts as a long press.
	LongPressMS int `yaml:"long_press_ms"`

	// DragThresholdPX is the net horizontal touch displacement, in pixels,
	// required for a drag gesture to switch pages.
	DragThresholdPX int `yaml:"drag_threshold_px"`
}

// ReturnToHomeConfig contains the inactivity auto-return settings.
// When Page is empty the return-to-home timer is disabled globally.
type ReturnToHomeConfig struct {
	// Page is the name of the home page to return to.
	Page string `yaml:"page"`
	// Duration is the inactivity window in seconds. Fractional values are
	// accepted (the original acceptance tests run sub-second windows).
	Duration float64 `yaml:"duration"`
}

// Enabled reports whether the return-to-home timer is configured.
func (c ReturnToHomeConfig) Enabled() bool {
	return c.Page != "" && c.Duration > 0
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HistoryConfig contains the optional sqlite state-change recorder settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// MaxRows bounds the table size; oldest rows are pruned past it.
	MaxRows int `yaml:"max_rows"`
}

// TelemetryConfig contains the optional InfluxDB metric settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// StatusConfig contains the optional MQTT presence publisher settings.
type StatusConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  StatusBrokerConfig `yaml:"broker"`
	Auth    StatusAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
	// TopicPrefix is prepended to the status and page topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// StatusBrokerConfig contains MQTT broker connection details.
type StatusBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// StatusAuthConfig contains MQTT authentication credentials.
type StatusAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIConfig contains the optional local HTTP API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	// BearerToken, when set, is required on every /api request.
	BearerToken string `yaml:"bearer_token"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables (HADECK_*)
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		HomeAssistant: HomeAssistantConfig{
			URL:          "ws://homeassistant.local:8123/api/websocket",
			PingInterval: 30,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Deck: DeckConfig{
			LayoutFile:      "configs/layout.yaml",
			Brightness:      80,
			LongPressMS:     500,
			DragThresholdPX: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		History: HistoryConfig{
			Path:    "hadeck-history.db",
			MaxRows: 10000,
		},
		Telemetry: TelemetryConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Status: StatusConfig{
			Broker: StatusBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hadeck-" + uuid.NewString()[:8],
			},
			QoS:         1,
			TopicPrefix: "hadeck",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8139,
		},
	}
}

// applyEnvOverrides applies HADECK_* environment variables over the
// loaded configuration. Only operationally sensitive values are
// overridable; structural settings stay in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HADECK_HA_URL"); v != "" {
		cfg.HomeAssistant.URL = v
	}
	if v := os.Getenv("HADECK_HA_TOKEN"); v != "" {
		cfg.HomeAssistant.Token = v
	}
	if v := os.Getenv("HADECK_LAYOUT_FILE"); v != "" {
		cfg.Deck.LayoutFile = v
	}
	if v := os.Getenv("HADECK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HADECK_API_TOKEN"); v != "" {
		cfg.API.BearerToken = v
	}
	if v := os.Getenv("HADECK_MQTT_PASSWORD"); v != "" {
		cfg.Status.Auth.Password = v
	}
	if v := os.Getenv("HADECK_INFLUX_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
	if v := os.Getenv("HADECK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
}

// Validate checks the configuration for errors that should abort startup.
func (c *Config) Validate() error {
	if c.HomeAssistant.URL == "" {
		return fmt.Errorf("home_assistant.url is required")
	}
	if !strings.Contains(c.HomeAssistant.URL, "://") {
		return fmt.Errorf("home_assistant.url %q is not a valid URL", c.HomeAssistant.URL)
	}
	if c.HomeAssistant.Token == "" {
		return fmt.Errorf("home_assistant.token is required")
	}
	if c.Deck.LayoutFile == "" {
		return fmt.Errorf("deck.layout_file is required")
	}
	if c.Deck.Brightness < 0 || c.Deck.Brightness > 100 {
		return fmt.Errorf("deck.brightness must be between 0 and 100, got %d", c.Deck.Brightness)
	}
	if c.Deck.LongPressMS <= 0 {
		return fmt.Errorf("deck.long_press_ms must be positive, got %d", c.Deck.LongPressMS)
	}
	if c.Deck.DragThresholdPX <= 0 {
		return fmt.Errorf("deck.drag_threshold_px must be positive, got %d", c.Deck.DragThresholdPX)
	}
	if c.ReturnToHome.Duration < 0 {
		return fmt.Errorf("return_to_home.duration must not be negative")
	}
	if c.ReturnToHome.Page == "" && c.ReturnToHome.Duration > 0 {
		return fmt.Errorf("return_to_home.page is required when a duration is set")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.URL == "" {
		return fmt.Errorf("telemetry.url is required when telemetry is enabled")
	}
	if c.Status.Enabled && c.Status.Broker.Host == "" {
		return fmt.Errorf("status.broker.host is required when status publishing is enabled")
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port must be a valid TCP port, got %d", c.API.Port)
	}
	return nil
}
