package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for PrintLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud"`
	Account   AccountConfig   `yaml:"account"`
	Printer   PrinterConfig   `yaml:"printer"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CloudConfig contains the printer vendor cloud endpoints.
type CloudConfig struct {
	// APIURL is the base URL of the REST API.
	APIURL string `yaml:"api_url"`

	// MQTT is the cloud broker the printer reports through.
	MQTT MQTTConfig `yaml:"mqtt"`

	// ReconnectDelay is the fixed wait between a lost link and the next
	// connect attempt, in seconds. Default: 10
	ReconnectDelay int `yaml:"reconnect_delay"`

	// TaskLimit is how many recent tasks are searched when resolving a job.
	// Default: 10
	TaskLimit int `yaml:"task_limit"`

	// RequestTimeout bounds each REST call, in seconds. Default: 30
	RequestTimeout int `yaml:"request_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TLS       bool   `yaml:"tls"`
	KeepAlive int    `yaml:"keep_alive"`
}

// AccountConfig identifies the cloud user the printer is bound to.
type AccountConfig struct {
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
}

// PrinterConfig identifies the printer.
type PrinterConfig struct {
	DeviceID string `yaml:"device_id"`
	Name     string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PRINTLINK_SECTION_KEY
// For example: PRINTLINK_DATABASE_PATH, PRINTLINK_ACCESS_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Cloud: CloudConfig{
			APIURL: "https://api.bambulab.com",
			MQTT: MQTTConfig{
				Host:      "us.mqtt.bambulab.com",
				Port:      8883,
				TLS:       true,
				KeepAlive: 60,
			},
			ReconnectDelay: 10,
			TaskLimit:      10,
			RequestTimeout: 30,
		},
		Printer: PrinterConfig{
			Name: "Printer",
		},
		Database: DatabaseConfig{
			Path:        "./data/printlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "printlink",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Secrets belong here rather than in the file.
func applyEnvOverrides(cfg *Config) {
	// Account
	if v := os.Getenv("PRINTLINK_ACCESS_TOKEN"); v != "" {
		cfg.Account.AccessToken = v
	}
	if v := os.Getenv("PRINTLINK_USER_ID"); v != "" {
		cfg.Account.UserID = v
	}

	// Printer
	if v := os.Getenv("PRINTLINK_DEVICE_ID"); v != "" {
		cfg.Printer.DeviceID = v
	}

	// Database
	if v := os.Getenv("PRINTLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PRINTLINK_MQTT_HOST"); v != "" {
		cfg.Cloud.MQTT.Host = v
	}

	// API
	if v := os.Getenv("PRINTLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("PRINTLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Printer and account
	if c.Printer.DeviceID == "" {
		errs = append(errs, "printer.device_id is required (set PRINTLINK_DEVICE_ID environment variable)")
	}
	if c.Account.AccessToken == "" {
		errs = append(errs, "account.access_token is required (set PRINTLINK_ACCESS_TOKEN environment variable)")
	}

	// Cloud
	if u, err := url.Parse(c.Cloud.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "cloud.api_url must be an absolute URL")
	}
	if c.Cloud.MQTT.Host == "" {
		errs = append(errs, "cloud.mqtt.host is required")
	}
	if c.Cloud.MQTT.Port < 1 || c.Cloud.MQTT.Port > 65535 {
		errs = append(errs, "cloud.mqtt.port must be between 1 and 65535")
	}
	if c.Cloud.ReconnectDelay <= 0 {
		errs = append(errs, "cloud.reconnect_delay must be positive")
	}
	if c.Cloud.TaskLimit <= 0 {
		errs = append(errs, "cloud.task_limit must be positive")
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReconnectDelay returns the printer reconnect delay as a Duration.
func (c *Config) GetReconnectDelay() time.Duration {
	return time.Duration(c.Cloud.ReconnectDelay) * time.Second
}

// GetRequestTimeout returns the REST request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Cloud.RequestTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
