package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the servo mount bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Thing     ThingConfig     `yaml:"thing"`
	Bus       BusConfig       `yaml:"bus"`
	Servos    []ServoConfig   `yaml:"servos"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ThingConfig describes the single thing exposed by this process.
type ThingConfig struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// BusConfig contains the PWM controller bus settings.
type BusConfig struct {
	// Driver selects the bus implementation: "i2c" or "simulated".
	Driver string `yaml:"driver"`

	// Device is the I2C bus name or device node (e.g. "/dev/i2c-1" or "1").
	Device string `yaml:"device"`

	// Address is the 7-bit controller address.
	Address uint16 `yaml:"address"`

	// SettleDelay is how long to wait after the init sequence before serving.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// ServoConfig describes one servo channel exposed as a thing property.
type ServoConfig struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Register    uint8   `yaml:"register"`
	Initial     float64 `yaml:"initial"`

	// Clamp limits logical values to [0,100] before the pulse-width transform.
	Clamp bool `yaml:"clamp"`
}

// APIConfig contains HTTP thing server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// Hostnames are accepted in the Host header in addition to localhost
	// and the machine's own name. Ignored when host validation is disabled.
	Hostnames             []string `yaml:"hostnames"`
	DisableHostValidation bool     `yaml:"disable_host_validation"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long property history is kept. Zero keeps everything.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled        bool                `yaml:"enabled"`
	Broker         MQTTBrokerConfig    `yaml:"broker"`
	Auth           MQTTAuthConfig      `yaml:"auth"`
	QoS            int                 `yaml:"qos"`
	Reconnect      MQTTReconnectConfig `yaml:"reconnect"`
	HealthInterval int                 `yaml:"health_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// DiscoveryConfig contains mDNS advertisement settings.
type DiscoveryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Instance  string `yaml:"instance"`
	Interface string `yaml:"interface"`
	TTL       int    `yaml:"ttl"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings. Authentication is off unless Enabled.
type JWTConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SERVOMOUNT_SECTION_KEY
// For example: SERVOMOUNT_BUS_DEVICE, SERVOMOUNT_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config matching the stock two-servo camera mount:
// a PWM controller at 0x40 on /dev/i2c-1, servos on the 0x08 and 0x0c
// OFF registers, both starting at 50, served on port 8888.
func Default() *Config {
	return &Config{
		Thing: ThingConfig{
			ID:    "urn:dev:ops:camera-mount",
			Title: "Camera Mount",
			Type:  "thing",
		},
		Bus: BusConfig{
			Driver:      "i2c",
			Device:      "/dev/i2c-1",
			Address:     0x40,
			SettleDelay: 100 * time.Millisecond,
		},
		Servos: []ServoConfig{
			{Name: "servo0", Description: "Servo 0 rotation", Register: 0x08, Initial: 50},
			{Name: "servo1", Description: "Servo 1 rotation", Register: 0x0c, Initial: 50},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8888,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/servomount.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "servomount",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			HealthInterval: 30,
		},
		Discovery: DiscoveryConfig{
			TTL: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/servomount.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SERVOMOUNT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bus
	if v := os.Getenv("SERVOMOUNT_BUS_DRIVER"); v != "" {
		cfg.Bus.Driver = v
	}
	if v := os.Getenv("SERVOMOUNT_BUS_DEVICE"); v != "" {
		cfg.Bus.Device = v
	}

	// API
	if v := os.Getenv("SERVOMOUNT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SERVOMOUNT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Database
	if v := os.Getenv("SERVOMOUNT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SERVOMOUNT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SERVOMOUNT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SERVOMOUNT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SERVOMOUNT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("SERVOMOUNT_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// maxBusAddress is the largest 7-bit bus address.
const maxBusAddress = 0x7f

// minJWTSecretLength is the shortest accepted signing secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Thing.ID == "" {
		errs = append(errs, "thing.id is required")
	}
	if c.Thing.Title == "" {
		errs = append(errs, "thing.title is required")
	}

	switch c.Bus.Driver {
	case "i2c":
		if c.Bus.Device == "" {
			errs = append(errs, "bus.device is required for the i2c driver")
		}
	case "simulated":
	default:
		errs = append(errs, fmt.Sprintf("bus.driver %q must be \"i2c\" or \"simulated\"", c.Bus.Driver))
	}
	if c.Bus.Address > maxBusAddress {
		errs = append(errs, "bus.address must be a 7-bit address")
	}
	if c.Bus.SettleDelay < 0 {
		errs = append(errs, "bus.settle_delay cannot be negative")
	}

	if len(c.Servos) == 0 {
		errs = append(errs, "at least one servo is required")
	}
	names := make(map[string]bool, len(c.Servos))
	registers := make(map[uint8]bool, len(c.Servos))
	for i, s := range c.Servos {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("servos[%d].name is required", i))
		} else if names[s.Name] {
			errs = append(errs, fmt.Sprintf("servos[%d].name %q is duplicated", i, s.Name))
		}
		names[s.Name] = true

		// The ON register sits two bytes below the OFF register.
		if s.Register < 2 {
			errs = append(errs, fmt.Sprintf("servos[%d].register 0x%02x has no ON register below it", i, s.Register))
		} else if registers[s.Register] {
			errs = append(errs, fmt.Sprintf("servos[%d].register 0x%02x is duplicated", i, s.Register))
		}
		registers[s.Register] = true
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls requires cert_file and key_file")
	}
	if c.API.Timeouts.Read < 0 || c.API.Timeouts.Write < 0 || c.API.Timeouts.Idle < 0 {
		errs = append(errs, "api.timeouts cannot be negative")
	}

	// The ping ticker panics on a non-positive interval.
	if c.WebSocket.PingInterval <= 0 {
		errs = append(errs, "websocket.ping_interval must be positive")
	}
	if c.WebSocket.PongTimeout <= 0 {
		errs = append(errs, "websocket.pong_timeout must be positive")
	}
	if c.WebSocket.MaxMessageSize < 0 {
		errs = append(errs, "websocket.max_message_size cannot be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required")
	}

	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required for file output")
	}

	if c.Security.JWT.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set SERVOMOUNT_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the HTTP read timeout.
func (a APIConfig) ReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (a APIConfig) WriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// IdleTimeout returns the HTTP keep-alive idle timeout.
func (a APIConfig) IdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}

// PingPeriod returns how often the server pings each WebSocket client.
func (w WebSocketConfig) PingPeriod() time.Duration {
	return time.Duration(w.PingInterval) * time.Second
}

// PongWait returns how long a client may stay silent before it is dropped.
func (w WebSocketConfig) PongWait() time.Duration {
	return time.Duration(w.PongTimeout) * time.Second
}
