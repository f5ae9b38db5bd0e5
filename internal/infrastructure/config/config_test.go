package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
thing:
  id: "urn:dev:ops:test-mount"
  title: "Test Mount"
bus:
  driver: "simulated"
  address: 0x41
  settle_delay: 250ms
servos:
  - name: "pan"
    description: "Pan rotation"
    register: 0x08
    initial: 25
  - name: "tilt"
    description: "Tilt rotation"
    register: 0x0c
    clamp: true
api:
  port: 9999
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Thing.ID != "urn:dev:ops:test-mount" {
		t.Errorf("Thing.ID = %q, want %q", cfg.Thing.ID, "urn:dev:ops:test-mount")
	}
	if cfg.Bus.Driver != "simulated" {
		t.Errorf("Bus.Driver = %q, want simulated", cfg.Bus.Driver)
	}
	if cfg.Bus.Address != 0x41 {
		t.Errorf("Bus.Address = %#x, want 0x41", cfg.Bus.Address)
	}
	if cfg.Bus.SettleDelay != 250*time.Millisecond {
		t.Errorf("Bus.SettleDelay = %v, want 250ms", cfg.Bus.SettleDelay)
	}
	if len(cfg.Servos) != 2 {
		t.Fatalf("len(Servos) = %d, want 2", len(cfg.Servos))
	}
	if cfg.Servos[0].Name != "pan" || cfg.Servos[0].Register != 0x08 || cfg.Servos[0].Initial != 25 {
		t.Errorf("Servos[0] = %+v", cfg.Servos[0])
	}
	if !cfg.Servos[1].Clamp {
		t.Error("Servos[1].Clamp = false, want true")
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", cfg.API.Port)
	}
	// Untouched sections keep their defaults
	if cfg.WebSocket.PingInterval != 30 {
		t.Errorf("WebSocket.PingInterval = %d, want 30", cfg.WebSocket.PingInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "thing: [unterminated")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
bus:
  driver: "spi"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for unknown driver, got nil")
	}
	if !strings.Contains(err.Error(), "bus.driver") {
		t.Errorf("error = %v, want mention of bus.driver", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing thing id",
			mutate:  func(c *Config) { c.Thing.ID = "" },
			wantErr: "thing.id",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Bus.Driver = "uart" },
			wantErr: "bus.driver",
		},
		{
			name:    "i2c without device",
			mutate:  func(c *Config) { c.Bus.Device = "" },
			wantErr: "bus.device",
		},
		{
			name:    "address wider than 7 bits",
			mutate:  func(c *Config) { c.Bus.Address = 0x80 },
			wantErr: "bus.address",
		},
		{
			name:    "no servos",
			mutate:  func(c *Config) { c.Servos = nil },
			wantErr: "at least one servo",
		},
		{
			name: "duplicate servo name",
			mutate: func(c *Config) {
				c.Servos[1].Name = c.Servos[0].Name
			},
			wantErr: "duplicated",
		},
		{
			name: "duplicate register",
			mutate: func(c *Config) {
				c.Servos[1].Register = c.Servos[0].Register
			},
			wantErr: "register 0x08 is duplicated",
		},
		{
			name: "register without ON slot",
			mutate: func(c *Config) {
				c.Servos[0].Register = 0x01
			},
			wantErr: "no ON register",
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "zero ping interval",
			mutate:  func(c *Config) { c.WebSocket.PingInterval = 0 },
			wantErr: "websocket.ping_interval",
		},
		{
			name:    "negative ping interval",
			mutate:  func(c *Config) { c.WebSocket.PingInterval = -5 },
			wantErr: "websocket.ping_interval",
		},
		{
			name:    "zero pong timeout",
			mutate:  func(c *Config) { c.WebSocket.PongTimeout = 0 },
			wantErr: "websocket.pong_timeout",
		},
		{
			name:    "negative pong timeout",
			mutate:  func(c *Config) { c.WebSocket.PongTimeout = -1 },
			wantErr: "websocket.pong_timeout",
		},
		{
			name:    "negative max message size",
			mutate:  func(c *Config) { c.WebSocket.MaxMessageSize = -1 },
			wantErr: "websocket.max_message_size",
		},
		{
			name:    "negative api timeout",
			mutate:  func(c *Config) { c.API.Timeouts.Idle = -1 },
			wantErr: "api.timeouts",
		},
		{
			name: "invalid QoS ignored when MQTT disabled",
			mutate: func(c *Config) {
				c.MQTT.QoS = 3
			},
		},
		{
			name: "invalid QoS",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name: "influx without URL",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
			},
			wantErr: "influxdb.url",
		},
		{
			name: "JWT enabled without secret",
			mutate: func(c *Config) {
				c.Security.JWT.Enabled = true
			},
			wantErr: "security.jwt.secret is required",
		},
		{
			name: "JWT secret too short",
			mutate: func(c *Config) {
				c.Security.JWT.Enabled = true
				c.Security.JWT.Secret = "short"
			},
			wantErr: "at least 32 characters",
		},
		{
			name: "JWT enabled with valid secret",
			mutate: func(c *Config) {
				c.Security.JWT.Enabled = true
				c.Security.JWT.Secret = validJWTSecret
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	api := APIConfig{
		Timeouts: APITimeoutConfig{
			Read:  30,
			Write: 45,
			Idle:  60,
		},
	}

	if got := api.ReadTimeout(); got != 30*time.Second {
		t.Errorf("ReadTimeout() = %v, want 30s", got)
	}
	if got := api.WriteTimeout(); got != 45*time.Second {
		t.Errorf("WriteTimeout() = %v, want 45s", got)
	}
	if got := api.IdleTimeout(); got != 60*time.Second {
		t.Errorf("IdleTimeout() = %v, want 60s", got)
	}

	ws := WebSocketConfig{PingInterval: 30, PongTimeout: 10}
	if got := ws.PingPeriod(); got != 30*time.Second {
		t.Errorf("PingPeriod() = %v, want 30s", got)
	}
	if got := ws.PongWait(); got != 10*time.Second {
		t.Errorf("PongWait() = %v, want 10s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("SERVOMOUNT_BUS_DRIVER", "simulated")
	t.Setenv("SERVOMOUNT_BUS_DEVICE", "/dev/i2c-7")
	t.Setenv("SERVOMOUNT_API_HOST", "192.168.1.1")
	t.Setenv("SERVOMOUNT_API_PORT", "9000")
	t.Setenv("SERVOMOUNT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SERVOMOUNT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SERVOMOUNT_MQTT_USERNAME", "testuser")
	t.Setenv("SERVOMOUNT_MQTT_PASSWORD", "testpass")
	t.Setenv("SERVOMOUNT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SERVOMOUNT_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Bus.Driver != "simulated" {
		t.Errorf("Bus.Driver = %q, want %q", cfg.Bus.Driver, "simulated")
	}
	if cfg.Bus.Device != "/dev/i2c-7" {
		t.Errorf("Bus.Device = %q, want %q", cfg.Bus.Device, "/dev/i2c-7")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := Default()
	t.Setenv("SERVOMOUNT_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8888 {
		t.Errorf("API.Port = %d, want default 8888", cfg.API.Port)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.Port != 8888 {
		t.Errorf("Default API.Port = %d, want 8888", cfg.API.Port)
	}
	if cfg.Bus.Address != 0x40 {
		t.Errorf("Default Bus.Address = %#x, want 0x40", cfg.Bus.Address)
	}
	if cfg.Bus.Device != "/dev/i2c-1" {
		t.Errorf("Default Bus.Device = %q, want /dev/i2c-1", cfg.Bus.Device)
	}
	if len(cfg.Servos) != 2 {
		t.Fatalf("Default has %d servos, want 2", len(cfg.Servos))
	}
	if cfg.Servos[0].Register != 0x08 || cfg.Servos[1].Register != 0x0c {
		t.Errorf("Default registers = %#x, %#x, want 0x08, 0x0c", cfg.Servos[0].Register, cfg.Servos[1].Register)
	}
	for _, s := range cfg.Servos {
		if s.Initial != 50 {
			t.Errorf("servo %s initial = %v, want 50", s.Name, s.Initial)
		}
	}
}
