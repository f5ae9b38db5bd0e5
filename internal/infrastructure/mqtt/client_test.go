package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/servomount/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "servomount-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// =============================================================================
// Topics
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"State", topics.State("camera-mount", "servo0"), "servomount/state/camera-mount/servo0"},
		{"Command", topics.Command("camera-mount", "servo1"), "servomount/command/camera-mount/servo1"},
		{"Ack", topics.Ack("camera-mount", "servo1"), "servomount/ack/camera-mount/servo1"},
		{"Health", topics.Health("camera-mount"), "servomount/health/camera-mount"},
		{"SystemStatus", topics.SystemStatus(), "servomount/system/status"},
		{"AllCommands", topics.AllCommands("camera-mount"), "servomount/command/camera-mount/+"},
		{"URN thing id", topics.State("urn:dev:ops:mount", "servo0"), "servomount/state/urn:dev:ops:mount/servo0"},
		{"reserved characters", topics.State("a/b", "c+#"), "servomount/state/a_b/c__"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPropertyFromTopic(t *testing.T) {
	tests := map[string]string{
		"servomount/command/camera-mount/servo0": "servo0",
		"servo1":                                 "servo1",
		"servomount/command/camera-mount/":       "",
	}
	for topic, want := range tests {
		if got := PropertyFromTopic(topic); got != want {
			t.Errorf("PropertyFromTopic(%q) = %q, want %q", topic, got, want)
		}
	}
}

// =============================================================================
// Options and payloads
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "mount"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "servomount-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "mount" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Errorf("AutoReconnect = %v, CleanSession = %v, want both true", opts.AutoReconnect, opts.CleanSession)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil with TLS enabled")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "servomount-test")

	if !opts.WillEnabled || opts.WillTopic != "servomount/system/status" || !opts.WillRetained {
		t.Errorf("will = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var msg statusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != "offline" || msg.Reason != "unexpected_disconnect" || msg.ClientID != "servomount-test" {
		t.Errorf("will = %+v", msg)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline statusMessage
	if err := json.Unmarshal([]byte(buildOnlinePayload("c1")), &online); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(buildOfflinePayload("c1")), &offline); err != nil {
		t.Fatal(err)
	}
	if online.Status != "online" || online.Reason != "" {
		t.Errorf("online = %+v", online)
	}
	if offline.Status != "offline" || offline.Reason != "graceful_shutdown" {
		t.Errorf("offline = %+v", offline)
	}
}

// =============================================================================
// Validation without a broker
// =============================================================================

func TestPublishValidation(t *testing.T) {
	c := &Client{cfg: testConfig(), subs: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "servomount/x", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "servomount/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "servomount/x", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{cfg: testConfig(), subs: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v", err)
	}
	if err := c.Subscribe("a", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos: %v", err)
	}
	if err := c.Subscribe("a", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v", err)
	}
	if err := c.Subscribe("a", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: %v", err)
	}
	if c.tracked("a") {
		t.Error("failed subscribe must not be tracked")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("unsubscribe empty topic: %v", err)
	}
}

func TestUnsubscribe_ForgetsWhileDisconnected(t *testing.T) {
	c := &Client{cfg: testConfig(), subs: make(map[string]subscription)}
	topic := Topics{}.AllCommands("camera-mount")
	c.track(topic, subscription{qos: 1, handler: func(string, []byte) error { return nil }})

	if err := c.Unsubscribe(topic); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
	if c.tracked(topic) {
		t.Error("subscription would be restored after reconnect")
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := &Client{cfg: testConfig()}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client = %v", err)
	}
}

// =============================================================================
// Handler wrapping
// =============================================================================

func TestWrapHandler_LogsErrorAndRecoversPanic(t *testing.T) {
	c := &Client{}
	logger := &mockLogger{}
	c.SetLogger(logger)

	failing := c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })
	failing(nil, fakeMessage{topic: "servomount/command/m/servo0"})

	panicking := c.wrapHandler(func(string, []byte) error { panic("boom") })
	panicking(nil, fakeMessage{topic: "servomount/command/m/servo0"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "returned error") {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
		t.Errorf("errors = %v, want one panic", logger.errors)
	}
}

func TestWrapHandler_PassesTopicAndPayload(t *testing.T) {
	c := &Client{}
	var gotTopic, gotPayload string
	h := c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})
	h(nil, fakeMessage{topic: "servomount/command/m/servo1", payload: []byte(`{"value":10}`)})

	if gotTopic != "servomount/command/m/servo1" || gotPayload != `{"value":10}` {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
}

func TestSetLogger(t *testing.T) {
	c := &Client{}
	c.SetLogger(&mockLogger{})
	if c.log() == nil {
		t.Error("log() = nil after SetLogger()")
	}
	c.SetLogger(nil)
	if c.log() != nil {
		t.Error("log() should be nil after SetLogger(nil)")
	}
}
