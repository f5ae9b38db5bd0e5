package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/servomount/internal/bus"
	"github.com/nerrad567/servomount/internal/infrastructure/mqtt"
	"github.com/nerrad567/servomount/internal/servo"
	"github.com/nerrad567/servomount/internal/thing"
)

const (
	// outboundQueueSize bounds pending publishes before messages are dropped.
	outboundQueueSize = 256

	// defaultHealthInterval applies when Options.HealthInterval is zero.
	defaultHealthInterval = 30 * time.Second
)

// Logger defines the logging interface used by the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is the MQTT surface the relay needs. *mqtt.Client implements it.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// BusMonitor reports bus health. *bus.Handle implements it.
type BusMonitor interface {
	Stats() bus.Stats
	HealthCheck() error
}

// Options configures a Relay.
type Options struct {
	Client Client
	Thing  *thing.Thing

	// Bus is optional; without it no health messages are published.
	Bus BusMonitor

	QoS            byte
	HealthInterval time.Duration
	Version        string

	// Logger is optional. Defaults to a no-op logger.
	Logger Logger
}

// outbound is one queued publish.
type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// Relay bridges one thing and an MQTT broker.
type Relay struct {
	client         Client
	thing          *thing.Thing
	bus            BusMonitor
	qos            byte
	healthInterval time.Duration
	version        string
	logger         Logger
	topics         mqtt.Topics
	startTime      time.Time

	queue   chan outbound
	dropped atomic.Uint64

	observeOnce sync.Once
	startOnce   sync.Once
	stopOnce    sync.Once
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a relay. Call Start to begin relaying.
func New(opts Options) (*Relay, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("%w: mqtt client", ErrMissingDependency)
	}
	if opts.Thing == nil {
		return nil, fmt.Errorf("%w: thing", ErrMissingDependency)
	}

	interval := opts.HealthInterval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Relay{
		client:         opts.Client,
		thing:          opts.Thing,
		bus:            opts.Bus,
		qos:            opts.QoS,
		healthInterval: interval,
		version:        opts.Version,
		logger:         logger,
		queue:          make(chan outbound, outboundQueueSize),
		startTime:      time.Now(),
	}, nil
}

// Start subscribes to the thing's command topics, publishes every current
// property value, and begins publishing changes and health.
func (r *Relay) Start(ctx context.Context) error {
	var err error
	r.startOnce.Do(func() {
		topic := r.topics.AllCommands(r.thing.ID())
		if err = r.client.Subscribe(topic, r.qos, r.handleCommand); err != nil {
			err = fmt.Errorf("subscribe to commands: %w", err)
			return
		}
		r.logger.Info("subscribed to commands", "topic", topic)

		r.observeOnce.Do(func() {
			r.thing.Observe(r.Observe)
		})

		ctx, r.cancel = context.WithCancel(ctx)
		r.wg.Add(1)
		go r.run(ctx)

		now := time.Now().UTC()
		for _, p := range r.thing.Properties() {
			r.enqueueState(p.Name(), p.Value(), thing.SourceLocal, now)
		}
		r.enqueueHealth()
	})
	return err
}

// Stop stops accepting commands, publishes what is already queued, and
// waits for the relay to exit.
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel == nil {
			return
		}
		topic := r.topics.AllCommands(r.thing.ID())
		if err := r.client.Unsubscribe(topic); err != nil {
			r.logger.Warn("unsubscribe from commands failed", "topic", topic, "error", err)
		}
		r.cancel()
		r.wg.Wait()
		r.logger.Info("mqtt relay stopped")
	})
}

// Dropped returns how many publishes were discarded because the queue was full.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}

// Observe queues the retained state message for an accepted write.
// It satisfies thing.Observer and never blocks.
func (r *Relay) Observe(c thing.Change) {
	r.enqueueState(c.Property, c.Value, c.Source, c.At)
}

// handleCommand applies a command through the property write path and
// queues its ack.
func (r *Relay) handleCommand(topic string, payload []byte) error {
	property := mqtt.PropertyFromTopic(topic)
	ack := AckMessage{
		Timestamp: time.Now().UTC(),
		Thing:     r.thing.ID(),
		Property:  property,
	}

	cmd, err := parseCommand(payload)
	if err != nil {
		r.enqueueAck(failAck(ack, ErrCodeInvalidPayload, err))
		return err
	}
	ack.CommandID = cmd.ID

	r.logger.Debug("mqtt command received", "property", property, "value", cmd.Value, "command_id", cmd.ID)

	accepted, err := r.thing.SetProperty(property, cmd.Value, thing.SourceMQTT)
	if err != nil {
		r.enqueueAck(failAck(ack, errorCode(err), err))
		return fmt.Errorf("apply command to %s: %w", property, err)
	}

	ack.OK = true
	ack.Status = AckAccepted
	ack.Value = accepted
	r.enqueueAck(ack)
	return nil
}

func failAck(ack AckMessage, code string, err error) AckMessage {
	ack.OK = false
	ack.Status = AckFailed
	ack.Error = &AckError{Code: code, Message: err.Error()}
	return ack
}

// errorCode maps a rejected write onto an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, thing.ErrPropertyNotFound):
		return ErrCodeNotFound
	case errors.Is(err, thing.ErrReadOnly):
		return ErrCodeReadOnly
	case errors.Is(err, servo.ErrOutOfRange):
		return ErrCodeOutOfRange
	case errors.Is(err, servo.ErrHardwareFault):
		return ErrCodeHardwareFault
	default:
		return ErrCodeInternal
	}
}

func (r *Relay) enqueueState(property string, value any, source string, at time.Time) {
	r.enqueueJSON(r.topics.State(r.thing.ID(), property), StateMessage{
		Value:     value,
		Source:    source,
		Timestamp: at,
	}, true)
}

func (r *Relay) enqueueAck(ack AckMessage) {
	r.enqueueJSON(r.topics.Ack(ack.Thing, ack.Property), ack, false)
}

func (r *Relay) enqueueHealth() {
	if r.bus == nil {
		return
	}
	status := "healthy"
	if err := r.bus.HealthCheck(); err != nil {
		status = "degraded"
	}
	r.enqueueJSON(r.topics.Health(r.thing.ID()), HealthMessage{
		Thing:         r.thing.ID(),
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       r.version,
		UptimeSeconds: int64(time.Since(r.startTime).Seconds()),
		Bus:           r.bus.Stats(),
	}, true)
}

func (r *Relay) enqueueJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to marshal mqtt message", "topic", topic, "error", err)
		return
	}

	select {
	case r.queue <- outbound{topic: topic, payload: payload, retained: retained}:
	default:
		r.dropped.Add(1)
		r.logger.Warn("mqtt relay queue full, dropping message",
			"topic", topic,
			"dropped_total", r.dropped.Load(),
		)
	}
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-r.queue:
			r.publish(msg)
		case <-ticker.C:
			r.enqueueHealth()
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

// drain publishes whatever is left in the queue without waiting for more.
func (r *Relay) drain() {
	for {
		select {
		case msg := <-r.queue:
			r.publish(msg)
		default:
			return
		}
	}
}

func (r *Relay) publish(msg outbound) {
	if err := r.client.Publish(msg.topic, msg.payload, r.qos, msg.retained); err != nil {
		r.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
	}
}
