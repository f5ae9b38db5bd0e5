package servo

import (
	"encoding/json"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the servo package.
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

// RegisterWriter is the part of the bus handle a Forwarder needs.
type RegisterWriter interface {
	WriteRegister(reg uint8, value uint16) error
}

// Write describes one attempted register write.
type Write struct {
	Servo    string
	Register uint8
	Logical  float64
	Physical uint16
	Latency  time.Duration
	Err      error
}

// Recorder receives every attempted register write. It is called
// synchronously after the bus returns and must not block.
type Recorder interface {
	RecordWrite(w Write)
}

// Options configures a Forwarder.
type Options struct {
	// Name identifies the servo in logs and telemetry.
	Name string

	// Register is the channel's OFF register.
	Register uint8

	// Bus is the shared handle to write through.
	Bus RegisterWriter

	// Clamp limits logical values to [0,100] before transforming.
	Clamp bool

	// Logger is optional. Defaults to a no-op logger.
	Logger Logger

	// Recorder is optional.
	Recorder Recorder
}

// Forwarder applies property values to one servo channel.
//
// It holds no value of its own; the property that owns it stores whatever
// SetValue accepts.
//
// Thread Safety:
//   - SetValue is safe for concurrent use. Serialisation happens in the bus handle.
type Forwarder struct {
	name     string
	register uint8
	bus      RegisterWriter
	clamp    bool
	logger   Logger
	recorder Recorder
}

// NewForwarder creates a Forwarder for the channel described by opts.
func NewForwarder(opts Options) (*Forwarder, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("%w: bus is required", ErrInvalidForwarder)
	}
	if opts.Register < 2 {
		return nil, fmt.Errorf("%w: register 0x%02x", ErrInvalidForwarder, opts.Register)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Forwarder{
		name:     opts.Name,
		register: opts.Register,
		bus:      opts.Bus,
		clamp:    opts.Clamp,
		logger:   logger,
		recorder: opts.Recorder,
	}, nil
}

// Name returns the servo name.
func (f *Forwarder) Name() string {
	return f.name
}

// Register returns the channel's OFF register.
func (f *Forwarder) Register() uint8 {
	return f.register
}

// SetValue applies value to the servo.
//
// Numeric values are transformed and written in exactly one bus
// transaction; on success the original value is returned unchanged. A bus
// failure returns ErrHardwareFault. Non-numeric values are returned as-is
// with no bus transaction.
func (f *Forwarder) SetValue(value any) (any, error) {
	logical, ok := Numeric(value)
	if !ok {
		f.logger.Debug("non-numeric servo value passed through", "servo", f.name, "value", value)
		return value, nil
	}

	f.logger.Info("servo value requested", "servo", f.name, "value", logical)

	if f.clamp {
		logical = Clamp(logical)
	}

	physical, err := Transform(logical)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", err, value)
	}

	start := time.Now()
	err = f.bus.WriteRegister(f.register, physical)
	latency := time.Since(start)

	if f.recorder != nil {
		f.recorder.RecordWrite(Write{
			Servo:    f.name,
			Register: f.register,
			Logical:  logical,
			Physical: physical,
			Latency:  latency,
			Err:      err,
		})
	}

	if err != nil {
		f.logger.Warn("servo write failed",
			"servo", f.name,
			"register", fmt.Sprintf("0x%02x", f.register),
			"physical", physical,
			"error", err,
		)
		return nil, ErrHardwareFault
	}

	f.logger.Debug("servo written",
		"servo", f.name,
		"register", fmt.Sprintf("0x%02x", f.register),
		"physical", physical,
	)
	return value, nil
}

// Numeric reports whether value is a number and returns it as float64.
// JSON numbers arrive as float64 or json.Number; Go integer and float kinds
// are accepted too. Everything else, including numeric strings, is not a number.
func Numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
