package servo

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/servomount/internal/bus"
)

// countingWriter counts WriteRegister calls and fails when err is set.
type countingWriter struct {
	mu    sync.Mutex
	calls int
	last  uint16
	err   error
}

func (w *countingWriter) WriteRegister(_ uint8, value uint16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.last = value
	return w.err
}

// captureRecorder collects recorded writes.
type captureRecorder struct {
	mu     sync.Mutex
	writes []Write
}

func (r *captureRecorder) RecordWrite(w Write) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, w)
}

func newTestForwarder(t *testing.T, reg uint8, w RegisterWriter, clamp bool) *Forwarder {
	t.Helper()
	f, err := NewForwarder(Options{Name: "servo0", Register: reg, Bus: w, Clamp: clamp})
	if err != nil {
		t.Fatalf("NewForwarder() error = %v", err)
	}
	return f
}

func TestTransform(t *testing.T) {
	tests := []struct {
		logical float64
		want    uint16
	}{
		{0, 836},
		{100, 1664},
		{50, 1250},
		{25, 1043},
		{33, 1109},
		{12.5, 940},
		{-100, 8},
	}

	for _, tt := range tests {
		got, err := Transform(tt.logical)
		if err != nil {
			t.Errorf("Transform(%v) error = %v", tt.logical, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Transform(%v) = %d, want %d", tt.logical, got, tt.want)
		}
	}
}

func TestTransform_Monotonic(t *testing.T) {
	prev, err := Transform(0)
	if err != nil {
		t.Fatalf("Transform(0) error = %v", err)
	}
	for v := 0.1; v <= 100; v += 0.1 {
		got, err := Transform(v)
		if err != nil {
			t.Fatalf("Transform(%v) error = %v", v, err)
		}
		if got < prev {
			t.Fatalf("Transform(%v) = %d < previous %d", v, got, prev)
		}
		prev = got
	}
}

func TestTransform_OutOfRange(t *testing.T) {
	for _, v := range []float64{-200, 10000, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Transform(v); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Transform(%v) error = %v, want ErrOutOfRange", v, err)
		}
	}
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   float64
		wantOK bool
	}{
		{"float64", 42.5, 42.5, true},
		{"int", 7, 7, true},
		{"uint8", uint8(9), 9, true},
		{"json number", json.Number("12.25"), 12.25, true},
		{"bad json number", json.Number("abc"), 0, false},
		{"string", "50", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"map", map[string]any{"v": 1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Numeric(tt.value)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Numeric(%v) = (%v, %v), want (%v, %v)", tt.value, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNewForwarder_Invalid(t *testing.T) {
	if _, err := NewForwarder(Options{Register: 0x08}); !errors.Is(err, ErrInvalidForwarder) {
		t.Errorf("NewForwarder(no bus) error = %v, want ErrInvalidForwarder", err)
	}
	if _, err := NewForwarder(Options{Register: 0x01, Bus: &countingWriter{}}); !errors.Is(err, ErrInvalidForwarder) {
		t.Errorf("NewForwarder(register 0x01) error = %v, want ErrInvalidForwarder", err)
	}
}

func TestSetValue_NonNumericPassThrough(t *testing.T) {
	w := &countingWriter{}
	f := newTestForwarder(t, 0x08, w, false)

	for _, v := range []any{"left", true, nil, []any{1, 2}} {
		got, err := f.SetValue(v)
		if err != nil {
			t.Errorf("SetValue(%v) error = %v", v, err)
		}
		if gotSlice, ok := got.([]any); ok {
			if len(gotSlice) != 2 {
				t.Errorf("SetValue(%v) = %v, want unchanged", v, got)
			}
			continue
		}
		if got != v {
			t.Errorf("SetValue(%v) = %v, want unchanged", v, got)
		}
	}

	if w.calls != 0 {
		t.Errorf("bus calls = %d, want 0 for non-numeric values", w.calls)
	}
}

func TestSetValue_ReturnsOriginalValue(t *testing.T) {
	w := &countingWriter{}
	f := newTestForwarder(t, 0x08, w, false)

	got, err := f.SetValue(12.5)
	if err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if got != 12.5 {
		t.Errorf("SetValue() = %v, want 12.5", got)
	}
	if w.last != 940 {
		t.Errorf("written value = %d, want 940", w.last)
	}

	// Integer input keeps its type
	got, err = f.SetValue(50)
	if err != nil {
		t.Fatalf("SetValue(50) error = %v", err)
	}
	if got != 50 {
		t.Errorf("SetValue(50) = %#v, want int 50", got)
	}
}

func TestSetValue_HardwareFaultSingleAttempt(t *testing.T) {
	w := &countingWriter{err: errors.New("nack")}
	rec := &captureRecorder{}
	f, err := NewForwarder(Options{Name: "servo1", Register: 0x0c, Bus: w, Recorder: rec})
	if err != nil {
		t.Fatalf("NewForwarder() error = %v", err)
	}

	got, err := f.SetValue(75)
	if !errors.Is(err, ErrHardwareFault) {
		t.Fatalf("SetValue() error = %v, want ErrHardwareFault", err)
	}
	if err.Error() != "unknown i2c error" {
		t.Errorf("error message = %q, want %q", err.Error(), "unknown i2c error")
	}
	if got != nil {
		t.Errorf("SetValue() value = %v, want nil on failure", got)
	}
	if w.calls != 1 {
		t.Errorf("bus calls = %d, want exactly 1", w.calls)
	}
	if len(rec.writes) != 1 || rec.writes[0].Err == nil || rec.writes[0].Physical != 1457 {
		t.Errorf("recorded writes = %+v, want one failed write of 1457", rec.writes)
	}
}

func TestSetValue_OutOfRange(t *testing.T) {
	w := &countingWriter{}
	f := newTestForwarder(t, 0x08, w, false)

	_, err := f.SetValue(10000.0)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetValue(10000) error = %v, want ErrOutOfRange", err)
	}
	if w.calls != 0 {
		t.Errorf("bus calls = %d, want 0", w.calls)
	}
}

func TestSetValue_Clamp(t *testing.T) {
	w := &countingWriter{}
	f := newTestForwarder(t, 0x08, w, true)

	tests := []struct {
		value float64
		want  uint16
	}{
		{150, 1664},
		{-20, 836},
		{10000, 1664},
		{40, 1167},
	}

	for _, tt := range tests {
		got, err := f.SetValue(tt.value)
		if err != nil {
			t.Errorf("SetValue(%v) error = %v", tt.value, err)
			continue
		}
		if got != tt.value {
			t.Errorf("SetValue(%v) = %v, want original value echoed", tt.value, got)
		}
		if w.last != tt.want {
			t.Errorf("SetValue(%v) wrote %d, want %d", tt.value, w.last, tt.want)
		}
	}
}

func TestSetValue_ConcurrentForwardersShareHandle(t *testing.T) {
	h, sim := bus.OpenSimulated(0x40)
	sim.SetLatency(100 * time.Microsecond)

	f0 := newTestForwarder(t, 0x08, h, false)
	f1 := newTestForwarder(t, 0x0c, h, false)

	const writes = 50
	var wg sync.WaitGroup
	for _, f := range []*Forwarder{f0, f1} {
		wg.Add(1)
		go func(f *Forwarder) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				if _, err := f.SetValue(float64(i % 101)); err != nil {
					t.Errorf("SetValue() error = %v", err)
				}
			}
		}(f)
	}
	wg.Wait()

	if got := sim.Overlaps(); got != 0 {
		t.Errorf("Overlaps() = %d, want 0", got)
	}
	for _, tx := range sim.Transactions() {
		if len(tx.Data) != 2 {
			t.Fatalf("transaction %+v is not a complete word write", tx)
		}
	}
	if got := len(sim.Transactions()); got != 2*writes {
		t.Errorf("got %d transactions, want %d", got, 2*writes)
	}
}

func TestEndToEnd_InitialiseThenSet(t *testing.T) {
	h, sim := bus.OpenSimulated(0x40)
	if err := bus.Initialise(context.Background(), h, []uint8{0x08, 0x0c}, 0); err != nil {
		t.Fatalf("Initialise() error = %v", err)
	}
	sim.Reset()

	f0 := newTestForwarder(t, 0x08, h, false)
	f1 := newTestForwarder(t, 0x0c, h, false)

	for _, f := range []*Forwarder{f0, f1} {
		if _, err := f.SetValue(50.0); err != nil {
			t.Fatalf("SetValue(50) on 0x%02x error = %v", f.Register(), err)
		}
	}

	txs := sim.Transactions()
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	for i, reg := range []uint8{0x08, 0x0c} {
		if txs[i].Register != reg {
			t.Errorf("tx[%d].Register = %#x, want %#x", i, txs[i].Register, reg)
		}
		if v, ok := txs[i].Word(); !ok || v != 1250 {
			t.Errorf("tx[%d] word = %d, want 1250", i, v)
		}
	}
}

func TestEndToEnd_FaultSingleAttempt(t *testing.T) {
	h, sim := bus.OpenSimulated(0x40)
	sim.SetFault(bus.ErrSimulatedFault)

	f := newTestForwarder(t, 0x08, h, false)

	_, err := f.SetValue(75.0)
	if !errors.Is(err, ErrHardwareFault) {
		t.Fatalf("SetValue(75) error = %v, want ErrHardwareFault", err)
	}
	if got := len(sim.Transactions()); got != 1 {
		t.Errorf("got %d bus attempts, want exactly 1", got)
	}
	if got := h.Stats().Failures; got != 1 {
		t.Errorf("Stats.Failures = %d, want 1", got)
	}
}
