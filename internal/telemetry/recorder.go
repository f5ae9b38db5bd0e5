package telemetry

import (
	"time"

	"github.com/nerrad567/servomount/internal/infrastructure/influxdb"
	"github.com/nerrad567/servomount/internal/servo"
	"github.com/nerrad567/servomount/internal/thing"
)

// Sink receives points. *influxdb.Client implements it.
type Sink interface {
	WritePropertyValue(thingID, property, source string, value float64, at time.Time)
	WriteBusWrite(thingID string, w influxdb.BusWrite)
}

// Recorder forwards servo writes and numeric property changes to a Sink.
type Recorder struct {
	thingID string
	sink    Sink
	now     func() time.Time
}

// New creates a Recorder that tags every point with thingID.
func New(thingID string, sink Sink) *Recorder {
	return &Recorder{thingID: thingID, sink: sink, now: time.Now}
}

// RecordWrite implements servo.Recorder.
func (r *Recorder) RecordWrite(w servo.Write) {
	r.sink.WriteBusWrite(r.thingID, influxdb.BusWrite{
		Servo:    w.Servo,
		Register: w.Register,
		Logical:  w.Logical,
		Physical: w.Physical,
		Latency:  w.Latency,
		Failed:   w.Err != nil,
		At:       r.now(),
	})
}

// Observe is a thing.Observer. Non-numeric values are skipped.
func (r *Recorder) Observe(c thing.Change) {
	v, ok := servo.Numeric(c.Value)
	if !ok {
		return
	}
	r.sink.WritePropertyValue(c.Thing, c.Property, c.Source, v, c.At)
}
