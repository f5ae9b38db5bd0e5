package influxdb

import (
	"strconv"
	"time"
)

// Measurement names.
const (
	MeasurementPropertyValues = "property_values"
	MeasurementBusWrites      = "bus_writes"
)

// WritePropertyValue records an accepted numeric property write.
//
//	client.WritePropertyValue("urn:dev:ops:camera-mount", "servo0", "http", 50, time.Now())
func (c *Client) WritePropertyValue(thingID, property, source string, value float64, at time.Time) {
	c.writePoint(MeasurementPropertyValues,
		map[string]string{
			"thing":    thingID,
			"property": property,
			"source":   source,
		},
		map[string]any{
			"value": value,
		},
		at,
	)
}

// BusWrite describes one attempted servo register write.
type BusWrite struct {
	Servo    string
	Register uint8
	Logical  float64
	Physical uint16
	Latency  time.Duration
	Failed   bool
	At       time.Time
}

// WriteBusWrite records a servo register write attempt, failed or not.
func (c *Client) WriteBusWrite(thingID string, w BusWrite) {
	c.writePoint(MeasurementBusWrites,
		map[string]string{
			"thing":    thingID,
			"servo":    w.Servo,
			"register": "0x" + strconv.FormatUint(uint64(w.Register), 16),
		},
		map[string]any{
			"logical":    w.Logical,
			"physical":   int64(w.Physical),
			"latency_us": w.Latency.Microseconds(),
			"failed":     w.Failed,
		},
		w.At,
	)
}
