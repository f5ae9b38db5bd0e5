// Package telemetry turns servo bus writes and accepted property changes into
// time-series points.
//
// A Recorder is installed as the servo forwarders' write recorder and as a
// thing observer. Both hooks run on the property write path, so the sink
// must not block; the InfluxDB client batches in the background.
package telemetry
