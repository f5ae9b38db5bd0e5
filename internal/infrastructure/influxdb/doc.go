// Package influxdb writes servo telemetry to InfluxDB v2.
//
// Two measurements are written:
//   - property_values: accepted numeric property writes, tagged by thing,
//     property, and source
//   - bus_writes: every servo register write attempt with its logical and
//     physical value, latency, and failure flag
//
// Writes are batched according to batch_size and flush_interval and never
// block the caller. Connection and health check errors are returned
// directly; write errors go to the SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WritePropertyValue(thingID, "servo0", "http", 50, time.Now())
package influxdb
