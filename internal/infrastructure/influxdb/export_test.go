package influxdb

// Flush sends buffered points without waiting for the batch interval.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}
