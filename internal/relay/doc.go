// Package relay mirrors a thing's properties onto MQTT.
//
// After every accepted property write, whatever transport made it, the relay
// publishes the value retained on servomount/state/{thing}/{property}.
// Commands arriving on servomount/command/{thing}/{property} go through the
// same property write path as HTTP and WebSocket writes, and their outcome is
// published on servomount/ack/{thing}/{property}. Bus health is published
// periodically on servomount/health/{thing}.
//
// Publishing happens on the relay's own goroutine. Property observers and
// MQTT message handlers only enqueue, so a slow broker never holds up a
// property write and handlers never wait on their own client.
package relay
