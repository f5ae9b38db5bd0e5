// Package thing models the networked device: a Thing with an ordered set of
// named Properties, served over the Web Thing protocol.
//
// A Property stores the last value it accepted. When a Property has a
// Forwarder, a write is first applied to the hardware through it and only
// stored if the forwarder succeeds; a failed write leaves the stored value
// unchanged and returns a *PropertyError. Properties without a forwarder
// store values directly.
//
// Accepted writes are reported to observers (WebSocket clients, the MQTT
// relay, the history store, telemetry) in the order they were applied.
//
// Actions and events are part of the protocol but this thing defines none;
// NoActions answers every action request with ErrNoSuchAction.
package thing
