package thing

import (
	"maps"
	"sync"
	"time"
)

// Write sources recorded with each accepted change.
const (
	SourceLocal     = "local"
	SourceHTTP      = "http"
	SourceWebSocket = "websocket"
	SourceMQTT      = "mqtt"
)

// Metadata describes a property: "type", "description", "readOnly",
// "minimum", "maximum", "unit" and so on.
type Metadata map[string]any

// Forwarder applies a value to whatever backs a property. It returns the
// value to store, or an error if the value was not applied.
type Forwarder interface {
	SetValue(value any) (any, error)
}

// Change describes one accepted property write.
type Change struct {
	Thing    string
	Property string
	Value    any
	Source   string
	At       time.Time
}

// Observer is notified after each accepted write. Observers run on the
// writer's goroutine while the property's write lock is held, so they must
// not block and must not write to the same property.
type Observer func(Change)

// Property is a named, typed value on a Thing.
//
// Thread Safety:
//   - Writes to one property are serialised, so the stored value always
//     matches the last value applied through the forwarder.
//   - Reads never wait on a hardware write.
type Property struct {
	name      string
	thingID   string
	metadata  Metadata
	forwarder Forwarder

	writeMu sync.Mutex

	mu        sync.RWMutex
	value     any
	observers []Observer
}

// NewProperty creates a property with an initial value. forwarder may be nil.
// The initial value is stored as-is; it is not applied through the forwarder.
func NewProperty(name string, initial any, metadata Metadata, forwarder Forwarder) *Property {
	md := make(Metadata, len(metadata))
	maps.Copy(md, metadata)
	return &Property{
		name:      name,
		metadata:  md,
		forwarder: forwarder,
		value:     initial,
	}
}

// Name returns the property name.
func (p *Property) Name() string {
	return p.name
}

// Value returns the last accepted value.
func (p *Property) Value() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Metadata returns a copy of the property metadata.
func (p *Property) Metadata() Metadata {
	md := make(Metadata, len(p.metadata))
	maps.Copy(md, p.metadata)
	return md
}

// ReadOnly reports whether the metadata marks the property read-only.
func (p *Property) ReadOnly() bool {
	ro, _ := p.metadata["readOnly"].(bool)
	return ro
}

// Observe registers fn to be called after every accepted write.
func (p *Property) Observe(fn Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// SetValue writes v from a local caller. See Apply.
func (p *Property) SetValue(v any) (any, error) {
	return p.Apply(v, SourceLocal)
}

// Apply writes v to the property.
//
// With a forwarder, v is applied through it and the forwarder's result is
// stored only on success. Without one, v is stored directly. On failure the
// stored value is unchanged and a *PropertyError wrapping the cause is
// returned. source is passed to observers.
func (p *Property) Apply(v any, source string) (any, error) {
	if p.ReadOnly() {
		return nil, &PropertyError{Property: p.name, Err: ErrReadOnly}
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	accepted := v
	if p.forwarder != nil {
		result, err := p.forwarder.SetValue(v)
		if err != nil {
			return nil, &PropertyError{Property: p.name, Err: err}
		}
		accepted = result
	}

	p.mu.Lock()
	p.value = accepted
	observers := p.observers
	p.mu.Unlock()

	change := Change{
		Thing:    p.thingID,
		Property: p.name,
		Value:    accepted,
		Source:   source,
		At:       time.Now().UTC(),
	}
	for _, fn := range observers {
		fn(change)
	}

	return accepted, nil
}

// Href returns the property's path relative to the thing.
func (p *Property) Href() string {
	return "/properties/" + p.name
}

// Describe returns the property description: its metadata plus a link to
// the property resource.
func (p *Property) Describe() map[string]any {
	desc := make(map[string]any, len(p.metadata)+1)
	maps.Copy(desc, p.metadata)
	desc["links"] = []Link{{Rel: "property", Href: p.Href()}}
	return desc
}
