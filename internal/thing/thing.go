package thing

import (
	"fmt"
	"sync"
)

// WebThingContext is the JSON-LD context of thing descriptions.
const WebThingContext = "https://webthings.io/schemas"

// Link is a typed hyperlink in a description.
type Link struct {
	Rel       string `json:"rel"`
	Href      string `json:"href"`
	MediaType string `json:"mediaType,omitempty"`
}

// Description is the Web Thing description document.
type Description struct {
	ID                  string                    `json:"id"`
	Title               string                    `json:"title"`
	Context             string                    `json:"@context"`
	Type                []string                  `json:"@type,omitempty"`
	Description         string                    `json:"description,omitempty"`
	Properties          map[string]map[string]any `json:"properties"`
	Actions             map[string]any            `json:"actions"`
	Events              map[string]any            `json:"events"`
	Links               []Link                    `json:"links"`
	Base                string                    `json:"base,omitempty"`
	SecurityDefinitions map[string]any            `json:"securityDefinitions"`
	Security            string                    `json:"security"`
}

// Thing is the device exposed on the network.
//
// Properties are fixed once serving starts; only their values change.
type Thing struct {
	id          string
	title       string
	types       []string
	description string

	mu         sync.RWMutex
	properties []*Property
	index      map[string]*Property
	actions    ActionGenerator
}

// New creates a Thing with no properties and no actions.
// thingType may be empty.
func New(id, title, thingType, description string) *Thing {
	var types []string
	if thingType != "" {
		types = []string{thingType}
	}
	return &Thing{
		id:          id,
		title:       title,
		types:       types,
		description: description,
		index:       make(map[string]*Property),
		actions:     NoActions{},
	}
}

// ID returns the thing identifier.
func (t *Thing) ID() string {
	return t.id
}

// Title returns the human-readable title.
func (t *Thing) Title() string {
	return t.title
}

// AddProperty appends p. Property names are unique within a thing.
func (t *Thing) AddProperty(p *Property) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.index[p.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProperty, p.name)
	}
	p.thingID = t.id
	t.properties = append(t.properties, p)
	t.index[p.name] = p
	return nil
}

// Property looks up a property by name.
func (t *Thing) Property(name string) (*Property, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, name)
	}
	return p, nil
}

// Properties returns the properties in the order they were added.
func (t *Thing) Properties() []*Property {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Property, len(t.properties))
	copy(out, t.properties)
	return out
}

// PropertyValues returns every property's current value keyed by name.
func (t *Thing) PropertyValues() map[string]any {
	props := t.Properties()
	values := make(map[string]any, len(props))
	for _, p := range props {
		values[p.name] = p.Value()
	}
	return values
}

// SetProperty writes v to the named property on behalf of source.
func (t *Thing) SetProperty(name string, v any, source string) (any, error) {
	p, err := t.Property(name)
	if err != nil {
		return nil, err
	}
	return p.Apply(v, source)
}

// Observe registers fn on every property.
func (t *Thing) Observe(fn Observer) {
	for _, p := range t.Properties() {
		p.Observe(fn)
	}
}

// RequestAction asks the action generator for an action. Without a
// generator that knows name, it returns ErrNoSuchAction.
func (t *Thing) RequestAction(name string, input any) (Action, error) {
	t.mu.RLock()
	g := t.actions
	t.mu.RUnlock()

	action, ok := g.Generate(t, name, input)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchAction, name)
	}
	return action, nil
}

// Describe builds the thing description. base is the absolute URL the
// thing is served at; wsHref, if non-empty, is advertised as the WebSocket
// endpoint.
func (t *Thing) Describe(base, wsHref string) Description {
	props := t.Properties()
	properties := make(map[string]map[string]any, len(props))
	for _, p := range props {
		properties[p.name] = p.Describe()
	}

	links := []Link{
		{Rel: "properties", Href: "/properties"},
		{Rel: "actions", Href: "/actions"},
		{Rel: "events", Href: "/events"},
	}
	if wsHref != "" {
		links = append(links, Link{Rel: "alternate", Href: wsHref})
	}

	return Description{
		ID:          t.id,
		Title:       t.title,
		Context:     WebThingContext,
		Type:        t.types,
		Description: t.description,
		Properties:  properties,
		Actions:     map[string]any{},
		Events:      map[string]any{},
		Links:       links,
		Base:        base,
		SecurityDefinitions: map[string]any{
			"nosec_sc": map[string]any{"scheme": "nosec"},
		},
		Security: "nosec_sc",
	}
}
