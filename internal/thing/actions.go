package thing

import "context"

// Action is a requested operation on a thing.
type Action interface {
	ID() string
	Name() string
	Perform(ctx context.Context) error
}

// ActionGenerator creates actions by name. It returns false when the thing
// has no action called name.
type ActionGenerator interface {
	Generate(t *Thing, name string, input any) (Action, bool)
}

// NoActions is the generator for things without actions.
type NoActions struct{}

// Generate always reports that no such action exists.
func (NoActions) Generate(*Thing, string, any) (Action, bool) {
	return nil, false
}
