package domain

import "context"

// InvokeFunc executes a capability with JSON-like arguments.
type InvokeFunc func(ctx context.Context, args map[string]any) (any, error)

// Capability is a named, described, schema-typed operation exposed to an
// external orchestrator.
type Capability struct {
	Name        string
	Description string
	InputSchema map[string]any
	Invoke      InvokeFunc
}

// CapabilityDefinition is the serialisable view of a Capability.
type CapabilityDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definition returns the capability without its invoke function.
func (c Capability) Definition() CapabilityDefinition {
	return CapabilityDefinition{
		Name:        c.Name,
		Description: c.Description,
		Parameters:  c.InputSchema,
	}
}
