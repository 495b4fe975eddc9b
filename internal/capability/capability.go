// Package capability defines the retrieval capabilities the generator may
// invoke mid-response, plus the registry that declares their schemas and
// dispatches by name.
package capability

import (
	"context"
	"fmt"

	"courserag/internal/domain"
)

// Property describes one schema parameter.
type Property struct {
	Type        string
	Description string
}

// Schema declares a capability to the generator: its name, what it does, and
// the parameters it accepts.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
}

// Result is the outcome of one capability invocation. Sources carry the
// attribution labels for this call only; they travel with the result value
// rather than through shared state, so concurrent query flows cannot leak
// attribution into each other.
type Result struct {
	Text    string
	Sources []string
}

// Capability is a named, schema-declared operation.
type Capability interface {
	Schema() Schema
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Registry holds the set of callable capabilities.
type Registry struct {
	order        []string
	capabilities map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[string]Capability)}
}

// Register adds a capability. Registering a name twice is an error.
func (r *Registry) Register(c Capability) error {
	name := c.Schema().Name
	if _, ok := r.capabilities[name]; ok {
		return fmt.Errorf("capability %q already registered", name)
	}
	r.capabilities[name] = c
	r.order = append(r.order, name)
	return nil
}

// Schemas returns the declared schema of every registered capability, in
// registration order.
func (r *Registry) Schemas() []Schema {
	schemas := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.capabilities[name].Schema())
	}
	return schemas
}

// Dispatch invokes the named capability with the given arguments.
func (r *Registry) Dispatch(ctx context.Context, call domain.CapabilityCall) (Result, error) {
	c, ok := r.capabilities[call.Name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrUnknownCapability, call.Name)
	}
	return c.Execute(ctx, call.Arguments)
}
