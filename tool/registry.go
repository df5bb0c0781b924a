package tool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/internal/util"
	"github.com/hupe1980/agentplay/model"
)

// Registry maps tool names to descriptors. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
}

// NewRegistry creates a registry, registering the given descriptors.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{tools: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a descriptor. Names must be unique and non-empty, and field
// names must be identifiers.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("tool name is required")
	}
	if d.Render == nil {
		return fmt.Errorf("tool %s has no renderer", d.Name)
	}
	for _, f := range d.Fields {
		if !util.IsIdentifier(f.Name) {
			return fmt.Errorf("tool %s: field name %q is not an identifier", d.Name, f.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %s already registered", d.Name)
	}
	r.tools[d.Name] = d.clone()

	return nil
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	if !ok {
		return Descriptor{}, &core.ToolResolutionError{Name: name}
	}

	return d.clone(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Subset returns a registry holding only the named tools. An empty list
// selects every tool. Unknown names are a configuration error.
func (r *Registry) Subset(names []string) (*Registry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub := &Registry{tools: make(map[string]Descriptor, len(names))}

	if len(names) == 0 {
		for n, d := range r.tools {
			sub.tools[n] = d
		}
		return sub, nil
	}

	for _, n := range names {
		d, ok := r.tools[n]
		if !ok {
			return nil, core.NewConfigurationError(core.InvalidRequest, "active tool %q is not registered", n)
		}
		sub.tools[n] = d
	}

	return sub, nil
}

// Render validates args against the tool's schema and renders its instruction.
// Arguments the tool does not declare never reach the renderer.
func (r *Registry) Render(name string, args map[string]any) (instruction string, err error) {
	d, err := r.Resolve(name)
	if err != nil {
		return "", err
	}

	if args == nil {
		args = map[string]any{}
	}

	if err := util.ValidateParameters(args, d.Parameters()); err != nil {
		return "", &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation, Err: err}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = &ToolError{Tool: name, Message: fmt.Sprintf("renderer panicked: %v", rec), Code: CodeRender}
		}
	}()

	instruction, err = d.Render(d.declaredArgs(args))
	if err != nil {
		return "", &ToolError{Tool: name, Message: err.Error(), Code: CodeRender, Err: err}
	}

	return instruction, nil
}

// Names lists the registered tool names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Descriptors returns copies of all descriptors ordered by name.
func (r *Registry) Descriptors() []Descriptor {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(names))
	for _, n := range names {
		if d, ok := r.tools[n]; ok {
			out = append(out, d.clone())
		}
	}

	return out
}

// Definitions returns the provider-neutral declarations ordered by name.
func (r *Registry) Definitions() []model.ToolDefinition {
	descs := r.Descriptors()
	defs := make([]model.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, d.Definition())
	}
	return defs
}
