// Package tools defines the tool-invocation capability the engine dispatches
// plan actions to. The engine treats a Dispatcher as an opaque black box and
// only inspects whether a call failed.
package tools

import (
	"context"
	"fmt"
)

// Tool is one named capability available to plan actions.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// ToolError wraps a failure from a specific tool invocation.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Dispatcher routes an action to the tool implementing it.
type Dispatcher interface {
	Execute(ctx context.Context, toolName string, params map[string]any) (string, error)
}

// Registry manages the set of available tools and implements Dispatcher.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the named tool, or nil.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Names lists the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute dispatches to the named tool. An unknown tool is a ToolError like
// any other dispatch failure.
func (r *Registry) Execute(ctx context.Context, toolName string, params map[string]any) (string, error) {
	t := r.tools[toolName]
	if t == nil {
		return "", &ToolError{Tool: toolName, Err: fmt.Errorf("unknown tool")}
	}
	out, err := t.Execute(ctx, params)
	if err != nil {
		return "", &ToolError{Tool: toolName, Err: err}
	}
	return out, nil
}
