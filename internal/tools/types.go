// Package tools exposes extraction capabilities to the reasoning loop as
// named, schema-described callables.
//
// Architecture:
//
//	Action{Tool, Args} → Registry.Invoke → Schema.Validate → Tool.Execute → Observation
package tools

import (
	"context"
	"sort"

	"campusnerd/internal/extract"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`
}

// Schema defines the JSON schema for tool arguments. Arguments not listed in
// Properties are rejected.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// IsEmpty reports whether the tool takes no arguments.
func (s Schema) IsEmpty() bool {
	return len(s.Properties) == 0
}

// clone returns a deep copy so registered schemas stay immutable.
func (s Schema) clone() Schema {
	out := Schema{
		Required:   append([]string(nil), s.Required...),
		Properties: make(map[string]Property, len(s.Properties)),
	}
	for k, v := range s.Properties {
		v.Enum = append([]any(nil), v.Enum...)
		out.Properties[k] = v
	}
	return out
}

// propertyNames returns the schema's parameter names in sorted order.
func (s Schema) propertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Env is the per-question environment a tool runs in.
type Env struct {
	// Pages leases the browsing context for this question.
	Pages extract.PageSource
}

// ExecuteFunc is the signature for tool execution.
// Returns the observation content (JSON for the model) and any error.
type ExecuteFunc func(ctx context.Context, env Env, args map[string]any) (string, error)

// Tool defines a read-only, idempotent capability the loop can invoke.
type Tool struct {
	// Name is the unique identifier the model uses in its Action line.
	Name string

	// Description explains what the tool does and when to use it.
	Description string

	// Schema defines the accepted arguments.
	Schema Schema

	// Returns describes the result shape for the model.
	Returns string

	// Execute runs the tool with validated arguments.
	Execute ExecuteFunc
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t == nil || t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Spec is the model-facing description of a registered tool.
type Spec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
	Returns     string `json:"returns"`
}

// Spec returns a copy of the tool's description.
func (t *Tool) Spec() Spec {
	return Spec{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Schema.clone(),
		Returns:     t.Returns,
	}
}
