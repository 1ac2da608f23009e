package tools

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"campusnerd/internal/logging"
)

// Registry holds all available tools and provides lookup functionality.
// It is thread-safe; tools are registered once at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}

	stored := *tool
	stored.Schema = tool.Schema.clone()
	r.tools[tool.Name] = &stored

	logging.ToolsDebug("Registered tool: %s", tool.Name)
	return nil
}

// MustRegister registers a tool and panics on error.
// Use this for static tool registration at init time.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

func (r *Registry) get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	return r.get(name) != nil
}

// Spec returns the description of a registered tool.
func (r *Registry) Spec(name string) (Spec, bool) {
	tool := r.get(name)
	if tool == nil {
		return Spec{}, false
	}
	return tool.Spec(), true
}

// Specs returns all tool descriptions sorted by name.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, tool.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Describe renders the tool catalogue for the model.
func (r *Registry) Describe() string {
	var sb strings.Builder
	for _, spec := range r.Specs() {
		fmt.Fprintf(&sb, "- %s: %s\n", spec.Name, spec.Description)
		if spec.Parameters.IsEmpty() {
			sb.WriteString("  Parameters: none (use {} as Action Input)\n")
		} else {
			required := make(map[string]bool, len(spec.Parameters.Required))
			for _, name := range spec.Parameters.Required {
				required[name] = true
			}
			sb.WriteString("  Parameters:\n")
			for _, name := range spec.Parameters.propertyNames() {
				prop := spec.Parameters.Properties[name]
				opt := "optional"
				if required[name] {
					opt = "required"
				}
				fmt.Fprintf(&sb, "    - %s (%s, %s): %s\n", name, prop.Type, opt, prop.Description)
			}
		}
		if spec.Returns != "" {
			fmt.Fprintf(&sb, "  Returns: %s\n", spec.Returns)
		}
	}
	return sb.String()
}

// Invoke validates and runs a tool. It never returns an error or panics:
// every failure is reported in the Observation so the loop can react.
func (r *Registry) Invoke(ctx context.Context, env Env, name string, args map[string]any) (obs Observation) {
	start := time.Now()

	tool := r.get(name)
	if tool == nil {
		logging.ToolsWarn("Rejected unknown tool %q", name)
		return failed(name, fmt.Errorf("%w: %q (available: %s)", ErrUnknownTool, name, strings.Join(r.Names(), ", ")), start)
	}

	if err := tool.Schema.Validate(args); err != nil {
		logging.ToolsWarn("Rejected %s arguments: %v", name, err)
		return failed(name, fmt.Errorf("%s: %w", name, err), start)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.Get(logging.CategoryTools).Error("Tool %s panicked: %v", name, rec)
			obs = failed(name, fmt.Errorf("%w: %s: %v", ErrToolPanic, name, rec), start)
		}
	}()

	logging.ToolsDebug("Executing tool: %s", name)
	content, err := tool.Execute(ctx, env, args)
	duration := time.Since(start)
	logging.ToolsDebug("Tool %s completed in %v (success=%v)", name, duration, err == nil)

	if err != nil {
		obs = failed(name, err, start)
		obs.Duration = duration
		return obs
	}
	return Observation{Tool: name, Content: content, Duration: duration}
}

// Validate checks args against the schema: required keys present, no
// unknown keys, JSON types matching.
func (s Schema) Validate(args map[string]any) error {
	for _, required := range s.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: missing required argument %q", ErrInvalidArguments, required)
		}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		prop, ok := s.Properties[k]
		if !ok {
			if s.IsEmpty() {
				return fmt.Errorf("%w: takes no arguments, got %q", ErrInvalidArguments, k)
			}
			return fmt.Errorf("%w: unexpected argument %q (accepted: %s)", ErrInvalidArguments, k, strings.Join(s.propertyNames(), ", "))
		}
		if !typeMatches(prop.Type, args[k]) {
			return fmt.Errorf("%w: argument %q must be %s, got %T", ErrInvalidArguments, k, prop.Type, args[k])
		}
		if len(prop.Enum) > 0 && !inEnum(prop.Enum, args[k]) {
			return fmt.Errorf("%w: argument %q must be one of %v", ErrInvalidArguments, k, prop.Enum)
		}
	}
	return nil
}

// typeMatches checks a decoded JSON value against a JSON schema type.
func typeMatches(typ string, v any) bool {
	switch typ {
	case "", "any":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch n := v.(type) {
		case int, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

func inEnum(enum []any, v any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}
