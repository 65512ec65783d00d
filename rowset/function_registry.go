package rowset

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function is a custom function callable from predicate expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
	names     map[string]string
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
		names:     make(map[string]string),
	}
}

// Register stores fn under name. Names are case-insensitive and unique.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("rowset: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("rowset: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
		r.names = make(map[string]string)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("rowset: function %q already registered", name)
	}
	r.functions[key] = fn
	r.names[key] = name
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
		names:     make(map[string]string, len(r.names)),
	}
	for key, fn := range r.functions {
		clone.functions[key] = fn
		clone.names[key] = r.names[key]
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("rowset: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("rowset: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names, as registered, sorted
// alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for _, name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFunctions returns a registry with the helpers dashboards use in
// filters: hasLabel(labels, key[, value]) and since(t, now) in seconds.
func DefaultFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("hasLabel", hasLabel)
	_ = registry.Register("since", since)
	return registry
}

func hasLabel(args ...any) (any, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("rowset: hasLabel expects 2 or 3 args, got %d", len(args))
	}
	key, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("rowset: hasLabel key must be a string")
	}
	value, found := lookupIn(plain(args[0]), key)
	if !found {
		return false, nil
	}
	if len(args) == 2 {
		return true, nil
	}
	return stringify(value) == stringify(args[2]), nil
}

func since(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("rowset: since expects 2 args, got %d", len(args))
	}
	from, ok := toTime(args[0])
	if !ok {
		return nil, fmt.Errorf("rowset: since start must be a time, got %T", args[0])
	}
	now, ok := toTime(args[1])
	if !ok {
		return nil, fmt.Errorf("rowset: since now must be a time, got %T", args[1])
	}
	return now.Sub(from).Seconds(), nil
}
