package config

import (
	"fmt"
	"time"
)

// Action executes a side effect from a state callback or action table
type Action func(c *Context) error

// Guard returns true if a transition may be taken, or a state may be left
type Guard func(c *Context) bool

// Delay computes the delay of a dynamically timed transition
type Delay func(c *Context) time.Duration

// Registry maps the names used in a Definition to Go functions
type Registry struct {
	actions map[string]Action
	guards  map[string]Guard
	delays  map[string]Delay
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Action),
		guards:  make(map[string]Guard),
		delays:  make(map[string]Delay),
	}
}

// RegisterAction adds a side-effect function to the registry
func (r *Registry) RegisterAction(name string, fn Action) *Registry {
	r.actions[name] = fn
	return r
}

// RegisterGuard adds a predicate function to the registry
func (r *Registry) RegisterGuard(name string, fn Guard) *Registry {
	r.guards[name] = fn
	return r
}

// RegisterDelay adds a delay function to the registry
func (r *Registry) RegisterDelay(name string, fn Delay) *Registry {
	r.delays[name] = fn
	return r
}

func (r *Registry) action(name string) (Action, error) {
	if r != nil {
		if fn, ok := r.actions[name]; ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("action %q not registered", name)
}

func (r *Registry) guard(name string) (Guard, error) {
	if r != nil {
		if fn, ok := r.guards[name]; ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("guard %q not registered", name)
}

func (r *Registry) delay(name string) (Delay, error) {
	if r != nil {
		if fn, ok := r.delays[name]; ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("delay %q not registered", name)
}

// sequence resolves a list of names into a single action running them in order
func (r *Registry) sequence(names []string) (Action, error) {
	if len(names) == 0 {
		return nil, nil
	}
	fns := make([]Action, 0, len(names))
	for _, name := range names {
		fn, err := r.action(name)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return func(c *Context) error {
		for i, fn := range fns {
			if err := fn(c); err != nil {
				return fmt.Errorf("action %q: %w", names[i], err)
			}
		}
		return nil
	}, nil
}
