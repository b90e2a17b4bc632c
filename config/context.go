package config

import (
	"log/slog"
	"time"

	"github.com/librescoot/hfsm"
)

// Machine is the machine type produced by Build
type Machine = hfsm.Machine[string, string]

// Context is passed to all registered actions, guards and delays
type Context struct {
	FSM     *Machine           // Machine owning the state or transition
	State   hfsm.State[string] // State being run, the active state for guards and delays
	Payload any                // Action data (nil outside actions)
	Data    any                // User-provided application data
	Logger  *slog.Logger
}

// CurrentState returns the active state of the owning machine, or "" before
// the machine is entered
func (c *Context) CurrentState() string {
	name, _ := c.FSM.ActiveStateName()
	return name
}

// IsInState checks if id is active in the owning machine or in any
// machine nested below it
func (c *Context) IsInState(id string) bool {
	for _, s := range c.FSM.ActiveHierarchyPath() {
		if s == id {
			return true
		}
	}
	return false
}

// Elapsed returns the time since the current state was entered
func (c *Context) Elapsed() time.Duration {
	if timed, ok := c.State.(interface{ Timer() *hfsm.Timer }); ok {
		return timed.Timer().Elapsed()
	}
	return 0
}

// RequestStateChange asks the owning machine to switch states
func (c *Context) RequestStateChange(to string, forceInstantly bool) error {
	return c.FSM.RequestStateChange(to, forceInstantly)
}

// StateCanExit tells the owning machine that the current state is ready to
// be left
func (c *Context) StateCanExit() error {
	return c.FSM.StateCanExit()
}
