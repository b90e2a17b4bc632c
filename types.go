package hfsm

import (
	"log/slog"
	"time"
)

// Logger is the default logger used when none is provided
var Logger = slog.Default()

// Clock is the time source used by timers
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface
type ClockFunc func() time.Time

// Now returns the current time
func (f ClockFunc) Now() time.Time {
	return f()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock reads the wall clock. time.Now carries a monotonic reading,
// so elapsed durations never run backwards.
var SystemClock Clock = systemClock{}

// machineConfig collects the settings applied by MachineOption
type machineConfig struct {
	logger        *slog.Logger
	clock         Clock
	needsExitTime bool
	id            string
}

// MachineOption is a functional option for configuring a Machine
type MachineOption func(*machineConfig)

// WithLogger sets the logger for the machine. Nested machines without a
// logger of their own use their parent's.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(c *machineConfig) {
		c.logger = logger
	}
}

// WithClock sets the time source for the machine and every state and
// transition registered in it
func WithClock(clock Clock) MachineOption {
	return func(c *machineConfig) {
		c.clock = clock
	}
}

// WithNeedsExitTime controls whether a parent machine must wait for this
// machine to allow an exit before leaving it
func WithNeedsExitTime(needsExitTime bool) MachineOption {
	return func(c *machineConfig) {
		c.needsExitTime = needsExitTime
	}
}

// WithID overrides the generated instance id
func WithID(id string) MachineOption {
	return func(c *machineConfig) {
		c.id = id
	}
}
