// Package runner drives a state machine from a goroutine: it calls OnLogic
// at a fixed interval and feeds queued events into Trigger or OnAction.
// All calls into the machine are serialized, so events may be sent from
// any goroutine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/librescoot/hfsm"
)

var (
	// ErrStopped is returned by SendSync once the runner has stopped
	ErrStopped = errors.New("runner stopped")
	// ErrStarted is returned by Start when the runner is already running
	ErrStarted = errors.New("runner already started")
)

const defaultInterval = 16 * time.Millisecond // ~60 FPS

// Machine is the part of a state machine a Runner drives. Both
// *hfsm.Machine and *hfsm.HybridMachine satisfy it.
type Machine[E comparable] interface {
	Init() error
	OnLogic() error
	OnExit() error
	Trigger(event E) error
	OnAction(event E, data any) error
}

type config struct {
	interval  time.Duration
	queueSize int
	logger    *slog.Logger
	afterTick func()
}

// Option is a functional option for configuring a Runner
type Option func(*config)

// WithInterval sets the time between two OnLogic calls. Non-positive
// values keep the default.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		c.interval = d
	}
}

// WithEventQueueSize sets the event queue buffer size
func WithEventQueueSize(size int) Option {
	return func(c *config) {
		c.queueSize = size
	}
}

// WithLogger sets the logger for the runner
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithAfterTick sets a function called after every tick while the machine
// is still locked, e.g. to render its state
func WithAfterTick(fn func()) Option {
	return func(c *config) {
		c.afterTick = fn
	}
}

// Runner is the host loop of a machine
type Runner[E comparable] struct {
	fsm     Machine[E]
	mu      sync.Mutex
	events  chan envelope[E]
	started bool

	interval  time.Duration
	logger    *slog.Logger
	afterTick func()

	cancel context.CancelFunc
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

// New creates a runner for fsm. The machine is entered by Start.
func New[E comparable](fsm Machine[E], opts ...Option) *Runner[E] {
	cfg := config{
		interval:  defaultInterval,
		queueSize: 100,
		logger:    hfsm.Logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.interval <= 0 {
		cfg.logger.Warn("non-positive tick interval, using default", "interval", cfg.interval, "default", defaultInterval)
		cfg.interval = defaultInterval
	}

	return &Runner[E]{
		fsm:       fsm,
		events:    make(chan envelope[E], cfg.queueSize),
		interval:  cfg.interval,
		logger:    cfg.logger,
		afterTick: cfg.afterTick,
		done:      make(chan struct{}),
	}
}

// Start initializes the machine and begins the loop. A runner can only be
// started once.
func (r *Runner[E]) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrStarted
	}
	err := r.fsm.Init()
	r.started = err == nil
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to enter initial state: %w", err)
	}

	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
	return nil
}

// Stop ends the loop, waits for it to finish and exits the machine
func (r *Runner[E]) Stop() error {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	return r.Do(r.fsm.OnExit)
}

// Done is closed when the loop ends, after Stop or a failed call
func (r *Runner[E]) Done() <-chan struct{} {
	return r.done
}

// Err returns the error that ended the loop, if any
func (r *Runner[E]) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *Runner[E]) fail(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// Do runs fn with exclusive access to the machine
func (r *Runner[E]) Do(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn()
}

// Tick runs one OnLogic call outside the regular interval
func (r *Runner[E]) Tick() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fsm.OnLogic(); err != nil {
		return err
	}
	if r.afterTick != nil {
		r.afterTick()
	}
	return nil
}

// Send queues an event for asynchronous processing
func (r *Runner[E]) Send(event E) {
	r.enqueue(envelope[E]{event: Event[E]{ID: event}})
}

// SendAction queues an action with its data for asynchronous processing
func (r *Runner[E]) SendAction(event E, data any) {
	r.enqueue(envelope[E]{event: Event[E]{ID: event, Payload: data, Action: true}})
}

func (r *Runner[E]) enqueue(env envelope[E]) bool {
	select {
	case r.events <- env:
		return true
	default:
		r.logger.Warn("event queue full, dropping event", "event", env.event.ID)
		return false
	}
}

// SendSync sends an event and waits for it to be processed
func (r *Runner[E]) SendSync(event Event[E]) error {
	done := make(chan error, 1)
	select {
	case r.events <- envelope[E]{event: event, done: done}:
	case <-r.done:
		return ErrStopped
	}

	select {
	case err := <-done:
		return err
	case <-r.done:
		return ErrStopped
	}
}

// loop processes ticks and events until the context ends or a call fails
func (r *Runner[E]) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Tick(); err != nil {
				r.logger.Error("logic failed", "error", err)
				r.fail(err)
				return
			}
		case env := <-r.events:
			err := r.process(env.event)
			if env.done != nil {
				env.done <- err
			}
			if err != nil {
				r.logger.Error("event failed", "event", env.event.ID, "error", err)
				r.fail(err)
				return
			}
		}
	}
}

// process handles a single event
func (r *Runner[E]) process(event Event[E]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("processing event", "event", event.ID, "action", event.Action)
	if event.Action {
		return r.fsm.OnAction(event.ID, event.Payload)
	}
	return r.fsm.Trigger(event.ID)
}
