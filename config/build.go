package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/librescoot/hfsm"
)

// Option is a functional option for Build
type Option func(*builder)

// WithData sets the application data accessible via Context
func WithData(data any) Option {
	return func(b *builder) {
		b.data = data
	}
}

// WithMachineOptions passes options to the root machine. Nested machines
// inherit its logger and clock.
func WithMachineOptions(opts ...hfsm.MachineOption) Option {
	return func(b *builder) {
		b.machineOpts = append(b.machineOpts, opts...)
	}
}

type builder struct {
	reg         *Registry
	data        any
	machineOpts []hfsm.MachineOption
	logger      *slog.Logger // Root logger, nested machines are unbound while populated
}

// Build validates def and creates a root machine from it, resolving every
// callback name through reg. The machine is not entered; call Init.
func Build(def *Definition, reg *Registry, opts ...Option) (*Machine, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}

	b := &builder{reg: reg}
	for _, opt := range opts {
		opt(b)
	}

	m := hfsm.New[string, string](b.machineOpts...)
	b.logger = m.Logger()
	if err := b.populate(m, def); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *builder) context(m *Machine, s hfsm.State[string]) *Context {
	return &Context{FSM: m, State: s, Data: b.data, Logger: m.Logger()}
}

// populate adds the states and transitions of def to m
func (b *builder) populate(m *Machine, def *Definition) error {
	for i := range def.States {
		sd := &def.States[i]
		state, err := b.state(m, sd)
		if err != nil {
			return fmt.Errorf("state %q: %w", sd.ID, err)
		}
		if err := m.AddState(sd.ID, state); err != nil {
			return fmt.Errorf("state %q: %w", sd.ID, err)
		}
	}

	if def.Start != "" {
		m.SetStartState(def.Start)
	}

	for i := range def.Transitions {
		td := &def.Transitions[i]
		if err := b.transition(m, td); err != nil {
			return fmt.Errorf("transition %s -> %s: %w", td.From, td.To, err)
		}
	}
	return nil
}

func (b *builder) state(owner *Machine, sd *StateDef) (hfsm.State[string], error) {
	onEnter, err := b.reg.sequence(sd.OnEnter)
	if err != nil {
		return nil, err
	}
	onLogic, err := b.reg.sequence(sd.OnLogic)
	if err != nil {
		return nil, err
	}
	onExit, err := b.reg.sequence(sd.OnExit)
	if err != nil {
		return nil, err
	}

	if sd.Machine != nil {
		return b.nested(owner, sd, onEnter, onLogic, onExit)
	}

	var canExit Guard
	if sd.CanExit != "" {
		if canExit, err = b.reg.guard(sd.CanExit); err != nil {
			return nil, err
		}
	}

	if onEnter == nil && onLogic == nil && onExit == nil && canExit == nil && len(sd.Actions) == 0 {
		return hfsm.NewStateBase[string](sd.NeedsExitTime), nil
	}

	fns := hfsm.StateFuncs[string, string]{NeedsExitTime: sd.NeedsExitTime}
	if onEnter != nil {
		fns.OnEnter = func(s *hfsm.FuncState[string, string]) error {
			return onEnter(b.context(owner, s))
		}
	}
	if onLogic != nil {
		fns.OnLogic = func(s *hfsm.FuncState[string, string]) error {
			return onLogic(b.context(owner, s))
		}
	}
	if onExit != nil {
		fns.OnExit = func(s *hfsm.FuncState[string, string]) error {
			return onExit(b.context(owner, s))
		}
	}
	if canExit != nil {
		fns.CanExit = func(s *hfsm.FuncState[string, string]) bool {
			return canExit(b.context(owner, s))
		}
	}

	fs := hfsm.NewFuncState(fns)
	for event, name := range sd.Actions {
		action, err := b.reg.action(name)
		if err != nil {
			return nil, err
		}
		hfsm.AddActionWithData(&fs.ActionState, event, func(data any) error {
			ctx := b.context(owner, fs)
			ctx.Payload = data
			return action(ctx)
		})
	}
	return fs, nil
}

func (b *builder) nested(owner *Machine, sd *StateDef, onEnter, onLogic, onExit Action) (hfsm.State[string], error) {
	opt := hfsm.WithNeedsExitTime(sd.NeedsExitTime)

	if !sd.hasCallbacks() {
		m := hfsm.New[string, string](opt)
		if err := b.populate(m, sd.Machine); err != nil {
			return nil, err
		}
		return m, nil
	}

	wrap := func(fn Action) func(*hfsm.HybridMachine[string, string]) error {
		if fn == nil {
			return nil
		}
		return func(h *hfsm.HybridMachine[string, string]) error {
			return fn(b.context(owner, h))
		}
	}
	h := hfsm.NewHybrid(hfsm.HybridFuncs[string, string]{
		OnEnter: wrap(onEnter),
		OnLogic: wrap(onLogic),
		OnExit:  wrap(onExit),
	}, opt)
	if err := b.populate(h.Machine, sd.Machine); err != nil {
		return nil, err
	}
	return h, nil
}

func (b *builder) transition(m *Machine, td *TransitionDef) error {
	var guard Guard
	if td.Guard != "" {
		var err error
		if guard, err = b.reg.guard(td.Guard); err != nil {
			return err
		}
	}
	// Guards and delays see the active state, so Elapsed is the time spent in it
	active := func() *Context {
		s, _ := m.ActiveState()
		return b.context(m, s)
	}
	check := func() bool {
		return guard == nil || guard(active())
	}

	var t hfsm.Transition[string]
	switch {
	case td.AfterFunc != "":
		delay, err := b.reg.delay(td.AfterFunc)
		if err != nil {
			return err
		}
		t = hfsm.NewDynamicTimedTransition(td.From, td.To,
			func(*hfsm.DynamicTimedTransition[string]) time.Duration { return delay(active()) },
			func(*hfsm.DynamicTimedTransition[string]) bool { return check() },
			td.ForceInstantly)
	case td.After > 0:
		t = hfsm.NewTimedTransition(td.From, td.To, td.After,
			func(*hfsm.TimedTransition[string]) bool { return check() },
			td.ForceInstantly)
	case guard != nil:
		t = hfsm.NewConditionalTransition(td.From, td.To,
			func(*hfsm.ConditionalTransition[string]) bool { return check() },
			td.ForceInstantly)
	default:
		t = hfsm.NewTransition(td.From, td.To, td.ForceInstantly)
	}

	b.logger.Debug("adding transition", slog.String("from", td.From), slog.String("to", td.To), slog.String("trigger", td.Trigger))

	switch {
	case td.From == WildcardState && td.Trigger != "":
		return m.AddTriggerTransitionFromAny(td.Trigger, t)
	case td.From == WildcardState:
		return m.AddTransitionFromAny(t)
	case td.Trigger != "":
		return m.AddTriggerTransition(td.Trigger, t)
	default:
		return m.AddTransition(t)
	}
}
