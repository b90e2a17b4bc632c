package hfsm

import (
	"fmt"
	"log/slog"
	"reflect"
)

// State is the unit of behavior driven by a Machine
type State[S comparable] interface {
	Name() S
	NeedsExitTime() bool
	Parent() Parent[S]

	// Bind is called by the owning machine on registration, before Init
	Bind(name S, parent Parent[S])
	Init() error

	OnEnter() error
	OnLogic() error
	OnExit() error

	// OnExitRequest is called while a transition out of this state is
	// pending. The state answers by calling Parent().StateCanExit(),
	// either now or later from OnLogic.
	OnExitRequest() error
}

// Parent is the view a state has of the machine that owns it
type Parent[S comparable] interface {
	StateCanExit() error
	RequestStateChange(name S, forceInstantly bool) error
	ActiveStateName() (S, error)
	Clock() Clock
	Logger() *slog.Logger
}

// Triggerable is implemented by states that react to events
type Triggerable[E comparable] interface {
	Trigger(event E) error
}

// Actionable is implemented by states that dispatch named actions
type Actionable[E comparable] interface {
	OnAction(event E, data any) error
}

// StateBase is a state without behavior, usable as a marker or group
// state and as the embedded base of other states
type StateBase[S comparable] struct {
	name          S
	needsExitTime bool
	parent        Parent[S]
	timer         *Timer
}

// NewStateBase creates a marker state
func NewStateBase[S comparable](needsExitTime bool) *StateBase[S] {
	return &StateBase[S]{
		needsExitTime: needsExitTime,
		timer:         NewTimer(nil),
	}
}

func newStateBase[S comparable](needsExitTime bool) StateBase[S] {
	return StateBase[S]{
		needsExitTime: needsExitTime,
		timer:         NewTimer(nil),
	}
}

// Name returns the id assigned by the owning machine
func (s *StateBase[S]) Name() S {
	return s.name
}

// NeedsExitTime reports whether the state must allow its own exit
func (s *StateBase[S]) NeedsExitTime() bool {
	return s.needsExitTime
}

// Parent returns the owning machine, nil before registration
func (s *StateBase[S]) Parent() Parent[S] {
	return s.parent
}

// Timer returns the timer reset every time the state is entered
func (s *StateBase[S]) Timer() *Timer {
	return s.timer
}

func (s *StateBase[S]) Bind(name S, parent Parent[S]) {
	s.name = name
	s.parent = parent
	if s.timer == nil {
		s.timer = NewTimer(nil)
	}
	s.timer.bindTo(parent)
}

func (s *StateBase[S]) Init() error {
	return nil
}

func (s *StateBase[S]) OnEnter() error {
	s.timer.Reset()
	return nil
}

func (s *StateBase[S]) OnLogic() error {
	return nil
}

func (s *StateBase[S]) OnExit() error {
	return nil
}

// OnExitRequest allows the exit immediately
func (s *StateBase[S]) OnExitRequest() error {
	if s.parent == nil {
		return nil
	}
	return s.parent.StateCanExit()
}

// ActionState is a state with a table of named actions
type ActionState[S, E comparable] struct {
	StateBase[S]
	actions map[E]func(data any) error
}

// NewActionState creates a state that only dispatches actions
func NewActionState[S, E comparable](needsExitTime bool) *ActionState[S, E] {
	return &ActionState[S, E]{StateBase: newStateBase[S](needsExitTime)}
}

func (s *ActionState[S, E]) setAction(event E, fn func(data any) error) {
	if s.actions == nil {
		s.actions = make(map[E]func(data any) error)
	}
	s.actions[event] = fn
}

// AddAction registers an action that takes no data. Dispatching it with
// non-nil data fails with an ActionTypeError.
func (s *ActionState[S, E]) AddAction(event E, fn func() error) *ActionState[S, E] {
	s.setAction(event, func(data any) error {
		if data != nil {
			return &ActionTypeError{Event: event, Want: "no data", Got: fmt.Sprintf("%T", data)}
		}
		return fn()
	})
	return s
}

// AddActionWithData registers an action receiving data of type T. Nil data
// is passed as the zero value of T.
func AddActionWithData[T any, S, E comparable](s *ActionState[S, E], event E, fn func(data T) error) *ActionState[S, E] {
	s.setAction(event, func(data any) error {
		if data == nil {
			var zero T
			return fn(zero)
		}
		v, ok := data.(T)
		if !ok {
			return &ActionTypeError{
				Event: event,
				Want:  reflect.TypeOf((*T)(nil)).Elem().String(),
				Got:   fmt.Sprintf("%T", data),
			}
		}
		return fn(v)
	})
	return s
}

// OnAction runs the action registered for event. Unknown events are ignored.
func (s *ActionState[S, E]) OnAction(event E, data any) error {
	fn, ok := s.actions[event]
	if !ok {
		return nil
	}
	return fn(data)
}

// StateFuncs holds the optional callbacks of a FuncState
type StateFuncs[S, E comparable] struct {
	OnEnter func(s *FuncState[S, E]) error
	OnLogic func(s *FuncState[S, E]) error
	OnExit  func(s *FuncState[S, E]) error

	// CanExit is consulted on exit requests when NeedsExitTime is set.
	// Nil means the state can always exit.
	CanExit func(s *FuncState[S, E]) bool

	NeedsExitTime bool
}

// FuncState runs user callbacks on enter, logic and exit
type FuncState[S, E comparable] struct {
	ActionState[S, E]
	fns StateFuncs[S, E]
}

// NewFuncState creates a state from callbacks
func NewFuncState[S, E comparable](fns StateFuncs[S, E]) *FuncState[S, E] {
	return &FuncState[S, E]{
		ActionState: ActionState[S, E]{StateBase: newStateBase[S](fns.NeedsExitTime)},
		fns:         fns,
	}
}

func (s *FuncState[S, E]) OnEnter() error {
	s.timer.Reset()
	if s.fns.OnEnter == nil {
		return nil
	}
	return s.fns.OnEnter(s)
}

func (s *FuncState[S, E]) OnLogic() error {
	if s.fns.OnLogic == nil {
		return nil
	}
	return s.fns.OnLogic(s)
}

func (s *FuncState[S, E]) OnExit() error {
	if s.fns.OnExit == nil {
		return nil
	}
	return s.fns.OnExit(s)
}

func (s *FuncState[S, E]) OnExitRequest() error {
	if s.needsExitTime && s.fns.CanExit != nil && !s.fns.CanExit(s) {
		return nil
	}
	if s.parent == nil {
		return nil
	}
	return s.parent.StateCanExit()
}
