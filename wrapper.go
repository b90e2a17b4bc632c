package hfsm

// StateWrapper injects hooks around the lifecycle calls of any state
// without modifying it. Nil hooks are skipped.
type StateWrapper[S, E comparable] struct {
	BeforeOnEnter func(s State[S])
	AfterOnEnter  func(s State[S])
	BeforeOnLogic func(s State[S])
	AfterOnLogic  func(s State[S])
	BeforeOnExit  func(s State[S])
	AfterOnExit   func(s State[S])
}

// Wrap returns a state forwarding to inner with the wrapper's hooks around it
func (w StateWrapper[S, E]) Wrap(inner State[S]) *WrappedState[S, E] {
	return &WrappedState[S, E]{
		StateBase: newStateBase[S](inner.NeedsExitTime()),
		inner:     inner,
		hooks:     w,
	}
}

// WrappedState is produced by StateWrapper.Wrap
type WrappedState[S, E comparable] struct {
	StateBase[S]
	inner State[S]
	hooks StateWrapper[S, E]
}

// Inner returns the wrapped state
func (w *WrappedState[S, E]) Inner() State[S] {
	return w.inner
}

func (w *WrappedState[S, E]) NeedsExitTime() bool {
	return w.inner.NeedsExitTime()
}

// Init hands the binding over to the inner state
func (w *WrappedState[S, E]) Init() error {
	w.inner.Bind(w.name, w.parent)
	return w.inner.Init()
}

func (w *WrappedState[S, E]) OnEnter() error {
	w.timer.Reset()
	call[State[S]](w.hooks.BeforeOnEnter, w)
	if err := w.inner.OnEnter(); err != nil {
		return err
	}
	call[State[S]](w.hooks.AfterOnEnter, w)
	return nil
}

func (w *WrappedState[S, E]) OnLogic() error {
	call[State[S]](w.hooks.BeforeOnLogic, w)
	if err := w.inner.OnLogic(); err != nil {
		return err
	}
	call[State[S]](w.hooks.AfterOnLogic, w)
	return nil
}

func (w *WrappedState[S, E]) OnExit() error {
	call[State[S]](w.hooks.BeforeOnExit, w)
	if err := w.inner.OnExit(); err != nil {
		return err
	}
	call[State[S]](w.hooks.AfterOnExit, w)
	return nil
}

func (w *WrappedState[S, E]) OnExitRequest() error {
	return w.inner.OnExitRequest()
}

// Trigger forwards to the inner state if it is Triggerable
func (w *WrappedState[S, E]) Trigger(event E) error {
	if t, ok := w.inner.(Triggerable[E]); ok {
		return t.Trigger(event)
	}
	return nil
}

// OnAction forwards to the inner state if it is Actionable
func (w *WrappedState[S, E]) OnAction(event E, data any) error {
	if a, ok := w.inner.(Actionable[E]); ok {
		return a.OnAction(event, data)
	}
	return nil
}

// ActiveHierarchyPath forwards to the inner state if it is a machine
func (w *WrappedState[S, E]) ActiveHierarchyPath() []S {
	if p, ok := w.inner.(hierarchyPather[S]); ok {
		return p.ActiveHierarchyPath()
	}
	return nil
}

// TransitionWrapper injects hooks around the calls made on any transition.
// Hooks receive the inner transition.
type TransitionWrapper[S comparable] struct {
	BeforeOnEnter          func(t Transition[S])
	AfterOnEnter           func(t Transition[S])
	BeforeShouldTransition func(t Transition[S])
	AfterShouldTransition  func(t Transition[S])
}

// Wrap returns a transition forwarding to inner with the wrapper's hooks around it
func (w TransitionWrapper[S]) Wrap(inner Transition[S]) *WrappedTransition[S] {
	return &WrappedTransition[S]{inner: inner, hooks: w}
}

// WrappedTransition is produced by TransitionWrapper.Wrap
type WrappedTransition[S comparable] struct {
	inner Transition[S]
	hooks TransitionWrapper[S]
}

// Inner returns the wrapped transition
func (w *WrappedTransition[S]) Inner() Transition[S] {
	return w.inner
}

func (w *WrappedTransition[S]) From() S {
	return w.inner.From()
}

func (w *WrappedTransition[S]) To() S {
	return w.inner.To()
}

func (w *WrappedTransition[S]) ForceInstantly() bool {
	return w.inner.ForceInstantly()
}

func (w *WrappedTransition[S]) Bind(parent Parent[S]) {
	w.inner.Bind(parent)
}

func (w *WrappedTransition[S]) Init() error {
	return w.inner.Init()
}

func (w *WrappedTransition[S]) OnEnter() {
	call(w.hooks.BeforeOnEnter, w.inner)
	w.inner.OnEnter()
	call(w.hooks.AfterOnEnter, w.inner)
}

func (w *WrappedTransition[S]) ShouldTransition() bool {
	call(w.hooks.BeforeShouldTransition, w.inner)
	ok := w.inner.ShouldTransition()
	call(w.hooks.AfterShouldTransition, w.inner)
	return ok
}

func call[T any](hook func(T), v T) {
	if hook != nil {
		hook(v)
	}
}
