package hfsm

import (
	"log/slog"

	"github.com/oklog/ulid/v2"
)

// stateBundle groups a state with its outgoing transitions
type stateBundle[S, E comparable] struct {
	state              State[S]
	transitions        []Transition[S]
	triggerTransitions map[E][]Transition[S]
}

func (b *stateBundle[S, E]) addTriggerTransition(event E, t Transition[S]) {
	if b.triggerTransitions == nil {
		b.triggerTransitions = make(map[E][]Transition[S])
	}
	b.triggerTransitions[event] = append(b.triggerTransitions[event], t)
}

// hierarchyPather is implemented by states that contain active children
type hierarchyPather[S comparable] interface {
	ActiveHierarchyPath() []S
}

// Machine is a hierarchical state machine. It is itself a State, so a
// machine can be registered inside another one.
//
// A Machine is not safe for concurrent use. Hosts driving it from several
// goroutines must serialize calls, see the runner package.
type Machine[S, E comparable] struct {
	StateBase[S]

	id     string
	logger *slog.Logger
	clock  Clock

	stateChangeCallback func(from, to S)

	startState    S
	hasStartState bool
	pendingState  S
	hasPending    bool

	bundles map[S]*stateBundle[S, E]
	order   []S

	activeState              State[S]
	activeTransitions        []Transition[S]
	activeTriggerTransitions map[E][]Transition[S]

	transitionsFromAny        []Transition[S]
	triggerTransitionsFromAny map[E][]Transition[S]
}

// New creates a machine. Unless configured otherwise a machine needs exit
// time when nested, so a parent waits for it to allow the exit.
func New[S, E comparable](opts ...MachineOption) *Machine[S, E] {
	return newMachine[S, E](true, opts)
}

func newMachine[S, E comparable](needsExitTime bool, opts []MachineOption) *Machine[S, E] {
	cfg := machineConfig{needsExitTime: needsExitTime}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = ulid.Make().String()
	}

	m := &Machine[S, E]{
		StateBase:                 newStateBase[S](cfg.needsExitTime),
		id:                        cfg.id,
		logger:                    cfg.logger,
		clock:                     cfg.clock,
		bundles:                   make(map[S]*stateBundle[S, E]),
		triggerTransitionsFromAny: make(map[E][]Transition[S]),
	}
	m.timer.bindTo(m)
	return m
}

// ID returns the instance id attached to log records
func (m *Machine[S, E]) ID() string {
	return m.id
}

// Clock returns the machine's time source, inherited from the parent
// machine when none was configured
func (m *Machine[S, E]) Clock() Clock {
	if m.clock != nil {
		return m.clock
	}
	if m.parent != nil {
		return m.parent.Clock()
	}
	return SystemClock
}

// Logger returns the machine's logger, inherited from the parent machine
// when none was configured
func (m *Machine[S, E]) Logger() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	if m.parent != nil {
		return m.parent.Logger()
	}
	return Logger
}

func (m *Machine[S, E]) log() *slog.Logger {
	if m.parent == nil {
		return m.Logger().With("fsm", m.id)
	}
	return m.Logger().With("fsm", m.id, "name", m.name)
}

// Bind attaches the machine to a parent. The machine's own timer keeps
// following Clock, which now falls back to the parent's.
func (m *Machine[S, E]) Bind(name S, parent Parent[S]) {
	m.name = name
	m.parent = parent
}

// OnStateChange sets a callback invoked after each change of the active state
func (m *Machine[S, E]) OnStateChange(fn func(from, to S)) {
	m.stateChangeCallback = fn
}

// SetStartState selects the state entered by OnEnter. Without it, the first
// registered state is used.
func (m *Machine[S, E]) SetStartState(name S) {
	m.startState = name
	m.hasStartState = true
}

func (m *Machine[S, E]) bundle(name S) *stateBundle[S, E] {
	b, ok := m.bundles[name]
	if !ok {
		b = &stateBundle[S, E]{}
		m.bundles[name] = b
	}
	return b
}

func (m *Machine[S, E]) lookup(name S) (State[S], bool) {
	b, ok := m.bundles[name]
	if !ok || b.state == nil {
		return nil, false
	}
	return b.state, true
}

// AddState registers state under name, binding it to this machine and
// calling its Init. A nil state registers a marker state. Registering a
// name twice replaces the state and keeps its transitions.
func (m *Machine[S, E]) AddState(name S, state State[S]) error {
	if state == nil {
		state = NewStateBase[S](false)
	}
	state.Bind(name, m)
	if err := state.Init(); err != nil {
		return err
	}

	b := m.bundle(name)
	if b.state == nil {
		m.order = append(m.order, name)
	}
	b.state = state

	if len(m.order) == 1 && !m.hasStartState {
		m.SetStartState(name)
	}
	return nil
}

// AddStateFuncs registers a FuncState built from fns
func (m *Machine[S, E]) AddStateFuncs(name S, fns StateFuncs[S, E]) (*FuncState[S, E], error) {
	s := NewFuncState(fns)
	if err := m.AddState(name, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Machine[S, E]) initTransition(t Transition[S]) error {
	t.Bind(m)
	return t.Init()
}

// AddTransition registers a transition polled every OnLogic while its From
// state is active
func (m *Machine[S, E]) AddTransition(t Transition[S]) error {
	if err := m.initTransition(t); err != nil {
		return err
	}
	b := m.bundle(t.From())
	b.transitions = append(b.transitions, t)
	return nil
}

// AddTransitionFromAny registers a transition polled every OnLogic
// whatever the active state. Its From is ignored.
func (m *Machine[S, E]) AddTransitionFromAny(t Transition[S]) error {
	if err := m.initTransition(t); err != nil {
		return err
	}
	m.transitionsFromAny = append(m.transitionsFromAny, t)
	return nil
}

// AddTriggerTransition registers a transition checked only when event is
// triggered while its From state is active
func (m *Machine[S, E]) AddTriggerTransition(event E, t Transition[S]) error {
	if err := m.initTransition(t); err != nil {
		return err
	}
	m.bundle(t.From()).addTriggerTransition(event, t)
	return nil
}

// AddTriggerTransitionFromAny registers a transition checked when event is
// triggered, whatever the active state
func (m *Machine[S, E]) AddTriggerTransitionFromAny(event E, t Transition[S]) error {
	if err := m.initTransition(t); err != nil {
		return err
	}
	m.triggerTransitionsFromAny[event] = append(m.triggerTransitionsFromAny[event], t)
	return nil
}

// transitionFor builds an unconditional transition, or a conditional one
// when a condition is given
func transitionFor[S comparable](from, to S, condition func(*ConditionalTransition[S]) bool, forceInstantly bool) Transition[S] {
	if condition == nil {
		return NewTransition(from, to, forceInstantly)
	}
	return NewConditionalTransition(from, to, condition, forceInstantly)
}

// AddTransitionFunc is the short form of AddTransition
func (m *Machine[S, E]) AddTransitionFunc(from, to S, condition func(*ConditionalTransition[S]) bool, forceInstantly bool) error {
	return m.AddTransition(transitionFor(from, to, condition, forceInstantly))
}

// AddTransitionFromAnyFunc is the short form of AddTransitionFromAny
func (m *Machine[S, E]) AddTransitionFromAnyFunc(to S, condition func(*ConditionalTransition[S]) bool, forceInstantly bool) error {
	var from S
	return m.AddTransitionFromAny(transitionFor(from, to, condition, forceInstantly))
}

// AddTriggerTransitionFunc is the short form of AddTriggerTransition
func (m *Machine[S, E]) AddTriggerTransitionFunc(event E, from, to S, condition func(*ConditionalTransition[S]) bool, forceInstantly bool) error {
	return m.AddTriggerTransition(event, transitionFor(from, to, condition, forceInstantly))
}

// AddTriggerTransitionFromAnyFunc is the short form of AddTriggerTransitionFromAny
func (m *Machine[S, E]) AddTriggerTransitionFromAnyFunc(event E, to S, condition func(*ConditionalTransition[S]) bool, forceInstantly bool) error {
	var from S
	return m.AddTriggerTransitionFromAny(event, transitionFor(from, to, condition, forceInstantly))
}

func (m *Machine[S, E]) ensureInitialized(context string) error {
	if m.activeState == nil {
		return &NotInitializedError{Context: context}
	}
	return nil
}

// ActiveState returns the currently active state
func (m *Machine[S, E]) ActiveState() (State[S], error) {
	if err := m.ensureInitialized("getting the active state"); err != nil {
		return nil, err
	}
	return m.activeState, nil
}

// ActiveStateName returns the id of the currently active state
func (m *Machine[S, E]) ActiveStateName() (S, error) {
	s, err := m.ActiveState()
	if err != nil {
		var zero S
		return zero, err
	}
	return s.Name(), nil
}

// IsState reports whether name is the active state. False before the
// machine is entered.
func (m *Machine[S, E]) IsState(name S) bool {
	return m.activeState != nil && m.activeState.Name() == name
}

// PendingState returns the target waiting for the active state to allow
// its exit
func (m *Machine[S, E]) PendingState() (S, bool) {
	return m.pendingState, m.hasPending
}

// StateIDs returns the registered state ids in registration order
func (m *Machine[S, E]) StateIDs() []S {
	ids := make([]S, len(m.order))
	copy(ids, m.order)
	return ids
}

// State returns the state registered under name
func (m *Machine[S, E]) State(name S) (State[S], error) {
	s, ok := m.lookup(name)
	if !ok {
		return nil, notFound(name, "getting a state")
	}
	return s, nil
}

// ActiveHierarchyPath returns the active state ids from this machine down
// through every nested machine. Empty before the machine is entered.
func (m *Machine[S, E]) ActiveHierarchyPath() []S {
	if m.activeState == nil {
		return nil
	}
	path := []S{m.activeState.Name()}
	if p, ok := m.activeState.(hierarchyPather[S]); ok {
		path = append(path, p.ActiveHierarchyPath()...)
	}
	return path
}

// changeState exits the active state and enters name
func (m *Machine[S, E]) changeState(name S) error {
	b, ok := m.bundles[name]
	if !ok || b.state == nil {
		return notFound(name, "switching states")
	}

	// A direct change supersedes any pending request
	m.clearPending()

	var from S
	hadActive := m.activeState != nil
	if hadActive {
		from = m.activeState.Name()
		if err := m.activeState.OnExit(); err != nil {
			return err
		}
	}

	m.log().Debug("changing state", "from", from, "to", name)

	m.activeTransitions = b.transitions
	m.activeTriggerTransitions = b.triggerTransitions
	m.activeState = b.state

	if err := m.activeState.OnEnter(); err != nil {
		return err
	}

	for _, t := range m.activeTransitions {
		t.OnEnter()
	}
	for _, transitions := range m.activeTriggerTransitions {
		for _, t := range transitions {
			t.OnEnter()
		}
	}

	if hadActive && m.stateChangeCallback != nil {
		m.stateChangeCallback(from, name)
	}
	return nil
}

func (m *Machine[S, E]) clearPending() {
	var zero S
	m.pendingState = zero
	m.hasPending = false
}

// RequestStateChange switches to name right away if the active state does
// not need exit time or forceInstantly is set. Otherwise name becomes the
// pending state and the active state is asked to allow its exit; the
// change happens when it calls StateCanExit. A newer request replaces an
// older pending one.
func (m *Machine[S, E]) RequestStateChange(name S, forceInstantly bool) error {
	active, err := m.ActiveState()
	if err != nil {
		return err
	}
	if _, ok := m.lookup(name); !ok {
		return notFound(name, "requesting a state change")
	}

	if !active.NeedsExitTime() || forceInstantly {
		return m.changeState(name)
	}

	m.pendingState = name
	m.hasPending = true
	m.log().Debug("state change pending", "from", active.Name(), "to", name)
	return active.OnExitRequest()
}

// StateCanExit applies the pending state change, if any, and tells the
// parent machine that this machine may be left as well
func (m *Machine[S, E]) StateCanExit() error {
	if m.hasPending {
		name := m.pendingState
		if err := m.changeState(name); err != nil {
			return err
		}
	}

	if m.parent != nil {
		return m.parent.StateCanExit()
	}
	return nil
}

// OnExitRequest forwards an exit request from the parent machine into the
// active state when it needs exit time, and allows the exit otherwise
func (m *Machine[S, E]) OnExitRequest() error {
	active, err := m.ActiveState()
	if err != nil {
		return err
	}
	if active.NeedsExitTime() {
		m.log().Debug("forwarding exit request", "state", active.Name())
		return active.OnExitRequest()
	}
	if m.parent != nil {
		return m.parent.StateCanExit()
	}
	return nil
}

func (m *Machine[S, E]) tryTransition(t Transition[S]) (bool, error) {
	if !t.ShouldTransition() {
		return false, nil
	}
	m.log().Debug("transition fired", "from", m.activeState.Name(), "to", t.To(), "force", t.ForceInstantly())
	return true, m.RequestStateChange(t.To(), t.ForceInstantly())
}

// Init enters a root machine. Nested machines are entered by their parent.
func (m *Machine[S, E]) Init() error {
	if m.parent != nil {
		return nil
	}
	return m.OnEnter()
}

// OnEnter enters the start state and resets the from-any transitions
func (m *Machine[S, E]) OnEnter() error {
	if !m.hasStartState {
		return &NotInitializedError{
			Context:  "running OnEnter of the state machine",
			Problem:  "No start state is selected. The state machine needs at least one state to function properly.",
			Solution: "Make sure that there is at least one state in the state machine before running Init() or OnEnter() by calling AddState(...).",
		}
	}

	m.timer.Reset()
	if err := m.changeState(m.startState); err != nil {
		return err
	}

	for _, t := range m.transitionsFromAny {
		t.OnEnter()
	}
	for _, transitions := range m.triggerTransitionsFromAny {
		for _, t := range transitions {
			t.OnEnter()
		}
	}
	return nil
}

// OnLogic runs one tick: from-any transitions first, then the active
// state's own transitions, then the active state's logic. At most one
// transition is taken per tick.
func (m *Machine[S, E]) OnLogic() error {
	if err := m.ensureInitialized("running OnLogic"); err != nil {
		return err
	}

	fired := false
	for _, t := range m.transitionsFromAny {
		if t.To() == m.activeState.Name() {
			continue
		}
		ok, err := m.tryTransition(t)
		if err != nil {
			return err
		}
		if ok {
			fired = true
			break
		}
	}

	if !fired {
		for _, t := range m.activeTransitions {
			ok, err := m.tryTransition(t)
			if err != nil {
				return err
			}
			if ok {
				break
			}
		}
	}

	return m.activeState.OnLogic()
}

// OnExit exits the active state. The machine can be entered again later.
func (m *Machine[S, E]) OnExit() error {
	if m.activeState == nil {
		return nil
	}
	err := m.activeState.OnExit()
	m.activeState = nil
	m.activeTransitions = nil
	m.activeTriggerTransitions = nil
	m.clearPending()
	return err
}

func (m *Machine[S, E]) tryTrigger(event E) (bool, error) {
	if err := m.ensureInitialized("checking the trigger transitions of the active state"); err != nil {
		return false, err
	}

	for _, t := range m.triggerTransitionsFromAny[event] {
		if t.To() == m.activeState.Name() {
			continue
		}
		ok, err := m.tryTransition(t)
		if ok || err != nil {
			return ok, err
		}
	}

	for _, t := range m.activeTriggerTransitions[event] {
		ok, err := m.tryTransition(t)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

// Trigger checks the trigger transitions for event and, if none is taken,
// passes the event on to the active state
func (m *Machine[S, E]) Trigger(event E) error {
	fired, err := m.tryTrigger(event)
	if err != nil || fired {
		return err
	}
	if t, ok := m.activeState.(Triggerable[E]); ok {
		return t.Trigger(event)
	}
	return nil
}

// TriggerLocally checks the trigger transitions for event without passing
// it on to the active state
func (m *Machine[S, E]) TriggerLocally(event E) error {
	_, err := m.tryTrigger(event)
	return err
}

// OnAction runs the action registered for event on the active state
func (m *Machine[S, E]) OnAction(event E, data any) error {
	if err := m.ensureInitialized("running OnAction of the active state"); err != nil {
		return err
	}
	if a, ok := m.activeState.(Actionable[E]); ok {
		return a.OnAction(event, data)
	}
	return nil
}
