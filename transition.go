package hfsm

import "time"

// Transition decides whether the machine should move from one state to another
type Transition[S comparable] interface {
	From() S
	To() S
	// ForceInstantly skips exit-time negotiation when the transition is taken
	ForceInstantly() bool

	Bind(parent Parent[S])
	Init() error

	// OnEnter is called when the machine enters the From state, or on
	// machine start for from-any transitions
	OnEnter()
	ShouldTransition() bool
}

// TransitionBase is an unconditional transition and the embedded base of
// the other transition kinds
type TransitionBase[S comparable] struct {
	from           S
	to             S
	forceInstantly bool
	parent         Parent[S]
}

// NewTransition creates a transition that is always taken
func NewTransition[S comparable](from, to S, forceInstantly bool) *TransitionBase[S] {
	return &TransitionBase[S]{from: from, to: to, forceInstantly: forceInstantly}
}

func (t *TransitionBase[S]) From() S {
	return t.from
}

func (t *TransitionBase[S]) To() S {
	return t.to
}

func (t *TransitionBase[S]) ForceInstantly() bool {
	return t.forceInstantly
}

// Parent returns the machine the transition is registered in
func (t *TransitionBase[S]) Parent() Parent[S] {
	return t.parent
}

func (t *TransitionBase[S]) Bind(parent Parent[S]) {
	t.parent = parent
}

func (t *TransitionBase[S]) Init() error {
	return nil
}

func (t *TransitionBase[S]) OnEnter() {}

func (t *TransitionBase[S]) ShouldTransition() bool {
	return true
}

// ConditionalTransition is taken when its condition holds
type ConditionalTransition[S comparable] struct {
	TransitionBase[S]
	Condition func(t *ConditionalTransition[S]) bool
}

// NewConditionalTransition creates a transition guarded by condition. A nil
// condition always passes.
func NewConditionalTransition[S comparable](from, to S, condition func(t *ConditionalTransition[S]) bool, forceInstantly bool) *ConditionalTransition[S] {
	return &ConditionalTransition[S]{
		TransitionBase: TransitionBase[S]{from: from, to: to, forceInstantly: forceInstantly},
		Condition:      condition,
	}
}

func (t *ConditionalTransition[S]) ShouldTransition() bool {
	if t.Condition == nil {
		return true
	}
	return t.Condition(t)
}

// TimedTransition becomes eligible once Delay has elapsed since the From
// state was entered
type TimedTransition[S comparable] struct {
	TransitionBase[S]
	Delay     time.Duration
	Condition func(t *TimedTransition[S]) bool
	timer     *Timer
}

// NewTimedTransition creates a transition taken after delay, once condition
// (if any) also holds
func NewTimedTransition[S comparable](from, to S, delay time.Duration, condition func(t *TimedTransition[S]) bool, forceInstantly bool) *TimedTransition[S] {
	return &TimedTransition[S]{
		TransitionBase: TransitionBase[S]{from: from, to: to, forceInstantly: forceInstantly},
		Delay:          delay,
		Condition:      condition,
		timer:          NewTimer(nil),
	}
}

// Timer returns the timer measuring time since OnEnter
func (t *TimedTransition[S]) Timer() *Timer {
	return t.timer
}

func (t *TimedTransition[S]) Bind(parent Parent[S]) {
	t.TransitionBase.Bind(parent)
	t.timer.bindTo(parent)
}

func (t *TimedTransition[S]) OnEnter() {
	t.timer.Reset()
}

func (t *TimedTransition[S]) ShouldTransition() bool {
	if t.timer.Elapsed() < t.Delay {
		return false
	}
	if t.Condition == nil {
		return true
	}
	return t.Condition(t)
}

// DynamicTimedTransition is a TimedTransition whose delay is recomputed on
// every check
type DynamicTimedTransition[S comparable] struct {
	TransitionBase[S]
	Delay     func(t *DynamicTimedTransition[S]) time.Duration
	Condition func(t *DynamicTimedTransition[S]) bool
	timer     *Timer
}

// NewDynamicTimedTransition creates a transition taken once the delay
// returned by delay has elapsed and condition (if any) holds
func NewDynamicTimedTransition[S comparable](from, to S, delay func(t *DynamicTimedTransition[S]) time.Duration, condition func(t *DynamicTimedTransition[S]) bool, forceInstantly bool) *DynamicTimedTransition[S] {
	return &DynamicTimedTransition[S]{
		TransitionBase: TransitionBase[S]{from: from, to: to, forceInstantly: forceInstantly},
		Delay:          delay,
		Condition:      condition,
		timer:          NewTimer(nil),
	}
}

// Timer returns the timer measuring time since OnEnter
func (t *DynamicTimedTransition[S]) Timer() *Timer {
	return t.timer
}

func (t *DynamicTimedTransition[S]) Bind(parent Parent[S]) {
	t.TransitionBase.Bind(parent)
	t.timer.bindTo(parent)
}

func (t *DynamicTimedTransition[S]) OnEnter() {
	t.timer.Reset()
}

func (t *DynamicTimedTransition[S]) ShouldTransition() bool {
	var delay time.Duration
	if t.Delay != nil {
		delay = t.Delay(t)
	}
	if t.timer.Elapsed() < delay {
		return false
	}
	if t.Condition == nil {
		return true
	}
	return t.Condition(t)
}
