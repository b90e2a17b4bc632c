package hfsm

import (
	"slices"
	"testing"
	"time"
)

// newNestedMachine builds a root with a nested machine "sub" (states a and
// b) and a sibling state "other"
func newNestedMachine(t *testing.T, innerFns testFuncs, opts ...MachineOption) (*testMachine, *testMachine, *testState) {
	t.Helper()

	sub := New[string, string]()
	a, err := sub.AddStateFuncs(stateA, innerFns)
	must(t, err)
	addStates(t, sub, stateB)

	root := New[string, string](opts...)
	must(t, root.AddState(stateSub, sub))
	addStates(t, root, stateOther)
	return root, sub, a
}

func TestNestedExitTimePropagation(t *testing.T) {
	var ready bool

	root, sub, a := newNestedMachine(t, testFuncs{
		NeedsExitTime: true,
		CanExit:       func(*testState) bool { return ready },
	})
	must(t, root.Init())
	expectState(t, root, stateSub)
	expectState(t, sub, stateA)

	must(t, root.RequestStateChange(stateOther, false))
	expectState(t, root, stateSub)
	if pending, ok := root.PendingState(); !ok || pending != stateOther {
		t.Fatalf("expected root to wait for %s, got %q (%v)", stateOther, pending, ok)
	}

	// The leaf allows the exit; the request travels up to the root
	ready = true
	must(t, a.Parent().StateCanExit())
	expectState(t, root, stateOther)

	if _, err := sub.ActiveState(); err == nil {
		t.Error("nested machine should have been exited")
	}
}

func TestNestedExitWithoutExitTime(t *testing.T) {
	root, _, _ := newNestedMachine(t, testFuncs{})
	must(t, root.Init())

	// sub needs exit time but its active state doesn't, so it lets go at once
	must(t, root.RequestStateChange(stateOther, false))
	expectState(t, root, stateOther)
}

func TestNestedStateCanExitWithoutPending(t *testing.T) {
	root, sub, a := newNestedMachine(t, testFuncs{NeedsExitTime: true})
	must(t, root.Init())

	must(t, a.Parent().StateCanExit())
	expectState(t, root, stateSub)
	expectState(t, sub, stateA)
}

func TestNestedMachineReentersStartState(t *testing.T) {
	root, sub, _ := newNestedMachine(t, testFuncs{})
	must(t, root.AddTriggerTransitionFunc(evBack, stateOther, stateSub, nil, false))
	must(t, root.Init())

	must(t, sub.RequestStateChange(stateB, false))
	expectState(t, sub, stateB)

	must(t, root.RequestStateChange(stateOther, true))
	must(t, root.Trigger(evBack))
	expectState(t, root, stateSub)
	expectState(t, sub, stateA)
}

func TestNestedLogicRunsChildTransitions(t *testing.T) {
	root, sub, _ := newNestedMachine(t, testFuncs{})
	must(t, sub.AddTransitionFunc(stateA, stateB, nil, false))
	must(t, root.Init())

	must(t, root.OnLogic())
	expectState(t, root, stateSub)
	expectState(t, sub, stateB)
}

func TestActiveHierarchyPath(t *testing.T) {
	root, sub, _ := newNestedMachine(t, testFuncs{})
	if path := root.ActiveHierarchyPath(); len(path) != 0 {
		t.Errorf("expected empty path before Init, got %v", path)
	}

	must(t, root.Init())
	must(t, sub.RequestStateChange(stateB, false))

	path := root.ActiveHierarchyPath()
	if !slices.Equal(path, []string{stateSub, stateB}) {
		t.Errorf("unexpected path %v", path)
	}

	must(t, root.RequestStateChange(stateOther, true))
	if path := root.ActiveHierarchyPath(); !slices.Equal(path, []string{stateOther}) {
		t.Errorf("unexpected path %v", path)
	}
}

func TestNestedInheritsClock(t *testing.T) {
	clock := newFakeClock()

	root, sub, _ := newNestedMachine(t, testFuncs{}, WithClock(clock))
	must(t, sub.AddTransition(NewTimedTransition(stateA, stateB, time.Second, nil, false)))
	must(t, root.Init())

	must(t, root.OnLogic())
	expectState(t, sub, stateA)

	clock.Advance(time.Second)
	must(t, root.OnLogic())
	expectState(t, sub, stateB)

	if !sub.Clock().Now().Equal(clock.Now()) {
		t.Error("nested machine should read the root clock")
	}
}

func TestHybridMachine(t *testing.T) {
	var calls []string
	record := func(call string) func(*HybridMachine[string, string]) error {
		return func(*HybridMachine[string, string]) error {
			calls = append(calls, call)
			return nil
		}
	}

	h := NewHybrid(HybridFuncs[string, string]{
		OnEnter: record("hybrid enter"),
		OnLogic: record("hybrid logic"),
		OnExit:  record("hybrid exit"),
	})
	_, err := h.AddStateFuncs(stateA, testFuncs{
		OnEnter: func(*testState) error { calls = append(calls, "inner enter"); return nil },
		OnLogic: func(*testState) error { calls = append(calls, "inner logic"); return nil },
		OnExit:  func(*testState) error { calls = append(calls, "inner exit"); return nil },
	})
	must(t, err)

	root := New[string, string]()
	must(t, root.AddState(stateSub, h))
	addStates(t, root, stateOther)
	must(t, root.Init())
	must(t, root.OnLogic())

	// Hybrids don't need exit time by default
	must(t, root.RequestStateChange(stateOther, false))
	expectState(t, root, stateOther)

	want := []string{
		"inner enter", "hybrid enter",
		"inner logic", "hybrid logic",
		"inner exit", "hybrid exit",
	}
	if !slices.Equal(calls, want) {
		t.Errorf("expected %v, got %v", want, calls)
	}
}

func TestHybridAsRoot(t *testing.T) {
	entered := false
	h := NewHybrid(HybridFuncs[string, string]{
		OnEnter: func(*HybridMachine[string, string]) error { entered = true; return nil },
	})
	must(t, h.AddState(stateA, nil))
	must(t, h.Init())

	if !entered {
		t.Error("Init of a root hybrid should run its OnEnter callback")
	}
	expectState(t, h.Machine, stateA)
}

func TestStateWrapper(t *testing.T) {
	var calls []string
	hook := func(call string) func(State[string]) {
		return func(s State[string]) {
			calls = append(calls, call+" "+s.Name())
		}
	}

	wrapper := StateWrapper[string, string]{
		BeforeOnEnter: hook("before enter"),
		AfterOnEnter:  hook("after enter"),
		BeforeOnLogic: hook("before logic"),
		AfterOnLogic:  hook("after logic"),
		BeforeOnExit:  hook("before exit"),
		AfterOnExit:   hook("after exit"),
	}

	inner := NewFuncState(testFuncs{
		OnEnter: func(s *testState) error { calls = append(calls, "enter "+s.Name()); return nil },
		OnLogic: func(s *testState) error { calls = append(calls, "logic "+s.Name()); return nil },
		OnExit:  func(s *testState) error { calls = append(calls, "exit "+s.Name()); return nil },
	})

	m := New[string, string]()
	must(t, m.AddState(stateA, wrapper.Wrap(inner)))
	addStates(t, m, stateB)
	must(t, m.Init())
	must(t, m.OnLogic())
	must(t, m.RequestStateChange(stateB, false))

	want := []string{
		"before enter a", "enter a", "after enter a",
		"before logic a", "logic a", "after logic a",
		"before exit a", "exit a", "after exit a",
	}
	if !slices.Equal(calls, want) {
		t.Errorf("expected %v, got %v", want, calls)
	}
	if inner.Parent() == nil {
		t.Error("inner state should be bound to the machine")
	}
}

func TestWrappedStateExitTime(t *testing.T) {
	var ready bool
	inner := NewFuncState(testFuncs{
		NeedsExitTime: true,
		CanExit:       func(*testState) bool { return ready },
	})

	m := New[string, string]()
	must(t, m.AddState(stateA, StateWrapper[string, string]{}.Wrap(inner)))
	addStates(t, m, stateB)
	must(t, m.Init())

	must(t, m.RequestStateChange(stateB, false))
	expectState(t, m, stateA)

	ready = true
	must(t, m.RequestStateChange(stateB, false))
	expectState(t, m, stateB)
}

func TestWrappedStateForwardsActions(t *testing.T) {
	got := 0
	inner := NewActionState[string, string](false)
	AddActionWithData(inner, evHit, func(n int) error { got = n; return nil })

	m := New[string, string]()
	must(t, m.AddState(stateA, StateWrapper[string, string]{}.Wrap(inner)))
	must(t, m.Init())

	must(t, m.OnAction(evHit, 7))
	if got != 7 {
		t.Errorf("expected action data 7, got %d", got)
	}
}

func TestTransitionWrapper(t *testing.T) {
	enters, checks := 0, 0
	wrapper := TransitionWrapper[string]{
		BeforeOnEnter:         func(Transition[string]) { enters++ },
		AfterShouldTransition: func(Transition[string]) { checks++ },
	}
	wrapper.BeforeShouldTransition = func(tr Transition[string]) {
		if tr.To() != stateB {
			t.Errorf("hook should receive the inner transition, got target %s", tr.To())
		}
	}

	var allowed bool
	m := New[string, string]()
	addStates(t, m, stateA, stateB)
	must(t, m.AddTransition(wrapper.Wrap(NewConditionalTransition(stateA, stateB,
		func(*ConditionalTransition[string]) bool { return allowed }, false))))
	must(t, m.Init())

	must(t, m.OnLogic())
	allowed = true
	must(t, m.OnLogic())
	expectState(t, m, stateB)

	if enters != 1 {
		t.Errorf("expected 1 OnEnter, got %d", enters)
	}
	if checks != 2 {
		t.Errorf("expected 2 checks, got %d", checks)
	}
}
