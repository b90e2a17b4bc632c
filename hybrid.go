package hfsm

// HybridFuncs holds the optional callbacks of a HybridMachine
type HybridFuncs[S, E comparable] struct {
	OnEnter func(m *HybridMachine[S, E]) error
	OnLogic func(m *HybridMachine[S, E]) error
	OnExit  func(m *HybridMachine[S, E]) error
}

// HybridMachine is a Machine with its own enter, logic and exit callbacks,
// letting a nested machine act like a leaf state with extra hooks. Each
// callback runs after the machine's own handling.
type HybridMachine[S, E comparable] struct {
	*Machine[S, E]
	fns HybridFuncs[S, E]
}

// NewHybrid creates a hybrid machine. Unlike New, it does not need exit
// time unless WithNeedsExitTime(true) is given.
func NewHybrid[S, E comparable](fns HybridFuncs[S, E], opts ...MachineOption) *HybridMachine[S, E] {
	return &HybridMachine[S, E]{
		Machine: newMachine[S, E](false, opts),
		fns:     fns,
	}
}

// Init enters a root hybrid machine, running its OnEnter callback
func (h *HybridMachine[S, E]) Init() error {
	if h.parent != nil {
		return nil
	}
	return h.OnEnter()
}

func (h *HybridMachine[S, E]) OnEnter() error {
	if err := h.Machine.OnEnter(); err != nil {
		return err
	}
	if h.fns.OnEnter == nil {
		return nil
	}
	return h.fns.OnEnter(h)
}

func (h *HybridMachine[S, E]) OnLogic() error {
	if err := h.Machine.OnLogic(); err != nil {
		return err
	}
	if h.fns.OnLogic == nil {
		return nil
	}
	return h.fns.OnLogic(h)
}

func (h *HybridMachine[S, E]) OnExit() error {
	if err := h.Machine.OnExit(); err != nil {
		return err
	}
	if h.fns.OnExit == nil {
		return nil
	}
	return h.fns.OnExit(h)
}
