package hfsm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStateNotFound is returned when a state id was never registered
	ErrStateNotFound = errors.New("state not found")
	// ErrNotInitialized is returned when a machine is used before it has an active state
	ErrNotInitialized = errors.New("state machine not initialized")
	// ErrActionType is returned when an action receives data of the wrong type
	ErrActionType = errors.New("action data type mismatch")
)

// StateNotFoundError reports a reference to an unregistered state
type StateNotFoundError[S comparable] struct {
	State   S
	Context string
}

func (e *StateNotFoundError[S]) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("state %v not found", e.State)
	}
	return fmt.Sprintf("%s: state %v not found", e.Context, e.State)
}

func (e *StateNotFoundError[S]) Unwrap() error {
	return ErrStateNotFound
}

// Hint describes how to fix the problem
func (e *StateNotFoundError[S]) Hint() string {
	return formatHint(e.Context,
		fmt.Sprintf("The state %v has not been defined yet / doesn't exist.", e.State),
		"1. Check that there are no typos in the state names and transition from and to names\n"+
			"2. Add this state before calling Init / OnEnter / OnLogic / RequestStateChange / ...")
}

func notFound[S comparable](id S, context string) error {
	return &StateNotFoundError[S]{State: id, Context: context}
}

// NotInitializedError reports use of a machine that has no active state
type NotInitializedError struct {
	Context  string
	Problem  string
	Solution string
}

func (e *NotInitializedError) Error() string {
	if e.Context == "" {
		return ErrNotInitialized.Error()
	}
	return fmt.Sprintf("%s: %v", e.Context, ErrNotInitialized)
}

func (e *NotInitializedError) Unwrap() error {
	return ErrNotInitialized
}

// Hint describes how to fix the problem
func (e *NotInitializedError) Hint() string {
	problem := e.Problem
	if problem == "" {
		problem = "The active state is nil because the state machine has not been set up yet."
	}
	solution := e.Solution
	if solution == "" {
		solution = "Call SetStartState(...) and Init() or OnEnter() to initialize the state machine."
	}
	return formatHint(e.Context, problem, solution)
}

// ActionTypeError reports an action dispatched with data it cannot accept
type ActionTypeError struct {
	Event any
	Want  string
	Got   string
}

func (e *ActionTypeError) Error() string {
	return fmt.Sprintf("action %v: expected %s, got %s", e.Event, e.Want, e.Got)
}

func (e *ActionTypeError) Unwrap() error {
	return ErrActionType
}

func formatHint(context, problem, solution string) string {
	var b strings.Builder
	if context != "" {
		b.WriteString("Context: " + context + "\n")
	}
	if problem != "" {
		b.WriteString("Problem: " + problem + "\n")
	}
	if solution != "" {
		b.WriteString("Solution: " + solution + "\n")
	}
	return b.String()
}
