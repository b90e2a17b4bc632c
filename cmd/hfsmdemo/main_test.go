package main

import (
	"slices"
	"testing"
	"time"

	"github.com/librescoot/hfsm"
	"github.com/librescoot/hfsm/config"
)

func TestSniffTimeIsStable(t *testing.T) {
	now := time.Unix(0, 0)
	clock := hfsm.ClockFunc(func() time.Time { return now })

	def, err := config.Parse(dogYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	dog := &Dog{X: 20, Dir: 1, Started: time.Now()}
	m, err := config.Build(def, registry(),
		config.WithData(dog),
		config.WithMachineOptions(hfsm.WithClock(clock)),
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := m.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	now = now.Add(2 * time.Second)
	if err := m.OnLogic(); err != nil {
		t.Fatalf("logic: %v", err)
	}
	if path := m.ActiveHierarchyPath(); !slices.Equal(path, []string{"patrol", "sniff"}) {
		t.Fatalf("expected to sniff after 2s, got %v", path)
	}

	// First sniff lasts 1s however often the delay is checked
	for i := 0; i < 9; i++ {
		now = now.Add(100 * time.Millisecond)
		if err := m.OnLogic(); err != nil {
			t.Fatalf("logic: %v", err)
		}
	}
	if path := m.ActiveHierarchyPath(); !slices.Equal(path, []string{"patrol", "sniff"}) {
		t.Fatalf("sniffing ended early, got %v", path)
	}
	if dog.Sniffs != 1 {
		t.Errorf("expected one sniff, got %d", dog.Sniffs)
	}

	now = now.Add(100 * time.Millisecond)
	if err := m.OnLogic(); err != nil {
		t.Fatalf("logic: %v", err)
	}
	if path := m.ActiveHierarchyPath(); !slices.Equal(path, []string{"patrol", "walk"}) {
		t.Errorf("expected to walk again after 1s, got %v", path)
	}
}
