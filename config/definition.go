package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WildcardState as a transition source matches any state
const WildcardState = "*"

// Definition describes a machine declaratively
type Definition struct {
	Start       string          `yaml:"start,omitempty"`
	States      []StateDef      `yaml:"states"`
	Transitions []TransitionDef `yaml:"transitions,omitempty"`
}

// StateDef describes a state. A state with a nested Machine becomes a
// nested state machine, or a hybrid machine when it also has callbacks.
type StateDef struct {
	ID            string            `yaml:"id"`
	NeedsExitTime bool              `yaml:"needs_exit_time,omitempty"`
	OnEnter       []string          `yaml:"on_enter,omitempty"`
	OnLogic       []string          `yaml:"on_logic,omitempty"`
	OnExit        []string          `yaml:"on_exit,omitempty"`
	CanExit       string            `yaml:"can_exit,omitempty"`
	Actions       map[string]string `yaml:"actions,omitempty"` // Event -> action name
	Machine       *Definition       `yaml:"machine,omitempty"`
}

// TransitionDef describes a transition. From "*" makes it a from-any
// transition, a Trigger makes it a trigger transition.
type TransitionDef struct {
	From           string        `yaml:"from"`
	To             string        `yaml:"to"`
	Trigger        string        `yaml:"trigger,omitempty"`
	Guard          string        `yaml:"guard,omitempty"`
	After          time.Duration `yaml:"after,omitempty"`
	AfterFunc      string        `yaml:"after_func,omitempty"`
	ForceInstantly bool          `yaml:"force_instantly,omitempty"`
}

func (s *StateDef) hasCallbacks() bool {
	return len(s.OnEnter) > 0 || len(s.OnLogic) > 0 || len(s.OnExit) > 0
}

// Parse decodes a YAML definition. Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a YAML definition from r
func Decode(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty definition")
		}
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	return &def, nil
}

// LoadFile reads and parses a YAML definition file
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the definition as YAML
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Validate checks the definition for errors
func (d *Definition) Validate() error {
	return d.validate("")
}

func (d *Definition) validate(path string) error {
	if len(d.States) == 0 {
		return fmt.Errorf("%sno states defined", path)
	}

	ids := make(map[string]bool, len(d.States))
	for i := range d.States {
		s := &d.States[i]
		if s.ID == "" {
			return fmt.Errorf("%sstate #%d has no id", path, i)
		}
		if s.ID == WildcardState {
			return fmt.Errorf("%sstate id %q is reserved", path, WildcardState)
		}
		if ids[s.ID] {
			return fmt.Errorf("%sstate %q defined twice", path, s.ID)
		}
		ids[s.ID] = true

		if s.Machine != nil {
			if s.CanExit != "" {
				return fmt.Errorf("%sstate %q: can_exit is not supported on nested machines", path, s.ID)
			}
			if len(s.Actions) > 0 {
				return fmt.Errorf("%sstate %q: actions are not supported on nested machines", path, s.ID)
			}
			if err := s.Machine.validate(path + s.ID + "/"); err != nil {
				return err
			}
		}
	}

	if d.Start != "" && !ids[d.Start] {
		return fmt.Errorf("%sstart state %q not defined", path, d.Start)
	}

	for i, t := range d.Transitions {
		if t.From == "" {
			return fmt.Errorf("%stransition #%d has no source", path, i)
		}
		if t.From != WildcardState && !ids[t.From] {
			return fmt.Errorf("%stransition from undefined state %q", path, t.From)
		}
		if !ids[t.To] {
			return fmt.Errorf("%stransition to undefined state %q", path, t.To)
		}
		if t.After < 0 {
			return fmt.Errorf("%stransition %s -> %s has negative delay", path, t.From, t.To)
		}
		if t.After > 0 && t.AfterFunc != "" {
			return fmt.Errorf("%stransition %s -> %s has both after and after_func", path, t.From, t.To)
		}
	}

	return nil
}
