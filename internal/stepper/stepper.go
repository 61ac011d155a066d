// Package stepper drives linear multi-step flows such as the install
// wizard. A Stepper holds an ordered list of steps, the active one, and a
// data bag that steps use to hand partial form data to later steps.
//
// A Stepper is not safe for concurrent use; it belongs to the goroutine
// that renders the flow.
package stepper

import (
	"errors"
	"fmt"
)

var (
	ErrNoNext      = errors.New("already at the last step")
	ErrNoPrevious  = errors.New("already at the first step")
	ErrUnknownStep = errors.New("unknown step")
	ErrNoSteps     = errors.New("stepper needs at least one step")
)

// Step is one stage of a flow. Value is whatever renders the step.
type Step[V any] struct {
	ID    string
	Value V
}

// Stepper walks through steps in order.
type Stepper[V any] struct {
	steps  []Step[V]
	index  map[string]int
	active int
	bag    map[string]any
}

// New returns a stepper positioned at initial, or at the first step when
// initial is empty.
func New[V any](steps []Step[V], initial string) (*Stepper[V], error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	s := &Stepper[V]{
		steps: append([]Step[V](nil), steps...),
		index: make(map[string]int, len(steps)),
		bag:   make(map[string]any),
	}
	for i, st := range steps {
		if _, dup := s.index[st.ID]; dup {
			return nil, fmt.Errorf("duplicate step %q", st.ID)
		}
		s.index[st.ID] = i
	}
	if initial != "" {
		if err := s.SetActive(initial); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Current returns the active step.
func (s *Stepper[V]) Current() Step[V] {
	return s.steps[s.active]
}

// Position returns the index of the active step and the number of steps.
func (s *Stepper[V]) Position() (int, int) {
	return s.active, len(s.steps)
}

func (s *Stepper[V]) HasNext() bool { return s.active < len(s.steps)-1 }

func (s *Stepper[V]) HasPrevious() bool { return s.active > 0 }

// Next advances to the following step.
func (s *Stepper[V]) Next() (Step[V], error) {
	if !s.HasNext() {
		return s.Current(), fmt.Errorf("next from %s: %w", s.Current().ID, ErrNoNext)
	}
	s.active++
	return s.Current(), nil
}

// Previous goes back one step.
func (s *Stepper[V]) Previous() (Step[V], error) {
	if !s.HasPrevious() {
		return s.Current(), fmt.Errorf("previous from %s: %w", s.Current().ID, ErrNoPrevious)
	}
	s.active--
	return s.Current(), nil
}

// SetActive jumps to the step with the given id.
func (s *Stepper[V]) SetActive(id string) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("step %q: %w", id, ErrUnknownStep)
	}
	s.active = i
	return nil
}

// Sub returns the value stored under namespace in the data bag of s,
// creating a zero T on first use. Entries are keyed by namespace and type,
// so two steps can never see each other's data by accident.
func Sub[T any, V any](s *Stepper[V], namespace string) *T {
	key := fmt.Sprintf("%s/%T", namespace, (*T)(nil))
	if v, ok := s.bag[key]; ok {
		return v.(*T)
	}
	out := new(T)
	s.bag[key] = out
	return out
}

// Reset clears the data bag and returns to the first step.
func (s *Stepper[V]) Reset() {
	s.active = 0
	s.bag = make(map[string]any)
}
