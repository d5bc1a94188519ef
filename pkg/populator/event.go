package populator

import (
	"fmt"
	"time"

	"github.com/systmms/multisecret/pkg/secretdoc"
	"github.com/systmms/multisecret/pkg/secretspec"
)

// State is the stage of a provisioning event.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateValidating State = "VALIDATING"
	StateGenerating State = "GENERATING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// transitions lists the legal next states of each state.
var transitions = map[State][]State{
	StateReceived:   {StateValidating},
	StateValidating: {StateGenerating, StateFailed},
	StateGenerating: {StateDone, StateFailed},
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Event is one provisioning event: a spec list going through validation and
// generation. Events are independent; nothing carries over between them.
type Event struct {
	Specs secretspec.List

	state    State
	history  []Transition
	document *secretdoc.Document
	err      error
}

// NewEvent creates an event in the RECEIVED state.
func NewEvent(specs secretspec.List) *Event {
	return &Event{Specs: specs, state: StateReceived}
}

// State returns the current state.
func (e *Event) State() State {
	return e.state
}

// History returns the transitions taken so far.
func (e *Event) History() []Transition {
	out := make([]Transition, len(e.history))
	copy(out, e.history)
	return out
}

// Path returns the visited states, starting with RECEIVED.
func (e *Event) Path() []State {
	path := []State{StateReceived}
	for _, t := range e.history {
		path = append(path, t.To)
	}
	return path
}

// Document returns the generated document. It is nil unless the event is DONE.
func (e *Event) Document() *secretdoc.Document {
	return e.document
}

// Err returns the failure of a FAILED event.
func (e *Event) Err() error {
	return e.err
}

func (e *Event) moveTo(next State) error {
	for _, allowed := range transitions[e.state] {
		if allowed == next {
			e.history = append(e.history, Transition{From: e.state, To: next, At: time.Now()})
			e.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid event transition %s -> %s", e.state, next)
}

func (e *Event) fail(err error) error {
	e.document = nil
	e.err = err
	if moveErr := e.moveTo(StateFailed); moveErr != nil {
		return moveErr
	}
	return err
}
