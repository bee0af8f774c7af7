package compiler

import (
	"time"
)

// State is a compilation job's lifecycle state
type State int

const (
	StateCreated State = iota
	StateStarted
	StateWaiting
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCleanedUp
)

var stateNames = map[State]string{
	StateCreated:   "CREATED",
	StateStarted:   "STARTED",
	StateWaiting:   "WAITING",
	StateSucceeded: "SUCCEEDED",
	StateFailed:    "FAILED",
	StateTimedOut:  "TIMED_OUT",
	StateCleanedUp: "CLEANED_UP",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether s is an outcome state
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

// transitions lists the legal successors of each state. Failures before the
// wait (image, create, start) go straight to FAILED.
var transitions = map[State][]State{
	StateCreated:   {StateStarted, StateFailed},
	StateStarted:   {StateWaiting, StateFailed},
	StateWaiting:   {StateSucceeded, StateFailed, StateTimedOut},
	StateSucceeded: {StateCleanedUp},
	StateFailed:    {StateCleanedUp},
	StateTimedOut:  {StateCleanedUp},
}

// Job is one compilation: its source, identity and deadline. A job is used
// by a single goroutine and is discarded once cleaned up.
type Job struct {
	ID       string
	Source   string
	Deadline time.Time
	// Budget is the time the job had between creation and its deadline
	Budget time.Duration

	state   State
	outcome State
	history []State
}

func newJob(id, source string, now, deadline time.Time) *Job {
	return &Job{
		ID:       id,
		Source:   source,
		Deadline: deadline,
		Budget:   deadline.Sub(now),
		state:    StateCreated,
		history:  []State{StateCreated},
	}
}

// State returns the current state
func (j *Job) State() State {
	return j.state
}

// Outcome returns the terminal state the job reached, or StateCreated if
// it has not reached one.
func (j *Job) Outcome() State {
	return j.outcome
}

// History returns every state the job has been in, in order
func (j *Job) History() []State {
	return append([]State(nil), j.history...)
}

func (j *Job) transition(to State) error {
	for _, allowed := range transitions[j.state] {
		if allowed == to {
			j.state = to
			j.history = append(j.history, to)
			if to.Terminal() {
				j.outcome = to
			}
			return nil
		}
	}
	return &StateError{JobID: j.ID, From: j.state, To: to}
}
