package pipeline

import (
	"fmt"
	"time"

	apperrors "github.com/nijaru/mediatext/errors"
)

// State is a job's position in the pipeline.
type State string

const (
	StateCreated      State = "CREATED"
	StateResolving    State = "RESOLVING"
	StateDownloading  State = "DOWNLOADING"
	StateConverting   State = "CONVERTING"
	StateTranscribing State = "TRANSCRIBING"
	StateWriting      State = "WRITING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

var statusText = map[State]string{
	StateCreated:      "Queued",
	StateResolving:    "Checking source...",
	StateDownloading:  "Downloading audio...",
	StateConverting:   "Converting audio...",
	StateTranscribing: "Transcribing...",
	StateWriting:      "Saving transcript...",
	StateDone:         "Transcription complete",
	StateFailed:       "Failed",
}

func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StatusText is the human readable label for s.
func (s State) StatusText() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return string(s)
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateCreated && !from.Terminal()
	}
	switch from {
	case StateCreated:
		return to == StateResolving
	case StateResolving:
		return to == StateDownloading || to == StateConverting || to == StateTranscribing
	case StateDownloading, StateConverting:
		return to == StateTranscribing
	case StateTranscribing:
		return to == StateWriting
	case StateWriting:
		return to == StateDone
	default:
		return false
	}
}

// Event is delivered to an Observer after every transition.
type Event struct {
	JobID  string
	State  State
	Status string
	Err    error
	At     time.Time
}

// Observer receives job events synchronously on the job's goroutine.
type Observer func(Event)

// Chain fans an event out to every non-nil observer in order.
func Chain(observers ...Observer) Observer {
	return func(ev Event) {
		for _, o := range observers {
			if o != nil {
				o(ev)
			}
		}
	}
}

// machine tracks one job's state and reports every move.
type machine struct {
	jobID    string
	state    State
	observer Observer
	now      func() time.Time
}

func newMachine(jobID string, observer Observer, now func() time.Time) *machine {
	m := &machine{
		jobID:    jobID,
		state:    StateCreated,
		observer: observer,
		now:      now,
	}
	m.emit(nil)
	return m
}

func (m *machine) advance(to State, cause error) error {
	if !isValidTransition(m.state, to) {
		return apperrors.Internal("pipeline.advance", nil,
			fmt.Sprintf("invalid transition: %s -> %s", m.state, to))
	}
	m.state = to
	m.emit(cause)
	return nil
}

func (m *machine) emit(cause error) {
	if m.observer == nil {
		return
	}
	status := m.state.StatusText()
	if cause != nil {
		status = fmt.Sprintf("%s: %v", status, cause)
	}
	m.observer(Event{
		JobID:  m.jobID,
		State:  m.state,
		Status: status,
		Err:    cause,
		At:     m.now(),
	})
}
