// Package conversation drives multi-turn operator dialogues: one state
// machine per thread, slot accumulation across turns, clarification rounds,
// retrieval fan-out and answer synthesis. A thread processes one turn at a
// time; concurrent requests against the same thread are rejected, never
// queued.
package conversation

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hragd/hragd/internal/diagnostic"
	"github.com/hragd/hragd/internal/events"
	"github.com/hragd/hragd/internal/retrieval"
	"github.com/hragd/hragd/internal/slots"
)

// State is the per-thread conversation state.
type State string

const (
	StateIdle             State = "idle"
	StateClarifying       State = "clarifying"
	StateRetrieving       State = "retrieving"
	StateReasoning        State = "reasoning"
	StateResponding       State = "responding"
	StateAwaitingFeedback State = "awaiting_feedback"
	StateClosed           State = "closed"
)

// transitions is the complete set of legal state changes. Anything not
// listed here is a programming error, not an operator error.
var transitions = map[State][]State{
	StateIdle:             {StateClarifying, StateRetrieving, StateClosed, StateIdle},
	StateClarifying:       {StateClarifying, StateRetrieving, StateIdle, StateClosed},
	StateRetrieving:       {StateReasoning, StateIdle},
	StateReasoning:        {StateResponding, StateIdle},
	StateResponding:       {StateIdle, StateAwaitingFeedback},
	StateAwaitingFeedback: {StateIdle, StateClarifying, StateRetrieving, StateClosed},
	StateClosed:           {},
}

// canTransition checks the transition table.
func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TurnStatus records how a turn ended.
type TurnStatus string

const (
	TurnCompleted TurnStatus = "completed"
	TurnClarified TurnStatus = "clarified"
	TurnDegraded  TurnStatus = "degraded"
	TurnFailed    TurnStatus = "failed"
)

// Turn is one completed exchange on a thread.
type Turn struct {
	ID           string                 `json:"id"`
	Query        string                 `json:"query"`
	Intent       string                 `json:"intent"`
	Slots        slots.SlotSet          `json:"slots"`
	Evidence     *retrieval.EvidenceSet `json:"evidence,omitempty"`
	Diagnostic   *diagnostic.Path       `json:"diagnostic,omitempty"`
	Response     string                 `json:"response"`
	ResponseType events.ResponseType    `json:"response_type"`
	Status       TurnStatus             `json:"status"`
	StartedAt    time.Time              `json:"started_at"`
	FinishedAt   time.Time              `json:"finished_at"`
}

// newTurnID returns a lexicographically ordered turn id.
func newTurnID() string {
	return ulid.Make().String()
}

// Feedback values an operator can attach after a diagnostic answer.
const (
	FeedbackResolved = "resolved"
	FeedbackMoreInfo = "more_info"
	FeedbackEnd      = "end"
)

// Request is one inbound operator message.
type Request struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

var (
	// ErrInvalidInput rejects empty or oversized queries before any state
	// is touched.
	ErrInvalidInput = errors.New("invalid input")
	// ErrThreadBusy means another turn is currently running on the thread.
	ErrThreadBusy = errors.New("thread is processing another request")
	// ErrThreadClosed means the conversation was explicitly ended.
	ErrThreadClosed = errors.New("thread is closed")
)
