// Package events defines the reasoning progress protocol between the
// conversation engine and the transport layer. The engine emits step
// updates followed by exactly one terminal event; SSE and websocket
// handlers forward frames without knowing anything about conversations.
package events

// StepStatus is the lifecycle of one reasoning step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

// Step is one unit of visible progress, e.g. "searching knowledge graph".
type Step struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Status StepStatus `json:"status"`
}

// EventType discriminates stream frames.
type EventType string

const (
	TypeReasoning EventType = "reasoning"
	TypeComplete  EventType = "complete"
	TypeError     EventType = "error"
)

// ResponseType tells the client how to render a completed answer.
type ResponseType string

const (
	ResponseText          ResponseType = "text"
	ResponseReasoning     ResponseType = "reasoning"
	ResponseDiagnostic    ResponseType = "diagnostic"
	ResponseClarification ResponseType = "clarification"
)

// Completion is the payload of a terminal complete event.
type Completion struct {
	ThreadID              string       `json:"thread_id"`
	Response              string       `json:"response"`
	ResponseType          ResponseType `json:"response_type"`
	Intent                string       `json:"intent,omitempty"`
	Diagnostic            any          `json:"diagnostic,omitempty"`
	ClarificationQuestion string       `json:"clarification_question,omitempty"`
}

// Event is one frame on the stream. The embedded completion keeps the
// complete frame flat on the wire: {"type":"complete","thread_id":...}.
type Event struct {
	Type EventType `json:"type"`
	Step *Step     `json:"step,omitempty"`
	*Completion
	Message string `json:"message,omitempty"`
}

// Terminal reports whether this event closes the stream.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}
