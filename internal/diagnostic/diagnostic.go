// Package diagnostic defines the structured troubleshooting path returned
// for diagnostic intents: an ordered set of steps with typed payloads that
// a client can render as a timeline.
package diagnostic

import "encoding/json"

// Severity grades a step's finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// PayloadKind discriminates step payloads.
type PayloadKind string

const (
	PayloadLog      PayloadKind = "log"
	PayloadGraph    PayloadKind = "graph"
	PayloadMarkdown PayloadKind = "markdown"
)

// GraphEdge is one rendered relation inside a graph payload.
type GraphEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// Payload is the typed detail attached to a step. Exactly one of the
// kind-specific fields is set, according to Kind.
type Payload struct {
	Kind     PayloadKind `json:"kind"`
	Lines    []string    `json:"lines,omitempty"`    // log
	Edges    []GraphEdge `json:"edges,omitempty"`    // graph
	Markdown string      `json:"markdown,omitempty"` // markdown
}

// Step is one node of the diagnostic path.
type Step struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail"`
	Severity Severity `json:"severity"`
	Root     bool     `json:"root,omitempty"`
	Parallel bool     `json:"parallel,omitempty"`
	Payload  *Payload `json:"payload,omitempty"`
}

// Path is the full diagnostic answer.
type Path struct {
	Steps      []Step  `json:"steps"`
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

// MarshalJSON keeps an empty path serializable as an object with an empty
// steps array rather than null, which clients render badly.
func (p Path) MarshalJSON() ([]byte, error) {
	type alias Path
	a := alias(p)
	if a.Steps == nil {
		a.Steps = []Step{}
	}
	return json.Marshal(a)
}
