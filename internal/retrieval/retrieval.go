// Package retrieval fans a query out to the knowledge graph, the vector
// index and the live telemetry bridge, then fuses the results into a single
// ranked evidence set.
package retrieval

import (
	"context"

	"github.com/hragd/hragd/internal/slots"
)

// Source identifies which backend produced a result.
type Source string

const (
	SourceGraph  Source = "graph"
	SourceVector Source = "vector"
	SourceLive   Source = "live"
)

// sourcePriority breaks score ties: structural facts first, then indexed
// knowledge, then volatile telemetry.
var sourcePriority = map[Source]int{
	SourceGraph:  0,
	SourceVector: 1,
	SourceLive:   2,
}

// Query is what the engine sends to every source.
type Query struct {
	Text   string
	Slots  slots.SlotSet
	Intent string
}

// Result is one piece of evidence from one source.
type Result struct {
	Source   Source            `json:"source"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`    // per-source confidence in [0,1]
	Combined float64           `json:"combined"` // weighted fused score
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Querier is a single evidence source.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Result, error)
	Source() Source
}

// EvidenceSet is the fused output of one retrieval round.
type EvidenceSet struct {
	Results []Result        `json:"results"`
	Failed  map[Source]bool `json:"failed,omitempty"`
	Sources int             `json:"sources"` // how many sources were queried
}

// TotalFailure reports whether every queried source failed, meaning the
// engine has nothing at all to reason over. Sources that answered with
// zero results are healthy, not failed.
func (e *EvidenceSet) TotalFailure() bool {
	return e.Sources > 0 && len(e.Failed) == e.Sources
}

// BySource returns the results that came from one source, in fused order.
func (e *EvidenceSet) BySource(s Source) []Result {
	var out []Result
	for _, r := range e.Results {
		if r.Source == s {
			out = append(out, r)
		}
	}
	return out
}

// Top returns the highest-ranked result, or nil when empty.
func (e *EvidenceSet) Top() *Result {
	if len(e.Results) == 0 {
		return nil
	}
	return &e.Results[0]
}
