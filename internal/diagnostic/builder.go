package diagnostic

import (
	"fmt"
	"strings"

	"github.com/hragd/hragd/internal/retrieval"
	"github.com/hragd/hragd/internal/slots"
)

// FromEvidence assembles a diagnostic path from a fused evidence set.
// The root step restates what is being investigated; one parallel step is
// added per source that contributed evidence, and the suggestion comes
// from the reasoning model separately.
func FromEvidence(set *retrieval.EvidenceSet, slotSet slots.SlotSet, suggestion string) Path {
	path := Path{Suggestion: suggestion}

	service := slotSet["service"]
	if service == "" {
		service = "the affected system"
	}
	rootDetail := fmt.Sprintf("Investigating %s", service)
	if errType := slotSet["error_type"]; errType != "" {
		rootDetail = fmt.Sprintf("Investigating %s for %s", service, errType)
	}
	path.Steps = append(path.Steps, Step{
		ID:       "root",
		Source:   "analysis",
		Title:    "Problem statement",
		Detail:   rootDetail,
		Severity: SeverityInfo,
		Root:     true,
	})

	if set != nil {
		if graph := set.BySource(retrieval.SourceGraph); len(graph) > 0 {
			path.Steps = append(path.Steps, graphStep(graph[0]))
		}
		if vector := set.BySource(retrieval.SourceVector); len(vector) > 0 {
			path.Steps = append(path.Steps, vectorStep(vector[0]))
		}
		if live := set.BySource(retrieval.SourceLive); len(live) > 0 {
			path.Steps = append(path.Steps, liveStep(live))
		}
		path.Confidence = confidence(set)
	}

	return path
}

func graphStep(r retrieval.Result) Step {
	payload := &Payload{Kind: PayloadGraph}
	for _, line := range strings.Split(r.Content, "\n") {
		var edge GraphEdge
		switch {
		case strings.HasPrefix(line, "-> "):
			parts := strings.SplitN(strings.TrimPrefix(line, "-> "), " ", 2)
			if len(parts) == 2 {
				edge = GraphEdge{From: r.Title, Relation: parts[0], To: trimEntitySuffix(parts[1])}
			}
		case strings.HasPrefix(line, "<- "):
			parts := strings.SplitN(strings.TrimPrefix(line, "<- "), " ", 2)
			if len(parts) == 2 {
				edge = GraphEdge{From: trimEntitySuffix(parts[1]), Relation: parts[0], To: r.Title}
			}
		}
		if edge.Relation != "" {
			payload.Edges = append(payload.Edges, edge)
		}
	}

	return Step{
		ID:       "graph",
		Source:   string(retrieval.SourceGraph),
		Title:    fmt.Sprintf("Topology around %s", r.Title),
		Detail:   r.Content,
		Severity: SeverityWarning,
		Parallel: true,
		Payload:  payload,
	}
}

func vectorStep(r retrieval.Result) Step {
	title := r.Title
	if title == "" {
		title = "Related knowledge"
	}
	return Step{
		ID:       "vector",
		Source:   string(retrieval.SourceVector),
		Title:    title,
		Detail:   snippet(r.Content, 240),
		Severity: SeverityInfo,
		Parallel: true,
		Payload:  &Payload{Kind: PayloadMarkdown, Markdown: r.Content},
	}
}

func liveStep(results []retrieval.Result) Step {
	severity := SeverityInfo
	payload := &Payload{Kind: PayloadLog}
	for _, r := range results {
		payload.Lines = append(payload.Lines, r.Content)
		if r.Metadata["level"] == "error" || r.Metadata["level"] == "critical" {
			severity = SeverityError
		}
	}
	return Step{
		ID:       "live",
		Source:   string(retrieval.SourceLive),
		Title:    "Current telemetry",
		Detail:   fmt.Sprintf("%d live records", len(results)),
		Severity: severity,
		Parallel: true,
		Payload:  payload,
	}
}

// confidence averages the fused scores of the top results so weak evidence
// yields a visibly hedged path.
func confidence(set *retrieval.EvidenceSet) float64 {
	if len(set.Results) == 0 {
		return 0
	}
	n := len(set.Results)
	if n > 3 {
		n = 3
	}
	var sum float64
	for _, r := range set.Results[:n] {
		sum += r.Score
	}
	return sum / float64(n)
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func trimEntitySuffix(s string) string {
	if idx := strings.LastIndex(s, " ("); idx > 0 {
		return s[:idx]
	}
	return s
}
