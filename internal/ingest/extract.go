package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hragd/hragd/internal/gardener"
	"github.com/hragd/hragd/internal/llm"
)

const extractionSystemPrompt = `You extract infrastructure entities from operational documents.
Entity types: Service, Component, Incident, FailureMode, Team.
Relation types: depends_on, causes, resolved_by, owned_by, part_of.
Respond with JSON only:
{"entities": [{"name": "...", "type": "...", "properties": {"...": "..."}, "relations": [{"target": "...", "type": "..."}]}]}
Only extract entities the document actually describes. Never invent names.`

// extractionResult is the expected JSON structure from the LLM.
type extractionResult struct {
	Entities []extractedEntity `json:"entities"`
}

type extractedEntity struct {
	Name       string                       `json:"name"`
	Type       string                       `json:"type"`
	Properties map[string]string            `json:"properties"`
	Relations  []gardener.CandidateRelation `json:"relations"`
}

// extractEntities asks the model for entity candidates in one document.
// Extraction failure skips graph curation for the document but never blocks
// indexing; partial ingestion beats none.
func extractEntities(ctx context.Context, provider llm.Provider, model, content, sourceDoc string) ([]gardener.EntityCandidate, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Document %s:\n\n%s\n\nExtract the entities. Respond with JSON.", sourceDoc, content)

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractionSystemPrompt},
			{Role: llm.RoleUser, Content: b.String()},
		},
		MaxTokens:   2048,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("entity extraction: %w", err)
	}

	result := parseExtractionResult(resp.Content)

	var candidates []gardener.EntityCandidate
	for _, e := range result.Entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		candidates = append(candidates, gardener.EntityCandidate{
			Name:       strings.TrimSpace(e.Name),
			Type:       e.Type,
			Properties: e.Properties,
			Relations:  e.Relations,
			SourceDoc:  sourceDoc,
		})
	}
	return candidates, nil
}

func parseExtractionResult(content string) *extractionResult {
	jsonStr := content
	if idx := strings.Index(content, "{"); idx >= 0 {
		jsonStr = content[idx:]
	}
	if idx := strings.LastIndex(jsonStr, "}"); idx >= 0 {
		jsonStr = jsonStr[:idx+1]
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return &extractionResult{}
	}
	return &result
}
