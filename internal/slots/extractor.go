package slots

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hragd/hragd/internal/domain"
	"github.com/hragd/hragd/internal/llm"
)

// Extraction is the outcome of analyzing one user message.
type Extraction struct {
	Intent domain.Intent
	Delta  SlotSet
}

// Extractor classifies intent and pulls slot values out of user messages
// using the configured LLM, with a keyword fallback when the model is
// unavailable or returns garbage.
type Extractor struct {
	provider llm.Provider
	model    string
	vocab    *domain.Vocabulary
}

// NewExtractor creates an extractor for one domain vocabulary.
func NewExtractor(provider llm.Provider, model string, vocab *domain.Vocabulary) *Extractor {
	return &Extractor{provider: provider, model: model, vocab: vocab}
}

// extractionResult is the expected JSON structure from the LLM.
type extractionResult struct {
	Intent string            `json:"intent"`
	Slots  map[string]string `json:"slots"`
}

// Extract analyzes a user message. lockedIntent pins the intent when the
// thread is mid-clarification, so a bare answer like "payment-service"
// keeps filling the original request instead of being reclassified.
// Extraction failures degrade to keyword matching with an empty delta.
func (e *Extractor) Extract(ctx context.Context, query string, existing SlotSet, lockedIntent string) Extraction {
	prompt := e.buildPrompt(query, existing, lockedIntent)

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: e.systemPrompt()},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   512,
		Temperature: 0.0,
		JSONMode:    true,
	})
	if err != nil {
		return e.fallback(query, lockedIntent)
	}

	result, ok := parseExtractionResult(resp.Content)
	if !ok {
		return e.fallback(query, lockedIntent)
	}

	intent := e.resolveIntent(result.Intent, query, lockedIntent)

	delta := SlotSet{}
	known := map[string]bool{}
	for _, name := range e.vocab.AllSlots() {
		known[name] = true
	}
	for k, v := range result.Slots {
		if known[k] {
			delta[k] = v
		}
	}

	return Extraction{Intent: intent, Delta: delta}
}

func (e *Extractor) resolveIntent(raw, query, lockedIntent string) domain.Intent {
	if lockedIntent != "" {
		if in, ok := e.vocab.Intent(lockedIntent); ok {
			// A locked intent only yields to an explicit conversation end.
			matched := e.vocab.MatchIntent(raw, "")
			if matched.Kind == domain.KindEnd && strings.Contains(strings.ToLower(raw), matched.Name) {
				return matched
			}
			return in
		}
	}
	return e.vocab.MatchIntent(raw, query)
}

func (e *Extractor) fallback(query, lockedIntent string) Extraction {
	if lockedIntent != "" {
		if in, ok := e.vocab.Intent(lockedIntent); ok {
			return Extraction{Intent: in, Delta: SlotSet{}}
		}
	}
	return Extraction{Intent: e.vocab.MatchIntent("", query), Delta: SlotSet{}}
}

func (e *Extractor) systemPrompt() string {
	var b strings.Builder
	b.WriteString(e.vocab.Identity)
	b.WriteString("\nClassify the user's message into exactly one intent and extract slot values.")
	b.WriteString("\nRespond with JSON only: {\"intent\": \"<name>\", \"slots\": {\"<slot>\": \"<value>\"}}.")
	b.WriteString("\nOmit slots the message says nothing about. Never invent values.")
	return b.String()
}

func (e *Extractor) buildPrompt(query string, existing SlotSet, lockedIntent string) string {
	var b strings.Builder

	b.WriteString("Intents:\n")
	for _, in := range e.vocab.Intents {
		fmt.Fprintf(&b, "- %s (%s)", in.Name, in.Kind)
		if len(in.Required) > 0 {
			fmt.Fprintf(&b, " requires: %s", strings.Join(in.Required, ", "))
		}
		b.WriteString("\n")
	}

	if len(e.vocab.SlotExamples) > 0 {
		b.WriteString("\nSlot examples:\n")
		for _, slot := range e.vocab.AllSlots() {
			if examples := e.vocab.SlotExamples[slot]; len(examples) > 0 {
				fmt.Fprintf(&b, "- %s: %s\n", slot, strings.Join(examples, "; "))
			}
		}
	}

	if len(existing) > 0 {
		b.WriteString("\nAlready known slots (do not repeat unless the message changes them):\n")
		for _, slot := range e.vocab.AllSlots() {
			if v := existing[slot]; v != "" {
				fmt.Fprintf(&b, "- %s: %s\n", slot, v)
			}
		}
	}

	if lockedIntent != "" {
		fmt.Fprintf(&b, "\nThe conversation is clarifying the %q intent. Treat the message as an answer to a clarification question.\n", lockedIntent)
	}

	fmt.Fprintf(&b, "\nUser message:\n%s\n", query)
	return b.String()
}

func parseExtractionResult(content string) (*extractionResult, bool) {
	jsonStr := content
	if idx := strings.Index(content, "{"); idx >= 0 {
		jsonStr = content[idx:]
	}
	if idx := strings.LastIndex(jsonStr, "}"); idx >= 0 {
		jsonStr = jsonStr[:idx+1]
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, false
	}
	return &result, true
}
