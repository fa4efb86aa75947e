package slots

import (
	"context"
	"fmt"
	"strings"

	"github.com/hragd/hragd/internal/domain"
	"github.com/hragd/hragd/internal/llm"
)

// Clarifier phrases a follow-up question that asks the operator for the
// missing required slots of an intent.
type Clarifier struct {
	provider llm.Provider
	model    string
	vocab    *domain.Vocabulary
}

// NewClarifier creates a clarifier for one domain vocabulary.
func NewClarifier(provider llm.Provider, model string, vocab *domain.Vocabulary) *Clarifier {
	return &Clarifier{provider: provider, model: model, vocab: vocab}
}

// Question produces a single clarification question covering all missing
// slots. If the model fails, a canned question is returned so the
// conversation never stalls on a generation error.
func (c *Clarifier) Question(ctx context.Context, intent domain.Intent, missing []string, query string) string {
	if len(missing) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The operator asked: %q\n", query)
	fmt.Fprintf(&b, "Intent: %s. Missing details: %s.\n", intent.Name, strings.Join(missing, ", "))
	if len(c.vocab.SlotExamples) > 0 {
		for _, slot := range missing {
			if examples := c.vocab.SlotExamples[slot]; len(examples) > 0 {
				fmt.Fprintf(&b, "Examples for %s: %s\n", slot, strings.Join(examples, "; "))
			}
		}
	}
	b.WriteString("Ask one short, friendly question that collects all missing details at once. Respond with the question only.")

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: c.vocab.Identity},
			{Role: llm.RoleUser, Content: b.String()},
		},
		MaxTokens:   128,
		Temperature: 0.3,
	})
	if err == nil {
		if q := strings.TrimSpace(resp.Content); q != "" {
			return q
		}
	}

	return cannedQuestion(missing)
}

func cannedQuestion(missing []string) string {
	pretty := make([]string, len(missing))
	for i, slot := range missing {
		pretty[i] = strings.ReplaceAll(slot, "_", " ")
	}
	if len(pretty) == 1 {
		return fmt.Sprintf("Could you tell me the %s you are asking about?", pretty[0])
	}
	last := pretty[len(pretty)-1]
	rest := strings.Join(pretty[:len(pretty)-1], ", ")
	return fmt.Sprintf("Could you tell me the %s and %s you are asking about?", rest, last)
}
