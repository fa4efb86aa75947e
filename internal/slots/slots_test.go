package slots

import (
	"context"
	"errors"
	"testing"

	"github.com/hragd/hragd/internal/domain"
	"github.com/hragd/hragd/internal/llm"
)

// scriptedProvider returns queued responses in order, then errors.
type scriptedProvider struct {
	responses []string
	err       error
	calls     int
}

func (p *scriptedProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return nil, errors.New("no scripted response left")
	}
	content := p.responses[0]
	p.responses = p.responses[1:]
	return &llm.CompletionResponse{Content: content}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func TestSlotSet_Merge(t *testing.T) {
	existing := SlotSet{"service": "payment-service", "error_type": "timeout"}

	merged := existing.Merge(SlotSet{
		"error_type": "",            // blank never erases
		"time_range": " last hour ", // trimmed on merge
	})

	if merged["service"] != "payment-service" {
		t.Errorf("service = %q, want payment-service", merged["service"])
	}
	if merged["error_type"] != "timeout" {
		t.Errorf("blank delta erased error_type: %q", merged["error_type"])
	}
	if merged["time_range"] != "last hour" {
		t.Errorf("time_range = %q, want trimmed value", merged["time_range"])
	}

	// Merge must not mutate the receiver.
	if _, ok := existing["time_range"]; ok {
		t.Error("Merge mutated the original SlotSet")
	}
}

func TestSlotSet_MissingAndComplete(t *testing.T) {
	vocab := domain.Default()
	troubleshoot, ok := vocab.Intent("troubleshoot")
	if !ok {
		t.Fatal("default vocabulary is missing troubleshoot intent")
	}

	s := SlotSet{"service": "payment-service"}
	missing := s.Missing(troubleshoot)
	if len(missing) != 1 || missing[0] != "error_type" {
		t.Errorf("Missing = %v, want [error_type]", missing)
	}
	if s.Complete(troubleshoot) {
		t.Error("Complete should be false with error_type missing")
	}

	s["error_type"] = "timeout"
	if !s.Complete(troubleshoot) {
		t.Error("Complete should be true with all required slots filled")
	}
}

func TestExtractor_Extract(t *testing.T) {
	vocab := domain.Default()
	provider := &scriptedProvider{responses: []string{
		`{"intent": "troubleshoot", "slots": {"service": "payment-service", "error_type": "timeout", "bogus": "x"}}`,
	}}
	ex := NewExtractor(provider, "test-model", vocab)

	got := ex.Extract(context.Background(), "payment-service is timing out", SlotSet{}, "")
	if got.Intent.Name != "troubleshoot" {
		t.Errorf("Intent = %q, want troubleshoot", got.Intent.Name)
	}
	if got.Delta["service"] != "payment-service" {
		t.Errorf("Delta[service] = %q", got.Delta["service"])
	}
	if _, ok := got.Delta["bogus"]; ok {
		t.Error("Delta kept a slot the vocabulary does not declare")
	}
}

func TestExtractor_ExtractFallbackOnError(t *testing.T) {
	vocab := domain.Default()
	provider := &scriptedProvider{err: errors.New("model unavailable")}
	ex := NewExtractor(provider, "test-model", vocab)

	got := ex.Extract(context.Background(), "payment-service keeps crashing with errors", SlotSet{}, "")
	if got.Intent.Name != "troubleshoot" {
		t.Errorf("keyword fallback intent = %q, want troubleshoot", got.Intent.Name)
	}
	if len(got.Delta) != 0 {
		t.Errorf("fallback delta = %v, want empty", got.Delta)
	}
}

func TestExtractor_ExtractFallbackOnGarbage(t *testing.T) {
	vocab := domain.Default()
	provider := &scriptedProvider{responses: []string{"sorry, I cannot help with that"}}
	ex := NewExtractor(provider, "test-model", vocab)

	got := ex.Extract(context.Background(), "hello there", SlotSet{}, "")
	if got.Intent.Kind != domain.KindChat {
		t.Errorf("garbage fallback intent kind = %q, want chat", got.Intent.Kind)
	}
	if len(got.Delta) != 0 {
		t.Errorf("fallback delta = %v, want empty", got.Delta)
	}
}

func TestExtractor_LockedIntentSurvivesReclassification(t *testing.T) {
	vocab := domain.Default()
	// The model sees a bare answer and misclassifies it as chat.
	provider := &scriptedProvider{responses: []string{
		`{"intent": "chat", "slots": {"service": "payment-service"}}`,
	}}
	ex := NewExtractor(provider, "test-model", vocab)

	got := ex.Extract(context.Background(), "payment-service", SlotSet{}, "troubleshoot")
	if got.Intent.Name != "troubleshoot" {
		t.Errorf("locked intent lost: got %q, want troubleshoot", got.Intent.Name)
	}
	if got.Delta["service"] != "payment-service" {
		t.Errorf("Delta[service] = %q, want payment-service", got.Delta["service"])
	}
}

func TestExtractor_LockedIntentYieldsToEnd(t *testing.T) {
	vocab := domain.Default()
	provider := &scriptedProvider{responses: []string{
		`{"intent": "end", "slots": {}}`,
	}}
	ex := NewExtractor(provider, "test-model", vocab)

	got := ex.Extract(context.Background(), "never mind, bye", SlotSet{}, "troubleshoot")
	if got.Intent.Kind != domain.KindEnd {
		t.Errorf("explicit end during clarification: got kind %q, want end", got.Intent.Kind)
	}
}

func TestClarifier_Question(t *testing.T) {
	vocab := domain.Default()
	troubleshoot, _ := vocab.Intent("troubleshoot")

	provider := &scriptedProvider{responses: []string{
		"Which service is failing, and what error are you seeing?",
	}}
	c := NewClarifier(provider, "test-model", vocab)

	q := c.Question(context.Background(), troubleshoot, []string{"error_type", "service"}, "something is broken")
	if q != "Which service is failing, and what error are you seeing?" {
		t.Errorf("Question = %q", q)
	}
}

func TestClarifier_QuestionCannedFallback(t *testing.T) {
	vocab := domain.Default()
	troubleshoot, _ := vocab.Intent("troubleshoot")

	c := NewClarifier(&scriptedProvider{err: errors.New("down")}, "test-model", vocab)

	q := c.Question(context.Background(), troubleshoot, []string{"error_type", "service"}, "broken")
	want := "Could you tell me the error type and service you are asking about?"
	if q != want {
		t.Errorf("canned question = %q, want %q", q, want)
	}

	single := c.Question(context.Background(), troubleshoot, []string{"service"}, "broken")
	if single != "Could you tell me the service you are asking about?" {
		t.Errorf("single-slot canned question = %q", single)
	}

	if got := c.Question(context.Background(), troubleshoot, nil, "x"); got != "" {
		t.Errorf("Question with nothing missing = %q, want empty", got)
	}
}
