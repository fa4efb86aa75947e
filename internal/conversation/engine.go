package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hragd/hragd/internal/config"
	"github.com/hragd/hragd/internal/diagnostic"
	"github.com/hragd/hragd/internal/domain"
	"github.com/hragd/hragd/internal/events"
	"github.com/hragd/hragd/internal/llm"
	"github.com/hragd/hragd/internal/retrieval"
	"github.com/hragd/hragd/internal/slots"
	"github.com/hragd/hragd/internal/vectordb"
)

// Retriever is the fusion engine as the conversation engine sees it.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (*retrieval.EvidenceSet, error)
}

// CaseStudySink receives case studies distilled from resolved incidents.
// The vector store satisfies this, closing the feedback loop: today's fix
// is tomorrow's retrievable knowledge.
type CaseStudySink interface {
	AddDocuments(ctx context.Context, docs []vectordb.Document) error
}

// domainTools is the per-vocabulary toolset: the vocabulary itself plus
// the extractor and clarifier bound to it.
type domainTools struct {
	vocab     *domain.Vocabulary
	extractor *slots.Extractor
	clarifier *slots.Clarifier
}

// Engine orchestrates turns across all threads. A thread is pinned to one
// domain vocabulary on its first query and keeps it for its lifetime.
type Engine struct {
	provider  llm.Provider
	model     string
	domains   *domain.Registry
	tools     map[string]domainTools
	retriever Retriever
	sink      CaseStudySink
	threads   *ThreadStore
	cfg       config.ConversationConfig
}

// NewEngine wires a conversation engine over every registered vocabulary.
func NewEngine(provider llm.Provider, model string, domains *domain.Registry, retriever Retriever, sink CaseStudySink, threads *ThreadStore, cfg config.ConversationConfig) *Engine {
	tools := make(map[string]domainTools, len(domains.Names()))
	for _, name := range domains.Names() {
		v := domains.Get(name)
		tools[name] = domainTools{
			vocab:     v,
			extractor: slots.NewExtractor(provider, model, v),
			clarifier: slots.NewClarifier(provider, model, v),
		}
	}
	return &Engine{
		provider:  provider,
		model:     model,
		domains:   domains,
		tools:     tools,
		retriever: retriever,
		sink:      sink,
		threads:   threads,
		cfg:       cfg,
	}
}

// toolsFor pins an unpinned thread to the vocabulary matching its query
// and returns the thread's toolset.
func (e *Engine) toolsFor(thread *Thread, query string) domainTools {
	if t, ok := e.tools[thread.Domain]; ok {
		return t
	}
	v := e.domains.Select(query)
	thread.Domain = v.Name
	return e.tools[v.Name]
}

// vocabFor returns the vocabulary a thread is pinned to, falling back to
// the registry default for threads that never ran a turn.
func (e *Engine) vocabFor(thread *Thread) *domain.Vocabulary {
	if v := e.domains.Get(thread.Domain); v != nil {
		return v
	}
	return e.domains.Default()
}

// Threads exposes the thread store for stats and sweeping.
func (e *Engine) Threads() *ThreadStore { return e.threads }

// Process runs one turn. Validation errors, busy threads and closed
// threads are returned as errors before any event is emitted; once the
// stream carries events, the outcome arrives as its terminal event.
// Cancellation aborts the turn, resets the thread to idle and persists
// nothing.
func (e *Engine) Process(ctx context.Context, req Request, stream *events.Stream) error {
	query := strings.TrimSpace(req.Query)
	if query == "" && req.Feedback == "" {
		return fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	if e.cfg.MaxQueryLength > 0 && len(query) > e.cfg.MaxQueryLength {
		return fmt.Errorf("%w: query exceeds %d characters", ErrInvalidInput, e.cfg.MaxQueryLength)
	}

	thread, _ := e.threads.GetOrCreate(req.ThreadID)
	if !thread.TryAcquire() {
		return fmt.Errorf("thread %s: %w", thread.ID, ErrThreadBusy)
	}
	defer thread.Release()

	if thread.State == StateClosed {
		return fmt.Errorf("thread %s: %w", thread.ID, ErrThreadClosed)
	}
	thread.touch()
	defer thread.touch()

	if thread.State == StateAwaitingFeedback && req.Feedback != "" {
		return e.handleFeedback(ctx, thread, req, stream)
	}
	return e.runTurn(ctx, thread, query, stream)
}

func (e *Engine) handleFeedback(ctx context.Context, thread *Thread, req Request, stream *events.Stream) error {
	switch req.Feedback {
	case FeedbackResolved:
		e.recordCaseStudy(ctx, thread)
		thread.ClarifyCount = 0
		thread.Intent = ""
		if err := thread.transition(StateIdle); err != nil {
			return err
		}
		stream.Complete(events.Completion{
			ThreadID:     thread.ID,
			Response:     "Glad that resolved it. I have filed this incident as a case study for next time.",
			ResponseType: events.ResponseText,
		})
		return nil

	case FeedbackEnd:
		if err := thread.transition(StateClosed); err != nil {
			return err
		}
		stream.Complete(events.Completion{
			ThreadID:     thread.ID,
			Response:     "Understood, closing this investigation. Reach out any time.",
			ResponseType: events.ResponseText,
		})
		return nil

	case FeedbackMoreInfo:
		// The fix did not land; give the operator fresh clarification
		// budget and treat the message as a new lead.
		thread.ClarifyCount = 0
		if err := thread.transition(StateIdle); err != nil {
			return err
		}
		query := strings.TrimSpace(req.Query)
		if query == "" {
			stream.Complete(events.Completion{
				ThreadID:     thread.ID,
				Response:     "What changed after trying that? Any new errors or symptoms help me dig further.",
				ResponseType: events.ResponseClarification,
				Intent:       thread.Intent,
			})
			return nil
		}
		return e.runTurn(ctx, thread, query, stream)

	default:
		return fmt.Errorf("%w: unknown feedback %q", ErrInvalidInput, req.Feedback)
	}
}

func (e *Engine) runTurn(ctx context.Context, thread *Thread, query string, stream *events.Stream) error {
	started := time.Now().UTC()
	tools := e.toolsFor(thread, query)

	stream.Active("understand", "Understanding the request")

	locked := ""
	if thread.State == StateClarifying {
		locked = thread.Intent
	}
	ext := tools.extractor.Extract(ctx, query, thread.Slots, locked)
	if err := ctx.Err(); err != nil {
		return e.abort(thread, err)
	}

	thread.Slots = thread.Slots.Merge(ext.Delta)
	thread.Intent = ext.Intent.Name
	stream.Completed("understand", "Understanding the request")

	switch ext.Intent.Kind {
	case domain.KindEnd:
		if err := thread.transition(StateClosed); err != nil {
			return err
		}
		stream.Complete(events.Completion{
			ThreadID:     thread.ID,
			Response:     "Goodbye! Closing this conversation.",
			ResponseType: events.ResponseText,
			Intent:       ext.Intent.Name,
		})
		return nil

	case domain.KindChat:
		if err := thread.transition(StateIdle); err != nil {
			return err
		}
		response := e.chat(ctx, tools.vocab, query)
		e.record(thread, Turn{
			Query: query, Intent: ext.Intent.Name, Slots: thread.Slots.Clone(),
			Response: response, ResponseType: events.ResponseText,
			Status: TurnCompleted, StartedAt: started,
		})
		stream.Complete(events.Completion{
			ThreadID:     thread.ID,
			Response:     response,
			ResponseType: events.ResponseText,
			Intent:       ext.Intent.Name,
		})
		return nil
	}

	// Diagnostic and question intents need their required slots.
	if missing := thread.Slots.Missing(ext.Intent); len(missing) > 0 && thread.ClarifyCount < e.cfg.MaxClarifyRounds {
		if err := thread.transition(StateClarifying); err != nil {
			return err
		}
		thread.ClarifyCount++

		question := tools.clarifier.Question(ctx, ext.Intent, missing, query)
		e.record(thread, Turn{
			Query: query, Intent: ext.Intent.Name, Slots: thread.Slots.Clone(),
			Response: question, ResponseType: events.ResponseClarification,
			Status: TurnClarified, StartedAt: started,
		})
		stream.Complete(events.Completion{
			ThreadID:              thread.ID,
			Response:              question,
			ResponseType:          events.ResponseClarification,
			Intent:                ext.Intent.Name,
			ClarificationQuestion: question,
		})
		return nil
	}

	if err := thread.transition(StateRetrieving); err != nil {
		return err
	}

	stream.Active("retrieve", "Gathering evidence from graph, documents and telemetry")
	set, err := e.retriever.Retrieve(ctx, retrieval.Query{
		Text:   query,
		Slots:  thread.Slots.Clone(),
		Intent: ext.Intent.Name,
	})
	if err != nil {
		return e.abort(thread, err)
	}
	stream.Completed("retrieve", "Gathering evidence from graph, documents and telemetry")

	if set.TotalFailure() {
		if err := thread.transition(StateIdle); err != nil {
			return err
		}
		thread.ClarifyCount = 0
		response := "I could not reach any knowledge source just now, so I cannot give a grounded answer. Please retry in a moment."
		e.record(thread, Turn{
			Query: query, Intent: ext.Intent.Name, Slots: thread.Slots.Clone(),
			Evidence: set, Response: response, ResponseType: events.ResponseText,
			Status: TurnDegraded, StartedAt: started,
		})
		stream.Complete(events.Completion{
			ThreadID:     thread.ID,
			Response:     response,
			ResponseType: events.ResponseText,
			Intent:       ext.Intent.Name,
		})
		return nil
	}

	if err := thread.transition(StateReasoning); err != nil {
		return err
	}
	stream.Active("reason", "Synthesizing an answer from the evidence")

	answer, err := e.reason(ctx, tools.vocab, query, ext.Intent, thread.Slots, set)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return e.abort(thread, ctxErr)
		}
		if err := thread.transition(StateIdle); err != nil {
			return err
		}
		response := "answer generation failed, please retry"
		e.record(thread, Turn{
			Query: query, Intent: ext.Intent.Name, Slots: thread.Slots.Clone(),
			Evidence: set, Response: response, ResponseType: events.ResponseText,
			Status: TurnFailed, StartedAt: started,
		})
		stream.Error(response)
		return nil
	}
	stream.Completed("reason", "Synthesizing an answer from the evidence")

	if err := thread.transition(StateResponding); err != nil {
		return err
	}
	thread.ClarifyCount = 0

	turn := Turn{
		Query: query, Intent: ext.Intent.Name, Slots: thread.Slots.Clone(),
		Evidence: set, Response: answer,
		Status: TurnCompleted, StartedAt: started,
	}
	completion := events.Completion{
		ThreadID: thread.ID,
		Response: answer,
		Intent:   ext.Intent.Name,
	}

	if ext.Intent.Kind == domain.KindDiagnostic {
		path := diagnostic.FromEvidence(set, thread.Slots, answer)
		turn.Diagnostic = &path
		turn.ResponseType = events.ResponseDiagnostic
		completion.ResponseType = events.ResponseDiagnostic
		completion.Diagnostic = path
		if err := thread.transition(StateAwaitingFeedback); err != nil {
			return err
		}
	} else {
		turn.ResponseType = events.ResponseText
		completion.ResponseType = events.ResponseText
		if err := thread.transition(StateIdle); err != nil {
			return err
		}
	}

	e.record(thread, turn)
	stream.Complete(completion)
	return nil
}

// abort resets a thread after cancellation or retrieval breakdown without
// persisting a turn.
func (e *Engine) abort(thread *Thread, err error) error {
	thread.State = StateIdle
	return err
}

func (e *Engine) record(thread *Thread, turn Turn) {
	turn.ID = newTurnID()
	turn.FinishedAt = time.Now().UTC()
	thread.Turns = append(thread.Turns, turn)
}

// chat answers small talk without retrieval.
func (e *Engine) chat(ctx context.Context, vocab *domain.Vocabulary, query string) string {
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: vocab.Identity + "\nAnswer briefly and offer to help diagnose an incident."},
			{Role: llm.RoleUser, Content: query},
		},
		MaxTokens:   256,
		Temperature: 0.5,
	})
	if err == nil {
		if answer := strings.TrimSpace(resp.Content); answer != "" {
			return answer
		}
	}
	return fmt.Sprintf("Hi! I am the %s assistant. Tell me which service is misbehaving and what you are seeing.", vocab.DisplayName)
}

// reason synthesizes the final answer from the fused evidence.
func (e *Engine) reason(ctx context.Context, vocab *domain.Vocabulary, query string, intent domain.Intent, slotSet slots.SlotSet, set *retrieval.EvidenceSet) (string, error) {
	if e.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.GenerationTimeout)
		defer cancel()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Operator question: %s\n", query)
	fmt.Fprintf(&b, "Intent: %s\n", intent.Name)
	if len(slotSet) > 0 {
		b.WriteString("Known details:\n")
		for k, v := range slotSet {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	b.WriteString("\nEvidence, strongest first:\n")
	for i, r := range set.Results {
		fmt.Fprintf(&b, "[%d] (%s, score %.2f) %s\n%s\n\n", i+1, r.Source, r.Combined, r.Title, r.Content)
	}
	for source := range set.Failed {
		fmt.Fprintf(&b, "Note: the %s source was unavailable for this question.\n", source)
	}
	if intent.Kind == domain.KindDiagnostic {
		b.WriteString("\nGive a concrete remediation suggestion grounded only in the evidence above. Mention the unavailable sources if any. Answer in a few sentences.")
	} else {
		b.WriteString("\nAnswer the question using only the evidence above. If the evidence is insufficient, say so. Answer in a few sentences.")
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: vocab.Identity},
			{Role: llm.RoleUser, Content: b.String()},
		},
		MaxTokens:   1024,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("reasoning completion: %w", err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("reasoning completion returned empty content")
	}
	return answer, nil
}

// recordCaseStudy distills the latest diagnostic exchange into a document
// and indexes it. Generation failures degrade to a plain transcript; a
// resolved incident is always worth keeping.
func (e *Engine) recordCaseStudy(ctx context.Context, thread *Thread) {
	if e.sink == nil {
		return
	}
	turn := lastDiagnosticTurn(thread)
	if turn == nil {
		return
	}

	content := e.generateCaseStudy(ctx, e.vocabFor(thread), turn)
	if content == "" {
		var b strings.Builder
		fmt.Fprintf(&b, "# Case study: %s\n\n", turn.Query)
		fmt.Fprintf(&b, "Resolution that worked:\n%s\n", turn.Response)
		content = b.String()
	}

	doc := vectordb.Document{
		ID:      ulid.Make().String(),
		Content: content,
		Metadata: vectordb.DocumentMetadata{
			Title:       "Case study: " + snippet(turn.Query, 80),
			Domain:      thread.Domain,
			Type:        vectordb.DocTypeCaseStudy,
			Source:      "feedback/" + thread.ID,
			LastUpdated: time.Now().UTC(),
		},
	}
	if err := e.sink.AddDocuments(ctx, []vectordb.Document{doc}); err != nil {
		// Losing a case study must not fail the feedback turn.
		return
	}
}

func (e *Engine) generateCaseStudy(ctx context.Context, vocab *domain.Vocabulary, turn *Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident report: %s\n", turn.Query)
	for k, v := range turn.Slots {
		fmt.Fprintf(&b, "- %s: %s\n", k, v)
	}
	fmt.Fprintf(&b, "\nDiagnosis that resolved it:\n%s\n", turn.Response)
	b.WriteString("\nWrite a short case study in markdown: symptom, root cause, resolution. Factual, no speculation.")

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: vocab.Identity},
			{Role: llm.RoleUser, Content: b.String()},
		},
		MaxTokens:   768,
		Temperature: 0.3,
	})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

func lastDiagnosticTurn(thread *Thread) *Turn {
	for i := len(thread.Turns) - 1; i >= 0; i-- {
		if thread.Turns[i].ResponseType == events.ResponseDiagnostic {
			return &thread.Turns[i]
		}
	}
	return nil
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
