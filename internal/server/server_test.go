package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hragd/hragd/internal/audit"
	"github.com/hragd/hragd/internal/config"
	"github.com/hragd/hragd/internal/conversation"
	"github.com/hragd/hragd/internal/db"
	"github.com/hragd/hragd/internal/domain"
	"github.com/hragd/hragd/internal/events"
	"github.com/hragd/hragd/internal/gardener"
	"github.com/hragd/hragd/internal/graphstore"
	"github.com/hragd/hragd/internal/ingest"
	"github.com/hragd/hragd/internal/livedata"
	"github.com/hragd/hragd/internal/llm"
	"github.com/hragd/hragd/internal/retrieval"
	"github.com/hragd/hragd/internal/vectordb"
)

// fnProvider routes JSON-mode requests to the extraction response and
// everything else to the generation response.
type fnProvider struct {
	extraction string
	answer     string
}

func (p *fnProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req.JSONMode {
		return &llm.CompletionResponse{Content: p.extraction}, nil
	}
	return &llm.CompletionResponse{Content: p.answer}, nil
}

func (p *fnProvider) Name() string { return "fn" }

type fakeRetriever struct {
	set *retrieval.EvidenceSet
}

func (f *fakeRetriever) Retrieve(context.Context, retrieval.Query) (*retrieval.EvidenceSet, error) {
	return f.set, nil
}

// fakeVectorStore is a map-backed stand-in for the chromem store.
type fakeVectorStore struct {
	docs map[string]vectordb.Document
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{docs: make(map[string]vectordb.Document)}
}

func (f *fakeVectorStore) AddDocuments(_ context.Context, docs []vectordb.Document) error {
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, query string, limit int, filter *vectordb.SearchFilter) ([]vectordb.SearchResult, error) {
	var out []vectordb.SearchResult
	for _, d := range f.docs {
		if filter != nil && filter.Type != nil && d.Metadata.Type != *filter.Type {
			continue
		}
		if strings.Contains(strings.ToLower(d.Content), strings.ToLower(query)) {
			out = append(out, vectordb.SearchResult{Document: d, Similarity: 0.9})
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeVectorStore) Get(_ context.Context, id string) (*vectordb.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, errors.New("document not found")
	}
	return &d, nil
}

func (f *fakeVectorStore) GetBySource(_ context.Context, source string) ([]vectordb.Document, error) {
	var out []vectordb.Document
	for _, d := range f.docs {
		if d.Metadata.Source == source {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeVectorStore) Update(_ context.Context, id, content string) error {
	d, ok := f.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	d.Content = content
	d.Metadata.LastUpdated = time.Now().UTC()
	f.docs[id] = d
	return nil
}

func (f *fakeVectorStore) DeleteBySource(_ context.Context, source string) error {
	for id, d := range f.docs {
		if d.Metadata.Source == source {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeVectorStore) Persist(context.Context, string) error { return nil }
func (f *fakeVectorStore) Load(context.Context, string) error    { return nil }
func (f *fakeVectorStore) Count() int                            { return len(f.docs) }

const diagnosticExtraction = `{"intent": "troubleshoot", "slots": {"service": "payment-service", "error_type": "timeout"}}`

func goodEvidence() *retrieval.EvidenceSet {
	return &retrieval.EvidenceSet{
		Results: []retrieval.Result{
			{Source: retrieval.SourceGraph, Title: "payment-service", Content: "payment-service (Service)", Score: 1.0, Combined: 0.4},
			{Source: retrieval.SourceVector, Title: "Pool runbook", Content: "Drain and restart the pool.", Score: 0.9, Combined: 0.315},
		},
	}
}

type testEnv struct {
	srv    *Server
	db     *db.DB
	graph  *graphstore.SQLiteStore
	queue  *gardener.Queue
	vector *fakeVectorStore
	audit  *audit.Store
}

func newTestEnv(t *testing.T, provider llm.Provider) *testEnv {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	graph := graphstore.NewSQLiteStore(database)
	auditStore := audit.NewStore(database)
	queue := gardener.NewQueue(database, graph, nil, auditStore, config.GardenerConfig{
		AutoMergeThreshold: 0.92,
		ReviewThreshold:    0.75,
	})
	vector := newFakeVectorStore()

	engine := conversation.NewEngine(provider, "test-model", domain.NewRegistry(domain.Default()),
		&fakeRetriever{set: goodEvidence()}, vector,
		conversation.NewThreadStore(30*time.Minute),
		config.ConversationConfig{
			ThreadTTL:         30 * time.Minute,
			MaxClarifyRounds:  3,
			GenerationTimeout: 5 * time.Second,
			MaxQueryLength:    8000,
		})

	pipeline := ingest.NewPipeline(vector, queue, provider, "test-model", auditStore, config.IngestConfig{
		Include:      []string{"**/*.md"},
		MaxChunkSize: 1000,
	})

	srv := New(config.ServerConfig{Port: 0, AllowAll: true}, Deps{
		DB:         database,
		Engine:     engine,
		Queue:      queue,
		Graph:      graph,
		Vector:     vector,
		Live:       livedata.NoopStore{},
		Pipeline:   pipeline,
		Audit:      auditStore,
		LLM:        provider,
		DomainName: "devops",
	})
	return &testEnv{srv: srv, db: database, graph: graph, queue: queue, vector: vector, audit: auditStore}
}

func defaultProvider() *fnProvider {
	return &fnProvider{extraction: diagnosticExtraction, answer: "Restart the connection pool."}
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, defaultProvider())

	w := doJSON(t, env.srv, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t, defaultProvider())

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS Allow-Origin header")
	}
}

func TestChat_Diagnostic(t *testing.T) {
	env := newTestEnv(t, defaultProvider())

	w := doJSON(t, env.srv, "POST", "/api/chat", conversation.Request{
		Query: "payment-service is throwing timeout errors",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ResponseType != events.ResponseDiagnostic {
		t.Errorf("response_type = %q, want diagnostic", resp.ResponseType)
	}
	if resp.ThreadID == "" {
		t.Error("thread_id missing")
	}
	if len(resp.Steps) == 0 {
		t.Error("no reasoning steps recorded")
	}

	// The completion fields sit at the top level of the payload.
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	for _, key := range []string{"thread_id", "response", "response_type"} {
		if _, ok := flat[key]; !ok {
			t.Errorf("payload missing top-level %q: %s", key, w.Body.String())
		}
	}
}

func TestChat_EmptyQuery(t *testing.T) {
	env := newTestEnv(t, defaultProvider())

	w := doJSON(t, env.srv, "POST", "/api/chat", conversation.Request{Query: "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChat_ClosedThreadGone(t *testing.T) {
	env := newTestEnv(t, defaultProvider())

	w := doJSON(t, env.srv, "POST", "/api/chat", conversation.Request{
		Query: "payment-service is throwing timeout errors",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first turn: %d", w.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	threadID := resp.ThreadID

	w = doJSON(t, env.srv, "POST", "/api/chat", conversation.Request{
		ThreadID: threadID,
		Feedback: conversation.FeedbackEnd,
		Query:    "thanks, bye",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("end feedback: %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, env.srv, "POST", "/api/chat", conversation.Request{
		ThreadID: threadID,
		Query:    "one more thing",
	})
	if w.Code != http.StatusGone {
		t.Errorf("closed thread status = %d, want 410", w.Code)
	}
}

func TestChatStream_SSEFrames(t *testing.T) {
	env := newTestEnv(t, defaultProvider())

	w := doJSON(t, env.srv, "POST", "/api/chat/stream", conversation.Request{
		Query: "payment-service is throwing timeout errors",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	var frames []string
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if after, ok := strings.CutPrefix(line, "data: "); ok {
			frames = append(frames, after)
		}
	}
	if len(frames) < 2 {
		t.Fatalf("got %d frames, want at least a terminal and [DONE]", len(frames))
	}
	if frames[len(frames)-1] != "[DONE]" {
		t.Errorf("last frame = %q, want [DONE]", frames[len(frames)-1])
	}

	var terminal events.Event
	if err := json.Unmarshal([]byte(frames[len(frames)-2]), &terminal); err != nil {
		t.Fatalf("terminal frame: %v", err)
	}
	if terminal.Type != events.TypeComplete {
		t.Errorf("terminal type = %q, want complete", terminal.Type)
	}
	if terminal.Completion == nil || terminal.ThreadID == "" {
		t.Fatalf("terminal frame lacks completion fields: %s", frames[len(frames)-2])
	}

	// The completion is inlined in the frame, not nested in a sub-object.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(frames[len(frames)-2]), &raw); err != nil {
		t.Fatalf("raw terminal frame: %v", err)
	}
	if _, ok := raw["thread_id"]; !ok {
		t.Errorf("terminal frame missing top-level thread_id: %s", frames[len(frames)-2])
	}
	if _, ok := raw["complete"]; ok {
		t.Errorf("terminal frame nests completion under \"complete\": %s", frames[len(frames)-2])
	}
	for _, frame := range frames[:len(frames)-2] {
		var e events.Event
		if err := json.Unmarshal([]byte(frame), &e); err != nil {
			t.Fatalf("frame %q: %v", frame, err)
		}
		if e.Type != events.TypeReasoning {
			t.Errorf("pre-terminal frame type = %q", e.Type)
		}
	}
}

func TestChatStream_PreStreamErrorBecomesEvent(t *testing.T) {
	env := newTestEnv(t, defaultProvider())

	w := doJSON(t, env.srv, "POST", "/api/chat/stream", conversation.Request{Query: ""})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, `"type":"error"`) {
		t.Errorf("body lacks error event: %s", body)
	}
	if !strings.Contains(body, "data: [DONE]") {
		t.Errorf("body lacks [DONE] sentinel: %s", body)
	}
}

func TestGardenerTasksAndAction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, defaultProvider())

	outcome, err := env.queue.Submit(ctx, gardener.EntityCandidate{
		Name: "payment-service", Type: "Service", SourceDoc: "runbooks/payment.md",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	w := doJSON(t, env.srv, "GET", "/api/gardener/tasks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tasks status = %d", w.Code)
	}
	var tasks []gardener.Task
	if err := json.Unmarshal(w.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != outcome.Task.ID {
		t.Fatalf("tasks = %+v", tasks)
	}

	w = doJSON(t, env.srv, "POST", "/api/gardener/action", gardenerActionRequest{
		TaskID: outcome.Task.ID, Action: "approve",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", w.Code, w.Body.String())
	}

	// Approving twice is a no-op that still succeeds.
	w = doJSON(t, env.srv, "POST", "/api/gardener/action", gardenerActionRequest{
		TaskID: outcome.Task.ID, Action: "approve",
	})
	if w.Code != http.StatusOK {
		t.Errorf("second approve status = %d, want 200", w.Code)
	}
	var resolved gardener.Task
	if err := json.Unmarshal(w.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("unmarshal resolved task: %v", err)
	}
	if resolved.Status != gardener.StatusApproved {
		t.Errorf("resolved status = %q, want approved", resolved.Status)
	}
	if counts, _ := env.graph.Counts(ctx); counts.Entities != 1 {
		t.Errorf("entity count = %d, want exactly 1 after double approve", counts.Entities)
	}

	w = doJSON(t, env.srv, "POST", "/api/gardener/action", gardenerActionRequest{
		TaskID: "missing", Action: "reject",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing task status = %d, want 404", w.Code)
	}

	w = doJSON(t, env.srv, "POST", "/api/gardener/action", gardenerActionRequest{
		TaskID: outcome.Task.ID, Action: "defer",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", w.Code)
	}
}

func TestGardenerMergeAction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, defaultProvider())

	if err := env.graph.Upsert(ctx, &graphstore.Entity{
		Name:       "redis-cluster",
		Type:       "Component",
		Properties: map[string]string{"tier": "critical"},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	outcome, err := env.queue.Submit(ctx, gardener.EntityCandidate{
		Name: "Redis Cluster Bravo", Type: "Component",
		Properties: map[string]string{"tier": "critical"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	w := doJSON(t, env.srv, "POST", "/api/gardener/action", gardenerActionRequest{
		TaskID: outcome.Task.ID,
		Action: "merge",
		ModifiedEntity: &gardener.EntityCandidate{
			Name: "Redis Cluster Bravo", Type: "Component",
			Properties: map[string]string{"tier": "gold"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("merge status = %d, body %s", w.Code, w.Body.String())
	}

	merged, err := env.graph.Get(ctx, outcome.Task.ExistingEntityID)
	if err != nil || merged == nil {
		t.Fatalf("merge target missing: %v", err)
	}
	if merged.Properties["tier"] != "gold" {
		t.Errorf("merge dropped reviewer edit: %+v", merged.Properties)
	}
	if counts, _ := env.graph.Counts(ctx); counts.Entities != 1 {
		t.Errorf("entity count = %d, want 1 after merge", counts.Entities)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, defaultProvider())

	if err := env.graph.Upsert(ctx, &graphstore.Entity{Name: "redis", Type: "Component"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := env.queue.Submit(ctx, gardener.EntityCandidate{Name: "orders-api", Type: "Service"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	env.vector.AddDocuments(ctx, []vectordb.Document{{ID: "d1", Content: "doc"}})

	w := doJSON(t, env.srv, "GET", "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var stats statsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.IndexedDocuments != 1 {
		t.Errorf("indexed_documents = %d, want 1", stats.IndexedDocuments)
	}
	if stats.KnowledgeNodes != 1 {
		t.Errorf("knowledge_nodes = %d, want 1", stats.KnowledgeNodes)
	}
	if stats.PendingTasks != 1 {
		t.Errorf("pending_tasks = %d, want 1", stats.PendingTasks)
	}
}

func TestHealth_ReportsBackends(t *testing.T) {
	env := newTestEnv(t, defaultProvider())

	w := doJSON(t, env.srv, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Backends["database"].Status != "ok" {
		t.Errorf("database = %+v", resp.Backends["database"])
	}
	if resp.Backends["graph"].Status != "ok" {
		t.Errorf("graph = %+v", resp.Backends["graph"])
	}
	if resp.Backends["llm"].Status != "ok" {
		t.Errorf("llm = %+v", resp.Backends["llm"])
	}
	// The noop live store is configured off, not broken.
	if resp.Backends["live"].Status != "disabled" {
		t.Errorf("live = %+v", resp.Backends["live"])
	}
}

func TestNodesEndpoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, defaultProvider())

	svc := &graphstore.Entity{Name: "payment-service", Type: "Service"}
	redis := &graphstore.Entity{Name: "redis-cluster", Type: "Component"}
	if err := env.graph.Upsert(ctx, svc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := env.graph.Upsert(ctx, redis); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := env.graph.AddRelation(ctx, svc.ID, redis.ID, "depends_on"); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	w := doJSON(t, env.srv, "GET", "/api/nodes?type=Service", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var entities []graphstore.Entity
	if err := json.Unmarshal(w.Body.Bytes(), &entities); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "payment-service" {
		t.Fatalf("list = %+v", entities)
	}

	w = doJSON(t, env.srv, "GET", "/api/nodes/search?q=redis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &entities); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "redis-cluster" {
		t.Fatalf("search = %+v", entities)
	}

	w = doJSON(t, env.srv, "GET", "/api/nodes/"+svc.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var view nodeView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Entity.ID != svc.ID || len(view.Neighbors) != 1 {
		t.Fatalf("node view = %+v", view)
	}

	w = doJSON(t, env.srv, "PUT", "/api/nodes/"+svc.ID, updateNodeRequest{
		Properties: map[string]string{"tier": "critical"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	updated, err := env.graph.Get(ctx, svc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Properties["tier"] != "critical" {
		t.Errorf("properties not updated: %+v", updated.Properties)
	}

	w = doJSON(t, env.srv, "GET", "/api/nodes/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing node status = %d, want 404", w.Code)
	}
}

func TestDocumentsEndpoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, defaultProvider())

	env.vector.AddDocuments(ctx, []vectordb.Document{{
		ID:      "doc-1",
		Content: "Drain the connection pool and restart.",
		Metadata: vectordb.DocumentMetadata{
			Title:  "Pool runbook",
			Type:   vectordb.DocTypeRunbook,
			Source: "runbooks/pool.md",
		},
	}})

	w := doJSON(t, env.srv, "GET", "/api/documents?source=runbooks%2Fpool.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var docs []documentView
	if err := json.Unmarshal(w.Body.Bytes(), &docs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" {
		t.Fatalf("list = %+v", docs)
	}

	w = doJSON(t, env.srv, "GET", "/api/documents?source=", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing source status = %d, want 400", w.Code)
	}

	w = doJSON(t, env.srv, "GET", "/api/documents/search?q=connection+pool&type=runbook", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &docs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(docs) != 1 || docs[0].Similarity == 0 {
		t.Fatalf("search = %+v", docs)
	}

	w = doJSON(t, env.srv, "PUT", "/api/documents/doc-1", updateDocumentRequest{
		Content: "Drain the pool, then restart workers one at a time.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	var updated documentView
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(updated.Content, "one at a time") {
		t.Errorf("content not updated: %q", updated.Content)
	}

	w = doJSON(t, env.srv, "GET", "/api/documents/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing doc status = %d, want 404", w.Code)
	}
}

func TestIngestUpload(t *testing.T) {
	env := newTestEnv(t, &fnProvider{extraction: `{"entities": []}`, answer: ""})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "payment-runbook.md")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte("# Payment Runbook\n\nRestart the service.\n"))
	mw.WriteField("domain", "payments")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var result ingest.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Files != 1 || result.VectorsCreated == 0 {
		t.Errorf("result = %+v", result)
	}
	if result.Domain != "payments" {
		t.Errorf("domain = %q, want payments", result.Domain)
	}
	if env.vector.Count() == 0 {
		t.Error("nothing indexed")
	}
}

func TestAuditEndpoint(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, defaultProvider())

	if err := env.audit.Log(ctx, audit.Entry{Action: "task_created", Subject: "t1"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := env.audit.Log(ctx, audit.Entry{Action: "entity_merged", Subject: "e1"}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	w := doJSON(t, env.srv, "GET", "/api/audit?action=task_created", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var entries []audit.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "task_created" {
		t.Fatalf("entries = %+v", entries)
	}
}
