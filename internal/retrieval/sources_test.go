package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hragd/hragd/internal/db"
	"github.com/hragd/hragd/internal/graphstore"
	"github.com/hragd/hragd/internal/livedata"
	"github.com/hragd/hragd/internal/slots"
)

func TestGraphQuerier_Query(t *testing.T) {
	ctx := context.Background()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	store := graphstore.NewSQLiteStore(d)
	svc := &graphstore.Entity{Name: "payment-service", Type: "Service", Properties: map[string]string{"owner": "payments"}}
	database := &graphstore.Entity{Name: "payment-db", Type: "Component"}
	if err := store.Upsert(ctx, svc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, database); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.AddRelation(ctx, svc.ID, database.ID, "depends_on"); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	q := NewGraphQuerier(store)
	results, err := q.Query(ctx, Query{Text: "what about payments", Slots: slots.SlotSet{"service": "Payment Service"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Query returned no results")
	}

	var exact *Result
	for i := range results {
		if results[i].Title == "payment-service" {
			exact = &results[i]
		}
	}
	if exact == nil {
		t.Fatalf("payment-service not in results: %+v", results)
	}
	if exact.Score != 1.0 {
		t.Errorf("exact match score = %v, want 1.0", exact.Score)
	}
	if !strings.Contains(exact.Content, "depends_on payment-db") {
		t.Errorf("content missing neighborhood: %q", exact.Content)
	}
	if exact.Metadata["entity_id"] != svc.ID {
		t.Errorf("entity_id metadata = %q, want %q", exact.Metadata["entity_id"], svc.ID)
	}
}

type fixedLiveStore struct {
	records []livedata.Record
	got     livedata.Query
}

func (s *fixedLiveStore) Query(_ context.Context, q livedata.Query) ([]livedata.Record, error) {
	s.got = q
	return s.records, nil
}
func (s *fixedLiveStore) Healthy(context.Context) bool { return true }
func (s *fixedLiveStore) Name() string                 { return "fixed" }

func TestLiveQuerier_Query(t *testing.T) {
	now := time.Now().UTC()
	store := &fixedLiveStore{records: []livedata.Record{
		{Timestamp: now, Service: "payment-service", Level: "error", Message: "pool exhausted"},
		{Timestamp: now, Service: "payment-service", Level: "info", Message: "retrying"},
	}}

	q := NewLiveQuerier(store)
	results, err := q.Query(context.Background(), Query{
		Intent: "troubleshoot",
		Slots:  slots.SlotSet{"service": "payment-service", "time_range": "last hour"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if store.got.Service != "payment-service" || store.got.TimeRange != "last hour" || store.got.Intent != "troubleshoot" {
		t.Errorf("backend query = %+v", store.got)
	}
	if results[0].Score != 0.75 {
		t.Errorf("error record score = %v, want 0.75", results[0].Score)
	}
	if results[1].Score != 0.6 {
		t.Errorf("info record score = %v, want 0.6", results[1].Score)
	}
}
