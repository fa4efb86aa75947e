package graphstore

import (
	"context"
	"testing"

	"github.com/hragd/hragd/internal/db"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewSQLiteStore(d)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Payment Service", "payment_service"},
		{"payment-service", "payment_service"},
		{"  Payment.Service  ", "payment_service"},
		{"Redis - Cluster", "redis_cluster"},
		{"auth_gateway", "auth_gateway"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	e := &Entity{
		Name: "Payment Service",
		Type: "Service",
		Properties: map[string]string{
			"owner": "payments-team",
		},
	}
	if err := store.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if e.ID == "" {
		t.Fatal("Upsert did not assign an ID")
	}

	got, err := store.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing entity")
	}
	if got.Name != "Payment Service" {
		t.Errorf("Name = %q, want %q", got.Name, "Payment Service")
	}
	if got.Properties["owner"] != "payments-team" {
		t.Errorf("Properties[owner] = %q, want payments-team", got.Properties["owner"])
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Error("Get on missing id should return nil")
	}
}

func TestSQLiteStore_UpsertMergesByNormalizedName(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	first := &Entity{
		Name:       "payment-service",
		Type:       "Service",
		Properties: map[string]string{"owner": "payments-team"},
	}
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert first: %v", err)
	}

	// Same node spelled differently: must merge, not duplicate.
	second := &Entity{
		Name:       "Payment Service",
		Type:       "Service",
		Properties: map[string]string{"tier": "critical"},
	}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert second: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("merge assigned new id %q, want %q", second.ID, first.ID)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Entities != 1 {
		t.Errorf("entity count = %d, want 1", counts.Entities)
	}

	merged, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get merged: %v", err)
	}
	if merged.Properties["owner"] != "payments-team" {
		t.Errorf("merge lost existing property owner")
	}
	if merged.Properties["tier"] != "critical" {
		t.Errorf("merge did not add new property tier")
	}
}

func TestSQLiteStore_GetByName(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	e := &Entity{Name: "Auth Gateway", Type: "Service"}
	if err := store.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.GetByName(ctx, "auth-gateway", "Service")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got == nil || got.ID != e.ID {
		t.Errorf("GetByName with type: got %+v, want id %s", got, e.ID)
	}

	anyType, err := store.GetByName(ctx, "AUTH GATEWAY", "")
	if err != nil {
		t.Fatalf("GetByName any type: %v", err)
	}
	if anyType == nil || anyType.ID != e.ID {
		t.Errorf("GetByName without type: got %+v, want id %s", anyType, e.ID)
	}

	missing, err := store.GetByName(ctx, "auth gateway", "Incident")
	if err != nil {
		t.Fatalf("GetByName wrong type: %v", err)
	}
	if missing != nil {
		t.Error("GetByName with non-matching type should return nil")
	}
}

func TestSQLiteStore_SearchByName(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	for _, name := range []string{"payment-service", "payment-db", "auth-gateway"} {
		if err := store.Upsert(ctx, &Entity{Name: name, Type: "Service"}); err != nil {
			t.Fatalf("Upsert %s: %v", name, err)
		}
	}

	results, err := store.SearchByName(ctx, "payment", 10)
	if err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("SearchByName returned %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Name == "auth-gateway" {
			t.Error("SearchByName returned non-matching entity")
		}
	}
}

func TestSQLiteStore_RelationsAndNeighborhood(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	svc := &Entity{Name: "payment-service", Type: "Service"}
	database := &Entity{Name: "payment-db", Type: "Component"}
	incident := &Entity{Name: "INC-204", Type: "Incident"}
	for _, e := range []*Entity{svc, database, incident} {
		if err := store.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert %s: %v", e.Name, err)
		}
	}

	if err := store.AddRelation(ctx, svc.ID, database.ID, "depends_on"); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}
	if err := store.AddRelation(ctx, incident.ID, svc.ID, "affected"); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}
	// Duplicate edge is a no-op.
	if err := store.AddRelation(ctx, svc.ID, database.ID, "depends_on"); err != nil {
		t.Fatalf("AddRelation duplicate: %v", err)
	}

	neighbors, err := store.Neighborhood(ctx, svc.ID)
	if err != nil {
		t.Fatalf("Neighborhood: %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("Neighborhood returned %d neighbors, want 2", len(neighbors))
	}

	byName := map[string]Neighbor{}
	for _, n := range neighbors {
		byName[n.Entity.Name] = n
	}
	if n, ok := byName["payment-db"]; !ok || !n.Outgoing || n.Relation != "depends_on" {
		t.Errorf("payment-db neighbor = %+v, want outgoing depends_on", n)
	}
	if n, ok := byName["INC-204"]; !ok || n.Outgoing || n.Relation != "affected" {
		t.Errorf("INC-204 neighbor = %+v, want incoming affected", n)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Relations != 2 {
		t.Errorf("relation count = %d, want 2", counts.Relations)
	}
}

func TestSQLiteStore_ListAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	e := &Entity{Name: "redis-cluster", Type: "Component"}
	if err := store.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, &Entity{Name: "checkout-flow", Type: "Service"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	components, err := store.List(ctx, "Component", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(components) != 1 || components[0].Name != "redis-cluster" {
		t.Errorf("List(Component) = %+v, want single redis-cluster", components)
	}

	all, err := store.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List all returned %d, want 2", len(all))
	}

	e.Properties = map[string]string{"shards": "3"}
	if err := store.Update(ctx, e); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := store.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.Properties["shards"] != "3" {
		t.Errorf("Properties[shards] = %q, want 3", got.Properties["shards"])
	}

	if err := store.Update(ctx, &Entity{ID: "nope", Name: "x", Type: "Service"}); err == nil {
		t.Error("Update on missing entity should return error")
	}
}
