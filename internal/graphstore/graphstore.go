// Package graphstore persists the knowledge graph of services, components
// and failure modes that retrieval consults for structural lookups.
package graphstore

import (
	"context"
	"strings"
	"time"
)

// Entity is a node in the knowledge graph.
type Entity struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"` // Service, Component, Incident, FailureMode, ...
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Relation is a typed directed edge between two entities.
type Relation struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Type      string    `json:"type"` // depends_on, causes, resolved_by, ...
	CreatedAt time.Time `json:"created_at"`
}

// Neighbor is an entity reached by traversing one relation from a start node.
type Neighbor struct {
	Entity   Entity `json:"entity"`
	Relation string `json:"relation"`
	Outgoing bool   `json:"outgoing"`
}

// Counts summarizes the graph for the stats endpoint.
type Counts struct {
	Entities  int `json:"entities"`
	Relations int `json:"relations"`
}

// Store provides access to the knowledge graph.
type Store interface {
	Upsert(ctx context.Context, e *Entity) error
	Get(ctx context.Context, id string) (*Entity, error)
	GetByName(ctx context.Context, name, entityType string) (*Entity, error)
	SearchByName(ctx context.Context, term string, limit int) ([]Entity, error)
	Neighborhood(ctx context.Context, id string) ([]Neighbor, error)
	AddRelation(ctx context.Context, sourceID, targetID, relType string) error
	List(ctx context.Context, entityType string, limit int) ([]Entity, error)
	Update(ctx context.Context, e *Entity) error
	Counts(ctx context.Context) (Counts, error)
}

// Normalize lowercases a name and collapses separators so that
// "Payment Service", "payment-service" and "payment_service" all
// resolve to the same graph node.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return '_'
		}
		return r
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}
