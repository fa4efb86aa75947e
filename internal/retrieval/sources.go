package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/hragd/hragd/internal/graphstore"
	"github.com/hragd/hragd/internal/livedata"
	"github.com/hragd/hragd/internal/vectordb"
)

// GraphQuerier answers structural questions from the knowledge graph.
type GraphQuerier struct {
	store graphstore.Store
}

func NewGraphQuerier(store graphstore.Store) *GraphQuerier {
	return &GraphQuerier{store: store}
}

func (g *GraphQuerier) Source() Source { return SourceGraph }

// Query looks up the service slot (falling back to scanning the query text)
// and returns the matching entity with its one-hop neighborhood.
func (g *GraphQuerier) Query(ctx context.Context, q Query) ([]Result, error) {
	term := q.Slots["service"]
	if term == "" {
		term = q.Text
	}

	entities, err := g.store.SearchByName(ctx, term, 3)
	if err != nil {
		return nil, fmt.Errorf("graph search: %w", err)
	}

	var results []Result
	for _, e := range entities {
		score := 0.8
		if graphstore.Normalize(e.Name) == graphstore.Normalize(term) {
			score = 1.0
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s (%s)", e.Name, e.Type)
		for k, v := range e.Properties {
			fmt.Fprintf(&b, "\n%s: %s", k, v)
		}

		neighbors, err := g.store.Neighborhood(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("graph neighborhood: %w", err)
		}
		for _, n := range neighbors {
			if n.Outgoing {
				fmt.Fprintf(&b, "\n-> %s %s (%s)", n.Relation, n.Entity.Name, n.Entity.Type)
			} else {
				fmt.Fprintf(&b, "\n<- %s %s (%s)", n.Relation, n.Entity.Name, n.Entity.Type)
			}
		}

		results = append(results, Result{
			Source:  SourceGraph,
			Title:   e.Name,
			Content: b.String(),
			Score:   score,
			Metadata: map[string]string{
				"entity_id":   e.ID,
				"entity_type": e.Type,
			},
		})
	}
	return results, nil
}

// VectorQuerier answers semantic questions from the document index.
type VectorQuerier struct {
	store vectordb.VectorStore
	limit int
}

func NewVectorQuerier(store vectordb.VectorStore, limit int) *VectorQuerier {
	if limit <= 0 {
		limit = 5
	}
	return &VectorQuerier{store: store, limit: limit}
}

func (v *VectorQuerier) Source() Source { return SourceVector }

func (v *VectorQuerier) Query(ctx context.Context, q Query) ([]Result, error) {
	hits, err := v.store.Search(ctx, q.Text, v.limit, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, len(hits))
	for i, hit := range hits {
		results[i] = Result{
			Source:  SourceVector,
			Title:   hit.Document.Metadata.Title,
			Content: hit.Document.Content,
			Score:   float64(hit.Similarity),
			Metadata: map[string]string{
				"doc_id":   hit.Document.ID,
				"doc_type": string(hit.Document.Metadata.Type),
				"doc_src":  hit.Document.Metadata.Source,
			},
		}
	}
	return results, nil
}

// LiveQuerier pulls current telemetry for the service under discussion.
// Telemetry has no similarity score of its own, so records carry a flat
// confidence, raised slightly when the backend reports an error condition.
type LiveQuerier struct {
	store livedata.Store
}

func NewLiveQuerier(store livedata.Store) *LiveQuerier {
	return &LiveQuerier{store: store}
}

func (l *LiveQuerier) Source() Source { return SourceLive }

func (l *LiveQuerier) Query(ctx context.Context, q Query) ([]Result, error) {
	service := q.Slots["service"]
	if service == "" {
		// Nothing concrete to look up; an empty answer is not a failure.
		return nil, nil
	}

	records, err := l.store.Query(ctx, livedata.Query{
		Service:   service,
		TimeRange: q.Slots["time_range"],
		Intent:    q.Intent,
	})
	if err != nil {
		return nil, fmt.Errorf("live query: %w", err)
	}

	results := make([]Result, len(records))
	for i, rec := range records {
		score := 0.6
		if rec.Level == "error" || rec.Level == "critical" {
			score = 0.75
		}
		results[i] = Result{
			Source:  SourceLive,
			Title:   fmt.Sprintf("%s [%s]", rec.Service, rec.Level),
			Content: rec.Message,
			Score:   score,
			Metadata: map[string]string{
				"level":     rec.Level,
				"timestamp": rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			},
		}
	}
	return results, nil
}
