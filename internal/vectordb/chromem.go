package vectordb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hragd/hragd/internal/embeddings"
)

const collectionName = "knowledge"

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataToMap(doc.ID, doc.Metadata),
		}
	}

	return s.collection.AddDocuments(ctx, chromDocs, 1)
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	if count := s.collection.Count(); limit > count && count > 0 {
		limit = count
	} else if count == 0 {
		return nil, nil
	}

	where := buildWhereClause(filter)

	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}

	return searchResults, nil
}

func (s *ChromemStore) Get(ctx context.Context, id string) (*Document, error) {
	if s.collection.Count() == 0 {
		return nil, nil
	}

	// The id is mirrored into metadata so it can serve as a where clause;
	// the id doubles as query text because chromem requires one.
	results, err := s.collection.Query(ctx, id, 1, map[string]string{"id": id}, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query by id: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	return &Document{
		ID:       results[0].ID,
		Content:  results[0].Content,
		Metadata: mapToMetadata(results[0].Metadata),
	}, nil
}

func (s *ChromemStore) GetBySource(ctx context.Context, source string) ([]Document, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	where := map[string]string{"source": source}

	results, err := s.collection.Query(ctx, source, count, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query by source: %w", err)
	}

	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = Document{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: mapToMetadata(r.Metadata),
		}
	}

	return docs, nil
}

func (s *ChromemStore) Update(ctx context.Context, id string, content string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("document %q not found", id)
	}

	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem delete for update: %w", err)
	}

	md := existing.Metadata
	md.LastUpdated = time.Now().UTC()

	// Re-adding with changed content forces a fresh embedding.
	return s.AddDocuments(ctx, []Document{{ID: id, Content: content, Metadata: md}})
}

func (s *ChromemStore) DeleteBySource(ctx context.Context, source string) error {
	where := map[string]string{"source": source}
	return s.collection.Delete(ctx, where, nil)
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/chromem.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	err := s.db.ImportFromFile(dir+"/chromem.gob.gz", "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// metadataToMap converts DocumentMetadata to a flat map[string]string for chromem.
func metadataToMap(id string, m DocumentMetadata) map[string]string {
	return map[string]string{
		"id":           id,
		"title":        m.Title,
		"domain":       m.Domain,
		"type":         string(m.Type),
		"source":       m.Source,
		"chunk_index":  strconv.Itoa(m.ChunkIndex),
		"last_updated": m.LastUpdated.Format(time.RFC3339),
	}
}

// mapToMetadata converts a flat map[string]string back to DocumentMetadata.
func mapToMetadata(m map[string]string) DocumentMetadata {
	chunkIndex, _ := strconv.Atoi(m["chunk_index"])
	lastUpdated, _ := time.Parse(time.RFC3339, m["last_updated"])

	return DocumentMetadata{
		Title:       m["title"],
		Domain:      m["domain"],
		Type:        DocumentType(m["type"]),
		Source:      m["source"],
		ChunkIndex:  chunkIndex,
		LastUpdated: lastUpdated,
	}
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.Domain != nil {
		where["domain"] = *filter.Domain
	}
	if filter.Type != nil {
		where["type"] = string(*filter.Type)
	}
	if filter.Source != nil {
		where["source"] = *filter.Source
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
