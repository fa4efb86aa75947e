package vectordb

import "context"

// VectorStore defines the interface for storing and searching documents by embeddings.
type VectorStore interface {
	// AddDocuments adds or updates documents in the store. Updated content
	// is re-embedded because chromem derives the vector from the content.
	AddDocuments(ctx context.Context, docs []Document) error

	// Search performs a semantic search using the query text.
	Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error)

	// Get retrieves a single document by id.
	Get(ctx context.Context, id string) (*Document, error)

	// GetBySource retrieves all documents associated with the given source.
	GetBySource(ctx context.Context, source string) ([]Document, error)

	// Update replaces the content of an existing document, re-embedding it.
	Update(ctx context.Context, id string, content string) error

	// DeleteBySource removes all documents associated with the given source.
	DeleteBySource(ctx context.Context, source string) error

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of documents in the store.
	Count() int
}
