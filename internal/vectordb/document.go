package vectordb

import "time"

// DocumentType categorizes the kind of document stored in the vector DB.
type DocumentType string

const (
	DocTypeDocument  DocumentType = "document"
	DocTypeRunbook   DocumentType = "runbook"
	DocTypePostMortem DocumentType = "post_mortem"
	DocTypeCaseStudy DocumentType = "case_study"
)

// Document represents a chunk of knowledge content to be stored and searched.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata holds structured information about a document chunk.
type DocumentMetadata struct {
	Title       string
	Domain      string
	Type        DocumentType
	Source      string // originating file or ingestion source
	ChunkIndex  int
	LastUpdated time.Time
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// SearchFilter allows narrowing search results by metadata fields.
type SearchFilter struct {
	Domain *string
	Type   *DocumentType
	Source *string
}
