// Package ingest turns operational documents into retrievable knowledge:
// markdown files are chunked into the vector index while extracted entity
// candidates flow through the gardener into the knowledge graph.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/hragd/hragd/internal/audit"
	"github.com/hragd/hragd/internal/config"
	"github.com/hragd/hragd/internal/gardener"
	"github.com/hragd/hragd/internal/llm"
	"github.com/hragd/hragd/internal/progress"
	"github.com/hragd/hragd/internal/vectordb"
)

// Result summarizes one ingestion run. A run with Errors is partial, not
// failed: every document that could be processed was.
type Result struct {
	Domain            string   `json:"domain"`
	Files             int      `json:"files"`
	VectorsCreated    int      `json:"vectors_created"`
	EntitiesExtracted int      `json:"entities_extracted"`
	TasksCreated      int      `json:"tasks_created"`
	AutoMerged        int      `json:"auto_merged"`
	TaskIDs           []string `json:"task_ids,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

// Pipeline wires chunking, entity extraction and gardener submission.
type Pipeline struct {
	vector   vectordb.VectorStore
	queue    *gardener.Queue
	provider llm.Provider
	model    string
	audit    *audit.Store
	cfg      config.IngestConfig
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(vector vectordb.VectorStore, queue *gardener.Queue, provider llm.Provider, model string, auditStore *audit.Store, cfg config.IngestConfig) *Pipeline {
	return &Pipeline{
		vector:   vector,
		queue:    queue,
		provider: provider,
		model:    model,
		audit:    auditStore,
		cfg:      cfg,
	}
}

// IngestDir processes every matching document under dir.
func (p *Pipeline) IngestDir(ctx context.Context, dir, domainName string, reporter progress.Reporter) (*Result, error) {
	paths, err := p.collectFiles(dir)
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = progress.NopReporter{}
	}

	result := &Result{Domain: domainName}
	reporter.Start(len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		reporter.Update(i+1, filepath.Base(path))

		data, err := os.ReadFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		p.ingestDocument(ctx, rel, data, domainName, result)
	}
	reporter.Finish()

	p.logAudit(ctx, domainName, result)
	return result, nil
}

// IngestBytes processes one in-memory document, e.g. an HTTP upload.
func (p *Pipeline) IngestBytes(ctx context.Context, name string, data []byte, domainName string) (*Result, error) {
	result := &Result{Domain: domainName, Files: 0}
	p.ingestDocument(ctx, name, data, domainName, result)
	p.logAudit(ctx, domainName, result)
	return result, nil
}

func (p *Pipeline) ingestDocument(ctx context.Context, sourceDoc string, data []byte, domainName string, result *Result) {
	result.Files++

	title := strings.TrimSuffix(filepath.Base(sourceDoc), filepath.Ext(sourceDoc))
	chunks := chunkMarkdown(data, title, p.cfg.MaxChunkSize)

	// Re-ingesting a document replaces its chunks instead of stacking
	// stale copies.
	if err := p.vector.DeleteBySource(ctx, sourceDoc); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: clearing old chunks: %v", sourceDoc, err))
	}

	docs := make([]vectordb.Document, len(chunks))
	now := time.Now().UTC()
	for i, chunk := range chunks {
		docs[i] = vectordb.Document{
			ID:      uuid.NewString(),
			Content: chunk.Content,
			Metadata: vectordb.DocumentMetadata{
				Title:       chunk.Title,
				Domain:      domainName,
				Type:        classifyDocument(sourceDoc),
				Source:      sourceDoc,
				ChunkIndex:  i,
				LastUpdated: now,
			},
		}
	}
	if err := p.vector.AddDocuments(ctx, docs); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: indexing: %v", sourceDoc, err))
	} else {
		result.VectorsCreated += len(docs)
	}

	candidates, err := extractEntities(ctx, p.provider, p.model, string(data), sourceDoc)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sourceDoc, err))
		return
	}
	result.EntitiesExtracted += len(candidates)

	for _, candidate := range candidates {
		outcome, err := p.queue.Submit(ctx, candidate)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: submitting %q: %v", sourceDoc, candidate.Name, err))
			continue
		}
		if outcome.AutoMerged {
			result.AutoMerged++
			continue
		}
		result.TasksCreated++
		result.TaskIDs = append(result.TaskIDs, outcome.Task.ID)
	}
}

// collectFiles walks dir applying the include/exclude globs.
func (p *Pipeline) collectFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if !matchesAny(rel, p.cfg.Include) || matchesAny(rel, p.cfg.Exclude) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return paths, nil
}

// matchesAny checks rel against glob patterns, with ** support.
func matchesAny(rel string, patterns []string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.PathMatch(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.PathMatch(pattern, filepath.Base(normalized)); err == nil && matched {
			return true
		}
	}
	return false
}

// classifyDocument guesses the document type from its path.
func classifyDocument(sourceDoc string) vectordb.DocumentType {
	lower := strings.ToLower(sourceDoc)
	switch {
	case strings.Contains(lower, "runbook"):
		return vectordb.DocTypeRunbook
	case strings.Contains(lower, "post-mortem"), strings.Contains(lower, "postmortem"), strings.Contains(lower, "post_mortem"):
		return vectordb.DocTypePostMortem
	case strings.Contains(lower, "case-stud"), strings.Contains(lower, "case_stud"):
		return vectordb.DocTypeCaseStudy
	default:
		return vectordb.DocTypeDocument
	}
}

func (p *Pipeline) logAudit(ctx context.Context, domainName string, result *Result) {
	if p.audit == nil {
		return
	}
	entry := audit.Entry{
		Action:  "ingest_completed",
		Subject: domainName,
		Detail: fmt.Sprintf("%d files, %d vectors, %d entities, %d tasks, %d auto-merged, %d errors",
			result.Files, result.VectorsCreated, result.EntitiesExtracted,
			result.TasksCreated, result.AutoMerged, len(result.Errors)),
	}
	if err := p.audit.Log(ctx, entry); err != nil {
		log.Printf("ingest: audit log failed: %v", err)
	}
}
