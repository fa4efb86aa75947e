// Package gardener guards the knowledge graph. Every entity extracted from
// ingested documents passes through it: obvious duplicates merge silently,
// likely conflicts queue for human review, and everything else waits for
// approval as a new entity. Resolving a task twice is a no-op by design of
// the claim query, so concurrent reviewers cannot double-apply a decision.
package gardener

import (
	"errors"
	"time"
)

// Classification says why a task exists.
type Classification string

const (
	// ClassNew is a previously unseen entity awaiting approval.
	ClassNew Classification = "new"
	// ClassConflict is a candidate resembling an existing entity.
	ClassConflict Classification = "conflict"
)

// Status is the review lifecycle of a task.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// CandidateRelation is a relation the candidate claims to another entity.
type CandidateRelation struct {
	Target string `json:"target"`
	Type   string `json:"type"`
}

// EntityCandidate is an entity proposed by extraction, not yet in the graph.
type EntityCandidate struct {
	Name       string              `json:"name"`
	Type       string              `json:"type"`
	SourceDoc  string              `json:"source_doc,omitempty"`
	Properties map[string]string   `json:"properties,omitempty"`
	Relations  []CandidateRelation `json:"relations,omitempty"`
}

// Task is one pending or resolved review item.
type Task struct {
	ID               string          `json:"id"`
	Classification   Classification  `json:"classification"`
	Status           Status          `json:"status"`
	Candidate        EntityCandidate `json:"candidate"`
	ExistingEntityID string          `json:"existing_entity_id,omitempty"`
	Similarity       float64         `json:"similarity"`
	SourceDoc        string          `json:"source_doc,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
}

// SubmitOutcome reports what happened to a submitted candidate.
type SubmitOutcome struct {
	Task       *Task  `json:"task,omitempty"`
	AutoMerged bool   `json:"auto_merged"`
	EntityID   string `json:"entity_id,omitempty"`
}

var (
	// ErrNotFound is returned when no task has the given id.
	ErrNotFound = errors.New("gardener task not found")
	// ErrNoMergeTarget is returned when a merge is requested for a task
	// that does not reference an existing entity.
	ErrNoMergeTarget = errors.New("gardener task has no merge target")
)
