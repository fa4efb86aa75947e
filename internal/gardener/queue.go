package gardener

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hragd/hragd/internal/audit"
	"github.com/hragd/hragd/internal/config"
	"github.com/hragd/hragd/internal/db"
	"github.com/hragd/hragd/internal/embeddings"
	"github.com/hragd/hragd/internal/graphstore"
)

// Queue classifies entity candidates and manages the review backlog.
type Queue struct {
	db       *db.DB
	graph    graphstore.Store
	embedder embeddings.Embedder // optional; nil degrades to lexical scoring
	audit    *audit.Store

	autoMergeThreshold float64
	reviewThreshold    float64
}

// NewQueue creates a gardener queue.
func NewQueue(d *db.DB, graph graphstore.Store, embedder embeddings.Embedder, auditStore *audit.Store, cfg config.GardenerConfig) *Queue {
	return &Queue{
		db:                 d,
		graph:              graph,
		embedder:           embedder,
		audit:              auditStore,
		autoMergeThreshold: cfg.AutoMergeThreshold,
		reviewThreshold:    cfg.ReviewThreshold,
	}
}

// Submit classifies one candidate. Near-certain duplicates merge into the
// graph immediately; plausible conflicts and unseen entities become pending
// tasks an operator must resolve.
func (q *Queue) Submit(ctx context.Context, c EntityCandidate) (*SubmitOutcome, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("candidate has no name")
	}
	if c.Type == "" {
		c.Type = "Entity"
	}

	// A normalized name and type collision is the same node, whatever the
	// blended score would say.
	best, err := q.graph.GetByName(ctx, c.Name, c.Type)
	if err != nil {
		return nil, fmt.Errorf("looking up candidate by name: %w", err)
	}
	score := 1.0
	if best == nil {
		best, score, err = q.closestEntity(ctx, c)
		if err != nil {
			return nil, err
		}
	}

	if best != nil && score >= q.autoMergeThreshold {
		entityID, err := q.merge(ctx, c, best)
		if err != nil {
			return nil, err
		}
		q.logAudit(ctx, audit.Entry{
			Action:  "entity_merged",
			Subject: entityID,
			Detail:  fmt.Sprintf("auto-merged %q (similarity %.2f) from %s", c.Name, score, c.SourceDoc),
		})
		return &SubmitOutcome{AutoMerged: true, EntityID: entityID}, nil
	}

	task := &Task{
		ID:             uuid.NewString(),
		Classification: ClassNew,
		Status:         StatusPending,
		Candidate:      c,
		SourceDoc:      c.SourceDoc,
		CreatedAt:      time.Now().UTC(),
	}
	if best != nil && score >= q.reviewThreshold {
		task.Classification = ClassConflict
		task.ExistingEntityID = best.ID
		task.Similarity = score
	}

	candidateJSON, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling candidate: %w", err)
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO gardener_tasks (id, classification, status, candidate, existing_entity_id, similarity, source_doc, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Classification, task.Status, string(candidateJSON),
		nullable(task.ExistingEntityID), task.Similarity, task.SourceDoc, task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting gardener task: %w", err)
	}

	q.logAudit(ctx, audit.Entry{
		Action:  "task_created",
		Subject: task.ID,
		Detail:  fmt.Sprintf("%s task for %q from %s", task.Classification, c.Name, c.SourceDoc),
	})
	return &SubmitOutcome{Task: task}, nil
}

// closestEntity finds the existing entity most similar to the candidate.
func (q *Queue) closestEntity(ctx context.Context, c EntityCandidate) (*graphstore.Entity, float64, error) {
	seen := map[string]bool{}
	var candidates []graphstore.Entity

	byName, err := q.graph.SearchByName(ctx, c.Name, 5)
	if err != nil {
		return nil, 0, fmt.Errorf("searching graph by name: %w", err)
	}
	for _, e := range byName {
		if !seen[e.ID] {
			seen[e.ID] = true
			candidates = append(candidates, e)
		}
	}

	byType, err := q.graph.List(ctx, c.Type, 50)
	if err != nil {
		return nil, 0, fmt.Errorf("listing graph by type: %w", err)
	}
	for _, e := range byType {
		if !seen[e.ID] {
			seen[e.ID] = true
			candidates = append(candidates, e)
		}
	}

	var best *graphstore.Entity
	bestScore := 0.0
	for i := range candidates {
		score := q.similarity(ctx, c, &candidates[i])
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best, bestScore, nil
}

// merge folds candidate properties and relations into an existing entity.
func (q *Queue) merge(ctx context.Context, c EntityCandidate, e *graphstore.Entity) (string, error) {
	if e.Properties == nil {
		e.Properties = map[string]string{}
	}
	for k, v := range c.Properties {
		if v != "" {
			e.Properties[k] = v
		}
	}
	if err := q.graph.Update(ctx, e); err != nil {
		return "", fmt.Errorf("merging entity %s: %w", e.ID, err)
	}
	if err := q.applyRelations(ctx, e.ID, c.Relations); err != nil {
		return "", err
	}
	return e.ID, nil
}

// applyRelations materializes claimed relations, creating missing targets
// as plain entities.
func (q *Queue) applyRelations(ctx context.Context, sourceID string, relations []CandidateRelation) error {
	for _, rel := range relations {
		if rel.Target == "" || rel.Type == "" {
			continue
		}
		target, err := q.graph.GetByName(ctx, rel.Target, "")
		if err != nil {
			return fmt.Errorf("resolving relation target %q: %w", rel.Target, err)
		}
		if target == nil {
			target = &graphstore.Entity{Name: rel.Target, Type: "Entity"}
			if err := q.graph.Upsert(ctx, target); err != nil {
				return fmt.Errorf("creating relation target %q: %w", rel.Target, err)
			}
		}
		if err := q.graph.AddRelation(ctx, sourceID, target.ID, rel.Type); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns unresolved tasks oldest first.
func (q *Queue) Pending(ctx context.Context) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, classification, status, candidate, existing_entity_id, similarity, source_doc, created_at, resolved_at
		 FROM gardener_tasks WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// PendingCount returns the review backlog size for the stats endpoint.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gardener_tasks WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending tasks: %w", err)
	}
	return n, nil
}

// Get returns one task by id.
func (q *Queue) Get(ctx context.Context, id string) (*Task, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, classification, status, candidate, existing_entity_id, similarity, source_doc, created_at, resolved_at
		 FROM gardener_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return task, err
}

// Approve resolves a task, applying the candidate (or the reviewer's edited
// version of it) to the graph. Only the caller that wins the pending claim
// performs the graph write.
func (q *Queue) Approve(ctx context.Context, id string, modified *EntityCandidate, actor string) (*Task, error) {
	task, claimed, err := q.claim(ctx, id, StatusApproved)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return task, nil
	}

	candidate := task.Candidate
	if modified != nil {
		candidate = *modified
	}

	var entityID string
	if task.Classification == ClassConflict && task.ExistingEntityID != "" {
		existing, err := q.graph.Get(ctx, task.ExistingEntityID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			entityID, err = q.merge(ctx, candidate, existing)
			if err != nil {
				return nil, err
			}
		}
	}
	if entityID == "" {
		e := &graphstore.Entity{Name: candidate.Name, Type: candidate.Type, Properties: candidate.Properties}
		if err := q.graph.Upsert(ctx, e); err != nil {
			return nil, fmt.Errorf("creating approved entity: %w", err)
		}
		if err := q.applyRelations(ctx, e.ID, candidate.Relations); err != nil {
			return nil, err
		}
		entityID = e.ID
	}

	q.logAudit(ctx, audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   actor,
		Action:    "task_approved",
		Subject:   task.ID,
		Detail:    fmt.Sprintf("entity %s (%q)", entityID, candidate.Name),
	})
	return task, nil
}

// Merge resolves a task by folding the candidate (or the reviewer's edited
// version of it) into the existing entity the task points at. It only makes
// sense for conflict tasks, which carry a merge target.
func (q *Queue) Merge(ctx context.Context, id string, modified *EntityCandidate, actor string) (*Task, error) {
	if task, err := q.Get(ctx, id); err != nil {
		return nil, err
	} else if task.ExistingEntityID == "" {
		return nil, ErrNoMergeTarget
	}

	task, claimed, err := q.claim(ctx, id, StatusApproved)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return task, nil
	}

	candidate := task.Candidate
	if modified != nil {
		candidate = *modified
	}

	existing, err := q.graph.Get(ctx, task.ExistingEntityID)
	if err != nil {
		return nil, err
	}
	var entityID string
	if existing != nil {
		entityID, err = q.merge(ctx, candidate, existing)
		if err != nil {
			return nil, err
		}
	} else {
		// The target vanished between review and merge. Recreate it from
		// the candidate rather than losing the decision.
		e := &graphstore.Entity{Name: candidate.Name, Type: candidate.Type, Properties: candidate.Properties}
		if err := q.graph.Upsert(ctx, e); err != nil {
			return nil, fmt.Errorf("recreating merge target: %w", err)
		}
		if err := q.applyRelations(ctx, e.ID, candidate.Relations); err != nil {
			return nil, err
		}
		entityID = e.ID
	}

	q.logAudit(ctx, audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   actor,
		Action:    "task_merged",
		Subject:   task.ID,
		Detail:    fmt.Sprintf("candidate %q folded into entity %s", candidate.Name, entityID),
	})
	return task, nil
}

// Reject resolves a task without touching the graph.
func (q *Queue) Reject(ctx context.Context, id string, actor string) (*Task, error) {
	task, claimed, err := q.claim(ctx, id, StatusRejected)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return task, nil
	}

	q.logAudit(ctx, audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   actor,
		Action:    "task_rejected",
		Subject:   task.ID,
		Detail:    fmt.Sprintf("candidate %q discarded", task.Candidate.Name),
	})
	return task, nil
}

// claim atomically moves a pending task to a resolved status. Resolving a
// task that was already resolved is a no-op: the caller gets the task back
// with claimed=false and must not apply its decision again. ErrNotFound is
// reserved for ids that never existed.
func (q *Queue) claim(ctx context.Context, id string, status Status) (task *Task, claimed bool, err error) {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`UPDATE gardener_tasks SET status = ?, resolved_at = ? WHERE id = ? AND status = 'pending'`,
		status, now, id)
	if err != nil {
		return nil, false, fmt.Errorf("claiming task %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	task, err = q.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return task, n > 0, nil
}

func (q *Queue) logAudit(ctx context.Context, e audit.Entry) {
	if q.audit == nil {
		return
	}
	if err := q.audit.Log(ctx, e); err != nil {
		log.Printf("gardener: audit log failed: %v", err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var candidateJSON string
	var existingID sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.Classification, &t.Status, &candidateJSON,
		&existingID, &t.Similarity, &t.SourceDoc, &t.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(candidateJSON), &t.Candidate); err != nil {
		return nil, fmt.Errorf("parsing candidate for task %s: %w", t.ID, err)
	}
	if existingID.Valid {
		t.ExistingEntityID = existingID.String
	}
	if resolvedAt.Valid {
		ts := resolvedAt.Time
		t.ResolvedAt = &ts
	}
	return &t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
