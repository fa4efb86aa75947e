package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hragd/hragd/internal/db"
)

// SQLiteStore implements Store on top of the shared SQLite database.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a graph store backed by the given database.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

// Upsert inserts an entity, or merges its properties into an existing
// entity with the same normalized name and type.
func (s *SQLiteStore) Upsert(ctx context.Context, e *Entity) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Type == "" {
		e.Type = "Entity"
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	normalized := Normalize(e.Name)

	existing, err := s.GetByName(ctx, e.Name, e.Type)
	if err != nil {
		return err
	}
	if existing != nil {
		merged := existing.Properties
		if merged == nil {
			merged = map[string]string{}
		}
		for k, v := range e.Properties {
			if v != "" {
				merged[k] = v
			}
		}
		existing.Properties = merged
		existing.UpdatedAt = now
		if err := s.Update(ctx, existing); err != nil {
			return err
		}
		*e = *existing
		return nil
	}

	propsJSON, err := json.Marshal(orEmpty(e.Properties))
	if err != nil {
		return fmt.Errorf("marshaling properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graph_entities (id, name, normalized_name, type, properties, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, normalized, e.Type, string(propsJSON), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// Get retrieves an entity by ID. Returns nil when not found.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entity, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, name, type, properties, created_at, updated_at
		 FROM graph_entities WHERE id = ?`, id))
}

// GetByName retrieves an entity by normalized name and type. An empty
// entityType matches any type. Returns nil when not found.
func (s *SQLiteStore) GetByName(ctx context.Context, name, entityType string) (*Entity, error) {
	normalized := Normalize(name)
	if entityType != "" {
		return s.scanOne(s.db.QueryRowContext(ctx,
			`SELECT id, name, type, properties, created_at, updated_at
			 FROM graph_entities WHERE normalized_name = ? AND type = ?`, normalized, entityType))
	}
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, name, type, properties, created_at, updated_at
		 FROM graph_entities WHERE normalized_name = ? LIMIT 1`, normalized))
}

// SearchByName finds entities whose normalized name contains the term.
func (s *SQLiteStore) SearchByName(ctx context.Context, term string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + Normalize(term) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, properties, created_at, updated_at
		 FROM graph_entities WHERE normalized_name LIKE ?
		 ORDER BY length(normalized_name) ASC LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// Neighborhood returns all entities one relation away from the given entity,
// in both directions.
func (s *SQLiteStore) Neighborhood(ctx context.Context, id string) ([]Neighbor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.name, e.type, e.properties, e.created_at, e.updated_at, r.type, r.source_id = ?
		 FROM graph_relations r
		 JOIN graph_entities e ON e.id = CASE WHEN r.source_id = ? THEN r.target_id ELSE r.source_id END
		 WHERE r.source_id = ? OR r.target_id = ?
		 ORDER BY r.created_at`, id, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("querying neighborhood: %w", err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var n Neighbor
		var propsJSON string
		if err := rows.Scan(&n.Entity.ID, &n.Entity.Name, &n.Entity.Type, &propsJSON,
			&n.Entity.CreatedAt, &n.Entity.UpdatedAt, &n.Relation, &n.Outgoing); err != nil {
			return nil, fmt.Errorf("scanning neighbor: %w", err)
		}
		if err := json.Unmarshal([]byte(propsJSON), &n.Entity.Properties); err != nil {
			n.Entity.Properties = nil
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// AddRelation links two entities with a typed edge. Duplicate edges are
// ignored.
func (s *SQLiteStore) AddRelation(ctx context.Context, sourceID, targetID, relType string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO graph_relations (id, source_id, target_id, type, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id, type) DO NOTHING`,
		uuid.NewString(), sourceID, targetID, relType, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("adding relation: %w", err)
	}
	return nil
}

// List returns entities, optionally filtered by type, newest first.
func (s *SQLiteStore) List(ctx context.Context, entityType string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if entityType != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, name, type, properties, created_at, updated_at
			 FROM graph_entities WHERE type = ? ORDER BY updated_at DESC LIMIT ?`, entityType, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, name, type, properties, created_at, updated_at
			 FROM graph_entities ORDER BY updated_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// Update rewrites an existing entity's name, type and properties.
func (s *SQLiteStore) Update(ctx context.Context, e *Entity) error {
	propsJSON, err := json.Marshal(orEmpty(e.Properties))
	if err != nil {
		return fmt.Errorf("marshaling properties: %w", err)
	}
	e.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE graph_entities SET name=?, normalized_name=?, type=?, properties=?, updated_at=?
		 WHERE id=?`,
		e.Name, Normalize(e.Name), e.Type, string(propsJSON), e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating entity: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Counts returns the number of entities and relations in the graph.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_entities`).Scan(&c.Entities); err != nil {
		return c, fmt.Errorf("counting entities: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_relations`).Scan(&c.Relations); err != nil {
		return c, fmt.Errorf("counting relations: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) scanOne(row *sql.Row) (*Entity, error) {
	e := &Entity{}
	var propsJSON string
	err := row.Scan(&e.ID, &e.Name, &e.Type, &propsJSON, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}
	if err := json.Unmarshal([]byte(propsJSON), &e.Properties); err != nil {
		e.Properties = nil
	}
	return e, nil
}

func scanEntities(rows *sql.Rows) ([]Entity, error) {
	var entities []Entity
	for rows.Next() {
		var e Entity
		var propsJSON string
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &propsJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		if err := json.Unmarshal([]byte(propsJSON), &e.Properties); err != nil {
			e.Properties = nil
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
