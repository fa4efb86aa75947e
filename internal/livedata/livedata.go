// Package livedata bridges to an operator-side telemetry backend over MCP.
// Retrieval treats it as a third evidence source next to the graph and the
// vector index.
package livedata

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Query describes what the telemetry backend should look up.
type Query struct {
	Service   string `json:"service"`
	TimeRange string `json:"time_range,omitempty"`
	Intent    string `json:"intent,omitempty"`
}

// Record is a single telemetry observation returned by the backend.
type Record struct {
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Store is a live telemetry source.
type Store interface {
	Query(ctx context.Context, q Query) ([]Record, error)
	Healthy(ctx context.Context) bool
	Name() string
}

// NoopStore is used when no telemetry backend is configured. Queries
// return nothing and the source reports unhealthy so callers can degrade.
type NoopStore struct{}

func (NoopStore) Query(ctx context.Context, q Query) ([]Record, error) { return nil, nil }
func (NoopStore) Healthy(ctx context.Context) bool                    { return false }
func (NoopStore) Name() string                                        { return "none" }

// parseRecords decodes the text payload a telemetry tool returns. It accepts
// a JSON array of records, a single JSON record, or falls back to wrapping
// plain text lines as info-level records.
func parseRecords(text, service string) []Record {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var records []Record
	if err := json.Unmarshal([]byte(text), &records); err == nil {
		return fillService(records, service)
	}

	var single Record
	if err := json.Unmarshal([]byte(text), &single); err == nil && (single.Message != "" || single.Service != "") {
		return fillService([]Record{single}, service)
	}

	var out []Record
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, Record{
			Timestamp: time.Now().UTC(),
			Service:   service,
			Level:     "info",
			Message:   line,
		})
	}
	return out
}

func fillService(records []Record, service string) []Record {
	for i := range records {
		if records[i].Service == "" {
			records[i].Service = service
		}
		if records[i].Level == "" {
			records[i].Level = "info"
		}
	}
	return records
}
