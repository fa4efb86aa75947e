// Package domain holds the per-domain intent and slot vocabulary that the
// slot extractor and conversation engine are configured with. Vocabularies
// are loaded from YAML so adding a domain never requires a code change.
package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// IntentKind determines how a turn with this intent is answered.
type IntentKind string

const (
	// KindDiagnostic runs retrieval and synthesizes a diagnostic path.
	KindDiagnostic IntentKind = "diagnostic"
	// KindQuestion runs retrieval and synthesizes a plain text answer.
	KindQuestion IntentKind = "question"
	// KindChat answers directly without retrieval.
	KindChat IntentKind = "chat"
	// KindEnd closes the conversation thread.
	KindEnd IntentKind = "end"
)

// Intent declares one recognizable intent with its slot requirements.
type Intent struct {
	Name     string     `yaml:"name"`
	Kind     IntentKind `yaml:"kind"`
	Keywords []string   `yaml:"keywords"`
	Required []string   `yaml:"required_slots"`
	Optional []string   `yaml:"optional_slots"`
}

// Vocabulary is the full intent/slot configuration for one domain.
type Vocabulary struct {
	Name         string              `yaml:"name"`
	DisplayName  string              `yaml:"display_name"`
	Description  string              `yaml:"description"`
	Identity     string              `yaml:"identity"` // classifier system identity
	Intents      []Intent            `yaml:"intents"`
	SlotExamples map[string][]string `yaml:"slot_examples"`
}

// Intent returns the named intent, if declared.
func (v *Vocabulary) Intent(name string) (Intent, bool) {
	for _, in := range v.Intents {
		if in.Name == name {
			return in, true
		}
	}
	return Intent{}, false
}

// IntentNames returns the declared intent names in order.
func (v *Vocabulary) IntentNames() []string {
	names := make([]string, len(v.Intents))
	for i, in := range v.Intents {
		names[i] = in.Name
	}
	return names
}

// AllSlots returns the union of required and optional slot names across
// all intents, sorted for deterministic prompt construction.
func (v *Vocabulary) AllSlots() []string {
	seen := map[string]bool{}
	for _, in := range v.Intents {
		for _, s := range in.Required {
			seen[s] = true
		}
		for _, s := range in.Optional {
			seen[s] = true
		}
	}
	slots := make([]string, 0, len(seen))
	for s := range seen {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	return slots
}

// MatchIntent maps a raw classifier answer onto a declared intent.
// Falls back to keyword scanning over the query, then to the first
// chat-kind intent.
func (v *Vocabulary) MatchIntent(raw, query string) Intent {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, in := range v.Intents {
		if in.Name == raw || strings.Contains(raw, in.Name) {
			return in
		}
	}

	lower := strings.ToLower(query)
	for _, in := range v.Intents {
		for _, kw := range in.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return in
			}
		}
	}

	for _, in := range v.Intents {
		if in.Kind == KindChat {
			return in
		}
	}
	if len(v.Intents) > 0 {
		return v.Intents[0]
	}
	return Intent{Name: "chat", Kind: KindChat}
}

func (v *Vocabulary) validate() error {
	if v.Name == "" {
		return fmt.Errorf("vocabulary name is required")
	}
	if len(v.Intents) == 0 {
		return fmt.Errorf("vocabulary %q declares no intents", v.Name)
	}
	seen := map[string]bool{}
	for _, in := range v.Intents {
		if in.Name == "" {
			return fmt.Errorf("vocabulary %q has an unnamed intent", v.Name)
		}
		if seen[in.Name] {
			return fmt.Errorf("vocabulary %q declares intent %q twice", v.Name, in.Name)
		}
		seen[in.Name] = true
		switch in.Kind {
		case KindDiagnostic, KindQuestion, KindChat, KindEnd:
		default:
			return fmt.Errorf("intent %q has unknown kind %q", in.Name, in.Kind)
		}
	}
	return nil
}

// Load reads a single vocabulary from a YAML file.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing vocabulary %s: %w", path, err)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// LoadDir loads every *.yml / *.yaml vocabulary in dir. A missing directory
// yields the built-in default vocabulary rather than an error.
func LoadDir(dir string) ([]*Vocabulary, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []*Vocabulary{Default()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary dir %s: %w", dir, err)
	}

	var vocabs []*Vocabulary
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		v, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		vocabs = append(vocabs, v)
	}
	if len(vocabs) == 0 {
		return []*Vocabulary{Default()}, nil
	}
	return vocabs, nil
}

// Default returns the built-in DevOps incident vocabulary.
func Default() *Vocabulary {
	return &Vocabulary{
		Name:        "devops",
		DisplayName: "DevOps Incident Response",
		Description: "Incident diagnosis over service topology, runbooks and live metrics",
		Identity:    "You are IntentClassifier for a DevOps incident response copilot.",
		Intents: []Intent{
			{
				Name:     "troubleshoot",
				Kind:     KindDiagnostic,
				Keywords: []string{"error", "timeout", "timing", "crash", "fail", "down", "slow", "latency", "exception", "5xx", "oom"},
				Required: []string{"service", "error_type"},
				Optional: []string{"time_range", "environment", "severity"},
			},
			{
				Name:     "status",
				Kind:     KindDiagnostic,
				Keywords: []string{"status", "health", "healthy", "running"},
				Required: []string{"service"},
				Optional: []string{"time_range", "environment"},
			},
			{
				Name:     "question",
				Kind:     KindQuestion,
				Keywords: []string{"how", "what", "why", "where", "which", "explain"},
				Optional: []string{"service"},
			},
			{
				Name:     "chat",
				Kind:     KindChat,
				Keywords: []string{"hello", "hi", "hey", "thanks", "help"},
			},
			{
				Name:     "end",
				Kind:     KindEnd,
				Keywords: []string{"bye", "goodbye", "quit", "exit"},
			},
		},
		SlotExamples: map[string][]string{
			"service":     {"PaymentService", "order-api", "redis-cache"},
			"error_type":  {"timeout", "connection refused", "OOMKilled", "latency spike"},
			"time_range":  {"last 30 minutes", "since 09:00 UTC", "today"},
			"environment": {"prod", "staging", "dev"},
			"severity":    {"critical", "high", "low"},
		},
	}
}
