package domain

import "strings"

// Registry holds every loaded vocabulary and picks the one a query
// belongs to. The first vocabulary is the default for queries that match
// nothing.
type Registry struct {
	vocabs []*Vocabulary
	byName map[string]*Vocabulary
}

// NewRegistry builds a registry. At least one vocabulary is required;
// callers pass the built-in default when nothing was configured.
func NewRegistry(vocabs ...*Vocabulary) *Registry {
	if len(vocabs) == 0 {
		vocabs = []*Vocabulary{Default()}
	}
	byName := make(map[string]*Vocabulary, len(vocabs))
	for _, v := range vocabs {
		byName[v.Name] = v
	}
	return &Registry{vocabs: vocabs, byName: byName}
}

// Default returns the fallback vocabulary.
func (r *Registry) Default() *Vocabulary { return r.vocabs[0] }

// Get returns a vocabulary by name, or nil.
func (r *Registry) Get(name string) *Vocabulary { return r.byName[name] }

// Names lists the registered vocabulary names in load order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.vocabs))
	for i, v := range r.vocabs {
		names[i] = v.Name
	}
	return names
}

// Select picks the vocabulary whose intent keywords best match the query.
// With a single registered vocabulary no scanning happens. Ties and
// zero-score queries fall back to the default vocabulary.
func (r *Registry) Select(query string) *Vocabulary {
	if len(r.vocabs) == 1 {
		return r.vocabs[0]
	}

	lower := strings.ToLower(query)
	best := r.vocabs[0]
	bestScore := 0
	for _, v := range r.vocabs {
		score := 0
		for _, in := range v.Intents {
			for _, kw := range in.Keywords {
				if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
					score++
				}
			}
		}
		if score > bestScore {
			best = v
			bestScore = score
		}
	}
	return best
}
