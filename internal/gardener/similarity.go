package gardener

import (
	"context"
	"sort"
	"strings"

	"github.com/hragd/hragd/internal/embeddings"
	"github.com/hragd/hragd/internal/graphstore"
)

// Weights of the similarity blend. When no embedder is configured the
// lexical components are renormalized so scores stay comparable.
const (
	nameWeight     = 0.5
	propWeight     = 0.2
	semanticWeight = 0.3
)

// similarity scores how likely a candidate and an existing entity are the
// same real-world thing.
func (q *Queue) similarity(ctx context.Context, c EntityCandidate, e *graphstore.Entity) float64 {
	name := nameSimilarity(c.Name, e.Name)
	props := propertyOverlap(c.Properties, e.Properties)

	if q.embedder == nil {
		return (name*nameWeight + props*propWeight) / (nameWeight + propWeight)
	}

	semantic := q.semanticSimilarity(ctx, c, e)
	return name*nameWeight + props*propWeight + semantic*semanticWeight
}

func (q *Queue) semanticSimilarity(ctx context.Context, c EntityCandidate, e *graphstore.Entity) float64 {
	vecs, err := q.embedder.Embed(ctx, []string{entityText(c.Name, c.Properties), entityText(e.Name, e.Properties)})
	if err != nil || len(vecs) != 2 {
		// Degrade to the lexical name signal rather than punishing the score.
		return nameSimilarity(c.Name, e.Name)
	}
	return embeddings.Cosine(vecs[0], vecs[1])
}

// nameSimilarity is 1.0 for normalized-equal names, otherwise the Jaccard
// overlap of their normalized tokens.
func nameSimilarity(a, b string) float64 {
	na, nb := graphstore.Normalize(a), graphstore.Normalize(b)
	if na == nb {
		return 1.0
	}

	ta := tokenSet(na)
	tb := tokenSet(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// propertyOverlap is the fraction of shared keys with equal values. Two
// entities with no properties at all give no signal either way.
func propertyOverlap(a, b map[string]string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared, matching := 0, 0
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			continue
		}
		shared++
		if strings.EqualFold(strings.TrimSpace(va), strings.TrimSpace(vb)) {
			matching++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(matching) / float64(shared)
}

func tokenSet(normalized string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Split(normalized, "_") {
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}

func entityText(name string, props map[string]string) string {
	var b strings.Builder
	b.WriteString(name)
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(props[k])
	}
	return b.String()
}
