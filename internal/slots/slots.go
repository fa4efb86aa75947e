// Package slots implements intent classification and slot filling over a
// domain vocabulary. Extraction is additive: a turn can only add or refine
// slot values, never silently erase what earlier turns established.
package slots

import (
	"sort"
	"strings"

	"github.com/hragd/hragd/internal/domain"
)

// SlotSet holds the slot values accumulated over a conversation thread.
type SlotSet map[string]string

// Clone returns an independent copy.
func (s SlotSet) Clone() SlotSet {
	out := make(SlotSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge folds a freshly extracted delta into the set. Only non-empty delta
// values are applied, so a turn that mentions nothing about a slot leaves
// the existing value untouched.
func (s SlotSet) Merge(delta SlotSet) SlotSet {
	out := s.Clone()
	for k, v := range delta {
		if strings.TrimSpace(v) != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

// Missing returns the intent's required slots that have no value yet,
// sorted for stable clarification wording.
func (s SlotSet) Missing(intent domain.Intent) []string {
	var missing []string
	for _, name := range intent.Required {
		if strings.TrimSpace(s[name]) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Complete reports whether every required slot of the intent is filled.
func (s SlotSet) Complete(intent domain.Intent) bool {
	return len(s.Missing(intent)) == 0
}
