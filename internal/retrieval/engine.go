package retrieval

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hragd/hragd/internal/config"
)

// Engine runs the three-source fan-out and fuses results.
type Engine struct {
	queriers      []Querier
	weights       map[Source]float64
	maxResults    int
	sourceTimeout time.Duration
}

// NewEngine creates a fusion engine from the configured weights.
func NewEngine(cfg config.FusionConfig, queriers ...Querier) *Engine {
	return &Engine{
		queriers: queriers,
		weights: map[Source]float64{
			SourceGraph:  cfg.GraphWeight,
			SourceVector: cfg.VectorWeight,
			SourceLive:   cfg.LiveWeight,
		},
		maxResults:    cfg.MaxResults,
		sourceTimeout: cfg.SourceTimeout,
	}
}

// Retrieve queries every source concurrently with a per-source timeout.
// A slow or broken source is recorded in Failed and never sinks the round;
// only the caller decides what a total failure means.
func (e *Engine) Retrieve(ctx context.Context, q Query) (*EvidenceSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perSource := make([][]Result, len(e.queriers))
	failed := make([]bool, len(e.queriers))

	g, gctx := errgroup.WithContext(ctx)
	for i, querier := range e.queriers {
		g.Go(func() error {
			qctx := gctx
			if e.sourceTimeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(gctx, e.sourceTimeout)
				defer cancel()
			}

			results, err := querier.Query(qctx, q)
			if err != nil {
				failed[i] = true
				return nil
			}
			perSource[i] = results
			return nil
		})
	}
	// Goroutines never return errors, so Wait only propagates ctx cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := &EvidenceSet{Failed: map[Source]bool{}, Sources: len(e.queriers)}
	var all []Result
	for i, querier := range e.queriers {
		if failed[i] {
			set.Failed[querier.Source()] = true
			continue
		}
		all = append(all, perSource[i]...)
	}

	set.Results = e.fuse(all)
	return set, nil
}

// fuse weights, ranks and caps the combined result list while keeping at
// least one result from every source that produced any.
func (e *Engine) fuse(results []Result) []Result {
	for i := range results {
		results[i].Score = clamp01(results[i].Score)
		results[i].Combined = results[i].Score * e.weights[results[i].Source]
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		return sourcePriority[results[i].Source] < sourcePriority[results[j].Source]
	})

	limit := e.maxResults
	if limit <= 0 || limit >= len(results) {
		return results
	}

	top := results[:limit:limit]

	// Diversity floor: a source that returned something must survive the
	// cap. Eviction only targets sources holding more than one slot, so
	// when the cap is smaller than the number of producing sources the
	// floor cannot hold for all of them and the lowest-ranked sources
	// stay out.
	represented := map[Source]bool{}
	for _, r := range top {
		represented[r.Source] = true
	}
	for _, r := range results[limit:] {
		if represented[r.Source] {
			continue
		}
		// Evict the lowest-ranked entry of a source holding more than one slot.
		for i := len(top) - 1; i >= 0; i-- {
			if countSource(top, top[i].Source) > 1 {
				top[i] = r
				represented[r.Source] = true
				break
			}
		}
	}

	// Keep order after any evictions.
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Combined != top[j].Combined {
			return top[i].Combined > top[j].Combined
		}
		return sourcePriority[top[i].Source] < sourcePriority[top[j].Source]
	})
	return top
}

func countSource(results []Result, s Source) int {
	n := 0
	for _, r := range results {
		if r.Source == s {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
