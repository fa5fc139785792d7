// Package similar implements the user-facing similarity queries over a
// store: "items like this item" and "items like this set of items".
//
// Both queries run against the average-role index. For multi-item queries
// each seed item is first reduced to its own mean vector, then the mean of
// those per-item vectors becomes the single query vector; segment-level
// detail is discarded before cross-item averaging. Results keep the
// index's order, nearest first, and self-matches are not excluded.
package similar

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonearmlabs/tonearm/pkg/store"
	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// ErrNoSeedItems indicates a similarity request had no usable seed items:
// either none were given or none had a stored embedding. Callers report
// this as a "no results" outcome, not a crash.
var ErrNoSeedItems = errors.New("no seed items")

// Result is one ranked hit: an item id and its query distance (ascending
// is more similar for both metrics).
type Result struct {
	ItemID   int64
	Distance float64
}

// ToItem returns up to k items most similar to the given item, nearest
// first.
func ToItem(ctx context.Context, s *store.Store, itemID int64, k int) ([]int64, error) {
	results, err := ToItemScored(ctx, s, itemID, k)
	if err != nil {
		return nil, err
	}
	return itemIDs(results), nil
}

// ToItemScored is ToItem with distances attached.
func ToItemScored(ctx context.Context, s *store.Store, itemID int64, k int) ([]Result, error) {
	emb, err := s.GetEmbedding(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: item %d has no stored embedding", ErrNoSeedItems, itemID)
		}
		return nil, err
	}

	index := s.Scheme().Average()
	vectors, err := index.Vectorize(emb)
	if err != nil {
		return nil, err
	}
	return query(ctx, index, vectors[0], k)
}

// ToMany returns up to k items similar to the combined seed set, nearest
// first. Seed items without a stored embedding are dropped; the query
// proceeds as long as at least one survives.
func ToMany(ctx context.Context, s *store.Store, seedIDs []int64, k int) ([]int64, error) {
	results, err := ToManyScored(ctx, s, seedIDs, k)
	if err != nil {
		return nil, err
	}
	return itemIDs(results), nil
}

// ToManyScored is ToMany with distances attached.
func ToManyScored(ctx context.Context, s *store.Store, seedIDs []int64, k int) ([]Result, error) {
	if len(seedIDs) == 0 {
		return nil, ErrNoSeedItems
	}

	embs, err := s.GetManyEmbeddings(ctx, seedIDs)
	if err != nil {
		return nil, err
	}

	index := s.Scheme().Average()

	// Pool each seed to its own mean vector first, then average across
	// seeds. The order matters: items with different segment counts would
	// otherwise weight the combined query unevenly.
	var pooled [][]float32
	for _, emb := range embs {
		if emb == nil {
			continue
		}
		vectors, err := index.Vectorize(emb)
		if err != nil {
			return nil, err
		}
		pooled = append(pooled, vectors[0])
	}
	if len(pooled) == 0 {
		return nil, fmt.Errorf("%w: none of %d seed items have stored embeddings", ErrNoSeedItems, len(seedIDs))
	}

	combined, err := tensor.Mean(pooled)
	if err != nil {
		return nil, err
	}
	return query(ctx, index, combined, k)
}

func query(ctx context.Context, index *store.Index, vector []float32, k int) ([]Result, error) {
	matches, err := index.Query(ctx, vector, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		ids, err := index.Resolve(ctx, []int64{m.Slot})
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			// Unmapped slot, already logged by Resolve.
			continue
		}
		results = append(results, Result{ItemID: ids[0], Distance: m.Distance})
	}
	return results, nil
}

func itemIDs(results []Result) []int64 {
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ItemID
	}
	return ids
}
