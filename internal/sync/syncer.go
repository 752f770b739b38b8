// Package sync drives discovery findings into the interaction store, one
// batch per discovery run.
package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/propaths/propaths/internal/discovery"
	"github.com/propaths/propaths/internal/graph"
	"github.com/propaths/propaths/internal/metrics"
	"github.com/propaths/propaths/internal/storage"
	"github.com/propaths/propaths/pkg/types"
)

// NewRunID mints the provenance identifier for one discovery run.
func NewRunID() string {
	return "run:" + uuid.NewString()
}

// ItemError is one failed batch item.
type ItemError struct {
	Index  int
	Query  string
	Target string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s-%s): %v", e.Index, e.Query, e.Target, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// BatchError aggregates the per-item failures of one batch. The batch
// itself never aborts on an item failure: everything that could be stored
// was stored, and the error reports what could not.
type BatchError struct {
	RunID  string
	Total  int
	Errors []*ItemError
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("sync %s: %d of %d items failed (first: %v)",
		e.RunID, len(e.Errors), e.Total, e.Errors[0])
}

// Unwrap exposes the item errors to errors.Is / errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ie := range e.Errors {
		out[i] = ie
	}
	return out
}

// BatchResult summarizes one processed batch.
type BatchResult struct {
	RunID   string `json:"run_id"`
	Total   int    `json:"total"`
	Synced  int    `json:"synced"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// Syncer stores normalized discovery findings.
type Syncer struct {
	store      storage.InteractionStore
	decomposer *graph.Decomposer
	collector  metrics.Collector
}

// NewSyncer creates a syncer over the given store. collector may be nil,
// in which case measurements are discarded.
func NewSyncer(store storage.InteractionStore, collector metrics.Collector) *Syncer {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Syncer{
		store:      store,
		decomposer: graph.NewDecomposer(store),
		collector:  collector,
	}
}

// SyncItem stores one finding. Indirect findings with a known chain go
// through chain decomposition; everything else lands as a single canonical
// edge.
func (s *Syncer) SyncItem(ctx context.Context, runID string, item discovery.DiscoveredInteraction) error {
	norm, err := discovery.Normalize(item)
	if err != nil {
		return err
	}

	if norm.Kind == types.KindIndirect && norm.Chain.Known {
		if err := s.decomposer.Decompose(ctx, graph.ChainDiscovery{
			Query:      norm.Query,
			Target:     norm.Target,
			Mediators:  norm.Chain.Mediators,
			Direction:  norm.Direction,
			Arrows:     norm.Arrows,
			Confidence: norm.Confidence,
			Data:       norm.Data,
			RunID:      runID,
		}); err != nil {
			return err
		}
		s.collector.ChainDecomposed()
		return nil
	}

	q, err := s.store.EnsureProtein(ctx, norm.Query)
	if err != nil {
		return err
	}
	t, err := s.store.EnsureProtein(ctx, norm.Target)
	if err != nil {
		return err
	}

	rec := &types.Interaction{
		ProteinAID:   q.ID,
		ProteinBID:   t.ID,
		ProteinA:     norm.Query,
		ProteinB:     norm.Target,
		Direction:    norm.Direction,
		Arrows:       norm.Arrows,
		Arrow:        norm.Arrows.Representative(),
		Kind:         norm.Kind,
		Chain:        norm.Chain,
		Confidence:   norm.Confidence,
		Data:         norm.Data,
		DiscoveredIn: runID,
	}

	canonical, err := graph.Canonicalize(rec)
	if err != nil {
		return err
	}
	_, inserted, err := s.store.UpsertInteraction(ctx, canonical)
	if err != nil {
		return err
	}
	if inserted {
		s.collector.InteractionStored("inserted")
	} else {
		s.collector.InteractionStored("merged")
	}
	return nil
}

// SyncBatch processes a whole batch under one run id. Item failures are
// logged, counted, and aggregated into the returned BatchError; they never
// abort the rest of the batch. Context cancellation stops the batch between
// items, without rolling back what was already stored; the untouched
// remainder is reported as skipped.
func (s *Syncer) SyncBatch(ctx context.Context, runID string, items []discovery.DiscoveredInteraction) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{RunID: runID, Total: len(items)}
	var itemErrs []*ItemError

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			result.Skipped = len(items) - i
			log.Printf("sync: %s stopped after %d of %d items: %v", runID, i, len(items), err)
			break
		}

		if err := s.SyncItem(ctx, runID, item); err != nil {
			log.Printf("sync: %s item %d (%s-%s) failed: %v", runID, i, item.Query, item.Target, err)
			itemErrs = append(itemErrs, &ItemError{Index: i, Query: item.Query, Target: item.Target, Err: err})
			result.Failed++
			s.collector.SyncItem("failed")
			continue
		}
		result.Synced++
		s.collector.SyncItem("synced")
	}

	s.collector.SyncBatchDuration(time.Since(start).Seconds())

	if len(itemErrs) > 0 {
		return result, &BatchError{RunID: runID, Total: len(items), Errors: itemErrs}
	}
	return result, nil
}
