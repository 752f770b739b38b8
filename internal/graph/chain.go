package graph

import (
	"context"
	"fmt"
	"log"

	"github.com/propaths/propaths/internal/storage"
	"github.com/propaths/propaths/pkg/types"
)

// ChainDiscovery is one indirect finding from the discovery pipeline: the
// query protein reaches the target through the listed mediators. Direction
// and arrows are path-relative: DirectionAToB means the influence flows from
// the query toward the target.
type ChainDiscovery struct {
	Query     string
	Target    string
	Mediators []string

	Direction  types.Direction
	Arrows     types.ArrowSet
	Confidence float64
	Data       map[string]any

	// RunID is the discovery run the finding came from.
	RunID string
}

// Decomposer splits indirect discoveries into stored edges: one direct
// segment per consecutive hop of the path, plus a single indirect summary
// edge between query and target carrying the mediator chain.
type Decomposer struct {
	store storage.InteractionStore
}

// NewDecomposer creates a chain decomposer over the given store.
func NewDecomposer(store storage.InteractionStore) *Decomposer {
	return &Decomposer{store: store}
}

// Decompose validates and stores one indirect discovery. The operation is
// idempotent: running the same discovery twice merges into the same rows
// and never duplicates edges or counter increments.
//
// A chain that cannot be decomposed (empty member, cycle, mediator equal to
// an endpoint) returns ErrMalformedChain and stores nothing; callers
// processing batches log it and move on.
func (d *Decomposer) Decompose(ctx context.Context, disc ChainDiscovery) error {
	path, err := validatePath(disc)
	if err != nil {
		return err
	}

	ids := make([]int64, len(path))
	for i, symbol := range path {
		p, err := d.store.EnsureProtein(ctx, symbol)
		if err != nil {
			return fmt.Errorf("%w: member %q: %v", ErrMalformedChain, symbol, err)
		}
		ids[i] = p.ID
	}

	// Direct segments, one per hop. The final hop (upstream mediator to
	// target) carries the observed arrows; earlier hops exist only because
	// the path implies them and are flagged as chain-inferred so later
	// direct evidence can supersede them.
	last := len(path) - 2
	for i := 0; i <= last; i++ {
		seg := &types.Interaction{
			ProteinAID:   ids[i],
			ProteinBID:   ids[i+1],
			ProteinA:     path[i],
			ProteinB:     path[i+1],
			Direction:    segmentDirection(disc.Direction),
			Kind:         types.KindDirect,
			DiscoveredIn: disc.RunID,
		}
		if i == last {
			seg.Arrows = disc.Arrows.Clone()
			seg.Arrow = seg.Arrows.Representative()
			seg.Confidence = disc.Confidence
		} else {
			seg.Data = map[string]any{types.DataFlagChainInferred: true}
		}

		canonical, err := Canonicalize(seg)
		if err != nil {
			// Degenerate self hop; validation should have caught it, but a
			// single bad hop must not poison the rest of the chain.
			log.Printf("graph: skipping degenerate segment %s-%s: %v", path[i], path[i+1], err)
			continue
		}
		if _, _, err := d.store.UpsertInteraction(ctx, canonical); err != nil {
			return fmt.Errorf("graph: failed to store segment %s-%s: %w", path[i], path[i+1], err)
		}
	}

	// Indirect summary edge between the path's endpoints.
	summary := &types.Interaction{
		ProteinAID:   ids[0],
		ProteinBID:   ids[len(ids)-1],
		ProteinA:     disc.Query,
		ProteinB:     disc.Target,
		Direction:    disc.Direction,
		Arrows:       disc.Arrows.Clone(),
		Kind:         types.KindIndirect,
		Chain:        types.Chain{Known: true, Mediators: append([]string(nil), disc.Mediators...)},
		Confidence:   disc.Confidence,
		Data:         disc.Data,
		DiscoveredIn: disc.RunID,
	}
	summary.Arrow = summary.Arrows.Representative()

	canonical, err := Canonicalize(summary)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedChain, err)
	}
	if _, _, err := d.store.UpsertInteraction(ctx, canonical); err != nil {
		return fmt.Errorf("graph: failed to store chain summary %s-%s: %w", disc.Query, disc.Target, err)
	}
	return nil
}

// validatePath builds [query, mediators..., target] and rejects the chains
// decomposition cannot represent.
func validatePath(disc ChainDiscovery) ([]string, error) {
	if disc.Query == "" || disc.Target == "" {
		return nil, fmt.Errorf("%w: missing endpoint", ErrMalformedChain)
	}
	if disc.Query == disc.Target {
		return nil, fmt.Errorf("%w: query and target are both %q", ErrMalformedChain, disc.Query)
	}
	if len(disc.Mediators) == 0 {
		return nil, fmt.Errorf("%w: no mediators", ErrMalformedChain)
	}

	path := make([]string, 0, len(disc.Mediators)+2)
	path = append(path, disc.Query)
	seen := map[string]bool{disc.Query: true}
	for _, m := range disc.Mediators {
		if m == "" {
			return nil, fmt.Errorf("%w: empty mediator", ErrMalformedChain)
		}
		// A mediator equal to an endpoint is the corruption the summary
		// edge must never record.
		if m == disc.Query || m == disc.Target {
			return nil, fmt.Errorf("%w: mediator %q is an endpoint", ErrMalformedChain, m)
		}
		if seen[m] {
			return nil, fmt.Errorf("%w: cycle through %q", ErrMalformedChain, m)
		}
		seen[m] = true
		path = append(path, m)
	}
	path = append(path, disc.Target)
	return path, nil
}

// segmentDirection maps the path-relative direction onto a hop. Influence
// flowing query-to-target flows subject-to-next on every hop; everything
// else carries over unchanged.
func segmentDirection(d types.Direction) types.Direction {
	if d == "" {
		return types.DirectionUnknown
	}
	return d
}
