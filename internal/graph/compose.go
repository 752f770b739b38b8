package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/propaths/propaths/internal/storage"
	"github.com/propaths/propaths/pkg/types"
)

// View is a composed neighborhood of one focal protein: its resolved direct
// edges plus the connecting links the renderer needs. The union of the two
// lists is duplicate-free, each unordered pair appears at most once.
type View struct {
	Protein      string                       `json:"protein"`
	Interactions []*types.ResolvedInteraction `json:"interactions"`
	Links        []types.Link                 `json:"links,omitempty"`
}

// Composer builds protein-centric views over the stored graph.
type Composer struct {
	store storage.InteractionStore
}

// NewComposer creates a view composer over the given store.
func NewComposer(store storage.InteractionStore) *Composer {
	return &Composer{store: store}
}

// Interactions returns every stored interaction of the protein, resolved to
// its point of view. Counts as a query against the protein.
func (c *Composer) Interactions(ctx context.Context, symbol string) ([]*types.ResolvedInteraction, error) {
	p, edges, err := c.load(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return resolveAll(edges, p.ID)
}

// InteractionCount returns the maintained interaction count for the protein.
func (c *Composer) InteractionCount(ctx context.Context, symbol string) (int, error) {
	p, err := c.store.GetProtein(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return c.store.InteractionCount(ctx, p.ID)
}

// FullView returns the protein's direct edges plus the links among its
// neighbors. Neighbor links are excluded when they only restate the focal
// protein's own chains: edges still marked chain-inferred that are either
// adjacent hops of one of the focal protein's mediator chains or were
// produced by the same discovery runs. An edge upgraded by direct evidence
// since then has lost the marker and stays in.
func (c *Composer) FullView(ctx context.Context, symbol string) (*View, error) {
	p, edges, err := c.load(ctx, symbol)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveAll(edges, p.ID)
	if err != nil {
		return nil, err
	}
	view := &View{Protein: symbol, Interactions: resolved}

	neighborIDs := make([]int64, 0, len(edges))
	for _, e := range edges {
		neighborIDs = append(neighborIDs, e.OtherEndpoint(p.ID))
	}

	// Hops and runs of the focal protein's own chains. Stored mediators run
	// ProteinA to ProteinB, so the path is keyed in canonical orientation;
	// adjacency of unordered pairs is the same from either endpoint.
	chainAdjacent := make(map[string]bool)
	chainRuns := make(map[string]bool)
	for _, e := range edges {
		if e.Kind != types.KindIndirect || !e.Chain.Known {
			continue
		}
		path := append([]string{e.ProteinA}, e.Chain.Mediators...)
		path = append(path, e.ProteinB)
		for j := 0; j+1 < len(path); j++ {
			chainAdjacent[symbolPairKey(path[j], path[j+1])] = true
		}
		if e.DiscoveredIn != "" {
			chainRuns[e.DiscoveredIn] = true
		}
	}

	shared, err := c.store.ListInteractionsAmong(ctx, neighborIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, e := range shared {
		if e.Involves(p.ID) {
			continue
		}
		key := symbolPairKey(e.ProteinA, e.ProteinB)
		if seen[key] {
			continue
		}
		if e.ChainInferred() && (chainAdjacent[key] || chainRuns[e.DiscoveredIn]) {
			continue
		}
		seen[key] = true
		view.Links = append(view.Links, toLink(e))
	}
	return view, nil
}

// ExpansionView returns the protein's direct edges plus the cross links
// between its newly surfaced partners and the already visible set, so a
// renderer expanding one node can connect it into the existing picture.
func (c *Composer) ExpansionView(ctx context.Context, symbol string, visible []string) (*View, error) {
	p, edges, err := c.load(ctx, symbol)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveAll(edges, p.ID)
	if err != nil {
		return nil, err
	}
	view := &View{Protein: symbol, Interactions: resolved}

	visibleSet := make(map[string]bool, len(visible))
	visibleIDs := make([]int64, 0, len(visible))
	for _, v := range visible {
		if v == symbol || visibleSet[v] {
			continue
		}
		vp, err := c.store.GetProtein(ctx, v)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		visibleSet[v] = true
		visibleIDs = append(visibleIDs, vp.ID)
	}

	newIDs := make([]int64, 0, len(edges))
	for i, e := range edges {
		if partner := resolved[i].Partner; !visibleSet[partner] && partner != symbol {
			newIDs = append(newIDs, e.OtherEndpoint(p.ID))
		}
	}

	cross, err := c.store.ListInteractionsBetween(ctx, newIDs, visibleIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, e := range cross {
		if e.Involves(p.ID) {
			continue
		}
		key := symbolPairKey(e.ProteinA, e.ProteinB)
		if seen[key] {
			continue
		}
		seen[key] = true
		view.Links = append(view.Links, toLink(e))
	}
	return view, nil
}

// load fetches the protein and its edges and records the query against it.
func (c *Composer) load(ctx context.Context, symbol string) (*types.Protein, []*types.Interaction, error) {
	p, err := c.store.GetProtein(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	if err := c.store.IncrementQueryCount(ctx, p.ID); err != nil {
		return nil, nil, err
	}
	edges, err := c.store.ListInteractionsFor(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, edges, nil
}

func resolveAll(edges []*types.Interaction, viewpointID int64) ([]*types.ResolvedInteraction, error) {
	out := make([]*types.ResolvedInteraction, len(edges))
	for i, e := range edges {
		r, err := Resolve(e, viewpointID)
		if err != nil {
			return nil, fmt.Errorf("graph: failed to resolve edge %d: %w", e.ID, err)
		}
		out[i] = r
	}
	return out, nil
}

// toLink normalizes a stored edge into a source-to-target link, so the
// consumer never needs to understand pair-relative directions.
func toLink(e *types.Interaction) types.Link {
	source, target := e.ProteinA, e.ProteinB
	direction := e.Direction
	if direction == types.DirectionBToA {
		source, target = target, source
		direction = types.DirectionAToB
	}
	return types.Link{
		Source:    source,
		Target:    target,
		Direction: direction,
		Arrow:     e.Arrow,
		Kind:      e.Kind,
	}
}

func symbolPairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
