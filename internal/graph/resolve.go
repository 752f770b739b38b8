package graph

import "github.com/propaths/propaths/pkg/types"

// Resolve re-expresses a stored record from one endpoint's point of view.
// The returned record reads subject-relative: DirectionAToB means
// subject acts on partner, and a known mediator path runs subject to
// partner. Resolving from the low endpoint is the identity;
// resolving from the high endpoint applies the exact inverse of the
// canonical flip, so a record canonicalized on write and resolved on read
// round-trips bit for bit.
//
// Returns ErrNotAnEndpoint when viewpointID is neither endpoint.
func Resolve(rec *types.Interaction, viewpointID int64) (*types.ResolvedInteraction, error) {
	switch viewpointID {
	case rec.ProteinAID:
		return &types.ResolvedInteraction{
			Subject:    rec.ProteinA,
			Partner:    rec.ProteinB,
			Direction:  rec.Direction,
			Arrow:      rec.Arrow,
			Arrows:     rec.Arrows.Clone(),
			Kind:       rec.Kind,
			Chain:      rec.Chain.Clone(),
			Confidence: rec.Confidence,
			Data:       cloneData(rec.Data),
		}, nil
	case rec.ProteinBID:
		return &types.ResolvedInteraction{
			Subject:    rec.ProteinB,
			Partner:    rec.ProteinA,
			Direction:  rec.Direction.Flip(),
			Arrow:      rec.Arrow,
			Arrows:     rec.Arrows.Flip(),
			Kind:       rec.Kind,
			Chain:      reverseChain(rec.Chain),
			Confidence: rec.Confidence,
			Data:       flipEndpointKeys(cloneData(rec.Data)),
		}, nil
	}
	return nil, ErrNotAnEndpoint
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
