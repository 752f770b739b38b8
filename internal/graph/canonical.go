package graph

import (
	"strings"

	"github.com/propaths/propaths/pkg/types"
)

// Canonicalize takes a record expressed in caller order (ProteinAID is the
// subject, ProteinBID the partner) and returns it in canonical storage
// order, protein_a_id < protein_b_id. When the caller order already is
// canonical the record passes through untouched; otherwise endpoints swap
// and every pair-relative field flips with them: direction, arrow buckets,
// the mediator path, and endpoint-labelled keys in the evidence document.
//
// Pure: the input is never modified. Returns ErrSelfInteraction when both
// endpoints are the same protein.
func Canonicalize(rec *types.Interaction) (*types.Interaction, error) {
	if rec.ProteinAID == rec.ProteinBID {
		return nil, ErrSelfInteraction
	}
	if rec.ProteinAID < rec.ProteinBID {
		return rec.Clone(), nil
	}

	out := rec.Clone()
	out.ProteinAID, out.ProteinBID = rec.ProteinBID, rec.ProteinAID
	out.ProteinA, out.ProteinB = rec.ProteinB, rec.ProteinA
	out.Direction = rec.Direction.Flip()
	out.Arrows = rec.Arrows.Flip()
	out.Chain = reverseChain(rec.Chain)
	out.Data = flipEndpointKeys(out.Data)
	return out, nil
}

// reverseChain flips a mediator path to read from the opposite endpoint.
// Stored chains always run ProteinA to ProteinB.
func reverseChain(c types.Chain) types.Chain {
	out := c.Clone()
	for i, j := 0, len(out.Mediators)-1; i < j; i, j = i+1, j-1 {
		out.Mediators[i], out.Mediators[j] = out.Mediators[j], out.Mediators[i]
	}
	return out
}

// flipEndpointKeys swaps the values of endpoint-labelled key pairs in an
// evidence document: any "<stem>_a" whose sibling "<stem>_b" exists (e.g.
// binding_site_a / binding_site_b). Keys without a sibling stay put, so a
// lone label never migrates to the wrong endpoint.
func flipEndpointKeys(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	for key, value := range data {
		if !strings.HasSuffix(key, "_a") {
			continue
		}
		sibling := strings.TrimSuffix(key, "_a") + "_b"
		if other, ok := data[sibling]; ok {
			data[key], data[sibling] = other, value
		}
	}
	return data
}
