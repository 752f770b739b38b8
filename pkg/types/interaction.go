package types

import (
	"fmt"
	"time"
)

// Direction describes how an interaction points relative to the stored
// canonical pair (protein_a_id < protein_b_id). It is pair-absolute:
// the same stored value reads differently depending on which endpoint
// is asking, which is what Flip is for.
type Direction string

const (
	DirectionAToB          Direction = "a_to_b"
	DirectionBToA          Direction = "b_to_a"
	DirectionBidirectional Direction = "bidirectional"
	DirectionUnknown       Direction = "unknown"
)

// Flip returns the direction as seen from the opposite endpoint order.
// Flipping twice is the identity, which is what makes canonicalization
// on write and perspective resolution on read exact inverses.
func (d Direction) Flip() Direction {
	switch d {
	case DirectionAToB:
		return DirectionBToA
	case DirectionBToA:
		return DirectionAToB
	default:
		return d
	}
}

// Valid reports whether d is one of the recognized direction values.
func (d Direction) Valid() bool {
	switch d {
	case DirectionAToB, DirectionBToA, DirectionBidirectional, DirectionUnknown:
		return true
	}
	return false
}

// ArrowMixed is the representative arrow used when an interaction carries
// more than one distinct arrow tag.
const ArrowMixed = "mixed"

// KnownArrows are the arrow tags the discovery pipeline emits. Stored
// records may carry others (older runs used a looser vocabulary); the set
// is advisory, not enforced at the storage layer.
var KnownArrows = map[string]bool{
	"activates": true,
	"inhibits":  true,
	"binds":     true,
	"complex":   true,
	"regulates": true,
	"modulates": true,
}

// ArrowSet maps a direction bucket to the arrow tags observed in that
// direction. Buckets only ever grow: merging two records unions them.
type ArrowSet map[Direction][]string

// Flip returns a copy of the set with the a_to_b and b_to_a buckets
// swapped. Bidirectional and unknown buckets stay where they are.
func (s ArrowSet) Flip() ArrowSet {
	if s == nil {
		return nil
	}
	out := make(ArrowSet, len(s))
	for dir, arrows := range s {
		out[dir.Flip()] = append([]string(nil), arrows...)
	}
	return out
}

// Clone returns a deep copy of the set.
func (s ArrowSet) Clone() ArrowSet {
	if s == nil {
		return nil
	}
	out := make(ArrowSet, len(s))
	for dir, arrows := range s {
		out[dir] = append([]string(nil), arrows...)
	}
	return out
}

// Union merges other into s and returns the result. Tags are deduplicated
// per bucket; first-seen order is preserved. Neither input is modified.
func (s ArrowSet) Union(other ArrowSet) ArrowSet {
	if s == nil && other == nil {
		return nil
	}
	out := s.Clone()
	if out == nil {
		out = make(ArrowSet, len(other))
	}
	for dir, arrows := range other {
		out[dir] = appendUnique(out[dir], arrows...)
	}
	return out
}

// Representative returns the single arrow tag to display for the whole
// set: the tag itself when exactly one distinct tag appears across all
// buckets, ArrowMixed when several do, and "" for an empty set.
func (s ArrowSet) Representative() string {
	var seen string
	for _, arrows := range s {
		for _, a := range arrows {
			if seen == "" {
				seen = a
				continue
			}
			if a != seen {
				return ArrowMixed
			}
		}
	}
	return seen
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, have := range dst {
			if have == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

// Kind distinguishes directly observed interactions from indirect
// summaries derived from a mediator chain.
type Kind string

const (
	KindDirect   Kind = "direct"
	KindIndirect Kind = "indirect"
)

// Chain is the mediator path recorded on an indirect summary edge.
// Known=false means the record is indirect but the path was never
// captured (first-ring indirect from older runs); a chain is never
// fabricated for such records.
type Chain struct {
	Known     bool     `json:"known"`
	Mediators []string `json:"mediators,omitempty"`
}

// Depth is the hop count of the path: mediators+1 for a known chain,
// and the minimum indirect depth of 2 for an unknown one.
func (c Chain) Depth() int {
	if !c.Known {
		return 2
	}
	return len(c.Mediators) + 1
}

// Upstream is the mediator adjacent to the target endpoint, i.e. the last
// element of a known chain. Empty for unknown or empty chains.
func (c Chain) Upstream() string {
	if !c.Known || len(c.Mediators) == 0 {
		return ""
	}
	return c.Mediators[len(c.Mediators)-1]
}

// Richer reports whether c carries more path information than other.
// Known beats unknown; among known chains, longer beats shorter.
func (c Chain) Richer(other Chain) bool {
	if c.Known != other.Known {
		return c.Known
	}
	return len(c.Mediators) > len(other.Mediators)
}

// Clone returns a deep copy.
func (c Chain) Clone() Chain {
	out := Chain{Known: c.Known}
	if c.Mediators != nil {
		out.Mediators = append([]string(nil), c.Mediators...)
	}
	return out
}

// Interaction is one stored relationship between two proteins, held once
// per unordered pair in canonical order (ProteinAID < ProteinBID). All
// pair-relative fields (Direction, Arrows) are stored relative to that
// canonical order.
type Interaction struct {
	ID int64 `json:"-"`

	ProteinAID int64 `json:"-"`
	ProteinBID int64 `json:"-"`

	// Denormalized symbols of the canonical endpoints, carried so reads
	// do not need a join for display.
	ProteinA string `json:"protein_a"`
	ProteinB string `json:"protein_b"`

	Direction Direction `json:"direction"`

	// Arrow is the representative tag derived from Arrows; kept as its own
	// column so list queries can render without unpacking the buckets.
	Arrow  string   `json:"arrow,omitempty"`
	Arrows ArrowSet `json:"arrows,omitempty"`

	Kind  Kind  `json:"interaction_type"`
	Chain Chain `json:"-"`

	Confidence float64 `json:"confidence,omitempty"`

	// Data is the opaque evidence document from the discovery pipeline.
	// The store merges it shallowly and never interprets it, except for
	// the chain_inferred flag written by chain decomposition.
	Data map[string]any `json:"data,omitempty"`

	// DiscoveredIn is the discovery run that first produced this record.
	DiscoveredIn string `json:"discovered_in_query,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DataFlagChainInferred marks a direct segment that exists only because a
// chain decomposition implied it, as opposed to a directly observed edge.
const DataFlagChainInferred = "chain_inferred"

// ChainInferred reports whether the record's evidence is chain-derived
// rather than directly observed.
func (in *Interaction) ChainInferred() bool {
	if in.Data == nil {
		return false
	}
	v, ok := in.Data[DataFlagChainInferred].(bool)
	return ok && v
}

// PairKey returns the canonical (low, high) id pair for dedup maps.
func (in *Interaction) PairKey() string {
	return fmt.Sprintf("%d:%d", in.ProteinAID, in.ProteinBID)
}

// Involves reports whether the given protein id is one of the endpoints.
func (in *Interaction) Involves(proteinID int64) bool {
	return in.ProteinAID == proteinID || in.ProteinBID == proteinID
}

// OtherEndpoint returns the partner id for the given endpoint id, or 0
// when proteinID is not an endpoint.
func (in *Interaction) OtherEndpoint(proteinID int64) int64 {
	switch proteinID {
	case in.ProteinAID:
		return in.ProteinBID
	case in.ProteinBID:
		return in.ProteinAID
	}
	return 0
}

// Clone returns a deep copy of the record.
func (in *Interaction) Clone() *Interaction {
	out := *in
	out.Arrows = in.Arrows.Clone()
	out.Chain = in.Chain.Clone()
	if in.Data != nil {
		out.Data = make(map[string]any, len(in.Data))
		for k, v := range in.Data {
			out.Data[k] = v
		}
	}
	return &out
}

// MergeFrom folds a freshly canonicalized record into the stored one.
// Both records must describe the same canonical pair. The rules:
//
//   - arrow buckets union, they never shrink;
//   - the representative arrow and confidence follow the merged buckets
//     and the incoming record;
//   - direction widens to bidirectional when the two disagree on a
//     one-way direction, otherwise the more specific value wins;
//   - a direct kind always wins over indirect, but chain metadata already
//     recorded is retained rather than erased;
//   - chain metadata upgrades only (never Known back to unknown, never a
//     shorter path over a longer one);
//   - evidence documents merge shallowly, incoming keys win, except that
//     the chain_inferred flag survives only while every contribution is
//     chain-inferred; one directly observed contribution clears it for good.
func (in *Interaction) MergeFrom(incoming *Interaction) {
	in.Arrows = in.Arrows.Union(incoming.Arrows)
	if rep := in.Arrows.Representative(); rep != "" {
		in.Arrow = rep
	} else if incoming.Arrow != "" {
		in.Arrow = incoming.Arrow
	}

	in.Direction = mergeDirections(in.Direction, incoming.Direction)

	wasInferred := in.ChainInferred()
	if incoming.Data != nil {
		if in.Data == nil {
			in.Data = make(map[string]any, len(incoming.Data))
		}
		for k, v := range incoming.Data {
			in.Data[k] = v
		}
	}

	if incoming.Kind == KindDirect {
		in.Kind = KindDirect
	}
	// The inferred marker survives only while every contribution is
	// inferred; direct observation on either side clears it for good.
	if !(wasInferred && incoming.ChainInferred()) {
		delete(in.Data, DataFlagChainInferred)
	}
	if in.Kind == KindIndirect || incoming.Kind == KindIndirect {
		if incoming.Chain.Richer(in.Chain) {
			in.Chain = incoming.Chain.Clone()
		}
	}

	if incoming.Confidence > 0 {
		in.Confidence = incoming.Confidence
	}
	if in.DiscoveredIn == "" {
		in.DiscoveredIn = incoming.DiscoveredIn
	}
}

func mergeDirections(have, add Direction) Direction {
	if have == add {
		return have
	}
	switch {
	case have == DirectionUnknown || have == "":
		return add
	case add == DirectionUnknown || add == "":
		return have
	default:
		// a_to_b vs b_to_a, or either vs bidirectional: the pair has been
		// observed pointing both ways.
		return DirectionBidirectional
	}
}

// ResolvedInteraction is an Interaction re-expressed from one endpoint's
// point of view: Subject is the viewpoint protein, Partner the other
// endpoint, and Direction/Arrows read subject-relative.
type ResolvedInteraction struct {
	Subject    string         `json:"subject"`
	Partner    string         `json:"partner"`
	Direction  Direction      `json:"direction"`
	Arrow      string         `json:"arrow,omitempty"`
	Arrows     ArrowSet       `json:"arrows,omitempty"`
	Kind       Kind           `json:"interaction_type"`
	Chain      Chain          `json:"chain"`
	Confidence float64        `json:"confidence,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Link is an edge between two non-focal proteins in a composed view,
// expressed source-to-target so renderers need no further resolution.
type Link struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Direction Direction `json:"direction"`
	Arrow     string    `json:"arrow,omitempty"`
	Kind      Kind      `json:"interaction_type"`
}
