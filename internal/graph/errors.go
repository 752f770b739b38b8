// Package graph implements the pair-relative semantics of the interaction
// store: canonical ordering on write, perspective resolution on read, chain
// decomposition, and view composition.
package graph

import "errors"

var (
	// ErrSelfInteraction indicates both endpoints resolve to the same protein.
	ErrSelfInteraction = errors.New("interaction endpoints are the same protein")

	// ErrNotAnEndpoint indicates the viewpoint protein is not an endpoint of
	// the interaction being resolved.
	ErrNotAnEndpoint = errors.New("protein is not an endpoint of this interaction")

	// ErrMalformedChain indicates a mediator chain that cannot be decomposed:
	// an unresolvable member, a cycle, or a mediator equal to an endpoint.
	ErrMalformedChain = errors.New("malformed mediator chain")
)
