package callident

import (
	"errors"
	"fmt"
)

// ErrMissingTerminator is returned when a block of the input module does not
// end with a terminator.
var ErrMissingTerminator = errors.New("block has no terminator")

// fragment is the part of the filtered CFG contributed by one function.
// Fragments of different functions are disjoint.
type fragment struct {
	fn    *Function
	edges []Edge
	calls []*CallSite
}

// buildFilteredCFG classifies every terminator of fn. Call-like blocks get a
// call edge to the callee and a fallthrough edge to the return site, whose
// address is registered in index; other blocks keep their outgoing edges.
func (r recognizer) buildFilteredCFG(fn *Function, index *FallthroughIndex) (*fragment, error) {
	frag := &fragment{fn: fn}

	for _, b := range fn.Blocks {
		t := b.Terminator()
		if t == nil {
			return nil, fmt.Errorf("%w: %s in function %s", ErrMissingTerminator, b, fn.Name)
		}
		if err := b.verify(fn); err != nil {
			return nil, err
		}

		marker := r.getCall(t)
		if marker == nil {
			kind := EdgeOrdinary
			if t.Op == OpReturn {
				kind = EdgeReturn
			}
			for _, succ := range t.Successors {
				frag.edges = append(frag.edges, Edge{From: b, To: succ, Kind: kind})
			}
			continue
		}

		site, err := DecodeCallSite(marker)
		if err != nil {
			return nil, fmt.Errorf("failed to decode call in %s of function %s: %w", b, fn.Name, err)
		}

		index.Register(site.Fallthrough.Start)
		if site.Callee != nil {
			frag.edges = append(frag.edges, Edge{From: b, To: site.Callee, Kind: EdgeCall})
		}
		frag.edges = append(frag.edges, Edge{From: b, To: site.Fallthrough, Kind: EdgeFallthrough})
		frag.calls = append(frag.calls, site)
	}

	return frag, nil
}
