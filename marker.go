package callident

import (
	"errors"
	"fmt"
)

// ErrMalformedMarker is returned when a function call marker does not carry
// the (callee, fallthrough, return address) operand triple.
var ErrMalformedMarker = errors.New("malformed function call marker")

// CallSite is a decoded function call marker.
type CallSite struct {
	Marker *Instruction
	Caller *BasicBlock
	// Callee is nil when the call target is not statically known.
	Callee        *BasicBlock
	Fallthrough   *BasicBlock
	ReturnAddress MetaAddress
}

// DecodeCallSite extracts the operands of a function call marker.
func DecodeCallSite(marker *Instruction) (*CallSite, error) {
	if marker == nil || marker.Op != OpCall || marker.Callee == nil || marker.Callee.Kind != MarkerFunctionCall {
		return nil, fmt.Errorf("%w: %v is not a function call marker", ErrMalformedMarker, marker)
	}
	if len(marker.Operands) != 3 {
		return nil, fmt.Errorf("%w: %v has %d operands, expected 3", ErrMalformedMarker, marker, len(marker.Operands))
	}

	site := &CallSite{
		Marker: marker,
		Caller: marker.Block(),
	}

	switch op := marker.Operands[0].(type) {
	case BlockAddress:
		if op.Block == nil {
			return nil, fmt.Errorf("%w: %v has a nil callee block", ErrMalformedMarker, marker)
		}
		site.Callee = op.Block
	case NoBlock:
		// Indirect call
	default:
		return nil, fmt.Errorf("%w: %v callee operand is %T, not a block reference", ErrMalformedMarker, marker, op)
	}

	next, ok := marker.Operands[1].(BlockAddress)
	if !ok || next.Block == nil {
		return nil, fmt.Errorf("%w: %v fallthrough operand is not a block reference", ErrMalformedMarker, marker)
	}
	site.Fallthrough = next.Block

	ret, ok := marker.Operands[2].(Const)
	if !ok {
		return nil, fmt.Errorf("%w: %v return address operand is %T, not a constant", ErrMalformedMarker, marker, marker.Operands[2])
	}
	site.ReturnAddress = MetaAddress(ret.Value)

	return site, nil
}

// recognizer classifies terminators against the function call symbol of a
// module. It holds no mutable state and is safe for concurrent use.
type recognizer struct {
	functionCall *Symbol
}

func (r recognizer) isFunctionCall(i *Instruction) bool {
	return r.functionCall != nil && i.Op == OpCall && i.Callee == r.functionCall
}

// getCall walks the markers immediately preceding t and returns the first
// function call marker. Other marker kinds are skipped; any ordinary
// instruction stops the walk.
func (r recognizer) getCall(t *Instruction) *Instruction {
	mustBeTerminator(t)

	for prev := t.Previous(); prev != nil && prev.IsMarker(); prev = prev.Previous() {
		if r.isFunctionCall(prev) {
			return prev
		}
	}

	return nil
}

// fallthroughOf returns the block execution resumes at once the call ending
// with t returns. t must be call-like.
func (r recognizer) fallthroughOf(t *Instruction) *BasicBlock {
	call := r.getCall(t)
	if call == nil {
		panic(fmt.Sprintf("callident: %v is not a function call", t))
	}

	site, err := DecodeCallSite(call)
	if err != nil {
		panic(fmt.Sprintf("callident: %v", err))
	}
	return site.Fallthrough
}

// findPostDominatedCall scans b backwards for a function call marker and,
// failing that, moves to the single predecessor of b. It gives up on blocks
// with zero or several predecessors.
func (r recognizer) findPostDominatedCall(b *BasicBlock) *Instruction {
	seen := make(map[*BasicBlock]struct{})
	for b != nil {
		if _, ok := seen[b]; ok {
			return nil
		}
		seen[b] = struct{}{}

		for i := len(b.Instructions) - 1; i >= 0; i-- {
			if in := b.Instructions[i]; r.isFunctionCall(in) {
				return in
			}
		}

		b = b.SinglePredecessor()
	}

	return nil
}

func mustBeTerminator(t *Instruction) {
	if t == nil {
		panic("callident: nil terminator")
	}
	if !t.IsTerminator() {
		panic(fmt.Sprintf("callident: %v is not a terminator", t))
	}
}
