package callident

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// FallthroughIndex is the set of addresses execution resumes at after a
// call returns.
type FallthroughIndex struct {
	addrs mapset.Set[MetaAddress]
}

// NewFallthroughIndex returns an empty index. A concurrent index can be
// populated from several goroutines at once.
func NewFallthroughIndex(concurrent bool) *FallthroughIndex {
	if concurrent {
		return &FallthroughIndex{addrs: mapset.NewSet[MetaAddress]()}
	}
	return &FallthroughIndex{addrs: mapset.NewThreadUnsafeSet[MetaAddress]()}
}

// Register adds addr to the index. Registering an address twice is a no-op.
func (x *FallthroughIndex) Register(addr MetaAddress) {
	x.addrs.Add(addr)
}

// Contains reports whether addr is the fallthrough of some call.
func (x *FallthroughIndex) Contains(addr MetaAddress) bool {
	return x.addrs.Contains(addr)
}

// ContainsBlock reports whether the start address of b is indexed.
func (x *FallthroughIndex) ContainsBlock(b *BasicBlock) bool {
	return x.Contains(b.Start)
}

// ContainsTerminator reports whether the block ending with t is indexed.
func (x *FallthroughIndex) ContainsTerminator(t *Instruction) bool {
	mustBeTerminator(t)
	return x.ContainsBlock(t.Block())
}

// Len returns the number of indexed addresses.
func (x *FallthroughIndex) Len() int {
	return x.addrs.Cardinality()
}

// Addresses returns the indexed addresses in ascending order.
func (x *FallthroughIndex) Addresses() []MetaAddress {
	addrs := x.addrs.ToSlice()
	slices.Sort(addrs)
	return addrs
}
