package callident

import (
	"fmt"
	"slices"
)

// EdgeKind distinguishes call sites from ordinary branches in the filtered
// CFG.
type EdgeKind uint8

// Recognized edge kinds.
const (
	EdgeOrdinary EdgeKind = iota
	EdgeCall
	EdgeFallthrough
	EdgeReturn
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeOrdinary:
		return "ordinary"
	case EdgeCall:
		return "call"
	case EdgeFallthrough:
		return "fallthrough"
	case EdgeReturn:
		return "return"
	default:
		return fmt.Sprintf("edge(%d)", uint8(k))
	}
}

// Edge is a labeled edge of the filtered CFG.
type Edge struct {
	From *BasicBlock
	To   *BasicBlock
	Kind EdgeKind
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s [%s]", e.From, e.To, e.Kind)
}

// Node is a basic block of the filtered CFG together with its labeled edges.
type Node struct {
	Block *BasicBlock
	// Call is set when the block ends with a call-like terminator.
	Call *CallSite

	successors   []Edge
	predecessors []Edge
}

// Successors returns the outgoing edges of n.
func (n *Node) Successors() []Edge { return slices.Clone(n.successors) }

// Predecessors returns the incoming edges of n.
func (n *Node) Predecessors() []Edge { return slices.Clone(n.predecessors) }

// FilteredCFG is the control-flow graph of a module where call sites are
// labeled apart from ordinary branches. It is read-only once returned by a
// Pass.
type FilteredCFG struct {
	nodes map[*BasicBlock]*Node
	order []*Node
}

func newFilteredCFG() *FilteredCFG {
	return &FilteredCFG{nodes: make(map[*BasicBlock]*Node)}
}

// Node returns the node of b, or nil if b is not part of the graph.
func (g *FilteredCFG) Node(b *BasicBlock) *Node {
	return g.nodes[b]
}

// Len returns the number of nodes.
func (g *FilteredCFG) Len() int {
	return len(g.order)
}

// Nodes returns the nodes ordered by block start address. Blocks sharing an
// address keep their insertion order.
func (g *FilteredCFG) Nodes() []*Node {
	nodes := slices.Clone(g.order)
	slices.SortStableFunc(nodes, func(a, b *Node) int {
		return a.Block.Start.Compare(b.Block.Start)
	})
	return nodes
}

// Edges returns every edge, grouped by source node in Nodes order.
func (g *FilteredCFG) Edges() []Edge {
	var edges []Edge
	for _, n := range g.Nodes() {
		edges = append(edges, n.successors...)
	}
	return edges
}

// Successors returns the targets of the edges leaving b. When kinds is not
// empty, only edges of those kinds are followed.
func (g *FilteredCFG) Successors(b *BasicBlock, kinds ...EdgeKind) []*BasicBlock {
	n := g.nodes[b]
	if n == nil {
		return nil
	}
	var result []*BasicBlock
	for _, e := range n.successors {
		if len(kinds) == 0 || slices.Contains(kinds, e.Kind) {
			result = append(result, e.To)
		}
	}
	return result
}

// Predecessors returns the sources of the edges reaching b. When kinds is
// not empty, only edges of those kinds are followed.
func (g *FilteredCFG) Predecessors(b *BasicBlock, kinds ...EdgeKind) []*BasicBlock {
	n := g.nodes[b]
	if n == nil {
		return nil
	}
	var result []*BasicBlock
	for _, e := range n.predecessors {
		if len(kinds) == 0 || slices.Contains(kinds, e.Kind) {
			result = append(result, e.From)
		}
	}
	return result
}

// CallSites returns the decoded call sites in Nodes order.
func (g *FilteredCFG) CallSites() []*CallSite {
	var sites []*CallSite
	for _, n := range g.Nodes() {
		if n.Call != nil {
			sites = append(sites, n.Call)
		}
	}
	return sites
}

func (g *FilteredCFG) node(b *BasicBlock) *Node {
	n, ok := g.nodes[b]
	if !ok {
		n = &Node{Block: b}
		g.nodes[b] = n
		g.order = append(g.order, n)
	}
	return n
}

func (g *FilteredCFG) addEdge(e Edge) {
	from := g.node(e.From)
	to := g.node(e.To)
	from.successors = append(from.successors, e)
	to.predecessors = append(to.predecessors, e)
}

// merge adds the blocks, edges and call sites of a function fragment.
func (g *FilteredCFG) merge(f *fragment) {
	for _, b := range f.fn.Blocks {
		g.node(b)
	}
	for _, site := range f.calls {
		g.node(site.Caller).Call = site
	}
	for _, e := range f.edges {
		g.addEdge(e)
	}
}
