// Package callident identifies function calls in a lifted control-flow
// graph and labels them apart from ordinary branches.
//
// A lifter translating machine code to the [Module] IR emits marker
// pseudo-calls next to the instructions it produces. The marker of kind
// [MarkerFunctionCall] sits right before the terminator of a block ending
// with a call and carries three operands: the callee block, the block
// execution resumes at once the callee returns, and the return address.
//
// # Marker Recognition
//
// [Pass.GetCall] scans the instructions preceding a terminator for the
// function call marker. Markers of other kinds are skipped; any ordinary
// instruction, helper calls included, ends the scan. A terminator is
// call-like when the scan finds a marker.
//
// # Fallthroughs
//
// [Pass.GetFallthrough] returns the return site of a call-like terminator.
// Every return site is recorded in a [FallthroughIndex], queried through
// [Pass.IsFallthrough] and its variants.
//
// # Filtered CFG
//
// [Pass.Run] builds a [FilteredCFG] where call-like blocks lose their
// raw successors in favor of an [EdgeCall] edge to the callee and an
// [EdgeFallthrough] edge to the return site. Functions are classified
// concurrently when the pass is created with [WithParallelism].
//
// # Post-dominated Calls
//
// [Pass.FindPostDominatedCall] looks for a function call marker in a block
// and then along its chain of single predecessors. It is not a full
// post-dominator computation: the search stops at the first block with zero
// or several predecessors.
//
// The lift subpackage provides a front end producing modules from x86-64
// and ARM64 machine code and ELF executables.
package callident
