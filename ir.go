package callident

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNoFunctionCallSymbol is returned when a module declares no symbol
	// of kind MarkerFunctionCall.
	ErrNoFunctionCallSymbol = errors.New("no function call marker symbol declared")

	// ErrDuplicateFunctionCallSymbol is returned when a module declares more
	// than one symbol of kind MarkerFunctionCall.
	ErrDuplicateFunctionCallSymbol = errors.New("multiple function call marker symbols declared")

	// ErrInconsistentBlock is returned when a block was assembled through
	// its exported fields instead of the builder methods.
	ErrInconsistentBlock = errors.New("inconsistent block")
)

// MarkerKind tells apart the pseudo-functions injected by the lifter from
// ordinary helper functions.
type MarkerKind uint8

// Recognized marker kinds.
const (
	MarkerNone MarkerKind = iota // Ordinary helper, not a marker
	MarkerFunctionCall
	MarkerNewPC
	MarkerExitTB
	MarkerJumpTarget
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerNone:
		return "none"
	case MarkerFunctionCall:
		return "function_call"
	case MarkerNewPC:
		return "newpc"
	case MarkerExitTB:
		return "exitTB"
	case MarkerJumpTarget:
		return "jump_target"
	default:
		return fmt.Sprintf("marker(%d)", uint8(k))
	}
}

// Symbol is a function declared by the module and referenced by OpCall
// instructions.
type Symbol struct {
	Name string
	Kind MarkerKind
}

// Module is the lifted program: its functions and the symbols they call.
type Module struct {
	Functions []*Function
	Symbols   []*Symbol
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{}
}

// Declare adds a symbol to the module and returns it.
func (m *Module) Declare(name string, kind MarkerKind) *Symbol {
	sym := &Symbol{Name: name, Kind: kind}
	m.Symbols = append(m.Symbols, sym)
	return sym
}

// NewFunction appends an empty function to the module.
func (m *Module) NewFunction(name string) *Function {
	fn := &Function{Name: name, module: m}
	m.Functions = append(m.Functions, fn)
	return fn
}

// FunctionCallSymbol returns the only symbol of kind MarkerFunctionCall.
func (m *Module) FunctionCallSymbol() (*Symbol, error) {
	var found *Symbol
	for _, sym := range m.Symbols {
		if sym.Kind != MarkerFunctionCall {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q and %q", ErrDuplicateFunctionCallSymbol, found.Name, sym.Name)
		}
		found = sym
	}
	if found == nil {
		return nil, ErrNoFunctionCallSymbol
	}
	return found, nil
}

// Function owns an ordered list of basic blocks.
type Function struct {
	Name   string
	Blocks []*BasicBlock

	module *Module
}

// Module returns the module the function belongs to.
func (f *Function) Module() *Module { return f.module }

// NewBlock appends an empty block starting at addr.
func (f *Function) NewBlock(addr MetaAddress) *BasicBlock {
	b := &BasicBlock{Start: addr, parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// BasicBlock is a straight-line run of instructions ending in exactly one
// terminator. Blocks are allocated with Function.NewBlock and filled with
// the builder methods, which maintain the instruction and predecessor
// links; the exported fields are read-only.
type BasicBlock struct {
	Start        MetaAddress
	Instructions []*Instruction

	parent *Function
	preds  []*BasicBlock
}

// Parent returns the function owning the block.
func (b *BasicBlock) Parent() *Function { return b.parent }

// verify checks that b was built through its function and the builder
// methods: instructions point back at b in slice order, only the last one
// is a terminator, and every successor lists b among its predecessors.
func (b *BasicBlock) verify(fn *Function) error {
	if b.parent != fn {
		return fmt.Errorf("%w: %s is not owned by function %s", ErrInconsistentBlock, b, fn.Name)
	}
	for i, in := range b.Instructions {
		if in.block != b || in.index != i {
			return fmt.Errorf("%w: instruction %d of %s is not linked to it", ErrInconsistentBlock, i, b)
		}
		if in.IsTerminator() && i != len(b.Instructions)-1 {
			return fmt.Errorf("%w: %s has a terminator at position %d", ErrInconsistentBlock, b, i)
		}
	}
	for _, succ := range b.Successors() {
		if succ == nil || !slices.Contains(succ.preds, b) {
			return fmt.Errorf("%w: successor %v does not list %s as predecessor", ErrInconsistentBlock, succ, b)
		}
	}
	return nil
}

func (b *BasicBlock) String() string {
	return "bb." + b.Start.String()
}

// Terminator returns the last instruction of the block, or nil when the
// block has not been terminated yet.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// Successors returns the successors of the block's terminator.
func (b *BasicBlock) Successors() []*BasicBlock {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	return t.Successors
}

// Predecessors returns the distinct blocks branching to b.
func (b *BasicBlock) Predecessors() []*BasicBlock {
	return slices.Clone(b.preds)
}

// SinglePredecessor returns the predecessor of b if it has exactly one,
// nil otherwise.
func (b *BasicBlock) SinglePredecessor() *BasicBlock {
	if len(b.preds) != 1 {
		return nil
	}
	return b.preds[0]
}

// Append adds an ordinary, non-call operation to the block.
func (b *BasicBlock) Append(text string) *Instruction {
	return b.push(&Instruction{Op: OpPlain, Text: text})
}

// Mark adds a call to sym. When sym is a marker the call is a marker
// annotation, otherwise it is an ordinary helper call.
func (b *BasicBlock) Mark(sym *Symbol, operands ...Operand) *Instruction {
	return b.push(&Instruction{Op: OpCall, Callee: sym, Operands: operands})
}

// Branch terminates the block with an unconditional branch.
func (b *BasicBlock) Branch(target *BasicBlock) *Instruction {
	return b.terminate(OpBranch, target)
}

// CondBranch terminates the block with a two-way conditional branch.
func (b *BasicBlock) CondBranch(taken, notTaken *BasicBlock) *Instruction {
	return b.terminate(OpCondBranch, taken, notTaken)
}

// IndirectBranch terminates the block with a branch whose destination is
// computed at run time. targets lists the destinations known statically.
func (b *BasicBlock) IndirectBranch(targets ...*BasicBlock) *Instruction {
	return b.terminate(OpIndirectBranch, targets...)
}

// Return terminates the block with a return to the caller.
func (b *BasicBlock) Return(targets ...*BasicBlock) *Instruction {
	return b.terminate(OpReturn, targets...)
}

// Unreachable terminates the block with a trap.
func (b *BasicBlock) Unreachable() *Instruction {
	return b.terminate(OpUnreachable)
}

func (b *BasicBlock) terminate(op Opcode, targets ...*BasicBlock) *Instruction {
	for _, t := range targets {
		if t == nil {
			panic(fmt.Sprintf("callident: nil successor for %s terminator in %s", op, b))
		}
	}
	in := b.push(&Instruction{Op: op, Successors: targets})
	for _, t := range targets {
		t.addPredecessor(b)
	}
	return in
}

func (b *BasicBlock) push(in *Instruction) *Instruction {
	if b.Terminator() != nil {
		panic(fmt.Sprintf("callident: %s is already terminated", b))
	}
	in.block = b
	in.index = len(b.Instructions)
	b.Instructions = append(b.Instructions, in)
	return in
}

func (b *BasicBlock) addPredecessor(pred *BasicBlock) {
	if slices.Contains(b.preds, pred) {
		return
	}
	b.preds = append(b.preds, pred)
}

// Opcode is the operation performed by an instruction.
type Opcode uint8

// Recognized opcodes. Every opcode from OpBranch on is a terminator.
const (
	OpPlain Opcode = iota
	OpCall
	OpBranch
	OpCondBranch
	OpIndirectBranch
	OpReturn
	OpUnreachable
)

func (op Opcode) String() string {
	switch op {
	case OpPlain:
		return "plain"
	case OpCall:
		return "call"
	case OpBranch:
		return "br"
	case OpCondBranch:
		return "condbr"
	case OpIndirectBranch:
		return "indirectbr"
	case OpReturn:
		return "ret"
	case OpUnreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op >= OpBranch
}

// Instruction is a single operation of a basic block.
type Instruction struct {
	Op Opcode

	// Callee and Operands are set for OpCall only.
	Callee   *Symbol
	Operands []Operand

	// Successors is set for terminators only.
	Successors []*BasicBlock

	// Text is a free-form description, typically the disassembly of the
	// originating machine instruction.
	Text string

	block *BasicBlock
	index int
}

// Block returns the block containing the instruction.
func (i *Instruction) Block() *BasicBlock { return i.block }

// IsTerminator reports whether i is the last instruction of its block.
func (i *Instruction) IsTerminator() bool { return i.Op.IsTerminator() }

// IsMarker reports whether i is a call to a marker pseudo-function.
func (i *Instruction) IsMarker() bool {
	return i.Op == OpCall && i.Callee != nil && i.Callee.Kind != MarkerNone
}

// Previous returns the instruction preceding i in the same block, or nil
// when i is the first one.
func (i *Instruction) Previous() *Instruction {
	if i.block == nil || i.index == 0 {
		return nil
	}
	return i.block.Instructions[i.index-1]
}

func (i *Instruction) String() string {
	var where string
	if i.block != nil {
		where = fmt.Sprintf("%s[%d]", i.block, i.index)
	}
	if i.Op == OpCall && i.Callee != nil {
		return fmt.Sprintf("%s call %s", where, i.Callee.Name)
	}
	return fmt.Sprintf("%s %s", where, i.Op)
}

// Operand is an argument of an OpCall instruction.
type Operand interface {
	isOperand()
}

// BlockAddress references a basic block.
type BlockAddress struct {
	Block *BasicBlock
}

// Const is an integer constant.
type Const struct {
	Value uint64
}

// NoBlock stands for a block reference that could not be resolved, such as
// the callee of an indirect call.
type NoBlock struct{}

func (BlockAddress) isOperand() {}
func (Const) isOperand()        {}
func (NoBlock) isOperand()      {}
