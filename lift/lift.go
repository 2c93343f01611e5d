package lift

import (
	"debug/elf"
	"fmt"
	"io"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/maxgio92/callident"
	"github.com/maxgio92/callident/internal/logfields"
)

// Names of the symbols declared by lifted modules.
const (
	FunctionCallName = "function_call"
	NewPCName        = "newpc"
	RootFunctionName = "root"
)

var log = logrus.WithField(logfields.LogSubsys, "lift")

// Config controls how machine code is lifted.
type Config struct {
	Arch     Arch
	BaseAddr uint64
	// PrologueLeaders starts a new block at every detected prologue. It is
	// only honored on AMD64.
	PrologueLeaders bool
}

// DefaultConfig returns the configuration used by FromELF for arch.
func DefaultConfig(arch Arch) Config {
	return Config{
		Arch:            arch,
		PrologueLeaders: true,
	}
}

// Lift splits code into basic blocks and returns a module with a single
// "root" function holding all of them.
//
// Every machine instruction is introduced by a "newpc" marker carrying its
// address and size. Call instructions end their block with a
// "function_call" marker whose operands are the callee block (or NoBlock
// for indirect calls), the block of the next instruction and the return
// address, followed by a branch to the callee.
func Lift(code []byte, cfg Config) (*callident.Module, error) {
	insns, err := Decode(code, cfg.BaseAddr, cfg.Arch)
	if err != nil {
		return nil, fmt.Errorf("failed to decode code: %w", err)
	}

	l := &lifter{
		module: callident.NewModule(),
		blocks: make(map[uint64]*callident.BasicBlock),
	}
	l.functionCall = l.module.Declare(FunctionCallName, callident.MarkerFunctionCall)
	l.newPC = l.module.Declare(NewPCName, callident.MarkerNewPC)
	l.fn = l.module.NewFunction(RootFunctionName)

	var prologues []Prologue
	if cfg.PrologueLeaders && cfg.Arch == ArchAMD64 {
		prologues = DetectPrologues(code, cfg.BaseAddr)
	}

	for _, leader := range leaders(insns, prologues) {
		l.blocks[leader] = l.fn.NewBlock(callident.MetaAddress(leader))
	}
	l.emit(insns)

	log.WithFields(logrus.Fields{
		logfields.Arch:         cfg.Arch,
		logfields.Instructions: len(insns),
		logfields.Blocks:       len(l.fn.Blocks),
		logfields.Prologues:    len(prologues),
	}).Debug("Lifted code")

	return l.module, nil
}

// FromELF lifts the .text section of an ELF binary. The architecture is
// inferred from the ELF header.
func FromELF(r io.ReaderAt) (*callident.Module, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer f.Close()

	textSec := f.Section(".text")
	if textSec == nil {
		return nil, fmt.Errorf("no .text section found")
	}

	code, err := textSec.Data()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read .text section: %w", err)
	}

	var cfg Config
	switch f.Machine {
	case elf.EM_X86_64:
		cfg = DefaultConfig(ArchAMD64)
	case elf.EM_AARCH64:
		cfg = DefaultConfig(ArchARM64)
	default:
		return nil, fmt.Errorf("unsupported ELF machine: %s", f.Machine)
	}
	cfg.BaseAddr = textSec.Addr

	return Lift(code, cfg)
}

// leaders returns the sorted addresses starting a basic block: the first
// instruction, every in-range branch target, every instruction following a
// control transfer and every prologue.
func leaders(insns []Insn, prologues []Prologue) []uint64 {
	if len(insns) == 0 {
		return nil
	}

	starts := make(map[uint64]struct{}, len(insns))
	for _, insn := range insns {
		starts[insn.Addr] = struct{}{}
	}

	set := map[uint64]struct{}{insns[0].Addr: {}}
	add := func(addr uint64) {
		if _, ok := starts[addr]; ok {
			set[addr] = struct{}{}
		}
	}

	for i, insn := range insns {
		if !insn.Flow.IsTransfer() {
			continue
		}
		if insn.HasTarget {
			add(insn.Target)
		}
		if i+1 < len(insns) {
			add(insns[i+1].Addr)
		}
	}
	for _, p := range prologues {
		add(p.Address)
	}

	result := make([]uint64, 0, len(set))
	for addr := range set {
		result = append(result, addr)
	}
	slices.Sort(result)
	return result
}

type lifter struct {
	module       *callident.Module
	fn           *callident.Function
	functionCall *callident.Symbol
	newPC        *callident.Symbol
	blocks       map[uint64]*callident.BasicBlock
}

// blockAt returns the block starting at addr. Past the end of the code a
// trap block is created so that every call has a fallthrough.
func (l *lifter) blockAt(addr uint64, end uint64) *callident.BasicBlock {
	if b, ok := l.blocks[addr]; ok {
		return b
	}
	if addr != end {
		return nil
	}
	b := l.fn.NewBlock(callident.MetaAddress(addr))
	b.Unreachable()
	l.blocks[addr] = b
	return b
}

func (l *lifter) emit(insns []Insn) {
	if len(insns) == 0 {
		return
	}
	end := insns[len(insns)-1].Next()

	var cur *callident.BasicBlock
	for i, insn := range insns {
		if b, ok := l.blocks[insn.Addr]; ok {
			cur = b
		}

		cur.Mark(l.newPC, callident.Const{Value: insn.Addr}, callident.Const{Value: uint64(insn.Len)})
		cur.Append(insn.Text)

		var target *callident.BasicBlock
		if insn.HasTarget {
			target = l.blocks[insn.Target]
		}

		switch insn.Flow {
		case FlowCall, FlowIndirectCall:
			var callee callident.Operand = callident.NoBlock{}
			if target != nil {
				callee = callident.BlockAddress{Block: target}
			}
			next := l.blockAt(insn.Next(), end)
			cur.Mark(l.functionCall, callee, callident.BlockAddress{Block: next}, callident.Const{Value: insn.Next()})
			if target != nil {
				cur.Branch(target)
			} else {
				cur.IndirectBranch()
			}

		case FlowJump:
			if target != nil {
				cur.Branch(target)
			} else {
				cur.IndirectBranch()
			}

		case FlowCondJump:
			next := l.blockAt(insn.Next(), end)
			if target != nil {
				cur.CondBranch(target, next)
			} else {
				cur.IndirectBranch(next)
			}

		case FlowIndirectJump:
			cur.IndirectBranch()

		case FlowReturn:
			cur.Return()

		case FlowTrap:
			cur.Unreachable()

		default:
			// Straight-line code only ends a block when the next
			// instruction is a leader.
			if i+1 == len(insns) {
				cur.Unreachable()
			} else if next, ok := l.blocks[insns[i+1].Addr]; ok {
				cur.Branch(next)
			}
		}
	}
}
