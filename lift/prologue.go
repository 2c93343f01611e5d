package lift

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// PrologueType is the shape of a function prologue.
type PrologueType string

// Recognized function prologue patterns.
const (
	PrologueClassic        PrologueType = "classic"
	PrologueNoFramePointer PrologueType = "no-frame-pointer"
	ProloguePushOnly       PrologueType = "push-only"
	PrologueLEABased       PrologueType = "lea-based"
)

// Prologue is a likely function entry found by pattern matching.
type Prologue struct {
	Address      uint64       `json:"address"`
	Type         PrologueType `json:"type"`
	Instructions string       `json:"instructions"`
}

// DetectPrologues scans x86-64 code for function prologues. Lift uses them
// as extra block leaders, since a function entry reached only through an
// indirect call is not the target of any decoded branch.
func DetectPrologues(code []byte, baseAddr uint64) []Prologue {
	var result []Prologue

	offset := 0
	addr := baseAddr
	var prev *x86asm.Inst

	// Only an instruction at the start of code or right after a ret can
	// open a function on its own.
	atEntry := func() bool {
		return prev == nil || prev.Op == x86asm.RET
	}

	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil || inst.Op == 0 {
			offset++
			addr++
			prev = nil
			continue
		}

		switch {
		case prev != nil &&
			prev.Op == x86asm.PUSH && prev.Args[0] == x86asm.RBP &&
			inst.Op == x86asm.MOV && inst.Args[0] == x86asm.RBP && inst.Args[1] == x86asm.RSP:
			result = append(result, Prologue{
				Address:      addr - uint64(prev.Len),
				Type:         PrologueClassic,
				Instructions: "push rbp; mov rbp, rsp",
			})

		case inst.Op == x86asm.SUB && inst.Args[0] == x86asm.RSP && atEntry():
			if imm, ok := inst.Args[1].(x86asm.Imm); ok && imm > 0 {
				result = append(result, Prologue{
					Address:      addr,
					Type:         PrologueNoFramePointer,
					Instructions: fmt.Sprintf("sub rsp, 0x%x", imm),
				})
			}

		case inst.Op == x86asm.PUSH && inst.Args[0] == x86asm.RBP && atEntry():
			result = append(result, Prologue{
				Address:      addr,
				Type:         ProloguePushOnly,
				Instructions: "push rbp",
			})

		case inst.Op == x86asm.LEA && inst.Args[0] == x86asm.RSP && atEntry():
			result = append(result, Prologue{
				Address:      addr,
				Type:         PrologueLEABased,
				Instructions: "lea rsp, [rsp-offset]",
			})
		}

		prev = &inst
		offset += inst.Len
		addr += uint64(inst.Len)
	}

	return result
}
