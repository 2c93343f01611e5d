package lift

import (
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Arch is a supported instruction set.
type Arch string

// Supported architectures.
const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
)

// Flow is the way a machine instruction transfers control.
type Flow string

// Recognized control transfers.
const (
	FlowNone         Flow = "none"
	FlowCall         Flow = "call"
	FlowIndirectCall Flow = "indirect-call"
	FlowJump         Flow = "jump"
	FlowCondJump     Flow = "cond-jump"
	FlowIndirectJump Flow = "indirect-jump"
	FlowReturn       Flow = "return"
	FlowTrap         Flow = "trap"
)

// IsTransfer reports whether f ends a basic block.
func (f Flow) IsTransfer() bool {
	return f != FlowNone
}

// Insn is a decoded machine instruction.
type Insn struct {
	Addr uint64 `json:"addr"`
	Len  int    `json:"len"`
	Text string `json:"text"`
	Flow Flow   `json:"flow"`
	// Target is the statically known destination of a direct transfer.
	Target    uint64 `json:"target,omitempty"`
	HasTarget bool   `json:"has_target"`
}

// Next returns the address of the instruction following i.
func (i Insn) Next() uint64 {
	return i.Addr + uint64(i.Len)
}

// Decode performs a linear sweep over code and classifies the control
// transfer of every instruction. Bytes that do not decode become one-byte
// "(bad)" instructions so that every address of code is covered.
func Decode(code []byte, baseAddr uint64, arch Arch) ([]Insn, error) {
	switch arch {
	case ArchAMD64:
		return decodeAMD64(code, baseAddr), nil
	case ArchARM64:
		return decodeARM64(code, baseAddr), nil
	default:
		return nil, fmt.Errorf("unsupported architecture: %s", arch)
	}
}

func decodeAMD64(code []byte, baseAddr uint64) []Insn {
	var result []Insn

	offset := 0
	addr := baseAddr

	for offset < len(code) {
		// ENDBR64 (f3 0f 1e fa) and ENDBR32 (f3 0f 1e fb) are not known to
		// x86asm. They only mark indirect branch targets.
		if offset+4 <= len(code) &&
			code[offset] == 0xf3 && code[offset+1] == 0x0f &&
			code[offset+2] == 0x1e && (code[offset+3] == 0xfa || code[offset+3] == 0xfb) {
			result = append(result, Insn{Addr: addr, Len: 4, Text: "endbr", Flow: FlowNone})
			offset += 4
			addr += 4
			continue
		}

		// A truncated opcode decodes without error as a lone prefix with
		// a zero Op.
		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil || inst.Op == 0 {
			result = append(result, Insn{Addr: addr, Len: 1, Text: "(bad)", Flow: FlowNone})
			offset++
			addr++
			continue
		}

		insn := Insn{
			Addr: addr,
			Len:  inst.Len,
			Text: x86asm.IntelSyntax(inst, addr, nil),
			Flow: flowAMD64(inst.Op),
		}
		if insn.Flow == FlowCall || insn.Flow == FlowJump || insn.Flow == FlowCondJump {
			extractTargetAMD64(inst, &insn)
		}
		result = append(result, insn)

		offset += inst.Len
		addr += uint64(inst.Len)
	}

	return result
}

func flowAMD64(op x86asm.Op) Flow {
	switch op {
	case x86asm.CALL:
		return FlowCall
	case x86asm.LCALL:
		return FlowIndirectCall
	case x86asm.JMP:
		// x86asm uses distinct Op values for conditional jumps, so Op == JMP
		// is always unconditional.
		return FlowJump
	case x86asm.LJMP:
		return FlowIndirectJump
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ,
		x86asm.JE, x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL,
		x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP, x86asm.JNS,
		x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return FlowCondJump
	case x86asm.RET, x86asm.LRET, x86asm.IRET:
		return FlowReturn
	case x86asm.UD1, x86asm.UD2, x86asm.HLT:
		return FlowTrap
	default:
		return FlowNone
	}
}

// extractTargetAMD64 resolves the destination of a direct x86-64 transfer.
// Only PC-relative operands name code: memory operands, RIP-relative ones
// included, name the slot holding the destination, so those transfers are
// downgraded to indirect.
func extractTargetAMD64(inst x86asm.Inst, insn *Insn) {
	if rel, ok := inst.Args[0].(x86asm.Rel); ok {
		insn.Target = insn.Addr + uint64(inst.Len) + uint64(int64(rel))
		insn.HasTarget = true
		return
	}

	switch insn.Flow {
	case FlowCall:
		insn.Flow = FlowIndirectCall
	case FlowJump:
		insn.Flow = FlowIndirectJump
	}
}

func decodeARM64(code []byte, baseAddr uint64) []Insn {
	var result []Insn

	const insnLen = 4

	for offset := 0; offset+insnLen <= len(code); offset += insnLen {
		addr := baseAddr + uint64(offset)

		inst, err := arm64asm.Decode(code[offset : offset+insnLen])
		if err != nil {
			result = append(result, Insn{Addr: addr, Len: insnLen, Text: "(bad)", Flow: FlowNone})
			continue
		}

		insn := Insn{
			Addr: addr,
			Len:  insnLen,
			Text: arm64asm.GNUSyntax(inst),
		}

		switch inst.Op {
		case arm64asm.BL:
			insn.Flow = FlowCall
		case arm64asm.BLR:
			insn.Flow = FlowIndirectCall
		case arm64asm.B:
			// B.cond shares the B opcode and carries a Cond argument.
			insn.Flow = FlowJump
			for _, arg := range inst.Args {
				if _, ok := arg.(arm64asm.Cond); ok {
					insn.Flow = FlowCondJump
					break
				}
			}
		case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
			insn.Flow = FlowCondJump
		case arm64asm.BR:
			insn.Flow = FlowIndirectJump
		case arm64asm.RET:
			insn.Flow = FlowReturn
		case arm64asm.BRK, arm64asm.HLT:
			insn.Flow = FlowTrap
		default:
			insn.Flow = FlowNone
		}

		if insn.Flow == FlowCall || insn.Flow == FlowJump || insn.Flow == FlowCondJump {
			extractTargetARM64(inst, &insn)
		}
		result = append(result, insn)
	}

	return result
}

// extractTargetARM64 resolves the PC-relative destination of an ARM64
// branch. The label is the last argument for every direct branch form.
func extractTargetARM64(inst arm64asm.Inst, insn *Insn) {
	for _, arg := range inst.Args {
		if pcrel, ok := arg.(arm64asm.PCRel); ok {
			insn.Target = insn.Addr + uint64(int64(pcrel))
			insn.HasTarget = true
			return
		}
	}
}
