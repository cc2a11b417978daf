package insts

import (
	"fmt"
	"strings"
)

// Asm returns the assembly form of the instruction, destination first:
//
//	add $7, $3, $5
//	addi $2, $1, 100
//	lw $3, 4($1)
//	beq $1, $2, -3
func (i Instruction) Asm() string {
	switch i.Op {
	case OpLW, OpSW:
		return fmt.Sprintf("%s $%d, %d($%d)", i.Op, i.Rt, i.Imm, i.Rs)
	case OpBEQ:
		return fmt.Sprintf("%s $%d, $%d, %d", i.Op, i.Rs, i.Rt, i.Imm)
	case OpADDI:
		return fmt.Sprintf("%s $%d, $%d, %d", i.Op, i.Rt, i.Rs, i.Imm)
	case OpADD, OpSUB, OpAND, OpOR, OpSLT:
		return fmt.Sprintf("%s $%d, $%d, $%d", i.Op, i.Rd, i.Rs, i.Rt)
	default:
		return fmt.Sprintf("unknown %d", uint8(i.Op))
	}
}

// String returns the assembly form of the instruction.
func (i Instruction) String() string {
	return i.Asm()
}

// AsmProgram formats every instruction, one per line.
func AsmProgram(program []Instruction) string {
	lines := make([]string, len(program))
	for n, inst := range program {
		lines[n] = inst.Asm()
	}
	return strings.Join(lines, "\n")
}
