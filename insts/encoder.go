package insts

import (
	"fmt"
	"strings"
)

// EncodeWord encodes an instruction into a 32-bit word.
// Operands that do not fit their field are rejected with an
// EncodingRangeError rather than truncated.
func EncodeWord(inst Instruction) (uint32, error) {
	if err := inst.Validate(); err != nil {
		return 0, err
	}

	info := opTable[inst.Op]
	rs := uint32(inst.Rs) & 0x1F
	rt := uint32(inst.Rt) & 0x1F

	switch info.format {
	case FormatR:
		rd := uint32(inst.Rd) & 0x1F
		return rTypeOpcode<<26 | rs<<21 | rt<<16 | rd<<11 | info.funct, nil
	default:
		imm := uint32(inst.Imm) & 0xFFFF
		return info.opcode<<26 | rs<<21 | rt<<16 | imm, nil
	}
}

// Encode encodes an instruction into its 32-character binary string.
func Encode(inst Instruction) (string, error) {
	word, err := EncodeWord(inst)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%032b", word), nil
}

// EncodeProgram encodes every instruction, one binary word per line.
func EncodeProgram(program []Instruction) (string, error) {
	lines := make([]string, len(program))
	for n, inst := range program {
		bits, err := Encode(inst)
		if err != nil {
			return "", fmt.Errorf("failed to encode instruction %d: %w", n, err)
		}
		lines[n] = bits
	}
	return strings.Join(lines, "\n"), nil
}
