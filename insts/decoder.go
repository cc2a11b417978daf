package insts

import (
	"strings"
)

// Decoder decodes MIPS binary words into instructions.
type Decoder struct {
	iType map[uint32]Op // primary opcode -> I-type op
	rType map[uint32]Op // funct -> R-type op
}

// NewDecoder creates a new MIPS instruction decoder.
func NewDecoder() *Decoder {
	d := &Decoder{
		iType: make(map[uint32]Op),
		rType: make(map[uint32]Op),
	}

	for op, info := range opTable {
		switch info.format {
		case FormatI:
			d.iType[info.opcode] = op
		case FormatR:
			d.rType[info.funct] = op
		}
	}

	return d
}

// Decode decodes a 32-character binary string.
func (d *Decoder) Decode(bits string) (Instruction, error) {
	word, err := parseBits(strings.TrimSpace(bits), WordBits)
	if err != nil {
		return Instruction{}, err
	}
	return d.DecodeWord(uint32(word))
}

// DecodeWord decodes a 32-bit instruction word.
// Format R: opcode(000000) | rs | rt | rd | shamt | funct
// Format I: opcode | rs | rt | imm16
func (d *Decoder) DecodeWord(word uint32) (Instruction, error) {
	opcode := (word >> 26) & 0x3F // bits [31:26]
	rs := (word >> 21) & 0x1F     // bits [25:21]
	rt := (word >> 16) & 0x1F     // bits [20:16]

	if opcode == rTypeOpcode {
		rd := (word >> 11) & 0x1F // bits [15:11]
		funct := word & 0x3F      // bits [5:0]

		op, ok := d.rType[funct]
		if !ok {
			return Instruction{}, &UnknownOpcodeError{
				Opcode: ToTwosComplementBits(int64(opcode), OpcodeBits),
				Funct:  ToTwosComplementBits(int64(funct), FunctBits),
			}
		}

		return Instruction{Op: op, Rs: int32(rs), Rt: int32(rt), Rd: int32(rd)}, nil
	}

	op, ok := d.iType[opcode]
	if !ok {
		return Instruction{}, &UnknownOpcodeError{
			Opcode: ToTwosComplementBits(int64(opcode), OpcodeBits),
		}
	}

	// Sign-extend imm16
	imm := int32(int16(word & 0xFFFF))

	return Instruction{Op: op, Rs: int32(rs), Rt: int32(rt), Imm: imm}, nil
}

// DecodeProgram decodes newline-separated binary words, skipping blank lines.
func (d *Decoder) DecodeProgram(text string) ([]Instruction, error) {
	var program []Instruction

	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		inst, err := d.Decode(line)
		if err != nil {
			return nil, &DecodeLineError{LineNo: lineNo + 1, Err: err}
		}
		program = append(program, inst)
	}

	return program, nil
}
