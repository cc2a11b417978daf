// Package insts provides MIPS-subset instruction definitions, encoding and
// decoding.
//
// The package models the ten instructions exercised by the differential
// tester:
//   - I-type: LW, SW, BEQ, ADDI (rs, rt, signed 16-bit immediate)
//   - R-type: ADD, SUB, AND, OR, SLT (rs, rt, rd)
//
// Instructions travel as 32-character binary strings, the format read by the
// hardware testbench.
//
// Usage:
//
//	bits, _ := insts.Encode(insts.ADDI(0, 1, 42)) // "00100000000000010000000000101010"
//	inst, _ := insts.NewDecoder().Decode(bits)
//	fmt.Println(inst.Asm()) // addi $1, $0, 42
package insts

// Op represents a MIPS opcode.
type Op uint8

// Supported opcodes.
const (
	OpUnknown Op = iota
	OpLW
	OpSW
	OpBEQ
	OpADDI
	OpADD
	OpSUB
	OpAND
	OpOR
	OpSLT
)

// Ops lists every supported opcode in encoding-table order.
var Ops = []Op{OpLW, OpSW, OpBEQ, OpADDI, OpADD, OpSUB, OpAND, OpOR, OpSLT}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // opcode(6) rs(5) rt(5) rd(5) shamt(5) funct(6)
	FormatI              // opcode(6) rs(5) rt(5) immediate(16)
)

// Field widths and ranges.
const (
	OpcodeBits    = 6
	RegisterBits  = 5
	ImmediateBits = 16
	FunctBits     = 6
	WordBits      = 32

	MaxRegister  = 1<<RegisterBits - 1
	MinImmediate = -1 << (ImmediateBits - 1)
	MaxImmediate = 1<<(ImmediateBits-1) - 1
)

// opInfo is one row of the encoding table.
type opInfo struct {
	mnemonic string
	format   Format
	opcode   uint32 // 6-bit primary opcode
	funct    uint32 // 6-bit function code, R-type only
}

var opTable = map[Op]opInfo{
	OpLW:   {mnemonic: "lw", format: FormatI, opcode: 0b100011},
	OpSW:   {mnemonic: "sw", format: FormatI, opcode: 0b101011},
	OpBEQ:  {mnemonic: "beq", format: FormatI, opcode: 0b000100},
	OpADDI: {mnemonic: "addi", format: FormatI, opcode: 0b001000},
	OpADD:  {mnemonic: "add", format: FormatR, funct: 0b100000},
	OpSUB:  {mnemonic: "sub", format: FormatR, funct: 0b100010},
	OpAND:  {mnemonic: "and", format: FormatR, funct: 0b100100},
	OpOR:   {mnemonic: "or", format: FormatR, funct: 0b100101},
	OpSLT:  {mnemonic: "slt", format: FormatR, funct: 0b101010},
}

// rTypeOpcode is the primary opcode shared by every R-type instruction.
const rTypeOpcode = 0b000000

// String returns the assembly mnemonic of the opcode.
func (op Op) String() string {
	if info, ok := opTable[op]; ok {
		return info.mnemonic
	}
	return "unknown"
}

// Format returns the encoding format of the opcode.
func (op Op) Format() Format {
	return opTable[op].format
}

// Instruction represents a decoded MIPS instruction.
//
// Operands are kept as 32-bit signed values, register indices included.
// R-type instructions use Rs, Rt and Rd; I-type instructions use Rs, Rt and
// Imm (the immediate or memory/branch offset).
type Instruction struct {
	Op Op

	Rs  int32 // First source register
	Rt  int32 // Second source register (R-type) or target register (I-type)
	Rd  int32 // Destination register, R-type only
	Imm int32 // Signed immediate or offset, I-type only
}

// LW builds "lw $rt, offset($rs)".
func LW(rs, rt, offset int32) Instruction {
	return Instruction{Op: OpLW, Rs: rs, Rt: rt, Imm: offset}
}

// SW builds "sw $rt, offset($rs)".
func SW(rs, rt, offset int32) Instruction {
	return Instruction{Op: OpSW, Rs: rs, Rt: rt, Imm: offset}
}

// BEQ builds "beq $rs, $rt, offset".
func BEQ(rs, rt, offset int32) Instruction {
	return Instruction{Op: OpBEQ, Rs: rs, Rt: rt, Imm: offset}
}

// ADDI builds "addi $rt, $rs, imm".
func ADDI(rs, rt, imm int32) Instruction {
	return Instruction{Op: OpADDI, Rs: rs, Rt: rt, Imm: imm}
}

// ADD builds "add $rd, $rs, $rt".
func ADD(rs, rt, rd int32) Instruction {
	return Instruction{Op: OpADD, Rs: rs, Rt: rt, Rd: rd}
}

// SUB builds "sub $rd, $rs, $rt".
func SUB(rs, rt, rd int32) Instruction {
	return Instruction{Op: OpSUB, Rs: rs, Rt: rt, Rd: rd}
}

// AND builds "and $rd, $rs, $rt".
func AND(rs, rt, rd int32) Instruction {
	return Instruction{Op: OpAND, Rs: rs, Rt: rt, Rd: rd}
}

// OR builds "or $rd, $rs, $rt".
func OR(rs, rt, rd int32) Instruction {
	return Instruction{Op: OpOR, Rs: rs, Rt: rt, Rd: rd}
}

// SLT builds "slt $rd, $rs, $rt".
func SLT(rs, rt, rd int32) Instruction {
	return Instruction{Op: OpSLT, Rs: rs, Rt: rt, Rd: rd}
}

// Format returns the encoding format of the instruction.
func (i Instruction) Format() Format {
	return i.Op.Format()
}

// Validate checks that every operand fits its encoding field.
func (i Instruction) Validate() error {
	info, ok := opTable[i.Op]
	if !ok {
		return &UnknownOpcodeError{Op: i.Op}
	}

	if err := checkRegister(i.Op, "rs", i.Rs); err != nil {
		return err
	}
	if err := checkRegister(i.Op, "rt", i.Rt); err != nil {
		return err
	}

	switch info.format {
	case FormatR:
		return checkRegister(i.Op, "rd", i.Rd)
	case FormatI:
		if i.Imm < MinImmediate || i.Imm > MaxImmediate {
			return &EncodingRangeError{
				Op: i.Op, Field: "imm", Value: int64(i.Imm),
				Min: MinImmediate, Max: MaxImmediate,
			}
		}
	}

	return nil
}

func checkRegister(op Op, field string, reg int32) error {
	if reg < 0 || reg > MaxRegister {
		return &EncodingRangeError{
			Op: op, Field: field, Value: int64(reg),
			Min: 0, Max: MaxRegister,
		}
	}
	return nil
}
