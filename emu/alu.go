package emu

// ALU implements the register-register and immediate arithmetic operations.
// All arithmetic wraps at 32 bits.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// operands reads the two source registers.
func (a *ALU) operands(rs, rt int32) (int32, int32, error) {
	op1, err := a.regFile.ReadReg(rs)
	if err != nil {
		return 0, 0, err
	}
	op2, err := a.regFile.ReadReg(rt)
	if err != nil {
		return 0, 0, err
	}
	return op1, op2, nil
}

// ADD performs rd = rs + rt.
func (a *ALU) ADD(rs, rt, rd int32) error {
	op1, op2, err := a.operands(rs, rt)
	if err != nil {
		return err
	}
	return a.regFile.WriteReg(rd, op1+op2)
}

// SUB performs rd = rs - rt.
func (a *ALU) SUB(rs, rt, rd int32) error {
	op1, op2, err := a.operands(rs, rt)
	if err != nil {
		return err
	}
	return a.regFile.WriteReg(rd, op1-op2)
}

// AND performs rd = rs & rt.
func (a *ALU) AND(rs, rt, rd int32) error {
	op1, op2, err := a.operands(rs, rt)
	if err != nil {
		return err
	}
	return a.regFile.WriteReg(rd, op1&op2)
}

// OR performs rd = rs | rt.
func (a *ALU) OR(rs, rt, rd int32) error {
	op1, op2, err := a.operands(rs, rt)
	if err != nil {
		return err
	}
	return a.regFile.WriteReg(rd, op1|op2)
}

// SLT sets rd to 1 if rs < rt (signed), else 0.
func (a *ALU) SLT(rs, rt, rd int32) error {
	op1, op2, err := a.operands(rs, rt)
	if err != nil {
		return err
	}

	var result int32
	if op1 < op2 {
		result = 1
	}
	return a.regFile.WriteReg(rd, result)
}

// ADDI performs rt = rs + imm.
func (a *ALU) ADDI(rs, rt, imm int32) error {
	op1, err := a.regFile.ReadReg(rs)
	if err != nil {
		return err
	}
	return a.regFile.WriteReg(rt, op1+imm)
}
