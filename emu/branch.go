package emu

// BranchUnit implements the conditional branch.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// BEQ records a pending branch of offset when rs == rt.
// The target is PC + offset + 1 and takes effect on the very next fetch;
// there is no delay slot.
func (b *BranchUnit) BEQ(rs, rt, offset int32) error {
	op1, err := b.regFile.ReadReg(rs)
	if err != nil {
		return err
	}
	op2, err := b.regFile.ReadReg(rt)
	if err != nil {
		return err
	}

	if op1 == op2 {
		b.regFile.SetPendingBranch(offset)
	}
	return nil
}
