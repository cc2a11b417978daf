// Package emu provides functional emulation of the MIPS subset.
package emu

// DefaultRegisterCount is the architectural register count.
const DefaultRegisterCount = 32

// RegFile represents the MIPS register file.
// It contains the general-purpose registers, the program counter and the
// branch offset waiting to be applied on the next advance.
//
// Register 0 is an ordinary register in this model; it is not hardwired to
// zero.
type RegFile struct {
	// X holds the general-purpose registers.
	X []int32

	// PC is the index of the next instruction in the loaded program.
	PC int

	pendingBranch int32
	branchPending bool
}

// NewRegFile creates a zero-filled register file with count registers.
func NewRegFile(count int) *RegFile {
	return &RegFile{X: make([]int32, count)}
}

// Size returns the number of registers.
func (r *RegFile) Size() int {
	return len(r.X)
}

// ReadReg reads a register value.
func (r *RegFile) ReadReg(reg int32) (int32, error) {
	if reg < 0 || int(reg) >= len(r.X) {
		return 0, &OutOfBoundsError{Space: "register", Index: int64(reg), Size: len(r.X)}
	}
	return r.X[reg], nil
}

// WriteReg writes a value to a register.
func (r *RegFile) WriteReg(reg int32, value int32) error {
	if reg < 0 || int(reg) >= len(r.X) {
		return &OutOfBoundsError{Space: "register", Index: int64(reg), Size: len(r.X)}
	}
	r.X[reg] = value
	return nil
}

// SetPendingBranch records a taken branch. The offset is applied by the
// next advance of the program counter.
func (r *RegFile) SetPendingBranch(offset int32) {
	r.pendingBranch = offset
	r.branchPending = true
}

// TakePendingBranch returns and clears the pending branch offset.
func (r *RegFile) TakePendingBranch() (int32, bool) {
	offset, ok := r.pendingBranch, r.branchPending
	r.pendingBranch = 0
	r.branchPending = false
	return offset, ok
}

// Snapshot returns a copy of the general-purpose registers.
func (r *RegFile) Snapshot() []int32 {
	return append([]int32(nil), r.X...)
}

// Reset zero-fills the registers and clears PC and any pending branch.
func (r *RegFile) Reset() {
	clear(r.X)
	r.PC = 0
	r.pendingBranch = 0
	r.branchPending = false
}
