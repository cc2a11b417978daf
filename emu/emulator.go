package emu

import (
	"fmt"
	"time"

	"github.com/sarchlab/cputester/cache"
	"github.com/sarchlab/cputester/insts"
)

// State is the execution state of the emulator.
type State uint8

// Emulator states.
const (
	// Running means the PC is inside the program and no error occurred.
	Running State = iota
	// Halted means the PC left [0, len(program)).
	Halted
	// Faulted means an instruction failed, e.g. an out-of-bounds access.
	Faulted
	// TimedOut means Run exceeded its wall-clock budget.
	TimedOut
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true if the PC left the program after this step.
	Halted bool

	// Err is set if the instruction faulted.
	Err error
}

// executeFunc applies one instruction to the machine state.
type executeFunc func(inst insts.Instruction) error

// Emulator executes MIPS-subset programs functionally.
type Emulator struct {
	regFile *RegFile
	memory  *Memory

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	dataCache *cache.Cache
	handlers  map[insts.Op]executeFunc

	program []insts.Instruction
	state   State

	registerCount    int
	memoryCells      int
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemoryCells sets the number of data memory cells.
func WithMemoryCells(cells int) EmulatorOption {
	return func(e *Emulator) {
		e.memoryCells = cells
	}
}

// WithRegisterCount sets the number of general-purpose registers.
func WithRegisterCount(count int) EmulatorOption {
	return func(e *Emulator) {
		e.registerCount = count
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithDataCache attaches a locality model that observes every load and
// store. The cache never changes architectural results.
func WithDataCache(c *cache.Cache) EmulatorOption {
	return func(e *Emulator) {
		e.dataCache = c
	}
}

// NewEmulator creates a new emulator with zero-filled state and no program.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		registerCount: DefaultRegisterCount,
		memoryCells:   DefaultMemoryCells,
		state:         Halted,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.regFile = NewRegFile(e.registerCount)
	e.memory = NewMemory(e.memoryCells)

	// Create execution units
	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory, e.dataCache)
	e.branchUnit = NewBranchUnit(e.regFile)

	e.handlers = map[insts.Op]executeFunc{
		insts.OpADD:  func(i insts.Instruction) error { return e.alu.ADD(i.Rs, i.Rt, i.Rd) },
		insts.OpSUB:  func(i insts.Instruction) error { return e.alu.SUB(i.Rs, i.Rt, i.Rd) },
		insts.OpAND:  func(i insts.Instruction) error { return e.alu.AND(i.Rs, i.Rt, i.Rd) },
		insts.OpOR:   func(i insts.Instruction) error { return e.alu.OR(i.Rs, i.Rt, i.Rd) },
		insts.OpSLT:  func(i insts.Instruction) error { return e.alu.SLT(i.Rs, i.Rt, i.Rd) },
		insts.OpADDI: func(i insts.Instruction) error { return e.alu.ADDI(i.Rs, i.Rt, i.Imm) },
		insts.OpLW:   func(i insts.Instruction) error { return e.lsu.LW(i.Rs, i.Rt, i.Imm) },
		insts.OpSW:   func(i insts.Instruction) error { return e.lsu.SW(i.Rs, i.Rt, i.Imm) },
		insts.OpBEQ:  func(i insts.Instruction) error { return e.branchUnit.BEQ(i.Rs, i.Rt, i.Imm) },
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's data memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// State returns the current execution state.
func (e *Emulator) State() State {
	return e.state
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// CacheStats returns the locality statistics of the attached data cache,
// or zero statistics when none is attached.
func (e *Emulator) CacheStats() cache.Statistics {
	if e.dataCache == nil {
		return cache.Statistics{}
	}
	return e.dataCache.Stats()
}

// Reset zero-fills registers and memory, unloads the program and clears
// the execution state.
func (e *Emulator) Reset() {
	e.regFile.Reset()
	e.memory.Reset()
	e.program = nil
	e.state = Halted
	e.instructionCount = 0

	if e.dataCache != nil {
		e.dataCache.Reset()
	}
}

// LoadProgram loads a program and sets the PC to its first instruction.
// Registers and memory are left untouched; call Reset first for a fresh run.
func (e *Emulator) LoadProgram(program []insts.Instruction) {
	e.program = program
	e.regFile.PC = 0
	e.state = Running
	e.updateHalted()
}

// Step executes a single instruction and advances the PC.
func (e *Emulator) Step() StepResult {
	if e.state != Running {
		return StepResult{
			Halted: e.state == Halted,
			Err:    fmt.Errorf("%w: %v", ErrNotRunning, e.state),
		}
	}

	// Check instruction limit before executing
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		e.state = Faulted
		return StepResult{Err: ErrStepLimit}
	}

	pc := e.regFile.PC
	inst := e.program[pc]

	handler, ok := e.handlers[inst.Op]
	if !ok {
		e.state = Faulted
		return StepResult{Err: fmt.Errorf("%w at PC=%d: %v", ErrUnknownInstruction, pc, inst.Op)}
	}

	if err := handler(inst); err != nil {
		e.state = Faulted
		return StepResult{Err: fmt.Errorf("failed to execute %q at PC=%d: %w", inst.Asm(), pc, err)}
	}

	if offset, taken := e.regFile.TakePendingBranch(); taken {
		e.regFile.PC += int(offset) + 1
	} else {
		e.regFile.PC++
	}

	e.instructionCount++
	e.updateHalted()

	return StepResult{Halted: e.state == Halted}
}

// Run executes instructions until the program halts, faults, or timeout
// elapses. A timeout of zero or less means no wall-clock limit.
// A nil return means the program halted normally.
func (e *Emulator) Run(timeout time.Duration) error {
	start := time.Now()

	for e.state == Running {
		if timeout > 0 && time.Since(start) > timeout {
			e.state = TimedOut
			return fmt.Errorf("%w after %v (%d instructions)", ErrTimeout, timeout, e.instructionCount)
		}

		if result := e.Step(); result.Err != nil {
			return result.Err
		}
	}

	return nil
}

// RunProgram resets the emulator, loads program and runs it.
func (e *Emulator) RunProgram(program []insts.Instruction, timeout time.Duration) error {
	e.Reset()
	e.LoadProgram(program)
	return e.Run(timeout)
}

func (e *Emulator) updateHalted() {
	if e.regFile.PC < 0 || e.regFile.PC >= len(e.program) {
		e.state = Halted
	}
}
