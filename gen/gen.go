// Package gen produces randomized, structured MIPS-subset programs for
// differential testing.
//
// Programs are built from bursts: constant loads, single arithmetic
// instructions, memory bursts (zero a base register, then load or store
// through it) and counted loops. Loops use registers 29, 30 and 31 for
// control, so the configured register range must stay below 29.
package gen

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/cputester/insts"
)

// Loop control registers.
const (
	LoopCompareReg int32 = 29 // SLT scratch
	LoopLimitReg   int32 = 30 // iteration limit
	LoopIndexReg   int32 = 31 // iteration index
)

// Burst mix.
const (
	loopProbability   = 0.2
	memoryProbability = 0.4
	constantEvery     = 4
	maxConstant       = 20000
	minLoopIters      = 1
	maxLoopIters      = 40
	minLoopBody       = 3
	maxLoopBody       = 8

	// loopBodyBurst is the burst counter used for loop bodies. It is never a
	// multiple of constantEvery, so bodies carry no constant loads.
	loopBodyBurst = 1
)

var arithmeticOps = []func(rs, rt, rd int32) insts.Instruction{
	insts.ADD, insts.SUB, insts.AND, insts.OR, insts.SLT,
}

var memoryOps = []func(rs, rt, offset int32) insts.Instruction{
	insts.LW, insts.SW,
}

// Config holds generator parameters.
type Config struct {
	// MemoryCells bounds memory burst offsets to [0, MemoryCells/4) words.
	MemoryCells int
	// Amount is the program length produced by Generate.
	Amount int
	// RegisterLow and RegisterHigh bound every randomly chosen register,
	// inclusive.
	RegisterLow  int32
	RegisterHigh int32
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		MemoryCells:  10,
		Amount:       199,
		RegisterLow:  1,
		RegisterHigh: 10,
	}
}

// Validate checks the register range against the loop control registers.
func (c Config) Validate() error {
	switch {
	case c.MemoryCells < 1:
		return fmt.Errorf("memory cells must be positive, got %d", c.MemoryCells)
	case c.Amount < 0:
		return fmt.Errorf("amount must not be negative, got %d", c.Amount)
	case c.RegisterLow < 0 || c.RegisterHigh > insts.MaxRegister || c.RegisterLow > c.RegisterHigh:
		return fmt.Errorf("invalid register range [%d, %d]", c.RegisterLow, c.RegisterHigh)
	case c.RegisterHigh >= LoopCompareReg:
		return fmt.Errorf("register range [%d, %d] overlaps loop registers %d-%d",
			c.RegisterLow, c.RegisterHigh, LoopCompareReg, LoopIndexReg)
	}
	return nil
}

// Generator produces random programs. It is not safe for concurrent use.
type Generator struct {
	config Config
	rng    *rand.Rand
}

// NewGenerator creates a generator drawing from rng.
func NewGenerator(config Config, rng *rand.Rand) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Generator{config: config, rng: rng}, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.config
}

// Generate returns a program of exactly Config.Amount instructions.
func (g *Generator) Generate() []insts.Instruction {
	return g.GenerateN(g.config.Amount)
}

// GenerateN returns a program of exactly amount instructions. The last burst
// is cut short if it overshoots. A non-positive amount yields nil.
func (g *Generator) GenerateN(amount int) []insts.Instruction {
	if amount <= 0 {
		return nil
	}

	program := make([]insts.Instruction, 0, amount+maxLoopBody+6)

	for burst := 0; len(program) < amount; burst++ {
		if g.rng.Float64() < loopProbability {
			program = append(program, g.loop()...)
		} else {
			program = append(program, g.linear(1, burst)...)
		}
	}

	return program[:amount]
}

// linear emits exactly count instructions from repeated bursts chosen by
// the burst counter.
func (g *Generator) linear(count, burst int) []insts.Instruction {
	var out []insts.Instruction

	for len(out) < count {
		switch {
		case burst%constantEvery == 0:
			out = append(out, g.constant())
		case g.rng.Float64() < memoryProbability:
			out = append(out, g.memory()...)
		default:
			out = append(out, g.arithmetic())
		}
	}

	return out[:count]
}

// loop emits a counted loop around a linear body of 3-8 instructions.
func (g *Generator) loop() []insts.Instruction {
	iters := int32(minLoopIters + g.rng.Intn(maxLoopIters-minLoopIters+1))
	bodyLen := minLoopBody + g.rng.Intn(maxLoopBody-minLoopBody+1)

	out := make([]insts.Instruction, 0, bodyLen+6)
	out = append(out,
		insts.SUB(LoopLimitReg, LoopLimitReg, LoopLimitReg),
		insts.ADDI(LoopLimitReg, LoopLimitReg, iters),
		insts.ADDI(0, LoopIndexReg, 0),
		insts.ADDI(LoopIndexReg, LoopIndexReg, 1),
	)
	out = append(out, g.linear(bodyLen, loopBodyBurst)...)
	out = append(out,
		insts.SLT(LoopLimitReg, LoopIndexReg, LoopCompareReg),
		// Back to the index increment.
		insts.BEQ(0, LoopCompareReg, -int32(bodyLen)-3),
	)

	return out
}

func (g *Generator) constant() insts.Instruction {
	imm := int32(g.rng.Intn(maxConstant + 1))
	return insts.ADDI(g.register(), g.register(), imm)
}

func (g *Generator) arithmetic() insts.Instruction {
	op := arithmeticOps[g.rng.Intn(len(arithmeticOps))]
	return op(g.register(), g.register(), g.register())
}

func (g *Generator) memory() []insts.Instruction {
	var offset int32
	if words := g.config.MemoryCells / 4; words > 0 {
		offset = 4 * int32(g.rng.Intn(words))
	}

	base := g.register()
	op := memoryOps[g.rng.Intn(len(memoryOps))]

	return []insts.Instruction{
		insts.ADDI(0, base, 0),
		op(base, g.register(), offset),
	}
}

func (g *Generator) register() int32 {
	span := int(g.config.RegisterHigh-g.config.RegisterLow) + 1
	return g.config.RegisterLow + int32(g.rng.Intn(span))
}
