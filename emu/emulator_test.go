package emu_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cputester/cache"
	"github.com/sarchlab/cputester/emu"
	"github.com/sarchlab/cputester/insts"
)

var _ = Describe("Emulator", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		e = emu.NewEmulator(emu.WithMemoryCells(10))
	})

	Describe("NewEmulator", func() {
		It("should create zero-filled state of the configured size", func() {
			Expect(e.RegFile().Size()).To(Equal(32))
			Expect(e.Memory().Size()).To(Equal(10))
			Expect(e.Memory().Snapshot()).To(Equal(make([]int32, 10)))
		})

		It("should apply register and memory options", func() {
			e = emu.NewEmulator(emu.WithMemoryCells(3), emu.WithRegisterCount(8))

			Expect(e.RegFile().Size()).To(Equal(8))
			Expect(e.Memory().Size()).To(Equal(3))
		})
	})

	Describe("LoadProgram", func() {
		It("should start running at PC 0", func() {
			e.LoadProgram([]insts.Instruction{insts.ADDI(0, 1, 1)})

			Expect(e.State()).To(Equal(emu.Running))
			Expect(e.RegFile().PC).To(Equal(0))
		})

		It("should halt immediately on an empty program", func() {
			e.LoadProgram(nil)

			Expect(e.State()).To(Equal(emu.Halted))
			Expect(e.Run(0)).To(Succeed())
		})
	})

	Describe("Step", func() {
		It("should advance the PC by one", func() {
			e.LoadProgram([]insts.Instruction{
				insts.ADDI(0, 1, 5),
				insts.ADDI(1, 2, 5),
			})

			result := e.Step()

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Halted).To(BeFalse())
			Expect(e.RegFile().PC).To(Equal(1))
			Expect(e.RegFile().X[1]).To(Equal(int32(5)))
		})

		It("should jump to pc+off+1 on a taken branch", func() {
			e.LoadProgram([]insts.Instruction{
				insts.BEQ(0, 0, 2),
				insts.ADDI(0, 1, 1),
				insts.ADDI(0, 1, 2),
				insts.ADDI(0, 1, 3),
			})

			e.Step()
			Expect(e.RegFile().PC).To(Equal(3))
		})

		It("should fall through on a branch not taken", func() {
			e.RegFile().X[1] = 1
			e.LoadProgram([]insts.Instruction{
				insts.BEQ(0, 1, 2),
				insts.ADDI(0, 1, 1),
			})

			e.Step()
			Expect(e.RegFile().PC).To(Equal(1))
		})

		It("should apply the branch on the very next fetch", func() {
			e.LoadProgram([]insts.Instruction{
				insts.BEQ(0, 0, 1),
				insts.ADDI(0, 1, 1), // skipped, no delay slot
				insts.ADDI(0, 2, 1),
			})

			Expect(e.Run(0)).To(Succeed())
			Expect(e.RegFile().X[1]).To(BeZero())
			Expect(e.RegFile().X[2]).To(Equal(int32(1)))
		})

		It("should halt when the PC leaves the program", func() {
			e.LoadProgram([]insts.Instruction{insts.ADDI(0, 1, 1)})

			result := e.Step()

			Expect(result.Halted).To(BeTrue())
			Expect(e.State()).To(Equal(emu.Halted))
		})

		It("should halt on a branch before the first instruction", func() {
			e.LoadProgram([]insts.Instruction{insts.BEQ(0, 0, -5)})

			Expect(e.Step().Halted).To(BeTrue())
			Expect(e.RegFile().PC).To(Equal(-4))
		})

		It("should refuse to step once halted", func() {
			e.LoadProgram([]insts.Instruction{insts.ADDI(0, 1, 1)})
			e.Step()

			Expect(e.Step().Err).To(MatchError(emu.ErrNotRunning))
		})

		It("should fault on an unknown op", func() {
			e.LoadProgram([]insts.Instruction{{}})

			result := e.Step()

			Expect(result.Err).To(MatchError(emu.ErrUnknownInstruction))
			Expect(e.State()).To(Equal(emu.Faulted))
		})
	})

	Describe("Run", func() {
		It("should round trip memory through SW and LW", func() {
			e.RegFile().X[2] = 99
			e.LoadProgram([]insts.Instruction{
				insts.ADDI(0, 1, 0),
				insts.SW(1, 2, 4),
				insts.LW(1, 3, 4),
			})

			Expect(e.Run(time.Second)).To(Succeed())
			Expect(e.RegFile().X[3]).To(Equal(int32(99)))
			Expect(e.Memory().Snapshot()[1]).To(Equal(int32(99)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should run a counted loop", func() {
			// The index is bumped before the body, so the body sees 1..6.
			e.LoadProgram([]insts.Instruction{
				insts.SUB(30, 30, 30),
				insts.ADDI(30, 30, 5),
				insts.ADDI(0, 31, 0),
				insts.ADDI(31, 31, 1),
				insts.ADD(1, 31, 1),
				insts.SLT(30, 31, 29),
				insts.BEQ(0, 29, -4),
				insts.SW(0, 1, 0),
			})

			Expect(e.Run(time.Second)).To(Succeed())
			Expect(e.Memory().Snapshot()[0]).To(Equal(int32(21)))
		})

		It("should fault with an out-of-bounds error and keep earlier state", func() {
			e.LoadProgram([]insts.Instruction{
				insts.ADDI(0, 1, 7),
				insts.SW(0, 1, 0),
				insts.LW(0, 2, 400),
				insts.ADDI(0, 3, 1),
			})

			err := e.Run(time.Second)

			var oob *emu.OutOfBoundsError
			Expect(errors.As(err, &oob)).To(BeTrue(), "%v", err)
			Expect(oob.Index).To(Equal(int64(100)))
			Expect(e.State()).To(Equal(emu.Faulted))
			Expect(e.Memory().Snapshot()[0]).To(Equal(int32(7)))
			Expect(e.RegFile().X[3]).To(BeZero())
		})

		It("should time out an infinite loop within a bounded margin", func() {
			e.LoadProgram([]insts.Instruction{insts.BEQ(0, 0, -1)})

			start := time.Now()
			err := e.Run(50 * time.Millisecond)
			elapsed := time.Since(start)

			Expect(err).To(MatchError(emu.ErrTimeout))
			Expect(e.State()).To(Equal(emu.TimedOut))
			Expect(elapsed).To(BeNumerically(">=", 50*time.Millisecond))
			Expect(elapsed).To(BeNumerically("<", 500*time.Millisecond))
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(emu.WithMaxInstructions(10))
			e.LoadProgram([]insts.Instruction{insts.BEQ(0, 0, -1)})

			Expect(e.Run(time.Second)).To(MatchError(emu.ErrStepLimit))
			Expect(e.InstructionCount()).To(Equal(uint64(10)))
			Expect(e.State()).To(Equal(emu.Faulted))
		})
	})

	Describe("Reset", func() {
		It("should clear registers, memory and the program", func() {
			e.LoadProgram([]insts.Instruction{
				insts.ADDI(0, 1, 3),
				insts.SW(0, 1, 0),
			})
			Expect(e.Run(0)).To(Succeed())

			e.Reset()

			Expect(e.RegFile().X[1]).To(BeZero())
			Expect(e.Memory().Snapshot()).To(Equal(make([]int32, 10)))
			Expect(e.InstructionCount()).To(BeZero())
			Expect(e.State()).To(Equal(emu.Halted))
		})

		It("should give identical results for repeated runs", func() {
			program := []insts.Instruction{
				insts.ADDI(5, 5, 1),
				insts.SW(0, 5, 8),
			}

			Expect(e.RunProgram(program, time.Second)).To(Succeed())
			first := e.Memory().Snapshot()
			Expect(e.RunProgram(program, time.Second)).To(Succeed())

			Expect(e.Memory().Snapshot()).To(Equal(first))
			Expect(first[2]).To(Equal(int32(1)))
		})
	})

	Describe("WithDataCache", func() {
		It("should report locality statistics", func() {
			c, err := cache.New(cache.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			e = emu.NewEmulator(emu.WithDataCache(c))

			Expect(e.RunProgram([]insts.Instruction{
				insts.SW(0, 1, 0),
				insts.LW(0, 2, 0),
			}, time.Second)).To(Succeed())

			stats := e.CacheStats()
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should report zero statistics without a cache", func() {
			Expect(e.CacheStats()).To(Equal(cache.Statistics{}))
		})
	})
})
