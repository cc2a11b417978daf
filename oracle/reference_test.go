package oracle_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cputester/emu"
	"github.com/sarchlab/cputester/insts"
	"github.com/sarchlab/cputester/oracle"
)

var _ = Describe("Reference", func() {
	var ref *oracle.Reference

	BeforeEach(func() {
		ref = oracle.NewReference(emu.WithMemoryCells(4))
	})

	AfterEach(func() {
		Expect(ref.Close()).To(Succeed())
	})

	It("should return the final registers and memory", func() {
		snapshot, err := ref.Run(context.Background(), []insts.Instruction{
			insts.ADDI(0, 2, 99),
			insts.SW(0, 2, 4),
		}, time.Second)

		Expect(err).NotTo(HaveOccurred())
		Expect(snapshot.Memory).To(Equal([]int32{0, 99, 0, 0}))
		Expect(snapshot.Registers).To(HaveLen(32))
		Expect(snapshot.Registers[2]).To(Equal(int32(99)))
	})

	It("should start every run from a clean state", func() {
		program := []insts.Instruction{insts.ADDI(1, 1, 1), insts.SW(0, 1, 0)}

		_, err := ref.Run(context.Background(), program, time.Second)
		Expect(err).NotTo(HaveOccurred())
		snapshot, err := ref.Run(context.Background(), program, time.Second)
		Expect(err).NotTo(HaveOccurred())

		Expect(snapshot.Memory[0]).To(Equal(int32(1)))
	})

	It("should report a fault as an invocation error", func() {
		_, err := ref.Run(context.Background(), []insts.Instruction{
			insts.LW(0, 1, 400),
		}, time.Second)

		var invocation *oracle.InvocationError
		Expect(err).To(BeAssignableToTypeOf(invocation))
		Expect(err.(*oracle.InvocationError).Stage).To(Equal(oracle.StageSimulate))
	})

	It("should time out", func() {
		_, err := ref.Run(context.Background(), []insts.Instruction{
			insts.BEQ(0, 0, -1),
		}, 20*time.Millisecond)

		Expect(err).To(MatchError(emu.ErrTimeout))
	})

	It("should refuse a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := ref.Run(ctx, nil, time.Second)
		Expect(err).To(MatchError(context.Canceled))
	})
})
