package testbench_test

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/cputester/config"
	"github.com/sarchlab/cputester/emu"
	"github.com/sarchlab/cputester/gen"
	"github.com/sarchlab/cputester/insts"
	"github.com/sarchlab/cputester/oracle"
	"github.com/sarchlab/cputester/testbench"
)

// mirrorOracle runs the program on its own emulator and optionally corrupts
// the result.
type mirrorOracle struct {
	ref     *oracle.Reference
	corrupt func(s *oracle.Snapshot)
	fail    error
	delay   func() time.Duration
	closed  *atomic.Int32
}

func (m *mirrorOracle) Run(ctx context.Context, program []insts.Instruction, timeout time.Duration) (oracle.Snapshot, error) {
	if m.delay != nil {
		time.Sleep(m.delay())
	}
	if m.fail != nil {
		return oracle.Snapshot{}, &oracle.InvocationError{Stage: oracle.StageSimulate, Err: m.fail}
	}

	snapshot, err := m.ref.Run(ctx, program, timeout)
	if err == nil && m.corrupt != nil {
		m.corrupt(&snapshot)
	}
	return snapshot, err
}

func (m *mirrorOracle) Close() error {
	if m.closed != nil {
		m.closed.Add(1)
	}
	return nil
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	Expect(err).NotTo(HaveOccurred())

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

var _ = Describe("TestBench", func() {
	const seed = 2024

	var (
		cfg     *config.Config
		dir     string
		closed  atomic.Int32
		factory func(build func() *mirrorOracle) testbench.OracleFactory
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "cputester-testbench")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		cfg = config.Default()
		cfg.TestCount = 50
		cfg.WorkerCount = 4
		cfg.MaxInstructions = 40
		cfg.TimeoutMillis = 2000
		cfg.PollMillis = 5
		cfg.FailuresDirectory = filepath.Join(dir, "fails")
		Expect(cfg.Validate()).To(Succeed())

		closed.Store(0)
		factory = func(build func() *mirrorOracle) testbench.OracleFactory {
			return func(_ context.Context, _ int) (oracle.Oracle, error) {
				o := build()
				o.ref = oracle.NewReference(emu.WithMemoryCells(cfg.MemoryCells))
				o.closed = &closed
				return o, nil
			}
		}
	})

	newBench := func(newOracle testbench.OracleFactory, opts ...testbench.Option) *testbench.TestBench {
		generator, err := gen.NewGenerator(cfg.GeneratorConfig(), rand.New(rand.NewSource(seed)))
		Expect(err).NotTo(HaveOccurred())

		store := testbench.NewFailureStore(cfg.FailuresDirectory, rand.New(rand.NewSource(1)))
		return testbench.New(cfg, generator, newOracle, store, opts...)
	}

	It("should pass every job against an identical oracle", func() {
		tb := newBench(factory(func() *mirrorOracle { return &mirrorOracle{} }))

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Passed).To(Equal(50))
		Expect(summary.Failed).To(Equal(0))
		Expect(summary.Interrupted).To(BeFalse())
		Expect(summary.RunID).To(Equal(tb.RunID()))
		Expect(listDir(cfg.FailuresDirectory)).To(BeEmpty())
		Expect(closed.Load()).To(Equal(int32(4)))
	})

	It("should capture the dispatched program of a mismatching job", func() {
		cfg.TestCount = 1
		tb := newBench(factory(func() *mirrorOracle {
			return &mirrorOracle{corrupt: func(s *oracle.Snapshot) { s.Memory[3]++ }}
		}))

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Failed).To(Equal(1))
		Expect(summary.BySource[testbench.SourceMismatch]).To(Equal(1))
		Expect(summary.FailureTags).To(HaveLen(1))

		tag := summary.FailureTags[0]
		Expect(listDir(cfg.FailuresDirectory)).To(ConsistOf(tag+"_bin", tag+"_asm"))

		// Same seed, same first program.
		replay, err := gen.NewGenerator(cfg.GeneratorConfig(), rand.New(rand.NewSource(seed)))
		Expect(err).NotTo(HaveOccurred())
		expected := replay.Generate()

		bin, err := os.ReadFile(filepath.Join(cfg.FailuresDirectory, tag+"_bin"))
		Expect(err).NotTo(HaveOccurred())
		decoded, err := insts.NewDecoder().DecodeProgram(string(bin))
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(expected))

		asm, err := os.ReadFile(filepath.Join(cfg.FailuresDirectory, tag+"_asm"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(asm)).To(Equal(insts.AsmProgram(expected)))
	})

	It("should report the mismatching cell index verbatim", func() {
		cfg.TestCount = 1
		cfg.MemoryCells = 2000
		logger, hook := logtest.NewNullLogger()
		tb := newBench(factory(func() *mirrorOracle {
			return &mirrorOracle{corrupt: func(s *oracle.Snapshot) { s.Memory[1500]++ }}
		}), testbench.WithLogger(logger))

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.BySource[testbench.SourceMismatch]).To(Equal(1))

		var reasons []any
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.WarnLevel {
				reasons = append(reasons, entry.Data["reason"])
			}
		}
		Expect(reasons).To(ConsistOf("memory check failed at cell 1500"))
	})

	It("should classify oracle failures", func() {
		cfg.TestCount = 10
		tb := newBench(factory(func() *mirrorOracle {
			return &mirrorOracle{fail: errors.New("vvp: exit status 1")}
		}))

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Failed).To(Equal(10))
		Expect(summary.BySource).To(Equal(map[testbench.Source]int{testbench.SourceOracle: 10}))
		Expect(listDir(cfg.FailuresDirectory)).To(HaveLen(20))
	})

	It("should classify emulator failures without calling the oracle", func() {
		cfg.TestCount = 10
		var calls atomic.Int32
		tb := newBench(
			factory(func() *mirrorOracle {
				return &mirrorOracle{delay: func() time.Duration {
					calls.Add(1)
					return 0
				}}
			}),
			testbench.WithEmulatorOptions(emu.WithMaxInstructions(1)),
		)

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.BySource[testbench.SourceCPU]).To(Equal(10))
		Expect(calls.Load()).To(BeZero())
	})

	It("should match out-of-order results by job ID", func() {
		var mu sync.Mutex
		rng := rand.New(rand.NewSource(3))
		cfg.WorkerCount = 8

		tb := newBench(factory(func() *mirrorOracle {
			return &mirrorOracle{delay: func() time.Duration {
				mu.Lock()
				defer mu.Unlock()
				return time.Duration(rng.Intn(5)) * time.Millisecond
			}}
		}))

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Passed).To(Equal(50))
	})

	It("should record data cache statistics", func() {
		tb := newBench(factory(func() *mirrorOracle { return &mirrorOracle{} }))

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Cache.Hits + summary.Cache.Misses).To(BeNumerically(">", 0))
	})

	It("should keep running when artifacts cannot be written", func() {
		blocker := filepath.Join(dir, "file")
		Expect(os.WriteFile(blocker, nil, 0o644)).To(Succeed())
		cfg.FailuresDirectory = filepath.Join(blocker, "fails")
		cfg.TestCount = 5

		tb := newBench(factory(func() *mirrorOracle {
			return &mirrorOracle{fail: errors.New("boom")}
		}))

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Failed).To(Equal(5))
		Expect(summary.FailureTags).To(BeEmpty())
	})

	It("should finish immediately with no tests", func() {
		cfg.TestCount = 0
		tb := newBench(factory(func() *mirrorOracle { return &mirrorOracle{} }))

		summary, err := tb.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Processed()).To(BeZero())
		Expect(closed.Load()).To(Equal(int32(4)))
	})

	It("should stop and report a partial summary on cancellation", func() {
		cfg.TestCount = 100000
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32

		tb := newBench(factory(func() *mirrorOracle {
			return &mirrorOracle{delay: func() time.Duration {
				if calls.Add(1) == 20 {
					cancel()
				}
				return time.Millisecond
			}}
		}))

		done := make(chan struct{})
		var (
			summary *testbench.Summary
			err     error
		)
		go func() {
			defer close(done)
			summary, err = tb.Run(ctx)
		}()

		Eventually(done, 5*time.Second).Should(BeClosed())
		Expect(err).To(MatchError(context.Canceled))
		Expect(summary.Interrupted).To(BeTrue())
		Expect(summary.Processed()).To(BeNumerically("<", 100000))
		Expect(closed.Load()).To(Equal(int32(4)))
	})

	It("should fail when an oracle cannot be created and close the others", func() {
		tb := newBench(func(_ context.Context, worker int) (oracle.Oracle, error) {
			if worker == 2 {
				return nil, errors.New("iverilog not found")
			}
			return &mirrorOracle{closed: &closed}, nil
		})

		_, err := tb.Run(context.Background())

		Expect(err).To(MatchError(ContainSubstring("worker 2")))
		Expect(closed.Load()).To(Equal(int32(2)))
	})
})

var _ = Describe("Summary", func() {
	It("should serialize sources by name", func() {
		s := &testbench.Summary{
			RunID:    "r",
			BySource: map[testbench.Source]int{testbench.SourceMismatch: 2},
		}

		path := filepath.Join(GinkgoT().TempDir(), "report.json")
		Expect(s.Save(path)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"mismatch": 2`))
	})
})
