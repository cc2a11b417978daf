package oracle

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/cputester/insts"
)

// Dump markers printed by the testbench.
const (
	MemoryDumpBegin   = "MEMORY_DUMP_BEGIN"
	MemoryDumpEnd     = "MEMORY_DUMP_END"
	RegisterDumpBegin = "REGISTER_DUMP_BEGIN"
	RegisterDumpEnd   = "REGISTER_DUMP_END"
	Finish            = "FINISH"
)

// maxDumpIndex bounds how far a single line can grow a section.
const maxDumpIndex = 1 << 20

type section uint8

const (
	sectionNone section = iota
	sectionMemory
	sectionRegisters
)

// ParseDump reads simulation output up to the FINISH marker.
//
// Lines inside a dump section are "index value" pairs where value is a
// 32-bit two's-complement binary string. Each section grows to hold the
// highest index seen; gaps read as zero. Lines outside sections are ignored.
func ParseDump(r io.Reader) (Snapshot, error) {
	var (
		snapshot Snapshot
		current  section
		lineNo   int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case MemoryDumpBegin:
			current = sectionMemory
			continue
		case RegisterDumpBegin:
			current = sectionRegisters
			continue
		case MemoryDumpEnd, RegisterDumpEnd:
			current = sectionNone
			continue
		case Finish:
			return snapshot, nil
		}

		if current == sectionNone || line == "" {
			continue
		}

		index, value, err := parsePair(line)
		if err != nil {
			return snapshot, fmt.Errorf("line %d %q: %w", lineNo, line, err)
		}

		switch current {
		case sectionMemory:
			snapshot.Memory = store(snapshot.Memory, index, value)
		case sectionRegisters:
			snapshot.Registers = store(snapshot.Registers, index, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return snapshot, fmt.Errorf("failed to read simulation output: %w", err)
	}

	return snapshot, ErrNoFinish
}

func parsePair(line string) (int, int32, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, ErrMalformedDump
	}

	index, err := strconv.Atoi(fields[0])
	if err != nil || index < 0 || index > maxDumpIndex {
		return 0, 0, ErrMalformedDump
	}

	value, err := insts.FromTwosComplementBits(fields[1], insts.WordBits)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrMalformedDump, err)
	}

	return index, int32(value), nil
}

// store sets cells[index], zero-extending cells as needed.
func store(cells []int32, index int, value int32) []int32 {
	if index >= len(cells) {
		cells = append(cells, make([]int32, index+1-len(cells))...)
	}
	cells[index] = value
	return cells
}
