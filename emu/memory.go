package emu

// DefaultMemoryCells is the data memory size used when none is configured.
const DefaultMemoryCells = 10

// WordBytes is the number of bytes addressed by one memory cell.
const WordBytes = 4

// Memory is a word-addressed data memory of 32-bit signed cells.
type Memory struct {
	cells []int32
}

// NewMemory creates a zero-filled memory with the given number of cells.
func NewMemory(cells int) *Memory {
	return &Memory{cells: make([]int32, cells)}
}

// CellIndex converts an effective byte address into a cell index.
// Loads and stores both go through this conversion.
func CellIndex(addr int32) int64 {
	return int64(addr) >> 2
}

// Size returns the number of cells.
func (m *Memory) Size() int {
	return len(m.cells)
}

// ReadCell reads the cell at index.
func (m *Memory) ReadCell(index int64) (int32, error) {
	if index < 0 || index >= int64(len(m.cells)) {
		return 0, &OutOfBoundsError{Space: "memory", Index: index, Size: len(m.cells)}
	}
	return m.cells[index], nil
}

// WriteCell writes the cell at index.
func (m *Memory) WriteCell(index int64, value int32) error {
	if index < 0 || index >= int64(len(m.cells)) {
		return &OutOfBoundsError{Space: "memory", Index: index, Size: len(m.cells)}
	}
	m.cells[index] = value
	return nil
}

// Read reads the cell holding the effective byte address addr.
func (m *Memory) Read(addr int32) (int32, error) {
	return m.ReadCell(CellIndex(addr))
}

// Write writes the cell holding the effective byte address addr.
func (m *Memory) Write(addr int32, value int32) error {
	return m.WriteCell(CellIndex(addr), value)
}

// Snapshot returns a copy of every cell.
func (m *Memory) Snapshot() []int32 {
	return append([]int32(nil), m.cells...)
}

// Reset zero-fills every cell.
func (m *Memory) Reset() {
	clear(m.cells)
}
