package emu

import (
	"github.com/sarchlab/cputester/cache"
)

// LoadStoreUnit implements word loads and stores.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
	cache   *cache.Cache // optional locality model
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory. dataCache may be nil.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory, dataCache *cache.Cache) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
		cache:   dataCache,
	}
}

// effectiveIndex computes (rs + offset) >> 2.
func (lsu *LoadStoreUnit) effectiveIndex(rs, offset int32) (int64, error) {
	base, err := lsu.regFile.ReadReg(rs)
	if err != nil {
		return 0, err
	}
	return CellIndex(base + offset), nil
}

// LW performs rt = mem[(rs + offset) >> 2].
func (lsu *LoadStoreUnit) LW(rs, rt, offset int32) error {
	index, err := lsu.effectiveIndex(rs, offset)
	if err != nil {
		return err
	}

	value, err := lsu.memory.ReadCell(index)
	if err != nil {
		return err
	}

	if lsu.cache != nil {
		lsu.cache.Read(uint64(index) * WordBytes)
	}

	return lsu.regFile.WriteReg(rt, value)
}

// SW performs mem[(rs + offset) >> 2] = rt.
func (lsu *LoadStoreUnit) SW(rs, rt, offset int32) error {
	index, err := lsu.effectiveIndex(rs, offset)
	if err != nil {
		return err
	}

	value, err := lsu.regFile.ReadReg(rt)
	if err != nil {
		return err
	}

	if err := lsu.memory.WriteCell(index, value); err != nil {
		return err
	}

	if lsu.cache != nil {
		lsu.cache.Write(uint64(index) * WordBytes)
	}

	return nil
}
