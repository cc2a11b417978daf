// Package cache models data-access locality of the simulated CPU using Akita
// cache components.
//
// The model is tag-only: it tracks which word-aligned blocks would be
// resident in a small set-associative data cache, but never holds data.
// Memory values stay authoritative in emu.Memory, so attaching a cache can
// not change the architectural result of a program.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"blockSize"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hitLatency"`
	// MissLatency in cycles
	MissLatency uint64 `json:"missLatency"`
}

// DefaultConfig returns a cache sized for the tiny data memories the tester
// generates: four 2-way sets of two-word lines.
func DefaultConfig() Config {
	return Config{
		Size:          32,
		Associativity: 2,
		BlockSize:     8,
		HitLatency:    1,
		MissLatency:   10,
	}
}

// Validate checks that the geometry describes at least one full set.
func (c Config) Validate() error {
	if c.Associativity < 1 || c.BlockSize < 1 || c.Size < 1 {
		return fmt.Errorf("invalid cache geometry %d/%d/%d", c.Size, c.Associativity, c.BlockSize)
	}
	if c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("cache size %d is not a multiple of %d ways x %d bytes",
			c.Size, c.Associativity, c.BlockSize)
	}
	return nil
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64 `json:"reads"`
	Writes     uint64 `json:"writes"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Writebacks uint64 `json:"writebacks"`
	Cycles     uint64 `json:"cycles"`
}

// Add accumulates other into s.
func (s *Statistics) Add(other Statistics) {
	s.Reads += other.Reads
	s.Writes += other.Writes
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.Evictions += other.Evictions
	s.Writebacks += other.Writebacks
	s.Cycles += other.Cycles
}

// HitRate returns hits over accesses, or 0 before the first access.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a write-allocate data cache model backed by an Akita
// directory with LRU replacement.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Statistics
}

// New creates a new cache with the given configuration.
func New(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Read records a load from the byte address addr.
func (c *Cache) Read(addr uint64) {
	c.stats.Reads++
	c.access(addr, false)
}

// Write records a store to the byte address addr.
func (c *Cache) Write(addr uint64) {
	c.stats.Writes++
	c.access(addr, true)
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

func (c *Cache) access(addr uint64, isWrite bool) {
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, blockAddr) // PID=0, single address space
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.stats.Cycles += c.config.HitLatency
		c.directory.Visit(block)
		if isWrite {
			block.IsDirty = true
		}
		return
	}

	c.stats.Misses++
	c.stats.Cycles += c.config.MissLatency

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return
	}

	if victim.IsValid {
		c.stats.Evictions++
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	// Tag stores the block-aligned address.
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.directory.Visit(victim)
}

// Reset invalidates all cache lines without writeback and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
