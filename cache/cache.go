// Package cache provides a read-only, set-associative, physically tagged
// data cache.
package cache

import (
	"fmt"

	"github.com/sarchlab/mmusim/vm"
)

// Cache holds copies of physical memory blocks.
//
// The set index comes from the address bits above the block offset and the
// tag is every bit above the set index. With a page worth of sets, the tag is
// the frame number. There is no write path and no dirty state.
type Cache struct {
	numSets       int
	numWays       int
	log2BlockSize uint
	log2NumSets   uint
	victimFinder  VictimFinder

	sets []Set
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int {
	return c.numSets
}

// NumWays returns the number of ways per set.
func (c *Cache) NumWays() int {
	return c.numWays
}

// BlockSize returns the number of bytes of a line.
func (c *Cache) BlockSize() uint64 {
	return 1 << c.log2BlockSize
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (c *Cache) TotalSize() uint64 {
	return uint64(c.numSets) * uint64(c.numWays) * c.BlockSize()
}

// SetID returns the set that pAddr is cached in.
func (c *Cache) SetID(pAddr vm.PhysAddr) int {
	return int(uint64(pAddr)>>c.log2BlockSize) & (c.numSets - 1)
}

func (c *Cache) tag(pAddr vm.PhysAddr) uint64 {
	return uint64(pAddr) >> (c.log2BlockSize + c.log2NumSets)
}

// BlockAddr returns the address of the first byte of the block holding pAddr.
func (c *Cache) BlockAddr(pAddr vm.PhysAddr) vm.PhysAddr {
	return pAddr &^ vm.PhysAddr(c.BlockSize()-1)
}

// BlockPAddr rebuilds the address of a block from the set that holds it.
func (c *Cache) BlockPAddr(setID int, b Block) vm.PhysAddr {
	return vm.PhysAddr(b.Tag<<(c.log2BlockSize+c.log2NumSets) |
		uint64(setID)<<c.log2BlockSize)
}

// Sets returns a copy of all the sets.
func (c *Cache) Sets() []Set {
	sets := make([]Set, len(c.sets))
	for i, s := range c.sets {
		sets[i].Blocks = make([]Block, len(s.Blocks))
		for j, b := range s.Blocks {
			b.Line = append([]byte(nil), b.Line...)
			sets[i].Blocks[j] = b
		}
		sets[i].LRUQueue = append([]int(nil), s.LRUQueue...)
	}

	return sets
}

// Lookup returns the byte at pAddr if its block is cached.
func (c *Cache) Lookup(pAddr vm.PhysAddr) (byte, bool) {
	setID := c.SetID(pAddr)
	set := &c.sets[setID]
	tag := c.tag(pAddr)

	for i, b := range set.Blocks {
		if b.IsValid && b.Tag == tag {
			set.visit(i)
			return b.Line[c.offsetInBlock(pAddr)], true
		}
	}

	return 0, false
}

func (c *Cache) offsetInBlock(pAddr vm.PhysAddr) uint64 {
	return uint64(pAddr) & (c.BlockSize() - 1)
}

// Fill stores line as the content of the block that holds pAddr and returns
// the byte at pAddr. The replaced block is returned; evicted tells if it was
// valid.
func (c *Cache) Fill(
	pAddr vm.PhysAddr,
	line []byte,
) (data byte, victim Block, evicted bool) {
	if uint64(len(line)) != c.BlockSize() {
		panic(fmt.Sprintf("cache line must be %d bytes, got %d",
			c.BlockSize(), len(line)))
	}

	set := &c.sets[c.SetID(pAddr)]
	wayID := c.victimFinder.FindVictim(set)
	victim = set.Blocks[wayID]

	set.Blocks[wayID] = Block{
		IsValid: true,
		Tag:     c.tag(pAddr),
		Line:    append([]byte(nil), line...),
	}
	set.visit(wayID)

	return line[c.offsetInBlock(pAddr)], victim, victim.IsValid
}

// Reset will mark all the blocks invalid
func (c *Cache) Reset() {
	c.sets = make([]Set, c.numSets)
	for i := range c.sets {
		c.sets[i].Blocks = make([]Block, c.numWays)
		c.sets[i].LRUQueue = make([]int, c.numWays)
		for j := range c.sets[i].LRUQueue {
			c.sets[i].LRUQueue[j] = j
		}
	}
}
