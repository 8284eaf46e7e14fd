package cache

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/mmusim/vm"
)

// A Builder can build caches
type Builder struct {
	numSets      int
	numWays      int
	blockSize    int
	victimFinder VictimFinder
}

// MakeBuilder returns a Builder for a 32 KiB cache with 64 sets, 8 ways, and
// 64-byte blocks.
func MakeBuilder() Builder {
	return Builder{
		numSets:      64,
		numWays:      8,
		blockSize:    64,
		victimFinder: LastInvalidVictimFinder{},
	}
}

// WithNumSets sets the number of sets. It must be a power of 2.
func (b Builder) WithNumSets(n int) Builder {
	b.numSets = n
	return b
}

// WithNumWays sets the number of ways in each set.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// WithBlockSize sets the number of bytes in a line. It must be a power of 2.
func (b Builder) WithBlockSize(n int) Builder {
	b.blockSize = n
	return b
}

// WithVictimFinder sets the replacement policy.
func (b Builder) WithVictimFinder(f VictimFinder) Builder {
	b.victimFinder = f
	return b
}

// Build creates a cache with all the blocks invalid.
func (b Builder) Build() *Cache {
	mustBePowerOf2("number of sets", b.numSets)
	mustBePowerOf2("block size", b.blockSize)

	if b.numWays <= 0 {
		panic(fmt.Sprintf("number of ways must be positive, got %d",
			b.numWays))
	}

	if b.numSets*b.blockSize > vm.PageSize {
		panic(fmt.Sprintf("sets (%d) x block size (%d) must fit in a page",
			b.numSets, b.blockSize))
	}

	c := &Cache{
		numSets:       b.numSets,
		numWays:       b.numWays,
		log2BlockSize: uint(bits.TrailingZeros(uint(b.blockSize))),
		log2NumSets:   uint(bits.TrailingZeros(uint(b.numSets))),
		victimFinder:  b.victimFinder,
	}
	c.Reset()

	return c
}

func mustBePowerOf2(what string, n int) {
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("%s must be a power of 2, got %d", what, n))
	}
}
