package machine

import (
	"fmt"
	"math"

	"github.com/sarchlab/mmusim/cache"
	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/memory"
	"github.com/sarchlab/mmusim/vm"
	"github.com/sarchlab/mmusim/vm/tlb"
)

// MaxMemoryInMegabytes is the largest memory whose size in bytes fits in 64
// bits.
const MaxMemoryInMegabytes = math.MaxUint64 >> 20

// A Builder can build machines
type Builder struct {
	memoryInMB   uint64
	cr3          vm.PhysAddr
	tlbBuilder   tlb.Builder
	cacheBuilder cache.Builder
}

// MakeBuilder returns a Builder for a machine with 200 MB of memory, the root
// page table in frame 100, and the default TLB and cache.
func MakeBuilder() Builder {
	return Builder{
		memoryInMB:   200,
		cr3:          vm.PhysAddrFromFrameOffset(100, 0),
		tlbBuilder:   tlb.MakeBuilder(),
		cacheBuilder: cache.MakeBuilder(),
	}
}

// WithMemoryInMegabytes sets the size of the physical memory.
func (b Builder) WithMemoryInMegabytes(mb uint64) Builder {
	b.memoryInMB = mb
	return b
}

// WithCR3 sets the location of the root page table. It must be frame aligned.
func (b Builder) WithCR3(addr vm.PhysAddr) Builder {
	b.cr3 = addr
	return b
}

// WithTLBBuilder sets the builder used to create the TLB.
func (b Builder) WithTLBBuilder(tb tlb.Builder) Builder {
	b.tlbBuilder = tb
	return b
}

// WithCacheBuilder sets the builder used to create the L1 cache.
func (b Builder) WithCacheBuilder(cb cache.Builder) Builder {
	b.cacheBuilder = cb
	return b
}

// Build creates a machine with zeroed memory and empty TLB and cache.
func (b Builder) Build() *Machine {
	if !b.cr3.IsFrameAligned() {
		panic(fmt.Sprintf("cr3 %s is not frame aligned", b.cr3))
	}

	if b.memoryInMB > MaxMemoryInMegabytes {
		panic(fmt.Sprintf("memory of %d MB does not fit in 64-bit addresses",
			b.memoryInMB))
	}

	capacity := b.memoryInMB << 20
	if uint64(b.cr3)+vm.PageTableSize > capacity {
		panic(fmt.Sprintf("cr3 %s is outside of the %d MB memory",
			b.cr3, b.memoryInMB))
	}

	return &Machine{
		HookableBase: hooking.NewHookableBase(),
		cr3:          b.cr3,
		memory:       memory.NewStorage(capacity),
		tlb:          b.tlbBuilder.Build(),
		cache:        b.cacheBuilder.Build(),
	}
}
