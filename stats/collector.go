// Package stats counts the hits, misses, and faults of a machine.
package stats

import (
	"fmt"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/machine"
)

// CacheStats counts the lookups of one caching structure.
type CacheStats struct {
	Hit  uint64 `json:"hit"`
	Miss uint64 `json:"miss"`
}

// HitRate returns the fraction of lookups that hit, or 0 without lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hit + s.Miss
	if total == 0 {
		return 0
	}

	return float64(s.Hit) / float64(total)
}

// A Collector is a hook that counts the TLB and L1 lookups and the page
// faults reported by a machine. It never changes the machine.
type Collector struct {
	TLB        CacheStats `json:"tlb"`
	L1         CacheStats `json:"l1"`
	PageFaults uint64     `json:"page_faults"`
}

// NewCollector creates a Collector with all counters at 0.
func NewCollector() *Collector {
	return &Collector{}
}

// Func updates the counters according to the hook position.
func (c *Collector) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case machine.HookPosTLBHit:
		c.TLBHit()
	case machine.HookPosTLBMiss:
		c.TLBMiss()
	case machine.HookPosCacheHit:
		c.L1Hit()
	case machine.HookPosCacheMiss:
		c.L1Miss()
	case machine.HookPosPageFault:
		c.PageFault()
	}
}

// TLBHit records a TLB hit.
func (c *Collector) TLBHit() { c.TLB.Hit++ }

// TLBMiss records a TLB miss.
func (c *Collector) TLBMiss() { c.TLB.Miss++ }

// L1Hit records an L1 hit.
func (c *Collector) L1Hit() { c.L1.Hit++ }

// L1Miss records an L1 miss.
func (c *Collector) L1Miss() { c.L1.Miss++ }

// PageFault records a page fault.
func (c *Collector) PageFault() { c.PageFaults++ }

// Reset sets every counter back to 0.
func (c *Collector) Reset() {
	*c = Collector{}
}

// String renders the counters, one per line.
func (c *Collector) String() string {
	return fmt.Sprintf(
		"TLB hits:    %d\nTLB misses:  %d\nL1 hits:     %d\nL1 misses:   %d\nPage Faults: %d",
		c.TLB.Hit,
		c.TLB.Miss,
		c.L1.Hit,
		c.L1.Miss,
		c.PageFaults,
	)
}
