// Package tlb provides a set-associative translation lookaside buffer.
package tlb

import (
	"github.com/sarchlab/mmusim/vm"
)

// TLB caches virtual page number to frame translations.
//
// The set index is the low bits of the virtual page number and the tag is the
// virtual page number with those bits cleared. Every refill clears the access
// counters of the whole set, not only the counter of the replaced way.
type TLB struct {
	numSets      int
	numWays      int
	victimFinder VictimFinder

	sets []Set
}

// NumSets returns the number of sets.
func (t *TLB) NumSets() int {
	return t.numSets
}

// NumWays returns the number of ways per set.
func (t *TLB) NumWays() int {
	return t.numWays
}

// SetID returns the set that caches the page of vAddr.
func (t *TLB) SetID(vAddr vm.VirtAddr) int {
	return int(vAddr.VPN() & uint64(t.numSets-1))
}

func (t *TLB) tag(vAddr vm.VirtAddr) uint64 {
	return vAddr.VPN() &^ uint64(t.numSets-1)
}

// Sets returns a copy of all the sets.
func (t *TLB) Sets() []Set {
	sets := make([]Set, len(t.sets))
	for i, s := range t.sets {
		sets[i].Entries = append([]Entry(nil), s.Entries...)
	}

	return sets
}

// Lookup searches for the translation of vAddr. On a hit, the access counter
// of the matching way is bumped and the translated address, carrying the
// page offset of vAddr, is returned.
func (t *TLB) Lookup(vAddr vm.VirtAddr) (vm.PhysAddr, bool) {
	set := &t.sets[t.SetID(vAddr)]
	tag := t.tag(vAddr)

	for i := range set.Entries {
		e := &set.Entries[i]
		if e.Valid && e.Tag == tag {
			e.markAccessed()
			return e.PAddr.WithOffset(vAddr.PageOffset()), true
		}
	}

	return 0, false
}

// Insert caches the translation of the page of vAddr to the frame of
// pAddr. It returns the entry that was replaced; evicted tells if that entry
// held a valid translation.
func (t *TLB) Insert(
	vAddr vm.VirtAddr,
	pAddr vm.PhysAddr,
) (victim Entry, evicted bool) {
	set := &t.sets[t.SetID(vAddr)]

	wayID := t.victimFinder.FindVictim(set)
	victim = set.Entries[wayID]

	for i := range set.Entries {
		set.Entries[i].Access = 0
	}

	e := &set.Entries[wayID]
	e.Valid = true
	e.Tag = t.tag(vAddr)
	e.PAddr = pAddr.WithOffset(0)
	e.markAccessed()

	return victim, victim.Valid
}

// Reset marks all the entries invalid.
func (t *TLB) Reset() {
	t.sets = make([]Set, t.numSets)
	for i := range t.sets {
		t.sets[i].Entries = make([]Entry, t.numWays)
	}
}
