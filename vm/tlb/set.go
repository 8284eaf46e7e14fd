package tlb

import (
	"math"

	"github.com/sarchlab/mmusim/vm"
)

// An Entry is one way of a TLB set.
type Entry struct {
	Valid bool

	// Tag is the virtual page number with the set-index bits cleared.
	Tag uint64

	// Access counts the hits since the set was last refilled. It saturates
	// instead of wrapping.
	Access uint8

	// PAddr is the frame address of the translation, with a zero offset.
	PAddr vm.PhysAddr
}

func (e *Entry) markAccessed() {
	if e.Access < math.MaxUint8 {
		e.Access++
	}
}

// VAddr rebuilds the first virtual address of the page cached in the entry,
// given the set that holds it.
func (e Entry) VAddr(setID int) vm.VirtAddr {
	return vm.VirtAddr((e.Tag | uint64(setID)) << vm.Log2PageSize)
}

// A Set holds the ways that a group of virtual pages can be cached in.
type Set struct {
	Entries []Entry
}

// NumValid counts the valid ways.
func (s *Set) NumValid() int {
	n := 0
	for _, e := range s.Entries {
		if e.Valid {
			n++
		}
	}

	return n
}

// A VictimFinder decides which way of a set receives a new translation.
type VictimFinder interface {
	FindVictim(set *Set) (wayID int)
}

// LeastAccessedVictimFinder picks the first invalid way. If every way is
// valid, it picks the way with the lowest access counter, the lowest way ID
// winning ties.
type LeastAccessedVictimFinder struct{}

// FindVictim returns the way to replace.
func (LeastAccessedVictimFinder) FindVictim(set *Set) int {
	victim := 0

	for i, e := range set.Entries {
		if !e.Valid {
			return i
		}

		if e.Access < set.Entries[victim].Access {
			victim = i
		}
	}

	return victim
}
