package cache

// A VictimFinder decides which block should be evicted
type VictimFinder interface {
	FindVictim(set *Set) (wayID int)
}

// LastInvalidVictimFinder picks the invalid block with the highest way ID.
// When every block is valid, way 0 is always replaced. This is not a
// recency-based policy.
type LastInvalidVictimFinder struct{}

// FindVictim returns the way to replace.
func (LastInvalidVictimFinder) FindVictim(set *Set) int {
	victim := 0

	for i, b := range set.Blocks {
		if !b.IsValid {
			victim = i
		}
	}

	return victim
}

// LRUVictimFinder evicts the least recently used block
type LRUVictimFinder struct{}

// FindVictim returns the least recently used block in a set, preferring an
// empty block.
func (LRUVictimFinder) FindVictim(set *Set) int {
	for _, wayID := range set.LRUQueue {
		if !set.Blocks[wayID].IsValid {
			return wayID
		}
	}

	return set.LRUQueue[0]
}
