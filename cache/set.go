package cache

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	IsValid bool

	// Tag is the block address without the set index and block offset bits.
	Tag uint64

	Line []byte
}

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	Blocks []Block

	// LRUQueue lists way IDs from the least to the most recently used.
	LRUQueue []int
}

// NumValid counts the valid blocks.
func (s *Set) NumValid() int {
	n := 0
	for _, b := range s.Blocks {
		if b.IsValid {
			n++
		}
	}

	return n
}

// HasEntry tells if any block of the set is valid.
func (s *Set) HasEntry() bool {
	for _, b := range s.Blocks {
		if b.IsValid {
			return true
		}
	}

	return false
}

// visit moves the way to the end of the LRUQueue
func (s *Set) visit(wayID int) {
	q := s.LRUQueue

	for i, w := range q {
		if w == wayID {
			copy(q[i:], q[i+1:])
			q[len(q)-1] = wayID

			return
		}
	}
}
