package cache

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func newTestSet(numWays int) *Set {
	s := &Set{
		Blocks:   make([]Block, numWays),
		LRUQueue: make([]int, numWays),
	}
	for i := range s.LRUQueue {
		s.LRUQueue[i] = i
	}

	return s
}

var _ = Describe("LastInvalidVictimFinder", func() {
	It("should pick the last invalid block", func() {
		s := newTestSet(4)
		s.Blocks[3].IsValid = true
		s.Blocks[1].IsValid = true

		Expect(LastInvalidVictimFinder{}.FindVictim(s)).To(Equal(2))
	})

	It("should pick way 0 when full", func() {
		s := newTestSet(4)
		for i := range s.Blocks {
			s.Blocks[i].IsValid = true
		}
		s.visit(0)

		Expect(LastInvalidVictimFinder{}.FindVictim(s)).To(Equal(0))
	})
})

var _ = Describe("LRUVictimFinder", func() {
	It("should pick an invalid block in LRU order", func() {
		s := newTestSet(4)
		s.Blocks[0].IsValid = true
		s.visit(2)

		Expect(LRUVictimFinder{}.FindVictim(s)).To(Equal(1))
	})

	It("should pick the least recently used block when full", func() {
		s := newTestSet(4)
		for i := range s.Blocks {
			s.Blocks[i].IsValid = true
		}
		s.visit(0)
		s.visit(1)

		Expect(s.LRUQueue).To(Equal([]int{2, 3, 0, 1}))
		Expect(LRUVictimFinder{}.FindVictim(s)).To(Equal(2))
	})

	It("should reorder the queue without allocating", func() {
		s := newTestSet(8)
		queue := s.LRUQueue

		allocs := testing.AllocsPerRun(10, func() {
			s.visit(3)
			s.visit(0)
		})

		Expect(allocs).To(BeZero())
		Expect(&s.LRUQueue[0]).To(BeIdenticalTo(&queue[0]))
		Expect(s.LRUQueue).To(Equal([]int{1, 2, 4, 5, 6, 7, 3, 0}))
	})

	It("should drive the cache with recency", func() {
		c := MakeBuilder().WithVictimFinder(LRUVictimFinder{}).Build()
		for i := uint64(1); i <= 8; i++ {
			c.Fill(blockInSet(0, i), lineOf(0))
		}

		c.Lookup(blockInSet(0, 1))
		_, victim, _ := c.Fill(blockInSet(0, 9), lineOf(0))

		Expect(victim.Tag).To(Equal(uint64(2)))
	})
})
