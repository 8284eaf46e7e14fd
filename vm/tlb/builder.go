package tlb

import "fmt"

// A Builder can build TLBs
type Builder struct {
	numSets      int
	numWays      int
	victimFinder VictimFinder
}

// MakeBuilder returns a Builder for a 128-set, 4-way TLB.
func MakeBuilder() Builder {
	return Builder{
		numSets:      128,
		numWays:      4,
		victimFinder: LeastAccessedVictimFinder{},
	}
}

// WithNumSets sets the number of sets in a TLB. It must be a power of 2.
func (b Builder) WithNumSets(n int) Builder {
	b.numSets = n
	return b
}

// WithNumWays sets the number of ways in each set.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// WithVictimFinder sets the replacement policy.
func (b Builder) WithVictimFinder(f VictimFinder) Builder {
	b.victimFinder = f
	return b
}

// Build creates a TLB with all the entries invalid.
func (b Builder) Build() *TLB {
	if b.numSets <= 0 || b.numSets&(b.numSets-1) != 0 {
		panic(fmt.Sprintf("number of TLB sets must be a power of 2, got %d",
			b.numSets))
	}

	if b.numWays <= 0 {
		panic(fmt.Sprintf("number of TLB ways must be positive, got %d",
			b.numWays))
	}

	t := &TLB{
		numSets:      b.numSets,
		numWays:      b.numWays,
		victimFinder: b.victimFinder,
	}
	t.Reset()

	return t
}
