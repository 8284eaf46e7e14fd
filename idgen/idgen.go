// Package idgen generates unique IDs for recorded events.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator can generate IDs
type Generator interface {
	// Generate an ID
	Generate() string
}

// NewSequential returns a generator whose IDs are "1", "2", ... It is the
// choice for reproducible runs.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewParallel returns a generator of globally unique IDs. The IDs are not
// deterministic.
func NewParallel() Generator {
	return parallelGenerator{}
}

type sequentialGenerator struct {
	nextID uint64
}

func (g *sequentialGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	return strconv.FormatUint(idNumber, 10)
}

type parallelGenerator struct {
}

func (g parallelGenerator) Generate() string {
	return xid.New().String()
}
