package scenario

import "github.com/sarchlab/mmusim/vm"

// A FrameAllocator hands out physical frames in increasing order. Frames are
// never freed.
type FrameAllocator struct {
	next uint64
}

// NewFrameAllocator creates an allocator whose first frame is firstFrame.
func NewFrameAllocator(firstFrame uint64) *FrameAllocator {
	return &FrameAllocator{next: firstFrame}
}

// Next returns the address of a frame that was never handed out before.
func (a *FrameAllocator) Next() vm.PhysAddr {
	f := vm.PhysAddrFromFrameOffset(a.next, 0)
	a.next++

	return f
}
