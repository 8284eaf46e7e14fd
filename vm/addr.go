// Package vm defines the address types and the page-table format used by the
// simulated memory-management unit.
package vm

import "fmt"

// Page geometry of the 4-level forward-mapped page table.
const (
	Log2PageSize    = 12
	PageSize        = 1 << Log2PageSize
	PageOffsetMask  = PageSize - 1
	NumLevels       = 4
	Log2TableSize   = 9
	NumTableEntries = 1 << Log2TableSize
)

// PhysAddr is an address in the simulated physical memory.
type PhysAddr uint64

// PhysAddrFromFrameOffset builds a physical address from a frame number and
// an offset inside the frame.
func PhysAddrFromFrameOffset(frame, offset uint64) PhysAddr {
	return PhysAddr(frame<<Log2PageSize | offset)
}

// WithOffset replaces the in-page offset with the low 12 bits of offset.
func (a PhysAddr) WithOffset(offset uint64) PhysAddr {
	return PhysAddr(uint64(a)&^PageOffsetMask | offset&PageOffsetMask)
}

// FrameOffset returns the offset inside the frame.
func (a PhysAddr) FrameOffset() uint64 {
	return uint64(a) & PageOffsetMask
}

// FrameNumber returns the frame that holds the address.
func (a PhysAddr) FrameNumber() uint64 {
	return uint64(a) >> Log2PageSize
}

// IsFrameAligned tells if the address is the first byte of a frame.
func (a PhysAddr) IsFrameAligned() bool {
	return a.FrameOffset() == 0
}

func (a PhysAddr) String() string {
	return fmt.Sprintf("P0x%x", uint64(a))
}

// VirtAddr is an address in the simulated virtual address space.
type VirtAddr uint64

// Add returns the address n bytes after a.
func (a VirtAddr) Add(n uint64) VirtAddr {
	return a + VirtAddr(n)
}

// PageOffset returns the offset inside the page.
func (a VirtAddr) PageOffset() uint64 {
	return uint64(a) & PageOffsetMask
}

// VPN returns the virtual page number.
func (a VirtAddr) VPN() uint64 {
	return uint64(a) >> Log2PageSize
}

// VPN1 returns the level-1 table index, bits [39:47].
func (a VirtAddr) VPN1() int { return a.LevelIndex(1) }

// VPN2 returns the level-2 table index, bits [30:38].
func (a VirtAddr) VPN2() int { return a.LevelIndex(2) }

// VPN3 returns the level-3 table index, bits [21:29].
func (a VirtAddr) VPN3() int { return a.LevelIndex(3) }

// VPN4 returns the level-4 table index, bits [12:20].
func (a VirtAddr) VPN4() int { return a.LevelIndex(4) }

// LevelIndex returns the 9-bit table index used at the given walk level,
// counting from 1 (root) to 4 (leaf).
func (a VirtAddr) LevelIndex(level int) int {
	if level < 1 || level > NumLevels {
		panic(fmt.Sprintf("invalid page table level %d", level))
	}

	shift := Log2PageSize + Log2TableSize*(NumLevels-level)

	return int(uint64(a)>>shift) & (NumTableEntries - 1)
}

// LevelSpan returns the number of bytes of virtual address space covered by
// one entry of a table at the given level.
func LevelSpan(level int) uint64 {
	return PageSize << (Log2TableSize * (NumLevels - level))
}

func (a VirtAddr) String() string {
	return fmt.Sprintf("V0x%x", uint64(a))
}
