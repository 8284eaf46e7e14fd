package vm

import "encoding/binary"

const (
	ptePresent   = uint64(1)
	pteFrameMask = ^uint64(PageOffsetMask)

	// PageTableEntrySize is the size of an encoded entry in bytes.
	PageTableEntrySize = 8

	// PageTableSize is the size of an encoded table, exactly one page.
	PageTableSize = NumTableEntries * PageTableEntrySize
)

// A PageTableEntry maps one table slot to the frame of the next-level table
// or, at the last level, to the data frame. Bit 0 is the present flag and
// bits 12 and up hold the frame address.
type PageTableEntry uint64

// NewPresentEntry creates a present entry pointing to target. The low 12
// bits of target are dropped.
func NewPresentEntry(target PhysAddr) PageTableEntry {
	return PageTableEntry(uint64(target)&pteFrameMask | ptePresent)
}

// NewUnmappedEntry creates an entry that is not present.
func NewUnmappedEntry() PageTableEntry {
	return 0
}

// IsPresent tells if the entry maps anything.
func (e PageTableEntry) IsPresent() bool {
	return uint64(e)&ptePresent != 0
}

// PhysAddr returns the frame address the entry points to.
func (e PageTableEntry) PhysAddr() PhysAddr {
	return PhysAddr(uint64(e) & pteFrameMask)
}

// A PageTable is one node of the radix tree. It is never stored on its own:
// it is decoded from, and encoded back into, one frame of physical memory.
type PageTable [NumTableEntries]PageTableEntry

// ByteSize returns the encoded size of the table.
func (t *PageTable) ByteSize() uint64 {
	return PageTableSize
}

// Decode fills the table from its little-endian encoding.
func (t *PageTable) Decode(buf []byte) {
	for i := range t {
		off := i * PageTableEntrySize
		t[i] = PageTableEntry(binary.LittleEndian.Uint64(buf[off:]))
	}
}

// Encode writes the little-endian encoding of the table into buf.
func (t *PageTable) Encode(buf []byte) {
	for i, e := range t {
		off := i * PageTableEntrySize
		binary.LittleEndian.PutUint64(buf[off:], uint64(e))
	}
}

// NumPresent counts the present entries.
func (t *PageTable) NumPresent() int {
	n := 0
	for _, e := range t {
		if e.IsPresent() {
			n++
		}
	}

	return n
}
