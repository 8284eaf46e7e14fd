// Package machine composes physical memory, a TLB, and an L1 data cache into
// a memory-management unit that translates and reads virtual addresses.
package machine

import (
	"errors"
	"fmt"

	"github.com/sarchlab/mmusim/cache"
	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/memory"
	"github.com/sarchlab/mmusim/vm"
	"github.com/sarchlab/mmusim/vm/tlb"
)

// Machine is the simulated memory-management unit.
//
// The machine is not safe for concurrent use. It performs no implicit TLB or
// cache invalidation: after a page-table edit, stale translations stay in the
// TLB until InvalidateTLB is called.
type Machine struct {
	*hooking.HookableBase

	cr3    vm.PhysAddr
	memory *memory.Storage
	tlb    *tlb.TLB
	cache  *cache.Cache
}

// CR3 returns the location of the root page table.
func (m *Machine) CR3() vm.PhysAddr {
	return m.cr3
}

// Memory returns the physical memory. Callers that only observe the machine
// must not write through it.
func (m *Machine) Memory() *memory.Storage {
	return m.memory
}

// TLB returns the translation lookaside buffer. Callers that only observe the
// machine must not call Lookup, Insert, or Reset on it.
func (m *Machine) TLB() *tlb.TLB {
	return m.tlb
}

// Cache returns the L1 data cache. Callers that only observe the machine must
// not call Lookup, Fill, or Reset on it.
func (m *Machine) Cache() *cache.Cache {
	return m.cache
}

func (m *Machine) invoke(pos *hooking.HookPos, item, detail interface{}) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

// Translate returns the physical address that vAddr maps to. The TLB is
// checked first; on a miss, the page table is walked from CR3 and the
// translation is cached. A *PageFault is returned if any level of the walk
// has no present entry.
func (m *Machine) Translate(vAddr vm.VirtAddr) (vm.PhysAddr, error) {
	if pAddr, found := m.tlb.Lookup(vAddr); found {
		m.invoke(HookPosTLBHit, vAddr, nil)
		m.invoke(HookPosTranslated, vAddr, pAddr)

		return pAddr, nil
	}

	m.invoke(HookPosTLBMiss, vAddr, nil)

	frame, err := m.walk(vAddr)
	if err != nil {
		var fault *PageFault
		if errors.As(err, &fault) {
			m.invoke(HookPosPageFault, vAddr, fault)
		}

		return 0, err
	}

	victim, evicted := m.tlb.Insert(vAddr, frame)
	if evicted {
		m.invoke(HookPosTLBEvict, victim.VAddr(m.tlb.SetID(vAddr)), victim.PAddr)
	}

	m.invoke(HookPosTLBInsert, vAddr, frame)

	pAddr := frame.WithOffset(vAddr.PageOffset())
	m.invoke(HookPosTranslated, vAddr, pAddr)

	return pAddr, nil
}

func (m *Machine) walk(vAddr vm.VirtAddr) (vm.PhysAddr, error) {
	tableAddr := m.cr3
	table := &vm.PageTable{}

	for level := 1; level <= vm.NumLevels; level++ {
		err := m.memory.ReadRecord(uint64(tableAddr), table)
		if err != nil {
			return 0, fmt.Errorf("reading level %d table at %s: %w",
				level, tableAddr, err)
		}

		pte := table[vAddr.LevelIndex(level)]
		if !pte.IsPresent() {
			return 0, &PageFault{VAddr: vAddr, Level: level}
		}

		tableAddr = pte.PhysAddr()
	}

	return tableAddr, nil
}

// Read translates vAddr and reads the byte it maps to through the L1 cache.
// A *PageFault from the translation is returned unchanged.
func (m *Machine) Read(vAddr vm.VirtAddr) (byte, error) {
	m.invoke(HookPosAccessStart, vAddr, nil)

	data, err := m.read(vAddr)

	m.invoke(HookPosAccessEnd, vAddr, err)

	return data, err
}

func (m *Machine) read(vAddr vm.VirtAddr) (byte, error) {
	pAddr, err := m.Translate(vAddr)
	if err != nil {
		return 0, err
	}

	return m.ReadPhys(pAddr)
}

// ReadPhys reads the byte at pAddr through the L1 cache. On a miss, the whole
// block is loaded from memory into the cache. The only possible error is an
// access beyond the memory capacity.
func (m *Machine) ReadPhys(pAddr vm.PhysAddr) (byte, error) {
	if data, found := m.cache.Lookup(pAddr); found {
		m.invoke(HookPosCacheHit, pAddr, nil)
		return data, nil
	}

	m.invoke(HookPosCacheMiss, pAddr, nil)

	blockAddr := m.cache.BlockAddr(pAddr)

	line, err := m.memory.Read(uint64(blockAddr), m.cache.BlockSize())
	if err != nil {
		return 0, err
	}

	data, victim, evicted := m.cache.Fill(pAddr, line)
	if evicted {
		m.invoke(HookPosCacheEvict,
			m.cache.BlockPAddr(m.cache.SetID(pAddr), victim), nil)
	}

	m.invoke(HookPosCacheLoad, blockAddr, nil)

	return data, nil
}

// ReadTable decodes the page table stored at tableLoc.
func (m *Machine) ReadTable(tableLoc vm.PhysAddr) (vm.PageTable, error) {
	table := vm.PageTable{}
	err := m.memory.ReadRecord(uint64(tableLoc), &table)

	return table, err
}

// MapPage makes slot index of the table at tableLoc point to target.
func (m *Machine) MapPage(tableLoc vm.PhysAddr, index int, target vm.PhysAddr) error {
	return m.editEntry(tableLoc, index, vm.NewPresentEntry(target))
}

// UnmapPage clears slot index of the table at tableLoc.
func (m *Machine) UnmapPage(tableLoc vm.PhysAddr, index int) error {
	return m.editEntry(tableLoc, index, vm.NewUnmappedEntry())
}

func (m *Machine) editEntry(
	tableLoc vm.PhysAddr,
	index int,
	entry vm.PageTableEntry,
) error {
	if index < 0 || index >= vm.NumTableEntries {
		return fmt.Errorf("%w: %d", ErrInvalidEntryIndex, index)
	}

	if !tableLoc.IsFrameAligned() {
		return fmt.Errorf("%w: %s", ErrMisalignedTable, tableLoc)
	}

	table := &vm.PageTable{}

	err := m.memory.EditRecord(uint64(tableLoc), table, func() {
		table[index] = entry
	})
	if err != nil {
		return err
	}

	m.invoke(HookPosPageTableEdit, PageTableEdit{
		Table: tableLoc,
		Index: index,
		Entry: entry,
	}, nil)

	return nil
}

// InvalidateTLB drops every cached translation.
func (m *Machine) InvalidateTLB() {
	m.tlb.Reset()
	m.invoke(HookPosInvalidateTLB, nil, nil)
}

// InvalidateCache drops every cached block.
func (m *Machine) InvalidateCache() {
	m.cache.Reset()
	m.invoke(HookPosInvalidateCache, nil, nil)
}
