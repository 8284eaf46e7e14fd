// Package tracing turns the hook events of a machine into human-readable
// traces, either printed as an indented log or recorded into a database.
package tracing

import (
	"fmt"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/vm"
)

// Message describes a hook event in one line. The boolean is false for
// events that do not produce a line.
func Message(ctx hooking.HookCtx) (string, bool) {
	switch ctx.Pos {
	case machine.HookPosAccessStart:
		return fmt.Sprintf("Memory Access at %s", ctx.Item), true
	case machine.HookPosTLBHit:
		return "TLB Hit", true
	case machine.HookPosTLBMiss:
		return "TLB Miss", true
	case machine.HookPosTLBEvict:
		return fmt.Sprintf("Evicting TLB Entry %s", ctx.Item), true
	case machine.HookPosTLBInsert:
		return fmt.Sprintf("New TLB Entry: %s", ctx.Item), true
	case machine.HookPosTranslated:
		return fmt.Sprintf("Found physical address %s", ctx.Detail), true
	case machine.HookPosPageFault:
		return "Page Fault.", true
	case machine.HookPosCacheHit:
		return "Cache Hit", true
	case machine.HookPosCacheMiss:
		return "Cache Miss", true
	case machine.HookPosCacheEvict:
		return fmt.Sprintf("Evicting L1 Entry: %s", ctx.Item), true
	case machine.HookPosCacheLoad:
		return fmt.Sprintf("Loaded %s into cache.", ctx.Item), true
	case machine.HookPosPageTableEdit:
		return editMessage(ctx.Item.(machine.PageTableEdit)), true
	case machine.HookPosInvalidateTLB:
		return "Invalidate TLB", true
	case machine.HookPosInvalidateCache:
		return "Invalidate Cache", true
	}

	return "", false
}

func editMessage(edit machine.PageTableEdit) string {
	if edit.Entry.IsPresent() {
		return fmt.Sprintf(
			"Page-Table Edit at address %s: Mapping entry %03d to %s",
			edit.Table, edit.Index, edit.Entry.PhysAddr())
	}

	return fmt.Sprintf(
		"Page-Table Edit at address %s: Unmapping entry %03d",
		edit.Table, edit.Index)
}

// addresses extracts the virtual and the physical address an event is about.
// Missing addresses are 0.
func addresses(ctx hooking.HookCtx) (vAddr vm.VirtAddr, pAddr vm.PhysAddr) {
	switch item := ctx.Item.(type) {
	case vm.VirtAddr:
		vAddr = item
	case vm.PhysAddr:
		pAddr = item
	case machine.PageTableEdit:
		pAddr = item.Table
	}

	if detail, ok := ctx.Detail.(vm.PhysAddr); ok {
		pAddr = detail
	}

	return vAddr, pAddr
}
