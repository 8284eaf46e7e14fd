package machine

import (
	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/vm"
)

// Hook positions of the machine. The comment of each position names the type
// of the Item and of the Detail of the HookCtx.
var (
	// Item: vm.VirtAddr.
	HookPosAccessStart = &hooking.HookPos{Name: "AccessStart"}

	// Item: vm.VirtAddr. Detail: the error returned by Read, or nil.
	HookPosAccessEnd = &hooking.HookPos{Name: "AccessEnd"}

	// Item: vm.VirtAddr.
	HookPosTLBHit = &hooking.HookPos{Name: "TLBHit"}

	// Item: vm.VirtAddr.
	HookPosTLBMiss = &hooking.HookPos{Name: "TLBMiss"}

	// Item: vm.VirtAddr of the evicted page. Detail: vm.PhysAddr of its frame.
	HookPosTLBEvict = &hooking.HookPos{Name: "TLBEvict"}

	// Item: vm.VirtAddr being translated. Detail: vm.PhysAddr of the frame.
	HookPosTLBInsert = &hooking.HookPos{Name: "TLBInsert"}

	// Item: vm.VirtAddr. Detail: vm.PhysAddr it translates to.
	HookPosTranslated = &hooking.HookPos{Name: "Translated"}

	// Item: vm.VirtAddr. Detail: *PageFault.
	HookPosPageFault = &hooking.HookPos{Name: "PageFault"}

	// Item: vm.PhysAddr.
	HookPosCacheHit = &hooking.HookPos{Name: "CacheHit"}

	// Item: vm.PhysAddr.
	HookPosCacheMiss = &hooking.HookPos{Name: "CacheMiss"}

	// Item: vm.PhysAddr of the evicted block.
	HookPosCacheEvict = &hooking.HookPos{Name: "CacheEvict"}

	// Item: vm.PhysAddr of the loaded block.
	HookPosCacheLoad = &hooking.HookPos{Name: "CacheLoad"}

	// Item: PageTableEdit.
	HookPosPageTableEdit = &hooking.HookPos{Name: "PageTableEdit"}

	HookPosInvalidateTLB   = &hooking.HookPos{Name: "InvalidateTLB"}
	HookPosInvalidateCache = &hooking.HookPos{Name: "InvalidateCache"}
)

// PageTableEdit describes a write into a page table.
type PageTableEdit struct {
	Table vm.PhysAddr
	Index int
	Entry vm.PageTableEntry
}
