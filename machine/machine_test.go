package machine_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/memory"
	"github.com/sarchlab/mmusim/vm"
)

func frame(n uint64) vm.PhysAddr {
	return vm.PhysAddrFromFrameOffset(n, 0)
}

// buildChain maps cr3[10]=F1, F1[0]=F2, F2[0]=F3, F2[1]=F3 and F3[i] to
// frames 104+i for i in [0, 10).
func buildChain(m *machine.Machine) {
	f1, f2, f3 := frame(101), frame(102), frame(103)

	Expect(m.MapPage(m.CR3(), 10, f1)).To(Succeed())
	Expect(m.MapPage(f1, 0, f2)).To(Succeed())
	Expect(m.MapPage(f2, 0, f3)).To(Succeed())
	Expect(m.MapPage(f2, 1, f3)).To(Succeed())

	for i := 0; i < 10; i++ {
		Expect(m.MapPage(f3, i, frame(104+uint64(i)))).To(Succeed())
	}
}

type eventCounter map[string]int

func (c eventCounter) Func(ctx hooking.HookCtx) {
	c[ctx.Pos.Name]++
}

const (
	vaLow  = vm.VirtAddr(0x50000000000)
	vaHigh = vm.VirtAddr(0x50000200000)
)

var _ = Describe("Machine", func() {
	var (
		m      *machine.Machine
		counts eventCounter
	)

	BeforeEach(func() {
		m = machine.MakeBuilder().Build()
		counts = eventCounter{}
		m.AcceptHook(counts)
		buildChain(m)
	})

	It("should place the root table at frame 100 by default", func() {
		Expect(m.CR3()).To(Equal(vm.PhysAddr(0x64000)))
		Expect(m.Memory().Capacity()).To(Equal(uint64(200 << 20)))
	})

	It("should translate homonyms to the same frame", func() {
		p1, err := m.Translate(vaLow)
		Expect(err).NotTo(HaveOccurred())

		p2, err := m.Translate(vaHigh)
		Expect(err).NotTo(HaveOccurred())

		Expect(p1).To(Equal(frame(104)))
		Expect(p2).To(Equal(frame(104)))
	})

	It("should keep the page offset", func() {
		p, err := m.Translate(vaHigh.Add(0x2345))

		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(frame(106).WithOffset(0x345)))
	})

	It("should hit the TLB for the same page", func() {
		p1, _ := m.Translate(vaHigh.Add(8))
		p2, _ := m.Translate(vaHigh.Add(0xfff))

		Expect(p2).To(Equal(p1.WithOffset(0xfff)))
		Expect(counts["TLBMiss"]).To(Equal(1))
		Expect(counts["TLBHit"]).To(Equal(1))
		Expect(counts["TLBInsert"]).To(Equal(1))
	})

	It("should read the byte stored in memory", func() {
		Expect(m.Memory().Write(uint64(frame(105))+0x10, []byte{42})).
			To(Succeed())

		data, err := m.Read(vaLow.Add(0x1010))

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(byte(42)))
	})

	It("should fault on an unmapped top-level entry", func() {
		_, err := m.Read(vm.VirtAddr(0x1000))

		var fault *machine.PageFault
		Expect(err).To(BeAssignableToTypeOf(fault))
		Expect(machine.IsPageFault(err)).To(BeTrue())
		Expect(err.(*machine.PageFault).Level).To(Equal(1))
		Expect(counts["PageFault"]).To(Equal(1))
		Expect(counts["TLBInsert"]).To(BeZero())
	})

	It("should fault at the leaf level", func() {
		_, err := m.Translate(vaLow.Add(10 * vm.PageSize))

		Expect(machine.IsPageFault(err)).To(BeTrue())
		Expect(err.(*machine.PageFault).Level).To(Equal(4))
		Expect(err.Error()).To(ContainSubstring("level 4 entry 010"))
	})

	It("should fault after unmap once the TLB is invalidated", func() {
		_, err := m.Translate(vaLow)
		Expect(err).NotTo(HaveOccurred())

		Expect(m.UnmapPage(frame(103), 0)).To(Succeed())

		_, err = m.Translate(vaLow)
		Expect(err).NotTo(HaveOccurred(), "stale translation stays in the TLB")

		m.InvalidateTLB()

		_, err = m.Translate(vaLow)
		Expect(machine.IsPageFault(err)).To(BeTrue())
		_, err = m.Translate(vaHigh)
		Expect(machine.IsPageFault(err)).To(BeTrue())
	})

	It("should count misses of a sequential read", func() {
		m.InvalidateTLB()
		for i := uint64(0); i < 100; i++ {
			_, err := m.Read(vaHigh.Add(i))
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(counts["TLBMiss"]).To(Equal(1))
		Expect(counts["TLBHit"]).To(Equal(99))
		Expect(counts["CacheMiss"]).To(Equal(2))
		Expect(counts["CacheHit"]).To(Equal(98))
	})

	It("should miss the cache on every access of a strided read", func() {
		for i := uint64(0); i < 64; i++ {
			_, err := m.Read(vaHigh.Add(64 * i))
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(counts["TLBMiss"]).To(Equal(1))
		Expect(counts["CacheMiss"]).To(Equal(64))
		Expect(counts["CacheEvict"]).To(BeZero())

		for i := uint64(64); i < 100; i++ {
			_, err := m.Read(vaHigh.Add(64 * i))
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(counts["TLBMiss"]).To(Equal(2))
		Expect(counts["CacheMiss"]).To(Equal(100))
	})

	It("should evict from the TLB when a set overflows", func() {
		f3 := frame(103)
		Expect(m.MapPage(frame(102), 2, f3)).To(Succeed())
		Expect(m.MapPage(frame(102), 3, f3)).To(Succeed())
		Expect(m.MapPage(frame(102), 4, f3)).To(Succeed())

		for i := uint64(0); i < 5; i++ {
			_, err := m.Translate(vaLow.Add(i << 21))
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(counts["TLBEvict"]).To(Equal(1))
		for _, s := range m.TLB().Sets() {
			Expect(s.NumValid()).To(BeNumerically("<=", 4))
		}
	})

	It("should evict from the cache when a set overflows", func() {
		for i := 0; i < 9; i++ {
			_, err := m.Read(vaLow.Add(uint64(i) * vm.PageSize))
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(counts["CacheMiss"]).To(Equal(9))
		Expect(counts["CacheEvict"]).To(Equal(1))
		Expect(m.Cache().Sets()[0].NumValid()).To(Equal(8))
	})

	It("should empty the cache on invalidate", func() {
		_, _ = m.Read(vaLow)
		m.InvalidateCache()
		_, _ = m.Read(vaLow)

		Expect(counts["CacheMiss"]).To(Equal(2))
		Expect(counts["InvalidateCache"]).To(Equal(1))
	})

	It("should reject an invalid slot index", func() {
		err := m.MapPage(frame(101), 512, frame(200))
		Expect(err).To(MatchError(machine.ErrInvalidEntryIndex))

		err = m.UnmapPage(frame(101), -1)
		Expect(err).To(MatchError(machine.ErrInvalidEntryIndex))
	})

	It("should reject a misaligned table location", func() {
		err := m.MapPage(vm.PhysAddr(0x65008), 0, frame(200))

		Expect(err).To(MatchError(machine.ErrMisalignedTable))
	})

	It("should expose decoded tables", func() {
		table, err := m.ReadTable(frame(103))

		Expect(err).NotTo(HaveOccurred())
		Expect(table.NumPresent()).To(Equal(10))
		Expect(table[9].PhysAddr()).To(Equal(frame(113)))
	})
})

var _ = Describe("Machine memory bounds", func() {
	It("should return an error instead of reading past memory", func() {
		m := machine.MakeBuilder().WithMemoryInMegabytes(1).Build()
		buildChain(m)
		Expect(m.MapPage(frame(103), 0, frame(0x100))).To(Succeed())

		_, err := m.Read(vaLow)

		Expect(err).To(MatchError(memory.ErrAccessBeyondCapacity))
		Expect(machine.IsPageFault(err)).To(BeFalse())
	})

	It("should return an error when a table lies past memory", func() {
		m := machine.MakeBuilder().WithMemoryInMegabytes(1).Build()
		Expect(m.MapPage(m.CR3(), 0, frame(0x100))).To(Succeed())

		_, err := m.Translate(vm.VirtAddr(0))
		Expect(err).To(MatchError(memory.ErrAccessBeyondCapacity))

		err = m.MapPage(frame(0x100), 0, frame(1))
		Expect(err).To(MatchError(memory.ErrAccessBeyondCapacity))
	})

	It("should panic on a misplaced root table", func() {
		Expect(func() {
			machine.MakeBuilder().WithCR3(vm.PhysAddr(0x64010)).Build()
		}).To(Panic())

		Expect(func() {
			machine.MakeBuilder().WithMemoryInMegabytes(1).
				WithCR3(frame(0x100)).Build()
		}).To(Panic())
	})

	It("should panic on a memory size that overflows", func() {
		Expect(func() {
			machine.MakeBuilder().
				WithMemoryInMegabytes(machine.MaxMemoryInMegabytes + 1).Build()
		}).To(PanicWith(ContainSubstring("does not fit")))
	})
})

var _ = Describe("PageFault", func() {
	It("should describe the missing entry", func() {
		err := &machine.PageFault{VAddr: vaHigh, Level: 3}

		Expect(err.Error()).To(Equal(
			"page fault at V0x50000200000: level 3 entry 001 not present"))
	})

	It("should describe a fault without a valid level", func() {
		Expect((&machine.PageFault{}).Error()).To(Equal("page fault at V0x0"))
		Expect((&machine.PageFault{VAddr: vaLow, Level: 5}).Error()).
			To(Equal("page fault at V0x50000000000"))
	})
})

var _ = Describe("Machine hooks", func() {
	var (
		mockCtrl *gomock.Controller
		hook     *MockHook
		m        *machine.Machine
		seen     []string
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		hook = NewMockHook(mockCtrl)
		m = machine.MakeBuilder().Build()
		buildChain(m)
		m.AcceptHook(hook)
		seen = nil

		hook.EXPECT().Func(gomock.Any()).
			Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Domain).To(BeIdenticalTo(m))
				seen = append(seen, ctx.Pos.Name)
			}).
			AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should report the steps of a missing read in order", func() {
		_, err := m.Read(vaHigh)
		Expect(err).NotTo(HaveOccurred())

		Expect(seen).To(Equal([]string{
			"AccessStart",
			"TLBMiss",
			"TLBInsert",
			"Translated",
			"CacheMiss",
			"CacheLoad",
			"AccessEnd",
		}))
	})

	It("should report the steps of a hitting read in order", func() {
		_, _ = m.Read(vaHigh)
		seen = nil

		_, _ = m.Read(vaHigh.Add(1))

		Expect(seen).To(Equal([]string{
			"AccessStart", "TLBHit", "Translated", "CacheHit", "AccessEnd",
		}))
	})

	It("should report a fault", func() {
		_, _ = m.Read(vm.VirtAddr(0))

		Expect(seen).To(Equal([]string{
			"AccessStart", "TLBMiss", "PageFault", "AccessEnd",
		}))
	})

	It("should report page-table edits", func() {
		Expect(m.UnmapPage(frame(103), 3)).To(Succeed())

		Expect(seen).To(Equal([]string{"PageTableEdit"}))
	})
})
