package vm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mmusim/vm"
)

var _ = Describe("PageTableEntry", func() {
	It("should be present and page aligned", func() {
		e := vm.NewPresentEntry(vm.PhysAddr(0x65fff))

		Expect(e.IsPresent()).To(BeTrue())
		Expect(e.PhysAddr()).To(Equal(vm.PhysAddr(0x65000)))
		Expect(uint64(e) & 0xffe).To(BeZero())
	})

	It("should keep every frame bit up to bit 63", func() {
		e := vm.NewPresentEntry(vm.PhysAddr(0x0010_0000_0000_1000))
		Expect(e.PhysAddr()).To(Equal(vm.PhysAddr(0x0010_0000_0000_1000)))

		e = vm.NewPresentEntry(vm.PhysAddr(0xfff0_0000_0000_1fff))
		Expect(e.IsPresent()).To(BeTrue())
		Expect(e.PhysAddr()).To(Equal(vm.PhysAddr(0xfff0_0000_0000_1000)))
	})

	It("should not be present when unmapped", func() {
		e := vm.NewUnmappedEntry()

		Expect(e.IsPresent()).To(BeFalse())
		Expect(e.PhysAddr()).To(Equal(vm.PhysAddr(0)))
	})
})

var _ = Describe("PageTable", func() {
	It("should occupy exactly one page", func() {
		t := &vm.PageTable{}

		Expect(t.ByteSize()).To(Equal(uint64(vm.PageSize)))
	})

	It("should encode entries little endian", func() {
		t := &vm.PageTable{}
		t[1] = vm.NewPresentEntry(vm.PhysAddr(0x65000))

		buf := make([]byte, t.ByteSize())
		t.Encode(buf)

		Expect(buf[8:16]).To(Equal([]byte{0x01, 0x50, 0x06, 0, 0, 0, 0, 0}))
	})

	It("should decode what it encodes", func() {
		t := &vm.PageTable{}
		t[0] = vm.NewPresentEntry(vm.PhysAddr(0x66000))
		t[511] = vm.NewPresentEntry(vm.PhysAddr(0x67000))

		buf := make([]byte, t.ByteSize())
		t.Encode(buf)

		decoded := &vm.PageTable{}
		decoded.Decode(buf)

		Expect(decoded).To(Equal(t))
		Expect(decoded.NumPresent()).To(Equal(2))
	})
})
