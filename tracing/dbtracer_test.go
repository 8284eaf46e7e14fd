package tracing_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/tracing"
	"github.com/sarchlab/mmusim/vm"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		backend  *MockDataRecorder
		tracer   *tracing.DBTracer
		m        *machine.Machine
		entries  []tracing.EventEntry
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		backend = NewMockDataRecorder(mockCtrl)
		entries = nil

		backend.EXPECT().
			CreateTable(tracing.EventTableName, tracing.EventEntry{})
		backend.EXPECT().
			InsertData(tracing.EventTableName, gomock.Any()).
			Do(func(_ string, entry any) {
				entries = append(entries, entry.(tracing.EventEntry))
			}).
			AnyTimes()

		tracer = tracing.NewDBTracer(backend, idgen.NewSequential())
		m = machine.MakeBuilder().Build()
		m.AcceptHook(tracer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record an event per line", func() {
		Expect(m.MapPage(m.CR3(), 10, frame(101))).To(Succeed())
		_, err := m.Read(vm.VirtAddr(0x50000000000))
		Expect(err).To(HaveOccurred())

		Expect(entries).To(Equal([]tracing.EventEntry{
			{
				ID: "1", Seq: 1, Depth: 0, What: "PageTableEdit",
				Message: "Page-Table Edit at address P0x64000: " +
					"Mapping entry 010 to P0x65000",
				PAddr: 0x64000,
			},
			{
				ID: "2", Seq: 2, Depth: 0, What: "AccessStart",
				Message: "Memory Access at V0x50000000000",
				VAddr:   0x50000000000,
			},
			{
				ID: "3", Seq: 3, Depth: 1, What: "TLBMiss",
				Message: "TLB Miss",
				VAddr:   0x50000000000,
			},
			{
				ID: "4", Seq: 4, Depth: 1, What: "PageFault",
				Message: "Page Fault.",
				VAddr:   0x50000000000,
			},
		}))
	})

	It("should flush the backend when terminated", func() {
		backend.EXPECT().Flush()

		tracer.Terminate()
	})
})
