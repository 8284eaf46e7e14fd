package tracing

import (
	"sync"

	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/machine"
	"github.com/tebeka/atexit"
)

// EventTableName is the table that a DBTracer writes into.
const EventTableName = "mmu_events"

// EventEntry is one row of the event table.
type EventEntry struct {
	ID      string
	Seq     uint64
	Depth   int
	What    string
	Message string
	VAddr   uint64
	PAddr   uint64
}

// DBTracer is a hook that stores every machine event into a database.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	idGen   idgen.Generator

	seq   uint64
	depth int
}

// NewDBTracer creates a new DBTracer and the table it writes into.
func NewDBTracer(
	dataRecorder datarecording.DataRecorder,
	idGen idgen.Generator,
) *DBTracer {
	dataRecorder.CreateTable(EventTableName, EventEntry{})

	t := &DBTracer{
		backend: dataRecorder,
		idGen:   idGen,
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// Func records the event.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ctx.Pos == machine.HookPosAccessEnd {
		if t.depth > 0 {
			t.depth--
		}

		return
	}

	msg, ok := Message(ctx)
	if !ok {
		return
	}

	vAddr, pAddr := addresses(ctx)

	t.seq++
	t.backend.InsertData(EventTableName, EventEntry{
		ID:      t.idGen.Generate(),
		Seq:     t.seq,
		Depth:   t.depth,
		What:    ctx.Pos.Name,
		Message: msg,
		VAddr:   uint64(vAddr),
		PAddr:   uint64(pAddr),
	})

	if ctx.Pos == machine.HookPosAccessStart {
		t.depth++
	}
}

// Terminate writes the buffered events into the database.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.Flush()
}
