package scenario

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/mmusim/draw"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/stats"
	"github.com/sarchlab/mmusim/vm"
)

// Runner executes scenarios on a machine. Every single access and every edit
// holds the lock of the runner, so that observers holding the same lock see
// the machine between steps.
type Runner struct {
	machine   *machine.Machine
	allocator *FrameAllocator
	collector *stats.Collector
	out       io.Writer
	lock      sync.Locker

	frames map[string]vm.PhysAddr
}

// NewRunner creates a runner that allocates frames from allocator and prints
// the dumps into out. It registers a stats collector as a hook of m.
func NewRunner(
	m *machine.Machine,
	allocator *FrameAllocator,
	out io.Writer,
) *Runner {
	r := &Runner{
		machine:   m,
		allocator: allocator,
		collector: stats.NewCollector(),
		out:       out,
		lock:      &sync.Mutex{},
		frames:    map[string]vm.PhysAddr{RootTable: m.CR3()},
	}

	m.AcceptHook(r.collector)

	return r
}

// WithLock replaces the lock that guards the machine.
func (r *Runner) WithLock(l sync.Locker) *Runner {
	r.lock = l
	return r
}

// Stats returns the counters since the last dump. Read it under the lock.
func (r *Runner) Stats() *stats.Collector {
	return r.collector
}

// Frame returns the address of a named frame that an earlier run declared.
func (r *Runner) Frame(name string) (vm.PhysAddr, bool) {
	f, ok := r.frames[name]
	return f, ok
}

// Run executes the actions of s in order. Page faults of reads and
// translations are counted and skipped. Any other error stops the run.
func (r *Runner) Run(ctx context.Context, s *Scenario) error {
	for _, name := range s.Frames {
		if _, exists := r.frames[name]; exists {
			return fmt.Errorf("frame %q already allocated", name)
		}

		r.frames[name] = r.allocator.Next()
	}

	for i, a := range s.Actions {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.runAction(ctx, a)
		if err != nil {
			return fmt.Errorf("action %d (%s): %w", i, a.Op, err)
		}
	}

	return nil
}

func (r *Runner) runAction(ctx context.Context, a Action) error {
	switch a.Op {
	case OpMap:
		return r.locked(func() error {
			return r.machine.MapPage(r.frames[a.Table], a.Index, r.frames[a.Frame])
		})
	case OpMapFresh:
		for i := 0; i < max(a.Count, 1); i++ {
			err := r.locked(func() error {
				return r.machine.MapPage(
					r.frames[a.Table], a.Index+i, r.allocator.Next())
			})
			if err != nil {
				return err
			}
		}

		return nil
	case OpUnmap:
		return r.locked(func() error {
			return r.machine.UnmapPage(r.frames[a.Table], a.Index)
		})
	case OpRead:
		return r.access(ctx, a, func(vAddr vm.VirtAddr) error {
			_, err := r.machine.Read(vAddr)
			return err
		})
	case OpTranslate:
		return r.access(ctx, a, func(vAddr vm.VirtAddr) error {
			_, err := r.machine.Translate(vAddr)
			return err
		})
	case OpInvalidateTLB:
		return r.locked(func() error {
			r.machine.InvalidateTLB()
			return nil
		})
	case OpInvalidateCache:
		return r.locked(func() error {
			r.machine.InvalidateCache()
			return nil
		})
	case OpDump:
		return r.locked(r.dump)
	}

	return fmt.Errorf("unknown op %q", a.Op)
}

func (r *Runner) access(
	ctx context.Context,
	a Action,
	do func(vm.VirtAddr) error,
) error {
	for _, vAddr := range a.Addresses() {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := r.locked(func() error { return do(vAddr) })
		if err != nil && !machine.IsPageFault(err) {
			return err
		}
	}

	return nil
}

func (r *Runner) locked(f func() error) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	return f()
}

// Dump prints the page map, the TLB, the L1 cache, and the counters, then
// resets the counters.
func (r *Runner) Dump() error {
	return r.locked(r.dump)
}

func (r *Runner) dump() error {
	pageMap, err := draw.PageMap(r.machine)
	if err != nil {
		return err
	}

	sections := []struct{ title, content string }{
		{"Pages", pageMap},
		{"TLB", draw.TLB(r.machine.TLB())},
		{"L1-Cache", draw.Cache(r.machine.Cache())},
		{"Stats", r.collector.String()},
	}

	for _, s := range sections {
		err = draw.PrintBox(r.out, s.title, s.content)
		if err != nil {
			return err
		}
	}

	r.collector.Reset()

	return nil
}
