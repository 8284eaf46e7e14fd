package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/cache"
	"github.com/sarchlab/mmusim/config"
	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/scenario"
	"github.com/sarchlab/mmusim/tracing"
	"github.com/sarchlab/mmusim/vm/tlb"
)

// simulation is a machine wired with its tracers and a scenario runner.
type simulation struct {
	machine  *machine.Machine
	runner   *scenario.Runner
	lock     *sync.Mutex
	recorder datarecording.DataRecorder
}

func addMachineFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("memory-mb", 0, "Physical memory in megabytes.")
	cmd.Flags().Bool("trace", false, "Print every translation and cache decision.")
	cmd.Flags().String("trace-db", "",
		"Record the trace into this SQLite database (without extension).")
	cmd.Flags().String("sqlite-driver", "",
		"SQLite driver of the trace database: sqlite3 or sqlite.")
	cmd.Flags().String("l1-policy", "",
		"Replacement policy of the L1 cache: last-invalid or lru.")
}

// loadConfig reads the environment and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	c, err := config.Load(envFile)
	if err != nil {
		return c, err
	}

	flags := cmd.Flags()

	if flags.Changed("memory-mb") {
		c.MemoryMB, _ = flags.GetUint64("memory-mb")
	}

	if flags.Changed("trace") {
		c.Trace, _ = flags.GetBool("trace")
	}

	if flags.Changed("trace-db") {
		c.TraceDB, _ = flags.GetString("trace-db")
	}

	if flags.Changed("sqlite-driver") {
		c.SQLiteDriver, _ = flags.GetString("sqlite-driver")
	}

	if flags.Changed("l1-policy") {
		c.L1Policy, _ = flags.GetString("l1-policy")
	}

	if flags.Lookup("port") != nil && flags.Changed("port") {
		c.MonitorPort, _ = flags.GetInt("port")
	}

	if flags.Lookup("open") != nil && flags.Changed("open") {
		c.OpenBrowser, _ = flags.GetBool("open")
	}

	return c, c.Validate()
}

func loadScenario(args []string) (*scenario.Scenario, error) {
	if len(args) == 0 {
		return scenario.Default(), nil
	}

	return scenario.Load(args[0])
}

func newSimulation(c config.Config, out io.Writer) (s *simulation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("building machine: %v", r)
		}
	}()

	cacheBuilder := cache.MakeBuilder().
		WithNumSets(c.L1Sets).
		WithNumWays(c.L1Ways)
	if c.L1Policy == config.PolicyLRU {
		cacheBuilder = cacheBuilder.WithVictimFinder(cache.LRUVictimFinder{})
	}

	allocator := scenario.NewFrameAllocator(c.FirstFrame)

	m := machine.MakeBuilder().
		WithMemoryInMegabytes(c.MemoryMB).
		WithCR3(allocator.Next()).
		WithTLBBuilder(tlb.MakeBuilder().
			WithNumSets(c.TLBSets).
			WithNumWays(c.TLBWays)).
		WithCacheBuilder(cacheBuilder).
		Build()

	s = &simulation{
		machine: m,
		lock:    &sync.Mutex{},
	}

	if c.Trace {
		m.AcceptHook(tracing.NewLogTracer(out))
	}

	if c.TraceDB != "" {
		s.recorder, err = datarecording.New(c.TraceDB, c.SQLiteDriver)
		if err != nil {
			return nil, err
		}

		m.AcceptHook(tracing.NewDBTracer(s.recorder, idgen.NewSequential()))
	}

	s.runner = scenario.NewRunner(m, allocator, out).WithLock(s.lock)

	return s, nil
}

func (s *simulation) close() error {
	if s.recorder == nil {
		return nil
	}

	return s.recorder.Close()
}
