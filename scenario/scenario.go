// Package scenario drives a machine through a list of page-table edits and
// memory accesses described in YAML.
package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/mmusim/vm"
)

// Names of the actions.
const (
	OpMap             = "map"
	OpMapFresh        = "map_fresh"
	OpUnmap           = "unmap"
	OpRead            = "read"
	OpTranslate       = "translate"
	OpInvalidateTLB   = "invalidate_tlb"
	OpInvalidateCache = "invalidate_cache"
	OpDump            = "dump"
)

// RootTable is the frame name that refers to the table at CR3.
const RootTable = "cr3"

//go:embed default.yaml
var defaultScenario []byte

// Scenario is a named sequence of actions. Frames lists the names of the
// frames to allocate before the first action, in allocation order.
type Scenario struct {
	Name    string   `yaml:"name"`
	Frames  []string `yaml:"frames"`
	Actions []Action `yaml:"actions"`
}

// Action is one step of a scenario. Which fields matter depends on Op.
//
//   - map: entry Index of Table points to Frame.
//   - map_fresh: entries Index to Index+Count-1 of Table point to newly
//     allocated frames.
//   - unmap: entry Index of Table is cleared.
//   - read, translate: Count accesses from Addr, Stride bytes apart.
//   - invalidate_tlb, invalidate_cache, dump: no fields.
type Action struct {
	Op     string `yaml:"op"`
	Table  string `yaml:"table,omitempty"`
	Index  int    `yaml:"index,omitempty"`
	Frame  string `yaml:"frame,omitempty"`
	Addr   uint64 `yaml:"addr,omitempty"`
	Count  int    `yaml:"count,omitempty"`
	Stride uint64 `yaml:"stride,omitempty"`
}

// Addresses lists the virtual addresses a read or translate action accesses.
// Count defaults to 1 and Stride to 1.
func (a Action) Addresses() []vm.VirtAddr {
	count := max(a.Count, 1)
	stride := max(a.Stride, 1)

	addrs := make([]vm.VirtAddr, count)
	for i := range addrs {
		addrs[i] = vm.VirtAddr(a.Addr).Add(stride * uint64(i))
	}

	return addrs
}

// Parse decodes and validates a YAML scenario. Unknown fields are errors.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	s := &Scenario{}

	err := dec.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}

	err = s.Validate()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Load reads the scenario stored in path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Default returns the built-in scenario. It builds a page-table chain in
// which two virtual regions share a leaf table, then reads 100 consecutive
// bytes and 100 bytes with a 64-byte stride, dumping the state after each.
func Default() *Scenario {
	s, err := Parse(defaultScenario)
	if err != nil {
		panic(err)
	}

	return s
}

// Validate checks that every action is known and names declared frames.
func (s *Scenario) Validate() error {
	declared := map[string]bool{RootTable: true}

	for _, name := range s.Frames {
		if name == "" {
			return errors.New("empty frame name")
		}

		if declared[name] {
			return fmt.Errorf("frame %q declared twice", name)
		}

		declared[name] = true
	}

	for i, a := range s.Actions {
		err := a.validate(declared)
		if err != nil {
			return fmt.Errorf("action %d (%s): %w", i, a.Op, err)
		}
	}

	return nil
}

func (a Action) validate(declared map[string]bool) error {
	mustBeDeclared := func(name string) error {
		if !declared[name] {
			return fmt.Errorf("undeclared frame %q", name)
		}

		return nil
	}

	if a.Count < 0 {
		return fmt.Errorf("negative count %d", a.Count)
	}

	switch a.Op {
	case OpMap:
		if err := mustBeDeclared(a.Table); err != nil {
			return err
		}

		return mustBeDeclared(a.Frame)
	case OpMapFresh, OpUnmap:
		return mustBeDeclared(a.Table)
	case OpRead, OpTranslate, OpInvalidateTLB, OpInvalidateCache, OpDump:
		return nil
	}

	return errors.New("unknown op")
}
