// Package config loads the settings of a simulation run from the environment
// and from an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sarchlab/mmusim/machine"
)

// Prefix of every environment variable read by Load.
const Prefix = "MMUSIM_"

// Replacement policies of the L1 cache.
const (
	PolicyLastInvalid = "last-invalid"
	PolicyLRU         = "lru"
)

// Config holds the settings of a simulation run.
type Config struct {
	MemoryMB   uint64
	FirstFrame uint64

	TLBSets int
	TLBWays int

	L1Sets   int
	L1Ways   int
	L1Policy string

	Trace        bool
	TraceDB      string
	SQLiteDriver string

	MonitorPort int
	OpenBrowser bool
}

// Default returns the settings that reproduce the reference machine.
func Default() Config {
	return Config{
		MemoryMB:     200,
		FirstFrame:   100,
		TLBSets:      128,
		TLBWays:      4,
		L1Sets:       64,
		L1Ways:       8,
		L1Policy:     PolicyLastInvalid,
		Trace:        true,
		SQLiteDriver: "sqlite3",
	}
}

// Load returns the default settings overridden by MMUSIM_* environment
// variables. If envFile is not empty, the file is loaded into the environment
// first; variables that are already set take precedence over the file. A
// missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	c := Default()

	l := loader{}
	l.uint64("MEMORY_MB", &c.MemoryMB)
	l.uint64("FIRST_FRAME", &c.FirstFrame)
	l.int("TLB_SETS", &c.TLBSets)
	l.int("TLB_WAYS", &c.TLBWays)
	l.int("L1_SETS", &c.L1Sets)
	l.int("L1_WAYS", &c.L1Ways)
	l.string("L1_POLICY", &c.L1Policy)
	l.bool("TRACE", &c.Trace)
	l.string("TRACE_DB", &c.TraceDB)
	l.string("SQLITE_DRIVER", &c.SQLiteDriver)
	l.int("MONITOR_PORT", &c.MonitorPort)
	l.bool("OPEN_BROWSER", &c.OpenBrowser)

	if l.err != nil {
		return Config{}, l.err
	}

	return c, c.Validate()
}

// Validate reports settings that no machine can be built with.
func (c Config) Validate() error {
	switch {
	case c.MemoryMB == 0:
		return errors.New("memory size must be positive")
	case c.MemoryMB > machine.MaxMemoryInMegabytes:
		return fmt.Errorf("memory size %d MB does not fit in 64-bit addresses",
			c.MemoryMB)
	case c.L1Policy != PolicyLastInvalid && c.L1Policy != PolicyLRU:
		return fmt.Errorf("unknown L1 policy %q", c.L1Policy)
	case c.SQLiteDriver != "sqlite3" && c.SQLiteDriver != "sqlite":
		return fmt.Errorf("unknown sqlite driver %q", c.SQLiteDriver)
	case c.MonitorPort < 0 || c.MonitorPort > 65535:
		return fmt.Errorf("invalid monitor port %d", c.MonitorPort)
	}

	return nil
}

// loader keeps the first parse error so that the fields can be read in a row.
type loader struct {
	err error
}

func (l *loader) lookup(name string) (string, bool) {
	if l.err != nil {
		return "", false
	}

	v, ok := os.LookupEnv(Prefix + name)
	if !ok || v == "" {
		return "", false
	}

	return v, true
}

func (l *loader) fail(name, v string, err error) {
	l.err = fmt.Errorf("parsing %s%s=%q: %w", Prefix, name, v, err)
}

func (l *loader) string(name string, dst *string) {
	if v, ok := l.lookup(name); ok {
		*dst = v
	}
}

func (l *loader) int(name string, dst *int) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(name, v, err)
		return
	}

	*dst = n
}

func (l *loader) uint64(name string, dst *uint64) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}

	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		l.fail(name, v, err)
		return
	}

	*dst = n
}

func (l *loader) bool(name string, dst *bool) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(name, v, err)
		return
	}

	*dst = b
}
