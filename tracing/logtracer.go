package tracing

import (
	"io"
	"log"
	"strings"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/machine"
)

// LogTracer is a hook that prints every machine event as a line of a log.
// The events between the start and the end of a memory access are indented
// by two spaces.
type LogTracer struct {
	logger *log.Logger
	depth  int
}

// NewLogTracer creates a LogTracer that writes into w without any prefix.
func NewLogTracer(w io.Writer) *LogTracer {
	return &LogTracer{logger: log.New(w, "", 0)}
}

// NewLogTracerWithLogger creates a LogTracer that writes with logger.
func NewLogTracerWithLogger(logger *log.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Func prints the event.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
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

	t.logger.Print(strings.Repeat("  ", t.depth) + msg)

	if ctx.Pos == machine.HookPosAccessStart {
		t.depth++
	}
}
