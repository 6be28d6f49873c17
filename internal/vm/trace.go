package vm

import "zmcore/internal/decode"

// TraceSink receives one record per executed instruction: the
// instruction-level trace channel a developer turns on to step through
// opcode dispatch, kept separate from LogSink's coarser lifecycle
// events the way entharion splits its trace and logging output.
type TraceSink interface {
	TraceInstruction(pc uint32, inst decode.Instruction)
}

// LogSink receives coarse lifecycle events: the start of execution and
// a clean quit.
// It is deliberately a narrower interface than TraceSink so a caller
// that only wants "tell me when it stops" doesn't have to implement
// per-instruction tracing.
type LogSink interface {
	Logf(format string, args ...any)
}

// NopTrace discards every instruction trace. It is the default when no
// -trace sink is wired in, so the engine never has to nil-check.
type NopTrace struct{}

func (NopTrace) TraceInstruction(uint32, decode.Instruction) {}

// NopLog discards every log line.
type NopLog struct{}

func (NopLog) Logf(string, ...any) {}
