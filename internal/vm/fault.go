package vm

import "fmt"

// Fault is a fatal execution-time error: an illegal variable number, a
// return from an empty call stack, an opcode that's catalogued but out
// of scope (sread/tokenise without a dictionary), or any error bubbled
// up from zcore/zobject/zstring/ztable/decode. Every Fault is exit code
// 2 at the process boundary, per spec.md §7.
type Fault struct {
	PC     uint32
	Reason string
}

func (f *Fault) Error() string {
	if f.PC == 0 {
		return "vm: fault: " + f.Reason
	}
	return fmt.Sprintf("vm: fault at %#06x: %s", f.PC, f.Reason)
}

// Quit is not an error: it's how rtrue-from-nowhere's cousin, the quit
// opcode, tells Run to stop cleanly. It satisfies the error interface so
// Run's loop can return it like any other stop condition, but callers
// should check for it with errors.As before treating a non-nil error as
// a fault.
type Quit struct{}

func (Quit) Error() string { return "vm: quit" }
