package vm

import (
	"fmt"

	"zmcore/internal/decode"
	"zmcore/internal/zcore"
)

// readVariable resolves a variable number per spec.md §4.3's addressing
// rule: 0 is the top of the shared stack (popping it), 1-15 are the
// current routine's locals, 16-255 are globals.
func (e *Engine) readVariable(num uint8) (uint16, error) {
	switch {
	case num == 0:
		return e.popStack()
	case num <= 0x0f:
		f, err := e.calls.top()
		if err != nil {
			return 0, err
		}
		idx := int(num - 1)
		if idx >= len(f.locals) {
			return 0, &Fault{Reason: fmt.Sprintf("local variable %d not defined in this frame", num)}
		}
		return f.locals[idx], nil
	default:
		addr := e.img.GlobalTableStart + uint32(num-0x10)*2
		w, err := e.img.ReadWord(addr)
		if err != nil {
			return 0, &Fault{Reason: err.Error()}
		}
		return w, nil
	}
}

func (e *Engine) writeVariable(num uint8, value uint16) error {
	switch {
	case num == 0:
		e.pushStack(value)
		return nil
	case num <= 0x0f:
		f, err := e.calls.top()
		if err != nil {
			return err
		}
		idx := int(num - 1)
		if idx >= len(f.locals) {
			return &Fault{Reason: fmt.Sprintf("local variable %d not defined in this frame", num)}
		}
		f.locals[idx] = value
		return nil
	default:
		addr := e.img.GlobalTableStart + uint32(num-0x10)*2
		if err := e.img.WriteWord(addr, value); err != nil {
			return &Fault{Reason: err.Error()}
		}
		return nil
	}
}

func (e *Engine) pushStack(v uint16) {
	e.stack = append(e.stack, v)
}

func (e *Engine) popStack() (uint16, error) {
	if len(e.stack) == 0 {
		return 0, &Fault{Reason: "pop from an empty stack"}
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, nil
}

// performReturn unwinds the innermost call frame, restores the shared
// stack to its depth at call time, and stores the result in the
// caller's chosen variable if it asked for one.
func (e *Engine) performReturn(value uint16) (uint32, error) {
	f, err := e.calls.pop()
	if err != nil {
		return 0, err
	}
	e.stack = e.stack[:f.stackBase]
	if f.store != nil {
		if err := e.writeVariable(*f.store, value); err != nil {
			return 0, err
		}
	}
	return f.returnPC, nil
}

// branch implements the shared branch-descriptor semantics every
// conditional opcode uses: offsets 0 and 1 are "return false"/"return
// true" from the current routine rather than a jump.
func (e *Engine) branch(inst decode.Instruction, fallthroughPC uint32, condition bool) (uint32, error) {
	b := inst.Branch
	if b == nil {
		return fallthroughPC, nil
	}
	if condition != b.OnTrue {
		return fallthroughPC, nil
	}
	switch b.Offset {
	case 0:
		return e.performReturn(0)
	case 1:
		return e.performReturn(1)
	default:
		return uint32(int64(fallthroughPC) + int64(b.Offset) - 2), nil
	}
}

// doCall implements every call_* opcode: packedAddr 0 is the "always
// returns false, never actually calls" special case, otherwise a fresh
// frame is pushed with args bound to the routine's declared locals.
func (e *Engine) doCall(packedAddr uint16, args []uint16, store *uint8, returnPC uint32) (uint32, error) {
	if packedAddr == 0 {
		if store != nil {
			if err := e.writeVariable(*store, 0); err != nil {
				return 0, err
			}
		}
		return returnPC, nil
	}

	addr := e.img.Unpack(uint32(packedAddr), zcore.Routine)
	numLocals, err := e.img.ReadByte(addr)
	if err != nil {
		return 0, &Fault{Reason: err.Error()}
	}

	locals := make([]uint16, numLocals)
	cursor := addr + 1
	if e.img.Version <= 4 {
		for i := uint8(0); i < numLocals; i++ {
			w, err := e.img.ReadWord(cursor)
			if err != nil {
				return 0, &Fault{Reason: err.Error()}
			}
			locals[i] = w
			cursor += 2
		}
	}
	for i, a := range args {
		if i < len(locals) {
			locals[i] = a
		}
	}

	e.calls.push(&frame{
		returnPC:  returnPC,
		store:     store,
		locals:    locals,
		numArgs:   uint8(len(args)),
		stackBase: len(e.stack),
	})
	return cursor, nil
}
