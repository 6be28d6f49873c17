// Package vm is the Execution Engine: the synchronous dispatch loop
// that drives a Memory Image one Decoded Instruction at a time, holding
// the Call Stack and the shared value stack that make up the rest of
// spec.md §5's Variable File.
package vm

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"zmcore/internal/decode"
	"zmcore/internal/opcode"
	"zmcore/internal/zcore"
	"zmcore/internal/zobject"
	"zmcore/internal/zstring"
	"zmcore/internal/ztable"
)

// Engine owns everything needed to run a story from its start address
// to a quit/restart/fatal fault: the Memory Image, the Call Stack, the
// shared evaluation stack, and the output/trace/log sinks. It never
// spawns a goroutine; every opcode runs to completion on the calling
// goroutine before the next is decoded, per spec.md §5's synchronous
// execution model.
type Engine struct {
	img       *zcore.Image
	alphabets *zstring.Alphabets

	calls *callStack
	stack []uint16
	pc    uint32

	out   io.Writer
	trace TraceSink
	log   LogSink
	rng   *rand.Rand

	interpreterNumber uint8
	interpreterVer    uint8
}

// New constructs an Engine ready to run img from its start address. out
// receives everything the story prints; trace and log may be nil, in
// which case NopTrace/NopLog are used.
func New(img *zcore.Image, out io.Writer, trace TraceSink, log LogSink, seed int64) *Engine {
	if trace == nil {
		trace = NopTrace{}
	}
	if log == nil {
		log = NopLog{}
	}

	e := &Engine{
		img:               img,
		alphabets:         zstring.LoadAlphabets(img),
		calls:             newCallStack(),
		out:               out,
		trace:             trace,
		log:               log,
		rng:               rand.New(rand.NewSource(seed)),
		interpreterNumber: 6, // "IBM PC", matches what the teacher stamps
		interpreterVer:    'Z',
	}
	img.SetInterpreterIdentity(e.interpreterNumber, e.interpreterVer)

	if img.Version == 6 {
		// v6 stores a packed routine address in the start-PC header field
		// rather than a direct byte address; the interpreter must call it
		// as an ordinary routine instead of jumping straight in.
		pc, err := e.doCall(uint16(img.StartPC), nil, nil, 0)
		if err != nil {
			e.pc = img.StartPC
		} else {
			e.pc = pc
		}
	} else {
		e.pc = img.StartPC
	}
	return e
}

// Run drives instructions until quit or an unrecoverable fault. A Quit
// return means the story asked to stop cleanly; any other non-nil error
// is fatal per spec.md §7. An execution fault comes back as a *Fault
// carrying the instruction's PC and its mnemonic.
func (e *Engine) Run() error {
	e.log.Logf("starting execution at %#06x", e.pc)
	for {
		inst, err := decode.Decode(e.img, e.pc)
		if err != nil {
			return err
		}
		e.trace.TraceInstruction(e.pc, inst)

		nextPC, err := e.execute(inst)
		if err != nil {
			if _, ok := err.(Quit); ok {
				e.log.Logf("quit at %#06x", e.pc)
				return err
			}
			reason := err.Error()
			if f, ok := err.(*Fault); ok {
				reason = f.Reason
			}
			return &Fault{PC: inst.PC, Reason: inst.Name + ": " + reason}
		}
		e.pc = nextPC
	}
}

func (e *Engine) fallthroughPC(inst decode.Instruction) uint32 {
	return inst.PC + inst.Length
}

// execute dispatches one Decoded Instruction and returns the program
// counter to resume at.
func (e *Engine) execute(inst decode.Instruction) (uint32, error) {
	ops, err := e.resolveOperands(inst)
	if err != nil {
		return 0, err
	}
	next := e.fallthroughPC(inst)

	switch inst.Mnemonic {

	// Arithmetic (2OP, store)
	case opcode.OpAdd:
		return e.storeAndContinue(inst, next, uint16(s16(ops[0])+s16(ops[1])))
	case opcode.OpSub:
		return e.storeAndContinue(inst, next, uint16(s16(ops[0])-s16(ops[1])))
	case opcode.OpMul:
		return e.storeAndContinue(inst, next, uint16(s16(ops[0])*s16(ops[1])))
	case opcode.OpDiv:
		if s16(ops[1]) == 0 {
			return 0, &Fault{PC: inst.PC, Reason: "division by zero"}
		}
		return e.storeAndContinue(inst, next, uint16(s16(ops[0])/s16(ops[1])))
	case opcode.OpMod:
		if s16(ops[1]) == 0 {
			return 0, &Fault{PC: inst.PC, Reason: "division by zero"}
		}
		return e.storeAndContinue(inst, next, uint16(s16(ops[0])%s16(ops[1])))

	// Bitwise (2OP/EXT, store)
	case opcode.OpOr:
		return e.storeAndContinue(inst, next, ops[0]|ops[1])
	case opcode.OpAnd:
		return e.storeAndContinue(inst, next, ops[0]&ops[1])
	case opcode.OpNot, opcode.OpNotVar:
		return e.storeAndContinue(inst, next, ^ops[0])
	case opcode.OpLogShift:
		return e.storeAndContinue(inst, next, logShift(ops[0], s16(ops[1])))
	case opcode.OpArtShift:
		return e.storeAndContinue(inst, next, artShift(ops[0], s16(ops[1])))

	// Comparison branches (2OP/1OP, branch)
	case opcode.OpJe:
		cond := false
		for _, v := range ops[1:] {
			if v == ops[0] {
				cond = true
				break
			}
		}
		return e.branch(inst, next, cond)
	case opcode.OpJl:
		return e.branch(inst, next, s16(ops[0]) < s16(ops[1]))
	case opcode.OpJg:
		return e.branch(inst, next, s16(ops[0]) > s16(ops[1]))
	case opcode.OpJz:
		return e.branch(inst, next, ops[0] == 0)
	case opcode.OpTest:
		return e.branch(inst, next, ops[0]&ops[1] == ops[1])

	case opcode.OpDecChk:
		return e.decOrIncCheck(inst, next, ops, -1, func(v, cmp int16) bool { return v < cmp })
	case opcode.OpIncChk:
		return e.decOrIncCheck(inst, next, ops, 1, func(v, cmp int16) bool { return v > cmp })

	case opcode.OpInc:
		return e.bumpVariable(inst, next, ops[0], 1)
	case opcode.OpDec:
		return e.bumpVariable(inst, next, ops[0], -1)

	// Object tree (2OP/1OP)
	case opcode.OpJin:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		parent, err := obj.Parent()
		if err != nil {
			return 0, err
		}
		return e.branch(inst, next, parent == ops[1])
	case opcode.OpTestAttr:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		set, err := obj.TestAttribute(ops[1])
		if err != nil {
			return 0, err
		}
		return e.branch(inst, next, set)
	case opcode.OpSetAttr:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		return next, obj.SetAttribute(ops[1])
	case opcode.OpClearAttr:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		return next, obj.ClearAttribute(ops[1])
	case opcode.OpInsertObj:
		o, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		dest, err := zobject.Get(e.img, e.alphabets, ops[1])
		if err != nil {
			return 0, err
		}
		return next, zobject.InsertObject(o, dest)
	case opcode.OpRemoveObj:
		o, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		return next, zobject.RemoveObject(o)
	case opcode.OpGetParent:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		parent, err := obj.Parent()
		if err != nil {
			return 0, err
		}
		return e.storeAndContinue(inst, next, parent)
	case opcode.OpGetSibling:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		sibling, err := obj.Sibling()
		if err != nil {
			return 0, err
		}
		pc, err := e.storeAndContinue(inst, next, sibling)
		if err != nil {
			return 0, err
		}
		return e.branch(inst, pc, sibling != 0)
	case opcode.OpGetChild:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		child, err := obj.Child()
		if err != nil {
			return 0, err
		}
		pc, err := e.storeAndContinue(inst, next, child)
		if err != nil {
			return 0, err
		}
		return e.branch(inst, pc, child != 0)

	// Properties (2OP/1OP/VAR)
	case opcode.OpGetProp:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		prop, err := obj.GetProperty(uint8(ops[1]))
		if err != nil {
			return 0, err
		}
		data, err := prop.Data()
		if err != nil {
			return 0, err
		}
		value := uint16(data[0])
		if len(data) >= 2 {
			value = uint16(data[0])<<8 | uint16(data[1])
		}
		return e.storeAndContinue(inst, next, value)
	case opcode.OpGetPropAddr:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		addr, err := obj.GetPropertyAddress(uint8(ops[1]))
		if err != nil {
			return 0, err
		}
		return e.storeAndContinue(inst, next, uint16(addr))
	case opcode.OpGetPropLen:
		if ops[0] == 0 {
			return e.storeAndContinue(inst, next, 0)
		}
		p, err := zobject.PropertyLengthAt(e.img, uint32(ops[0]))
		if err != nil {
			return 0, err
		}
		return e.storeAndContinue(inst, next, uint16(p))
	case opcode.OpGetNextProp:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		next_, err := obj.GetNextProperty(uint8(ops[1]))
		if err != nil {
			return 0, err
		}
		return e.storeAndContinue(inst, next, uint16(next_))
	case opcode.OpPutProp:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		return next, obj.PutProperty(uint8(ops[1]), ops[2])

	// Memory access (2OP/VAR)
	case opcode.OpLoadw:
		w, err := e.img.ReadWord(uint32(ops[0]) + 2*uint32(ops[1]))
		if err != nil {
			return 0, &Fault{PC: inst.PC, Reason: err.Error()}
		}
		return e.storeAndContinue(inst, next, w)
	case opcode.OpLoadb:
		b, err := e.img.ReadByte(uint32(ops[0]) + uint32(ops[1]))
		if err != nil {
			return 0, &Fault{PC: inst.PC, Reason: err.Error()}
		}
		return e.storeAndContinue(inst, next, uint16(b))
	case opcode.OpStorew:
		if err := e.img.WriteWord(uint32(ops[0])+2*uint32(ops[1]), ops[2]); err != nil {
			return 0, &Fault{PC: inst.PC, Reason: err.Error()}
		}
		return next, nil
	case opcode.OpStoreb:
		if err := e.img.WriteByte(uint32(ops[0])+uint32(ops[1]), uint8(ops[2])); err != nil {
			return 0, &Fault{PC: inst.PC, Reason: err.Error()}
		}
		return next, nil
	case opcode.OpStore:
		return next, e.writeVariable(uint8(ops[0]), ops[1])
	case opcode.OpLoad:
		v, err := e.readVariable(uint8(ops[0]))
		if err != nil {
			return 0, err
		}
		return e.storeAndContinue(inst, next, v)
	case opcode.OpPush:
		e.pushStack(ops[0])
		return next, nil
	case opcode.OpPop:
		_, err := e.popStack()
		return next, err
	case opcode.OpPull:
		v, err := e.popStack()
		if err != nil {
			return 0, err
		}
		if inst.Store != nil {
			return e.storeAndContinue(inst, next, v)
		}
		return next, e.writeVariable(uint8(ops[0]), v)

	// Control flow
	case opcode.OpJump:
		return uint32(int64(next) + int64(s16(ops[0])) - 2), nil
	case opcode.OpRet:
		return e.performReturn(ops[0])
	case opcode.OpRetPopped:
		popped, err := e.popStack()
		if err != nil {
			return 0, err
		}
		return e.performReturn(popped)
	case opcode.OpRtrue:
		return e.performReturn(1)
	case opcode.OpRfalse:
		return e.performReturn(0)
	case opcode.OpNop:
		return next, nil
	case opcode.OpQuit:
		return 0, Quit{}
	case opcode.OpRestart:
		return 0, &Fault{PC: inst.PC, Reason: "restart is out of scope for this interpreter"}

	// Calls
	case opcode.OpCallVs, opcode.OpCall1s, opcode.OpCall2s, opcode.OpCallVs2:
		return e.doCall(ops[0], ops[1:], inst.Store, next)
	case opcode.OpCallVn, opcode.OpCall1n, opcode.OpCall2n, opcode.OpCallVn2:
		return e.doCall(ops[0], ops[1:], nil, next)
	case opcode.OpCheckArgCount:
		f, err := e.calls.top()
		if err != nil {
			return 0, err
		}
		return e.branch(inst, next, uint16(f.numArgs) >= ops[0])

	// catch/throw
	case opcode.OpCatch:
		return e.storeAndContinue(inst, next, uint16(e.calls.depth()))
	case opcode.OpThrow:
		f, err := e.calls.unwindTo(int(ops[1]))
		if err != nil {
			return 0, &Fault{PC: inst.PC, Reason: err.Error()}
		}
		if f == nil {
			return 0, Quit{}
		}
		e.stack = e.stack[:f.stackBase]
		if f.store != nil {
			if err := e.writeVariable(*f.store, ops[0]); err != nil {
				return 0, err
			}
		}
		return f.returnPC, nil

	// Text output
	case opcode.OpPrint:
		return next, e.printZChars(inst.Text)
	case opcode.OpPrintRet:
		if err := e.printZChars(inst.Text); err != nil {
			return 0, err
		}
		if err := e.writeString("\n"); err != nil {
			return 0, err
		}
		return e.performReturn(1)
	case opcode.OpPrintAddr:
		return next, e.printAt(uint32(ops[0]))
	case opcode.OpPrintPaddr:
		return next, e.printAt(e.img.Unpack(uint32(ops[0]), zcore.String))
	case opcode.OpPrintObj:
		obj, err := zobject.Get(e.img, e.alphabets, ops[0])
		if err != nil {
			return 0, err
		}
		name, err := obj.Name()
		if err != nil {
			return 0, err
		}
		return next, e.writeString(name)
	case opcode.OpPrintChar:
		return next, e.writeString(string(zstring.ZsciiToRune(e.img, uint8(ops[0]))))
	case opcode.OpPrintNum:
		return next, e.writeString(fmt.Sprintf("%d", s16(ops[0])))
	case opcode.OpPrintUnicode:
		return next, e.writeString(string(rune(ops[0])))
	case opcode.OpCheckUnicode:
		return e.storeAndContinue(inst, next, 3) // can both print and read every Unicode codepoint we accept
	case opcode.OpNewLine:
		return next, e.writeString("\n")

	// Misc VAR
	case opcode.OpRandom:
		return e.storeAndContinue(inst, next, e.random(s16(ops[0])))
	case opcode.OpScanTable:
		form := uint16(0x82)
		if len(ops) > 3 {
			form = ops[3]
		}
		addr, err := ztable.ScanTable(e.img, ops[0], uint32(ops[1]), ops[2], form)
		if err != nil {
			return 0, err
		}
		pc, err := e.storeAndContinue(inst, next, uint16(addr))
		if err != nil {
			return 0, err
		}
		return e.branch(inst, pc, addr != 0)
	case opcode.OpCopyTable:
		return next, ztable.CopyTable(e.img, uint32(ops[0]), uint32(ops[1]), int16(ops[2]))
	case opcode.OpPrintTable:
		width := ops[1]
		height := uint16(1)
		skip := uint16(0)
		if len(ops) > 2 {
			height = ops[2]
		}
		if len(ops) > 3 {
			skip = ops[3]
		}
		s, err := ztable.PrintTable(e.img, uint32(ops[0]), width, height, skip)
		if err != nil {
			return 0, err
		}
		return next, e.writeString(s)
	case opcode.OpVerify:
		return e.branch(inst, next, e.verifyChecksum())
	case opcode.OpPiracy:
		return e.branch(inst, next, true)
	case opcode.OpSetColour, opcode.OpSplitWindow, opcode.OpSetWindow, opcode.OpEraseWindow,
		opcode.OpEraseLine, opcode.OpSetCursor, opcode.OpGetCursor, opcode.OpSetTextStyle,
		opcode.OpBufferMode, opcode.OpOutputStream, opcode.OpInputStream, opcode.OpSoundEffect,
		opcode.OpShowStatus, opcode.OpSetTrueColour:
		// Screen model is out of scope; these are accepted as no-ops so a
		// story that calls them for cosmetic effect keeps running.
		return next, nil
	case opcode.OpReadChar:
		return e.storeAndContinue(inst, next, 0)

	case opcode.OpSave, opcode.OpRestore, opcode.OpSaveUndo, opcode.OpRestoreUndo:
		// Persistence is out of scope: report failure rather than silently
		// pretending to succeed.
		if inst.Store != nil {
			return e.storeAndContinue(inst, next, 0)
		}
		return e.branch(inst, next, false)

	case opcode.OpSread, opcode.OpTokenise, opcode.OpEncodeText:
		return 0, &Fault{PC: inst.PC, Reason: fmt.Sprintf("%s requires the dictionary/tokeniser, which is out of scope", inst.Name)}

	default:
		return 0, &Fault{PC: inst.PC, Reason: fmt.Sprintf("opcode %q is catalogued but not implemented", inst.Name)}
	}
}

func s16(v uint16) int16 { return int16(v) }

func logShift(v uint16, places int16) uint16 {
	if places >= 0 {
		return v << uint16(places)
	}
	return v >> uint16(-places)
}

func artShift(v uint16, places int16) uint16 {
	if places >= 0 {
		return uint16(int16(v) << uint16(places))
	}
	return uint16(int16(v) >> uint16(-places))
}

func (e *Engine) resolveOperands(inst decode.Instruction) ([]uint16, error) {
	ops := make([]uint16, len(inst.Operands))
	for i, raw := range inst.Operands {
		if inst.OperandTypes[i] == decode.VarOp {
			v, err := e.readVariable(uint8(raw))
			if err != nil {
				return nil, err
			}
			ops[i] = v
		} else {
			ops[i] = raw
		}
	}
	return ops, nil
}

func (e *Engine) storeAndContinue(inst decode.Instruction, next uint32, value uint16) (uint32, error) {
	if inst.Store != nil {
		if err := e.writeVariable(*inst.Store, value); err != nil {
			return 0, err
		}
	}
	return next, nil
}

func (e *Engine) decOrIncCheck(inst decode.Instruction, next uint32, ops []uint16, delta int16, cmp func(v, threshold int16) bool) (uint32, error) {
	varNum := uint8(ops[0])
	v, err := e.readVariable(varNum)
	if err != nil {
		return 0, err
	}
	v = uint16(s16(v) + delta)
	if err := e.writeVariable(varNum, v); err != nil {
		return 0, err
	}
	return e.branch(inst, next, cmp(s16(v), s16(ops[1])))
}

func (e *Engine) bumpVariable(inst decode.Instruction, next uint32, varOperand uint16, delta int16) (uint32, error) {
	varNum := uint8(varOperand)
	v, err := e.readVariable(varNum)
	if err != nil {
		return 0, err
	}
	return next, e.writeVariable(varNum, uint16(s16(v)+delta))
}

func (e *Engine) random(arg int16) uint16 {
	switch {
	case arg > 0:
		return uint16(e.rng.Intn(int(arg)) + 1)
	case arg < 0:
		e.rng = rand.New(rand.NewSource(int64(arg)))
		return 0
	default:
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		return 0
	}
}

func (e *Engine) printZChars(words []uint16) error {
	str, err := zstring.DecodeWords(words, e.alphabets, e.img)
	if err != nil {
		return err
	}
	return e.writeString(str)
}

func (e *Engine) printAt(addr uint32) error {
	str, _, err := zstring.Decode(e.img, addr, e.alphabets)
	if err != nil {
		return err
	}
	return e.writeString(str)
}

func (e *Engine) writeString(s string) error {
	_, err := io.WriteString(e.out, s)
	if err != nil {
		return &Fault{Reason: err.Error()}
	}
	return nil
}

func (e *Engine) verifyChecksum() bool {
	var sum uint16
	for addr := uint32(0x40); addr < e.img.Len(); addr++ {
		b, err := e.img.ReadByte(addr)
		if err != nil {
			break
		}
		sum += uint16(b)
	}
	return sum == e.img.FileChecksum
}

