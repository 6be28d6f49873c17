// Package opcode is the Opcode Table: a static catalogue of opcodes keyed
// by (form bucket, operand count, opcode number, version range), carrying
// the mnemonic and the store/branch/text-literal flags the Instruction
// Decoder needs to finish decoding an instruction. It has no knowledge of
// memory, the PC, or execution — it is pure lookup data, grounded on the
// same (form, count, number) split the teacher's ParseOpcode switch uses,
// pulled out into its own table the way spec.md §2 calls for.
package opcode

// Count is the operand-count bucket of an instruction.
type Count int

const (
	Count0OP Count = iota
	Count1OP
	Count2OP
	CountVAR
)

// Mnemonic enumerates every opcode name the catalogue and engine know
// about, replacing the teacher's reflective/numeric dispatch with the
// tagged-variant enumeration spec.md §9 calls for.
type Mnemonic int

const (
	Unknown Mnemonic = iota

	// 2OP
	OpJe
	OpJl
	OpJg
	OpDecChk
	OpIncChk
	OpJin
	OpTest
	OpOr
	OpAnd
	OpTestAttr
	OpSetAttr
	OpClearAttr
	OpStore
	OpInsertObj
	OpLoadw
	OpLoadb
	OpGetProp
	OpGetPropAddr
	OpGetNextProp
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpCall2s
	OpCall2n
	OpSetColour
	OpThrow

	// 1OP
	OpJz
	OpGetSibling
	OpGetChild
	OpGetParent
	OpGetPropLen
	OpInc
	OpDec
	OpPrintAddr
	OpCall1s
	OpRemoveObj
	OpPrintObj
	OpRet
	OpJump
	OpPrintPaddr
	OpLoad
	OpNot
	OpCall1n

	// 0OP
	OpRtrue
	OpRfalse
	OpPrint
	OpPrintRet
	OpNop
	OpSave
	OpRestore
	OpRestart
	OpRetPopped
	OpPop
	OpCatch
	OpQuit
	OpNewLine
	OpShowStatus
	OpVerify
	OpPiracy

	// VAR
	OpCallVs
	OpStorew
	OpStoreb
	OpPutProp
	OpSread
	OpPrintChar
	OpPrintNum
	OpRandom
	OpPush
	OpPull
	OpSplitWindow
	OpSetWindow
	OpCallVs2
	OpEraseWindow
	OpEraseLine
	OpSetCursor
	OpGetCursor
	OpSetTextStyle
	OpBufferMode
	OpOutputStream
	OpInputStream
	OpSoundEffect
	OpReadChar
	OpScanTable
	OpNotVar
	OpCallVn
	OpCallVn2
	OpTokenise
	OpEncodeText
	OpCopyTable
	OpPrintTable
	OpCheckArgCount

	// EXT
	OpLogShift
	OpArtShift
	OpSaveUndo
	OpRestoreUndo
	OpPrintUnicode
	OpCheckUnicode
	OpSetTrueColour
)

// Record is one catalogued opcode: its identity, effect flags, and the
// version range it's legal in (MaxVersion 0 means unbounded above).
type Record struct {
	Mnemonic   Mnemonic
	Name       string
	Store      bool
	Branch     bool
	Text       bool
	MinVersion uint8
	MaxVersion uint8
}

func (r Record) validFor(version uint8) bool {
	if r.MinVersion != 0 && version < r.MinVersion {
		return false
	}
	if r.MaxVersion != 0 && version > r.MaxVersion {
		return false
	}
	return true
}

// key is the catalogue's lookup key: extended-form is its own bucket per
// spec.md §4.2 step 5, everything else keys off operand count + number.
type key struct {
	extended bool
	count    Count
	number   uint8
}

var catalogue = map[key][]Record{}

func reg(extended bool, count Count, number uint8, r Record) {
	k := key{extended: extended, count: count, number: number}
	catalogue[k] = append(catalogue[k], r)
}

func init() {
	// 2OP (opcode numbers 1-28; 0, 29-31 unused)
	reg(false, Count2OP, 1, Record{Mnemonic: OpJe, Name: "je", Branch: true})
	reg(false, Count2OP, 2, Record{Mnemonic: OpJl, Name: "jl", Branch: true})
	reg(false, Count2OP, 3, Record{Mnemonic: OpJg, Name: "jg", Branch: true})
	reg(false, Count2OP, 4, Record{Mnemonic: OpDecChk, Name: "dec_chk", Branch: true})
	reg(false, Count2OP, 5, Record{Mnemonic: OpIncChk, Name: "inc_chk", Branch: true})
	reg(false, Count2OP, 6, Record{Mnemonic: OpJin, Name: "jin", Branch: true})
	reg(false, Count2OP, 7, Record{Mnemonic: OpTest, Name: "test", Branch: true})
	reg(false, Count2OP, 8, Record{Mnemonic: OpOr, Name: "or", Store: true})
	reg(false, Count2OP, 9, Record{Mnemonic: OpAnd, Name: "and", Store: true})
	reg(false, Count2OP, 10, Record{Mnemonic: OpTestAttr, Name: "test_attr", Branch: true})
	reg(false, Count2OP, 11, Record{Mnemonic: OpSetAttr, Name: "set_attr"})
	reg(false, Count2OP, 12, Record{Mnemonic: OpClearAttr, Name: "clear_attr"})
	reg(false, Count2OP, 13, Record{Mnemonic: OpStore, Name: "store"})
	reg(false, Count2OP, 14, Record{Mnemonic: OpInsertObj, Name: "insert_obj"})
	reg(false, Count2OP, 15, Record{Mnemonic: OpLoadw, Name: "loadw", Store: true})
	reg(false, Count2OP, 16, Record{Mnemonic: OpLoadb, Name: "loadb", Store: true})
	reg(false, Count2OP, 17, Record{Mnemonic: OpGetProp, Name: "get_prop", Store: true})
	reg(false, Count2OP, 18, Record{Mnemonic: OpGetPropAddr, Name: "get_prop_addr", Store: true})
	reg(false, Count2OP, 19, Record{Mnemonic: OpGetNextProp, Name: "get_next_prop", Store: true})
	reg(false, Count2OP, 20, Record{Mnemonic: OpAdd, Name: "add", Store: true})
	reg(false, Count2OP, 21, Record{Mnemonic: OpSub, Name: "sub", Store: true})
	reg(false, Count2OP, 22, Record{Mnemonic: OpMul, Name: "mul", Store: true})
	reg(false, Count2OP, 23, Record{Mnemonic: OpDiv, Name: "div", Store: true})
	reg(false, Count2OP, 24, Record{Mnemonic: OpMod, Name: "mod", Store: true})
	reg(false, Count2OP, 25, Record{Mnemonic: OpCall2s, Name: "call_2s", Store: true, MinVersion: 4})
	reg(false, Count2OP, 26, Record{Mnemonic: OpCall2n, Name: "call_2n", MinVersion: 5})
	reg(false, Count2OP, 27, Record{Mnemonic: OpSetColour, Name: "set_colour", MinVersion: 5})
	reg(false, Count2OP, 28, Record{Mnemonic: OpThrow, Name: "throw", MinVersion: 5})

	// 1OP (opcode numbers 0-15)
	reg(false, Count1OP, 0, Record{Mnemonic: OpJz, Name: "jz", Branch: true})
	reg(false, Count1OP, 1, Record{Mnemonic: OpGetSibling, Name: "get_sibling", Store: true, Branch: true})
	reg(false, Count1OP, 2, Record{Mnemonic: OpGetChild, Name: "get_child", Store: true, Branch: true})
	reg(false, Count1OP, 3, Record{Mnemonic: OpGetParent, Name: "get_parent", Store: true})
	reg(false, Count1OP, 4, Record{Mnemonic: OpGetPropLen, Name: "get_prop_len", Store: true})
	reg(false, Count1OP, 5, Record{Mnemonic: OpInc, Name: "inc"})
	reg(false, Count1OP, 6, Record{Mnemonic: OpDec, Name: "dec"})
	reg(false, Count1OP, 7, Record{Mnemonic: OpPrintAddr, Name: "print_addr"})
	reg(false, Count1OP, 8, Record{Mnemonic: OpCall1s, Name: "call_1s", Store: true, MinVersion: 4})
	reg(false, Count1OP, 9, Record{Mnemonic: OpRemoveObj, Name: "remove_obj"})
	reg(false, Count1OP, 10, Record{Mnemonic: OpPrintObj, Name: "print_obj"})
	reg(false, Count1OP, 11, Record{Mnemonic: OpRet, Name: "ret"})
	reg(false, Count1OP, 12, Record{Mnemonic: OpJump, Name: "jump"})
	reg(false, Count1OP, 13, Record{Mnemonic: OpPrintPaddr, Name: "print_paddr"})
	reg(false, Count1OP, 14, Record{Mnemonic: OpLoad, Name: "load", Store: true})
	reg(false, Count1OP, 15, Record{Mnemonic: OpNot, Name: "not", Store: true, MaxVersion: 4})
	reg(false, Count1OP, 15, Record{Mnemonic: OpCall1n, Name: "call_1n", MinVersion: 5})

	// 0OP (opcode numbers 0-15; 14 unused)
	reg(false, Count0OP, 0, Record{Mnemonic: OpRtrue, Name: "rtrue"})
	reg(false, Count0OP, 1, Record{Mnemonic: OpRfalse, Name: "rfalse"})
	reg(false, Count0OP, 2, Record{Mnemonic: OpPrint, Name: "print", Text: true})
	reg(false, Count0OP, 3, Record{Mnemonic: OpPrintRet, Name: "print_ret", Text: true})
	reg(false, Count0OP, 4, Record{Mnemonic: OpNop, Name: "nop"})
	reg(false, Count0OP, 5, Record{Mnemonic: OpSave, Name: "save", Branch: true, MaxVersion: 3})
	reg(false, Count0OP, 5, Record{Mnemonic: OpSave, Name: "save", Store: true, MinVersion: 4})
	reg(false, Count0OP, 6, Record{Mnemonic: OpRestore, Name: "restore", Branch: true, MaxVersion: 3})
	reg(false, Count0OP, 6, Record{Mnemonic: OpRestore, Name: "restore", Store: true, MinVersion: 4})
	reg(false, Count0OP, 7, Record{Mnemonic: OpRestart, Name: "restart"})
	reg(false, Count0OP, 8, Record{Mnemonic: OpRetPopped, Name: "ret_popped"})
	reg(false, Count0OP, 9, Record{Mnemonic: OpPop, Name: "pop", MaxVersion: 4})
	reg(false, Count0OP, 9, Record{Mnemonic: OpCatch, Name: "catch", Store: true, MinVersion: 5})
	reg(false, Count0OP, 10, Record{Mnemonic: OpQuit, Name: "quit"})
	reg(false, Count0OP, 11, Record{Mnemonic: OpNewLine, Name: "new_line"})
	reg(false, Count0OP, 12, Record{Mnemonic: OpShowStatus, Name: "show_status", MaxVersion: 3})
	reg(false, Count0OP, 13, Record{Mnemonic: OpVerify, Name: "verify", Branch: true})
	reg(false, Count0OP, 15, Record{Mnemonic: OpPiracy, Name: "piracy", Branch: true, MinVersion: 5})

	// VAR (opcode numbers 0-31)
	reg(false, CountVAR, 0, Record{Mnemonic: OpCallVs, Name: "call_vs", Store: true})
	reg(false, CountVAR, 1, Record{Mnemonic: OpStorew, Name: "storew"})
	reg(false, CountVAR, 2, Record{Mnemonic: OpStoreb, Name: "storeb"})
	reg(false, CountVAR, 3, Record{Mnemonic: OpPutProp, Name: "put_prop"})
	reg(false, CountVAR, 4, Record{Mnemonic: OpSread, Name: "sread", MaxVersion: 3})
	reg(false, CountVAR, 4, Record{Mnemonic: OpSread, Name: "aread", Store: true, MinVersion: 4})
	reg(false, CountVAR, 5, Record{Mnemonic: OpPrintChar, Name: "print_char"})
	reg(false, CountVAR, 6, Record{Mnemonic: OpPrintNum, Name: "print_num"})
	reg(false, CountVAR, 7, Record{Mnemonic: OpRandom, Name: "random", Store: true})
	reg(false, CountVAR, 8, Record{Mnemonic: OpPush, Name: "push"})
	reg(false, CountVAR, 9, Record{Mnemonic: OpPull, Name: "pull", MaxVersion: 5})
	reg(false, CountVAR, 9, Record{Mnemonic: OpPull, Name: "pull", Store: true, MinVersion: 6})
	reg(false, CountVAR, 10, Record{Mnemonic: OpSplitWindow, Name: "split_window", MinVersion: 3})
	reg(false, CountVAR, 11, Record{Mnemonic: OpSetWindow, Name: "set_window", MinVersion: 3})
	reg(false, CountVAR, 12, Record{Mnemonic: OpCallVs2, Name: "call_vs2", Store: true, MinVersion: 4})
	reg(false, CountVAR, 13, Record{Mnemonic: OpEraseWindow, Name: "erase_window", MinVersion: 4})
	reg(false, CountVAR, 14, Record{Mnemonic: OpEraseLine, Name: "erase_line", MinVersion: 4})
	reg(false, CountVAR, 15, Record{Mnemonic: OpSetCursor, Name: "set_cursor", MinVersion: 4})
	reg(false, CountVAR, 16, Record{Mnemonic: OpGetCursor, Name: "get_cursor", MinVersion: 4})
	reg(false, CountVAR, 17, Record{Mnemonic: OpSetTextStyle, Name: "set_text_style", MinVersion: 4})
	reg(false, CountVAR, 18, Record{Mnemonic: OpBufferMode, Name: "buffer_mode", MinVersion: 4})
	reg(false, CountVAR, 19, Record{Mnemonic: OpOutputStream, Name: "output_stream", MinVersion: 3})
	reg(false, CountVAR, 20, Record{Mnemonic: OpInputStream, Name: "input_stream", MinVersion: 3})
	reg(false, CountVAR, 21, Record{Mnemonic: OpSoundEffect, Name: "sound_effect", MinVersion: 5})
	reg(false, CountVAR, 22, Record{Mnemonic: OpReadChar, Name: "read_char", Store: true, MinVersion: 4})
	reg(false, CountVAR, 23, Record{Mnemonic: OpScanTable, Name: "scan_table", Store: true, Branch: true, MinVersion: 4})
	reg(false, CountVAR, 24, Record{Mnemonic: OpNotVar, Name: "not", Store: true, MinVersion: 5})
	reg(false, CountVAR, 25, Record{Mnemonic: OpCallVn, Name: "call_vn", MinVersion: 5})
	reg(false, CountVAR, 26, Record{Mnemonic: OpCallVn2, Name: "call_vn2", MinVersion: 5})
	reg(false, CountVAR, 27, Record{Mnemonic: OpTokenise, Name: "tokenise", MinVersion: 5})
	reg(false, CountVAR, 28, Record{Mnemonic: OpEncodeText, Name: "encode_text", MinVersion: 5})
	reg(false, CountVAR, 29, Record{Mnemonic: OpCopyTable, Name: "copy_table", MinVersion: 5})
	reg(false, CountVAR, 30, Record{Mnemonic: OpPrintTable, Name: "print_table", MinVersion: 5})
	reg(false, CountVAR, 31, Record{Mnemonic: OpCheckArgCount, Name: "check_arg_count", Branch: true, MinVersion: 5})

	// EXT (opcode numbers are the raw second byte; VAR-form operand rules)
	reg(true, CountVAR, 0x00, Record{Mnemonic: OpSave, Name: "save", Store: true, MinVersion: 5})
	reg(true, CountVAR, 0x01, Record{Mnemonic: OpRestore, Name: "restore", Store: true, MinVersion: 5})
	reg(true, CountVAR, 0x02, Record{Mnemonic: OpLogShift, Name: "log_shift", Store: true, MinVersion: 5})
	reg(true, CountVAR, 0x03, Record{Mnemonic: OpArtShift, Name: "art_shift", Store: true, MinVersion: 5})
	reg(true, CountVAR, 0x09, Record{Mnemonic: OpSaveUndo, Name: "save_undo", Store: true, MinVersion: 5})
	reg(true, CountVAR, 0x0a, Record{Mnemonic: OpRestoreUndo, Name: "restore_undo", Store: true, MinVersion: 5})
	reg(true, CountVAR, 0x0b, Record{Mnemonic: OpPrintUnicode, Name: "print_unicode", MinVersion: 5})
	reg(true, CountVAR, 0x0c, Record{Mnemonic: OpCheckUnicode, Name: "check_unicode", Store: true, MinVersion: 5})
	reg(true, CountVAR, 0x0d, Record{Mnemonic: OpSetTrueColour, Name: "set_true_colour", MinVersion: 5})
}

// Lookup finds the catalogued Record for (extended, count, number) valid
// at the given story-file version. The second return is false for an
// unknown (form, count, number, version) combination, which the decoder
// must treat as a fatal decode fault per spec.md §7.
func Lookup(extended bool, count Count, number uint8, version uint8) (Record, bool) {
	for _, r := range catalogue[key{extended: extended, count: count, number: number}] {
		if r.validFor(version) {
			return r, true
		}
	}
	return Record{}, false
}
