package decode_test

import (
	"testing"

	"zmcore/internal/decode"
	"zmcore/internal/opcode"
	"zmcore/internal/zcore"
)

func minimalImage(version uint8) []uint8 {
	data := make([]uint8, 256)
	data[0x00] = version
	// Static base sits past the whole file so every fixture byte below
	// lands in dynamic (writable) memory; decode only cares about
	// reading, not about the real static/high split.
	data[0x0e] = 0x01
	data[0x0f] = 0x00
	data[0x04] = 0x01
	data[0x05] = 0x00
	return data
}

func mustLoad(t *testing.T, version uint8) *zcore.Image {
	t.Helper()
	img, err := zcore.Load(minimalImage(version))
	if err != nil {
		t.Fatalf("unexpected load fault: %v", err)
	}
	return img
}

// TestDecodeLongFormAdd decodes "add" (2OP:20) in long form with two small
// constants: 0x14 is 0b00_010100 -> both operand types bit clear -> Small.
func TestDecodeLongFormAdd(t *testing.T) {
	img := mustLoad(t, 3)
	img.WriteByte(64, 0x14) // long form, both small constants, opcode 20 (add)
	img.WriteByte(65, 5)
	img.WriteByte(66, 7)
	img.WriteByte(67, 0x02) // store to local 2

	inst, err := decode.Decode(img, 64)
	if err != nil {
		t.Fatalf("unexpected decode fault: %v", err)
	}

	if inst.Mnemonic != opcode.OpAdd {
		t.Errorf("mnemonic = %v, want OpAdd", inst.Mnemonic)
	}
	if len(inst.Operands) != 2 || inst.Operands[0] != 5 || inst.Operands[1] != 7 {
		t.Errorf("operands = %v, want [5 7]", inst.Operands)
	}
	if inst.Store == nil || *inst.Store != 0x02 {
		t.Errorf("store = %v, want 0x02", inst.Store)
	}
	if inst.Length != 4 {
		t.Errorf("length = %d, want 4", inst.Length)
	}
}

// TestDecodeShortFormJz decodes "jz" (1OP:0) with a small constant operand
// and a one-byte branch descriptor.
func TestDecodeShortFormJz(t *testing.T) {
	img := mustLoad(t, 3)
	img.WriteByte(64, 0x90) // short form, small constant, opcode 0 (jz)
	img.WriteByte(65, 0x00)
	img.WriteByte(66, 0xC5) // branch: on_true, one-byte, offset 5

	inst, err := decode.Decode(img, 64)
	if err != nil {
		t.Fatalf("unexpected decode fault: %v", err)
	}
	if inst.Mnemonic != opcode.OpJz {
		t.Errorf("mnemonic = %v, want OpJz", inst.Mnemonic)
	}
	if inst.Branch == nil {
		t.Fatal("expected a branch descriptor")
	}
	if !inst.Branch.OnTrue || inst.Branch.Offset != 5 {
		t.Errorf("branch = %+v, want {OnTrue:true Offset:5}", inst.Branch)
	}
	if inst.Length != 3 {
		t.Errorf("length = %d, want 3", inst.Length)
	}
}

// TestDecodeTwoByteBranchSignExtends covers the 14-bit signed offset, with
// the wire value 0x3FFF decoding to on_true=false, offset=-1 per spec.md §8.
func TestDecodeTwoByteBranchSignExtends(t *testing.T) {
	img := mustLoad(t, 3)
	img.WriteByte(64, 0xA0) // short form, operand type var, 1OP opcode 0 = jz
	img.WriteByte(65, 0x00) // variable number: stack
	img.WriteByte(66, 0x3F) // branch byte 1: bit7=0 (false), bit6=0 (two-byte)
	img.WriteByte(67, 0xFF) // branch byte 2

	inst, err := decode.Decode(img, 64)
	if err != nil {
		t.Fatalf("unexpected decode fault: %v", err)
	}
	if inst.Branch == nil {
		t.Fatal("expected a branch descriptor")
	}
	if inst.Branch.OnTrue {
		t.Error("expected on_true = false")
	}
	if inst.Branch.Offset != -1 {
		t.Errorf("offset = %d, want -1", inst.Branch.Offset)
	}
}

// TestDecodeVariableFormStorew exercises the variable-form type byte
// 0b00_01_10_11 -> [Large, Small, Variable, Omitted] as in spec.md §8.
func TestDecodeVariableFormStorew(t *testing.T) {
	img := mustLoad(t, 3)
	img.WriteByte(64, 0xE1) // variable form, VAR count (bit5 set), opcode 1 (storew)
	img.WriteByte(65, 0b00_01_10_11)
	img.WriteByte(66, 0x01) // large operand high byte
	img.WriteByte(67, 0x00) // large operand low byte
	img.WriteByte(68, 0x02) // small operand
	img.WriteByte(69, 0x05) // variable operand (variable number)

	inst, err := decode.Decode(img, 64)
	if err != nil {
		t.Fatalf("unexpected decode fault: %v", err)
	}
	if inst.Mnemonic != opcode.OpStorew {
		t.Errorf("mnemonic = %v, want OpStorew", inst.Mnemonic)
	}
	want := []decode.OperandType{decode.Large, decode.Small, decode.VarOp}
	if len(inst.OperandTypes) != len(want) {
		t.Fatalf("operand types = %v, want %v", inst.OperandTypes, want)
	}
	for i, ot := range want {
		if inst.OperandTypes[i] != ot {
			t.Errorf("operand type[%d] = %v, want %v", i, inst.OperandTypes[i], ot)
		}
	}
	if inst.Operands[0] != 0x0100 || inst.Operands[1] != 0x02 || inst.Operands[2] != 0x05 {
		t.Errorf("operands = %v, want [0x100 2 5]", inst.Operands)
	}
}

// TestDecodePrintCarriesInlineText checks that print (0OP:2) consumes
// encoded words until one has its high bit set.
func TestDecodePrintCarriesInlineText(t *testing.T) {
	img := mustLoad(t, 3)
	img.WriteByte(64, 0xB2) // short form, no operand, opcode 2 (print)
	img.WriteByte(65, 0x00)
	img.WriteByte(66, 0x00)
	img.WriteByte(67, 0x80) // second word, high bit set: terminator
	img.WriteByte(68, 0x00)

	inst, err := decode.Decode(img, 64)
	if err != nil {
		t.Fatalf("unexpected decode fault: %v", err)
	}
	if inst.Mnemonic != opcode.OpPrint {
		t.Errorf("mnemonic = %v, want OpPrint", inst.Mnemonic)
	}
	if len(inst.Text) != 2 {
		t.Fatalf("text words = %d, want 2", len(inst.Text))
	}
	if inst.Length != 5 {
		t.Errorf("length = %d, want 5", inst.Length)
	}
}

// TestDecodeExtendedFormSaveUndo covers the v5+ extended-form bucket.
func TestDecodeExtendedFormSaveUndo(t *testing.T) {
	img := mustLoad(t, 5)
	img.WriteByte(64, 0xBE) // extended form marker
	img.WriteByte(65, 0x09) // save_undo
	img.WriteByte(66, 0xFF) // type byte: all omitted
	img.WriteByte(67, 0x00) // store variable

	inst, err := decode.Decode(img, 64)
	if err != nil {
		t.Fatalf("unexpected decode fault: %v", err)
	}
	if inst.Mnemonic != opcode.OpSaveUndo {
		t.Errorf("mnemonic = %v, want OpSaveUndo", inst.Mnemonic)
	}
	if inst.Store == nil {
		t.Error("save_undo should store a result")
	}
}

// TestDecodeUnknownOpcodeFaults confirms an unused opcode number surfaces a
// decode fault rather than a zero-value Instruction.
func TestDecodeUnknownOpcodeFaults(t *testing.T) {
	img := mustLoad(t, 3)
	img.WriteByte(64, 0x00) // long form, opcode number 0 is unused in 2OP
	img.WriteByte(65, 0)
	img.WriteByte(66, 0)

	if _, err := decode.Decode(img, 64); err == nil {
		t.Fatal("expected a decode fault for an unused opcode number")
	}
}

// TestDecodeTruncatedInstructionFaults confirms a read past the end of the
// story file surfaces as a fault instead of a panic.
func TestDecodeTruncatedInstructionFaults(t *testing.T) {
	img := mustLoad(t, 3)
	// the very last byte of the file is 0x00, a long-form opcode byte,
	// with no room for its two operands.
	if _, err := decode.Decode(img, img.Len()-1); err == nil {
		t.Fatal("expected a decode fault for a truncated instruction")
	}
}
