// Package decode is the Instruction Decoder: a pure function of a Memory
// Image and a program counter that produces a fully-resolved Instruction
// value and the number of bytes it occupies. It never mutates the image
// and carries no back-reference to it or to the engine, per spec.md §9's
// "shared back-references" note — the teacher ties every instruction to
// its owning VM; this keeps Instruction a plain value record instead.
package decode

import (
	"fmt"

	"zmcore/internal/opcode"
	"zmcore/internal/zcore"
)

// Form is the opcode encoding form: Short, Long, Variable, or Extended.
type Form int

const (
	Short Form = iota
	Long
	Variable
	Extended
)

// OperandType is the width/kind of a single decoded operand.
type OperandType int

const (
	Large    OperandType = iota // 2-byte constant
	Small                       // 1-byte constant
	VarOp                       // variable number, resolved at execute time
	Omitted                     // terminator, never appears in Instruction.OperandTypes
)

// Branch is the decoded branch descriptor: the predicate polarity to take
// the branch on, and the signed offset (already sign-extended from its
// 14-bit wire encoding when two-byte).
type Branch struct {
	OnTrue bool
	Offset int16
}

// Instruction is the Decoded Instruction value record from spec.md §3: all
// fields resolved except the values of Variable-typed operands, which are
// only meaningful once read through the Variable File at execute time.
type Instruction struct {
	PC       uint32
	Length   uint32
	Form     Form
	Count    opcode.Count
	Number   uint8
	Mnemonic opcode.Mnemonic
	Name     string

	OperandTypes []OperandType
	Operands     []uint16 // raw values: constant as-is, variable as a variable number

	Store  *uint8 // store-variable byte, if the opcode stores
	Branch *Branch
	Text   []uint16 // encoded words of an inline string literal, if any
}

// Fault reports a decode-time failure: an unknown (form, count, number,
// version) combination, or a read past the end of the story file. Both
// are fatal per spec.md §7 (exit code 2).
type Fault struct {
	PC     uint32
	Reason string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("decode fault at %#06x: %s", f.PC, f.Reason)
}

type cursor struct {
	img *zcore.Image
	pc  uint32
}

func (c *cursor) byte_() (uint8, error) {
	b, err := c.img.ReadByte(c.pc)
	if err != nil {
		return 0, err
	}
	c.pc++
	return b, nil
}

func (c *cursor) word() (uint16, error) {
	w, err := c.img.ReadWord(c.pc)
	if err != nil {
		return 0, err
	}
	c.pc += 2
	return w, nil
}

// Decode produces a Decoded Instruction starting at pc, following the
// algorithm in spec.md §4.2.
func Decode(img *zcore.Image, pc uint32) (Instruction, error) {
	start := pc
	c := &cursor{img: img, pc: pc}

	b0, err := c.byte_()
	if err != nil {
		return Instruction{}, &Fault{PC: start, Reason: err.Error()}
	}

	inst := Instruction{PC: start}

	extended := img.Version >= 5 && b0 == 0xbe
	if extended {
		inst.Form = Extended
		number, err := c.byte_()
		if err != nil {
			return Instruction{}, &Fault{PC: start, Reason: err.Error()}
		}
		inst.Number = number
		inst.Count = opcode.CountVAR
		if err := decodeVariableOperands(c, &inst, true); err != nil {
			return Instruction{}, err
		}
	} else if b0>>6 == 0b11 {
		inst.Form = Variable
		inst.Number = b0 & 0b1_1111
		if (b0>>5)&1 == 0 {
			inst.Count = opcode.Count2OP
		} else {
			inst.Count = opcode.CountVAR
		}
		if err := decodeVariableOperands(c, &inst, false); err != nil {
			return Instruction{}, err
		}
	} else if b0>>7 == 1 {
		inst.Form = Short
		inst.Number = b0 & 0b1111
		operandType := OperandType((b0 >> 4) & 0b11)
		if operandType == Omitted {
			inst.Count = opcode.Count0OP
		} else {
			inst.Count = opcode.Count1OP
			val, err := readOperand(c, operandType)
			if err != nil {
				return Instruction{}, &Fault{PC: start, Reason: err.Error()}
			}
			inst.OperandTypes = append(inst.OperandTypes, operandType)
			inst.Operands = append(inst.Operands, val)
		}
	} else {
		inst.Form = Long
		inst.Count = opcode.Count2OP
		inst.Number = b0 & 0b1_1111

		type1, type2 := Small, Small
		if (b0>>6)&1 == 1 {
			type1 = VarOp
		}
		if (b0>>5)&1 == 1 {
			type2 = VarOp
		}
		for _, t := range [...]OperandType{type1, type2} {
			val, err := readOperand(c, t)
			if err != nil {
				return Instruction{}, &Fault{PC: start, Reason: err.Error()}
			}
			inst.OperandTypes = append(inst.OperandTypes, t)
			inst.Operands = append(inst.Operands, val)
		}
	}

	rec, ok := opcode.Lookup(extended, inst.Count, inst.Number, img.Version)
	if !ok {
		return Instruction{}, &Fault{PC: start, Reason: fmt.Sprintf("unknown opcode (form=%v count=%v number=%#x version=%d)", inst.Form, inst.Count, inst.Number, img.Version)}
	}
	inst.Mnemonic = rec.Mnemonic
	inst.Name = rec.Name

	if rec.Store {
		v, err := c.byte_()
		if err != nil {
			return Instruction{}, &Fault{PC: start, Reason: err.Error()}
		}
		inst.Store = &v
	}

	if rec.Branch {
		br, err := decodeBranch(c)
		if err != nil {
			return Instruction{}, &Fault{PC: start, Reason: err.Error()}
		}
		inst.Branch = &br
	}

	if rec.Text {
		words, err := decodeInlineText(c)
		if err != nil {
			return Instruction{}, &Fault{PC: start, Reason: err.Error()}
		}
		inst.Text = words
	}

	inst.Length = c.pc - start
	return inst, nil
}

func readOperand(c *cursor, t OperandType) (uint16, error) {
	switch t {
	case Large:
		return c.word()
	case Small, VarOp:
		b, err := c.byte_()
		return uint16(b), err
	default:
		return 0, nil
	}
}

// decodeVariableOperands reads the type byte(s) and following operand
// values for Variable/Extended-form instructions, per spec.md §4.2 step 6.
// call_vs2/call_vn2 read a second type byte to allow up to 8 operands.
func decodeVariableOperands(c *cursor, inst *Instruction, extended bool) error {
	typeByte, err := c.byte_()
	if err != nil {
		return &Fault{Reason: err.Error()}
	}

	doubleWide := !extended && inst.Count == opcode.CountVAR && (inst.Number == 12 || inst.Number == 26)
	var typeByte2 uint8
	maxOperands := 4
	if doubleWide {
		typeByte2, err = c.byte_()
		if err != nil {
			return &Fault{Reason: err.Error()}
		}
		maxOperands = 8
	}

	for i := 0; i < maxOperands; i++ {
		var t OperandType
		if i < 4 {
			t = OperandType((typeByte >> (2 * (3 - i))) & 0b11)
		} else {
			t = OperandType((typeByte2 >> (2 * (7 - i))) & 0b11)
		}
		if t == Omitted {
			break
		}

		val, err := readOperand(c, t)
		if err != nil {
			return &Fault{Reason: err.Error()}
		}
		inst.OperandTypes = append(inst.OperandTypes, t)
		inst.Operands = append(inst.Operands, val)
	}

	return nil
}

// decodeBranch reads the 1- or 2-byte branch descriptor per spec.md §3/§4.2
// step 9, sign-extending the 14-bit two-byte offset from bit 13.
func decodeBranch(c *cursor) (Branch, error) {
	b0, err := c.byte_()
	if err != nil {
		return Branch{}, err
	}

	onTrue := b0&0x80 != 0
	if b0&0x40 != 0 {
		return Branch{OnTrue: onTrue, Offset: int16(b0 & 0x3F)}, nil
	}

	b1, err := c.byte_()
	if err != nil {
		return Branch{}, err
	}

	raw := (uint16(b0&0x3F) << 8) | uint16(b1)
	offset := int16(raw<<2) >> 2 // sign-extend from bit 13
	return Branch{OnTrue: onTrue, Offset: offset}, nil
}

// decodeInlineText reads encoded 16-bit words until one has its high bit
// set, per spec.md §4.2 step 10.
func decodeInlineText(c *cursor) ([]uint16, error) {
	var words []uint16
	for {
		w, err := c.word()
		if err != nil {
			return nil, err
		}
		words = append(words, w)
		if w&0x8000 != 0 {
			return words, nil
		}
	}
}
