// Package ztable implements the table opcodes that scan, copy, and
// render runs of memory: scan_table, copy_table, and print_table. None
// of them depend on the dictionary, so they survive the tokeniser
// non-goal untouched.
package ztable

import (
	"strings"

	"zmcore/internal/zcore"
)

// Fault reports an illegal table operation: typically an out-of-range
// read or write surfaced from the underlying Memory Image.
type Fault struct {
	Reason string
}

func (f *Fault) Error() string { return "ztable: " + f.Reason }

// PrintTable renders a rectangular block of text: width bytes per row,
// skip extra bytes of stride between rows, stopping after height rows
// (a height of 0 prints a single row).
func PrintTable(img *zcore.Image, baddr uint32, width uint16, height uint16, skip uint16) (string, error) {
	s := strings.Builder{}
	row := uint16(0)

	for {
		if height != 0 && row >= height {
			break
		}

		rowStart := baddr + uint32(row)*(uint32(width)+uint32(skip))
		for col := uint16(0); col < width; col++ {
			b, err := img.ReadByte(rowStart + uint32(col))
			if err != nil {
				return "", &Fault{Reason: err.Error()}
			}
			s.WriteByte(b)
		}

		row++
		if height == 0 {
			break
		}
		if row < height {
			s.WriteByte('\n')
		}
	}

	return s.String(), nil
}

// ScanTable searches length fields of fieldSize bytes starting at baddr
// for one equal to test, returning the address of the first match or 0.
// form's high bit selects 2-byte fields over 1-byte.
func ScanTable(img *zcore.Image, test uint16, baddr uint32, length uint16, form uint16) (uint32, error) {
	fieldSize := form & 0b0111_1111
	checkWord := form&0b1000_0000 != 0
	if fieldSize == 0 {
		return 0, nil
	}

	ptr := baddr
	for i := uint16(0); i < length; i++ {
		if checkWord {
			w, err := img.ReadWord(ptr)
			if err != nil {
				return 0, &Fault{Reason: err.Error()}
			}
			if w == test {
				return ptr, nil
			}
		} else {
			b, err := img.ReadByte(ptr)
			if err != nil {
				return 0, &Fault{Reason: err.Error()}
			}
			if uint16(b) == test {
				return ptr, nil
			}
		}
		ptr += uint32(fieldSize)
	}

	return 0, nil
}

// CopyTable moves size bytes from first to second. second == 0 means
// "zero size bytes of the table at first"; a negative size permits the copy to
// clobber overlapping source bytes as it goes (matching memmove vs.
// memcpy semantics for forward-overlapping ranges), per spec.md §4.3.
func CopyTable(img *zcore.Image, first, second uint32, size int16) error {
	length := uint32(size)
	if size < 0 {
		length = uint32(-int32(size))
	}

	if second == 0 {
		for i := uint32(0); i < length; i++ {
			if err := img.WriteByte(first+i, 0); err != nil {
				return &Fault{Reason: err.Error()}
			}
		}
		return nil
	}

	if size >= 0 {
		tmp := make([]uint8, length)
		for i := uint32(0); i < length; i++ {
			b, err := img.ReadByte(first + i)
			if err != nil {
				return &Fault{Reason: err.Error()}
			}
			tmp[i] = b
		}
		for i := uint32(0); i < length; i++ {
			if err := img.WriteByte(second+i, tmp[i]); err != nil {
				return &Fault{Reason: err.Error()}
			}
		}
		return nil
	}

	for i := uint32(0); i < length; i++ {
		b, err := img.ReadByte(first + i)
		if err != nil {
			return &Fault{Reason: err.Error()}
		}
		if err := img.WriteByte(second+i, b); err != nil {
			return &Fault{Reason: err.Error()}
		}
	}
	return nil
}
