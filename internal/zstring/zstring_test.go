package zstring_test

import (
	"encoding/binary"
	"testing"

	"zmcore/internal/zcore"
	"zmcore/internal/zstring"
)

func imageWithBytesAt(version uint8, addr uint32, data []uint8) *zcore.Image {
	size := addr + uint32(len(data)) + 16
	buf := make([]uint8, size)
	buf[0x00] = version
	// Static base sits past the whole arena so every test fixture byte
	// lands in dynamic (writable) memory.
	binary.BigEndian.PutUint16(buf[0x0e:0x10], uint16(size))
	binary.BigEndian.PutUint16(buf[0x04:0x06], uint16(size))
	copy(buf[addr:], data)
	img, err := zcore.Load(buf)
	if err != nil {
		panic(err)
	}
	return img
}

func TestDecodeLowercase(t *testing.T) {
	// "hi" in alphabet 0: h=13(6+7), i=14(6+8), padded with 5 (shift, no-op effectively at end).
	img := imageWithBytesAt(3, 64, []uint8{})
	zchrs := []uint8{13, 14, 5}
	word := uint16(zchrs[0])<<10 | uint16(zchrs[1])<<5 | uint16(zchrs[2]) | 0x8000
	img.WriteWord(64, word)

	got, n, err := zstring.Decode(img, 64, zstring.LoadAlphabets(img))
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if n != 2 {
		t.Errorf("bytes read = %d, want 2", n)
	}
	if got != "hi" {
		t.Errorf("decoded = %q, want %q", got, "hi")
	}
}

func TestDecodeExpandsAbbreviation(t *testing.T) {
	// Arena of 64+240+16 = 320 bytes, so the table at 200 and the string
	// at 300 both fall inside it.
	img := imageWithBytesAt(3, 64, make([]uint8, 240))
	img.AbbreviationTableStart = 200

	// Abbreviation string at byte address 300 (packed addr 150) spells "hi".
	abbrevWord := uint16(13)<<10 | uint16(14)<<5 | uint16(5) | 0x8000
	img.WriteWord(300, abbrevWord)
	img.WriteWord(200, 150) // entry 0 (z=1, x=0) -> packed address 150 -> byte 300

	// Main string: z-char 1 (abbreviation escape, version>=3) then x=0.
	mainWord := uint16(1)<<10 | uint16(0)<<5 | uint16(5) | 0x8000
	img.WriteWord(64, mainWord)

	got, _, err := zstring.Decode(img, 64, zstring.LoadAlphabets(img))
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if got != "hi" {
		t.Errorf("decoded = %q, want %q", got, "hi")
	}
}

func TestDecodeShiftsToAlphabetTwoForDigits(t *testing.T) {
	img := imageWithBytesAt(3, 64, []uint8{})
	// z=5 (shift to A2 for one character), then z=9 which is '1' in A2 (index 2, offset 7).
	word := uint16(5)<<10 | uint16(9)<<5 | uint16(5) | 0x8000
	img.WriteWord(64, word)

	got, _, err := zstring.Decode(img, 64, zstring.LoadAlphabets(img))
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if got != "1" {
		t.Errorf("decoded = %q, want %q", got, "1")
	}
}

func TestDecodeZsciiEscape(t *testing.T) {
	img := imageWithBytesAt(3, 64, []uint8{})
	// z=5 shifts to A2, z=6 triggers the 10-bit ZSCII escape, top=0x01 bottom=0x1e -> ZSCII '>' (62),
	// then the last word is padded with shift z-chars (5) that print nothing.
	w0 := uint16(5)<<10 | uint16(6)<<5 | uint16(1)
	w1 := uint16(30)<<10 | uint16(5)<<5 | uint16(5) | 0x8000
	img.WriteWord(64, w0)
	img.WriteWord(66, w1)

	got, n, err := zstring.Decode(img, 64, zstring.LoadAlphabets(img))
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if n != 4 {
		t.Errorf("bytes read = %d, want 4", n)
	}
	if got != ">" {
		t.Errorf("decoded = %q, want %q", got, ">")
	}
}

func TestDecodeTruncatedStringFaults(t *testing.T) {
	img := imageWithBytesAt(3, 64, []uint8{})
	if _, _, err := zstring.Decode(img, img.Len()-1, zstring.LoadAlphabets(img)); err == nil {
		t.Fatal("expected a fault decoding a string that runs off the end of the file")
	}
}

func TestZsciiToRuneDefaultTable(t *testing.T) {
	img := imageWithBytesAt(5, 64, []uint8{})
	if r := zstring.ZsciiToRune(img, 155); r != 'ä' {
		t.Errorf("ZsciiToRune(155) = %q, want %q", r, 'ä')
	}
	if r := zstring.ZsciiToRune(img, 'A'); r != 'A' {
		t.Errorf("ZsciiToRune('A') = %q, want %q", r, 'A')
	}
	if r := zstring.ZsciiToRune(img, 13); r != '\n' {
		t.Errorf("ZsciiToRune(13) = %q, want newline", r)
	}
}
