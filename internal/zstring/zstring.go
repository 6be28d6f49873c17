// Package zstring is the Text Decoder: it turns a run of Z-character
// words in a Memory Image into the Unicode string a player would read,
// resolving alphabet shifts, abbreviation expansion, and ZSCII/Unicode
// escapes along the way.
package zstring

import (
	"fmt"

	"zmcore/internal/zcore"
)

var defaultA0 = [26]uint8{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'}
var defaultA1 = [26]uint8{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'}
var defaultA2V1 = [25]uint8{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '<', '-', ':', '(', ')'}
var defaultA2 = [25]uint8{'\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

// Alphabets holds the character tables a story uses to resolve
// Z-characters 6-31: A0 and A1 have 26 entries (z 6-31), A2 has 25 (z
// 7-31, since z=6 on A2 is reserved for the 10-bit ZSCII escape).
// Versions 1-4 always use the built-in defaults; version 5+ stories may
// supply a custom table via the header extension table.
type Alphabets struct {
	A0, A1 [26]uint8
	A2     [25]uint8
}

// LoadAlphabets reads the alphabet tables for img, following the
// built-in/custom split of spec.md §4.3.
func LoadAlphabets(img *zcore.Image) *Alphabets {
	if addr, ok := customAlphabetTable(img); ok {
		a := &Alphabets{}
		for i := 0; i < 26; i++ {
			a.A0[i], _ = img.ReadByte(addr + uint32(i))
			a.A1[i], _ = img.ReadByte(addr + 26 + uint32(i))
		}
		for i := 0; i < 25; i++ {
			a.A2[i], _ = img.ReadByte(addr + 52 + uint32(i))
		}
		return a
	}

	a := &Alphabets{A0: defaultA0, A1: defaultA1}
	if img.Version == 1 {
		a.A2 = defaultA2V1
	} else {
		a.A2 = defaultA2
	}
	return a
}

func customAlphabetTable(img *zcore.Image) (uint32, bool) {
	if img.Version < 5 {
		return 0, false
	}
	w, ok := img.HeaderExtensionWord(1)
	if !ok || w == 0 {
		return 0, false
	}
	return uint32(w), true
}

// Fault reports a malformed Z-string: a read past the end of the story
// file, a truncated escape sequence, or an abbreviation that tries to
// expand another abbreviation.
type Fault struct {
	Addr   uint32
	Reason string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("zstring: fault decoding string at %#06x: %s", f.Addr, f.Reason)
}

// abbreviationDepthLimit matches §3.8 of the Z-Machine standard: an
// abbreviation string may not itself invoke an abbreviation.
const abbreviationDepthLimit = 1

// Decode reads the Z-string starting at addr and returns the text, the
// number of bytes consumed (always a multiple of 2), and any fault.
func Decode(img *zcore.Image, addr uint32, alphabets *Alphabets) (string, uint32, error) {
	return decode(img, addr, alphabets, 0)
}

// DecodeWords renders a run of Z-character words the Instruction Decoder
// already pulled out of the image inline (print/print_ret's text
// literal), without re-reading them from memory.
func DecodeWords(words []uint16, alphabets *Alphabets, img *zcore.Image) (string, error) {
	var zchrs []uint8
	for _, w := range words {
		zchrs = append(zchrs, uint8((w>>10)&0b1_1111), uint8((w>>5)&0b1_1111), uint8(w&0b1_1111))
	}
	return interpretZCharacters(img, zchrs, alphabets, 0)
}

func decode(img *zcore.Image, addr uint32, alphabets *Alphabets, depth int) (string, uint32, error) {
	zchrs, length, err := readZCharacters(img, addr)
	if err != nil {
		return "", 0, err
	}
	str, err := interpretZCharacters(img, zchrs, alphabets, depth)
	if err != nil {
		if f, ok := err.(*Fault); ok && f.Addr == 0 {
			f.Addr = addr
		}
		return "", 0, err
	}
	return str, length, nil
}

func interpretZCharacters(img *zcore.Image, zchrs []uint8, alphabets *Alphabets, depth int) (string, error) {
	version := img.Version
	var out []rune
	currentAlphabet, nextAlphabet, lockedAlphabet := 0, 0, 0

	for i := 0; i < len(zchrs); i++ {
		z := zchrs[i]
		currentAlphabet = nextAlphabet
		nextAlphabet = lockedAlphabet

		switch {
		case z == 0:
			out = append(out, ' ')

		case version <= 2 && z == 1:
			out = append(out, '\n')

		case version >= 3 && z >= 1 && z <= 3:
			if depth >= abbreviationDepthLimit {
				return "", &Fault{Reason: "abbreviation attempted to expand an abbreviation"}
			}
			i++
			if i >= len(zchrs) {
				return "", &Fault{Reason: "truncated abbreviation escape"}
			}
			expansion, err := expandAbbreviation(img, alphabets, z, zchrs[i], depth)
			if err != nil {
				return "", err
			}
			out = append(out, []rune(expansion)...)

		case version <= 2 && (z == 2 || z == 3):
			shift := 1
			if z == 3 {
				shift = 2
			}
			nextAlphabet = (currentAlphabet + shift) % 3

		case z == 4 || z == 5:
			shift := 1
			if z == 5 {
				shift = 2
			}
			if version <= 2 {
				lockedAlphabet = (lockedAlphabet + shift) % 3
				nextAlphabet = lockedAlphabet
			} else {
				nextAlphabet = (currentAlphabet + shift) % 3
			}

		case currentAlphabet == 2 && z == 6:
			if i+2 >= len(zchrs) {
				return "", &Fault{Reason: "truncated ZSCII escape"}
			}
			top, bottom := zchrs[i+1], zchrs[i+2]
			i += 2
			out = append(out, ZsciiToRune(img, (top<<5)|bottom))

		default:
			r, err := alphabetChar(alphabets, currentAlphabet, z)
			if err != nil {
				return "", &Fault{Reason: err.Error()}
			}
			out = append(out, r)
		}
	}

	return string(out), nil
}

// readZCharacters unpacks the run of 5-bit Z-characters packed three to
// a word, stopping at the word with its high bit set.
func readZCharacters(img *zcore.Image, addr uint32) ([]uint8, uint32, error) {
	var zchrs []uint8
	ptr := addr
	for {
		w, err := img.ReadWord(ptr)
		if err != nil {
			return nil, 0, &Fault{Addr: addr, Reason: err.Error()}
		}
		ptr += 2
		zchrs = append(zchrs, uint8((w>>10)&0b1_1111), uint8((w>>5)&0b1_1111), uint8(w&0b1_1111))
		if w&0x8000 != 0 {
			break
		}
	}
	return zchrs, ptr - addr, nil
}

func alphabetChar(a *Alphabets, alphabet int, z uint8) (rune, error) {
	switch alphabet {
	case 0:
		if z < 6 || int(z)-6 >= len(a.A0) {
			return 0, fmt.Errorf("z-character %d out of range for alphabet A0", z)
		}
		return rune(a.A0[z-6]), nil
	case 1:
		if z < 6 || int(z)-6 >= len(a.A1) {
			return 0, fmt.Errorf("z-character %d out of range for alphabet A1", z)
		}
		return rune(a.A1[z-6]), nil
	default:
		if z < 7 || int(z)-7 >= len(a.A2) {
			return 0, fmt.Errorf("z-character %d out of range for alphabet A2", z)
		}
		return rune(a.A2[z-7]), nil
	}
}

func expandAbbreviation(img *zcore.Image, alphabets *Alphabets, z uint8, x uint8, depth int) (string, error) {
	abbrIx := 32*(int(z)-1) + int(x)
	entryAddr := img.AbbreviationTableStart + uint32(2*abbrIx)
	packed, err := img.ReadWord(entryAddr)
	if err != nil {
		return "", &Fault{Addr: entryAddr, Reason: err.Error()}
	}

	str, _, err := decode(img, uint32(packed)*2, alphabets, depth+1)
	return str, err
}
