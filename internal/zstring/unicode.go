package zstring

import "zmcore/internal/zcore"

// defaultUnicodeTable is the standard ZSCII 155-251 extra-characters
// table from the Z-Machine standard's Unicode appendix, used whenever a
// story doesn't supply its own via the header extension table.
var defaultUnicodeTable = [...]rune{
	'ä', 'ö', 'ü', 'Ä', 'Ö', 'Ü', 'ß', '»', '«', 'ë', 'ï', 'ÿ', 'Ë', 'Ï',
	'á', 'é', 'í', 'ó', 'ú', 'ý', 'Á', 'É', 'Í', 'Ó', 'Ú', 'Ý', 'à', 'è',
	'ì', 'ò', 'ù', 'À', 'È', 'Ì', 'Ò', 'Ù', 'â', 'ê', 'î', 'ô', 'û', 'Â',
	'Ê', 'Î', 'Ô', 'Û', 'å', 'Å', 'ø', 'Ø', 'ã', 'ñ', 'õ', 'Ã', 'Ñ', 'Õ',
	'æ', 'Æ', 'ç', 'Ç', 'þ', 'ð', 'Þ', 'Ð', '£', 'œ', 'Œ', '¡', '¿',
}

// ZsciiToRune maps a ZSCII code to the rune an output stream should
// emit, following the custom-table-over-default rule of spec.md §4.3.
// ZSCII 13 is carriage return, 32-126 is plain ASCII, and 155 upward
// indexes into the extra-characters table.
func ZsciiToRune(img *zcore.Image, zscii uint8) rune {
	switch {
	case zscii == 13:
		return '\n'
	case zscii >= 32 && zscii <= 126:
		return rune(zscii)
	case zscii >= 155:
		if r, ok := customUnicodeChar(img, zscii); ok {
			return r
		}
		idx := int(zscii) - 155
		if idx < len(defaultUnicodeTable) {
			return defaultUnicodeTable[idx]
		}
	}
	return '?'
}

func customUnicodeChar(img *zcore.Image, zscii uint8) (rune, bool) {
	w, ok := img.HeaderExtensionWord(3)
	if !ok || w == 0 {
		return 0, false
	}
	tableAddr := uint32(w)

	count, err := img.ReadByte(tableAddr)
	if err != nil {
		return 0, false
	}
	idx := int(zscii) - 155
	if idx < 0 || idx >= int(count) {
		return 0, false
	}

	r, err := img.ReadWord(tableAddr + 1 + uint32(idx)*2)
	if err != nil {
		return 0, false
	}
	return rune(r), true
}
