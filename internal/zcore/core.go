// Package zcore is the Memory Image: the mutable byte buffer backing a
// loaded story file, partitioned into dynamic/static/high regions and
// carrying the header-derived constants every other package reads from.
package zcore

import "encoding/binary"

// AddressKind selects the version-specific packed-address formula used by
// Unpack.
type AddressKind int

const (
	Routine AddressKind = iota
	String
)

// region marks which of the three memory partitions an address falls
// into, for the read/write legality checks in ReadByte/WriteByte etc.
type region int

const (
	regionDynamic region = iota
	regionStatic
	regionHigh
)

const headerSize = 64

// LoadFault reports a failure to construct an Image from story-file bytes.
// These are fatal at load time per spec (exit code 1).
type LoadFault struct {
	Reason string
}

func (f *LoadFault) Error() string { return "zcore: load fault: " + f.Reason }

// MemoryFault reports an illegal read or write discovered at runtime: an
// out-of-range address, or a write into static/high memory. These are
// fatal execution faults (exit code 2).
type MemoryFault struct {
	Address uint32
	Reason  string
}

func (f *MemoryFault) Error() string {
	return "zcore: memory fault: " + f.Reason
}

// Image is the owned, mutable byte buffer plus the header-derived
// constants read once at load. It has no notion of the program counter —
// the PC is owned by the execution engine, not the memory image, so that
// this package stays a pure storage/addressing component.
type Image struct {
	bytes []uint8

	Version uint8

	StaticBase             uint32
	HighBase               uint32
	GlobalTableStart       uint32
	ObjectTableStart       uint32
	AbbreviationTableStart uint32
	DictionaryStart        uint32
	RoutinesOffset         uint32
	StringsOffset          uint32
	HeaderExtensionStart   uint32

	// StartPC is the byte address of the first instruction for v != 6,
	// or the packed routine address (unresolved) for v == 6.
	StartPC uint32

	FlagByte1    uint8
	FileChecksum uint16
}

// Load parses a raw story-file image into a Memory Image, applying the
// §3 load-time invariants. Any violation aborts load with a *LoadFault.
func Load(data []uint8) (*Image, error) {
	if len(data) < headerSize {
		return nil, &LoadFault{Reason: "file shorter than 64-byte header"}
	}
	if len(data) > 65534 {
		data = data[:65534]
	}

	version := data[0x00]
	if version == 0 || version > 8 {
		return nil, &LoadFault{Reason: "unsupported story file version"}
	}

	staticBase := uint32(binary.BigEndian.Uint16(data[0x0e:0x10]))
	if staticBase < headerSize {
		return nil, &LoadFault{Reason: "static memory begins before byte 64"}
	}

	if staticBase > 65534 {
		return nil, &LoadFault{Reason: "dynamic+static memory exceeds addressable space"}
	}

	img := &Image{
		bytes:                  data,
		Version:                version,
		FlagByte1:              data[0x01],
		StaticBase:             staticBase,
		HighBase:               uint32(binary.BigEndian.Uint16(data[0x04:0x06])),
		DictionaryStart:        uint32(binary.BigEndian.Uint16(data[0x08:0x0a])),
		ObjectTableStart:       uint32(binary.BigEndian.Uint16(data[0x0a:0x0c])),
		GlobalTableStart:       uint32(binary.BigEndian.Uint16(data[0x0c:0x0e])),
		AbbreviationTableStart: uint32(binary.BigEndian.Uint16(data[0x18:0x1a])),
		FileChecksum:           binary.BigEndian.Uint16(data[0x1c:0x1e]),
		RoutinesOffset:         uint32(binary.BigEndian.Uint16(data[0x28:0x2a])),
		StringsOffset:          uint32(binary.BigEndian.Uint16(data[0x2a:0x2c])),
		HeaderExtensionStart:   uint32(binary.BigEndian.Uint16(data[0x36:0x38])),
	}

	img.StartPC = uint32(binary.BigEndian.Uint16(data[0x06:0x08]))

	return img, nil
}

func (img *Image) regionOf(addr uint32) region {
	switch {
	case addr < img.StaticBase:
		return regionDynamic
	case addr < img.HighBase:
		return regionStatic
	default:
		return regionHigh
	}
}

func (img *Image) checkRead(addr uint32, width uint32) error {
	if addr+width > uint32(len(img.bytes)) {
		return &MemoryFault{Address: addr, Reason: "read past end of story file"}
	}
	return nil
}

// ReadByte reads a single byte. Reads are legal anywhere in range.
func (img *Image) ReadByte(addr uint32) (uint8, error) {
	if err := img.checkRead(addr, 1); err != nil {
		return 0, err
	}
	return img.bytes[addr], nil
}

// ReadWord reads a big-endian 16-bit word.
func (img *Image) ReadWord(addr uint32) (uint16, error) {
	if err := img.checkRead(addr, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(img.bytes[addr : addr+2]), nil
}

// WriteByte writes a single byte. Writes outside the dynamic region are
// fatal per §4.1.
func (img *Image) WriteByte(addr uint32, v uint8) error {
	if err := img.checkRead(addr, 1); err != nil {
		return err
	}
	if img.regionOf(addr) != regionDynamic {
		return &MemoryFault{Address: addr, Reason: "write to non-dynamic memory"}
	}
	img.bytes[addr] = v
	return nil
}

// WriteWord writes a big-endian 16-bit word, subject to the same region
// check as WriteByte.
func (img *Image) WriteWord(addr uint32, v uint16) error {
	if err := img.checkRead(addr, 2); err != nil {
		return err
	}
	if img.regionOf(addr) != regionDynamic {
		return &MemoryFault{Address: addr, Reason: "write to non-dynamic memory"}
	}
	binary.BigEndian.PutUint16(img.bytes[addr:addr+2], v)
	return nil
}

// ReadSlice returns the raw bytes in [start, end) as a slice of the
// image's own buffer, not a copy, without the range check the Read*
// methods apply.
func (img *Image) ReadSlice(start, end uint32) []uint8 {
	return img.bytes[start:end]
}

// Len is the length of the loaded story file in bytes.
func (img *Image) Len() uint32 {
	return uint32(len(img.bytes))
}

// Unpack expands a packed address into a byte address, per the
// version-specific formula in §4.1.
func (img *Image) Unpack(addr uint32, kind AddressKind) uint32 {
	switch {
	case img.Version <= 3:
		return 2 * addr
	case img.Version <= 5:
		return 4 * addr
	case img.Version <= 7:
		offset := img.RoutinesOffset
		if kind == String {
			offset = img.StringsOffset
		}
		return 4*addr + 8*offset
	default: // v8
		return 8 * addr
	}
}

// HeaderExtensionWord reads the n'th (1-indexed) word of the header
// extension table, returning ok=false if the story has no extension
// table or it is too short to carry that word.
func (img *Image) HeaderExtensionWord(n uint32) (uint16, bool) {
	if img.HeaderExtensionStart == 0 {
		return 0, false
	}
	length, err := img.ReadWord(img.HeaderExtensionStart)
	if err != nil || uint32(length) < n {
		return 0, false
	}
	w, err := img.ReadWord(img.HeaderExtensionStart + 2*n)
	if err != nil {
		return 0, false
	}
	return w, true
}

// SetInterpreterIdentity stamps the interpreter-number/version bytes in
// the header (offsets 0x1e/0x1f), mirroring what every real interpreter
// does before handing control to the story file.
func (img *Image) SetInterpreterIdentity(number, version uint8) {
	img.bytes[0x1e] = number
	img.bytes[0x1f] = version
}
