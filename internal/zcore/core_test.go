package zcore_test

import (
	"testing"

	"zmcore/internal/zcore"
)

func minimalImage(version uint8, staticBase, highBase uint16) []uint8 {
	data := make([]uint8, 128)
	data[0x00] = version
	data[0x04] = uint8(highBase >> 8)
	data[0x05] = uint8(highBase)
	data[0x0e] = uint8(staticBase >> 8)
	data[0x0f] = uint8(staticBase)
	return data
}

func TestLoadRejectsShortFile(t *testing.T) {
	_, err := zcore.Load(make([]uint8, 10))
	if err == nil {
		t.Fatal("expected load fault for file shorter than header")
	}
}

func TestLoadRejectsLowStaticBase(t *testing.T) {
	data := minimalImage(3, 32, 100)
	_, err := zcore.Load(data)
	if err == nil {
		t.Fatal("expected load fault for static_base < 64")
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	data := minimalImage(9, 64, 100)
	_, err := zcore.Load(data)
	if err == nil {
		t.Fatal("expected load fault for unsupported version")
	}
}

func TestBigEndianRoundTrip(t *testing.T) {
	data := minimalImage(3, 64, 100)
	img, err := zcore.Load(data)
	if err != nil {
		t.Fatalf("unexpected load fault: %v", err)
	}

	if err := img.WriteWord(10, 0xBEEF); err != nil {
		t.Fatalf("unexpected write fault: %v", err)
	}
	got, err := img.ReadWord(10)
	if err != nil {
		t.Fatalf("unexpected read fault: %v", err)
	}
	if got != 0xBEEF {
		t.Errorf("ReadWord after WriteWord = %#x, want 0xbeef", got)
	}

	hi, err := img.ReadByte(10)
	if err != nil {
		t.Fatalf("unexpected read fault: %v", err)
	}
	if hi != 0xBE {
		t.Errorf("high byte = %#x, want 0xbe", hi)
	}
}

func TestWriteRejectsStaticMemory(t *testing.T) {
	data := minimalImage(3, 64, 100)
	img, _ := zcore.Load(data)

	if err := img.WriteByte(70, 1); err == nil {
		t.Error("expected memory fault writing into static region")
	}
}

func TestWriteRejectsHighMemory(t *testing.T) {
	data := minimalImage(3, 64, 100)
	img, _ := zcore.Load(data)

	if err := img.WriteByte(100, 1); err == nil {
		t.Error("expected memory fault writing into high region")
	}
}

func TestUnpackIdentity(t *testing.T) {
	tests := []struct {
		version uint8
		addr    uint32
		want    uint32
	}{
		{3, 0x1234, 2 * 0x1234},
		{5, 0x1234, 4 * 0x1234},
		{8, 0x1234, 8 * 0x1234},
	}

	for _, tt := range tests {
		data := minimalImage(tt.version, 64, 100)
		img, _ := zcore.Load(data)
		if got := img.Unpack(tt.addr, zcore.Routine); got != tt.want {
			t.Errorf("v%d Unpack(%#x) = %#x, want %#x", tt.version, tt.addr, got, tt.want)
		}
	}
}

func TestUnpackV6SeparatesRoutineAndStringOffset(t *testing.T) {
	data := minimalImage(6, 64, 100)
	data[0x28] = 0x00
	data[0x29] = 0x02 // routine offset = 2
	data[0x2a] = 0x00
	data[0x2b] = 0x03 // strings offset = 3
	img, _ := zcore.Load(data)

	if got, want := img.Unpack(0x10, zcore.Routine), uint32(4*0x10+8*2); got != want {
		t.Errorf("routine unpack = %#x, want %#x", got, want)
	}
	if got, want := img.Unpack(0x10, zcore.String), uint32(4*0x10+8*3); got != want {
		t.Errorf("string unpack = %#x, want %#x", got, want)
	}
}
