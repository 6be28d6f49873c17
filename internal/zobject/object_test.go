package zobject_test

import (
	"testing"

	"zmcore/internal/zcore"
	"zmcore/internal/zobject"
	"zmcore/internal/zstring"
)

func testImageV3(t *testing.T) *zcore.Image {
	t.Helper()
	buf := make([]uint8, 1024)
	buf[0x00] = 3
	buf[0x0e], buf[0x0f] = 0x03, 0x84 // static base = 900, keeps the whole test arena dynamic/writable
	buf[0x04], buf[0x05] = 0x03, 0xff
	buf[0x0a], buf[0x0b] = 0x00, 100 // object table at 100

	img, err := zcore.Load(buf)
	if err != nil {
		t.Fatalf("unexpected load fault: %v", err)
	}
	return img
}

// writeObjectV3 writes a minimal v1-3 object entry (9 bytes) plus a
// property table with a zero-length name and a terminator, at the given
// slot (1-indexed).
func writeObjectV3(t *testing.T, img *zcore.Image, id uint16, parent, sibling, child uint16, propTableAddr uint32) {
	t.Helper()
	base := img.ObjectTableStart + 31*2 + uint32(id-1)*9
	img.WriteByte(base+4, uint8(parent))
	img.WriteByte(base+5, uint8(sibling))
	img.WriteByte(base+6, uint8(child))
	img.WriteWord(base+7, uint16(propTableAddr))
	img.WriteByte(propTableAddr, 0) // zero-length short name
	img.WriteByte(propTableAddr+1, 0)
}

func TestGetRejectsObjectZero(t *testing.T) {
	img := testImageV3(t)
	if _, err := zobject.Get(img, zstring.LoadAlphabets(img), 0); err == nil {
		t.Fatal("expected a fault retrieving object 0")
	}
}

func TestTreeFieldsV3(t *testing.T) {
	img := testImageV3(t)
	writeObjectV3(t, img, 1, 3, 0, 0, 500)
	writeObjectV3(t, img, 2, 3, 1, 0, 510)
	writeObjectV3(t, img, 3, 0, 0, 2, 520)

	obj, err := zobject.Get(img, zstring.LoadAlphabets(img), 2)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}

	if p, _ := obj.Parent(); p != 3 {
		t.Errorf("parent = %d, want 3", p)
	}
	if s, _ := obj.Sibling(); s != 1 {
		t.Errorf("sibling = %d, want 1", s)
	}
}

func TestAttributesV3(t *testing.T) {
	img := testImageV3(t)
	writeObjectV3(t, img, 1, 0, 0, 0, 500)

	obj, _ := zobject.Get(img, zstring.LoadAlphabets(img), 1)

	if set, _ := obj.TestAttribute(10); set {
		t.Error("attribute 10 should start clear")
	}

	if err := obj.SetAttribute(10); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if set, _ := obj.TestAttribute(10); !set {
		t.Error("attribute 10 should be set")
	}

	if err := obj.ClearAttribute(10); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if set, _ := obj.TestAttribute(10); set {
		t.Error("attribute 10 should be clear again")
	}
}

func TestAttributeOutOfRangeFaults(t *testing.T) {
	img := testImageV3(t)
	writeObjectV3(t, img, 1, 0, 0, 0, 500)
	obj, _ := zobject.Get(img, zstring.LoadAlphabets(img), 1)

	if _, err := obj.TestAttribute(32); err == nil {
		t.Error("attribute 32 is out of range on a v3 story and should fault")
	}
}

func TestInsertAndRemoveObject(t *testing.T) {
	img := testImageV3(t)
	writeObjectV3(t, img, 1, 3, 0, 0, 500) // leaf, currently child of 3
	writeObjectV3(t, img, 2, 0, 0, 0, 510) // detached
	writeObjectV3(t, img, 3, 0, 0, 1, 520) // parent, child is 1

	alphabets := zstring.LoadAlphabets(img)
	one, _ := zobject.Get(img, alphabets, 1)
	two, _ := zobject.Get(img, alphabets, 2)
	three, _ := zobject.Get(img, alphabets, 3)

	if err := zobject.InsertObject(two, three); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}

	if c, _ := three.Child(); c != 2 {
		t.Errorf("three's child = %d, want 2 (newly inserted)", c)
	}
	if s, _ := two.Sibling(); s != 1 {
		t.Errorf("two's sibling = %d, want 1 (the old first child)", s)
	}
	if p, _ := two.Parent(); p != 3 {
		t.Errorf("two's parent = %d, want 3", p)
	}

	if err := zobject.RemoveObject(one); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if p, _ := one.Parent(); p != 0 {
		t.Errorf("one's parent after remove = %d, want 0", p)
	}
	if c, _ := three.Child(); c != 2 {
		t.Errorf("three's child after removing one = %d, want 2 unchanged", c)
	}
}

func TestPropertyGetPutAndDefault(t *testing.T) {
	img := testImageV3(t)
	writeObjectV3(t, img, 1, 0, 0, 0, 500)

	// Property table at 500: name length 0, then property 5 (len 2), then terminator.
	img.WriteByte(501, (1<<5)|5) // size byte: length-1=1 -> len 2, id 5
	img.WriteWord(502, 0xBEEF)
	img.WriteByte(504, 0) // terminator

	obj, _ := zobject.Get(img, zstring.LoadAlphabets(img), 1)

	p, err := obj.GetProperty(5)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	data, _ := p.Data()
	if len(data) != 2 || data[0] != 0xBE || data[1] != 0xEF {
		t.Errorf("property 5 data = %v, want [0xBE 0xEF]", data)
	}

	if err := obj.PutProperty(5, 0x1234); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	p2, _ := obj.GetProperty(5)
	data2, _ := p2.Data()
	if data2[0] != 0x12 || data2[1] != 0x34 {
		t.Errorf("property 5 after put = %v, want [0x12 0x34]", data2)
	}

	// Property 9 isn't on the object; falls back to the object table default.
	img.WriteWord(img.ObjectTableStart+2*8, 0x0005)
	def, err := obj.GetProperty(9)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	defData, _ := def.Data()
	if defData[0] != 0x00 || defData[1] != 0x05 {
		t.Errorf("default property 9 = %v, want [0x00 0x05]", defData)
	}
}

func TestGetNextPropertyWalksInDescendingOrder(t *testing.T) {
	img := testImageV3(t)
	writeObjectV3(t, img, 1, 0, 0, 0, 500)

	img.WriteByte(501, (0<<5)|6) // property 6, length 1
	img.WriteByte(502, 0x85)
	img.WriteByte(503, (1<<5)|2) // property 2, length 2
	img.WriteWord(504, 0x0102)
	img.WriteByte(506, 0) // terminator

	obj, _ := zobject.Get(img, zstring.LoadAlphabets(img), 1)

	first, err := obj.GetNextProperty(0)
	if err != nil || first != 6 {
		t.Errorf("first property = %d, err=%v; want 6", first, err)
	}
	second, err := obj.GetNextProperty(6)
	if err != nil || second != 2 {
		t.Errorf("property after 6 = %d, err=%v; want 2", second, err)
	}
	third, err := obj.GetNextProperty(2)
	if err != nil || third != 0 {
		t.Errorf("property after 2 = %d, err=%v; want 0 (end of list)", third, err)
	}
}
