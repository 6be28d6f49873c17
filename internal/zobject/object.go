// Package zobject is the object tree and property table component of
// spec.md §4.3: object attribute testing and mutation, parent/sibling/
// child tree edits, and the property read/write subset needed by
// put_prop, get_prop, and test_attr.
package zobject

import (
	"fmt"

	"zmcore/internal/zcore"
	"zmcore/internal/zstring"
)

// Fault reports an illegal object-tree operation: object 0, an object
// number past the table, or a missing property on set.
type Fault struct {
	Reason string
}

func (f *Fault) Error() string { return "zobject: " + f.Reason }

// Object is a live view onto one entry of the object table: reading its
// fields re-reads the Memory Image, and the mutators below write
// straight back through to it. There is no cached, stale copy.
type Object struct {
	img         *zcore.Image
	alphabets   *zstring.Alphabets
	baseAddress uint32
	id          uint16
}

const objectEntrySizeV3 = 9
const objectEntrySizeV4 = 14

func objectTableEntriesBase(objectTableBase uint32, version uint8) uint32 {
	if version >= 4 {
		return objectTableBase + 63*2
	}
	return objectTableBase + 31*2
}

// Get returns a live handle on object id. Object 0 is reserved by the
// format to mean "no object" and is never a valid argument.
func Get(img *zcore.Image, alphabets *zstring.Alphabets, id uint16) (*Object, error) {
	if id == 0 {
		return nil, &Fault{Reason: "object 0 has no entry"}
	}

	entrySize := uint32(objectEntrySizeV3)
	if img.Version >= 4 {
		entrySize = objectEntrySizeV4
	}

	base := objectTableEntriesBase(img.ObjectTableStart, img.Version) + uint32(id-1)*entrySize
	return &Object{img: img, alphabets: alphabets, baseAddress: base, id: id}, nil
}

// ID is the object number this handle refers to.
func (o *Object) ID() uint16 { return o.id }

// Name decodes the short name in the object's property header.
func (o *Object) Name() (string, error) {
	ptr, err := o.propertyTablePointer()
	if err != nil {
		return "", err
	}
	nameLength, err := o.img.ReadByte(ptr)
	if err != nil {
		return "", &Fault{Reason: err.Error()}
	}
	if nameLength == 0 {
		return "", nil
	}
	name, _, err := zstring.Decode(o.img, ptr+1, o.alphabets)
	if err != nil {
		return "", err
	}
	return name, nil
}

func (o *Object) propertyTablePointer() (uint32, error) {
	offset := uint32(7)
	if o.img.Version >= 4 {
		offset = 12
	}
	w, err := o.img.ReadWord(o.baseAddress + offset)
	if err != nil {
		return 0, &Fault{Reason: err.Error()}
	}
	return uint32(w), nil
}

// TestAttribute reports whether the given attribute number (0-31 on v1-3,
// 0-47 on v4+) is set.
func (o *Object) TestAttribute(attribute uint16) (bool, error) {
	bytePos, bit, err := o.attributeLocation(attribute)
	if err != nil {
		return false, err
	}
	b, err := o.img.ReadByte(bytePos)
	if err != nil {
		return false, &Fault{Reason: err.Error()}
	}
	return b&(1<<(7-bit)) != 0, nil
}

// SetAttribute sets the given attribute to true.
func (o *Object) SetAttribute(attribute uint16) error {
	return o.writeAttribute(attribute, true)
}

// ClearAttribute sets the given attribute to false.
func (o *Object) ClearAttribute(attribute uint16) error {
	return o.writeAttribute(attribute, false)
}

func (o *Object) writeAttribute(attribute uint16, value bool) error {
	bytePos, bit, err := o.attributeLocation(attribute)
	if err != nil {
		return err
	}
	b, err := o.img.ReadByte(bytePos)
	if err != nil {
		return &Fault{Reason: err.Error()}
	}
	mask := uint8(1 << (7 - bit))
	if value {
		b |= mask
	} else {
		b &^= mask
	}
	if err := o.img.WriteByte(bytePos, b); err != nil {
		return &Fault{Reason: err.Error()}
	}
	return nil
}

func (o *Object) attributeLocation(attribute uint16) (uint32, uint16, error) {
	maxAttr := uint16(31)
	if o.img.Version >= 4 {
		maxAttr = 47
	}
	if attribute > maxAttr {
		return 0, 0, &Fault{Reason: fmt.Sprintf("attribute %d out of range for version %d", attribute, o.img.Version)}
	}
	return o.baseAddress + uint32(attribute/8), attribute % 8, nil
}

// Parent, Sibling and Child read the tree-relationship fields, widening
// the 1-byte v1-3 encoding to uint16 transparently.
func (o *Object) Parent() (uint16, error)  { return o.relative(4, 6) }
func (o *Object) Sibling() (uint16, error) { return o.relative(5, 8) }
func (o *Object) Child() (uint16, error)   { return o.relative(6, 10) }

func (o *Object) relative(offsetV3, offsetV4 uint32) (uint16, error) {
	if o.img.Version >= 4 {
		w, err := o.img.ReadWord(o.baseAddress + offsetV4)
		if err != nil {
			return 0, &Fault{Reason: err.Error()}
		}
		return w, nil
	}
	b, err := o.img.ReadByte(o.baseAddress + offsetV3)
	if err != nil {
		return 0, &Fault{Reason: err.Error()}
	}
	return uint16(b), nil
}

// SetParent, SetSibling and SetChild write the tree-relationship fields.
func (o *Object) SetParent(id uint16) error  { return o.setRelative(4, 6, id) }
func (o *Object) SetSibling(id uint16) error { return o.setRelative(5, 8, id) }
func (o *Object) SetChild(id uint16) error   { return o.setRelative(6, 10, id) }

func (o *Object) setRelative(offsetV3, offsetV4 uint32, id uint16) error {
	if o.img.Version >= 4 {
		if err := o.img.WriteWord(o.baseAddress+offsetV4, id); err != nil {
			return &Fault{Reason: err.Error()}
		}
		return nil
	}
	if err := o.img.WriteByte(o.baseAddress+offsetV3, uint8(id)); err != nil {
		return &Fault{Reason: err.Error()}
	}
	return nil
}

// InsertObject moves o to become the first child of dest, detaching it
// from its current parent and splicing its old siblings together, per
// the single-linked-list tree maintenance of spec.md §4.3.
func InsertObject(o, dest *Object) error {
	if err := RemoveObject(o); err != nil {
		return err
	}

	oldFirstChild, err := dest.Child()
	if err != nil {
		return err
	}
	if err := o.SetSibling(oldFirstChild); err != nil {
		return err
	}
	if err := dest.SetChild(o.id); err != nil {
		return err
	}
	return o.SetParent(dest.id)
}

// RemoveObject detaches o from its parent's child list, leaving it
// parentless and siblingless. It is a no-op if o already has no parent.
func RemoveObject(o *Object) error {
	parentID, err := o.Parent()
	if err != nil {
		return err
	}
	if parentID == 0 {
		return nil
	}

	sibling, err := o.Sibling()
	if err != nil {
		return err
	}

	parent, err := Get(o.img, o.alphabets, parentID)
	if err != nil {
		return err
	}

	firstChild, err := parent.Child()
	if err != nil {
		return err
	}

	if firstChild == o.id {
		if err := parent.SetChild(sibling); err != nil {
			return err
		}
	} else {
		cursor, err := Get(o.img, o.alphabets, firstChild)
		if err != nil {
			return err
		}
		for {
			next, err := cursor.Sibling()
			if err != nil {
				return err
			}
			if next == o.id {
				if err := cursor.SetSibling(sibling); err != nil {
					return err
				}
				break
			}
			if next == 0 {
				return &Fault{Reason: fmt.Sprintf("object %d not found in parent %d's child list", o.id, parentID)}
			}
			cursor, err = Get(o.img, o.alphabets, next)
			if err != nil {
				return err
			}
		}
	}

	if err := o.SetParent(0); err != nil {
		return err
	}
	return o.SetSibling(0)
}
