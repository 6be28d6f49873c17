package zobject

import (
	"fmt"

	"zmcore/internal/zcore"
)

// Property is a live view onto one entry of an object's property table.
type Property struct {
	img         *zcore.Image
	ID          uint8
	Length      uint8
	DataAddress uint32
	headerLen   uint8
}

// propertyHeader decodes the size byte(s) at addr, returning the
// property's id, data length, and data start address, following the
// v1-3 / v4+ encoding split of spec.md §4.3.
func propertyHeader(img *zcore.Image, addr uint32) (Property, error) {
	sizeByte, err := img.ReadByte(addr)
	if err != nil {
		return Property{}, &Fault{Reason: err.Error()}
	}

	if img.Version <= 3 {
		return Property{
			img:         img,
			ID:          sizeByte & 0b1_1111,
			Length:      (sizeByte >> 5) + 1,
			DataAddress: addr + 1,
			headerLen:   1,
		}, nil
	}

	if sizeByte&0b1000_0000 != 0 {
		lengthByte, err := img.ReadByte(addr + 1)
		if err != nil {
			return Property{}, &Fault{Reason: err.Error()}
		}
		length := lengthByte & 0b11_1111
		if length == 0 {
			length = 64
		}
		return Property{
			img:         img,
			ID:          sizeByte & 0b11_1111,
			Length:      length,
			DataAddress: addr + 2,
			headerLen:   2,
		}, nil
	}

	length := uint8(1)
	if sizeByte&0b0100_0000 != 0 {
		length = 2
	}
	return Property{
		img:         img,
		ID:          sizeByte & 0b11_1111,
		Length:      length,
		DataAddress: addr + 1,
		headerLen:   1,
	}, nil
}

func (o *Object) propertyListStart() (uint32, error) {
	ptr, err := o.propertyTablePointer()
	if err != nil {
		return 0, err
	}
	nameLength, err := o.img.ReadByte(ptr)
	if err != nil {
		return 0, &Fault{Reason: err.Error()}
	}
	return ptr + 1 + uint32(nameLength)*2, nil
}

// GetProperty finds propertyId on o, falling back to the object table's
// default value if the object doesn't carry that property.
func (o *Object) GetProperty(propertyId uint8) (Property, error) {
	addr, err := o.propertyListStart()
	if err != nil {
		return Property{}, err
	}

	for {
		b, err := o.img.ReadByte(addr)
		if err != nil {
			return Property{}, &Fault{Reason: err.Error()}
		}
		if b == 0 {
			break
		}

		p, err := propertyHeader(o.img, addr)
		if err != nil {
			return Property{}, err
		}
		if p.ID == propertyId {
			return p, nil
		}
		addr = p.DataAddress + uint32(p.Length)
	}

	defaultAddr := o.img.ObjectTableStart + 2*uint32(propertyId-1)
	return Property{img: o.img, ID: propertyId, Length: 2, DataAddress: defaultAddr}, nil
}

// GetPropertyAddress returns the byte address of propertyId's data on o,
// or 0 if the object doesn't carry that property (the get_prop_addr
// contract of spec.md §4.3).
func (o *Object) GetPropertyAddress(propertyId uint8) (uint32, error) {
	addr, err := o.propertyListStart()
	if err != nil {
		return 0, err
	}

	for {
		b, err := o.img.ReadByte(addr)
		if err != nil {
			return 0, &Fault{Reason: err.Error()}
		}
		if b == 0 {
			return 0, nil
		}

		p, err := propertyHeader(o.img, addr)
		if err != nil {
			return 0, err
		}
		if p.ID == propertyId {
			return p.DataAddress, nil
		}
		addr = p.DataAddress + uint32(p.Length)
	}
}

// GetNextProperty implements get_next_prop: propertyId 0 asks for the
// first property on the object, any other id asks for the one after it.
func (o *Object) GetNextProperty(propertyId uint8) (uint8, error) {
	addr, err := o.propertyListStart()
	if err != nil {
		return 0, err
	}

	if propertyId == 0 {
		b, err := o.img.ReadByte(addr)
		if err != nil {
			return 0, &Fault{Reason: err.Error()}
		}
		if b == 0 {
			return 0, nil
		}
		p, err := propertyHeader(o.img, addr)
		if err != nil {
			return 0, err
		}
		return p.ID, nil
	}

	for {
		b, err := o.img.ReadByte(addr)
		if err != nil {
			return 0, &Fault{Reason: err.Error()}
		}
		if b == 0 {
			return 0, &Fault{Reason: fmt.Sprintf("object %d has no property %d", o.id, propertyId)}
		}
		p, err := propertyHeader(o.img, addr)
		if err != nil {
			return 0, err
		}
		next := p.DataAddress + uint32(p.Length)
		if p.ID == propertyId {
			nb, err := o.img.ReadByte(next)
			if err != nil {
				return 0, &Fault{Reason: err.Error()}
			}
			if nb == 0 {
				return 0, nil
			}
			np, err := propertyHeader(o.img, next)
			if err != nil {
				return 0, err
			}
			return np.ID, nil
		}
		addr = next
	}
}

// PutProperty overwrites propertyId's data on o. Only 1- and 2-byte
// properties may be set this way; anything else is a fatal fault, per
// the put_prop contract of spec.md §4.3.
func (o *Object) PutProperty(propertyId uint8, value uint16) error {
	addr, err := o.propertyListStart()
	if err != nil {
		return err
	}

	for {
		b, err := o.img.ReadByte(addr)
		if err != nil {
			return &Fault{Reason: err.Error()}
		}
		if b == 0 {
			return &Fault{Reason: fmt.Sprintf("object %d has no property %d to set", o.id, propertyId)}
		}

		p, err := propertyHeader(o.img, addr)
		if err != nil {
			return err
		}
		if p.ID == propertyId {
			switch p.Length {
			case 1:
				return o.img.WriteByte(p.DataAddress, uint8(value))
			case 2:
				return o.img.WriteWord(p.DataAddress, value)
			default:
				return &Fault{Reason: fmt.Sprintf("property %d on object %d is %d bytes, put_prop only supports 1 or 2", propertyId, o.id, p.Length)}
			}
		}
		addr = p.DataAddress + uint32(p.Length)
	}
}

// PropertyLengthAt implements get_prop_len: given the byte address of a
// property's data (not its header), it works backwards over the size
// byte(s) to recover the property's length. Address 0 is the special
// case some story files rely on and always answers 0.
func PropertyLengthAt(img *zcore.Image, dataAddr uint32) (uint8, error) {
	if dataAddr == 0 {
		return 0, nil
	}

	prevByte, err := img.ReadByte(dataAddr - 1)
	if err != nil {
		return 0, &Fault{Reason: err.Error()}
	}

	if img.Version <= 3 {
		return (prevByte >> 5) + 1, nil
	}

	if prevByte&0b1000_0000 != 0 {
		length := prevByte & 0b11_1111
		if length == 0 {
			length = 64
		}
		return length, nil
	}
	return ((prevByte >> 6) & 1) + 1, nil
}

// Data reads the raw bytes of a property.
func (p Property) Data() ([]uint8, error) {
	data := make([]uint8, p.Length)
	for i := range data {
		b, err := p.img.ReadByte(p.DataAddress + uint32(i))
		if err != nil {
			return nil, &Fault{Reason: err.Error()}
		}
		data[i] = b
	}
	return data, nil
}
