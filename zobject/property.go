package zobject

import (
	"fmt"

	"github.com/kestrelvm/zmachine/zmem"
)

// Property describes one decoded property-list entry: its number, the
// address of its data (not its size header), and the data length in
// bytes (1 or 2 in V3).
type Property struct {
	Number      uint8
	DataAddr    uint32
	Length      uint8
	headerBytes uint32
}

// sizeByteAt decodes the V3 property size byte at addr: top 3 bits are
// (length-1), bottom 5 bits are the property number.
func (o Object) sizeByteAt(addr uint32) Property {
	b := o.core.ReadByte(addr)
	return Property{
		Number:      b & o.core.PropertyNumberMask(),
		Length:      (b >> 5) + 1,
		DataAddr:    addr + 1,
		headerBytes: 1,
	}
}

// PropFind walks the property list in descending-number order looking for
// propNum, returning ok=false if absent.
func (o Object) PropFind(propNum uint8) (Property, bool) {
	addr := o.firstPropertyAddr()
	for {
		if o.core.ReadByte(addr) == 0 {
			return Property{}, false
		}
		p := o.sizeByteAt(addr)
		if p.Number == propNum {
			return p, true
		}
		if p.Number < propNum {
			// Descending order: once we pass below propNum it cannot appear later.
			return Property{}, false
		}
		addr = o.PropNext(p)
	}
}

// PropNext returns the address of the property entry following p.
func (o Object) PropNext(p Property) uint32 {
	return p.DataAddr + uint32(p.Length)
}

// FirstProperty returns the first (highest-numbered) property on the
// object, or ok=false if it has none.
func (o Object) FirstProperty() (Property, bool) {
	addr := o.firstPropertyAddr()
	if o.core.ReadByte(addr) == 0 {
		return Property{}, false
	}
	return o.sizeByteAt(addr), true
}

// NextPropertyNumber implements `get_next_prop`: given the current
// property number (0 meaning "first"), returns the number of the property
// that follows it in the list, or 0 if there is none.
func (o Object) NextPropertyNumber(propNum uint8) (uint8, error) {
	if propNum == 0 {
		p, ok := o.FirstProperty()
		if !ok {
			return 0, nil
		}
		return p.Number, nil
	}

	p, ok := o.PropFind(propNum)
	if !ok {
		return 0, fmt.Errorf("zobject: get_next_prop on object %d for absent property %d", o.id, propNum)
	}
	nextAddr := o.PropNext(p)
	if o.core.ReadByte(nextAddr) == 0 {
		return 0, nil
	}
	return o.sizeByteAt(nextAddr).Number, nil
}

// PropGet returns the value of propNum, or the value from the defaults
// table if the object doesn't have it. get_prop only supports byte- or
// word-length properties; a longer property is a story bug.
func (o Object) PropGet(propNum uint8) (uint16, error) {
	if p, ok := o.PropFind(propNum); ok {
		switch p.Length {
		case 1:
			return uint16(o.core.ReadByte(p.DataAddr)), nil
		case 2:
			return o.core.ReadWord(p.DataAddr), nil
		default:
			return 0, fmt.Errorf("zobject: get_prop on object %d property %d has length %d, must be 1 or 2", o.id, propNum, p.Length)
		}
	}

	defaultAddr := uint32(o.core.ObjectTableBase) + 2*uint32(propNum-1)
	return o.core.ReadWord(defaultAddr), nil
}

// PropPut writes value into an existing property, choosing byte or word
// width by its size tag. Writing an absent property is a fatal story bug.
func (o Object) PropPut(propNum uint8, value uint16) error {
	p, ok := o.PropFind(propNum)
	if !ok {
		return fmt.Errorf("zobject: put_prop on object %d for absent property %d", o.id, propNum)
	}
	switch p.Length {
	case 1:
		return o.core.WriteByte(p.DataAddr, uint8(value))
	case 2:
		return o.core.WriteWord(p.DataAddr, value)
	default:
		return fmt.Errorf("zobject: put_prop on object %d property %d has length %d, must be 1 or 2", o.id, propNum, p.Length)
	}
}

// PropAddr returns the byte address of propNum's data, or 0 if absent.
func (o Object) PropAddr(propNum uint8) uint32 {
	if p, ok := o.PropFind(propNum); ok {
		return p.DataAddr
	}
	return 0
}

// PropLenAt decodes the length of the property whose data starts at addr,
// by reading the size byte immediately before it. addr==0 is a
// special-cased no-op returning 0, used when a story calls get_prop_len
// on a null address.
func PropLenAt(core *zmem.Core, addr uint32) uint8 {
	if addr == 0 {
		return 0
	}
	b := core.ReadByte(addr - 1)
	return (b >> 5) + 1
}
