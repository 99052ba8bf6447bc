// Package zobject implements the Z-machine's object tree: fixed-size
// object records, attribute bits, and the variable-length property lists
// threaded off each object.
package zobject

import (
	"fmt"

	"github.com/kestrelvm/zmachine/zmem"
	"github.com/kestrelvm/zmachine/zstring"
)

// None is the object id meaning "no parent/sibling/child".
const None = 0

// Object is a read-through view over one object record; it caches nothing
// but its address and id, so callers always see live memory.
type Object struct {
	core *zmem.Core
	id   uint16
	base uint32
}

// Get returns a view over object id. Object 0 does not exist.
func Get(core *zmem.Core, id uint16) (Object, error) {
	if id == 0 {
		return Object{}, fmt.Errorf("zobject: object 0 is the null object and has no record")
	}
	base := uint32(core.ObjectTableBase) + 2*core.PropertyDefaultsWords() + uint32(id-1)*core.ObjectRecordSize()
	return Object{core: core, id: id, base: base}, nil
}

func (o Object) ID() uint16 { return o.id }

// AttrTest reports whether attribute bit b is set. Bit 0 is the
// most-significant bit of the attribute field.
func (o Object) AttrTest(b uint16) bool {
	byteAddr, mask := o.attrByteAndMask(b)
	return o.core.ReadByte(byteAddr)&mask != 0
}

// AttrSet sets attribute bit b.
func (o Object) AttrSet(b uint16) error {
	byteAddr, mask := o.attrByteAndMask(b)
	return o.core.WriteByte(byteAddr, o.core.ReadByte(byteAddr)|mask)
}

// AttrClear clears attribute bit b.
func (o Object) AttrClear(b uint16) error {
	byteAddr, mask := o.attrByteAndMask(b)
	return o.core.WriteByte(byteAddr, o.core.ReadByte(byteAddr)&^mask)
}

func (o Object) attrByteAndMask(b uint16) (uint32, uint8) {
	return o.base + uint32(b/8), 1 << (7 - (b % 8))
}

func (o Object) isV4Plus() bool { return o.core.Version >= zmem.V5 }

// fieldWidth returns the byte width of the parent/sibling/child fields
// (1 byte in V3, 2 bytes in V5+); attrFieldBytes gives the offset where
// parent begins.
func (o Object) fieldWidth() uint32 {
	if o.isV4Plus() {
		return 2
	}
	return 1
}

func (o Object) attrFieldBytes() uint32 {
	if o.isV4Plus() {
		return 6
	}
	return 4
}

func (o Object) Parent() uint16   { return o.readLink(0) }
func (o Object) Sibling() uint16  { return o.readLink(1) }
func (o Object) Child() uint16    { return o.readLink(2) }

func (o Object) SetParent(v uint16) error  { return o.writeLink(0, v) }
func (o Object) SetSibling(v uint16) error { return o.writeLink(1, v) }
func (o Object) SetChild(v uint16) error   { return o.writeLink(2, v) }

func (o Object) readLink(slot int) uint16 {
	addr := o.base + o.attrFieldBytes() + uint32(slot)*o.fieldWidth()
	if o.fieldWidth() == 1 {
		return uint16(o.core.ReadByte(addr))
	}
	return o.core.ReadWord(addr)
}

func (o Object) writeLink(slot int, v uint16) error {
	addr := o.base + o.attrFieldBytes() + uint32(slot)*o.fieldWidth()
	if o.fieldWidth() == 1 {
		return o.core.WriteByte(addr, uint8(v))
	}
	return o.core.WriteWord(addr, v)
}

// propertyTableAddr returns the address of the object's property table
// header (the short-name length byte).
func (o Object) propertyTableAddr() uint32 {
	addr := o.base + o.attrFieldBytes() + 3*o.fieldWidth()
	return uint32(o.core.ReadWord(addr))
}

// ShortName decodes the object's short name, stored at the head of its
// property table.
func (o Object) ShortName(alphabets *zstring.Alphabets) string {
	tableAddr := o.propertyTableAddr()
	nameWords := o.core.ReadByte(tableAddr)
	if nameWords == 0 {
		return ""
	}
	text, _ := zstring.Decode(o.core, tableAddr+1, alphabets)
	return text
}

// firstPropertyAddr returns the address of the first property entry,
// skipping the short-name header.
func (o Object) firstPropertyAddr() uint32 {
	tableAddr := o.propertyTableAddr()
	nameWords := uint32(o.core.ReadByte(tableAddr))
	return tableAddr + 1 + nameWords*2
}

// Insert relinks o to become the first child of parent, unlinking it from
// wherever it currently sits.
func Insert(o, parent Object) error {
	if err := Remove(o); err != nil {
		return err
	}
	if err := o.SetSibling(parent.Child()); err != nil {
		return err
	}
	if err := o.SetParent(parent.id); err != nil {
		return err
	}
	return parent.SetChild(o.id)
}

// Remove unlinks o from its current parent's child chain, relinking
// siblings around it, and clears its own parent/sibling. The walk is
// bounded by the object count implied by the story's object table so a
// cyclic tree (a story bug) cannot loop forever.
func Remove(o Object) error {
	parentID := o.Parent()
	if parentID == None {
		return nil
	}

	parent, err := Get(o.core, parentID)
	if err != nil {
		return err
	}

	if parent.Child() == o.id {
		if err := parent.SetChild(o.Sibling()); err != nil {
			return err
		}
	} else {
		curID := parent.Child()
		maxSteps := maxObjectCount(o.core)
		for steps := 0; curID != None; steps++ {
			if steps > maxSteps {
				return fmt.Errorf("zobject: sibling chain of object %d did not terminate, tree is cyclic", parent.id)
			}
			cur, err := Get(o.core, curID)
			if err != nil {
				return err
			}
			if cur.Sibling() == o.id {
				if err := cur.SetSibling(o.Sibling()); err != nil {
					return err
				}
				break
			}
			curID = cur.Sibling()
		}
	}

	if err := o.SetParent(None); err != nil {
		return err
	}
	return o.SetSibling(None)
}

// maxObjectCount estimates the number of objects between the end of the
// property-defaults table and the static memory base, as a loop bound for
// tree walks. It is intentionally generous: it only needs to be larger
// than any legitimate object count.
func maxObjectCount(core *zmem.Core) int {
	limit := core.StaticMemoryBase
	base := core.ObjectTableBase + uint16(2*core.PropertyDefaultsWords())
	if limit <= base {
		return 1 << 16
	}
	return int(uint32(limit-base) / core.ObjectRecordSize())
}
