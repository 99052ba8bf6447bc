// Package zmem implements the Z-machine's byte-addressable memory: a flat
// buffer, bounds-checked big-endian word access, and a parsed view of the
// header fields that the rest of the interpreter reads constantly.
package zmem

import "fmt"

// Version constants the core currently understands. V5 and V8 are parsed
// but the executor only implements V3 semantics.
const (
	V3 = 3
	V5 = 5
	V8 = 8
)

// Header byte offsets.
const (
	offVersion         = 0x00
	offFlags1          = 0x01
	offHighMemBase     = 0x04
	offInitialPC       = 0x06
	offDictionary      = 0x08
	offObjectTable     = 0x0a
	offGlobals         = 0x0c
	offStaticMemBase   = 0x0e
	offFileLength      = 0x1a
	offChecksum        = 0x1c
	offAbbreviations   = 0x18
	offRoutinesOffset  = 0x28
	offStringOffset    = 0x2a
	offTerminatingChar = 0x2e
)

// Core owns the interpreter's entire address space and the header fields
// derived from it at load time.
type Core struct {
	bytes []byte

	Version          uint8
	Flags1           uint8
	InitialPC        uint16
	DictionaryBase   uint16
	ObjectTableBase  uint16
	GlobalsBase      uint16
	StaticMemoryBase uint16
	AbbreviationBase uint16
	Checksum         uint16
	RoutinesOffset   uint16 // V5+ only
	StringOffset     uint16 // V5+ only
	TerminatingChars uint16 // V5+ only
}

// Load wraps a raw story-file byte slice, padding it to at least 64KiB so
// every header/global/object address is always addressable, and parses the
// header fields used throughout the interpreter.
func Load(storyFile []byte) (*Core, error) {
	if len(storyFile) < 64 {
		return nil, fmt.Errorf("zmem: story file too short to contain a header (%d bytes)", len(storyFile))
	}

	bytes := storyFile
	if len(bytes) < 1<<16 {
		padded := make([]byte, 1<<16)
		copy(padded, bytes)
		bytes = padded
	}

	version := bytes[offVersion]
	switch version {
	case V3, V5, V8:
	default:
		return nil, fmt.Errorf("zmem: unsupported story file version %d", version)
	}

	c := &Core{
		bytes:            bytes,
		Version:          version,
		Flags1:           bytes[offFlags1],
		InitialPC:        be16(bytes, offInitialPC),
		DictionaryBase:   be16(bytes, offDictionary),
		ObjectTableBase:  be16(bytes, offObjectTable),
		GlobalsBase:      be16(bytes, offGlobals),
		StaticMemoryBase: be16(bytes, offStaticMemBase),
		AbbreviationBase: be16(bytes, offAbbreviations),
		Checksum:         be16(bytes, offChecksum),
	}

	if version >= V5 {
		c.RoutinesOffset = be16(bytes, offRoutinesOffset)
		c.StringOffset = be16(bytes, offStringOffset)
		c.TerminatingChars = be16(bytes, offTerminatingChar)
	}

	return c, nil
}

func be16(b []byte, addr uint16) uint16 {
	return uint16(b[addr])<<8 | uint16(b[addr+1])
}

// Size returns the total addressable memory length.
func (c *Core) Size() uint32 { return uint32(len(c.bytes)) }

// ReadByte returns 0 for an out-of-range address rather than faulting.
func (c *Core) ReadByte(addr uint32) uint8 {
	if addr >= uint32(len(c.bytes)) {
		return 0
	}
	return c.bytes[addr]
}

// ReadWord reads a big-endian word; a word that would span the end of
// memory reads its in-range byte and treats the missing byte as 0.
func (c *Core) ReadWord(addr uint32) uint16 {
	return uint16(c.ReadByte(addr))<<8 | uint16(c.ReadByte(addr+1))
}

// WriteByte returns an error for any write at or past the static memory
// base, or past the end of memory.
func (c *Core) WriteByte(addr uint32, v uint8) error {
	if addr >= uint32(len(c.bytes)) {
		return fmt.Errorf("zmem: write address 0x%x out of range", addr)
	}
	if addr >= uint32(c.StaticMemoryBase) {
		return fmt.Errorf("zmem: write address 0x%x is at or past static memory base 0x%x", addr, c.StaticMemoryBase)
	}
	c.bytes[addr] = v
	return nil
}

// WriteWord writes a big-endian word, subject to the same bounds as
// WriteByte.
func (c *Core) WriteWord(addr uint32, v uint16) error {
	if err := c.WriteByte(addr, uint8(v>>8)); err != nil {
		return err
	}
	return c.WriteByte(addr+1, uint8(v))
}

// Slice returns a read-only view of memory between two addresses, used by
// the object/dictionary/string decoders that need to scan runs of bytes.
func (c *Core) Slice(start, end uint32) []byte {
	if end > uint32(len(c.bytes)) {
		end = uint32(len(c.bytes))
	}
	if start >= end {
		return nil
	}
	return c.bytes[start:end]
}

// Unpack converts a packed routine or string address into a byte address.
// isString selects the V5+ string offset over the routine offset; V3/V8
// scalers ignore it.
func (c *Core) Unpack(packed uint16, isString bool) uint32 {
	switch {
	case c.Version < V5:
		return 2 * uint32(packed)
	case c.Version < V8:
		offset := c.RoutinesOffset
		if isString {
			offset = c.StringOffset
		}
		return 4*uint32(packed) + 8*uint32(offset)
	default: // V8
		return 8 * uint32(packed)
	}
}

// ObjectRecordSize returns the per-object byte size for this version:
// 9 bytes in V3, 14 in V5+.
func (c *Core) ObjectRecordSize() uint32 {
	if c.Version < V5 {
		return 9
	}
	return 14
}

// PropertyDefaultsWords returns the size, in words, of the property
// defaults table that precedes object 1 (31 in V3, 63 in V5+).
func (c *Core) PropertyDefaultsWords() uint32 {
	if c.Version < V5 {
		return 31
	}
	return 63
}

// PropertyNumberMask returns the bits of a V3-style size byte that encode
// the property number (0x1F in V3, 0x3F in V5+).
func (c *Core) PropertyNumberMask() uint8 {
	if c.Version < V5 {
		return 0x1F
	}
	return 0x3F
}

// AttributeCount returns the number of attribute bits per object (32 in
// V3, 48 in V5+).
func (c *Core) AttributeCount() uint16 {
	if c.Version < V5 {
		return 32
	}
	return 48
}

// FileLength returns the story file's declared length in bytes, used by
// the `verify` opcode's checksum walk.
func (c *Core) FileLength() uint32 {
	var scale uint32
	switch {
	case c.Version <= 3:
		scale = 2
	case c.Version <= 5:
		scale = 4
	default:
		scale = 8
	}
	return uint32(be16(c.bytes, offFileLength)) * scale
}
