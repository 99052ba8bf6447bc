// Package ztable implements the V5+ table opcodes: scan_table,
// copy_table and print_table. A V3 story never reaches this package; the
// VAR opcode handlers that call it are expected to guard on version first.
package ztable

import (
	"strings"

	"github.com/kestrelvm/zmachine/zmem"
)

// PrintTable renders a rectangular block of text held in memory at baddr:
// width characters per row, height rows (0 prints a single row), with
// skip extra bytes of stride between rows beyond the first.
func PrintTable(core *zmem.Core, baddr uint32, width uint16, height uint16, skip uint16) string {
	var s strings.Builder
	total := uint16(width) * height
	if height == 0 {
		total = width // single row
	}

	for i := uint16(0); i < total; i++ {
		row := i / width
		col := i % width

		if col == 0 && row != 0 {
			s.WriteByte('\n')
			if height != 0 && row == height {
				break
			}
		}

		s.WriteByte(core.ReadByte(baddr + uint32(i) + uint32(skip)*uint32(row)))
	}

	return s.String()
}

// ScanTable searches a table of length entries, each fieldSize bytes wide
// (low 7 bits of form) compared either as a byte or, if form's top bit is
// set, as a big-endian word, returning the matching entry's address or 0.
func ScanTable(core *zmem.Core, test uint16, baddr uint32, length uint16, form uint16) uint32 {
	fieldSize := form & 0b0111_1111
	checkWord := form&0b1000_0000 != 0
	if fieldSize == 0 {
		return 0
	}

	ptr := baddr
	for i := uint16(0); i < length; i++ {
		if checkWord {
			if core.ReadWord(ptr) == test {
				return ptr
			}
		} else {
			if uint16(core.ReadByte(ptr)) == test {
				return ptr
			}
		}
		ptr += uint32(fieldSize)
	}

	return 0
}

// CopyTable copies size bytes from first to second. A positive size takes
// a snapshot of the source before writing, so overlapping ranges never see
// mid-copy corruption; a negative size copies byte by byte in increasing
// address order, allowing that corruption deliberately, per the documented
// opcode semantics. second == 0 zero-fills the first table instead of
// copying anywhere.
func CopyTable(core *zmem.Core, first uint32, second uint32, size int16) error {
	sizeAbs := uint32(size)
	if size < 0 {
		sizeAbs = uint32(-int32(size))
	}

	if second == 0 {
		for i := uint32(0); i < sizeAbs; i++ {
			if err := core.WriteByte(first+i, 0); err != nil {
				return err
			}
		}
		return nil
	}

	if size >= 0 {
		tmp := make([]byte, sizeAbs)
		copy(tmp, core.Slice(first, first+sizeAbs))
		for i, b := range tmp {
			if err := core.WriteByte(second+uint32(i), b); err != nil {
				return err
			}
		}
		return nil
	}

	for i := uint32(0); i < sizeAbs; i++ {
		if err := core.WriteByte(second+i, core.ReadByte(first+i)); err != nil {
			return err
		}
	}
	return nil
}
