// Package zdict implements the Z-machine dictionary: header parsing,
// encoded-word lookup, and the `sread` line tokenizer.
package zdict

import (
	"bytes"

	"github.com/kestrelvm/zmachine/zmem"
	"github.com/kestrelvm/zmachine/zstring"
)

// Header is the parsed dictionary preamble.
type Header struct {
	Separators  []byte
	EntryLength uint8
	EntryCount  int16 // negative means "unsorted, use linear search"
}

// Dictionary is a parsed view over one in-memory dictionary table. Several
// can coexist (the `tokenise` opcode may name an alternate table).
type Dictionary struct {
	core       *zmem.Core
	base       uint32
	Header     Header
	entriesPtr uint32
	keyWidth   uint32
}

// Parse reads the dictionary header and indexes its entries at base.
func Parse(core *zmem.Core, base uint32) *Dictionary {
	ptr := base
	n := core.ReadByte(ptr)
	ptr++

	seps := make([]byte, n)
	for i := uint8(0); i < n; i++ {
		seps[i] = core.ReadByte(ptr)
		ptr++
	}

	entryLength := core.ReadByte(ptr)
	ptr++
	count := int16(core.ReadWord(uint32(ptr)))
	ptr += 2

	keyWidth := uint32(4)
	if core.Version >= zmem.V5 {
		keyWidth = 6
	}

	return &Dictionary{
		core: core,
		base: base,
		Header: Header{
			Separators:  seps,
			EntryLength: entryLength,
			EntryCount:  count,
		},
		entriesPtr: ptr,
		keyWidth:   keyWidth,
	}
}

func (d *Dictionary) entryAddr(ix int) uint32 {
	return d.entriesPtr + uint32(ix)*uint32(d.Header.EntryLength)
}

func (d *Dictionary) keyAt(ix int) []byte {
	return d.core.Slice(d.entryAddr(ix), d.entryAddr(ix)+d.keyWidth)
}

// Find looks up an already-encoded key, returning its entry's byte
// address or 0 if not present. Positive entry counts use a power-of-two
// binary chop; a negative count (unsorted dictionary) falls back to a
// linear scan.
func (d *Dictionary) Find(key []byte) uint16 {
	count := int(d.Header.EntryCount)
	if count < 0 {
		count = -count
		for i := 0; i < count; i++ {
			if bytes.Equal(d.keyAt(i), key) {
				return uint16(d.entryAddr(i))
			}
		}
		return 0
	}

	if count == 0 {
		return 0
	}

	chop := 1
	for chop*2 <= count {
		chop *= 2
	}

	ix := chop - 1
	for {
		// A probe past the last entry counts as "too high" so the chop
		// still steps back down into the table.
		cmp := 1
		if ix >= 0 && ix < count {
			cmp = bytes.Compare(d.keyAt(ix), key)
			if cmp == 0 {
				return uint16(d.entryAddr(ix))
			}
		}
		chop /= 2
		if chop == 0 {
			return 0
		}
		if cmp < 0 {
			ix += chop
		} else {
			ix -= chop
		}
	}
}

// isSeparator reports whether b is one of the dictionary's own separator
// bytes or plain whitespace; both always split tokens.
func (d *Dictionary) isSeparator(b byte) bool {
	if b == ' ' {
		return true
	}
	for _, s := range d.Header.Separators {
		if s == b {
			return true
		}
	}
	return false
}

// token is one tokenizer output: the raw text, its 0-based offset within
// the input line, and the dictionary address it resolved to (0 if
// unmatched).
type token struct {
	text   string
	offset uint8
	addr   uint16
}

// Tokenize splits line (already lowercased by the caller) into words and
// single-character separator tokens, encodes each, and looks each up in
// d. maxTokens truncates the result.
func (d *Dictionary) Tokenize(line string, alphabets *zstring.Alphabets, maxTokens int) []token {
	var tokens []token
	start := 0

	flush := func(end int) {
		if end <= start {
			return
		}
		word := line[start:end]
		key := zstring.Encode(word, alphabets)
		tokens = append(tokens, token{
			text:   word,
			offset: uint8(start),
			addr:   d.Find(key),
		})
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		if d.isSeparator(c) {
			flush(i)
			if c != ' ' {
				key := zstring.Encode(string(c), alphabets)
				tokens = append(tokens, token{
					text:   string(c),
					offset: uint8(i),
					addr:   d.Find(key),
				})
			}
			start = i + 1
		}
	}
	flush(len(line))

	if maxTokens >= 0 && len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return tokens
}

// WriteParseBuffer writes the tokenizer output into the parse buffer at
// parseAddr using the standard 4-byte-per-entry layout. The buffer's
// first byte is the caller-declared max token capacity; Tokenize has
// already respected it, so this just writes count + entries.
func (d *Dictionary) WriteParseBuffer(parseAddr uint32, tokens []token) error {
	ptr := parseAddr + 1
	if err := d.core.WriteByte(ptr, uint8(len(tokens))); err != nil {
		return err
	}
	ptr++

	for _, tok := range tokens {
		if err := d.core.WriteWord(ptr, tok.addr); err != nil {
			return err
		}
		if err := d.core.WriteByte(ptr+2, uint8(len(tok.text))); err != nil {
			return err
		}
		if err := d.core.WriteByte(ptr+3, tok.offset); err != nil {
			return err
		}
		ptr += 4
	}
	return nil
}
