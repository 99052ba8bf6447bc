// Package zstring implements the Z-machine's ZSCII text codec: the 5-bit
// alphabet-shifted decoder (with abbreviation indirection and the 10-bit
// ZSCII escape) and the fixed-width dictionary-key encoder.
package zstring

import "github.com/kestrelvm/zmachine/zmem"

// Alphabets holds the three 26-character alphabets used by the codec. V3
// stories always use the defaults below; V5+ stories may supply a custom
// table via the header's alphabet-table address, which is not exercised by
// the V3-normative executor but is threaded through so V5 support has
// somewhere to live.
type Alphabets struct {
	A0 [26]byte
	A1 [26]byte
	A2 [26]byte
}

// Default is the standard V3 alphabet table. Note the newline at slot 1
// of A2, reached via 5-bit code 7. Slot 0 of A2 is a placeholder: code 6
// under A2 is always the ZSCII escape.
var Default = Alphabets{
	A0: [26]byte{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'},
	A1: [26]byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'},
	A2: [26]byte{0, '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'},
}

// decodeState carries the mutable shift/abbreviation/escape state across
// the whole decode, including recursive calls made to expand abbreviations.
type decodeState struct {
	core      *zmem.Core
	alphabets *Alphabets
	inAbbrev  bool // guards against an abbreviation that itself references an abbreviation
}

// Decode reads packed 3x5-bit Z-characters starting at addr until the
// end-of-string bit is seen, returning the decoded text and the number of
// bytes consumed (always a multiple of 2).
func Decode(core *zmem.Core, addr uint32, alphabets *Alphabets) (string, uint32) {
	st := &decodeState{core: core, alphabets: alphabets}
	return st.decode(addr)
}

func (st *decodeState) decode(addr uint32) (string, uint32) {
	var out []byte

	shiftLock := 0
	shiftState := 0
	abbrevPending := false
	var abbrevQuadrant uint8
	bytesRead := uint32(0)

	for {
		word := st.core.ReadWord(addr)
		bytesRead += 2
		codes := [3]uint8{
			uint8(word>>10) & 0x1F,
			uint8(word>>5) & 0x1F,
			uint8(word) & 0x1F,
		}
		last := word&0x8000 != 0
		addr += 2

		for i := 0; i < 3; i++ {
			code := codes[i]

			if abbrevPending {
				abbrevPending = false
				out = append(out, st.expandAbbreviation(abbrevQuadrant, code)...)
				shiftState = shiftLock
				continue
			}

			switch {
			case code == 0:
				out = append(out, ' ')
				shiftState = shiftLock
			case code >= 1 && code <= 3:
				abbrevPending = true
				abbrevQuadrant = code
			case code == 4:
				shiftState = 1
			case code == 5:
				shiftState = 2
			case shiftState == 2 && code == 6:
				// ZSCII escape: next two 5-bit codes form a 10-bit ZSCII char.
				// Either half may live in a word fetched past the current
				// one, so a fetch here can also be what ends the string.
				hi, okHi := st.nextCode(&codes, &i, &addr, &bytesRead, &last)
				lo, okLo := st.nextCode(&codes, &i, &addr, &bytesRead, &last)
				if okHi && okLo {
					out = append(out, uint8(hi<<5|lo))
				}
				shiftState = shiftLock
			default:
				out = append(out, st.alphabetChar(shiftState, code))
				shiftState = shiftLock
			}
		}

		if last {
			break
		}
	}

	return string(out), bytesRead
}

// nextCode advances to the next 5-bit code within the current word,
// fetching a fresh word from memory if the current one is exhausted. It is
// only used by the ZSCII escape, which always has two more codes available
// in a well-formed story. A fetch updates *last from the new word's own
// end-of-string bit, so the outer decode loop still terminates correctly
// when the escape's second half lands in the string's final word.
func (st *decodeState) nextCode(codes *[3]uint8, i *int, addr *uint32, bytesRead *uint32, last *bool) (uint8, bool) {
	*i++
	if *i < 3 {
		return (*codes)[*i], true
	}

	if *last {
		return 0, false
	}

	word := st.core.ReadWord(*addr)
	*bytesRead += 2
	*addr += 2
	*codes = [3]uint8{uint8(word>>10) & 0x1F, uint8(word>>5) & 0x1F, uint8(word) & 0x1F}
	*last = word&0x8000 != 0
	*i = 0
	return (*codes)[0], true
}

func (st *decodeState) alphabetChar(alphabet int, code uint8) byte {
	ix := code - 6
	switch alphabet {
	case 1:
		return st.alphabets.A1[ix]
	case 2:
		return st.alphabets.A2[ix]
	default:
		return st.alphabets.A0[ix]
	}
}

// expandAbbreviation decodes the string referenced by abbreviation
// quadrant z (1..3) and index x (0..31). A conforming story never nests
// abbreviations, but a malformed one must not be allowed to recurse
// forever, so a second expansion attempt returns nothing instead of
// calling decode again.
func (st *decodeState) expandAbbreviation(z uint8, x uint8) string {
	if st.inAbbrev {
		return ""
	}

	ix := uint32(z-1)*32 + uint32(x)
	entryAddr := uint32(st.core.AbbreviationBase) + 2*ix
	strAddr := uint32(st.core.ReadWord(entryAddr)) * 2

	st.inAbbrev = true
	text, _ := st.decode(strAddr)
	st.inAbbrev = false

	return text
}

// Encode produces the 6 Z-characters (V3) used as a dictionary key for
// token, packed into two big-endian words with the end bit set on the
// second. Characters outside all three alphabets are emitted as a ZSCII
// escape (shift-2, code 6, then the 10-bit char split into two 5-bit
// halves).
func Encode(token string, alphabets *Alphabets) []byte {
	codes := make([]uint8, 0, 6)

	for _, r := range token {
		if len(codes) >= 6 {
			break
		}
		c := byte(r)

		if ix := indexOf(alphabets.A0, c); ix >= 0 {
			codes = append(codes, uint8(ix)+6)
			continue
		}
		if ix := indexOf(alphabets.A1, c); ix >= 0 {
			codes = append(codes, 4, uint8(ix)+6)
			continue
		}
		if ix := indexOf(alphabets.A2, c); ix >= 0 {
			codes = append(codes, 5, uint8(ix)+6)
			continue
		}

		codes = append(codes, 5, 6, c>>5, c&0x1F)
	}

	for len(codes) < 6 {
		codes = append(codes, 5)
	}
	codes = codes[:6]

	w1 := uint16(codes[0])<<10 | uint16(codes[1])<<5 | uint16(codes[2])
	w2 := uint16(codes[3])<<10 | uint16(codes[4])<<5 | uint16(codes[5])
	w2 |= 0x8000

	return []byte{byte(w1 >> 8), byte(w1), byte(w2 >> 8), byte(w2)}
}

func indexOf(alphabet [26]byte, c byte) int {
	for i, a := range alphabet {
		if a == c {
			return i
		}
	}
	return -1
}
