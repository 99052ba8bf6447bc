package zdict

import (
	"sort"
	"testing"

	"github.com/kestrelvm/zmachine/zmem"
	"github.com/kestrelvm/zmachine/zstring"
)

func buildDictionary(t *testing.T, words []string, separators string) (*zmem.Core, uint32) {
	t.Helper()

	data := make([]byte, 1<<16)
	data[0] = zmem.V3
	data[0x0e] = 0xff // static memory base, generous so test writes never fault
	data[0x0f] = 0xf0
	core, err := zmem.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	base := uint32(0x200)
	ptr := base
	core.WriteByte(ptr, uint8(len(separators)))
	ptr++
	for i := 0; i < len(separators); i++ {
		core.WriteByte(ptr, separators[i])
		ptr++
	}

	const entryLength = 6 // 4-byte key + 2 bytes of game data
	core.WriteByte(ptr, entryLength)
	ptr++

	sorted := append([]string(nil), words...)
	keys := make(map[string][]byte, len(words))
	for _, w := range sorted {
		keys[w] = zstring.Encode(w, &zstring.Default)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return string(keys[sorted[i]]) < string(keys[sorted[j]])
	})

	core.WriteWord(ptr, uint16(len(sorted)))
	ptr += 2

	for _, w := range sorted {
		key := keys[w]
		for _, b := range key {
			core.WriteByte(ptr, b)
			ptr++
		}
		ptr += 2 // game data, unused by these tests
	}

	return core, base
}

func TestDictionaryFindBinaryChop(t *testing.T) {
	core, base := buildDictionary(t, []string{"take", "lamp", "open", "close", "drop"}, ".,")
	d := Parse(core, base)

	addr := d.Find(zstring.Encode("lamp", &zstring.Default))
	if addr == 0 {
		t.Fatal("expected to find 'lamp' in dictionary")
	}

	addr = d.Find(zstring.Encode("xyzzy", &zstring.Default))
	if addr != 0 {
		t.Fatalf("expected 'xyzzy' to be absent, got address %d", addr)
	}
}

func TestTokenizeEmitsSeparatorsAsOwnTokens(t *testing.T) {
	core, base := buildDictionary(t, []string{"take", "lamp"}, ".,")
	d := Parse(core, base)

	tokens := d.Tokenize("take lamp.", &zstring.Default, 10)
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens (take, lamp, .), got %d: %+v", len(tokens), tokens)
	}
	if tokens[0].text != "take" || tokens[1].text != "lamp" || tokens[2].text != "." {
		t.Fatalf("unexpected token texts: %+v", tokens)
	}
	if tokens[2].addr != 0 {
		t.Fatal("separator '.' is not itself a dictionary word here, expected no match")
	}
}

func TestTokenizeRespectsMaxTokens(t *testing.T) {
	core, base := buildDictionary(t, []string{"take", "lamp", "open"}, "")
	d := Parse(core, base)

	tokens := d.Tokenize("take lamp open", &zstring.Default, 2)
	if len(tokens) != 2 {
		t.Fatalf("expected truncation to 2 tokens, got %d", len(tokens))
	}
}

func TestWriteParseBufferFormat(t *testing.T) {
	core, base := buildDictionary(t, []string{"take", "lamp"}, "")
	d := Parse(core, base)

	tokens := d.Tokenize("take lamp", &zstring.Default, 10)
	parseAddr := uint32(0x300)
	core.WriteByte(parseAddr, 10) // capacity byte, untouched by WriteParseBuffer

	if err := d.WriteParseBuffer(parseAddr, tokens); err != nil {
		t.Fatalf("WriteParseBuffer: %v", err)
	}

	if count := core.ReadByte(parseAddr + 1); count != 2 {
		t.Fatalf("expected token count 2, got %d", count)
	}
	if length := core.ReadByte(parseAddr + 2 + 2); length != 4 {
		t.Fatalf("expected first token length 4, got %d", length)
	}
	if offset := core.ReadByte(parseAddr + 2 + 3); offset != 0 {
		t.Fatalf("expected first token offset 0, got %d", offset)
	}
}

func TestLinearFallbackForNegativeCount(t *testing.T) {
	core, base := buildDictionary(t, []string{"zebra", "apple"}, "")
	d := Parse(core, base)

	// Force the header to claim an unsorted table by negating the count;
	// the entries themselves remain wherever they were written.
	d.Header.EntryCount = -d.Header.EntryCount

	addr := d.Find(zstring.Encode("apple", &zstring.Default))
	if addr == 0 {
		t.Fatal("linear fallback failed to find 'apple'")
	}
}
