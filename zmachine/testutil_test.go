package zmachine

import "strings"

// recordingScreen is a Screen test double that just accumulates text.
type recordingScreen struct {
	buf    strings.Builder
	status struct {
		left, right string
	}
}

func (s *recordingScreen) PrintText(text string) { s.buf.WriteString(text) }
func (s *recordingScreen) NewLine()               { s.buf.WriteByte('\n') }
func (s *recordingScreen) ClearScreen()           { s.buf.Reset() }
func (s *recordingScreen) ShowStatus(left, right string, v3 bool) {
	s.status.left, s.status.right = left, right
}

// scriptedInput replays a fixed sequence of lines to ReadLine calls.
type scriptedInput struct {
	lines []string
	ix    int
}

func (in *scriptedInput) ReadLine(maxLen int) (string, error) {
	if in.ix >= len(in.lines) {
		return "", nil
	}
	l := in.lines[in.ix]
	in.ix++
	if len(l) > maxLen {
		l = l[:maxLen]
	}
	return l, nil
}

// memStorage is an in-memory Storage test double.
type memStorage struct {
	saves map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{saves: map[string][]byte{}} }

func (s *memStorage) OpenStory(name string) ([]byte, error) { return nil, nil }

func (s *memStorage) OpenSaveForRead(name string) ([]byte, error) {
	data, ok := s.saves[name]
	if !ok {
		return nil, errNotFound
	}
	return data, nil
}

func (s *memStorage) OpenSaveForWrite(name string) (WriteCloser, error) {
	return &memSaveWriter{storage: s, name: name}, nil
}

func (s *memStorage) ListSaves() ([]string, error) {
	names := make([]string, 0, len(s.saves))
	for n := range s.saves {
		names = append(names, n)
	}
	return names, nil
}

type memSaveWriter struct {
	storage *memStorage
	name    string
	buf     []byte
}

func (w *memSaveWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *memSaveWriter) Close() error {
	w.storage.saves[w.name] = w.buf
	return nil
}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var errNotFound = notFoundError{}

// newStory builds a minimal 64KiB V3 story: version byte, a static memory
// base high enough that ordinary test writes never fault, and whatever
// extra header fields the caller sets. code is written starting at 0x40,
// which is also used as the initial PC.
func newStory(code []byte) []byte {
	data := make([]byte, 1<<16)
	data[0] = 3 // version
	data[0x0e] = 0xff
	data[0x0f] = 0xf0 // static memory base, generous
	data[0x06] = 0x00
	data[0x07] = 0x40 // initial PC = 0x40
	copy(data[0x40:], code)
	return data
}

func newVM(t interface{ Fatalf(string, ...interface{}) }, code []byte, screen Screen, input Input) *VM {
	vm, err := LoadStory(newStory(code), screen, input, newMemStorage(), nil)
	if err != nil {
		t.Fatalf("LoadStory: %v", err)
	}
	return vm
}

// newVMWith is newVM plus a hook to poke extra header fields or memory
// (e.g. a relocated globals table) before the story loads.
func newVMWith(t interface{ Fatalf(string, ...interface{}) }, code []byte, mutate func(data []byte), screen Screen, input Input) *VM {
	data := newStory(code)
	mutate(data)
	vm, err := LoadStory(data, screen, input, newMemStorage(), nil)
	if err != nil {
		t.Fatalf("LoadStory: %v", err)
	}
	return vm
}

func putWord(data []byte, addr uint16, v uint16) {
	data[addr] = byte(v >> 8)
	data[addr+1] = byte(v)
}
