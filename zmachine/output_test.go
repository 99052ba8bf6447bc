package zmachine

import "testing"

// Scenario: split_window records the upper window's height and set_window
// switches which window is current, purely as state this interpreter's
// scrolling Screen has no use for beyond bookkeeping.
func TestScenarioSplitWindowAndSetWindowTrackState(t *testing.T) {
	code := []byte{
		0xEA, 0x7F, 0x05, // split_window 5
		0xEB, 0x7F, 0x01, // set_window 1
		0xBA, // quit
	}
	vm := newVM(t, code, &recordingScreen{}, &scriptedInput{})

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if vm.upperWindowHeight != 5 {
		t.Fatalf("expected upper window height 5, got %d", vm.upperWindowHeight)
	}
	if vm.currentWindow != 1 || vm.lowerWindowActive {
		t.Fatalf("expected window 1 active, got currentWindow=%d lowerWindowActive=%v", vm.currentWindow, vm.lowerWindowActive)
	}
}

// Scenario: output_stream 3 redirects print_num into a memory table instead
// of the screen, and output_stream -3 closes it off by writing the number
// of characters produced into the table's leading word.
func TestScenarioOutputStreamRedirectsPrintNumToMemory(t *testing.T) {
	code := []byte{
		0xF3, 0x4F, 0x03, 0x03, 0x00, // output_stream 3, table 0x300
		0xE6, 0x7F, 0x2A, // print_num 42
		0xF3, 0x3F, 0xFF, 0xFD, // output_stream -3
		0xBA, // quit
	}
	screen := &recordingScreen{}
	vm := newVM(t, code, screen, &scriptedInput{})

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if screen.buf.String() != "" {
		t.Fatalf("expected nothing on screen while stream 3 is selected, got %q", screen.buf.String())
	}
	if got := vm.Core.ReadWord(0x300); got != 2 {
		t.Fatalf("expected length word 2, got %d", got)
	}
	if got := string([]byte{vm.Core.ReadByte(0x302), vm.Core.ReadByte(0x303)}); got != "42" {
		t.Fatalf("expected table to hold %q, got %q", "42", got)
	}
}

// Scenario: output_stream -1 disables the screen stream entirely.
func TestScenarioOutputStreamMinusOneSuppressesScreen(t *testing.T) {
	code := []byte{
		0xF3, 0x3F, 0xFF, 0xFF, // output_stream -1
		0xE5, 0x7F, 0x41, // print_char 'A'
		0xBA, // quit
	}
	screen := &recordingScreen{}
	vm := newVM(t, code, screen, &scriptedInput{})

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if screen.buf.String() != "" {
		t.Fatalf("expected no output with screen stream off, got %q", screen.buf.String())
	}
}

// Scenario: scan_table finds a word-sized entry and returns its address.
func TestScenarioScanTableOpcodeFindsMatchingWord(t *testing.T) {
	code := []byte{
		0xF7, 0x47, 0x14, 0x03, 0x00, 0x03, 0x00, 0xC2, // scan_table 20, 0x300, 3 -> stack, branch +2
		0xBA, // quit
	}
	vm := newVMWith(t, code, func(data []byte) {
		data[0] = 5 // scan_table is a V5+ opcode
		putWord(data, 0x300, 10)
		putWord(data, 0x302, 20)
		putWord(data, 0x304, 30)
	}, &recordingScreen{}, &scriptedInput{})

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top := vm.Frames.top()
	if len(top.EvalStack) != 1 || top.EvalStack[0] != 0x302 {
		t.Fatalf("expected stack [0x302], got %v", top.EvalStack)
	}
}

// Scenario: a V3 story that somehow reaches scan_table's opcode number is
// rejected rather than silently executed.
func TestScenarioScanTableOpcodeRejectedBelowV5(t *testing.T) {
	code := []byte{
		0xF7, 0x47, 0x14, 0x03, 0x00, 0x03, 0x00, 0xC2,
		0xBA,
	}
	vm := newVM(t, code, &recordingScreen{}, &scriptedInput{})

	if err := vm.Run(); err == nil {
		t.Fatalf("expected scan_table to fail on a V3 story")
	}
}

// Scenario: scan_table exhausts the table without a match and stores 0.
func TestScenarioScanTableOpcodeNoMatch(t *testing.T) {
	code := []byte{
		0xF7, 0x47, 0x63, 0x03, 0x00, 0x03, 0x00, 0xC2, // scan_table 99, 0x300, 3 -> stack
		0xBA,
	}
	vm := newVMWith(t, code, func(data []byte) {
		data[0] = 5
		putWord(data, 0x300, 10)
		putWord(data, 0x302, 20)
		putWord(data, 0x304, 30)
	}, &recordingScreen{}, &scriptedInput{})

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top := vm.Frames.top()
	if len(top.EvalStack) != 1 || top.EvalStack[0] != 0 {
		t.Fatalf("expected stack [0], got %v", top.EvalStack)
	}
}

// Scenario: copy_table with a positive size snapshots bytes from the
// source range into the destination range.
func TestScenarioCopyTableOpcodeCopiesBytes(t *testing.T) {
	code := []byte{
		0xFD, 0x07, 0x03, 0x00, 0x03, 0x10, 0x04, // copy_table 0x300, 0x310, 4
		0xBA,
	}
	vm := newVMWith(t, code, func(data []byte) {
		data[0] = 5
		data[0x300], data[0x301], data[0x302], data[0x303] = 1, 2, 3, 4
	}, &recordingScreen{}, &scriptedInput{})

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, want := range []byte{1, 2, 3, 4} {
		if got := vm.Core.ReadByte(uint32(0x310 + i)); got != want {
			t.Fatalf("byte %d: expected %d, got %d", i, want, got)
		}
	}
}

// Scenario: print_table lays bytes out in width-by-height rows, newline
// separated.
func TestScenarioPrintTableOpcodeWrapsRows(t *testing.T) {
	code := []byte{
		0xFE, 0x17, 0x03, 0x00, 0x02, 0x02, // print_table 0x300, width 2, height 2
		0xBA,
	}
	vm := newVMWith(t, code, func(data []byte) {
		data[0] = 5
		data[0x300], data[0x301], data[0x302], data[0x303] = 'A', 'B', 'C', 'D'
	}, &recordingScreen{}, &scriptedInput{})
	screen := vm.Screen.(*recordingScreen)

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if screen.buf.String() != "AB\nCD" {
		t.Fatalf("expected %q, got %q", "AB\nCD", screen.buf.String())
	}
}

// Scenario: sound_effect and input_stream are accepted without an audio
// device or script file behind them; they must not fail the instruction.
func TestScenarioSoundEffectAndInputStreamAreNoops(t *testing.T) {
	code := []byte{
		0xF5, 0x7F, 0x01, // sound_effect 1
		0xF4, 0x7F, 0x00, // input_stream 0
		0xBA, // quit
	}
	vm := newVM(t, code, &recordingScreen{}, &scriptedInput{})

	if err := vm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if vm.GameRunning {
		t.Fatalf("quit should clear GameRunning")
	}
}
