package zmachine

import (
	"fmt"

	"github.com/kestrelvm/zmachine/zmem"
	"github.com/kestrelvm/zmachine/ztable"
)

// memStream is one active `output_stream 3` redirection: text is appended
// to the table starting at addr+2, and the running length is written back
// into the word at addr when the stream is closed. Redirections nest, so
// the VM keeps them as a stack and always writes to the innermost one.
type memStream struct {
	addr  uint32
	count uint16
}

// print routes text through any active memory-stream redirection before
// falling back to the screen, so every opcode that produces text goes
// through one place instead of writing Screen.PrintText directly.
func (vm *VM) print(text string) {
	if n := len(vm.memoryStreams); n > 0 {
		vm.writeToMemoryStream(text)
		return
	}
	if vm.streamScreenEnabled {
		vm.Screen.PrintText(text)
	}
}

func (vm *VM) newLine() {
	if n := len(vm.memoryStreams); n > 0 {
		vm.writeToMemoryStream("\n")
		return
	}
	if vm.streamScreenEnabled {
		vm.Screen.NewLine()
	}
}

func (vm *VM) writeToMemoryStream(text string) {
	top := &vm.memoryStreams[len(vm.memoryStreams)-1]
	for i := 0; i < len(text); i++ {
		vm.Core.WriteByte(top.addr+2+uint32(top.count), text[i])
		top.count++
	}
}

func registerWindowAndStreamOps() {
	register(VAR, 10, opcodeMeta{Name: "split_window", Handler: opSplitWindow})
	register(VAR, 11, opcodeMeta{Name: "set_window", Handler: opSetWindow})
	register(VAR, 19, opcodeMeta{Name: "output_stream", Handler: opOutputStream})
	register(VAR, 20, opcodeMeta{Name: "input_stream", Handler: opInputStream})
	register(VAR, 21, opcodeMeta{Name: "sound_effect", Handler: opSoundEffect})
	register(VAR, 23, opcodeMeta{Name: "scan_table", HasStore: true, HasBranch: true, Handler: opScanTable})
	register(VAR, 29, opcodeMeta{Name: "copy_table", Handler: opCopyTable})
	register(VAR, 30, opcodeMeta{Name: "print_table", Handler: opPrintTable})
}

// opSplitWindow sets the upper window's height in lines. This interpreter's
// Screen is a scrolling transcript rather than a two-region terminal, so
// the split height is only recorded in VM state; nothing else reads it,
// and it never changes how text actually lands on screen.
func opSplitWindow(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	vm.upperWindowHeight = int(instr.Operands[0].Value(vm))
	return execResult{}, nil
}

func opSetWindow(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	window := instr.Operands[0].Value(vm)
	vm.currentWindow = window
	vm.lowerWindowActive = window == 0
	return execResult{}, nil
}

// opOutputStream implements `output_stream`: streams 1 (screen) and 2
// (transcript) are toggled on/off by sign, stream 3 pushes a new memory
// redirection (its table address is the second operand), and -3 pops and
// finalizes the innermost one. Stream 4 (command-script echo) is accepted
// and ignored; this interpreter has no script-replay mode to feed.
func opOutputStream(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	n := asSigned(instr.Operands[0].Value(vm))
	switch n {
	case 1:
		vm.streamScreenEnabled = true
	case -1:
		vm.streamScreenEnabled = false
	case 2:
		vm.transcriptEnabled = true
	case -2:
		vm.transcriptEnabled = false
	case 3:
		if len(instr.Operands) < 2 {
			return execResult{}, fmt.Errorf("output_stream: stream 3 requires a table address")
		}
		vm.memoryStreams = append(vm.memoryStreams, memStream{addr: uint32(instr.Operands[1].Value(vm))})
	case -3:
		if len(vm.memoryStreams) == 0 {
			return execResult{}, nil
		}
		top := vm.memoryStreams[len(vm.memoryStreams)-1]
		vm.memoryStreams = vm.memoryStreams[:len(vm.memoryStreams)-1]
		if err := vm.Core.WriteWord(top.addr, top.count); err != nil {
			return execResult{}, fmt.Errorf("output_stream: %w", err)
		}
	case 4, -4:
		// Command-script recording/echo: nothing to wire it to.
	}
	return execResult{}, nil
}

// opInputStream selects between keyboard (0) and a recorded command script
// (1) as the source for sread. This interpreter only ever has a live
// keyboard, so the opcode is accepted and otherwise does nothing.
func opInputStream(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	return execResult{}, nil
}

// opSoundEffect: no audio device is wired up, so every effect number is
// accepted and silently dropped rather than failing the instruction.
func opSoundEffect(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	return execResult{}, nil
}

// requireV5 rejects the V5+ table opcodes on a V3 story: a real V3
// compiler never emits opcode numbers this high in the VAR space, so a
// story that reaches one here is either corrupt or targets a later
// version this interpreter doesn't otherwise implement.
func requireV5(vm *VM, name string) error {
	if vm.Core.Version < zmem.V5 {
		return fmt.Errorf("%s: not available below version 5 (story is version %d)", name, vm.Core.Version)
	}
	return nil
}

func opScanTable(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	if err := requireV5(vm, "scan_table"); err != nil {
		return execResult{}, err
	}
	test := instr.Operands[0].Value(vm)
	tableAddr := uint32(instr.Operands[1].Value(vm))
	length := instr.Operands[2].Value(vm)
	form := uint16(0x82)
	if len(instr.Operands) == 4 {
		form = instr.Operands[3].Value(vm)
	}
	result := ztable.ScanTable(vm.Core, test, tableAddr, length, form)
	return storeAndBranch(uint16(result), result != 0), nil
}

func opCopyTable(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	if err := requireV5(vm, "copy_table"); err != nil {
		return execResult{}, err
	}
	first := uint32(instr.Operands[0].Value(vm))
	second := uint32(instr.Operands[1].Value(vm))
	size := asSigned(instr.Operands[2].Value(vm))
	if err := ztable.CopyTable(vm.Core, first, second, size); err != nil {
		return execResult{}, fmt.Errorf("copy_table: %w", err)
	}
	return execResult{}, nil
}

func opPrintTable(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	if err := requireV5(vm, "print_table"); err != nil {
		return execResult{}, err
	}
	addr := uint32(instr.Operands[0].Value(vm))
	width := instr.Operands[1].Value(vm)
	height := uint16(1)
	skip := uint16(0)
	if len(instr.Operands) > 2 {
		height = instr.Operands[2].Value(vm)
		if len(instr.Operands) > 3 {
			skip = instr.Operands[3].Value(vm)
		}
	}
	vm.print(ztable.PrintTable(vm.Core, addr, width, height, skip))
	return execResult{}, nil
}
