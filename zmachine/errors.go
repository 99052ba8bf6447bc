package zmachine

import "fmt"

// RuntimeError is a fatal VM condition: a decode error, a memory violation,
// or a frame stack under/overflow. The run loop stops after emitting one,
// having already flushed any buffered output.
type RuntimeError struct {
	PC     uint32
	Opcode uint8
	Tag    string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("zmachine: fatal %s at pc=0x%x opcode=0x%x", e.Tag, e.PC, e.Opcode)
}

// Warning is a non-fatal diagnostic: a defined-but-unusual condition such
// as divide-by-zero or a stack underflow that leaves a well-defined result
// behind. The VM keeps running after emitting one.
type Warning struct {
	PC      uint32
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("warning at pc=0x%x: %s", w.PC, w.Message)
}

// warnOnce reports a Warning on vm.Diagnostics the first time tag is seen,
// then stays silent for the rest of the run. Noisy stories otherwise flood
// the screen channel with the same complaint every instruction.
func (vm *VM) warnOnce(tag, format string, args ...interface{}) {
	if vm.warned == nil {
		vm.warned = make(map[string]bool)
	}
	if vm.warned[tag] {
		return
	}
	vm.warned[tag] = true
	vm.emitWarning(fmt.Sprintf(format, args...))
}

func (vm *VM) emitWarning(msg string) {
	w := Warning{PC: vm.currentInstructionPC, Message: msg}
	if vm.Diagnostics != nil {
		vm.Diagnostics <- w
	}
}

func (vm *VM) fatal(tag string, opcodeByte uint8) error {
	err := RuntimeError{PC: vm.currentInstructionPC, Opcode: opcodeByte, Tag: tag}
	vm.GameRunning = false
	if vm.Diagnostics != nil {
		vm.Diagnostics <- err
	}
	return err
}
