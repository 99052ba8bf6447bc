package zmachine

import "github.com/kestrelvm/zmachine/zstring"

func register0OP() {
	register(OP0, 0, opcodeMeta{Name: "rtrue", Handler: opRtrue})
	register(OP0, 1, opcodeMeta{Name: "rfalse", Handler: opRfalse})
	register(OP0, 2, opcodeMeta{Name: "print", Handler: opPrint})
	register(OP0, 3, opcodeMeta{Name: "print_ret", Handler: opPrintRet})
	register(OP0, 4, opcodeMeta{Name: "nop", Handler: opNop})
	register(OP0, 5, opcodeMeta{Name: "save", HasBranch: true, Handler: opSave})
	register(OP0, 6, opcodeMeta{Name: "restore", HasBranch: true, Handler: opRestore})
	register(OP0, 7, opcodeMeta{Name: "restart", Handler: opRestart})
	register(OP0, 8, opcodeMeta{Name: "ret_popped", Handler: opRetPopped})
	register(OP0, 9, opcodeMeta{Name: "pop", Handler: opPop})
	register(OP0, 10, opcodeMeta{Name: "quit", Handler: opQuit})
	register(OP0, 11, opcodeMeta{Name: "new_line", Handler: opNewLine})
	register(OP0, 12, opcodeMeta{Name: "show_status", Handler: opShowStatus})
	register(OP0, 13, opcodeMeta{Name: "verify", HasBranch: true, Handler: opVerify})
	register(OP0, 15, opcodeMeta{Name: "piracy", HasBranch: true, Handler: opPiracy})
}

func opRtrue(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	vm.doReturn(1)
	return execResult{}, nil
}

func opRfalse(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	vm.doReturn(0)
	return execResult{}, nil
}

func opPrint(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	text, advance := zstring.Decode(vm.Core, frame.PC, vm.Alphabets)
	frame.PC += advance
	vm.print(text)
	return execResult{}, nil
}

func opPrintRet(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	text, advance := zstring.Decode(vm.Core, frame.PC, vm.Alphabets)
	frame.PC += advance
	vm.print(text)
	vm.newLine()
	vm.doReturn(1)
	return execResult{}, nil
}

func opNop(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	return execResult{}, nil
}

func opSave(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	ok := vm.saveGame("default")
	return branchResult(ok), nil
}

func opRestore(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	if vm.restoreGame("default") {
		// A successful restore replaces the frame stack wholesale and
		// resumes at the PC captured when save ran, as if save's own
		// branch had just succeeded. The branch suffix attached to this
		// restore instruction belongs to a call frame that may no longer
		// exist, so it must not fire on top of the restored state.
		return execResult{}, nil
	}
	return branchResult(false), nil
}

func opRestart(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	vm.restart()
	return execResult{}, nil
}

func opRetPopped(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	v := frame.Pop(vm)
	vm.doReturn(v)
	return execResult{}, nil
}

func opPop(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	frame.Pop(vm)
	return execResult{}, nil
}

func opQuit(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	return execResult{terminate: true}, nil
}

func opNewLine(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	vm.newLine()
	return execResult{}, nil
}

func opShowStatus(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	vm.showStatusLine()
	return execResult{}, nil
}

func opVerify(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	fileLength := vm.Core.FileLength()
	var checksum uint16
	for addr := uint32(0x40); addr < fileLength; addr++ {
		checksum += uint16(vm.Core.ReadByte(addr))
	}
	return branchResult(checksum == vm.Core.Checksum), nil
}

func opPiracy(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	// Always branch: this interpreter never claims a story is pirated.
	return branchResult(true), nil
}
