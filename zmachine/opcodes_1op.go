package zmachine

import (
	"fmt"

	"github.com/kestrelvm/zmachine/zobject"
	"github.com/kestrelvm/zmachine/zstring"
)

func register1OP() {
	register(OP1, 0, opcodeMeta{Name: "jz", HasBranch: true, Handler: opJz})
	register(OP1, 1, opcodeMeta{Name: "get_sibling", HasStore: true, HasBranch: true, Handler: opGetSibling})
	register(OP1, 2, opcodeMeta{Name: "get_child", HasStore: true, HasBranch: true, Handler: opGetChild})
	register(OP1, 3, opcodeMeta{Name: "get_parent", HasStore: true, Handler: opGetParent})
	register(OP1, 4, opcodeMeta{Name: "get_prop_len", HasStore: true, Handler: opGetPropLen})
	register(OP1, 5, opcodeMeta{Name: "inc", Handler: opInc})
	register(OP1, 6, opcodeMeta{Name: "dec", Handler: opDec})
	register(OP1, 7, opcodeMeta{Name: "print_addr", Handler: opPrintAddr})
	register(OP1, 9, opcodeMeta{Name: "remove_obj", Handler: opRemoveObj})
	register(OP1, 10, opcodeMeta{Name: "print_obj", Handler: opPrintObj})
	register(OP1, 11, opcodeMeta{Name: "ret", Handler: opRet})
	register(OP1, 12, opcodeMeta{Name: "jump", Handler: opJump})
	register(OP1, 13, opcodeMeta{Name: "print_paddr", Handler: opPrintPaddr})
	register(OP1, 14, opcodeMeta{Name: "load", HasStore: true, Handler: opLoad})
	register(OP1, 15, opcodeMeta{Name: "not", HasStore: true, Handler: opNot})
}

func opJz(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	return branchResult(instr.Operands[0].Value(vm) == 0), nil
}

func opGetSibling(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("get_sibling: %w", err)
	}
	sibling := obj.Sibling()
	return storeAndBranch(sibling, sibling != 0), nil
}

func opGetChild(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("get_child: %w", err)
	}
	child := obj.Child()
	return storeAndBranch(child, child != 0), nil
}

func opGetParent(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("get_parent: %w", err)
	}
	return storeResult(obj.Parent()), nil
}

func opGetPropLen(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	addr := uint32(instr.Operands[0].Value(vm))
	return storeResult(uint16(zobject.PropLenAt(vm.Core, addr))), nil
}

func opInc(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	varNum := uint8(instr.Operands[0].Value(vm))
	v := asSigned(vm.ReadVariable(varNum, true))
	vm.WriteVariable(varNum, asUnsigned(v+1), true)
	return execResult{}, nil
}

func opDec(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	varNum := uint8(instr.Operands[0].Value(vm))
	v := asSigned(vm.ReadVariable(varNum, true))
	vm.WriteVariable(varNum, asUnsigned(v-1), true)
	return execResult{}, nil
}

func opPrintAddr(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	addr := uint32(instr.Operands[0].Value(vm))
	text, _ := zstring.Decode(vm.Core, addr, vm.Alphabets)
	vm.print(text)
	return execResult{}, nil
}

func opRemoveObj(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("remove_obj: %w", err)
	}
	if err := zobject.Remove(obj); err != nil {
		return execResult{}, fmt.Errorf("remove_obj: %w", err)
	}
	return execResult{}, nil
}

func opPrintObj(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("print_obj: %w", err)
	}
	vm.print(obj.ShortName(vm.Alphabets))
	return execResult{}, nil
}

func opRet(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	vm.doReturn(instr.Operands[0].Value(vm))
	return execResult{}, nil
}

func opJump(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	offset := asSigned(instr.Operands[0].Value(vm))
	frame.PC = uint32(int64(frame.PC) + int64(offset) - 2)
	return execResult{}, nil
}

func opPrintPaddr(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	addr := vm.Core.Unpack(instr.Operands[0].Value(vm), true)
	text, _ := zstring.Decode(vm.Core, addr, vm.Alphabets)
	vm.print(text)
	return execResult{}, nil
}

func opLoad(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	varNum := uint8(instr.Operands[0].Value(vm))
	return storeResult(vm.ReadVariable(varNum, true)), nil
}

func opNot(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	return storeResult(^instr.Operands[0].Value(vm)), nil
}
