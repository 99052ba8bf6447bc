package zmachine

import (
	"fmt"

	"github.com/kestrelvm/zmachine/zobject"
)

func register2OP() {
	register(OP2, 1, opcodeMeta{Name: "je", HasBranch: true, Handler: opJe})
	register(OP2, 2, opcodeMeta{Name: "jl", HasBranch: true, Handler: opJl})
	register(OP2, 3, opcodeMeta{Name: "jg", HasBranch: true, Handler: opJg})
	register(OP2, 4, opcodeMeta{Name: "dec_chk", HasBranch: true, Handler: opDecChk})
	register(OP2, 5, opcodeMeta{Name: "inc_chk", HasBranch: true, Handler: opIncChk})
	register(OP2, 6, opcodeMeta{Name: "jin", HasBranch: true, Handler: opJin})
	register(OP2, 7, opcodeMeta{Name: "test", HasBranch: true, Handler: opTest})
	register(OP2, 8, opcodeMeta{Name: "or", HasStore: true, Handler: opOr})
	register(OP2, 9, opcodeMeta{Name: "and", HasStore: true, Handler: opAnd})
	register(OP2, 10, opcodeMeta{Name: "test_attr", HasBranch: true, Handler: opTestAttr})
	register(OP2, 11, opcodeMeta{Name: "set_attr", Handler: opSetAttr})
	register(OP2, 12, opcodeMeta{Name: "clear_attr", Handler: opClearAttr})
	register(OP2, 13, opcodeMeta{Name: "store", Handler: opStore})
	register(OP2, 14, opcodeMeta{Name: "insert_obj", Handler: opInsertObj})
	register(OP2, 15, opcodeMeta{Name: "loadw", HasStore: true, Handler: opLoadw})
	register(OP2, 16, opcodeMeta{Name: "loadb", HasStore: true, Handler: opLoadb})
	register(OP2, 17, opcodeMeta{Name: "get_prop", HasStore: true, Handler: opGetProp})
	register(OP2, 18, opcodeMeta{Name: "get_prop_addr", HasStore: true, Handler: opGetPropAddr})
	register(OP2, 19, opcodeMeta{Name: "get_next_prop", HasStore: true, Handler: opGetNextProp})
	register(OP2, 20, opcodeMeta{Name: "add", HasStore: true, Handler: opAdd})
	register(OP2, 21, opcodeMeta{Name: "sub", HasStore: true, Handler: opSub})
	register(OP2, 22, opcodeMeta{Name: "mul", HasStore: true, Handler: opMul})
	register(OP2, 23, opcodeMeta{Name: "div", HasStore: true, Handler: opDiv})
	register(OP2, 24, opcodeMeta{Name: "mod", HasStore: true, Handler: opMod})
}

// opJe is variadic in variable form: true if the first operand equals any
// of the remaining 1-3 operands.
func opJe(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	first := instr.Operands[0].Value(vm)
	for _, o := range instr.Operands[1:] {
		if first == o.Value(vm) {
			return branchResult(true), nil
		}
	}
	return branchResult(false), nil
}

func opJl(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := asSigned(instr.Operands[0].Value(vm))
	b := asSigned(instr.Operands[1].Value(vm))
	return branchResult(a < b), nil
}

func opJg(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := asSigned(instr.Operands[0].Value(vm))
	b := asSigned(instr.Operands[1].Value(vm))
	return branchResult(a > b), nil
}

func opDecChk(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	varNum := uint8(instr.Operands[0].Value(vm))
	threshold := asSigned(instr.Operands[1].Value(vm))
	v := asSigned(vm.ReadVariable(varNum, true)) - 1
	vm.WriteVariable(varNum, asUnsigned(v), true)
	return branchResult(v < threshold), nil
}

func opIncChk(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	varNum := uint8(instr.Operands[0].Value(vm))
	threshold := asSigned(instr.Operands[1].Value(vm))
	v := asSigned(vm.ReadVariable(varNum, true)) + 1
	vm.WriteVariable(varNum, asUnsigned(v), true)
	return branchResult(v > threshold), nil
}

func opJin(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("jin: %w", err)
	}
	return branchResult(a.Parent() == instr.Operands[1].Value(vm)), nil
}

func opTest(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := instr.Operands[0].Value(vm)
	b := instr.Operands[1].Value(vm)
	return branchResult(a&b == b), nil
}

func opOr(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	return storeResult(instr.Operands[0].Value(vm) | instr.Operands[1].Value(vm)), nil
}

func opAnd(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	return storeResult(instr.Operands[0].Value(vm) & instr.Operands[1].Value(vm)), nil
}

func opTestAttr(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("test_attr: %w", err)
	}
	return branchResult(obj.AttrTest(instr.Operands[1].Value(vm))), nil
}

func opSetAttr(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("set_attr: %w", err)
	}
	if err := obj.AttrSet(instr.Operands[1].Value(vm)); err != nil {
		return execResult{}, fmt.Errorf("set_attr: %w", err)
	}
	return execResult{}, nil
}

func opClearAttr(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("clear_attr: %w", err)
	}
	if err := obj.AttrClear(instr.Operands[1].Value(vm)); err != nil {
		return execResult{}, fmt.Errorf("clear_attr: %w", err)
	}
	return execResult{}, nil
}

func opStore(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	varNum := uint8(instr.Operands[0].Value(vm))
	vm.WriteVariable(varNum, instr.Operands[1].Value(vm), true)
	return execResult{}, nil
}

func opInsertObj(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("insert_obj: %w", err)
	}
	parent, err := zobject.Get(vm.Core, instr.Operands[1].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("insert_obj: %w", err)
	}
	if err := zobject.Insert(obj, parent); err != nil {
		return execResult{}, fmt.Errorf("insert_obj: %w", err)
	}
	return execResult{}, nil
}

func opLoadw(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := uint32(instr.Operands[0].Value(vm))
	b := instr.Operands[1].Value(vm)
	return storeResult(vm.Core.ReadWord(a + 2*uint32(b))), nil
}

func opLoadb(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := uint32(instr.Operands[0].Value(vm))
	b := instr.Operands[1].Value(vm)
	return storeResult(uint16(vm.Core.ReadByte(a + uint32(b)))), nil
}

func opGetProp(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("get_prop: %w", err)
	}
	v, err := obj.PropGet(uint8(instr.Operands[1].Value(vm)))
	if err != nil {
		return execResult{}, fmt.Errorf("get_prop: %w", err)
	}
	return storeResult(v), nil
}

func opGetPropAddr(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("get_prop_addr: %w", err)
	}
	return storeResult(uint16(obj.PropAddr(uint8(instr.Operands[1].Value(vm))))), nil
}

func opGetNextProp(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("get_next_prop: %w", err)
	}
	n, err := obj.NextPropertyNumber(uint8(instr.Operands[1].Value(vm)))
	if err != nil {
		return execResult{}, fmt.Errorf("get_next_prop: %w", err)
	}
	return storeResult(uint16(n)), nil
}

func opAdd(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := asSigned(instr.Operands[0].Value(vm))
	b := asSigned(instr.Operands[1].Value(vm))
	return storeResult(asUnsigned(a + b)), nil
}

func opSub(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := asSigned(instr.Operands[0].Value(vm))
	b := asSigned(instr.Operands[1].Value(vm))
	return storeResult(asUnsigned(a - b)), nil
}

func opMul(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := asSigned(instr.Operands[0].Value(vm))
	b := asSigned(instr.Operands[1].Value(vm))
	return storeResult(asUnsigned(a * b)), nil
}

// opDiv truncates toward zero (Go's integer division already does this for
// int16). Division by zero is non-fatal and defined to return 0x7FFF
// rather than fault.
func opDiv(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := asSigned(instr.Operands[0].Value(vm))
	b := asSigned(instr.Operands[1].Value(vm))
	if b == 0 {
		vm.warnOnce("div_by_zero", "division by zero")
		return storeResult(0x7FFF), nil
	}
	if a == -32768 && b == -1 {
		return storeResult(0x8000), nil
	}
	return storeResult(asUnsigned(a / b)), nil
}

func opMod(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := asSigned(instr.Operands[0].Value(vm))
	b := asSigned(instr.Operands[1].Value(vm))
	if b == 0 {
		vm.warnOnce("mod_by_zero", "modulo by zero")
		return storeResult(0), nil
	}
	return storeResult(asUnsigned(a % b)), nil
}
