package zmachine

import (
	"fmt"

	"github.com/kestrelvm/zmachine/zobject"
	"github.com/kestrelvm/zmachine/zstring"
)

func registerVAR() {
	register(VAR, 0, opcodeMeta{Name: "call", HasStore: true, Handler: opCall})
	register(VAR, 1, opcodeMeta{Name: "storew", Handler: opStorew})
	register(VAR, 2, opcodeMeta{Name: "storeb", Handler: opStoreb})
	register(VAR, 3, opcodeMeta{Name: "put_prop", Handler: opPutProp})
	register(VAR, 4, opcodeMeta{Name: "sread", Handler: opSread})
	register(VAR, 5, opcodeMeta{Name: "print_char", Handler: opPrintChar})
	register(VAR, 6, opcodeMeta{Name: "print_num", Handler: opPrintNum})
	register(VAR, 7, opcodeMeta{Name: "random", HasStore: true, Handler: opRandom})
	register(VAR, 8, opcodeMeta{Name: "push", Handler: opPush})
	register(VAR, 9, opcodeMeta{Name: "pull", Handler: opPull})
}

// opCall implements `call`: target 0 stores 0 and performs no call;
// otherwise a new frame is pushed, its locals seeded from the routine
// header and overridden by any supplied arguments, and the already-
// consumed store variable (instr.StoreVar, read generically by the
// dispatch loop) travels with the new frame so `ret` can find it later.
func opCall(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	packed := instr.Operands[0].Value(vm)
	routineAddr := vm.Core.Unpack(packed, false)

	if routineAddr == 0 {
		return storeResult(0), nil
	}

	localCount := vm.Core.ReadByte(routineAddr)
	if localCount > maxLocals {
		return execResult{}, fmt.Errorf("call: routine at 0x%x declares %d locals, max is %d", routineAddr, localCount, maxLocals)
	}
	routineAddr++

	locals := make([]uint16, localCount)
	for i := 0; i < int(localCount); i++ {
		locals[i] = vm.Core.ReadWord(routineAddr)
		routineAddr += 2
	}

	args := instr.Operands[1:]
	for i := 0; i < len(args) && i < len(locals); i++ {
		locals[i] = args[i].Value(vm)
	}

	newFrame := &Frame{
		PC:        routineAddr,
		Locals:    locals,
		ResultVar: instr.StoreVar,
		HasResult: true,
		ArgCount:  len(args),
	}
	if err := vm.Frames.push(newFrame); err != nil {
		return execResult{}, fmt.Errorf("call: %w", err)
	}

	return execResult{}, nil
}

func opStorew(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := uint32(instr.Operands[0].Value(vm))
	b := instr.Operands[1].Value(vm)
	v := instr.Operands[2].Value(vm)
	if err := vm.Core.WriteWord(a+2*uint32(b), v); err != nil {
		return execResult{}, fmt.Errorf("storew: %w", err)
	}
	return execResult{}, nil
}

func opStoreb(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	a := uint32(instr.Operands[0].Value(vm))
	b := instr.Operands[1].Value(vm)
	v := instr.Operands[2].Value(vm)
	if err := vm.Core.WriteByte(a+uint32(b), uint8(v)); err != nil {
		return execResult{}, fmt.Errorf("storeb: %w", err)
	}
	return execResult{}, nil
}

func opPutProp(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	obj, err := zobject.Get(vm.Core, instr.Operands[0].Value(vm))
	if err != nil {
		return execResult{}, fmt.Errorf("put_prop: %w", err)
	}
	propNum := uint8(instr.Operands[1].Value(vm))
	value := instr.Operands[2].Value(vm)
	if err := obj.PropPut(propNum, value); err != nil {
		return execResult{}, fmt.Errorf("put_prop: %w", err)
	}
	return execResult{}, nil
}

// opSread implements the `sread` opcode: blocks on Input for a line,
// lowercases it, tokenizes against the VM's dictionary, and writes the
// parse buffer.
func opSread(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	textBufAddr := uint32(instr.Operands[0].Value(vm))
	maxLen := int(vm.Core.ReadByte(textBufAddr))

	line, err := vm.Input.ReadLine(maxLen)
	if err != nil {
		// EOF on the input stream is tolerated as an empty line.
		line = ""
	}
	line = lowercaseASCII(line)
	if len(line) > maxLen {
		line = line[:maxLen]
	}

	for i := 0; i < len(line); i++ {
		vm.Core.WriteByte(textBufAddr+1+uint32(i), line[i])
	}

	if len(instr.Operands) > 1 && vm.Dictionary != nil {
		parseBufAddr := uint32(instr.Operands[1].Value(vm))
		maxTokens := int(vm.Core.ReadByte(parseBufAddr))
		tokens := vm.Dictionary.Tokenize(line, vm.Alphabets, maxTokens)
		if err := vm.Dictionary.WriteParseBuffer(parseBufAddr, tokens); err != nil {
			return execResult{}, fmt.Errorf("sread: %w", err)
		}
	}

	return execResult{}, nil
}

func lowercaseASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func opPrintChar(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	code := uint8(instr.Operands[0].Value(vm))
	vm.print(string(zstring.ToUnicode(code)))
	return execResult{}, nil
}

func opPrintNum(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	v := asSigned(instr.Operands[0].Value(vm))
	vm.print(fmt.Sprintf("%d", v))
	return execResult{}, nil
}

// opRandom implements three cases: range>0 gives a uniform draw from
// 1..=range; range<=0 reseeds the PRNG (from |range|, or from the host
// clock when range==0) and returns 0.
func opRandom(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	rng := asSigned(instr.Operands[0].Value(vm))
	switch {
	case rng > 0:
		return storeResult(uint16(vm.rng.Intn(int(rng)) + 1)), nil
	case rng < 0:
		vm.seedRNG(int64(-rng))
		return storeResult(0), nil
	default:
		vm.seedRNGFromClock()
		return storeResult(0), nil
	}
}

func opPush(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	frame.Push(instr.Operands[0].Value(vm))
	return execResult{}, nil
}

func opPull(vm *VM, frame *Frame, instr *Instruction) (execResult, error) {
	varNum := uint8(instr.Operands[0].Value(vm))
	vm.WriteVariable(varNum, frame.Pop(vm), true)
	return execResult{}, nil
}
