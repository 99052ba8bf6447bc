package zmachine

// ReadVariable reads the value of variable n in the current frame's
// context: 0 is the top of the evaluation stack, 1..15 are locals, and
// 16..255 are globals. indirect distinguishes the seven opcodes that take
// a variable *number* as an operand (inc, dec, inc_chk, dec_chk, load,
// store, pull): for those, a reference to variable 0 peeks in place
// rather than popping.
func (vm *VM) ReadVariable(n uint8, indirect bool) uint16 {
	frame := vm.Frames.top()
	switch {
	case n == 0:
		if indirect {
			return frame.Peek(vm)
		}
		return frame.Pop(vm)
	case n < 16:
		ix := int(n) - 1
		if ix >= len(frame.Locals) {
			vm.warnOnce("bad_local_read", "read of local %d but routine only has %d", n, len(frame.Locals))
			return 0
		}
		return frame.Locals[ix]
	default:
		addr := uint32(vm.Core.GlobalsBase) + 2*uint32(n-16)
		return vm.Core.ReadWord(addr)
	}
}

// WriteVariable writes value into variable n, with the same indirect
// semantics as ReadVariable.
func (vm *VM) WriteVariable(n uint8, value uint16, indirect bool) {
	frame := vm.Frames.top()
	switch {
	case n == 0:
		if indirect {
			if len(frame.EvalStack) == 0 {
				frame.Push(value)
			} else {
				frame.EvalStack[len(frame.EvalStack)-1] = value
			}
			return
		}
		frame.Push(value)
	case n < 16:
		ix := int(n) - 1
		if ix >= len(frame.Locals) {
			vm.warnOnce("bad_local_write", "write of local %d but routine only has %d", n, len(frame.Locals))
			return
		}
		frame.Locals[ix] = value
	default:
		addr := uint32(vm.Core.GlobalsBase) + 2*uint32(n-16)
		if err := vm.Core.WriteWord(addr, value); err != nil {
			vm.warnOnce("global_write_oob", "write to global %d failed: %v", n-16, err)
		}
	}
}
