package zmachine

import "github.com/kestrelvm/zmachine/zmem"

// OperandType is the 2-bit operand-type tag attached to every operand slot.
type OperandType uint8

const (
	LargeConstant OperandType = 0b00
	SmallConstant OperandType = 0b01
	VariableRef   OperandType = 0b10
	Omitted       OperandType = 0b11
)

// OpcodeForm is which of the three encodings (plus the V5+ extended stub)
// produced an instruction.
type OpcodeForm uint8

const (
	LongForm OpcodeForm = iota
	ShortForm
	VarForm
	ExtForm
)

// OperandCount classifies an opcode by how many operands its form implies,
// which together with the opcode number is the dispatch key.
type OperandCount uint8

const (
	OP0 OperandCount = iota
	OP1
	OP2
	VAR
)

// Operand is one decoded operand: its encoded type and raw 16-bit value.
// For a VariableRef operand, Raw is the variable *number*, not its value —
// callers resolve via Value(vm). The handful of opcodes that name a
// variable by number rather than by value (inc, dec, load, store, pull,
// and the _chk family) also resolve their first operand via Value(vm) and
// then treat the result as the number of the variable to read or write.
type Operand struct {
	Type OperandType
	Raw  uint16
}

// Value resolves an operand to its effective 16-bit value: constants
// return themselves, a variable reference reads (and, for the stack,
// pops) that variable.
func (o Operand) Value(vm *VM) uint16 {
	if o.Type == VariableRef {
		return vm.ReadVariable(uint8(o.Raw), false)
	}
	return o.Raw
}

// Instruction is one fully-decoded opcode, operands included. StoreVar and
// Branch are filled in by the executor after consulting the opcode's
// dispatch metadata, not by the decoder itself: whether a suffix follows
// is a property of the opcode table entry, not something the decoder can
// know from the bytes alone.
type Instruction struct {
	Form      OpcodeForm
	Count     OperandCount
	Number    uint8
	OpcodeByte uint8
	Operands  []Operand
	StoreVar  uint8
	Branch    BranchSuffix
}

// BranchSuffix is a decoded branch suffix.
type BranchSuffix struct {
	Present       bool
	BranchOnTrue  bool
	Offset        int32
}

// decodeOpcode reads one opcode and its operands (but not the store or
// branch suffix) starting at frame.PC, advancing frame.PC past them.
func decodeOpcode(core *zmem.Core, frame *Frame) Instruction {
	opcodeByte := core.ReadByte(frame.PC)
	frame.PC++

	instr := Instruction{OpcodeByte: opcodeByte}

	if opcodeByte == 0xbe && core.Version >= zmem.V5 {
		// Extended form: opcode number is the following byte, always VAR
		// operand-counted. Unreachable on V3 stories; kept for the V5/V8 hook.
		opcodeByte = core.ReadByte(frame.PC)
		frame.PC++
		instr.Form = ExtForm
		instr.Number = opcodeByte
		instr.Count = VAR
		decodeVariableOperands(core, frame, &instr)
		return instr
	}

	instr.Form = OpcodeForm(opcodeByte >> 6)

	switch {
	case opcodeByte>>6 == 0b11: // Variable form
		instr.Form = VarForm
		instr.Number = opcodeByte & 0b1_1111
		if (opcodeByte>>5)&1 == 0 {
			instr.Count = OP2
		} else {
			instr.Count = VAR
		}
		decodeVariableOperands(core, frame, &instr)

	case opcodeByte>>6 == 0b10: // Short form
		instr.Form = ShortForm
		instr.Number = opcodeByte & 0b1111
		operandType := OperandType((opcodeByte >> 4) & 0b11)
		switch operandType {
		case LargeConstant:
			instr.Count = OP1
			v := core.ReadWord(frame.PC)
			frame.PC += 2
			instr.Operands = append(instr.Operands, Operand{Type: LargeConstant, Raw: v})
		case SmallConstant, VariableRef:
			instr.Count = OP1
			v := core.ReadByte(frame.PC)
			frame.PC++
			instr.Operands = append(instr.Operands, Operand{Type: operandType, Raw: uint16(v)})
		case Omitted:
			instr.Count = OP0
		}

	default: // Long form, top bit 0
		instr.Form = LongForm
		instr.Number = opcodeByte & 0b1_1111
		instr.Count = OP2

		op1Type := SmallConstant
		if (opcodeByte>>6)&1 == 1 {
			op1Type = VariableRef
		}
		op2Type := SmallConstant
		if (opcodeByte>>5)&1 == 1 {
			op2Type = VariableRef
		}
		for _, t := range []OperandType{op1Type, op2Type} {
			v := core.ReadByte(frame.PC)
			frame.PC++
			instr.Operands = append(instr.Operands, Operand{Type: t, Raw: uint16(v)})
		}
	}

	return instr
}

// decodeVariableOperands scans one operand-type byte (up to four
// operands), stopping at the first Omitted slot. The second operand-type
// byte that V5+ `call_vs2`/`call_vn2` carry is not read.
func decodeVariableOperands(core *zmem.Core, frame *Frame, instr *Instruction) {
	typeByte := core.ReadByte(frame.PC)
	frame.PC++

	for slot := 0; slot < 4; slot++ {
		t := OperandType((typeByte >> (2 * (3 - slot))) & 0b11)
		if t == Omitted {
			return
		}
		switch t {
		case LargeConstant:
			v := core.ReadWord(frame.PC)
			frame.PC += 2
			instr.Operands = append(instr.Operands, Operand{Type: t, Raw: v})
		case SmallConstant, VariableRef:
			v := core.ReadByte(frame.PC)
			frame.PC++
			instr.Operands = append(instr.Operands, Operand{Type: t, Raw: uint16(v)})
		}
	}
}

// decodeBranch reads a branch suffix.
func decodeBranch(core *zmem.Core, frame *Frame) BranchSuffix {
	b0 := core.ReadByte(frame.PC)
	frame.PC++

	branchOnTrue := (b0>>7)&1 == 1
	shortOffset := (b0>>6)&1 == 1

	var offset int32
	if shortOffset {
		offset = int32(b0 & 0b11_1111)
	} else {
		b1 := core.ReadByte(frame.PC)
		frame.PC++
		raw := uint16(b0&0b11_1111)<<8 | uint16(b1)
		offset = int32(signExtend14(raw))
	}

	return BranchSuffix{Present: true, BranchOnTrue: branchOnTrue, Offset: offset}
}

func signExtend14(v uint16) int16 {
	if v&0x2000 != 0 {
		return int16(v | 0xC000)
	}
	return int16(v)
}
