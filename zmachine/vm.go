// Package zmachine implements the Z-machine virtual machine: the call
// frame stack, instruction decoder, opcode dispatch table, run loop, and
// save/restore serializer built on top of zmem/zobject/zdict/zstring.
package zmachine

import (
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/kestrelvm/zmachine/zdict"
	"github.com/kestrelvm/zmachine/zmem"
	"github.com/kestrelvm/zmachine/zstring"
)

// yieldEvery is how many instructions the run loop executes before handing
// control back to the host.
const yieldEvery = 100

// VM owns the interpreter's entire mutable state: memory, frame stack,
// dictionary, alphabets, injected IO, and the PRNG `random` drives.
type VM struct {
	Core       *zmem.Core
	Frames     CallStack
	Dictionary *zdict.Dictionary
	Alphabets  *zstring.Alphabets

	Screen  Screen
	Input   Input
	Storage Storage

	Diagnostics chan<- interface{}

	rng *rand.Rand

	GameRunning          bool
	currentInstructionPC uint32
	warned               map[string]bool
	pristineDynamic      []byte

	currentWindow       uint16
	lowerWindowActive   bool
	upperWindowHeight   int
	streamScreenEnabled bool
	transcriptEnabled   bool
	memoryStreams       []memStream
}

// LoadStory builds a fresh VM from a story file's bytes plus its injected
// collaborators.
func LoadStory(storyFile []byte, screen Screen, input Input, storage Storage, diagnostics chan<- interface{}) (*VM, error) {
	core, err := zmem.Load(storyFile)
	if err != nil {
		return nil, fmt.Errorf("zmachine: %w", err)
	}

	alphabets := &zstring.Default

	vm := &VM{
		Core:        core,
		Alphabets:   alphabets,
		Screen:      screen,
		Input:       input,
		Storage:     storage,
		Diagnostics: diagnostics,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		GameRunning: true,

		lowerWindowActive:   true,
		streamScreenEnabled: true,
	}

	if core.DictionaryBase != 0 {
		vm.Dictionary = zdict.Parse(core, uint32(core.DictionaryBase))
	}

	pristine := make([]byte, core.StaticMemoryBase)
	copy(pristine, core.Slice(0, uint32(core.StaticMemoryBase)))
	vm.pristineDynamic = pristine

	root := &Frame{PC: uint32(core.InitialPC), Locals: nil}
	if err := vm.Frames.push(root); err != nil {
		return nil, fmt.Errorf("zmachine: %w", err)
	}

	return vm, nil
}

// Run executes instructions until the story quits, a fatal error occurs,
// or the host stops the loop by clearing GameRunning between yields.
func (vm *VM) Run() error {
	count := 0
	for vm.GameRunning {
		if err := vm.Step(); err != nil {
			return err
		}
		count++
		if count%yieldEvery == 0 {
			runtime.Gosched()
		}
	}
	return nil
}

// Step decodes and executes exactly one instruction.
func (vm *VM) Step() error {
	frame := vm.Frames.top()
	vm.currentInstructionPC = frame.PC

	instr := decodeOpcode(vm.Core, frame)

	if instr.Form == ExtForm {
		return vm.fatal(fmt.Sprintf("extended opcode %d not implemented", instr.Number), instr.OpcodeByte)
	}

	meta, ok := lookupOpcode(instr.Count, instr.Number)
	if !ok {
		return vm.fatal(fmt.Sprintf("unknown opcode %d (count=%v)", instr.Number, instr.Count), instr.OpcodeByte)
	}

	if meta.HasStore {
		instr.StoreVar = vm.Core.ReadByte(frame.PC)
		frame.PC++
	}
	if meta.HasBranch {
		instr.Branch = decodeBranch(vm.Core, frame)
	}

	result, err := meta.Handler(vm, frame, &instr)
	if err != nil {
		return vm.fatal(err.Error(), instr.OpcodeByte)
	}

	if result.terminate {
		vm.GameRunning = false
		return nil
	}

	if meta.HasStore && result.hasStoreValue {
		vm.WriteVariable(instr.StoreVar, result.storeValue, false)
	}
	if meta.HasBranch && result.hasBranchPredicate {
		// The handler may have replaced the frame stack wholesale (restore
		// does this on success), so frame can no longer be trusted: fetch
		// whatever is actually live before applying the branch to it.
		vm.applyBranch(vm.Frames.top(), instr.Branch, result.branchPredicate)
	}

	return nil
}

// applyBranch: if the predicate matches the branch's sense, offsets 0/1
// special-case to rfalse/rtrue, otherwise PC jumps.
func (vm *VM) applyBranch(frame *Frame, b BranchSuffix, predicate bool) {
	if predicate != b.BranchOnTrue {
		return
	}
	switch b.Offset {
	case 0:
		vm.doReturn(0)
	case 1:
		vm.doReturn(1)
	default:
		frame.PC = uint32(int64(frame.PC) + int64(b.Offset) - 2)
	}
}

// doReturn pops the current frame and, if its caller was waiting on a
// result, writes the returned value into that caller's variable.
func (vm *VM) doReturn(value uint16) {
	oldFrame, err := vm.Frames.pop()
	if err != nil {
		vm.GameRunning = false
		if vm.Diagnostics != nil {
			vm.Diagnostics <- RuntimeError{PC: vm.currentInstructionPC, Tag: "frame_underflow_on_return"}
		}
		return
	}
	if oldFrame.HasResult {
		vm.WriteVariable(oldFrame.ResultVar, value, false)
	}
}

// asSigned and asUnsigned are the only two conversions in the executor:
// all 16-bit values are stored unsigned, reinterpreted as signed only at
// the specific sites that need signed arithmetic.
func asSigned(v uint16) int16    { return int16(v) }
func asUnsigned(v int16) uint16  { return uint16(v) }
func asSigned32(v uint16) int32  { return int32(int16(v)) }
