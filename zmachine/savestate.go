package zmachine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// saveMagic is the four-byte signature every save file starts with.
var saveMagic = [4]byte{'Z', 'S', 'A', 'V'}

const maxLocals = 15

// saveGame serializes the VM to name via Storage, returning true on
// success. Failure (including no Storage configured) is a recoverable,
// non-fatal condition signaled through the `save` opcode's branch bit.
func (vm *VM) saveGame(name string) bool {
	if vm.Storage == nil {
		vm.emitWarning("save requested but no Storage is configured")
		return false
	}

	data, err := vm.encodeSaveState()
	if err != nil {
		vm.emitWarning(fmt.Sprintf("save failed: %v", err))
		return false
	}

	w, err := vm.Storage.OpenSaveForWrite(name)
	if err != nil {
		vm.emitWarning(fmt.Sprintf("save failed: %v", err))
		return false
	}
	defer w.Close()

	if _, err := w.Write(data); err != nil {
		vm.emitWarning(fmt.Sprintf("save failed: %v", err))
		return false
	}
	return true
}

// restoreGame loads name via Storage and replaces VM state on success,
// leaving the VM untouched on any failure.
func (vm *VM) restoreGame(name string) bool {
	if vm.Storage == nil {
		vm.emitWarning("restore requested but no Storage is configured")
		return false
	}

	raw, err := vm.Storage.OpenSaveForRead(name)
	if err != nil {
		vm.emitWarning(fmt.Sprintf("restore failed: %v", err))
		return false
	}

	if err := vm.decodeSaveState(raw); err != nil {
		vm.emitWarning(fmt.Sprintf("restore failed: %v", err))
		return false
	}
	return true
}

func (vm *VM) encodeSaveState() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(saveMagic[:])
	buf.WriteByte(vm.Core.Version)

	pc := vm.Frames.top().PC
	writeU16(&buf, uint16(pc))

	dynSize := vm.Core.StaticMemoryBase
	writeU16(&buf, dynSize)
	buf.Write(vm.Core.Slice(0, uint32(dynSize)))

	writeU16(&buf, uint16(vm.Frames.depth()))
	for _, f := range vm.Frames.frames {
		record := encodeFrame(f)
		writeU16(&buf, uint16(len(record)))
		buf.Write(record)
	}

	return buf.Bytes(), nil
}

func encodeFrame(f *Frame) []byte {
	var buf bytes.Buffer
	writeU32(&buf, f.PC)

	hasResult := byte(0)
	if f.HasResult {
		hasResult = 1
	}
	buf.WriteByte(hasResult)
	buf.WriteByte(f.ResultVar)
	buf.WriteByte(uint8(f.ArgCount))
	buf.WriteByte(uint8(len(f.Locals)))

	for i := 0; i < maxLocals; i++ {
		var v uint16
		if i < len(f.Locals) {
			v = f.Locals[i]
		}
		writeU16(&buf, v)
	}

	writeU16(&buf, uint16(len(f.EvalStack)))
	for _, v := range f.EvalStack {
		writeU16(&buf, v)
	}

	return buf.Bytes()
}

func (vm *VM) decodeSaveState(data []byte) error {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != saveMagic {
		return fmt.Errorf("bad magic, not a ZSAV file")
	}

	version, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("truncated save: %w", err)
	}
	if version != vm.Core.Version {
		return fmt.Errorf("save is for version %d, loaded story is version %d", version, vm.Core.Version)
	}

	pc, err := readU16(r)
	if err != nil {
		return err
	}

	dynSize, err := readU16(r)
	if err != nil {
		return err
	}
	dynBytes := make([]byte, dynSize)
	if _, err := io.ReadFull(r, dynBytes); err != nil {
		return fmt.Errorf("truncated dynamic memory: %w", err)
	}

	frameCount, err := readU16(r)
	if err != nil {
		return err
	}
	frames := make([]*Frame, 0, frameCount)
	for i := uint16(0); i < frameCount; i++ {
		recLen, err := readU16(r)
		if err != nil {
			return err
		}
		rec := make([]byte, recLen)
		if _, err := io.ReadFull(r, rec); err != nil {
			return fmt.Errorf("truncated frame record: %w", err)
		}
		frame, err := decodeFrame(rec)
		if err != nil {
			return err
		}
		frames = append(frames, frame)
	}
	if len(frames) == 0 {
		return fmt.Errorf("save file has no frames")
	}

	// Only now, with the whole file parsed successfully, mutate live state.
	for i := 0; i < len(dynBytes); i++ {
		_ = vm.Core.WriteByte(uint32(i), dynBytes[i])
	}
	frames[len(frames)-1].PC = uint32(pc)
	vm.Frames.frames = frames

	return nil
}

func decodeFrame(rec []byte) (*Frame, error) {
	r := bytes.NewReader(rec)
	pc, err := readU32(r)
	if err != nil {
		return nil, err
	}
	hasResult, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	resultVar, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	argCount, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	localCount, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	allLocals := make([]uint16, maxLocals)
	for i := 0; i < maxLocals; i++ {
		v, err := readU16(r)
		if err != nil {
			return nil, err
		}
		allLocals[i] = v
	}

	evalDepth, err := readU16(r)
	if err != nil {
		return nil, err
	}
	evalStack := make([]uint16, evalDepth)
	for i := range evalStack {
		v, err := readU16(r)
		if err != nil {
			return nil, err
		}
		evalStack[i] = v
	}

	return &Frame{
		PC:        pc,
		Locals:    allLocals[:localCount],
		EvalStack: evalStack,
		ResultVar: resultVar,
		HasResult: hasResult != 0,
		ArgCount:  int(argCount),
	}, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("truncated save: %w", err)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("truncated save: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// restart resets dynamic memory and the call stack, used by the `restart`
// opcode. It does not reload the story file from Storage — only the
// dynamic region the VM itself ever mutates needs resetting.
func (vm *VM) restart() {
	for i := 0; i < len(vm.pristineDynamic); i++ {
		_ = vm.Core.WriteByte(uint32(i), vm.pristineDynamic[i])
	}
	vm.Frames.frames = []*Frame{{PC: uint32(vm.Core.InitialPC)}}
}
