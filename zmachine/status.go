package zmachine

import (
	"fmt"

	"github.com/kestrelvm/zmachine/zobject"
)

// isTimeGame reports whether flags1 bit 1 marks this a time-based status
// line ("HH:MM") rather than score/moves.
func (vm *VM) isTimeGame() bool {
	return vm.Core.Flags1&0b0000_0010 != 0
}

// showStatusLine implements `show_status` (V3 only): the left half is the
// current location's short name (global 0 holds its object number); the
// right half is score/moves or a clock, depending on the story's genre bit.
func (vm *VM) showStatusLine() {
	locationObj := vm.ReadVariable(16, false)
	left := ""
	if locationObj != 0 {
		if obj, err := zobject.Get(vm.Core, locationObj); err == nil {
			left = obj.ShortName(vm.Alphabets)
		}
	}

	var right string
	if vm.isTimeGame() {
		hours := int16(vm.ReadVariable(17, false))
		minutes := int16(vm.ReadVariable(18, false))
		right = fmt.Sprintf("%02d:%02d", hours, minutes)
	} else {
		score := asSigned(vm.ReadVariable(17, false))
		moves := asSigned(vm.ReadVariable(18, false))
		right = fmt.Sprintf("Score: %d Moves: %d", score, moves)
	}

	vm.Screen.ShowStatus(left, right, true)
}
