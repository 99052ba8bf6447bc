package zmachine

import (
	"math/rand"
	"time"
)

func (vm *VM) seedRNG(seed int64) {
	vm.rng = rand.New(rand.NewSource(seed))
}

func (vm *VM) seedRNGFromClock() {
	vm.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
}
