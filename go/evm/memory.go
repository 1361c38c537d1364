// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package evm

import (
	"math"

	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// maxMemoryExpansionSize bounds memory growth; beyond it the expansion cost
// saturates and execution runs out of gas instead of overflowing the cost
// arithmetic.
const maxMemoryExpansionSize = 0x1FFFFFFFE0

func toValidMemorySize(size uint64) uint64 {
	fullWordsSize := sevm.SizeInWords(size) * 32
	if size != 0 && fullWordsSize < size {
		return math.MaxUint64
	}
	return fullWordsSize
}

// memoryCost is the total cost of a memory of the given size:
// g_memory * words + words^2 / 512.
func memoryCost(fees *sevm.FeeSchedule, size uint64) sevm.Gas {
	if size > maxMemoryExpansionSize {
		return sevm.Gas(math.MaxInt64)
	}
	words := sevm.SizeInWords(size)
	return sevm.Gas(words)*fees.GMemory + sevm.Gas(words*words/512)
}

// accessMemoryRange grows memory to cover [off, off+size), billing the
// expansion cost delta. An offset plus size that does not fit into 64 bits
// fails with IllegalOverflow.
func (vm *VM) accessMemoryRange(off, size uint64) error {
	if size == 0 {
		return nil
	}
	needed := off + size
	if needed < off {
		return IllegalOverflow{}
	}
	if needed <= vm.State.MemorySize {
		return nil
	}
	fees := &vm.Block.Schedule
	cost := memoryCost(fees, needed) - memoryCost(fees, vm.State.MemorySize)
	if err := vm.burn(cost); err != nil {
		return err
	}
	vm.State.MemorySize = toValidMemorySize(needed)
	return nil
}

// accessMemoryWord covers the 32-byte word at off.
func (vm *VM) accessMemoryWord(off uint64) error {
	return vm.accessMemoryRange(off, 32)
}

// readMemory reads [off, off+size) of the current frame's memory as a
// buffer expression.
func readMemory(state *FrameState, off, size uint64) expr.Buf {
	return expr.NewCopySlice(
		expr.LitU64(off), expr.Zero, expr.LitU64(size),
		state.Memory, expr.EmptyBuf)
}

// copyBytesToMemory copies size bytes from src at srcOff into memory at
// memOff.
func copyBytesToMemory(state *FrameState, src expr.Buf, srcOff, memOff, size uint64) {
	if size == 0 {
		return
	}
	state.Memory = expr.NewCopySlice(
		expr.LitU64(srcOff), expr.LitU64(memOff), expr.LitU64(size),
		src, state.Memory)
}
