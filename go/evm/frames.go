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
	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// frameResult describes how a frame ends.
type frameResult interface {
	isFrameResult()
}

type frameReturned struct {
	output expr.Buf
}

type frameReverted struct {
	output expr.Buf
}

type frameErrored struct {
	err error
}

func (frameReturned) isFrameResult() {}
func (frameReverted) isFrameResult() {}
func (frameErrored) isFrameResult()  {}

// fail unwinds the current frame with an error. It is the sole failure
// entry point of the engine.
func (vm *VM) fail(err error) {
	vm.finishFrame(frameErrored{err: err})
}

// finishFrame pops the current frame, either terminating the VM or
// reinstalling the parent state with the call result applied.
func (vm *VM) finishFrame(how frameResult) {
	switch result := how.(type) {
	case frameReturned:
		vm.traces.pop(&ReturnTrace{Output: result.output})
	case frameReverted:
		vm.traces.pop(&ReturnTrace{Output: result.output, Reverted: true})
	case frameErrored:
		vm.traces.pop(&ErrorTrace{Err: result.err})
	}

	// An errored frame consumes everything it was given.
	if _, errored := how.(frameErrored); errored {
		vm.Burned += vm.State.Gas
		vm.State.Gas = 0
	}

	if len(vm.Frames) == 0 {
		switch result := how.(type) {
		case frameReturned:
			vm.Result = &Result{Output: result.output}
		case frameReverted:
			vm.Result = &Result{Output: result.output, Err: Revert{Output: result.output}}
		case frameErrored:
			vm.Result = &Result{Err: result.err}
		}
		vm.finalize()
		return
	}

	finished := vm.State
	nextFrame := vm.Frames[len(vm.Frames)-1]
	vm.Frames = vm.Frames[:len(vm.Frames)-1]

	// Reclaim the unused gas allowance into the parent.
	remaining := finished.Gas
	vm.reclaim(remaining)
	vm.State = nextFrame.State
	vm.State.Gas += remaining

	switch context := nextFrame.Context.(type) {
	case *CallContext:
		vm.popCallFrame(context, how)
	case *CreationContext:
		vm.popCreationFrame(context, how)
	}
}

func (vm *VM) popCallFrame(context *CallContext, how frameResult) {
	switch result := how.(type) {
	case frameReturned:
		vm.State.ReturnData = result.output
		vm.copyCallOutput(result.output, context.OutOff, context.OutSize)
		vm.pushResult(expr.One)

	case frameReverted:
		vm.revertTo(context.Reversion, context.RevertStorage, context.SubState)
		vm.State.ReturnData = result.output
		vm.copyCallOutput(result.output, context.OutOff, context.OutSize)
		vm.pushResult(expr.Zero)

	case frameErrored:
		vm.revertTo(context.Reversion, context.RevertStorage, context.SubState)
		vm.State.ReturnData = expr.EmptyBuf
		vm.pushResult(expr.Zero)
	}
}

func (vm *VM) popCreationFrame(context *CreationContext, how frameResult) {
	switch result := how.(type) {
	case frameReturned:
		vm.replaceCode(context.Addr, result.output)
		vm.State.ReturnData = expr.EmptyBuf
		vm.pushResult(expr.LitAddr(context.Addr))

	case frameReverted:
		// The creator's nonce bump survives; the snapshot was taken after
		// the increment.
		vm.revertTo(context.Reversion, context.RevertStorage, context.SubState)
		vm.State.ReturnData = result.output
		vm.pushResult(expr.Zero)

	case frameErrored:
		vm.revertTo(context.Reversion, context.RevertStorage, context.SubState)
		vm.State.ReturnData = expr.EmptyBuf
		vm.pushResult(expr.Zero)
	}
}

// pushResult places the call/create result onto the parent stack. The
// parent reserved the slot when it consumed the call arguments, so the
// stack limit cannot be hit here.
func (vm *VM) pushResult(w expr.Word) {
	vm.State.Stack = append(vm.State.Stack, w)
}

// copyCallOutput writes min(outSize, |output|) bytes of the call output
// into the caller's return area.
func (vm *VM) copyCallOutput(output expr.Buf, outOff, outSize uint64) {
	size := outSize
	if n, ok := expr.StaticLength(output); ok && n < size {
		size = n
	}
	copyBytesToMemory(&vm.State, output, 0, outOff, size)
}

// revertTo restores the world to the snapshots taken at frame entry. The
// ripemd160 precompile address stays touched across reverts, as required
// by Yellow Paper appendix K.
func (vm *VM) revertTo(
	contracts map[sevm.Address]*Contract,
	storage expr.Storage,
	substate Substate,
) {
	var ripemd sevm.Address
	ripemd[19] = 3
	ripemdTouched := false
	for _, addr := range vm.Tx.SubState.TouchedAccounts {
		if addr == ripemd {
			ripemdTouched = true
			break
		}
	}

	vm.Env.Contracts = snapshotContracts(contracts)
	if storage != nil {
		vm.Env.Storage = storage
	}
	vm.Tx.SubState = substate.clone()

	if ripemdTouched {
		vm.Tx.SubState.touchAccount(ripemd)
	}
}

// replaceCode installs runtime code at a freshly created account.
func (vm *VM) replaceCode(addr sevm.Address, output expr.Buf) {
	target, ok := vm.Env.Contracts[addr]
	if !ok {
		return
	}
	var code ContractCode
	if bytes, concrete := expr.AsConcreteBuf(output); concrete {
		code = &RuntimeCode{Concrete: bytes}
	} else {
		size, _ := expr.StaticLength(output)
		symbolic := make([]expr.Byte, size)
		for i := range symbolic {
			symbolic[i] = expr.NewReadByte(expr.LitU64(uint64(i)), output)
		}
		code = &RuntimeCode{Symbolic: symbolic}
	}
	fresh := NewContract(code)
	fresh.Balance = target.Balance
	fresh.Nonce = target.Nonce
	fresh.External = target.External
	vm.Env.Contracts[addr] = fresh
}

// transferValue moves balance between two accounts.
func (vm *VM) transferValue(from, to sevm.Address, value *sevm.W256) error {
	if value.IsZero() {
		return nil
	}
	sender, ok := vm.Env.Contracts[from]
	if !ok || sender.Balance.Lt(value) {
		have := sevm.W256{}
		if ok {
			have = sender.Balance
		}
		return BalanceTooLow{Have: have, Want: *value}
	}
	sender.Balance.Sub(&sender.Balance, value)
	recipient, ok := vm.Env.Contracts[to]
	if !ok {
		recipient = emptyContract()
		vm.Env.Contracts[to] = recipient
	}
	recipient.Balance.Add(&recipient.Balance, value)
	return nil
}
