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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// opCall dispatches CALL, CALLCODE, DELEGATECALL and STATICCALL.
func (vm *VM) opCall(op OpCode) {
	hasValue := op == CALL || op == CALLCODE
	nargs := 6
	if hasValue {
		nargs = 7
	}
	args, ok := vm.peekArgs(nargs)
	if !ok {
		return
	}
	to, ok := vm.wantAddr(args[1], "call target")
	if !ok {
		return
	}

	valueW := expr.Zero
	if hasValue {
		valueW = args[2]
	}
	offBase := nargs - 4
	if op == CALL && vm.State.Static && !expr.IsZeroLit(valueW) {
		vm.fail(StateChangeWhileStatic{})
		return
	}

	if to == CheatAddress && op != DELEGATECALL {
		vm.runCheat(nargs, args)
		return
	}

	if !vm.ensureAccount(to) {
		return
	}

	inOff, ok := vm.wantUint64(args[offBase], "call input offset")
	if !ok {
		return
	}
	inSize, ok := vm.wantUint64(args[offBase+1], "call input size")
	if !ok {
		return
	}
	outOff, ok := vm.wantUint64(args[offBase+2], "call output offset")
	if !ok {
		return
	}
	outSize, ok := vm.wantUint64(args[offBase+3], "call output size")
	if !ok {
		return
	}

	var requested sevm.Gas = math.MaxInt64
	if gasLit, concrete := expr.AsLit(args[0]); concrete {
		if gasLit.IsUint64() && gasLit.Uint64() <= math.MaxInt64 {
			requested = sevm.Gas(gasLit.Uint64())
		}
	} else {
		vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: "call gas", Args: []expr.Word{args[0]}})
		return
	}

	var value sevm.W256
	if hasValue {
		lit, concrete := expr.AsLit(valueW)
		if !concrete {
			vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: "call value", Args: []expr.Word{valueW}})
			return
		}
		value = *lit
	}

	vm.popArgs(nargs)
	vm.State.Pc++

	if err := vm.accessMemoryRange(inOff, inSize); err != nil {
		vm.fail(err)
		return
	}
	if err := vm.accessMemoryRange(outOff, outSize); err != nil {
		vm.fail(err)
		return
	}

	transfersValue := hasValue && !value.IsZero()
	warm := vm.Tx.SubState.accessAddress(to)
	exists := vm.accountExists(to) || isPrecompileAddr(to)
	burned, callGas := callCost(&vm.Block.Schedule, warm, exists, transfersValue, vm.State.Gas, requested)
	if err := vm.burn(burned); err != nil {
		vm.fail(err)
		return
	}

	skipCall := func() {
		vm.State.Gas += callGas
		vm.State.ReturnData = expr.EmptyBuf
		vm.pushResult(expr.Zero)
	}

	if len(vm.Frames)+1 > maxCallDepth {
		skipCall()
		return
	}
	self := vm.State.Contract
	if transfersValue {
		if sender, ok := vm.Env.Contracts[self]; !ok || sender.Balance.Lt(&value) {
			skipCall()
			return
		}
	}

	snapContracts := snapshotContracts(vm.Env.Contracts)
	snapStorage := vm.Env.Storage
	snapSubstate := vm.Tx.SubState.clone()

	calldata := readMemory(&vm.State, inOff, inSize)

	childCaller := self
	if op == DELEGATECALL {
		childCaller = vm.State.Caller
	} else if vm.OverrideCaller != nil {
		childCaller = *vm.OverrideCaller
		vm.OverrideCaller = nil
	}
	childContract := to
	if op == CALLCODE || op == DELEGATECALL {
		childContract = self
	}
	childValue := valueW
	if op == DELEGATECALL {
		childValue = vm.State.CallValue
	} else if op == STATICCALL {
		childValue = expr.Zero
	}

	if op == CALL && transfersValue {
		if err := vm.transferValue(self, to, &value); err != nil {
			vm.fail(err)
			return
		}
	}
	vm.Tx.SubState.touchAccount(to)

	target := vm.Env.Contracts[to]
	vm.Frames = append(vm.Frames, &Frame{
		State: vm.State,
		Context: &CallContext{
			Target:        to,
			Context:       childContract,
			OutOff:        outOff,
			OutSize:       outSize,
			CodeHash:      target.CodeHash,
			Calldata:      calldata,
			Reversion:     snapContracts,
			RevertStorage: snapStorage,
			SubState:      snapSubstate,
		},
	})
	vm.traces.push(&CallTrace{
		Target:   to,
		Caller:   childCaller,
		Value:    childValue,
		Calldata: calldata,
	})

	vm.State = FrameState{
		Memory:     expr.EmptyBuf,
		Calldata:   calldata,
		CallValue:  childValue,
		Caller:     childCaller,
		Contract:   childContract,
		Code:       target.Code,
		Gas:        callGas,
		ReturnData: expr.EmptyBuf,
		Static:     vm.State.Static || op == STATICCALL,
	}
}

// opCreate dispatches CREATE and CREATE2.
func (vm *VM) opCreate(isCreate2 bool) {
	if vm.State.Static {
		vm.fail(StateChangeWhileStatic{})
		return
	}
	nargs := 3
	if isCreate2 {
		nargs = 4
	}
	args, ok := vm.popArgs(nargs)
	if !ok {
		return
	}
	valueW := args[0]
	value, concrete := expr.AsLit(valueW)
	if !concrete {
		vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: "create value", Args: []expr.Word{valueW}})
		return
	}
	off, ok := vm.wantUint64(args[1], "create code offset")
	if !ok {
		return
	}
	size, ok := vm.wantUint64(args[2], "create code size")
	if !ok {
		return
	}
	var salt sevm.W256
	if isCreate2 {
		saltLit, concrete := expr.AsLit(args[3])
		if !concrete {
			vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: "create2 salt", Args: []expr.Word{args[3]}})
			return
		}
		salt = *saltLit
	}
	vm.State.Pc++

	if err := vm.accessMemoryRange(off, size); err != nil {
		vm.fail(err)
		return
	}
	initBuf := readMemory(&vm.State, off, size)
	initCode, concrete := expr.AsConcreteBuf(initBuf)
	if !concrete {
		vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: "symbolic init code"})
		return
	}

	hashSize := uint64(0)
	if isCreate2 {
		hashSize = size
	}
	availableGas := vm.State.Gas
	cost, initGas := createCost(&vm.Block.Schedule, availableGas, hashSize)
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}

	self := vm.State.Contract
	creator := vm.currentContract()

	skipCreate := func() {
		vm.State.ReturnData = expr.EmptyBuf
		vm.pushResult(expr.Zero)
	}

	if len(vm.Frames)+1 > maxCallDepth {
		skipCreate()
		return
	}
	if creator == nil || creator.Balance.Lt(value) {
		skipCreate()
		return
	}
	if creator.Nonce == math.MaxUint64 {
		skipCreate()
		return
	}

	var newAddr sevm.Address
	if isCreate2 {
		saltBytes := salt.Bytes32()
		newAddr = sevm.Address(crypto.CreateAddress2(
			common.Address(self), saltBytes, crypto.Keccak256(initCode)))
	} else {
		newAddr = sevm.Address(crypto.CreateAddress(common.Address(self), creator.Nonce))
	}

	// EIP-684: a nonce or code at the target address is a collision.
	if existing, ok := vm.Env.Contracts[newAddr]; ok {
		hasCode := false
		if code, isRuntime := existing.Code.(*RuntimeCode); isRuntime {
			hasCode = code.Symbolic != nil || len(code.Concrete) > 0
		} else {
			hasCode = true
		}
		if existing.Nonce != 0 || hasCode {
			skipCreate()
			return
		}
	}

	if err := vm.burn(initGas); err != nil {
		vm.fail(err)
		return
	}
	creator.Nonce++
	vm.Tx.SubState.accessAddress(newAddr)

	// The reversion snapshot keeps the creator's nonce bump.
	snapContracts := snapshotContracts(vm.Env.Contracts)
	snapStorage := vm.Env.Storage
	snapSubstate := vm.Tx.SubState.clone()

	createe := NewContract(&InitCode{Code: initCode})
	createe.Nonce = 1
	if balance, ok := vm.Env.Contracts[newAddr]; ok {
		createe.Balance = balance.Balance
	}
	vm.Env.Contracts[newAddr] = createe
	if err := vm.transferValue(self, newAddr, value); err != nil {
		vm.fail(err)
		return
	}
	vm.Tx.SubState.touchAccount(newAddr)

	vm.Frames = append(vm.Frames, &Frame{
		State: vm.State,
		Context: &CreationContext{
			Addr:          newAddr,
			CodeHash:      createe.CodeHash,
			Reversion:     snapContracts,
			RevertStorage: snapStorage,
			SubState:      snapSubstate,
		},
	})
	vm.traces.push(&CreateTrace{Addr: newAddr})

	vm.State = FrameState{
		Memory:     expr.EmptyBuf,
		Calldata:   expr.EmptyBuf,
		CallValue:  valueW,
		Caller:     self,
		Contract:   newAddr,
		Code:       createe.Code,
		Gas:        initGas,
		ReturnData: expr.EmptyBuf,
		Static:     vm.State.Static,
	}
}
