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
	"testing"

	"github.com/holiman/uint256"

	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

var calleeAddr = sevm.HexToAddress("0x00000000000000000000000000000000000000ee")

// callProgramTo builds a caller that invokes the given target with the given
// opcode and no calldata, forwarding a fixed gas budget, and then stops with
// the call's success flag on the stack.
func callProgramTo(op OpCode, target byte) []byte {
	code := []byte{
		0x60, 0x00, // out size
		0x60, 0x00, // out offset
		0x60, 0x00, // in size
		0x60, 0x00, // in offset
	}
	if op == CALL || op == CALLCODE {
		code = append(code, 0x60, 0x00) // value
	}
	code = append(code,
		0x60, target, // target
		0x62, 0x0f, 0x42, 0x40, // PUSH3 1000000: requested gas
		byte(op),
		0x00,
	)
	return code
}

func callProgram(op OpCode) []byte {
	return callProgramTo(op, calleeAddr[19])
}

// installCallee places a contract with the given code at calleeAddr.
func installCallee(vm *VM, code []byte) *Contract {
	callee := NewContract(&RuntimeCode{Concrete: code})
	vm.Env.Contracts[calleeAddr] = callee
	return callee
}

func TestCall_ReturnedOutputReachesCaller(t *testing.T) {
	// Callee: PUSH1 42, PUSH1 0, MSTORE, PUSH1 32, PUSH1 0, RETURN
	// Caller copies 32 output bytes to memory offset 0 and loads them.
	caller := []byte{
		0x60, 0x20, // out size
		0x60, 0x00, // out offset
		0x60, 0x00, // in size
		0x60, 0x00, // in offset
		0x60, 0x00, // value
		0x60, calleeAddr[19],
		0x62, 0x0f, 0x42, 0x40,
		0xf1,       // CALL
		0x60, 0x00, // MLOAD the copied output
		0x51,
		0x00,
	}
	vm := testVM(caller)
	installCallee(vm, []byte{0x60, 0x2a, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3})
	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("expected success, got %v", vm.Result.Err)
	}
	wantLit(t, stackTop(t, vm), 42)
	if want, got := 2, len(vm.State.Stack); want != got {
		t.Fatalf("expected %d stack entries, got %d", want, got)
	}
	wantLit(t, vm.State.Stack[0], 1) // the call's success flag

	data, ok := expr.AsConcreteBuf(vm.State.ReturnData)
	if !ok || len(data) != 32 || data[31] != 42 {
		t.Errorf("expected the callee output in the return buffer")
	}
}

func TestStaticCall_SstoreInCalleeRevertsCallee(t *testing.T) {
	vm := testVM(callProgram(STATICCALL))
	installCallee(vm, []byte{0x60, 0xff, 0x60, 0x00, 0x55, 0x00})
	storageBefore := vm.Env.Storage
	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("the caller must survive the callee's failure, got %v", vm.Result.Err)
	}
	wantLit(t, stackTop(t, vm), 0)
	if !expr.EqualStorage(storageBefore, vm.Env.Storage) {
		t.Errorf("no storage change may persist after the static violation")
	}
}

func TestStaticCall_PropagatesToNestedFrames(t *testing.T) {
	writer := sevm.HexToAddress("0x00000000000000000000000000000000000000dd")
	vm := testVM(callProgram(STATICCALL))
	// The static callee forwards into a storage writer via a plain CALL.
	installCallee(vm, callProgramTo(CALL, writer[19]))
	vm.Env.Contracts[writer] = NewContract(&RuntimeCode{
		Concrete: []byte{0x60, 0x01, 0x60, 0x00, 0x55, 0x00},
	})

	for vm.Result == nil && len(vm.Frames) < 2 {
		vm.Step()
	}
	if len(vm.Frames) != 2 {
		t.Fatalf("expected to reach the writer frame, got depth %d", len(vm.Frames))
	}
	if !vm.State.Static {
		t.Errorf("the static flag must propagate through nested calls")
	}

	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("expected the root frame to finish, got %v", vm.Result.Err)
	}
	// The inner write failed quietly; the static call itself returned.
	wantLit(t, stackTop(t, vm), 1)
	if !expr.EqualStorage(expr.EmptyStorage, vm.Env.Storage) {
		t.Errorf("no storage change may persist")
	}
}

func TestCall_ValueTransferMovesBalance(t *testing.T) {
	caller := []byte{
		0x60, 0x00, // out size
		0x60, 0x00, // out offset
		0x60, 0x00, // in size
		0x60, 0x00, // in offset
		0x60, 0x07, // value
		0x60, calleeAddr[19],
		0x62, 0x0f, 0x42, 0x40,
		0xf1,
		0x00,
	}
	vm := testVM(caller)
	// Move the coinbase off the caller's address, so the block reward paid
	// at finalization does not land on the caller's balance.
	vm.Block.Coinbase = sevm.HexToAddress("0x00000000000000000000000000000000000000c0")
	vm.currentContract().Balance = *uint256.NewInt(10)
	callee := installCallee(vm, []byte{0x00})
	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("expected success, got %v", vm.Result.Err)
	}
	wantLit(t, stackTop(t, vm), 1)
	if want, got := uint64(7), callee.Balance.Uint64(); want != got {
		t.Errorf("expected the callee balance %d, got %d", want, got)
	}
	if want, got := uint64(3), vm.currentContract().Balance.Uint64(); want != got {
		t.Errorf("expected the caller balance %d, got %d", want, got)
	}
}

func TestCall_InsufficientBalancePushesZero(t *testing.T) {
	caller := []byte{
		0x60, 0x00,
		0x60, 0x00,
		0x60, 0x00,
		0x60, 0x00,
		0x60, 0x07, // value exceeding the balance
		0x60, calleeAddr[19],
		0x62, 0x0f, 0x42, 0x40,
		0xf1,
		0x00,
	}
	vm := testVM(caller)
	installCallee(vm, []byte{0x00})
	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("expected the caller to continue, got %v", vm.Result.Err)
	}
	wantLit(t, stackTop(t, vm), 0)
}

func TestCall_DepthLimitPushesZero(t *testing.T) {
	vm := testVM(callProgram(CALL))
	installCallee(vm, []byte{0x00})
	vm.Frames = make([]*Frame, maxCallDepth)
	for i := range vm.Frames {
		vm.Frames[i] = &Frame{Context: &CallContext{}}
	}
	vm.Step() // the pushes
	for i := 0; i < 6; i++ {
		vm.Step()
	}
	vm.Step() // CALL
	if vm.Result != nil {
		t.Fatalf("unexpected halt: %v", vm.Result.Err)
	}
	if want, got := maxCallDepth, len(vm.Frames); want != got {
		t.Fatalf("no frame may be pushed at the depth limit")
	}
	wantLit(t, stackTop(t, vm), 0)
}

func TestDelegateCall_KeepsCallerAndValue(t *testing.T) {
	// The test stops as soon as the delegate frame is entered and inspects
	// its caller, call value and contract.
	vm := NewVM(VmOpts{
		Contract: NewContract(&RuntimeCode{Concrete: callProgram(DELEGATECALL)}),
		Caller:   sevm.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Value:    expr.LitU64(99),
		Gas:      testGas,
		GasLimit: testGas,
		Schedule: sevm.LondonFees,
	})
	installCallee(vm, []byte{0x00})
	for vm.Result == nil && len(vm.Frames) == 0 {
		vm.Step()
	}
	if len(vm.Frames) != 1 {
		t.Fatalf("expected the delegate frame to be live")
	}
	if want, got := vm.Frames[0].State.Caller, vm.State.Caller; want != got {
		t.Errorf("DELEGATECALL must keep the parent caller, got %v", got)
	}
	wantLit(t, vm.State.CallValue, 99)
	if want, got := vm.Frames[0].State.Contract, vm.State.Contract; want != got {
		t.Errorf("DELEGATECALL must keep the parent storage context, got %v", got)
	}
}

func TestCreate_InstallsRuntimeCode(t *testing.T) {
	// Init code returning the single byte 0x00 as runtime code:
	// PUSH1 0, PUSH1 0, MSTORE8, PUSH1 1, PUSH1 0, RETURN
	initCode := []byte{0x60, 0x00, 0x60, 0x00, 0x53, 0x60, 0x01, 0x60, 0x00, 0xf3}

	// Caller: write the init code into memory byte by byte, then CREATE.
	var caller []byte
	for i, b := range initCode {
		caller = append(caller, 0x60, b, 0x60, byte(i), 0x53)
	}
	caller = append(caller,
		0x60, byte(len(initCode)), // size
		0x60, 0x00, // offset
		0x60, 0x00, // value
		0xf0,
		0x00,
	)
	vm := testVM(caller)
	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("expected success, got %v", vm.Result.Err)
	}
	addrWord, ok := expr.AsLit(stackTop(t, vm))
	if !ok || addrWord.IsZero() {
		t.Fatalf("expected the created address on the stack")
	}
	created := vm.Env.Contracts[sevm.AddressFromWord(addrWord)]
	if created == nil {
		t.Fatalf("expected the created account to exist")
	}
	code, ok := created.Code.(*RuntimeCode)
	if !ok || len(code.Concrete) != 1 || code.Concrete[0] != 0x00 {
		t.Errorf("expected the returned byte as runtime code")
	}
	if want, got := uint64(1), vm.currentContract().Nonce; want != got {
		t.Errorf("expected the creator nonce bumped to %d, got %d", want, got)
	}
}

func TestCreate_EfPrefixFailsCreationButBumpsNonce(t *testing.T) {
	// Init code returning 0xEF: PUSH1 0xEF, PUSH1 0, MSTORE8, PUSH1 1,
	// PUSH1 0, RETURN
	initCode := []byte{0x60, 0xef, 0x60, 0x00, 0x53, 0x60, 0x01, 0x60, 0x00, 0xf3}

	var caller []byte
	for i, b := range initCode {
		caller = append(caller, 0x60, b, 0x60, byte(i), 0x53)
	}
	caller = append(caller,
		0x60, byte(len(initCode)),
		0x60, 0x00,
		0x60, 0x00,
		0xf0,
		0x00,
	)
	vm := testVM(caller)
	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("the caller must survive the failed creation, got %v", vm.Result.Err)
	}
	wantLit(t, stackTop(t, vm), 0)
	if want, got := uint64(1), vm.currentContract().Nonce; want != got {
		t.Errorf("the nonce bump must survive the failed creation, got %d", got)
	}
}

func TestCreate_InStaticContextFails(t *testing.T) {
	vm := testVM([]byte{0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0xf0})
	vm.State.Static = true
	vm.Run()
	if _, ok := vm.Result.Err.(StateChangeWhileStatic); !ok {
		t.Fatalf("expected StateChangeWhileStatic, got %v", vm.Result.Err)
	}
}

func TestCreate2_AddressDependsOnSalt(t *testing.T) {
	build := func(salt byte) sevm.Address {
		// CREATE2 of an empty init code with the given salt.
		vm := testVM([]byte{
			0x60, salt, // salt
			0x60, 0x00, // size
			0x60, 0x00, // offset
			0x60, 0x00, // value
			0xf5,
			0x00,
		})
		vm.Run()
		if vm.Result.Err != nil {
			t.Fatalf("expected success, got %v", vm.Result.Err)
		}
		addr, ok := expr.AsLit(stackTop(t, vm))
		if !ok {
			t.Fatalf("expected a concrete created address")
		}
		return sevm.AddressFromWord(addr)
	}
	if build(1) == build(2) {
		t.Errorf("different salts must produce different addresses")
	}
	if build(1) != build(1) {
		t.Errorf("the CREATE2 address must be deterministic")
	}
}

func TestCreate_CollisionPushesZero(t *testing.T) {
	vm := testVM([]byte{
		0x60, 0x00, // size
		0x60, 0x00, // offset
		0x60, 0x00, // value
		0xf0,
		0x00,
	})
	// Precompute the CREATE target and occupy it with a nonce.
	probe := testVM([]byte{0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0xf0, 0x00})
	probe.Run()
	target, _ := expr.AsLit(stackTop(t, probe))
	occupied := emptyContract()
	occupied.Nonce = 1
	vm.Env.Contracts[sevm.AddressFromWord(target)] = occupied

	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("expected the caller to continue, got %v", vm.Result.Err)
	}
	wantLit(t, stackTop(t, vm), 0)
	if want, got := uint64(0), vm.currentContract().Nonce; want != got {
		t.Errorf("a pre-flight collision must not bump the nonce, got %d", got)
	}
}

func TestSelfDestruct_TransfersFundsAndMarksAccount(t *testing.T) {
	beneficiary := sevm.HexToAddress("0x00000000000000000000000000000000000000bf")
	vm := testVM([]byte{0x60, beneficiary[19], 0xff})
	vm.currentContract().Balance = *uint256.NewInt(100)
	vm.Env.Contracts[beneficiary] = emptyContract()
	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("expected success, got %v", vm.Result.Err)
	}
	if want, got := 1, len(vm.Tx.SubState.SelfDestructs); want != got {
		t.Fatalf("expected %d self-destruct, got %d", want, got)
	}
	// Finalization dropped the self-destructed account and moved the funds.
	if _, ok := vm.Env.Contracts[vm.Tx.ToAddr]; ok {
		t.Errorf("expected the self-destructed account to be cleared")
	}
	if want, got := uint64(100), vm.Env.Contracts[beneficiary].Balance.Uint64(); want != got {
		t.Errorf("expected the beneficiary to receive %d, got %d", want, got)
	}
}

func TestSelfDestruct_InStaticContextFails(t *testing.T) {
	vm := testVM([]byte{0x60, 0x00, 0xff})
	vm.State.Static = true
	vm.Run()
	if _, ok := vm.Result.Err.(StateChangeWhileStatic); !ok {
		t.Fatalf("expected StateChangeWhileStatic, got %v", vm.Result.Err)
	}
}
