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
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// CheatAddress is the sentinel address of the cheat code handler:
// keccak256("hevm cheat code")[12:].
var CheatAddress sevm.Address

// cheatCall carries the decoded call envelope of a cheat invocation.
type cheatCall struct {
	nargs   int
	outOff  uint64
	outSize uint64
}

// cheatAction applies one cheat. Input is the calldata with the selector
// stripped. Actions either complete via finishCheat, suspend on a query,
// or fail the frame.
type cheatAction func(vm *VM, input []byte, call *cheatCall)

var cheatActions map[uint32]cheatAction

func cheatSelector(signature string) uint32 {
	hash := sevm.Keccak256([]byte(signature))
	return binary.BigEndian.Uint32(hash[:4])
}

func init() {
	hash := sevm.Keccak256([]byte("hevm cheat code"))
	copy(CheatAddress[:], hash[12:])

	cheatActions = map[uint32]cheatAction{
		cheatSelector("warp(uint256)"):                      cheatWarp,
		cheatSelector("roll(uint256)"):                      cheatRoll,
		cheatSelector("store(address,bytes32,bytes32)"):     cheatStore,
		cheatSelector("load(address,bytes32)"):              cheatLoad,
		cheatSelector("sign(uint256,bytes32)"):              cheatSign,
		cheatSelector("addr(uint256)"):                      cheatAddr,
		cheatSelector("prank(address)"):                     cheatPrank,
		cheatSelector("ffi(string[])"):                      cheatFFI,
	}
}

// runCheat intercepts a CALL-family instruction targeting the cheat
// address. args are the still-unpopped call arguments, top first.
func (vm *VM) runCheat(nargs int, args []expr.Word) {
	offBase := nargs - 4
	inOff, ok := vm.wantUint64(args[offBase], "cheat input offset")
	if !ok {
		return
	}
	inSize, ok := vm.wantUint64(args[offBase+1], "cheat input size")
	if !ok {
		return
	}
	outOff, ok := vm.wantUint64(args[offBase+2], "cheat output offset")
	if !ok {
		return
	}
	outSize, ok := vm.wantUint64(args[offBase+3], "cheat output size")
	if !ok {
		return
	}
	if err := vm.accessMemoryRange(inOff, inSize); err != nil {
		vm.fail(err)
		return
	}
	if err := vm.accessMemoryRange(outOff, outSize); err != nil {
		vm.fail(err)
		return
	}

	input, concrete := expr.AsConcreteBuf(readMemory(&vm.State, inOff, inSize))
	if !concrete {
		vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: "symbolic cheat code input"})
		return
	}
	if len(input) < 4 {
		vm.fail(BadCheatCode{})
		return
	}
	selector := binary.BigEndian.Uint32(input[:4])
	action, known := cheatActions[selector]
	if !known {
		vm.fail(BadCheatCode{Selector: &selector})
		return
	}
	action(vm, input[4:], &cheatCall{nargs: nargs, outOff: outOff, outSize: outSize})
}

// finishCheat completes a cheat invocation: the call arguments leave the
// stack, the output lands in the return area, and a success flag is
// pushed.
func (vm *VM) finishCheat(output expr.Buf, outOff, outSize uint64, nargs int) {
	vm.popArgs(nargs)
	vm.State.Pc++
	vm.State.ReturnData = output
	size := outSize
	if length, known := expr.StaticLength(output); known && length < size {
		size = length
	}
	copyBytesToMemory(&vm.State, output, 0, outOff, size)
	vm.pushResult(expr.One)
}

// revertCheat makes the cheat call observable as a reverted callee:
// the caller sees a zero on the stack and the message in the return
// buffer, encoded as Error(string).
func (vm *VM) revertCheat(message string, call *cheatCall) {
	payload := encodeErrorString(message)
	vm.popArgs(call.nargs)
	vm.State.Pc++
	vm.State.ReturnData = expr.NewConcreteBuf(payload)
	size := call.outSize
	if length := uint64(len(payload)); length < size {
		size = length
	}
	copyBytesToMemory(&vm.State, vm.State.ReturnData, 0, call.outOff, size)
	vm.pushResult(expr.Zero)
}

func encodeErrorString(message string) []byte {
	data := []byte(message)
	payload := make([]byte, 4+32+32+(len(data)+31)/32*32)
	selector := cheatSelector("Error(string)")
	binary.BigEndian.PutUint32(payload[:4], selector)
	payload[4+31] = 0x20
	binary.BigEndian.PutUint64(payload[4+32+24:4+64], uint64(len(data)))
	copy(payload[4+64:], data)
	return payload
}

// cheatWord reads abi word i of the stripped input, zero-extending.
func cheatWord(input []byte, i int) sevm.W256 {
	var word sevm.W256
	off := i * 32
	if off >= len(input) {
		return word
	}
	end := off + 32
	if end > len(input) {
		end = len(input)
	}
	var raw [32]byte
	copy(raw[:], input[off:end])
	word.SetBytes(raw[:])
	return word
}

func cheatWarp(vm *VM, input []byte, call *cheatCall) {
	timestamp := cheatWord(input, 0)
	vm.Block.TimeStamp = expr.NewLit(timestamp)
	vm.finishCheat(expr.EmptyBuf, call.outOff, call.outSize, call.nargs)
}

func cheatRoll(vm *VM, input []byte, call *cheatCall) {
	vm.Block.Number = cheatWord(input, 0)
	vm.finishCheat(expr.EmptyBuf, call.outOff, call.outSize, call.nargs)
}

func cheatStore(vm *VM, input []byte, call *cheatCall) {
	targetWord := cheatWord(input, 0)
	target := sevm.AddressFromWord(&targetWord)
	if !vm.ensureAccount(target) {
		return
	}
	slot := cheatWord(input, 1)
	value := cheatWord(input, 2)
	vm.Env.Storage = expr.NewSStore(
		expr.LitAddr(target), expr.NewLit(slot), expr.NewLit(value),
		vm.Env.Storage)
	vm.finishCheat(expr.EmptyBuf, call.outOff, call.outSize, call.nargs)
}

func cheatLoad(vm *VM, input []byte, call *cheatCall) {
	targetWord := cheatWord(input, 0)
	target := sevm.AddressFromWord(&targetWord)
	if !vm.ensureAccount(target) {
		return
	}
	slot := cheatWord(input, 1)
	addrW := expr.LitAddr(target)
	slotW := expr.NewLit(slot)

	value, resolved := expr.ReadStorage(addrW, slotW, vm.Env.Storage)
	if !resolved {
		contract := vm.Env.Contracts[target]
		if contract != nil && contract.External {
			if cached, ok := vm.Cache.FetchedStorage[target][slot]; ok {
				vm.Env.Storage = expr.NewSStore(addrW, slotW, expr.NewLit(cached), vm.Env.Storage)
				vm.Env.setOrigStorage(target, slot, cached)
				value = expr.NewLit(cached)
			} else {
				vm.Result = &Result{Err: &PleaseFetchSlot{Addr: target, Slot: slot}}
				return
			}
		} else {
			vm.Env.Storage = expr.NewSStore(addrW, slotW, expr.Zero, vm.Env.Storage)
			value = expr.Zero
		}
	}

	var output expr.Buf
	if lit, concrete := expr.AsLit(value); concrete {
		word := lit.Bytes32()
		output = expr.NewConcreteBuf(word[:])
	} else {
		output = expr.NewWriteWord(expr.Zero, value, expr.EmptyBuf)
	}
	vm.finishCheat(output, call.outOff, call.outSize, call.nargs)
}

func cheatSign(vm *VM, input []byte, call *cheatCall) {
	keyWord := cheatWord(input, 0)
	digestWord := cheatWord(input, 1)
	keyBytes := keyWord.Bytes32()
	digest := digestWord.Bytes32()

	key, err := crypto.ToECDSA(keyBytes[:])
	if err != nil {
		selector := cheatSelector("sign(uint256,bytes32)")
		vm.fail(BadCheatCode{Selector: &selector})
		return
	}
	signature, err := crypto.Sign(digest[:], key)
	if err != nil {
		selector := cheatSelector("sign(uint256,bytes32)")
		vm.fail(BadCheatCode{Selector: &selector})
		return
	}

	// The recovery identifier determines v; 27 or 28 per the parity of
	// the nonce point's Y coordinate.
	output := make([]byte, 96)
	output[31] = 27 + signature[64]
	copy(output[32:64], signature[:32])
	copy(output[64:96], signature[32:64])
	vm.finishCheat(expr.NewConcreteBuf(output), call.outOff, call.outSize, call.nargs)
}

func cheatAddr(vm *VM, input []byte, call *cheatCall) {
	keyWord := cheatWord(input, 0)
	keyBytes := keyWord.Bytes32()
	key, err := crypto.ToECDSA(keyBytes[:])
	if err != nil {
		selector := cheatSelector("addr(uint256)")
		vm.fail(BadCheatCode{Selector: &selector})
		return
	}
	derived := crypto.PubkeyToAddress(key.PublicKey)
	output := make([]byte, 32)
	copy(output[12:], derived[:])
	vm.finishCheat(expr.NewConcreteBuf(output), call.outOff, call.outSize, call.nargs)
}

func cheatPrank(vm *VM, input []byte, call *cheatCall) {
	callerWord := cheatWord(input, 0)
	caller := sevm.AddressFromWord(&callerWord)
	vm.OverrideCaller = &caller
	vm.finishCheat(expr.EmptyBuf, call.outOff, call.outSize, call.nargs)
}

func cheatFFI(vm *VM, input []byte, call *cheatCall) {
	if !vm.AllowFFI {
		vm.revertCheat(
			"ffi disabled: set AllowFFI in VmOpts if you want to allow tests to call external commands",
			call)
		return
	}
	argv, ok := decodeStringArray(input)
	if !ok {
		selector := cheatSelector("ffi(string[])")
		vm.fail(BadCheatCode{Selector: &selector})
		return
	}
	vm.Result = &Result{Err: &PleaseDoFFI{
		Argv:    argv,
		outOff:  call.outOff,
		outSize: call.outSize,
		nargs:   call.nargs,
	}}
}

// decodeStringArray decodes an abi-encoded string[] argument.
func decodeStringArray(input []byte) ([]string, bool) {
	headOff, ok := abiUint(input, 0)
	if !ok {
		return nil, false
	}
	count, ok := abiUint(input, headOff)
	if !ok {
		return nil, false
	}
	base := headOff + 32
	res := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		elemOff, ok := abiUint(input, base+i*32)
		if !ok {
			return nil, false
		}
		strOff := base + elemOff
		length, ok := abiUint(input, strOff)
		if !ok {
			return nil, false
		}
		start := strOff + 32
		if start+length > uint64(len(input)) {
			return nil, false
		}
		res = append(res, string(input[start:start+length]))
	}
	return res, true
}

func abiUint(input []byte, off uint64) (uint64, bool) {
	if off+32 > uint64(len(input)) {
		return 0, false
	}
	var word sevm.W256
	word.SetBytes(input[off : off+32])
	if !word.IsUint64() {
		return 0, false
	}
	return word.Uint64(), true
}
