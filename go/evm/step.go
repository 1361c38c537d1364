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
	"strconv"

	"github.com/holiman/uint256"

	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// Step advances the VM by one instruction. It is total: a running VM either
// mutates into the next state or halts by setting its result. Calling Step
// on a halted or suspended VM is a no-op.
func (vm *VM) Step() {
	if vm.Result != nil {
		return
	}
	if isPrecompileAddr(vm.State.Contract) {
		vm.stepPrecompile()
		return
	}
	if vm.State.Pc >= opslen(vm.State.Code) {
		vm.finishFrame(frameReturned{output: expr.EmptyBuf})
		return
	}
	b, concrete := codeByte(vm.State.Code, vm.State.Pc)
	if !concrete {
		vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: "symbolic opcode"})
		return
	}
	vm.exec(OpCode(b))
}

// Run steps the VM until it halts or suspends, and returns its result.
func (vm *VM) Run() *Result {
	for vm.Result == nil {
		vm.Step()
	}
	return vm.Result
}

func (vm *VM) exec(op OpCode) {
	fees := &vm.Block.Schedule
	switch {
	case op == PUSH0:
		vm.opPush0()
		return
	case op.isPush():
		vm.opPush(op.pushBytes())
		return
	case op >= DUP1 && op <= DUP16:
		vm.opDup(int(op-DUP1) + 1)
		return
	case op >= SWAP1 && op <= SWAP16:
		vm.opSwap(int(op-SWAP1) + 1)
		return
	case op >= LOG0 && op <= LOG4:
		vm.opLog(int(op - LOG0))
		return
	}

	switch op {
	case STOP:
		vm.finishFrame(frameReturned{output: expr.EmptyBuf})
	case ADD:
		vm.stackOp2(fees.GVerylow, expr.Add)
	case MUL:
		vm.stackOp2(fees.GLow, expr.Mul)
	case SUB:
		vm.stackOp2(fees.GVerylow, expr.Sub)
	case DIV:
		vm.stackOp2(fees.GLow, expr.Div)
	case SDIV:
		vm.stackOp2(fees.GLow, expr.SDiv)
	case MOD:
		vm.stackOp2(fees.GLow, expr.Mod)
	case SMOD:
		vm.stackOp2(fees.GLow, expr.SMod)
	case ADDMOD:
		vm.stackOp3(fees.GMid, expr.AddMod)
	case MULMOD:
		vm.stackOp3(fees.GMid, expr.MulMod)
	case EXP:
		vm.opExp()
	case SIGNEXTEND:
		vm.stackOp2(fees.GLow, expr.SEx)
	case LT:
		vm.stackOp2(fees.GVerylow, expr.Lt)
	case GT:
		vm.stackOp2(fees.GVerylow, expr.Gt)
	case SLT:
		vm.stackOp2(fees.GVerylow, expr.SLt)
	case SGT:
		vm.stackOp2(fees.GVerylow, expr.SGt)
	case EQ:
		vm.stackOp2(fees.GVerylow, expr.Eq)
	case ISZERO:
		vm.stackOp1(fees.GVerylow, expr.IsZero)
	case AND:
		vm.stackOp2(fees.GVerylow, expr.And)
	case OR:
		vm.stackOp2(fees.GVerylow, expr.Or)
	case XOR:
		vm.stackOp2(fees.GVerylow, expr.Xor)
	case NOT:
		vm.stackOp1(fees.GVerylow, expr.Not)
	case BYTE:
		vm.stackOp2(fees.GVerylow, func(ix, w expr.Word) expr.Word {
			return byteToWord(expr.NewIndexWord(ix, w))
		})
	case SHL:
		vm.stackOp2(fees.GVerylow, expr.Shl)
	case SHR:
		vm.stackOp2(fees.GVerylow, expr.Shr)
	case SAR:
		vm.stackOp2(fees.GVerylow, expr.Sar)
	case SHA3:
		vm.opSha3()
	case ADDRESS:
		vm.pushEnv(fees.GBase, expr.LitAddr(vm.State.Contract))
	case BALANCE:
		vm.opBalance()
	case ORIGIN:
		vm.pushEnv(fees.GBase, expr.LitAddr(vm.Tx.Origin))
	case CALLER:
		vm.pushEnv(fees.GBase, expr.LitAddr(vm.State.Caller))
	case CALLVALUE:
		vm.pushEnv(fees.GBase, vm.State.CallValue)
	case CALLDATALOAD:
		vm.stackOp1(fees.GVerylow, func(ix expr.Word) expr.Word {
			return expr.NewReadWord(ix, vm.State.Calldata)
		})
	case CALLDATASIZE:
		vm.pushEnv(fees.GBase, expr.Length(vm.State.Calldata))
	case CALLDATACOPY:
		vm.opCopyToMemory(vm.State.Calldata)
	case CODESIZE:
		vm.pushEnv(fees.GBase, codeSizeWord(vm.State.Code))
	case CODECOPY:
		vm.opCopyToMemory(toBuf(vm.State.Code))
	case GASPRICE:
		vm.pushEnv(fees.GBase, expr.NewLit(vm.Tx.GasPrice))
	case EXTCODESIZE:
		vm.opExtCodeSize()
	case EXTCODECOPY:
		vm.opExtCodeCopy()
	case RETURNDATASIZE:
		vm.pushEnv(fees.GBase, expr.Length(vm.State.ReturnData))
	case RETURNDATACOPY:
		vm.opReturnDataCopy()
	case EXTCODEHASH:
		vm.opExtCodeHash()
	case BLOCKHASH:
		vm.opBlockHash()
	case COINBASE:
		vm.pushEnv(fees.GBase, expr.LitAddr(vm.Block.Coinbase))
	case TIMESTAMP:
		vm.pushEnv(fees.GBase, vm.Block.TimeStamp)
	case NUMBER:
		vm.pushEnv(fees.GBase, expr.NewLit(vm.Block.Number))
	case PREVRANDAO:
		vm.pushEnv(fees.GBase, expr.NewLit(vm.Block.PrevRandao))
	case GASLIMIT:
		vm.pushEnv(fees.GBase, expr.LitU64(vm.Block.GasLimit))
	case CHAINID:
		vm.pushEnv(fees.GBase, expr.NewLit(vm.Env.ChainID))
	case SELFBALANCE:
		vm.opSelfBalance()
	case BASEFEE:
		vm.pushEnv(fees.GBase, expr.NewLit(vm.Block.BaseFee))
	case POP:
		if _, ok := vm.popArgs(1); !ok {
			return
		}
		if err := vm.burn(fees.GBase); err != nil {
			vm.fail(err)
			return
		}
		vm.State.Pc++
	case MLOAD:
		vm.opMload()
	case MSTORE:
		vm.opMstore()
	case MSTORE8:
		vm.opMstore8()
	case SLOAD:
		vm.opSload()
	case SSTORE:
		vm.opSstore()
	case JUMP:
		vm.opJump()
	case JUMPI:
		vm.opJumpi()
	case PC:
		vm.pushEnv(fees.GBase, expr.LitU64(uint64(vm.State.Pc)))
	case MSIZE:
		vm.pushEnv(fees.GBase, expr.LitU64(vm.State.MemorySize))
	case GAS:
		if err := vm.burn(fees.GBase); err != nil {
			vm.fail(err)
			return
		}
		if !vm.push(expr.LitU64(uint64(vm.State.Gas))) {
			return
		}
		vm.State.Pc++
	case JUMPDEST:
		if err := vm.burn(fees.GJumpdest); err != nil {
			vm.fail(err)
			return
		}
		vm.State.Pc++
	case CREATE:
		vm.opCreate(false)
	case CREATE2:
		vm.opCreate(true)
	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		vm.opCall(op)
	case RETURN:
		vm.opReturn()
	case REVERT:
		vm.opRevert()
	case SELFDESTRUCT:
		vm.opSelfDestruct()
	default:
		vm.fail(UnrecognizedOpcode{Op: byte(op)})
	}
}

// --- stack plumbing ---

func (vm *VM) push(w expr.Word) bool {
	if len(vm.State.Stack) >= maxStackSize {
		vm.fail(StackLimitExceeded{})
		return false
	}
	vm.State.Stack = append(vm.State.Stack, w)
	return true
}

// peekArgs returns the top n stack words without consuming them; res[0] is
// the top of the stack.
func (vm *VM) peekArgs(n int) ([]expr.Word, bool) {
	stack := vm.State.Stack
	if len(stack) < n {
		vm.fail(StackUnderrun{})
		return nil, false
	}
	res := make([]expr.Word, n)
	for i := 0; i < n; i++ {
		res[i] = stack[len(stack)-1-i]
	}
	return res, true
}

// popArgs consumes the top n stack words; res[0] is the former top.
func (vm *VM) popArgs(n int) ([]expr.Word, bool) {
	res, ok := vm.peekArgs(n)
	if !ok {
		return nil, false
	}
	vm.State.Stack = vm.State.Stack[:len(vm.State.Stack)-n]
	return res, true
}

func (vm *VM) stackOp1(cost sevm.Gas, f func(expr.Word) expr.Word) {
	args, ok := vm.popArgs(1)
	if !ok {
		return
	}
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(f(args[0])) {
		return
	}
	vm.State.Pc++
}

func (vm *VM) stackOp2(cost sevm.Gas, f func(a, b expr.Word) expr.Word) {
	args, ok := vm.popArgs(2)
	if !ok {
		return
	}
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(f(args[0], args[1])) {
		return
	}
	vm.State.Pc++
}

func (vm *VM) stackOp3(cost sevm.Gas, f func(a, b, c expr.Word) expr.Word) {
	args, ok := vm.popArgs(3)
	if !ok {
		return
	}
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(f(args[0], args[1], args[2])) {
		return
	}
	vm.State.Pc++
}

// pushEnv pushes a ready-made value for the environment opcodes.
func (vm *VM) pushEnv(cost sevm.Gas, w expr.Word) {
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(w) {
		return
	}
	vm.State.Pc++
}

// --- concreteness demands ---

// wantUint64 demands a concrete word that fits into 64 bits, as required
// for memory offsets and sizes.
func (vm *VM) wantUint64(w expr.Word, what string) (uint64, bool) {
	lit, ok := expr.AsLit(w)
	if !ok {
		vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: what, Args: []expr.Word{w}})
		return 0, false
	}
	if !lit.IsUint64() {
		vm.fail(IllegalOverflow{})
		return 0, false
	}
	return lit.Uint64(), true
}

// wantAddr demands a concrete address.
func (vm *VM) wantAddr(w expr.Word, what string) (sevm.Address, bool) {
	lit, ok := expr.AsLit(w)
	if !ok {
		vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: what, Args: []expr.Word{w}})
		return sevm.Address{}, false
	}
	return sevm.AddressFromWord(lit), true
}

// --- account plumbing ---

func isPrecompileAddr(addr sevm.Address) bool {
	for _, b := range addr[:19] {
		if b != 0 {
			return false
		}
	}
	return addr[19] >= 1 && addr[19] <= 9
}

// ensureAccount guarantees that addr is present in the environment. It
// returns false when the VM suspended on a fetch; the current instruction
// re-dispatches after the answer arrives, so no state may have been
// mutated yet.
func (vm *VM) ensureAccount(addr sevm.Address) bool {
	if _, ok := vm.Env.Contracts[addr]; ok {
		return true
	}
	if isPrecompileAddr(addr) || addr == CheatAddress {
		vm.Env.Contracts[addr] = emptyContract()
		return true
	}
	if cached, ok := vm.Cache.FetchedContracts[addr]; ok {
		vm.Env.Contracts[addr] = cached.clone()
		return true
	}
	vm.Result = &Result{Err: &PleaseFetchContract{Addr: addr}}
	return false
}

// --- immediates ---

func (vm *VM) opPush0() {
	if err := vm.burn(vm.Block.Schedule.GBase); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(expr.Zero) {
		return
	}
	vm.State.Pc++
}

func (vm *VM) opPush(n int) {
	if err := vm.burn(vm.Block.Schedule.GVerylow); err != nil {
		vm.fail(err)
		return
	}
	value, ok := vm.readImmediate(n)
	if !ok {
		return
	}
	if !vm.push(value) {
		return
	}
	vm.State.Pc += 1 + n
}

// readImmediate reads the n-byte push immediate following the current
// instruction. Symbolic immediates of symbolic runtime code are
// zero-padded to 32 bytes and read back as a word.
func (vm *VM) readImmediate(n int) (expr.Word, bool) {
	start := vm.State.Pc + 1
	if code, ok := vm.State.Code.(*RuntimeCode); ok && code.Symbolic != nil {
		allConcrete := true
		raw := make([]byte, n)
		for i := 0; i < n; i++ {
			if start+i >= len(code.Symbolic) {
				continue
			}
			if lit, ok := code.Symbolic[start+i].(*expr.LitByte); ok {
				raw[i] = lit.Val
			} else {
				allConcrete = false
			}
		}
		if allConcrete {
			var w sevm.W256
			w.SetBytes(raw)
			return expr.NewLit(w), true
		}
		buf := expr.EmptyBuf
		for i := 0; i < n && start+i < len(code.Symbolic); i++ {
			buf = expr.NewWriteByte(
				expr.LitU64(uint64(32-n+i)), code.Symbolic[start+i], buf)
		}
		return expr.NewReadWord(expr.Zero, buf), true
	}

	var bytes []byte
	switch code := vm.State.Code.(type) {
	case *InitCode:
		bytes = code.Code
	case *RuntimeCode:
		bytes = code.Concrete
	}
	raw := make([]byte, n)
	for i := 0; i < n && start+i < len(bytes); i++ {
		raw[i] = bytes[start+i]
	}
	var w sevm.W256
	w.SetBytes(raw)
	return expr.NewLit(w), true
}

func (vm *VM) opDup(pos int) {
	args, ok := vm.peekArgs(pos)
	if !ok {
		return
	}
	if err := vm.burn(vm.Block.Schedule.GVerylow); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(args[pos-1]) {
		return
	}
	vm.State.Pc++
}

func (vm *VM) opSwap(pos int) {
	if _, ok := vm.peekArgs(pos + 1); !ok {
		return
	}
	if err := vm.burn(vm.Block.Schedule.GVerylow); err != nil {
		vm.fail(err)
		return
	}
	stack := vm.State.Stack
	top := len(stack) - 1
	stack[top], stack[top-pos] = stack[top-pos], stack[top]
	vm.State.Pc++
}

// --- arithmetic specials ---

func (vm *VM) opExp() {
	args, ok := vm.popArgs(2)
	if !ok {
		return
	}
	fees := &vm.Block.Schedule
	cost := fees.GExp
	if exponent, ok := expr.AsLit(args[1]); ok {
		cost += fees.GExpbyte * sevm.Gas((exponent.BitLen()+7)/8)
	} else {
		// A symbolic exponent is billed at the 32-byte maximum.
		cost += fees.GExpbyte * 32
	}
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(expr.Exp(args[0], args[1])) {
		return
	}
	vm.State.Pc++
}

func byteToWord(b expr.Byte) expr.Word {
	if lit, ok := b.(*expr.LitByte); ok {
		return expr.LitU64(uint64(lit.Val))
	}
	buf := expr.NewWriteByte(expr.LitU64(31), b, expr.EmptyBuf)
	return expr.NewReadWord(expr.Zero, buf)
}

// --- hashing ---

func (vm *VM) opSha3() {
	args, ok := vm.popArgs(2)
	if !ok {
		return
	}
	off, ok := vm.wantUint64(args[0], "SHA3 offset")
	if !ok {
		return
	}
	size, ok := vm.wantUint64(args[1], "SHA3 size")
	if !ok {
		return
	}
	if err := vm.accessMemoryRange(off, size); err != nil {
		vm.fail(err)
		return
	}
	fees := &vm.Block.Schedule
	cost := fees.GSha3 + fees.GSha3word*sevm.Gas(sevm.SizeInWords(size))
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	buf := readMemory(&vm.State, off, size)
	var digest expr.Word
	if bytes, concrete := expr.AsConcreteBuf(buf); concrete {
		hash := sevm.Keccak256(bytes)
		digest = expr.NewLit(hash.ToWord())
		preimage := append([]byte(nil), bytes...)
		vm.Env.Sha3Crack[hash.ToWord()] = preimage
		vm.KeccakEqs = append(vm.KeccakEqs, &expr.PEq{
			A: digest,
			B: &expr.Sha3{Data: expr.NewConcreteBuf(preimage)},
		})
	} else {
		digest = expr.Keccak(buf)
	}
	if !vm.push(digest) {
		return
	}
	vm.State.Pc++
}

// --- account introspection ---

func (vm *VM) opBalance() {
	args, ok := vm.peekArgs(1)
	if !ok {
		return
	}
	addr, ok := vm.wantAddr(args[0], "BALANCE address")
	if !ok {
		return
	}
	if !vm.ensureAccount(addr) {
		return
	}
	vm.popArgs(1)
	if err := vm.burn(vm.accountAccessCost(addr)); err != nil {
		vm.fail(err)
		return
	}
	balance := vm.Env.Contracts[addr].Balance
	if !vm.push(expr.NewLit(balance)) {
		return
	}
	vm.State.Pc++
}

func (vm *VM) opSelfBalance() {
	if err := vm.burn(vm.Block.Schedule.GLow); err != nil {
		vm.fail(err)
		return
	}
	balance := vm.currentContract().Balance
	if !vm.push(expr.NewLit(balance)) {
		return
	}
	vm.State.Pc++
}

func (vm *VM) opExtCodeSize() {
	args, ok := vm.peekArgs(1)
	if !ok {
		return
	}
	addr, ok := vm.wantAddr(args[0], "EXTCODESIZE address")
	if !ok {
		return
	}
	if addr == CheatAddress {
		vm.popArgs(1)
		if err := vm.burn(vm.accountAccessCost(addr)); err != nil {
			vm.fail(err)
			return
		}
		if !vm.push(expr.One) {
			return
		}
		vm.State.Pc++
		return
	}
	if !vm.ensureAccount(addr) {
		return
	}
	vm.popArgs(1)
	if err := vm.burn(vm.accountAccessCost(addr)); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(codeSizeWord(vm.Env.Contracts[addr].Code)) {
		return
	}
	vm.State.Pc++
}

func (vm *VM) opExtCodeCopy() {
	args, ok := vm.peekArgs(4)
	if !ok {
		return
	}
	addr, ok := vm.wantAddr(args[0], "EXTCODECOPY address")
	if !ok {
		return
	}
	if !vm.ensureAccount(addr) {
		return
	}
	memOff, ok := vm.wantUint64(args[1], "EXTCODECOPY memory offset")
	if !ok {
		return
	}
	codeOff, ok := vm.wantUint64(args[2], "EXTCODECOPY code offset")
	if !ok {
		return
	}
	size, ok := vm.wantUint64(args[3], "EXTCODECOPY size")
	if !ok {
		return
	}
	vm.popArgs(4)
	if err := vm.accessMemoryRange(memOff, size); err != nil {
		vm.fail(err)
		return
	}
	cost := vm.accountAccessCost(addr) + copyWordsCost(&vm.Block.Schedule, size)
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	copyBytesToMemory(&vm.State, toBuf(vm.Env.Contracts[addr].Code), codeOff, memOff, size)
	vm.State.Pc++
}

func (vm *VM) opExtCodeHash() {
	args, ok := vm.peekArgs(1)
	if !ok {
		return
	}
	addr, ok := vm.wantAddr(args[0], "EXTCODEHASH address")
	if !ok {
		return
	}
	if !vm.ensureAccount(addr) {
		return
	}
	vm.popArgs(1)
	if err := vm.burn(vm.accountAccessCost(addr)); err != nil {
		vm.fail(err)
		return
	}
	contract := vm.Env.Contracts[addr]
	var hash expr.Word
	if accountEmpty(contract) {
		hash = expr.Zero
	} else if code, ok := contract.Code.(*RuntimeCode); ok && code.Symbolic != nil {
		hash = expr.Keccak(toBuf(contract.Code))
	} else {
		hash = expr.NewLit(contract.CodeHash)
	}
	if !vm.push(hash) {
		return
	}
	vm.State.Pc++
}

func codeSizeWord(code ContractCode) expr.Word {
	if runtime, ok := code.(*RuntimeCode); ok && runtime.Symbolic != nil {
		return expr.Length(toBuf(code))
	}
	return expr.LitU64(uint64(opslen(code)))
}

// --- block environment ---

func (vm *VM) opBlockHash() {
	args, ok := vm.popArgs(1)
	if !ok {
		return
	}
	if err := vm.burn(vm.Block.Schedule.GBlockhash); err != nil {
		vm.fail(err)
		return
	}
	var result expr.Word
	if lit, concrete := expr.AsLit(args[0]); concrete {
		number := vm.Block.Number
		var lowest sevm.W256
		if number.GtUint64(256) {
			lowest.Sub(&number, uint256.NewInt(256))
		}
		if lit.Lt(&lowest) || !lit.Lt(&number) {
			result = expr.Zero
		} else {
			// The engine has no chain behind it; block hashes are modeled
			// as the hash of the block number's decimal rendering.
			digest := sevm.Keccak256([]byte(strconv.FormatUint(lit.Uint64(), 10)))
			result = expr.NewLit(digest.ToWord())
		}
	} else {
		result = expr.NewBlockHash(args[0])
	}
	if !vm.push(result) {
		return
	}
	vm.State.Pc++
}

// --- memory ---

func (vm *VM) opMload() {
	args, ok := vm.popArgs(1)
	if !ok {
		return
	}
	off, ok := vm.wantUint64(args[0], "MLOAD offset")
	if !ok {
		return
	}
	if err := vm.accessMemoryWord(off); err != nil {
		vm.fail(err)
		return
	}
	if err := vm.burn(vm.Block.Schedule.GVerylow); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(expr.NewReadWord(expr.LitU64(off), vm.State.Memory)) {
		return
	}
	vm.State.Pc++
}

func (vm *VM) opMstore() {
	args, ok := vm.popArgs(2)
	if !ok {
		return
	}
	off, ok := vm.wantUint64(args[0], "MSTORE offset")
	if !ok {
		return
	}
	if err := vm.accessMemoryWord(off); err != nil {
		vm.fail(err)
		return
	}
	if err := vm.burn(vm.Block.Schedule.GVerylow); err != nil {
		vm.fail(err)
		return
	}
	vm.State.Memory = expr.NewWriteWord(expr.LitU64(off), args[1], vm.State.Memory)
	vm.State.Pc++
}

func (vm *VM) opMstore8() {
	args, ok := vm.popArgs(2)
	if !ok {
		return
	}
	off, ok := vm.wantUint64(args[0], "MSTORE8 offset")
	if !ok {
		return
	}
	if err := vm.accessMemoryRange(off, 1); err != nil {
		vm.fail(err)
		return
	}
	if err := vm.burn(vm.Block.Schedule.GVerylow); err != nil {
		vm.fail(err)
		return
	}
	value := expr.NewIndexWord(expr.LitU64(31), args[1])
	vm.State.Memory = expr.NewWriteByte(expr.LitU64(off), value, vm.State.Memory)
	vm.State.Pc++
}

// --- copies ---

// opCopyToMemory implements CALLDATACOPY/CODECOPY: memOff, srcOff, size.
func (vm *VM) opCopyToMemory(src expr.Buf) {
	args, ok := vm.popArgs(3)
	if !ok {
		return
	}
	memOff, ok := vm.wantUint64(args[0], "copy memory offset")
	if !ok {
		return
	}
	srcOff, ok := vm.wantUint64(args[1], "copy source offset")
	if !ok {
		return
	}
	size, ok := vm.wantUint64(args[2], "copy size")
	if !ok {
		return
	}
	if err := vm.accessMemoryRange(memOff, size); err != nil {
		vm.fail(err)
		return
	}
	fees := &vm.Block.Schedule
	if err := vm.burn(fees.GVerylow + copyWordsCost(fees, size)); err != nil {
		vm.fail(err)
		return
	}
	copyBytesToMemory(&vm.State, src, srcOff, memOff, size)
	vm.State.Pc++
}

func (vm *VM) opReturnDataCopy() {
	args, ok := vm.popArgs(3)
	if !ok {
		return
	}
	memOff, ok := vm.wantUint64(args[0], "RETURNDATACOPY memory offset")
	if !ok {
		return
	}
	dataOff, ok := vm.wantUint64(args[1], "RETURNDATACOPY data offset")
	if !ok {
		return
	}
	size, ok := vm.wantUint64(args[2], "RETURNDATACOPY size")
	if !ok {
		return
	}
	// Reading past the end of the return buffer is an error, not a
	// zero-extension.
	if length, known := expr.StaticLength(vm.State.ReturnData); known {
		if dataOff+size < dataOff || dataOff+size > length {
			vm.fail(InvalidMemoryAccess{})
			return
		}
	}
	if err := vm.accessMemoryRange(memOff, size); err != nil {
		vm.fail(err)
		return
	}
	fees := &vm.Block.Schedule
	if err := vm.burn(fees.GVerylow + copyWordsCost(fees, size)); err != nil {
		vm.fail(err)
		return
	}
	copyBytesToMemory(&vm.State, vm.State.ReturnData, dataOff, memOff, size)
	vm.State.Pc++
}

// --- storage ---

func (vm *VM) opSload() {
	args, ok := vm.peekArgs(1)
	if !ok {
		return
	}
	slotW := args[0]
	self := vm.State.Contract
	addrW := expr.LitAddr(self)

	value, resolved := expr.ReadStorage(addrW, slotW, vm.Env.Storage)
	if !resolved {
		// A miss only happens for concrete keys over a concrete store.
		slot, _ := expr.AsLit(slotW)
		contract := vm.currentContract()
		if contract != nil && contract.External {
			if cached, ok := vm.Cache.FetchedStorage[self][*slot]; ok {
				vm.Env.Storage = expr.NewSStore(addrW, slotW, expr.NewLit(cached), vm.Env.Storage)
				vm.Env.setOrigStorage(self, *slot, cached)
				value = expr.NewLit(cached)
			} else {
				vm.Result = &Result{Err: &PleaseFetchSlot{Addr: self, Slot: *slot}}
				return
			}
		} else {
			vm.Env.Storage = expr.NewSStore(addrW, slotW, expr.Zero, vm.Env.Storage)
			value = expr.Zero
		}
	}

	vm.popArgs(1)
	cost := vm.storageAccessCost(self, slotW)
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	if !vm.push(value) {
		return
	}
	vm.State.Pc++
}

// storageAccessCost bills warm or cold slot pricing. Symbolic slots cannot
// be tracked in the accessed set and are billed cold.
func (vm *VM) storageAccessCost(addr sevm.Address, slotW expr.Word) sevm.Gas {
	fees := &vm.Block.Schedule
	slot, concrete := expr.AsLit(slotW)
	if !concrete {
		return fees.GColdSload
	}
	if vm.Tx.SubState.accessStorageKey(addr, *slot) {
		return fees.GWarmStorageRead
	}
	return fees.GColdSload
}

func (vm *VM) opSstore() {
	if vm.State.Static {
		vm.fail(StateChangeWhileStatic{})
		return
	}
	args, ok := vm.peekArgs(2)
	if !ok {
		return
	}
	fees := &vm.Block.Schedule
	if vm.State.Gas <= fees.GCallstipend {
		vm.fail(OutOfGas{Have: vm.State.Gas, Need: fees.GCallstipend + 1})
		return
	}
	slotW, newW := args[0], args[1]
	self := vm.State.Contract
	addrW := expr.LitAddr(self)

	current, resolved := expr.ReadStorage(addrW, slotW, vm.Env.Storage)
	if !resolved {
		slot, _ := expr.AsLit(slotW)
		contract := vm.currentContract()
		if contract != nil && contract.External {
			if cached, ok := vm.Cache.FetchedStorage[self][*slot]; ok {
				vm.Env.Storage = expr.NewSStore(addrW, slotW, expr.NewLit(cached), vm.Env.Storage)
				vm.Env.setOrigStorage(self, *slot, cached)
				current = expr.NewLit(cached)
			} else {
				vm.Result = &Result{Err: &PleaseFetchSlot{Addr: self, Slot: *slot}}
				return
			}
		} else {
			current = expr.Zero
		}
	}

	vm.popArgs(2)

	var cold bool
	var original sevm.W256
	slot, slotConcrete := expr.AsLit(slotW)
	if slotConcrete {
		cold = !vm.Tx.SubState.accessStorageKey(self, *slot)
		if currentLit, ok := expr.AsLit(current); ok {
			vm.Env.setOrigStorage(self, *slot, *currentLit)
		}
		original = vm.Env.origStorageValue(self, *slot)
	}

	cost, refund := sstoreCost(fees, original, current, newW, cold)
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	if refund != 0 && slotConcrete {
		vm.Tx.SubState.Refunds = append(vm.Tx.SubState.Refunds, Refund{Addr: self, Amount: refund})
	}
	vm.Env.Storage = expr.NewSStore(addrW, slotW, newW, vm.Env.Storage)
	vm.State.Pc++
}

// --- control flow ---

func (vm *VM) opJump() {
	args, ok := vm.popArgs(1)
	if !ok {
		return
	}
	if err := vm.burn(vm.Block.Schedule.GMid); err != nil {
		vm.fail(err)
		return
	}
	dest, ok := vm.wantUint64(args[0], "JUMP destination")
	if !ok {
		return
	}
	contract := vm.currentContract()
	if contract == nil || !contract.isValidJumpDest(dest) {
		vm.fail(BadJumpDestination{})
		return
	}
	vm.State.Pc = int(dest)
}

func (vm *VM) opJumpi() {
	loc := CodeLoc{Addr: vm.State.Contract, Pc: vm.State.Pc}
	args, ok := vm.popArgs(2)
	if !ok {
		return
	}
	if err := vm.burn(vm.Block.Schedule.GHigh); err != nil {
		vm.fail(err)
		return
	}
	dest, ok := vm.wantUint64(args[0], "JUMPI destination")
	if !ok {
		return
	}
	cond := args[1]
	fallPc := vm.State.Pc + 1

	if lit, concrete := expr.AsLit(cond); concrete {
		if lit.IsZero() {
			vm.State.Pc = fallPc
			return
		}
		contract := vm.currentContract()
		if contract == nil || !contract.isValidJumpDest(dest) {
			vm.fail(BadJumpDestination{})
			return
		}
		vm.State.Pc = int(dest)
		return
	}

	// Symbolic condition: consult the path cache, otherwise ask the
	// solver.
	if taken, ok := vm.Cache.Path[PathKey{Loc: loc, Iteration: vm.Iterations[loc]}]; ok {
		vm.commitBranch(cond, loc, dest, fallPc, taken)
		return
	}
	vm.Result = &Result{Err: &PleaseAskSMT{
		Cond:   cond,
		Path:   append([]expr.Prop(nil), vm.Constraints...),
		loc:    loc,
		dest:   dest,
		fallPc: fallPc,
	}}
}

// --- logging ---

func (vm *VM) opLog(n int) {
	if vm.State.Static {
		vm.fail(StateChangeWhileStatic{})
		return
	}
	args, ok := vm.popArgs(2 + n)
	if !ok {
		return
	}
	off, ok := vm.wantUint64(args[0], "LOG offset")
	if !ok {
		return
	}
	size, ok := vm.wantUint64(args[1], "LOG size")
	if !ok {
		return
	}
	topics := args[2:]
	if err := vm.accessMemoryRange(off, size); err != nil {
		vm.fail(err)
		return
	}
	fees := &vm.Block.Schedule
	cost := fees.GLog + sevm.Gas(n)*fees.GLogtopic + sevm.Gas(size)*fees.GLogdata
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}
	log := expr.Log{
		Addr:   expr.LitAddr(vm.State.Contract),
		Topics: topics,
		Data:   readMemory(&vm.State, off, size),
	}
	vm.Logs = append(vm.Logs, log)
	vm.traces.insert(&EventTrace{Log: log})
	vm.State.Pc++
}

// --- frame termination ops ---

func (vm *VM) opReturn() {
	args, ok := vm.popArgs(2)
	if !ok {
		return
	}
	off, ok := vm.wantUint64(args[0], "RETURN offset")
	if !ok {
		return
	}
	size, ok := vm.wantUint64(args[1], "RETURN size")
	if !ok {
		return
	}
	if err := vm.accessMemoryRange(off, size); err != nil {
		vm.fail(err)
		return
	}
	output := readMemory(&vm.State, off, size)

	if vm.inCreationFrame() {
		// Contract creation validates and pays for the deposited code.
		if first, concrete := expr.AsConcreteBuf(output); concrete && len(first) > 0 && first[0] == 0xEF {
			vm.fail(InvalidFormat{})
			return
		}
		length, known := expr.StaticLength(output)
		if !known {
			vm.fail(UnexpectedSymbolicArg{Pc: vm.State.Pc, Msg: "deposited code of unknown size"})
			return
		}
		if length > vm.Block.MaxCodeSize {
			vm.fail(MaxCodeSizeExceeded{Limit: vm.Block.MaxCodeSize, Size: length})
			return
		}
		if err := vm.burn(vm.Block.Schedule.GCodedeposit * sevm.Gas(length)); err != nil {
			vm.fail(err)
			return
		}
	}
	vm.finishFrame(frameReturned{output: output})
}

func (vm *VM) opRevert() {
	args, ok := vm.popArgs(2)
	if !ok {
		return
	}
	off, ok := vm.wantUint64(args[0], "REVERT offset")
	if !ok {
		return
	}
	size, ok := vm.wantUint64(args[1], "REVERT size")
	if !ok {
		return
	}
	if err := vm.accessMemoryRange(off, size); err != nil {
		vm.fail(err)
		return
	}
	vm.finishFrame(frameReverted{output: readMemory(&vm.State, off, size)})
}

func (vm *VM) inCreationFrame() bool {
	if len(vm.Frames) == 0 {
		return vm.Tx.IsCreate
	}
	_, creation := vm.Frames[len(vm.Frames)-1].Context.(*CreationContext)
	return creation
}

func (vm *VM) opSelfDestruct() {
	if vm.State.Static {
		vm.fail(StateChangeWhileStatic{})
		return
	}
	args, ok := vm.peekArgs(1)
	if !ok {
		return
	}
	beneficiary, ok := vm.wantAddr(args[0], "SELFDESTRUCT beneficiary")
	if !ok {
		return
	}
	if !vm.ensureAccount(beneficiary) {
		return
	}
	vm.popArgs(1)

	fees := &vm.Block.Schedule
	self := vm.State.Contract
	funds := vm.currentContract().Balance

	cost := fees.GSelfdestruct
	if !vm.Tx.SubState.accessAddress(beneficiary) {
		cost += fees.GColdAccountAccess
	}
	if !vm.accountExists(beneficiary) && !funds.IsZero() {
		cost += fees.GSelfdestructNewaccount
	}
	if err := vm.burn(cost); err != nil {
		vm.fail(err)
		return
	}

	vm.Tx.SubState.SelfDestructs = append(vm.Tx.SubState.SelfDestructs, self)
	vm.Tx.SubState.touchAccount(beneficiary)
	if !funds.IsZero() {
		vm.withContract(self, func(c *Contract) { c.Balance = sevm.W256{} })
		vm.creditBalance(beneficiary, funds)
	}
	vm.finishFrame(frameReturned{output: expr.EmptyBuf})
}
