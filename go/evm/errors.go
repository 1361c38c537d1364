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
	"fmt"

	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// The EVM-level error taxonomy. Every failing execution path funnels into
// finishFrame with one of these values; the engine itself never panics on
// guest behavior.

type BalanceTooLow struct {
	Have sevm.W256
	Want sevm.W256
}

type UnrecognizedOpcode struct {
	Op byte
}

type SelfDestruction struct{}

type StackUnderrun struct{}

type BadJumpDestination struct{}

type Revert struct {
	Output expr.Buf
}

type OutOfGas struct {
	Have sevm.Gas
	Need sevm.Gas
}

type BadCheatCode struct {
	Selector *uint32
}

type StackLimitExceeded struct{}

type IllegalOverflow struct{}

type StateChangeWhileStatic struct{}

type InvalidMemoryAccess struct{}

type CallDepthLimitReached struct{}

type MaxCodeSizeExceeded struct {
	Limit uint64
	Size  uint64
}

type InvalidFormat struct{}

type PrecompileFailure struct{}

// UnexpectedSymbolicArg is raised wherever the semantics require a concrete
// value but a symbolic one was found, so the caller can concretize or add
// constraints.
type UnexpectedSymbolicArg struct {
	Pc   int
	Msg  string
	Args []expr.Word
}

type DeadPath struct{}

// NotUnique reports that a value expected to be unique under the path
// condition has more than one model.
type NotUnique struct {
	Value expr.Word
}

type SMTTimeout struct{}

// FFI reports a failed ffi cheat invocation.
type FFI struct {
	Argv []string
}

type NonceOverflow struct{}

func (e BalanceTooLow) Error() string {
	return fmt.Sprintf("balance too low: have %v, want %v", &e.Have, &e.Want)
}

func (e UnrecognizedOpcode) Error() string {
	return fmt.Sprintf("unrecognized opcode 0x%02x", e.Op)
}

func (SelfDestruction) Error() string      { return "self destruction" }
func (StackUnderrun) Error() string        { return "stack underrun" }
func (BadJumpDestination) Error() string   { return "bad jump destination" }
func (Revert) Error() string               { return "revert" }
func (StackLimitExceeded) Error() string   { return "stack limit exceeded" }
func (IllegalOverflow) Error() string      { return "illegal overflow" }
func (StateChangeWhileStatic) Error() string {
	return "state change while static"
}
func (InvalidMemoryAccess) Error() string   { return "invalid memory access" }
func (CallDepthLimitReached) Error() string { return "call depth limit reached" }
func (InvalidFormat) Error() string         { return "invalid format" }
func (PrecompileFailure) Error() string     { return "precompile failure" }
func (DeadPath) Error() string              { return "dead path" }
func (SMTTimeout) Error() string            { return "smt query timed out" }
func (NonceOverflow) Error() string         { return "nonce overflow" }

func (NotUnique) Error() string { return "value is not unique under the path condition" }

func (e FFI) Error() string {
	return fmt.Sprintf("ffi failed: %v", e.Argv)
}

func (e OutOfGas) Error() string {
	return fmt.Sprintf("out of gas: have %d, need %d", e.Have, e.Need)
}

func (e BadCheatCode) Error() string {
	if e.Selector == nil {
		return "bad cheat code"
	}
	return fmt.Sprintf("bad cheat code: selector 0x%08x", *e.Selector)
}

func (e MaxCodeSizeExceeded) Error() string {
	return fmt.Sprintf("max code size exceeded: limit %d, size %d", e.Limit, e.Size)
}

func (e UnexpectedSymbolicArg) Error() string {
	return fmt.Sprintf("unexpected symbolic argument at pc %d: %s", e.Pc, e.Msg)
}
