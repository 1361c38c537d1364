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

// A Query suspends the engine until the driver supplies external data. It
// travels through the VM's result field, so drivers observe a single
// "paused or done" state. Queries are tagged pending-operation records; the
// matching Resume* method applies the answer and clears the result.
type Query interface {
	error
	isQuery()
}

// PleaseFetchContract asks for the account at Addr. Answer with
// ResumeContract.
type PleaseFetchContract struct {
	Addr sevm.Address
}

// PleaseFetchSlot asks for the value of a storage slot of an external
// contract. Answer with ResumeSlot.
type PleaseFetchSlot struct {
	Addr sevm.Address
	Slot sevm.W256
}

// PleaseAskSMT asks the solver whether Cond can be nonzero under the
// current path condition. Answer with ResumeBranch.
type PleaseAskSMT struct {
	Cond expr.Word
	Path []expr.Prop

	loc    CodeLoc
	dest   uint64
	fallPc int
}

// PleaseChoosePath asks the user to pick a branch after the solver answered
// Unknown. Answer with ResumePath.
type PleaseChoosePath struct {
	Cond expr.Word

	loc    CodeLoc
	dest   uint64
	fallPc int
}

// PleaseDoFFI asks the driver to run a subprocess and return its stdout.
// Answer with ResumeFFI.
type PleaseDoFFI struct {
	Argv []string

	outOff  uint64
	outSize uint64
	nargs   int
}

func (*PleaseFetchContract) isQuery() {}
func (*PleaseFetchSlot) isQuery()     {}
func (*PleaseAskSMT) isQuery()        {}
func (*PleaseChoosePath) isQuery()    {}
func (*PleaseDoFFI) isQuery()         {}

func (q *PleaseFetchContract) Error() string {
	return fmt.Sprintf("waiting for contract %v", q.Addr)
}

func (q *PleaseFetchSlot) Error() string {
	return fmt.Sprintf("waiting for slot %v of %v", &q.Slot, q.Addr)
}

func (q *PleaseAskSMT) Error() string {
	return "waiting for SMT branch decision"
}

func (q *PleaseChoosePath) Error() string {
	return "waiting for branch choice"
}

func (q *PleaseDoFFI) Error() string {
	return fmt.Sprintf("waiting for ffi %v", q.Argv)
}

// SMTResult is the solver's verdict on a branch condition.
type SMTResult byte

const (
	// CaseFalse: the condition is zero on this path.
	CaseFalse SMTResult = iota
	// CaseTrue: the condition is nonzero on this path.
	CaseTrue
	// Unknown: the solver cannot decide; the engine re-emits the query as
	// a PleaseChoosePath for interactive resolution.
	Unknown
	// Inconsistent: the path condition is unsatisfiable.
	Inconsistent
)

const errNotPaused = sevm.ConstError("vm is not paused on a matching query")

// pendingQuery extracts the query the VM is currently suspended on.
func (vm *VM) pendingQuery() (Query, bool) {
	if vm.Result == nil || vm.Result.Err == nil {
		return nil, false
	}
	q, ok := vm.Result.Err.(Query)
	return q, ok
}

// ResumeContract answers a PleaseFetchContract. The contract is installed
// in the environment and memoized; execution re-dispatches the suspended
// instruction on the next step.
func (vm *VM) ResumeContract(contract *Contract) error {
	q, ok := vm.pendingQuery()
	fetch, isFetch := q.(*PleaseFetchContract)
	if !ok || !isFetch {
		return errNotPaused
	}
	contract.External = true
	vm.Env.Contracts[fetch.Addr] = contract
	vm.Cache.FetchedContracts[fetch.Addr] = contract.clone()
	vm.Result = nil
	return nil
}

// ResumeSlot answers a PleaseFetchSlot. The value is written into the
// world storage, memoized, and recorded as the slot's original value for
// refund accounting.
func (vm *VM) ResumeSlot(value sevm.W256) error {
	q, ok := vm.pendingQuery()
	fetch, isFetch := q.(*PleaseFetchSlot)
	if !ok || !isFetch {
		return errNotPaused
	}
	vm.Env.Storage = expr.NewSStore(
		expr.LitAddr(fetch.Addr), expr.NewLit(fetch.Slot), expr.NewLit(value),
		vm.Env.Storage)
	slots, ok := vm.Cache.FetchedStorage[fetch.Addr]
	if !ok {
		slots = map[sevm.W256]sevm.W256{}
		vm.Cache.FetchedStorage[fetch.Addr] = slots
	}
	slots[fetch.Slot] = value
	vm.Env.setOrigStorage(fetch.Addr, fetch.Slot, value)
	vm.Result = nil
	return nil
}

// ResumeBranch answers a PleaseAskSMT. Case answers commit the branch:
// the path constraint is extended, the decision is memoized under the
// current iteration count, and the program counter moves. Unknown re-emits
// the query as a PleaseChoosePath; Inconsistent kills the path.
func (vm *VM) ResumeBranch(res SMTResult) error {
	q, ok := vm.pendingQuery()
	ask, isAsk := q.(*PleaseAskSMT)
	if !ok || !isAsk {
		return errNotPaused
	}
	switch res {
	case CaseTrue, CaseFalse:
		vm.Result = nil
		vm.commitBranch(ask.Cond, ask.loc, ask.dest, ask.fallPc, res == CaseTrue)
	case Unknown:
		vm.Result = &Result{Err: &PleaseChoosePath{
			Cond: ask.Cond, loc: ask.loc, dest: ask.dest, fallPc: ask.fallPc,
		}}
	case Inconsistent:
		vm.Result = nil
		vm.finishFrame(frameErrored{err: DeadPath{}})
	}
	return nil
}

// ResumePath answers a PleaseChoosePath with the user's branch choice.
func (vm *VM) ResumePath(takeBranch bool) error {
	q, ok := vm.pendingQuery()
	choose, isChoose := q.(*PleaseChoosePath)
	if !ok || !isChoose {
		return errNotPaused
	}
	vm.Result = nil
	vm.commitBranch(choose.Cond, choose.loc, choose.dest, choose.fallPc, takeBranch)
	return nil
}

// ResumeFFI answers a PleaseDoFFI with the subprocess output. The output
// lands in the caller's return area and on the stack as a success flag.
func (vm *VM) ResumeFFI(stdout []byte) error {
	q, ok := vm.pendingQuery()
	ffi, isFFI := q.(*PleaseDoFFI)
	if !ok || !isFFI {
		return errNotPaused
	}
	vm.Result = nil
	output := expr.NewConcreteBuf(stdout)
	vm.finishCheat(output, ffi.outOff, ffi.outSize, ffi.nargs)
	return nil
}

// commitBranch applies a decided JUMPI branch: extend the path condition,
// memoize the decision for this visit, and move the program counter.
func (vm *VM) commitBranch(cond expr.Word, loc CodeLoc, dest uint64, fallPc int, taken bool) {
	iter := vm.Iterations[loc]
	vm.Cache.Path[PathKey{Loc: loc, Iteration: iter}] = taken
	vm.Iterations[loc] = iter + 1
	if taken {
		vm.Constraints = append(vm.Constraints, expr.NewPNeg(expr.NewPEq(cond, expr.Zero)))
		contract := vm.currentContract()
		if contract == nil || !contract.isValidJumpDest(dest) {
			vm.finishFrame(frameErrored{err: BadJumpDestination{}})
			return
		}
		vm.State.Pc = int(dest)
	} else {
		vm.Constraints = append(vm.Constraints, expr.NewPEq(cond, expr.Zero))
		vm.State.Pc = fallPc
	}
}
