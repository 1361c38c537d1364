// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package driver

import (
	"testing"

	"github.com/holiman/uint256"
	"go.uber.org/mock/gomock"

	"github.com/symbolic-systems/sevm/go/evm"
	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

const testGas = sevm.Gas(1_000_000)

func newTestVM(code []byte, calldata expr.Buf) *evm.VM {
	return evm.NewVM(evm.VmOpts{
		Contract: evm.NewContract(&evm.RuntimeCode{Concrete: code}),
		Calldata: calldata,
		Gas:      testGas,
		GasLimit: testGas,
		Schedule: sevm.LondonFees,
	})
}

func TestExec_RunsAConcreteProgram(t *testing.T) {
	// PUSH1 1, PUSH1 2, ADD, STOP
	vm := newTestVM([]byte{0x60, 0x01, 0x60, 0x02, 0x01, 0x00}, nil)
	result, stats, err := Exec(vm, Options{})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if want, got := 4, stats.Steps; want != got {
		t.Errorf("expected %d steps, got %d", want, got)
	}
	if want, got := 3*sevm.LondonFees.GVerylow, stats.GasBurned; want != got {
		t.Errorf("expected %d gas burned, got %d", want, got)
	}
}

func TestExec_ServicesContractFetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)

	target := sevm.HexToAddress("0x00000000000000000000000000000000000000ee")
	answer := evm.NewContract(&evm.RuntimeCode{Concrete: []byte{}})
	answer.Balance = *uint256.NewInt(55)
	fetcher.EXPECT().FetchContract(target).Return(answer, nil)

	// BALANCE of the unknown account, then STOP.
	vm := newTestVM([]byte{0x60, target[19], 0x31, 0x00}, nil)
	result, _, err := Exec(vm, Options{Fetcher: fetcher})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
	top := vm.State.Stack[len(vm.State.Stack)-1]
	if lit, ok := expr.AsLit(top); !ok || lit.Uint64() != 55 {
		t.Errorf("expected the fetched balance on the stack")
	}
}

func TestExec_ServicesSlotFetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().
		FetchSlot(gomock.Any(), gomock.Any()).
		Return(*uint256.NewInt(42), nil)

	// SLOAD slot 1 on an external contract.
	vm := newTestVM([]byte{0x60, 0x01, 0x54, 0x00}, nil)
	vm.Env.Contracts[vm.Tx.ToAddr].External = true
	result, _, err := Exec(vm, Options{Fetcher: fetcher})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
	top := vm.State.Stack[len(vm.State.Stack)-1]
	if lit, ok := expr.AsLit(top); !ok || lit.Uint64() != 42 {
		t.Errorf("expected the fetched slot value on the stack")
	}
}

// branchCode loads calldata word 0 and JUMPIs on it.
var branchCode = []byte{0x60, 0x00, 0x35, 0x60, 0x07, 0x57, 0x00, 0x5b, 0x00}

func TestExec_ServicesBranchDecisions(t *testing.T) {
	ctrl := gomock.NewController(t)
	oracle := NewMockOracle(ctrl)
	oracle.EXPECT().
		AskBranch(gomock.Any(), gomock.Any()).
		Return(evm.CaseTrue)

	vm := newTestVM(branchCode, expr.NewAbstractBuf("calldata"))
	result, _, err := Exec(vm, Options{Oracle: oracle})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if want, got := 1, len(vm.Constraints); want != got {
		t.Errorf("expected %d path constraint, got %d", want, got)
	}
}

func TestExec_UndecidedBranchFallsBackToChooser(t *testing.T) {
	ctrl := gomock.NewController(t)
	oracle := NewMockOracle(ctrl)
	oracle.EXPECT().
		AskBranch(gomock.Any(), gomock.Any()).
		Return(evm.Unknown)
	chooser := NewMockChooser(ctrl)
	chooser.EXPECT().ChoosePath(gomock.Any()).Return(false)

	vm := newTestVM(branchCode, expr.NewAbstractBuf("calldata"))
	result, _, err := Exec(vm, Options{Oracle: oracle, Chooser: chooser})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
}

func TestExec_UndecidedBranchWithoutChooserStops(t *testing.T) {
	vm := newTestVM(branchCode, expr.NewAbstractBuf("calldata"))
	_, _, err := Exec(vm, Options{})
	if err == nil {
		t.Fatalf("expected an error without a chooser")
	}
}

func TestExec_StepLimitStopsRunawayPrograms(t *testing.T) {
	// JUMPDEST, PUSH1 0, JUMP: an infinite loop.
	vm := newTestVM([]byte{0x5b, 0x60, 0x00, 0x56}, nil)
	_, stats, err := Exec(vm, Options{MaxSteps: 100})
	if err == nil {
		t.Fatalf("expected the step limit to fire")
	}
	if stats.Steps < 100 {
		t.Errorf("expected at least %d steps, got %d", 100, stats.Steps)
	}
}

func TestExec_ServicesFFI(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := NewMockFFIRunner(ctrl)
	runner.EXPECT().RunFFI([]string{"date"}).Return([]byte("now"), nil)

	vm := newTestVM(nil, nil)
	vm.AllowFFI = true
	vm.Result = &evm.Result{Err: &evm.PleaseDoFFI{Argv: []string{"date"}}}
	// Servicing resumes the VM; a fresh empty code then stops immediately.
	result, _, err := Exec(vm, Options{FFI: runner})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
}
