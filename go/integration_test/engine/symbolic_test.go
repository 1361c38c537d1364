// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package engine

import (
	"testing"

	"github.com/symbolic-systems/sevm/go/driver"
	"github.com/symbolic-systems/sevm/go/evm"
	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// branchProgram returns 1 when calldata word 0 is nonzero and 2 otherwise.
var branchProgram = []byte{
	0x60, 0x00, 0x35, // PUSH1 0, CALLDATALOAD
	0x60, 0x10, 0x57, // PUSH1 16, JUMPI
	0x60, 0x02, 0x60, 0x00, 0x52, // PUSH1 2, PUSH1 0, MSTORE
	0x60, 0x20, 0x60, 0x00, 0xf3, // PUSH1 32, PUSH1 0, RETURN
	0x5b,             // JUMPDEST
	0x60, 0x01, 0x60, 0x00, 0x52, // PUSH1 1, PUSH1 0, MSTORE
	0x60, 0x20, 0x60, 0x00, 0xf3, // PUSH1 32, PUSH1 0, RETURN
}

// scriptedOracle answers every branch query with a fixed verdict.
type scriptedOracle struct {
	verdict evm.SMTResult
	asked   int
}

func (o *scriptedOracle) AskBranch(expr.Word, []expr.Prop) evm.SMTResult {
	o.asked++
	return o.verdict
}

func newBranchVM() *evm.VM {
	const gas = sevm.Gas(1_000_000)
	return evm.NewVM(evm.VmOpts{
		Contract: evm.NewContract(&evm.RuntimeCode{Concrete: branchProgram}),
		Calldata: expr.NewAbstractBuf("calldata"),
		Gas:      gas,
		GasLimit: gas,
		Schedule: sevm.LondonFees,
	})
}

func TestEngine_SymbolicBranchExploration(t *testing.T) {
	outputs := map[bool]byte{}
	for _, taken := range []bool{true, false} {
		verdict := evm.CaseFalse
		if taken {
			verdict = evm.CaseTrue
		}
		oracle := &scriptedOracle{verdict: verdict}
		vm := newBranchVM()
		result, _, err := driver.Exec(vm, driver.Options{Oracle: oracle})
		if err != nil {
			t.Fatalf("exec failed: %v", err)
		}
		if result.Err != nil {
			t.Fatalf("expected success, got %v", result.Err)
		}
		if want, got := 1, oracle.asked; want != got {
			t.Fatalf("expected %d branch query, got %d", want, got)
		}
		if want, got := 1, len(vm.Constraints); want != got {
			t.Fatalf("expected %d path constraint, got %d", want, got)
		}
		output, ok := expr.AsConcreteBuf(result.Output)
		if !ok || len(output) != 32 {
			t.Fatalf("expected a 32-byte output")
		}
		outputs[taken] = output[31]
	}
	if want, got := byte(1), outputs[true]; want != got {
		t.Errorf("the taken branch must return %d, got %d", want, got)
	}
	if want, got := byte(2), outputs[false]; want != got {
		t.Errorf("the skipped branch must return %d, got %d", want, got)
	}
}

func TestEngine_PathCacheReplaysWithoutOracle(t *testing.T) {
	oracle := &scriptedOracle{verdict: evm.CaseTrue}
	first := newBranchVM()
	if _, _, err := driver.Exec(first, driver.Options{Oracle: oracle}); err != nil {
		t.Fatalf("exec failed: %v", err)
	}

	// The second run inherits the cache and must not consult the oracle.
	second := newBranchVM()
	second.Cache = first.Cache
	result, _, err := driver.Exec(second, driver.Options{})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
	output, _ := expr.AsConcreteBuf(result.Output)
	if len(output) != 32 || output[31] != 1 {
		t.Errorf("expected the cached decision to reproduce the taken branch")
	}
}

func TestEngine_SymbolicOutputStaysSymbolic(t *testing.T) {
	// Returning the loaded calldata word itself produces a symbolic buffer.
	code := []byte{
		0x60, 0x00, 0x35, // PUSH1 0, CALLDATALOAD
		0x60, 0x00, 0x52, // PUSH1 0, MSTORE
		0x60, 0x20, 0x60, 0x00, 0xf3, // PUSH1 32, PUSH1 0, RETURN
	}
	const gas = sevm.Gas(1_000_000)
	vm := evm.NewVM(evm.VmOpts{
		Contract: evm.NewContract(&evm.RuntimeCode{Concrete: code}),
		Calldata: expr.NewAbstractBuf("calldata"),
		Gas:      gas,
		GasLimit: gas,
		Schedule: sevm.LondonFees,
	})
	result, _, err := driver.Exec(vm, driver.Options{})
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if result.Err != nil {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if _, concrete := expr.AsConcreteBuf(result.Output); concrete {
		t.Errorf("expected a symbolic output buffer")
	}
	if n, ok := expr.StaticLength(result.Output); !ok || n != 32 {
		t.Errorf("expected a statically sized 32-byte output, got %d", n)
	}
}
