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

	"github.com/symbolic-systems/sevm/go/sevm"
)

func TestFinalize_PaysOriginAndCoinbase(t *testing.T) {
	origin := sevm.HexToAddress("0x0000000000000000000000000000000000000011")
	coinbase := sevm.HexToAddress("0x0000000000000000000000000000000000000022")
	fees := sevm.LondonFees
	fees.RBlock = 0 // isolate the fee flows

	vm := NewVM(VmOpts{
		Contract:    NewContract(&RuntimeCode{Concrete: []byte{0x00}}),
		Origin:      origin,
		Coinbase:    coinbase,
		Gas:         1000,
		GasLimit:    1000,
		GasPrice:    *uint256.NewInt(10),
		PriorityFee: *uint256.NewInt(2),
		Schedule:    fees,
	})
	vm.Env.Contracts[origin] = emptyContract()
	// Burn 100 units before the frame stops.
	if err := vm.burn(100); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	vm.Run()
	if vm.Result.Err != nil {
		t.Fatalf("expected success, got %v", vm.Result.Err)
	}

	// Origin gets the 900 remaining units back at the gas price.
	if want, got := uint64(900*10), vm.Env.Contracts[origin].Balance.Uint64(); want != got {
		t.Errorf("expected the origin refund %d, got %d", want, got)
	}
	// The miner earns the priority fee on the 100 used units.
	if want, got := uint64(100*2), vm.Env.Contracts[coinbase].Balance.Uint64(); want != got {
		t.Errorf("expected the coinbase payment %d, got %d", want, got)
	}
}

func TestFinalize_RefundIsCappedAtAFifth(t *testing.T) {
	origin := sevm.HexToAddress("0x0000000000000000000000000000000000000011")
	fees := sevm.LondonFees
	fees.RBlock = 0

	vm := NewVM(VmOpts{
		Contract: NewContract(&RuntimeCode{Concrete: []byte{0x00}}),
		Origin:   origin,
		Gas:      1000,
		GasLimit: 1000,
		GasPrice: *uint256.NewInt(1),
		Schedule: fees,
	})
	vm.Env.Contracts[origin] = emptyContract()
	if err := vm.burn(100); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	// An oversized refund must be capped at gasUsed / 5 = 20.
	vm.Tx.SubState.Refunds = append(vm.Tx.SubState.Refunds, Refund{Amount: 100000})
	vm.Run()
	if want, got := uint64(900+20), vm.Env.Contracts[origin].Balance.Uint64(); want != got {
		t.Errorf("expected the capped payout %d, got %d", want, got)
	}
}

func TestFinalize_FailureConsumesAllGasAndReverts(t *testing.T) {
	origin := sevm.HexToAddress("0x0000000000000000000000000000000000000011")
	fees := sevm.LondonFees
	fees.RBlock = 0

	vm := NewVM(VmOpts{
		Contract: NewContract(&RuntimeCode{Concrete: []byte{0xfe}}), // INVALID
		Origin:   origin,
		Gas:      1000,
		GasLimit: 1000,
		GasPrice: *uint256.NewInt(1),
		Schedule: fees,
	})
	vm.Env.Contracts[origin] = emptyContract()
	vm.Tx.TxReversion = snapshotContracts(vm.Env.Contracts)
	// State accumulated during the transaction disappears on failure.
	vm.currentContract().Balance = *uint256.NewInt(5)
	vm.Run()
	if vm.Result.Err == nil {
		t.Fatalf("expected a failure")
	}
	if want, got := uint64(0), vm.Env.Contracts[origin].Balance.Uint64(); want != got {
		t.Errorf("a failed transaction refunds no gas, got %d", got)
	}
	if balance := vm.Env.Contracts[vm.Tx.ToAddr].Balance; !balance.IsZero() {
		t.Errorf("expected the balance change rolled back, got %v", &balance)
	}
	if want, got := sevm.Gas(1000), vm.Burned; want != got {
		t.Errorf("a failed transaction burns its whole budget, got %d", got)
	}
}

func TestFinalize_CreatesCoinbaseAndPaysBlockReward(t *testing.T) {
	coinbase := sevm.HexToAddress("0x0000000000000000000000000000000000000022")
	vm := NewVM(VmOpts{
		Contract: NewContract(&RuntimeCode{Concrete: []byte{0x00}}),
		Coinbase: coinbase,
		Gas:      1000,
		GasLimit: 1000,
		Schedule: sevm.LondonFees,
	})
	vm.Run()
	miner, ok := vm.Env.Contracts[coinbase]
	if !ok {
		t.Fatalf("expected the coinbase account to be created")
	}
	if want, got := uint64(sevm.LondonFees.RBlock), miner.Balance.Uint64(); want != got {
		t.Errorf("expected the block reward %d, got %d", want, got)
	}
}

func TestFinalize_ClearsEmptyTouchedAccounts(t *testing.T) {
	touched := sevm.HexToAddress("0x0000000000000000000000000000000000000033")
	vm := testVM([]byte{0x00})
	vm.Env.Contracts[touched] = emptyContract()
	vm.Tx.SubState.touchAccount(touched)
	vm.Run()
	if _, ok := vm.Env.Contracts[touched]; ok {
		t.Errorf("an empty touched account must be cleared")
	}
}

func TestFinalize_KeepsNonEmptyTouchedAccounts(t *testing.T) {
	touched := sevm.HexToAddress("0x0000000000000000000000000000000000000033")
	vm := testVM([]byte{0x00})
	funded := emptyContract()
	funded.Balance = *uint256.NewInt(1)
	vm.Env.Contracts[touched] = funded
	vm.Tx.SubState.touchAccount(touched)
	vm.Run()
	if _, ok := vm.Env.Contracts[touched]; !ok {
		t.Errorf("a funded touched account must survive the clearing")
	}
}
