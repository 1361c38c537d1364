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
	"github.com/holiman/uint256"

	"github.com/symbolic-systems/sevm/go/sevm"
)

// finalize settles the transaction once the root frame has terminated:
// refund math, miner payment, coinbase reward and EIP-161 state clearing.
// It runs exactly once; afterwards the VM is terminal.
func (vm *VM) finalize() {
	failed := vm.Result != nil && vm.Result.Err != nil

	if failed {
		// A failed transaction consumes its entire gas allowance and
		// leaves no trace in the world state.
		vm.Burned += vm.State.Gas
		vm.State.Gas = 0
		vm.Env.Contracts = snapshotContracts(vm.Tx.TxReversion)
		substate := newSubstate()
		substate.Refunds = nil
		vm.Tx.SubState = substate
	} else if vm.Tx.IsCreate {
		if output := vm.Result.Output; output != nil {
			if _, stillThere := vm.Env.Contracts[vm.Tx.ToAddr]; stillThere {
				vm.replaceCode(vm.Tx.ToAddr, output)
			}
		}
	}

	gasRemaining := vm.State.Gas
	gasUsed := vm.Tx.GasLimit - gasRemaining

	var refundTotal sevm.Gas
	for _, refund := range vm.Tx.SubState.Refunds {
		refundTotal += refund.Amount
	}
	cappedRefund := gasUsed / 5
	if refundTotal < cappedRefund {
		cappedRefund = refundTotal
	}
	if cappedRefund < 0 {
		cappedRefund = 0
	}

	originPay := mulGasPrice(gasRemaining+cappedRefund, &vm.Tx.GasPrice)
	vm.creditBalance(vm.Tx.Origin, originPay)

	minerPay := mulGasPrice(gasUsed, &vm.Tx.PriorityFee)
	vm.creditBalance(vm.Block.Coinbase, minerPay)
	vm.Tx.SubState.touchAccount(vm.Block.Coinbase)

	// Block reward.
	if _, ok := vm.Env.Contracts[vm.Block.Coinbase]; !ok {
		vm.Env.Contracts[vm.Block.Coinbase] = emptyContract()
	}
	reward := uint256.NewInt(uint64(vm.Block.Schedule.RBlock))
	vm.creditBalance(vm.Block.Coinbase, *reward)

	// EIP-161: self-destructed accounts disappear, and so does every
	// touched account that ends the transaction empty.
	for _, addr := range vm.Tx.SubState.SelfDestructs {
		delete(vm.Env.Contracts, addr)
	}
	for _, addr := range vm.Tx.SubState.TouchedAccounts {
		if contract, ok := vm.Env.Contracts[addr]; ok && accountEmpty(contract) {
			delete(vm.Env.Contracts, addr)
		}
	}
}

func mulGasPrice(gas sevm.Gas, price *sevm.W256) sevm.W256 {
	var res sevm.W256
	res.Mul(uint256.NewInt(uint64(gas)), price)
	return res
}

func (vm *VM) creditBalance(addr sevm.Address, amount sevm.W256) {
	if amount.IsZero() {
		return
	}
	contract, ok := vm.Env.Contracts[addr]
	if !ok {
		contract = emptyContract()
		vm.Env.Contracts[addr] = contract
	}
	contract.Balance.Add(&contract.Balance, &amount)
}
