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
	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// burn charges the current frame. Gas is always billed before the effect it
// pays for, so an OutOfGas failure leaves the frame exhausted but clean.
func (vm *VM) burn(amount sevm.Gas) error {
	if vm.State.Gas < amount {
		return OutOfGas{Have: vm.State.Gas, Need: amount}
	}
	vm.State.Gas -= amount
	vm.Burned += amount
	return nil
}

// reclaim returns unused gas from a finished frame to the accounting
// counter.
func (vm *VM) reclaim(remaining sevm.Gas) {
	vm.Burned -= remaining
}

func allButOne64th(gas sevm.Gas) sevm.Gas {
	return gas - gas/64
}

// staticGas is the flat portion of an instruction's cost.
func staticGas(fees *sevm.FeeSchedule, op OpCode) sevm.Gas {
	switch {
	case op >= PUSH1 && op <= PUSH32,
		op >= DUP1 && op <= DUP16,
		op >= SWAP1 && op <= SWAP16:
		return fees.GVerylow
	case op >= LOG0 && op <= LOG4:
		return fees.GLog
	}
	switch op {
	case STOP, RETURN, REVERT:
		return fees.GZero
	case ADD, SUB, NOT, LT, GT, SLT, SGT, EQ, ISZERO, AND, OR, XOR, BYTE,
		SHL, SHR, SAR, CALLDATALOAD, MLOAD, MSTORE, MSTORE8:
		return fees.GVerylow
	case MUL, DIV, SDIV, MOD, SMOD, SIGNEXTEND, SELFBALANCE:
		return fees.GLow
	case ADDMOD, MULMOD, JUMP:
		return fees.GMid
	case JUMPI:
		return fees.GHigh
	case EXP:
		return fees.GExp
	case SHA3:
		return fees.GSha3
	case ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE, CODESIZE,
		GASPRICE, RETURNDATASIZE, COINBASE, TIMESTAMP, NUMBER, PREVRANDAO,
		GASLIMIT, CHAINID, BASEFEE, POP, PC, MSIZE, GAS, PUSH0:
		return fees.GBase
	case CALLDATACOPY, CODECOPY, RETURNDATACOPY:
		return fees.GVerylow
	case JUMPDEST:
		return fees.GJumpdest
	case BLOCKHASH:
		return fees.GBlockhash
	}
	// BALANCE, EXTCODE*, SLOAD, SSTORE, CREATE*, the call family and
	// SELFDESTRUCT are billed entirely through their dynamic cost paths.
	return 0
}

// copyWordsCost is the per-word surcharge of the copy instructions.
func copyWordsCost(fees *sevm.FeeSchedule, size uint64) sevm.Gas {
	return fees.GCopy * sevm.Gas(sevm.SizeInWords(size))
}

// accountAccessCost bills EIP-2929 warm or cold pricing for touching an
// account and marks it warm.
func (vm *VM) accountAccessCost(addr sevm.Address) sevm.Gas {
	if vm.Tx.SubState.accessAddress(addr) {
		return vm.Block.Schedule.GWarmStorageRead
	}
	return vm.Block.Schedule.GColdAccountAccess
}

// callCost computes the gas reserved for a call per EIP-150/EIP-2929:
// the amount to burn in the caller and the amount handed to the callee.
func callCost(
	fees *sevm.FeeSchedule,
	warm bool,
	recipientExists bool,
	transfersValue bool,
	availableGas sevm.Gas,
	requestedGas sevm.Gas,
) (burned sevm.Gas, callGas sevm.Gas) {
	extra := fees.GColdAccountAccess
	if warm {
		extra = fees.GWarmStorageRead
	}
	if transfersValue {
		extra += fees.GCallvalue
		if !recipientExists {
			extra += fees.GNewaccount
		}
	}
	gasCap := requestedGas
	if availableGas >= extra {
		capped := allButOne64th(availableGas - extra)
		if gasCap > capped {
			gasCap = capped
		}
	}
	callGas = gasCap
	if transfersValue {
		callGas += fees.GCallstipend
	}
	return extra + gasCap, callGas
}

// createCost computes the gas burned by CREATE/CREATE2 and the budget
// reserved for the init frame. hashSize is the size of the init code for
// CREATE2 (which hashes it) and zero for CREATE.
func createCost(fees *sevm.FeeSchedule, availableGas sevm.Gas, hashSize uint64) (cost, initGas sevm.Gas) {
	cost = fees.GCreate + fees.GSha3word*sevm.Gas(sevm.SizeInWords(hashSize))
	if availableGas < cost {
		return cost, 0
	}
	initGas = allButOne64th(availableGas - cost)
	return cost, initGas
}

// sstoreCost prices a storage write per EIP-2200 with the EIP-2929 cold
// surcharge, and returns the refund delta. Symbolic current or new values
// are conservatively priced as a fresh write with no refund movement.
func sstoreCost(
	fees *sevm.FeeSchedule,
	original sevm.W256,
	current expr.Word,
	new expr.Word,
	cold bool,
) (cost sevm.Gas, refund sevm.Gas) {
	if cold {
		cost += fees.GColdSload
	}

	currentLit, okCurrent := expr.AsLit(current)
	newLit, okNew := expr.AsLit(new)
	if !okCurrent || !okNew {
		return cost + fees.GSset, 0
	}

	if currentLit.Eq(newLit) {
		return cost + fees.GSload, 0
	}

	if original == *currentLit {
		// Clean slot.
		if original.IsZero() {
			return cost + fees.GSset, 0
		}
		if newLit.IsZero() {
			refund += fees.RSclear
		}
		return cost + fees.GSreset, refund
	}

	// Dirty slot.
	if !original.IsZero() {
		if currentLit.IsZero() {
			refund -= fees.RSclear
		} else if newLit.IsZero() {
			refund += fees.RSclear
		}
	}
	if original == *newLit {
		if original.IsZero() {
			refund += fees.GSset - fees.GSload
		} else {
			refund += fees.GSreset - fees.GSload
		}
	}
	return cost + fees.GSload, refund
}
