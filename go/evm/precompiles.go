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
	"github.com/ethereum/go-ethereum/common"
	geth "github.com/ethereum/go-ethereum/core/vm"

	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// stepPrecompile executes a frame whose contract address names one of the
// precompiled contracts 1..9: the calldata is mirrored into memory at
// offset zero, the precompile runs over it, and the frame finishes with
// its output.
func (vm *VM) stepPrecompile() {
	input, concrete := expr.AsConcreteBuf(vm.State.Calldata)
	if !concrete {
		vm.fail(UnexpectedSymbolicArg{
			Pc:  vm.State.Pc,
			Msg: "symbolic input to a precompiled contract",
		})
		return
	}

	vm.State.Memory = expr.NewConcreteBuf(append([]byte(nil), input...))
	vm.State.MemorySize = toValidMemorySize(uint64(len(input)))

	contract, ok := precompiledContract(vm.State.Contract)
	if !ok {
		vm.fail(PrecompileFailure{})
		return
	}
	if err := vm.burn(sevm.Gas(contract.RequiredGas(input))); err != nil {
		vm.fail(err)
		return
	}
	output, err := contract.Run(input)
	if err != nil {
		vm.fail(PrecompileFailure{})
		return
	}
	vm.finishFrame(frameReturned{output: expr.NewConcreteBuf(output)})
}

// precompiledContract resolves a precompile address against the Berlin
// precompile set.
func precompiledContract(addr sevm.Address) (geth.PrecompiledContract, bool) {
	contract, ok := geth.PrecompiledContractsBerlin[common.Address(addr)]
	return contract, ok
}
