// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"fmt"

	"github.com/symbolic-systems/sevm/go/driver"
	"github.com/symbolic-systems/sevm/go/evm"
	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

// Example is an executable description of a contract with an entry point of
// signature (int) -> int, paired with a Go reference implementation. Examples
// drive the concrete-agreement tests of the engine.
type Example struct {
	Name string

	code      []byte
	function  uint32        // selector of the entry point, 0 for raw calldata
	reference func(int) int // reference computing the same function
}

// Result is the outcome of running an example on the engine.
type Result struct {
	Result  int
	UsedGas sevm.Gas
}

const exampleGasBudget = sevm.Gas(1 << 40)

// RunOn executes this example on a fresh VM with the given argument.
func (e *Example) RunOn(argument int) (Result, error) {
	vm := evm.NewVM(evm.VmOpts{
		Contract: evm.NewContract(&evm.RuntimeCode{Concrete: e.code}),
		Calldata: expr.NewConcreteBuf(encodeArgument(e.function, argument)),
		Gas:      exampleGasBudget,
		GasLimit: exampleGasBudget,
		Schedule: sevm.LondonFees,
	})

	result, _, err := driver.Exec(vm, driver.Options{})
	if err != nil {
		return Result{}, err
	}
	if result.Err != nil {
		return Result{}, result.Err
	}
	output, ok := expr.AsConcreteBuf(result.Output)
	if !ok {
		return Result{}, fmt.Errorf("example produced a symbolic output")
	}
	value, err := decodeOutput(output)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Result:  value,
		UsedGas: vm.Burned,
	}, nil
}

// RunReference runs the reference function to produce the expected result.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

func encodeArgument(function uint32, arg int) []byte {
	data := make([]byte, 4+32) // the parameter is padded to 32 bytes

	data[0] = byte(function >> 24)
	data[1] = byte(function >> 16)
	data[2] = byte(function >> 8)
	data[3] = byte(function)

	data[4+28] = byte(arg >> 24)
	data[5+28] = byte(arg >> 16)
	data[6+28] = byte(arg >> 8)
	data[7+28] = byte(arg)

	return data
}

func decodeOutput(output []byte) (int, error) {
	if len(output) != 32 {
		return 0, fmt.Errorf("unexpected length of output; wanted 32, got %d", len(output))
	}
	return (int(output[28]) << 24) | (int(output[29]) << 16) |
		(int(output[30]) << 8) | int(output[31]), nil
}
