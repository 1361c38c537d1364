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
	"github.com/symbolic-systems/sevm/go/evm"
	"github.com/symbolic-systems/sevm/go/sevm"
)

func GetSha3Example() Example {
	// A loop computing x iterated hashes over a single memory word.
	code := []byte{
		// Parse the input parameter.
		byte(evm.PUSH1), 4,
		byte(evm.CALLDATALOAD),

		// Loop header.
		byte(evm.JUMPDEST),
		byte(evm.DUP1),
		byte(evm.ISZERO),
		byte(evm.PUSH1), 24,
		byte(evm.JUMPI),

		// One hash step.
		byte(evm.PUSH1), 32,
		byte(evm.PUSH1), 0,
		byte(evm.SHA3),
		byte(evm.PUSH1), 0,
		byte(evm.MSTORE),

		// Decrement the loop iterator.
		byte(evm.PUSH1), 1,
		byte(evm.SWAP1),
		byte(evm.SUB),

		// Back to the loop header.
		byte(evm.PUSH1), 3,
		byte(evm.JUMP),

		byte(evm.JUMPDEST),

		// Mask out everything but the last byte.
		byte(evm.PUSH1), 0,
		byte(evm.MLOAD),
		byte(evm.PUSH1), 255,
		byte(evm.AND),
		byte(evm.PUSH1), 0,
		byte(evm.MSTORE),

		// Return the result.
		byte(evm.PUSH1), 32,
		byte(evm.PUSH1), 0,
		byte(evm.RETURN),
	}

	return Example{
		Name:      "sha3",
		code:      code,
		reference: sha3Ref,
	}
}

func sha3Ref(x int) int {
	var hash sevm.Hash
	for i := 0; i < x; i++ {
		hash = sevm.Keccak256(hash[:])
	}
	return int(hash[31])
}
