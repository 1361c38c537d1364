// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sevm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Address represents the 160-bit account address of an EVM participant.
type Address [20]byte

// Hash represents a 256-bit hash value, typically a keccak256 digest.
type Hash [32]byte

// Gas represents an amount of execution gas. Gas amounts fit into a signed
// 64-bit integer; negative values never occur during execution.
type Gas int64

// W256 is an unsigned 256-bit word. It is an alias of uint256.Int, giving
// the engine value semantics for stack slots and storage values.
type W256 = uint256.Int

func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

// ToWord zero-extends the address into a 256-bit word.
func (a Address) ToWord() W256 {
	var w W256
	w.SetBytes(a[:])
	return w
}

// AddressFromWord truncates a word to its low 160 bits.
func AddressFromWord(w *W256) Address {
	var a Address
	b := w.Bytes32()
	copy(a[:], b[12:])
	return a
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

// ToWord interprets the hash as a big-endian 256-bit word.
func (h Hash) ToWord() W256 {
	var w W256
	w.SetBytes(h[:])
	return w
}

// HexToAddress parses an address from a hex string with optional 0x prefix.
// Invalid input yields the zero address.
func HexToAddress(s string) Address {
	var a Address
	s = strings.TrimPrefix(s, "0x")
	data, err := hex.DecodeString(s)
	if err != nil || len(data) != 20 {
		return a
	}
	copy(a[:], data)
	return a
}

// SizeInWords computes the number of 32-byte words required to cover size
// bytes.
func SizeInWords(size uint64) uint64 {
	if size%32 == 0 {
		return size / 32
	}
	return size/32 + 1
}
