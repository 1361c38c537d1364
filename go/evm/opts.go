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

// StorageBase selects the initial shape of the world storage.
type StorageBase byte

const (
	// ConcreteStorage starts from an all-zero store.
	ConcreteStorage StorageBase = iota
	// SymbolicStorage starts from a fully unknown store.
	SymbolicStorage
)

// VmOpts bundles everything needed to construct a VM.
type VmOpts struct {
	Contract      *Contract
	Calldata      expr.Buf
	CalldataProps []expr.Prop
	StorageBase   StorageBase
	Value         expr.Word
	PriorityFee   sevm.W256
	Address       sevm.Address
	Caller        sevm.Address
	Origin        sevm.Address
	Gas           sevm.Gas
	GasLimit      sevm.Gas
	Number        sevm.W256
	TimeStamp     expr.Word
	Coinbase      sevm.Address
	PrevRandao    sevm.W256
	MaxCodeSize   uint64
	BlockGasLimit uint64
	GasPrice      sevm.W256
	BaseFee       sevm.W256
	Schedule      sevm.FeeSchedule
	ChainID       sevm.W256
	IsCreate      bool
	TxAccessList  map[sevm.Address][]sevm.W256
	AllowFFI      bool
}

// NewVM creates a fresh VM for one transaction. The substate is seeded with
// the origin, the target, the precompile addresses and the transaction
// access list, per EIP-2929.
func NewVM(opts VmOpts) *VM {
	contract := opts.Contract
	if contract == nil {
		contract = emptyContract()
	}

	contracts := map[sevm.Address]*Contract{
		opts.Address: contract,
	}

	storage := expr.EmptyStorage
	if opts.StorageBase == SymbolicStorage {
		storage = expr.AbstractStorage
	}

	substate := newSubstate()
	substate.accessAddress(opts.Origin)
	substate.accessAddress(opts.Address)
	for i := byte(1); i <= 9; i++ {
		var precompile sevm.Address
		precompile[19] = i
		substate.accessAddress(precompile)
	}
	for addr, slots := range opts.TxAccessList {
		substate.accessAddress(addr)
		for _, slot := range slots {
			substate.accessStorageKey(addr, slot)
		}
	}

	value := opts.Value
	if value == nil {
		value = expr.Zero
	}
	calldata := opts.Calldata
	if calldata == nil {
		calldata = expr.EmptyBuf
	}
	if opts.IsCreate {
		// In a creation transaction the payload is the constructor code,
		// not calldata.
		calldata = expr.EmptyBuf
	}
	timestamp := opts.TimeStamp
	if timestamp == nil {
		timestamp = expr.Zero
	}

	vm := &VM{
		State: FrameState{
			Memory:     expr.EmptyBuf,
			Calldata:   calldata,
			CallValue:  value,
			Caller:     opts.Caller,
			Contract:   opts.Address,
			Code:       contract.Code,
			Gas:        opts.Gas,
			ReturnData: expr.EmptyBuf,
		},
		Env: Env{
			Contracts:   contracts,
			ChainID:     opts.ChainID,
			Storage:     storage,
			OrigStorage: map[sevm.Address]map[sevm.W256]sevm.W256{},
			Sha3Crack:   map[sevm.W256][]byte{},
		},
		Block: Block{
			Coinbase:    opts.Coinbase,
			TimeStamp:   timestamp,
			Number:      opts.Number,
			PrevRandao:  opts.PrevRandao,
			GasLimit:    opts.BlockGasLimit,
			BaseFee:     opts.BaseFee,
			MaxCodeSize: opts.MaxCodeSize,
			Schedule:    opts.Schedule,
		},
		Tx: TxState{
			GasPrice:    opts.GasPrice,
			GasLimit:    opts.GasLimit,
			PriorityFee: opts.PriorityFee,
			Origin:      opts.Origin,
			ToAddr:      opts.Address,
			Value:       value,
			IsCreate:    opts.IsCreate,
			SubState:    substate,
			TxReversion: snapshotContracts(contracts),
		},
		Cache:       newCache(),
		Iterations:  map[CodeLoc]int{},
		Constraints: append([]expr.Prop(nil), opts.CalldataProps...),
		AllowFFI:    opts.AllowFFI,
	}
	if vm.Block.MaxCodeSize == 0 {
		vm.Block.MaxCodeSize = 24576
	}
	return vm
}
