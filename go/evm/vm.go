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
	"golang.org/x/exp/maps"

	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

const maxStackSize = 1024
const maxCallDepth = 1024

// FrameState is the mutable state of one activation frame.
type FrameState struct {
	Pc         int
	Stack      []expr.Word // bottom first; the top of the stack is the last element
	Memory     expr.Buf
	MemorySize uint64
	Calldata   expr.Buf
	CallValue  expr.Word
	Caller     sevm.Address
	Contract   sevm.Address
	Code       ContractCode
	Gas        sevm.Gas
	ReturnData expr.Buf
	Static     bool
}

// FrameContext is the immutable context a frame was entered with, carrying
// the reversion snapshots used when the frame reverts or errors.
type FrameContext interface {
	isFrameContext()
}

// CreationContext is the context of a CREATE/CREATE2 frame.
type CreationContext struct {
	Addr          sevm.Address
	CodeHash      sevm.W256
	Reversion     map[sevm.Address]*Contract
	RevertStorage expr.Storage
	SubState      Substate
}

// CallContext is the context of a CALL-family frame.
type CallContext struct {
	Target        sevm.Address
	Context       sevm.Address
	OutOff        uint64
	OutSize       uint64
	CodeHash      sevm.W256
	Calldata      expr.Buf
	Reversion     map[sevm.Address]*Contract
	RevertStorage expr.Storage
	SubState      Substate
}

func (*CreationContext) isFrameContext() {}
func (*CallContext) isFrameContext()     {}

// Frame is a suspended parent activation.
type Frame struct {
	State   FrameState
	Context FrameContext
}

// storageKey identifies one storage slot for the EIP-2929 accessed set.
type storageKey struct {
	Addr sevm.Address
	Slot sevm.W256
}

// Refund is one entry of the refund ledger. Amounts may be negative when a
// dirty write takes a previously granted refund back.
type Refund struct {
	Addr   sevm.Address
	Amount sevm.Gas
}

// Substate accrues the per-transaction effects used by gas pricing and
// end-of-transaction state clearing.
type Substate struct {
	SelfDestructs       []sevm.Address
	TouchedAccounts     []sevm.Address
	AccessedAddresses   map[sevm.Address]struct{}
	AccessedStorageKeys map[storageKey]struct{}
	Refunds             []Refund
}

func newSubstate() Substate {
	return Substate{
		AccessedAddresses:   map[sevm.Address]struct{}{},
		AccessedStorageKeys: map[storageKey]struct{}{},
	}
}

func (s Substate) clone() Substate {
	return Substate{
		SelfDestructs:       append([]sevm.Address(nil), s.SelfDestructs...),
		TouchedAccounts:     append([]sevm.Address(nil), s.TouchedAccounts...),
		AccessedAddresses:   maps.Clone(s.AccessedAddresses),
		AccessedStorageKeys: maps.Clone(s.AccessedStorageKeys),
		Refunds:             append([]Refund(nil), s.Refunds...),
	}
}

func (s *Substate) accessAddress(addr sevm.Address) (warm bool) {
	if _, ok := s.AccessedAddresses[addr]; ok {
		return true
	}
	s.AccessedAddresses[addr] = struct{}{}
	return false
}

func (s *Substate) accessStorageKey(addr sevm.Address, slot sevm.W256) (warm bool) {
	key := storageKey{Addr: addr, Slot: slot}
	if _, ok := s.AccessedStorageKeys[key]; ok {
		return true
	}
	s.AccessedStorageKeys[key] = struct{}{}
	return false
}

func (s *Substate) touchAccount(addr sevm.Address) {
	s.TouchedAccounts = append(s.TouchedAccounts, addr)
}

// Env is the process state shared by all frames of a transaction.
type Env struct {
	Contracts map[sevm.Address]*Contract
	ChainID   sevm.W256
	Storage   expr.Storage

	// OrigStorage holds the concrete slot values at transaction start,
	// feeding the SSTORE refund policy.
	OrigStorage map[sevm.Address]map[sevm.W256]sevm.W256

	// Sha3Crack maps concrete keccak digests back to their preimages, for
	// display purposes.
	Sha3Crack map[sevm.W256][]byte
}

func (e *Env) origStorageValue(addr sevm.Address, slot sevm.W256) sevm.W256 {
	if slots, ok := e.OrigStorage[addr]; ok {
		if val, ok := slots[slot]; ok {
			return val
		}
	}
	return sevm.W256{}
}

func (e *Env) setOrigStorage(addr sevm.Address, slot, val sevm.W256) {
	slots, ok := e.OrigStorage[addr]
	if !ok {
		slots = map[sevm.W256]sevm.W256{}
		e.OrigStorage[addr] = slots
	}
	if _, ok := slots[slot]; !ok {
		slots[slot] = val
	}
}

// Block carries the block-level environment.
type Block struct {
	Coinbase    sevm.Address
	TimeStamp   expr.Word
	Number      sevm.W256
	PrevRandao  sevm.W256
	GasLimit    uint64
	BaseFee     sevm.W256
	MaxCodeSize uint64
	Schedule    sevm.FeeSchedule
}

// TxState carries the transaction-level environment, the substate and the
// transaction-start reversion snapshot.
type TxState struct {
	GasPrice    sevm.W256
	GasLimit    sevm.Gas
	PriorityFee sevm.W256
	Origin      sevm.Address
	ToAddr      sevm.Address
	Value       expr.Word
	IsCreate    bool
	SubState    Substate
	TxReversion map[sevm.Address]*Contract
}

// CodeLoc identifies a code location for branch bookkeeping.
type CodeLoc struct {
	Addr sevm.Address
	Pc   int
}

// PathKey keys a cached branch decision by location and visit count.
type PathKey struct {
	Loc       CodeLoc
	Iteration int
}

// Cache memoizes data across transactions: fetched contracts and slots, and
// resolved branch decisions.
type Cache struct {
	FetchedContracts map[sevm.Address]*Contract
	FetchedStorage   map[sevm.Address]map[sevm.W256]sevm.W256
	Path             map[PathKey]bool
}

func newCache() Cache {
	return Cache{
		FetchedContracts: map[sevm.Address]*Contract{},
		FetchedStorage:   map[sevm.Address]map[sevm.W256]sevm.W256{},
		Path:             map[PathKey]bool{},
	}
}

// Merge combines two caches. Merging is refused when the caches disagree on
// a branch decision or a fetched slot value, or when both hold a fetched
// contract for the same address; a refused merge leaves c unchanged.
// Partial unification semantics are deliberately not defined.
func (c *Cache) Merge(other *Cache) error {
	const errConflictingCaches = sevm.ConstError("caches disagree, refusing to merge")
	for key, val := range other.Path {
		if prev, ok := c.Path[key]; ok && prev != val {
			return errConflictingCaches
		}
	}
	for addr := range other.FetchedContracts {
		if _, ok := c.FetchedContracts[addr]; ok {
			return errConflictingCaches
		}
	}
	for addr, slots := range other.FetchedStorage {
		for slot, val := range slots {
			if prev, ok := c.FetchedStorage[addr][slot]; ok && prev != val {
				return errConflictingCaches
			}
		}
	}
	for key, val := range other.Path {
		c.Path[key] = val
	}
	for addr, contract := range other.FetchedContracts {
		c.FetchedContracts[addr] = contract
	}
	for addr, slots := range other.FetchedStorage {
		dst, ok := c.FetchedStorage[addr]
		if !ok {
			dst = map[sevm.W256]sevm.W256{}
			c.FetchedStorage[addr] = dst
		}
		for slot, val := range slots {
			if prev, ok := dst[slot]; ok && prev != val {
				return errConflictingCaches
			}
			dst[slot] = val
		}
	}
	return nil
}

// Result is the outcome of a halted VM. A nil Err means success; a non-nil
// Err is either an EVM-level error or a pending Query.
type Result struct {
	Output expr.Buf
	Err    error
}

// VM is one symbolic EVM execution. It is advanced one opcode at a time by
// Step; a nil Result means the machine is still running.
type VM struct {
	Result *Result

	State  FrameState
	Frames []*Frame

	Env   Env
	Block Block
	Tx    TxState

	Logs []expr.Log

	// Burned counts the gas charged so far, for accounting.
	Burned sevm.Gas

	Cache       Cache
	Iterations  map[CodeLoc]int
	Constraints []expr.Prop

	// KeccakEqs records equalities learned when concrete keccak digests
	// were computed, so preimages are available to the solver.
	KeccakEqs []expr.Prop

	AllowFFI       bool
	OverrideCaller *sevm.Address

	traces traceCursor
}

// currentContract is the contract whose storage and balance the current
// frame operates on.
func (vm *VM) currentContract() *Contract {
	return vm.Env.Contracts[vm.State.Contract]
}

// withContract applies f to the contract at addr, if present.
func (vm *VM) withContract(addr sevm.Address, f func(*Contract)) {
	if c, ok := vm.Env.Contracts[addr]; ok {
		f(c)
	}
}

// snapshotContracts clones the contract map for a reversion snapshot.
// Contract values are copied shallowly; code and decoded maps are immutable.
func snapshotContracts(contracts map[sevm.Address]*Contract) map[sevm.Address]*Contract {
	snapshot := make(map[sevm.Address]*Contract, len(contracts))
	for addr, contract := range contracts {
		snapshot[addr] = contract.clone()
	}
	return snapshot
}

// accountExists reports whether an account exists in the EIP-161 sense.
func (vm *VM) accountExists(addr sevm.Address) bool {
	c, ok := vm.Env.Contracts[addr]
	if !ok {
		return false
	}
	return !accountEmpty(c)
}

func accountEmpty(c *Contract) bool {
	if c.Nonce != 0 || !c.Balance.IsZero() {
		return false
	}
	if code, ok := c.Code.(*RuntimeCode); ok {
		return code.Symbolic == nil && len(code.Concrete) == 0
	}
	return false
}

// emptyContract creates a fresh account with no code, balance or nonce.
func emptyContract() *Contract {
	return NewContract(&RuntimeCode{Concrete: []byte{}})
}
