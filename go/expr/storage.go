// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package expr

import (
	"github.com/symbolic-systems/sevm/go/sevm"
)

// Storage is the world storage, concrete or symbolic. Writes layer SStore
// nodes over a base store; the shared tail makes reversion snapshots cheap.
type Storage interface {
	isStorage()
}

// EmptyStore is a store in which every slot of every account is zero.
type EmptyStore struct{}

// ConcreteStore maps addresses to slot assignments. Unlisted slots are zero.
type ConcreteStore struct {
	Store map[sevm.Address]map[sevm.W256]sevm.W256
}

// AbstractStore is a store of entirely unknown content.
type AbstractStore struct{}

// SStore is a write of Val to Slot of the account at Addr, over Prev.
type SStore struct {
	Addr Word
	Slot Word
	Val  Word
	Prev Storage
}

func (*EmptyStore) isStorage()    {}
func (*ConcreteStore) isStorage() {}
func (*AbstractStore) isStorage() {}
func (*SStore) isStorage()        {}

// EmptyStorage is the all-zero store.
var EmptyStorage Storage = &EmptyStore{}

// AbstractStorage is the fully unknown store.
var AbstractStorage Storage = &AbstractStore{}

// NewConcreteStore creates a concrete store over the given assignments. The
// outer map is not copied.
func NewConcreteStore(store map[sevm.Address]map[sevm.W256]sevm.W256) Storage {
	if store == nil {
		store = map[sevm.Address]map[sevm.W256]sevm.W256{}
	}
	return &ConcreteStore{Store: store}
}

// NewSStore writes val to the slot of the account at addr over prev.
// Concrete writes over concrete stores fold into the store; repeated writes
// to the same slot shadow each other.
func NewSStore(addr, slot, val Word, prev Storage) Storage {
	addrLit, okA := AsLit(addr)
	slotLit, okS := AsLit(slot)
	valLit, okV := AsLit(val)
	if okA && okS && okV {
		switch base := prev.(type) {
		case *EmptyStore:
			a := sevm.AddressFromWord(addrLit)
			return &ConcreteStore{Store: map[sevm.Address]map[sevm.W256]sevm.W256{
				a: {*slotLit: *valLit},
			}}
		case *ConcreteStore:
			// Copy-on-write: the base map may be shared with reversion
			// snapshots.
			a := sevm.AddressFromWord(addrLit)
			store := make(map[sevm.Address]map[sevm.W256]sevm.W256, len(base.Store)+1)
			for k, v := range base.Store {
				store[k] = v
			}
			slots := make(map[sevm.W256]sevm.W256, len(base.Store[a])+1)
			for k, v := range base.Store[a] {
				slots[k] = v
			}
			slots[*slotLit] = *valLit
			store[a] = slots
			return &ConcreteStore{Store: store}
		}
	}
	if prevWrite, ok := prev.(*SStore); ok &&
		EqualWord(addr, prevWrite.Addr) && EqualWord(slot, prevWrite.Slot) {
		return NewSStore(addr, slot, val, prevWrite.Prev)
	}
	return &SStore{Addr: addr, Slot: slot, Val: val, Prev: prev}
}

// NewSLoad builds a symbolic storage read.
func NewSLoad(addr, slot Word, store Storage) Word {
	return &SLoad{Addr: addr, Slot: slot, Store: store}
}

// ReadStorage resolves a storage read when it is statically determinable.
// The boolean result is false only for a miss in a concrete store, in which
// case the caller decides between fetching the slot (external contracts)
// and defaulting it to zero (native contracts).
func ReadStorage(addr, slot Word, store Storage) (Word, bool) {
	switch s := store.(type) {
	case *EmptyStore:
		// Concrete lookups report a miss so the engine can decide between
		// fetching (external contracts) and defaulting to zero. A symbolic
		// slot of an all-zero store is zero regardless.
		_, okA := AsLit(addr)
		_, okS := AsLit(slot)
		if okA && okS {
			return nil, false
		}
		return Zero, true
	case *AbstractStore:
		return NewSLoad(addr, slot, store), true
	case *ConcreteStore:
		addrLit, okA := AsLit(addr)
		slotLit, okS := AsLit(slot)
		if !okA || !okS {
			return NewSLoad(addr, slot, store), true
		}
		slots, ok := s.Store[sevm.AddressFromWord(addrLit)]
		if !ok {
			return nil, false
		}
		val, ok := slots[*slotLit]
		if !ok {
			return nil, false
		}
		return NewLit(val), true
	case *SStore:
		if EqualWord(addr, s.Addr) && EqualWord(slot, s.Slot) {
			return s.Val, true
		}
		// Distinct concrete keys cannot alias; everything else might.
		if litPairDiffers(addr, s.Addr) || litPairDiffers(slot, s.Slot) {
			return ReadStorage(addr, slot, s.Prev)
		}
		return NewSLoad(addr, slot, store), true
	}
	return nil, false
}

func litPairDiffers(a, b Word) bool {
	x, okX := AsLit(a)
	y, okY := AsLit(b)
	return okX && okY && !x.Eq(y)
}
