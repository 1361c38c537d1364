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
	"testing"

	"github.com/symbolic-systems/sevm/go/sevm"
)

var testAddr = sevm.HexToAddress("0x1000000000000000000000000000000000000001")

func TestStorage_EmptyStoreMissesOnConcreteKeys(t *testing.T) {
	_, ok := ReadStorage(LitAddr(testAddr), LitU64(1), EmptyStorage)
	if ok {
		t.Errorf("a concrete lookup in the empty store must be a miss")
	}
}

func TestStorage_EmptyStoreIsZeroForSymbolicSlots(t *testing.T) {
	val, ok := ReadStorage(LitAddr(testAddr), NewVar("slot"), EmptyStorage)
	if !ok {
		t.Fatalf("expected a resolved read")
	}
	if !EqualWord(Zero, val) {
		t.Errorf("expected zero, got %v", val)
	}
}

func TestStorage_AbstractStoreReadsSymbolically(t *testing.T) {
	val, ok := ReadStorage(LitAddr(testAddr), LitU64(1), AbstractStorage)
	if !ok {
		t.Fatalf("expected a resolved read")
	}
	if _, isLoad := val.(*SLoad); !isLoad {
		t.Errorf("expected an SLoad node, got %T", val)
	}
}

func TestStorage_ConcreteWriteFoldsIntoStore(t *testing.T) {
	store := NewSStore(LitAddr(testAddr), LitU64(1), LitU64(42), EmptyStorage)
	if _, ok := store.(*ConcreteStore); !ok {
		t.Fatalf("expected a concrete store, got %T", store)
	}
	val, ok := ReadStorage(LitAddr(testAddr), LitU64(1), store)
	if !ok {
		t.Fatalf("expected a hit")
	}
	got := litOf(t, val)
	if want := litOf(t, LitU64(42)); want != got {
		t.Errorf("expected %v, got %v", &want, &got)
	}
}

func TestStorage_WriteDoesNotAliasSnapshot(t *testing.T) {
	base := NewSStore(LitAddr(testAddr), LitU64(1), LitU64(42), EmptyStorage)
	snapshot := base

	updated := NewSStore(LitAddr(testAddr), LitU64(1), LitU64(99), base)

	val, ok := ReadStorage(LitAddr(testAddr), LitU64(1), snapshot)
	if !ok {
		t.Fatalf("expected a hit in the snapshot")
	}
	got := litOf(t, val)
	if want := litOf(t, LitU64(42)); want != got {
		t.Errorf("snapshot was mutated: expected %v, got %v", &want, &got)
	}

	val, _ = ReadStorage(LitAddr(testAddr), LitU64(1), updated)
	got = litOf(t, val)
	if want := litOf(t, LitU64(99)); want != got {
		t.Errorf("expected the update to be visible, got %v", &got)
	}
}

func TestStorage_SymbolicWriteChainResolvesIdenticalSlot(t *testing.T) {
	slot := NewVar("slot")
	val := NewVar("val")
	store := NewSStore(LitAddr(testAddr), slot, val, AbstractStorage)
	got, ok := ReadStorage(LitAddr(testAddr), slot, store)
	if !ok {
		t.Fatalf("expected a resolved read")
	}
	if !EqualWord(val, got) {
		t.Errorf("expected the written value, got %v", got)
	}
}

func TestStorage_DistinctConcreteSlotsReachThroughWrites(t *testing.T) {
	store := NewSStore(LitAddr(testAddr), NewVar("slot"), NewVar("val"), AbstractStorage)
	outer := &SStore{Addr: LitAddr(testAddr), Slot: LitU64(7), Val: LitU64(1), Prev: store}

	// Reading slot 8 cannot alias the concrete write to slot 7, but it may
	// alias the symbolic write below it.
	got, ok := ReadStorage(LitAddr(testAddr), LitU64(8), outer)
	if !ok {
		t.Fatalf("expected a resolved read")
	}
	if _, isLoad := got.(*SLoad); !isLoad {
		t.Errorf("expected a symbolic load, got %T", got)
	}
}

func TestStorage_SameSlotWriteShadowsPrevious(t *testing.T) {
	slot := NewVar("slot")
	base := AbstractStorage
	first := NewSStore(LitAddr(testAddr), slot, LitU64(1), base)
	second := NewSStore(LitAddr(testAddr), slot, LitU64(2), first)
	write, ok := second.(*SStore)
	if !ok {
		t.Fatalf("expected a write node, got %T", second)
	}
	if !EqualStorage(base, write.Prev) {
		t.Errorf("expected the shadowed write to be dropped")
	}
}
