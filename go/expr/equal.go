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

import "bytes"

// EqualWord reports structural equality of two word expressions. Equality
// is syntactic: two structurally different expressions may still denote the
// same value.
func EqualWord(a, b Word) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
	case *Lit:
		y, ok := b.(*Lit)
		return ok && x.Val.Eq(&y.Val)
	case *Var:
		y, ok := b.(*Var)
		return ok && x.Name == y.Name
	case *Bin:
		y, ok := b.(*Bin)
		return ok && x.Op == y.Op && EqualWord(x.X, y.X) && EqualWord(x.Y, y.Y)
	case *Un:
		y, ok := b.(*Un)
		return ok && x.Op == y.Op && EqualWord(x.X, y.X)
	case *Tri:
		y, ok := b.(*Tri)
		return ok && x.Op == y.Op && EqualWord(x.X, y.X) &&
			EqualWord(x.Y, y.Y) && EqualWord(x.Z, y.Z)
	case *Sha3:
		y, ok := b.(*Sha3)
		return ok && EqualBuf(x.Data, y.Data)
	case *BlockHash:
		y, ok := b.(*BlockHash)
		return ok && EqualWord(x.Number, y.Number)
	case *CodeSize:
		y, ok := b.(*CodeSize)
		return ok && EqualWord(x.Addr, y.Addr)
	case *BufLength:
		y, ok := b.(*BufLength)
		return ok && EqualBuf(x.Src, y.Src)
	case *ReadWord:
		y, ok := b.(*ReadWord)
		return ok && EqualWord(x.Ix, y.Ix) && EqualBuf(x.Src, y.Src)
	case *SLoad:
		y, ok := b.(*SLoad)
		return ok && EqualWord(x.Addr, y.Addr) && EqualWord(x.Slot, y.Slot) &&
			EqualStorage(x.Store, y.Store)
	}
	return false
}

// EqualByte reports structural equality of two byte expressions.
func EqualByte(a, b Byte) bool {
	switch x := a.(type) {
	case *LitByte:
		y, ok := b.(*LitByte)
		return ok && x.Val == y.Val
	case *IndexWord:
		y, ok := b.(*IndexWord)
		return ok && EqualWord(x.Ix, y.Ix) && EqualWord(x.W, y.W)
	case *ReadByte:
		y, ok := b.(*ReadByte)
		return ok && EqualWord(x.Ix, y.Ix) && EqualBuf(x.Src, y.Src)
	}
	return false
}

// EqualBuf reports structural equality of two buffer expressions.
func EqualBuf(a, b Buf) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
	case *ConcreteBuf:
		y, ok := b.(*ConcreteBuf)
		return ok && bytes.Equal(x.Data, y.Data)
	case *AbstractBuf:
		y, ok := b.(*AbstractBuf)
		return ok && x.Name == y.Name
	case *WriteWord:
		y, ok := b.(*WriteWord)
		return ok && EqualWord(x.Ix, y.Ix) && EqualWord(x.Val, y.Val) &&
			EqualBuf(x.Tail, y.Tail)
	case *WriteByte:
		y, ok := b.(*WriteByte)
		return ok && EqualWord(x.Ix, y.Ix) && EqualByte(x.Val, y.Val) &&
			EqualBuf(x.Tail, y.Tail)
	case *CopySlice:
		y, ok := b.(*CopySlice)
		return ok && EqualWord(x.SrcOff, y.SrcOff) && EqualWord(x.DstOff, y.DstOff) &&
			EqualWord(x.Size, y.Size) && EqualBuf(x.Src, y.Src) && EqualBuf(x.Dst, y.Dst)
	}
	return false
}

// EqualStorage reports structural equality of two storage expressions.
// Concrete stores compare by content.
func EqualStorage(a, b Storage) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
	case *EmptyStore:
		_, ok := b.(*EmptyStore)
		return ok
	case *AbstractStore:
		_, ok := b.(*AbstractStore)
		return ok
	case *ConcreteStore:
		y, ok := b.(*ConcreteStore)
		if !ok || len(x.Store) != len(y.Store) {
			return false
		}
		for addr, slots := range x.Store {
			other, ok := y.Store[addr]
			if !ok || len(slots) != len(other) {
				return false
			}
			for slot, val := range slots {
				if otherVal, ok := other[slot]; !ok || val != otherVal {
					return false
				}
			}
		}
		return true
	case *SStore:
		y, ok := b.(*SStore)
		return ok && EqualWord(x.Addr, y.Addr) && EqualWord(x.Slot, y.Slot) &&
			EqualWord(x.Val, y.Val) && EqualStorage(x.Prev, y.Prev)
	}
	return false
}
