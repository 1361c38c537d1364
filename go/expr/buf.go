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

// Byte is a single byte, concrete or symbolic.
type Byte interface {
	isByte()
}

// LitByte is a concrete byte.
type LitByte struct {
	Val byte
}

// IndexWord is byte Ix of word W, counted from the most significant side
// (index 0 is the highest-order byte). Indices of 32 or more are zero.
type IndexWord struct {
	Ix Word
	W  Word
}

// ReadByte is a single-byte read from a buffer. Reads beyond the end of the
// buffer produce zero.
type ReadByte struct {
	Ix  Word
	Src Buf
}

func (*LitByte) isByte()   {}
func (*IndexWord) isByte() {}
func (*ReadByte) isByte()  {}

// Buf is a byte buffer, concrete or symbolic. Writes never mutate a buffer;
// they produce a new expression layered over the previous one. Concrete
// writes over concrete buffers fold back into flat byte slices.
type Buf interface {
	isBuf()
}

// ConcreteBuf is a fully concrete buffer.
type ConcreteBuf struct {
	Data []byte
}

// AbstractBuf is a buffer of unknown content and length, identified by name.
type AbstractBuf struct {
	Name string
}

// WriteWord is a 32-byte big-endian write of Val at offset Ix over Tail.
type WriteWord struct {
	Ix   Word
	Val  Word
	Tail Buf
}

// WriteByte is a single-byte write of Val at offset Ix over Tail.
type WriteByte struct {
	Ix   Word
	Val  Byte
	Tail Buf
}

// CopySlice is a copy of Size bytes from Src at SrcOff into Dst at DstOff.
type CopySlice struct {
	SrcOff Word
	DstOff Word
	Size   Word
	Src    Buf
	Dst    Buf
}

func (*ConcreteBuf) isBuf() {}
func (*AbstractBuf) isBuf() {}
func (*WriteWord) isBuf()   {}
func (*WriteByte) isBuf()   {}
func (*CopySlice) isBuf()   {}

// EmptyBuf is the zero-length concrete buffer.
var EmptyBuf Buf = &ConcreteBuf{}

// NewConcreteBuf wraps a byte slice as a buffer. The slice is not copied.
func NewConcreteBuf(data []byte) Buf {
	return &ConcreteBuf{Data: data}
}

// NewAbstractBuf creates a buffer of unknown content with the given name.
func NewAbstractBuf(name string) Buf {
	return &AbstractBuf{Name: name}
}

// AsConcreteBuf extracts the bytes of a fully concrete buffer.
func AsConcreteBuf(b Buf) ([]byte, bool) {
	if buf, ok := b.(*ConcreteBuf); ok {
		return buf.Data, true
	}
	return nil, false
}

// maxFoldSize bounds the buffer size up to which concrete writes are folded
// into flat byte slices. Larger offsets keep the symbolic form; memory
// expansion billing rejects such offsets long before they are read back.
const maxFoldSize = 1 << 24

// readConcrete reads n bytes at off from a concrete buffer, zero-extending
// past its end.
func readConcrete(data []byte, off, n uint64) []byte {
	res := make([]byte, n)
	if off < uint64(len(data)) {
		copy(res, data[off:])
	}
	return res
}

// NewIndexWord selects byte ix of word w, counted from the most significant
// byte.
func NewIndexWord(ix, w Word) Byte {
	i, okI := AsUint64(ix)
	if lit, ok := w.(*Lit); ok && okI {
		if i >= 32 {
			return &LitByte{Val: 0}
		}
		bytes := lit.Val.Bytes32()
		return &LitByte{Val: bytes[i]}
	}
	return &IndexWord{Ix: ix, W: w}
}

// NewReadByte reads the byte at ix from buf.
func NewReadByte(ix Word, buf Buf) Byte {
	i, okI := AsUint64(ix)
	switch b := buf.(type) {
	case *ConcreteBuf:
		if lit, ok := AsLit(ix); ok {
			if !lit.IsUint64() || lit.Uint64() >= uint64(len(b.Data)) {
				return &LitByte{Val: 0}
			}
			return &LitByte{Val: b.Data[lit.Uint64()]}
		}
	case *WriteByte:
		if wix, ok := AsUint64(b.Ix); ok && okI {
			if wix == i {
				return b.Val
			}
			return NewReadByte(ix, b.Tail)
		}
	case *WriteWord:
		if wix, ok := AsUint64(b.Ix); ok && okI {
			if i >= wix && i < wix+32 {
				return NewIndexWord(LitU64(i-wix), b.Val)
			}
			return NewReadByte(ix, b.Tail)
		}
	case *CopySlice:
		srcOff, okS := AsUint64(b.SrcOff)
		dstOff, okD := AsUint64(b.DstOff)
		size, okN := AsUint64(b.Size)
		if okS && okD && okN && okI {
			if i >= dstOff && i < dstOff+size {
				return NewReadByte(LitU64(srcOff+(i-dstOff)), b.Src)
			}
			return NewReadByte(ix, b.Dst)
		}
	}
	return &ReadByte{Ix: ix, Src: buf}
}

// NewReadWord reads the 32-byte big-endian word at ix from buf,
// zero-extending past the end of the buffer.
func NewReadWord(ix Word, buf Buf) Word {
	i, okI := AsUint64(ix)
	switch b := buf.(type) {
	case *ConcreteBuf:
		if lit, ok := AsLit(ix); ok {
			if !lit.IsUint64() || lit.Uint64() >= uint64(len(b.Data)) {
				return Zero
			}
			var w sevm.W256
			w.SetBytes(readConcrete(b.Data, lit.Uint64(), 32))
			return NewLit(w)
		}
	case *WriteWord:
		if wix, ok := AsUint64(b.Ix); ok && okI {
			if wix == i {
				return b.Val
			}
			if i+32 <= wix || wix+32 <= i {
				return NewReadWord(ix, b.Tail)
			}
		}
	case *WriteByte:
		if wix, ok := AsUint64(b.Ix); ok && okI {
			if i+32 <= wix || wix+1 <= i {
				return NewReadWord(ix, b.Tail)
			}
		}
	case *CopySlice:
		srcOff, okS := AsUint64(b.SrcOff)
		dstOff, okD := AsUint64(b.DstOff)
		size, okN := AsUint64(b.Size)
		if okS && okD && okN && okI {
			if i+32 <= dstOff || dstOff+size <= i {
				return NewReadWord(ix, b.Dst)
			}
			if i >= dstOff && i+32 <= dstOff+size {
				return NewReadWord(LitU64(srcOff+(i-dstOff)), b.Src)
			}
		}
	}
	return &ReadWord{Ix: ix, Src: buf}
}

// NewWriteByte writes a single byte at ix over tail.
func NewWriteByte(ix Word, val Byte, tail Buf) Buf {
	i, okI := AsUint64(ix)
	if litVal, okV := val.(*LitByte); okV && okI && i < maxFoldSize {
		if concrete, ok := tail.(*ConcreteBuf); ok {
			size := uint64(len(concrete.Data))
			if i+1 > size {
				size = i + 1
			}
			data := readConcrete(concrete.Data, 0, size)
			data[i] = litVal.Val
			return &ConcreteBuf{Data: data}
		}
	}
	// A write at the same index shadows the previous one.
	if prev, ok := tail.(*WriteByte); ok && EqualWord(ix, prev.Ix) {
		return NewWriteByte(ix, val, prev.Tail)
	}
	return &WriteByte{Ix: ix, Val: val, Tail: tail}
}

// NewWriteWord writes a 32-byte big-endian word at ix over tail.
func NewWriteWord(ix, val Word, tail Buf) Buf {
	i, okI := AsUint64(ix)
	if litVal, okV := val.(*Lit); okV && okI && i+32 < maxFoldSize {
		if concrete, ok := tail.(*ConcreteBuf); ok {
			size := uint64(len(concrete.Data))
			if i+32 > size {
				size = i + 32
			}
			data := readConcrete(concrete.Data, 0, size)
			word := litVal.Val.Bytes32()
			copy(data[i:], word[:])
			return &ConcreteBuf{Data: data}
		}
	}
	if prev, ok := tail.(*WriteWord); ok && EqualWord(ix, prev.Ix) {
		return NewWriteWord(ix, val, prev.Tail)
	}
	return &WriteWord{Ix: ix, Val: val, Tail: tail}
}

// NewCopySlice copies size bytes from src at srcOff into dst at dstOff.
// Reads past the end of src yield zero bytes.
func NewCopySlice(srcOff, dstOff, size Word, src, dst Buf) Buf {
	if IsZeroLit(size) {
		return dst
	}
	so, okS := AsUint64(srcOff)
	do, okD := AsUint64(dstOff)
	n, okN := AsUint64(size)
	if okS && okD && okN && do+n < maxFoldSize {
		srcData, srcOk := AsConcreteBuf(src)
		dstData, dstOk := AsConcreteBuf(dst)
		if srcOk && dstOk {
			resSize := uint64(len(dstData))
			if do+n > resSize {
				resSize = do + n
			}
			data := readConcrete(dstData, 0, resSize)
			copy(data[do:do+n], readConcrete(srcData, so, n))
			return &ConcreteBuf{Data: data}
		}
	}
	return &CopySlice{SrcOff: srcOff, DstOff: dstOff, Size: size, Src: src, Dst: dst}
}

// StaticLength determines the length of a buffer when it is statically
// known.
func StaticLength(b Buf) (uint64, bool) {
	switch buf := b.(type) {
	case *ConcreteBuf:
		return uint64(len(buf.Data)), true
	case *WriteByte:
		ix, ok := AsUint64(buf.Ix)
		if !ok {
			return 0, false
		}
		tail, ok := StaticLength(buf.Tail)
		if !ok {
			return 0, false
		}
		return max(ix+1, tail), true
	case *WriteWord:
		ix, ok := AsUint64(buf.Ix)
		if !ok {
			return 0, false
		}
		tail, ok := StaticLength(buf.Tail)
		if !ok {
			return 0, false
		}
		return max(ix+32, tail), true
	case *CopySlice:
		dstOff, okD := AsUint64(buf.DstOff)
		size, okN := AsUint64(buf.Size)
		if !okD || !okN {
			return 0, false
		}
		tail, ok := StaticLength(buf.Dst)
		if !ok {
			return 0, false
		}
		return max(dstOff+size, tail), true
	}
	return 0, false
}

// Length is the length of a buffer in bytes, as a word.
func Length(b Buf) Word {
	if n, ok := StaticLength(b); ok {
		return LitU64(n)
	}
	return &BufLength{Src: b}
}
