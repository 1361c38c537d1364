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
	"github.com/holiman/uint256"

	"github.com/symbolic-systems/sevm/go/sevm"
)

// Word is a 256-bit EVM word, either a concrete literal or a symbolic
// expression. Values of this sort live on the stack, in storage slots and
// in every arithmetic position of the instruction set.
//
// All word expressions are produced through the smart constructors in this
// package. The constructors fold concrete operands, so a tree containing a
// symbolic node is symbolic by necessity, not by accident.
type Word interface {
	isWord()
}

// Lit is a concrete 256-bit word.
type Lit struct {
	Val sevm.W256
}

// Var is an abstract word identified by name.
type Var struct {
	Name string
}

// BinOp enumerates the binary word operators.
type BinOp byte

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpSDiv
	OpMod
	OpSMod
	OpExp
	OpLt
	OpGt
	OpSLt
	OpSGt
	OpEq
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
	OpSEx
)

// UnOp enumerates the unary word operators.
type UnOp byte

const (
	OpIsZero UnOp = iota
	OpNot
)

// TriOp enumerates the ternary word operators.
type TriOp byte

const (
	OpAddMod TriOp = iota
	OpMulMod
)

// Bin is a symbolic application of a binary operator.
type Bin struct {
	Op   BinOp
	X, Y Word
}

// Un is a symbolic application of a unary operator.
type Un struct {
	Op UnOp
	X  Word
}

// Tri is a symbolic application of a ternary operator.
type Tri struct {
	Op      TriOp
	X, Y, Z Word
}

// Sha3 is the keccak256 digest of a buffer.
type Sha3 struct {
	Data Buf
}

// BlockHash is the hash of the block with the given number.
type BlockHash struct {
	Number Word
}

// CodeSize is the code size of the account at the given address.
type CodeSize struct {
	Addr Word
}

// BufLength is the length in bytes of a buffer.
type BufLength struct {
	Src Buf
}

// ReadWord is a 32-byte big-endian read from a buffer. Reads beyond the end
// of the buffer produce zero bytes.
type ReadWord struct {
	Ix  Word
	Src Buf
}

// SLoad is a read of a storage slot from a storage expression.
type SLoad struct {
	Addr  Word
	Slot  Word
	Store Storage
}

func (*Lit) isWord()       {}
func (*Var) isWord()       {}
func (*Bin) isWord()       {}
func (*Un) isWord()        {}
func (*Tri) isWord()       {}
func (*Sha3) isWord()      {}
func (*BlockHash) isWord() {}
func (*CodeSize) isWord()  {}
func (*BufLength) isWord() {}
func (*ReadWord) isWord()  {}
func (*SLoad) isWord()     {}

// Zero and One are shared literals for the most common constants.
var (
	Zero Word = &Lit{}
	One  Word = &Lit{Val: *uint256.NewInt(1)}
)

// NewLit wraps a concrete word value.
func NewLit(v sevm.W256) Word {
	return &Lit{Val: v}
}

// LitU64 wraps a uint64 as a concrete word.
func LitU64(v uint64) Word {
	return &Lit{Val: *uint256.NewInt(v)}
}

// LitAddr wraps an address as a concrete word.
func LitAddr(a sevm.Address) Word {
	return &Lit{Val: a.ToWord()}
}

// NewVar creates an abstract word with the given name.
func NewVar(name string) Word {
	return &Var{Name: name}
}

// AsLit extracts the concrete value of a word, if it has one.
func AsLit(w Word) (*sevm.W256, bool) {
	if lit, ok := w.(*Lit); ok {
		return &lit.Val, true
	}
	return nil, false
}

// AsUint64 extracts a concrete word that fits into a uint64.
func AsUint64(w Word) (uint64, bool) {
	lit, ok := w.(*Lit)
	if !ok || !lit.Val.IsUint64() {
		return 0, false
	}
	return lit.Val.Uint64(), true
}

// IsZeroLit reports whether the word is the literal zero.
func IsZeroLit(w Word) bool {
	lit, ok := w.(*Lit)
	return ok && lit.Val.IsZero()
}

func lits(x, y Word) (*sevm.W256, *sevm.W256, bool) {
	a, okA := x.(*Lit)
	b, okB := y.(*Lit)
	if !okA || !okB {
		return nil, nil, false
	}
	return &a.Val, &b.Val, true
}

func boolWord(b bool) Word {
	if b {
		return One
	}
	return Zero
}

// Add computes x + y with 256-bit wrap-around.
func Add(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.Add(a, b)
		return NewLit(z)
	}
	if IsZeroLit(x) {
		return y
	}
	if IsZeroLit(y) {
		return x
	}
	return &Bin{Op: OpAdd, X: x, Y: y}
}

// Sub computes x - y with 256-bit wrap-around.
func Sub(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.Sub(a, b)
		return NewLit(z)
	}
	if IsZeroLit(y) {
		return x
	}
	return &Bin{Op: OpSub, X: x, Y: y}
}

// Mul computes x * y with 256-bit wrap-around.
func Mul(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.Mul(a, b)
		return NewLit(z)
	}
	if IsZeroLit(x) || IsZeroLit(y) {
		return Zero
	}
	if lit, ok := x.(*Lit); ok && lit.Val.Eq(uint256.NewInt(1)) {
		return y
	}
	if lit, ok := y.(*Lit); ok && lit.Val.Eq(uint256.NewInt(1)) {
		return x
	}
	return &Bin{Op: OpMul, X: x, Y: y}
}

// Div computes x / y, with x / 0 = 0.
func Div(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.Div(a, b) // uint256 defines x/0 = 0
		return NewLit(z)
	}
	if IsZeroLit(y) {
		return Zero
	}
	if lit, ok := y.(*Lit); ok && lit.Val.Eq(uint256.NewInt(1)) {
		return x
	}
	return &Bin{Op: OpDiv, X: x, Y: y}
}

// SDiv computes the two's-complement signed division, with x / 0 = 0.
func SDiv(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.SDiv(a, b)
		return NewLit(z)
	}
	if IsZeroLit(y) {
		return Zero
	}
	return &Bin{Op: OpSDiv, X: x, Y: y}
}

// Mod computes x % y, with x % 0 = 0.
func Mod(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.Mod(a, b)
		return NewLit(z)
	}
	if IsZeroLit(y) {
		return Zero
	}
	return &Bin{Op: OpMod, X: x, Y: y}
}

// SMod computes the two's-complement signed remainder, with x % 0 = 0.
func SMod(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.SMod(a, b)
		return NewLit(z)
	}
	if IsZeroLit(y) {
		return Zero
	}
	return &Bin{Op: OpSMod, X: x, Y: y}
}

// AddMod computes (x + y) % m without intermediate wrap-around; m = 0
// yields 0.
func AddMod(x, y, m Word) Word {
	a, okA := x.(*Lit)
	b, okB := y.(*Lit)
	c, okC := m.(*Lit)
	if okA && okB && okC {
		var z sevm.W256
		z.AddMod(&a.Val, &b.Val, &c.Val)
		return NewLit(z)
	}
	if IsZeroLit(m) {
		return Zero
	}
	return &Tri{Op: OpAddMod, X: x, Y: y, Z: m}
}

// MulMod computes (x * y) % m without intermediate wrap-around; m = 0
// yields 0.
func MulMod(x, y, m Word) Word {
	a, okA := x.(*Lit)
	b, okB := y.(*Lit)
	c, okC := m.(*Lit)
	if okA && okB && okC {
		var z sevm.W256
		z.MulMod(&a.Val, &b.Val, &c.Val)
		return NewLit(z)
	}
	if IsZeroLit(m) {
		return Zero
	}
	return &Tri{Op: OpMulMod, X: x, Y: y, Z: m}
}

// Exp computes x ** y with 256-bit wrap-around.
func Exp(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.Exp(a, b)
		return NewLit(z)
	}
	if IsZeroLit(y) {
		return One
	}
	return &Bin{Op: OpExp, X: x, Y: y}
}

// Lt computes x < y as 0 or 1.
func Lt(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		return boolWord(a.Lt(b))
	}
	return &Bin{Op: OpLt, X: x, Y: y}
}

// Gt computes x > y as 0 or 1.
func Gt(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		return boolWord(a.Gt(b))
	}
	return &Bin{Op: OpGt, X: x, Y: y}
}

// SLt computes the signed comparison x < y as 0 or 1.
func SLt(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		return boolWord(a.Slt(b))
	}
	return &Bin{Op: OpSLt, X: x, Y: y}
}

// SGt computes the signed comparison x > y as 0 or 1.
func SGt(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		return boolWord(a.Sgt(b))
	}
	return &Bin{Op: OpSGt, X: x, Y: y}
}

// Eq computes x == y as 0 or 1. Structurally identical operands fold to 1
// even when symbolic.
func Eq(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		return boolWord(a.Eq(b))
	}
	if EqualWord(x, y) {
		return One
	}
	return &Bin{Op: OpEq, X: x, Y: y}
}

// IsZero computes x == 0 as 0 or 1.
func IsZero(x Word) Word {
	if lit, ok := x.(*Lit); ok {
		return boolWord(lit.Val.IsZero())
	}
	return &Un{Op: OpIsZero, X: x}
}

// And computes the bitwise conjunction of x and y.
func And(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.And(a, b)
		return NewLit(z)
	}
	if IsZeroLit(x) || IsZeroLit(y) {
		return Zero
	}
	return &Bin{Op: OpAnd, X: x, Y: y}
}

// Or computes the bitwise disjunction of x and y.
func Or(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.Or(a, b)
		return NewLit(z)
	}
	if IsZeroLit(x) {
		return y
	}
	if IsZeroLit(y) {
		return x
	}
	return &Bin{Op: OpOr, X: x, Y: y}
}

// Xor computes the bitwise exclusive or of x and y.
func Xor(x, y Word) Word {
	if a, b, ok := lits(x, y); ok {
		var z sevm.W256
		z.Xor(a, b)
		return NewLit(z)
	}
	return &Bin{Op: OpXor, X: x, Y: y}
}

// Not computes the bitwise complement of x.
func Not(x Word) Word {
	if lit, ok := x.(*Lit); ok {
		var z sevm.W256
		z.Not(&lit.Val)
		return NewLit(z)
	}
	return &Un{Op: OpNot, X: x}
}

// Shl computes y << x; shifts of 256 or more yield 0. Note the EVM operand
// order: the shift amount is the first operand.
func Shl(shift, value Word) Word {
	if a, b, ok := lits(shift, value); ok {
		if a.GtUint64(255) {
			return Zero
		}
		var z sevm.W256
		z.Lsh(b, uint(a.Uint64()))
		return NewLit(z)
	}
	if IsZeroLit(shift) {
		return value
	}
	return &Bin{Op: OpShl, X: shift, Y: value}
}

// Shr computes y >> x (logical); shifts of 256 or more yield 0.
func Shr(shift, value Word) Word {
	if a, b, ok := lits(shift, value); ok {
		if a.GtUint64(255) {
			return Zero
		}
		var z sevm.W256
		z.Rsh(b, uint(a.Uint64()))
		return NewLit(z)
	}
	if IsZeroLit(shift) {
		return value
	}
	return &Bin{Op: OpShr, X: shift, Y: value}
}

// Sar computes y >> x (arithmetic); shifts of 256 or more yield 0 for
// non-negative values and all ones for negative values.
func Sar(shift, value Word) Word {
	if a, b, ok := lits(shift, value); ok {
		var z sevm.W256
		if a.GtUint64(255) {
			if b.Sign() < 0 {
				z.SetAllOne()
			}
			return NewLit(z)
		}
		z.SRsh(b, uint(a.Uint64()))
		return NewLit(z)
	}
	if IsZeroLit(shift) {
		return value
	}
	return &Bin{Op: OpSar, X: shift, Y: value}
}

// SEx sign-extends value from byte position b (counted from the least
// significant end), as the SIGNEXTEND instruction does.
func SEx(b, value Word) Word {
	if a, v, ok := lits(b, value); ok {
		var z sevm.W256
		z.ExtendSign(v, a)
		return NewLit(z)
	}
	return &Bin{Op: OpSEx, X: b, Y: value}
}

// Keccak computes the keccak256 digest of a buffer. A concrete buffer folds
// to a literal digest.
func Keccak(data Buf) Word {
	if buf, ok := data.(*ConcreteBuf); ok {
		hash := sevm.Keccak256(buf.Data)
		return NewLit(hash.ToWord())
	}
	return &Sha3{Data: data}
}

// NewBlockHash builds a block hash reference for the given block number.
func NewBlockHash(number Word) Word {
	return &BlockHash{Number: number}
}

// NewCodeSize builds a code size reference for the given address.
func NewCodeSize(addr Word) Word {
	return &CodeSize{Addr: addr}
}
