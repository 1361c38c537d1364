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

	"github.com/holiman/uint256"

	"github.com/symbolic-systems/sevm/go/sevm"
)

func litOf(t *testing.T, w Word) sevm.W256 {
	t.Helper()
	lit, ok := AsLit(w)
	if !ok {
		t.Fatalf("expected a literal, got %T", w)
	}
	return *lit
}

func maxWord() sevm.W256 {
	var w sevm.W256
	w.SetAllOne()
	return w
}

func TestWord_ConcreteArithmeticFolds(t *testing.T) {
	tests := map[string]struct {
		got  Word
		want uint64
	}{
		"add":              {Add(LitU64(1), LitU64(2)), 3},
		"sub":              {Sub(LitU64(5), LitU64(3)), 2},
		"mul":              {Mul(LitU64(6), LitU64(7)), 42},
		"div":              {Div(LitU64(42), LitU64(6)), 7},
		"div by zero":      {Div(LitU64(42), LitU64(0)), 0},
		"mod":              {Mod(LitU64(42), LitU64(5)), 2},
		"mod by zero":      {Mod(LitU64(42), LitU64(0)), 0},
		"smod by zero":     {SMod(LitU64(42), LitU64(0)), 0},
		"sdiv by zero":     {SDiv(LitU64(42), LitU64(0)), 0},
		"addmod":           {AddMod(LitU64(10), LitU64(10), LitU64(8)), 4},
		"addmod by zero":   {AddMod(LitU64(10), LitU64(10), LitU64(0)), 0},
		"mulmod":           {MulMod(LitU64(10), LitU64(10), LitU64(8)), 4},
		"mulmod by zero":   {MulMod(LitU64(10), LitU64(10), LitU64(0)), 0},
		"exp":              {Exp(LitU64(2), LitU64(10)), 1024},
		"exp zero":         {Exp(LitU64(99), LitU64(0)), 1},
		"lt true":          {Lt(LitU64(1), LitU64(2)), 1},
		"lt false":         {Lt(LitU64(2), LitU64(1)), 0},
		"gt true":          {Gt(LitU64(2), LitU64(1)), 1},
		"eq true":          {Eq(LitU64(4), LitU64(4)), 1},
		"eq false":         {Eq(LitU64(4), LitU64(5)), 0},
		"iszero of zero":   {IsZero(LitU64(0)), 1},
		"iszero non-zero":  {IsZero(LitU64(17)), 0},
		"and":              {And(LitU64(0b1100), LitU64(0b1010)), 0b1000},
		"or":               {Or(LitU64(0b1100), LitU64(0b1010)), 0b1110},
		"xor":              {Xor(LitU64(0b1100), LitU64(0b1010)), 0b0110},
		"shl":              {Shl(LitU64(4), LitU64(1)), 16},
		"shr":              {Shr(LitU64(4), LitU64(32)), 2},
		"shl overflowing":  {Shl(LitU64(256), LitU64(1)), 0},
		"shr overflowing":  {Shr(LitU64(256), maxLit()), 0},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if want, got := test.want, litOf(t, test.got); !got.Eq(uint256.NewInt(want)) {
				t.Errorf("expected %d, got %v", want, &got)
			}
		})
	}
}

func maxLit() Word {
	max := maxWord()
	return NewLit(max)
}

func TestWord_AddWrapsAround(t *testing.T) {
	max := maxWord()
	res := litOf(t, Add(NewLit(max), LitU64(1)))
	if !res.IsZero() {
		t.Errorf("expected wrap-around to zero, got %v", &res)
	}
}

func TestWord_SubWrapsAround(t *testing.T) {
	res := litOf(t, Sub(LitU64(0), LitU64(1)))
	if want := maxWord(); res != want {
		t.Errorf("expected wrap-around to max, got %v", &res)
	}
}

func TestWord_SignedOperations(t *testing.T) {
	minusOne := maxWord() // two's complement -1
	minusTwo := maxWord()
	minusTwo.SubUint64(&minusTwo, 1)

	// -4 / 2 == -2
	minusFour := maxWord()
	minusFour.SubUint64(&minusFour, 3)
	if want, got := minusTwo, litOf(t, SDiv(NewLit(minusFour), LitU64(2))); want != got {
		t.Errorf("sdiv: expected %v, got %v", &want, &got)
	}

	// -1 < 1 signed
	if got := litOf(t, SLt(NewLit(minusOne), LitU64(1))); !got.Eq(uint256.NewInt(1)) {
		t.Errorf("slt: expected -1 < 1, got %v", &got)
	}
	// 1 > -1 signed
	if got := litOf(t, SGt(LitU64(1), NewLit(minusOne))); !got.Eq(uint256.NewInt(1)) {
		t.Errorf("sgt: expected 1 > -1, got %v", &got)
	}

	// sar of a negative value shifts in ones
	if want, got := minusOne, litOf(t, Sar(LitU64(300), NewLit(minusOne))); want != got {
		t.Errorf("sar: expected all ones, got %v", &got)
	}
	// signextend of 0xff from byte 0 is -1
	if want, got := minusOne, litOf(t, SEx(LitU64(0), LitU64(0xff))); want != got {
		t.Errorf("signextend: expected all ones, got %v", &got)
	}
}

func TestWord_NeutralElementsSimplify(t *testing.T) {
	x := NewVar("x")
	tests := map[string]Word{
		"add zero left":  Add(Zero, x),
		"add zero right": Add(x, Zero),
		"sub zero":       Sub(x, Zero),
		"mul one left":   Mul(One, x),
		"mul one right":  Mul(x, One),
		"div one":        Div(x, One),
		"or zero":        Or(x, Zero),
		"shl by zero":    Shl(Zero, x),
	}
	for name, got := range tests {
		t.Run(name, func(t *testing.T) {
			if !EqualWord(x, got) {
				t.Errorf("expected simplification to x, got %v", got)
			}
		})
	}
}

func TestWord_AbsorbingElementsSimplify(t *testing.T) {
	x := NewVar("x")
	tests := map[string]Word{
		"mul zero left":  Mul(Zero, x),
		"mul zero right": Mul(x, Zero),
		"div by zero":    Div(x, Zero),
		"mod by zero":    Mod(x, Zero),
		"and zero":       And(Zero, x),
	}
	for name, got := range tests {
		t.Run(name, func(t *testing.T) {
			if !EqualWord(Zero, got) {
				t.Errorf("expected simplification to zero, got %v", got)
			}
		})
	}
}

func TestWord_EqOfIdenticalTermsFolds(t *testing.T) {
	x := Add(NewVar("a"), NewVar("b"))
	y := Add(NewVar("a"), NewVar("b"))
	if want, got := One, Eq(x, y); !EqualWord(want, got) {
		t.Errorf("expected structural equality to fold to one, got %v", got)
	}
}

func TestWord_SymbolicOperandsStaySymbolic(t *testing.T) {
	x := NewVar("x")
	res := Add(x, LitU64(1))
	if _, ok := res.(*Bin); !ok {
		t.Fatalf("expected a symbolic node, got %T", res)
	}
	if _, ok := AsLit(res); ok {
		t.Errorf("symbolic addition must not fold to a literal")
	}
}

func TestWord_KeccakOfConcreteBufFolds(t *testing.T) {
	data := []byte{1, 2, 3}
	got := Keccak(NewConcreteBuf(data))
	want := sevm.Keccak256(data).ToWord()
	lit := litOf(t, got)
	if lit != want {
		t.Errorf("expected %v, got %v", &want, &lit)
	}
}

func TestWord_KeccakOfAbstractBufStaysSymbolic(t *testing.T) {
	got := Keccak(NewAbstractBuf("data"))
	if _, ok := got.(*Sha3); !ok {
		t.Errorf("expected a Sha3 node, got %T", got)
	}
}
