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

// ContractCode is the code of an account, either deployment (init) code or
// deployed (runtime) code.
type ContractCode interface {
	isContractCode()
}

// InitCode is constructor code: a concrete instruction prefix optionally
// followed by an abstract tail holding symbolic constructor arguments. Only
// the concrete prefix is executable.
type InitCode struct {
	Code         []byte
	AbstractTail expr.Buf
}

// RuntimeCode is deployed code. Exactly one of Concrete and Symbolic is
// set; symbolic runtime code carries one byte expression per code byte.
type RuntimeCode struct {
	Concrete []byte
	Symbolic []expr.Byte
}

func (*InitCode) isContractCode()    {}
func (*RuntimeCode) isContractCode() {}

// opslen is the number of executable code bytes.
func opslen(code ContractCode) int {
	switch c := code.(type) {
	case *InitCode:
		return len(c.Code)
	case *RuntimeCode:
		if c.Symbolic != nil {
			return len(c.Symbolic)
		}
		return len(c.Concrete)
	}
	return 0
}

// codeByte reads the instruction byte at ix. The boolean result is false
// when the byte is symbolic.
func codeByte(code ContractCode, ix int) (byte, bool) {
	switch c := code.(type) {
	case *InitCode:
		if ix < len(c.Code) {
			return c.Code[ix], true
		}
		return 0, true
	case *RuntimeCode:
		if c.Symbolic != nil {
			if ix >= len(c.Symbolic) {
				return 0, true
			}
			if lit, ok := c.Symbolic[ix].(*expr.LitByte); ok {
				return lit.Val, true
			}
			return 0, false
		}
		if ix < len(c.Concrete) {
			return c.Concrete[ix], true
		}
		return 0, true
	}
	return 0, true
}

// toBuf converts code into a buffer expression, for CODECOPY and hashing.
func toBuf(code ContractCode) expr.Buf {
	switch c := code.(type) {
	case *InitCode:
		base := expr.NewConcreteBuf(c.Code)
		if c.AbstractTail == nil {
			return base
		}
		tailLen := expr.Length(c.AbstractTail)
		return expr.NewCopySlice(
			expr.Zero, expr.LitU64(uint64(len(c.Code))), tailLen,
			c.AbstractTail, base)
	case *RuntimeCode:
		if c.Symbolic == nil {
			return expr.NewConcreteBuf(c.Concrete)
		}
		buf := expr.EmptyBuf
		for i, b := range c.Symbolic {
			buf = expr.NewWriteByte(expr.LitU64(uint64(i)), b, buf)
		}
		return buf
	}
	return expr.EmptyBuf
}

// DecodedOp is one decoded instruction with its byte offset.
type DecodedOp struct {
	Ix int
	Op OpCode
}

// Contract is the engine's view of one account.
type Contract struct {
	Code     ContractCode
	Balance  sevm.W256
	Nonce    uint64
	CodeHash sevm.W256

	// OpIxMap maps each code byte to the index of the operation it belongs
	// to; push immediates map to their push instruction. It is consulted
	// for JUMPDEST validation.
	OpIxMap []int32

	// CodeOps is the decoded instruction sequence after metadata stripping.
	CodeOps []DecodedOp

	// External marks contracts obtained through the fetcher; a storage miss
	// on an external contract triggers a slot fetch instead of defaulting
	// to zero.
	External bool
}

// NewContract builds a contract around the given code, deriving the opcode
// index map, the decoded operation list and the code hash.
func NewContract(code ContractCode) *Contract {
	c := &Contract{Code: code}
	c.OpIxMap = mkOpIxMap(code)
	c.CodeOps = mkCodeOps(code)
	c.CodeHash = codeHash(code)
	return c
}

// clone creates a shallow copy; code, opcode maps and decoded ops are
// immutable and shared.
func (c *Contract) clone() *Contract {
	copy := *c
	return &copy
}

func codeHash(code ContractCode) sevm.W256 {
	switch c := code.(type) {
	case *InitCode:
		return sevm.Keccak256(c.Code).ToWord()
	case *RuntimeCode:
		if c.Symbolic == nil {
			return sevm.Keccak256(c.Concrete).ToWord()
		}
	}
	return sevm.W256{}
}

func concreteCodeBytes(code ContractCode) []byte {
	switch c := code.(type) {
	case *InitCode:
		return c.Code
	case *RuntimeCode:
		if c.Symbolic != nil {
			bytes := make([]byte, len(c.Symbolic))
			for i, b := range c.Symbolic {
				if lit, ok := b.(*expr.LitByte); ok {
					bytes[i] = lit.Val
				}
			}
			return bytes
		}
		return c.Concrete
	}
	return nil
}

// mkOpIxMap scans the code once and produces the byte-index to
// operation-index map, accounting for push immediates.
func mkOpIxMap(code ContractCode) []int32 {
	bytes := concreteCodeBytes(code)
	ixMap := make([]int32, len(bytes))
	opIx := int32(0)
	for i := 0; i < len(bytes); {
		size := OpSize(OpCode(bytes[i]))
		for j := 0; j < size && i+j < len(bytes); j++ {
			ixMap[i+j] = opIx
		}
		i += size
		opIx++
	}
	return ixMap
}

// mkCodeOps decodes the instruction sequence after stripping trailing
// bytecode metadata.
func mkCodeOps(code ContractCode) []DecodedOp {
	bytes := stripBytecodeMetadata(concreteCodeBytes(code))
	var ops []DecodedOp
	for i := 0; i < len(bytes); {
		op := OpCode(bytes[i])
		ops = append(ops, DecodedOp{Ix: i, Op: op})
		i += OpSize(op)
	}
	return ops
}

// stripBytecodeMetadata removes the solc metadata trailer: a CBOR blob
// followed by its big-endian 16-bit length. The blob is recognized by its
// leading CBOR map header (0xa1 or 0xa2).
func stripBytecodeMetadata(code []byte) []byte {
	if len(code) < 2 {
		return code
	}
	metaLen := int(code[len(code)-2])<<8 | int(code[len(code)-1])
	end := len(code) - 2 - metaLen
	if end < 0 {
		return code
	}
	if metaLen > 0 && (code[end] == 0xa1 || code[end] == 0xa2) {
		return code[:end]
	}
	return code
}

// isValidJumpDest checks that the target byte is a JUMPDEST instruction and
// not the immediate of a preceding push.
func (c *Contract) isValidJumpDest(dest uint64) bool {
	if dest >= uint64(len(c.OpIxMap)) {
		return false
	}
	b, concrete := codeByte(c.Code, int(dest))
	if !concrete || b != byte(JUMPDEST) {
		return false
	}
	opIx := c.OpIxMap[dest]
	if int(opIx) >= len(c.CodeOps) {
		return false
	}
	return c.CodeOps[opIx].Op == JUMPDEST
}
