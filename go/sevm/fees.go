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

// FeeSchedule parameterizes every gas cost charged by the engine. All cost
// functions take their constants from a schedule value instead of hard-coded
// literals, so revisions differ only in the schedule they install.
type FeeSchedule struct {
	GZero                 Gas
	GBase                 Gas
	GVerylow              Gas
	GLow                  Gas
	GMid                  Gas
	GHigh                 Gas
	GExtcodesize          Gas
	GExtcodecopy          Gas
	GExtcodehash          Gas
	GBalance              Gas
	GSload                Gas
	GJumpdest             Gas
	GSset                 Gas
	GSreset               Gas
	RSclear               Gas
	GSelfdestruct         Gas
	GSelfdestructNewaccount Gas
	RSelfdestruct         Gas
	GCreate               Gas
	GCodedeposit          Gas
	GCall                 Gas
	GCallvalue            Gas
	GCallstipend          Gas
	GNewaccount           Gas
	GExp                  Gas
	GExpbyte              Gas
	GMemory               Gas
	GTxcreate             Gas
	GTxdatazero           Gas
	GTxdatanonzero        Gas
	GTransaction          Gas
	GLog                  Gas
	GLogdata              Gas
	GLogtopic             Gas
	GSha3                 Gas
	GSha3word             Gas
	GInitcodeword         Gas
	GCopy                 Gas
	GBlockhash            Gas
	GQuaddivisor          Gas
	GEcrecover            Gas
	GSha256               Gas
	GSha256word           Gas
	GRipemd160            Gas
	GRipemd160word        Gas
	GIdentity             Gas
	GIdentityword         Gas
	GEcadd                Gas
	GEcmul                Gas
	GEcpairingBase        Gas
	GEcpairingPoint       Gas
	GFround               Gas
	RBlock                Gas
	GColdSload            Gas
	GColdAccountAccess    Gas
	GWarmStorageRead      Gas
	GAccessListAddress    Gas
	GAccessListStorageKey Gas
}

// BerlinFees is the fee schedule activated with the Berlin revision
// (EIP-2929 access lists, pre-EIP-3529 refunds).
var BerlinFees = FeeSchedule{
	GZero:                   0,
	GBase:                   2,
	GVerylow:                3,
	GLow:                    5,
	GMid:                    8,
	GHigh:                   10,
	GExtcodesize:            100,
	GExtcodecopy:            100,
	GExtcodehash:            100,
	GBalance:                100,
	GSload:                  100,
	GJumpdest:               1,
	GSset:                   20000,
	GSreset:                 2900,
	RSclear:                 15000,
	GSelfdestruct:           5000,
	GSelfdestructNewaccount: 25000,
	RSelfdestruct:           24000,
	GCreate:                 32000,
	GCodedeposit:            200,
	GCall:                   100,
	GCallvalue:              9000,
	GCallstipend:            2300,
	GNewaccount:             25000,
	GExp:                    10,
	GExpbyte:                50,
	GMemory:                 3,
	GTxcreate:               32000,
	GTxdatazero:             4,
	GTxdatanonzero:          16,
	GTransaction:            21000,
	GLog:                    375,
	GLogdata:                8,
	GLogtopic:               375,
	GSha3:                   30,
	GSha3word:               6,
	GInitcodeword:           2,
	GCopy:                   3,
	GBlockhash:              20,
	GQuaddivisor:            3,
	GEcrecover:              3000,
	GSha256:                 60,
	GSha256word:             12,
	GRipemd160:              600,
	GRipemd160word:          120,
	GIdentity:               15,
	GIdentityword:           3,
	GEcadd:                  150,
	GEcmul:                  6000,
	GEcpairingBase:          45000,
	GEcpairingPoint:         34000,
	GFround:                 1,
	RBlock:                  2000000000,
	GColdSload:              2100,
	GColdAccountAccess:      2600,
	GWarmStorageRead:        100,
	GAccessListAddress:      2400,
	GAccessListStorageKey:   1900,
}

// LondonFees is the Berlin schedule with the EIP-3529 refund reduction:
// the clear refund drops to GSreset + GAccessListStorageKey and the
// selfdestruct refund is removed.
var LondonFees = londonFees()

func londonFees() FeeSchedule {
	fees := BerlinFees
	fees.RSclear = fees.GSreset + fees.GAccessListStorageKey // 4800
	fees.RSelfdestruct = 0
	return fees
}
