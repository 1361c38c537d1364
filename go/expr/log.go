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

// Log is a single log record emitted by a LOG instruction.
type Log struct {
	Addr   Word
	Topics []Word
	Data   Buf
}
