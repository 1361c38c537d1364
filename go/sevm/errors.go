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

// ConstError is an error type for constant error values. Unlike errors
// created with errors.New, two ConstError instances with the same message
// compare equal under errors.Is.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}
