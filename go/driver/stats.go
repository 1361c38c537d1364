// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package driver

import (
	"fmt"
	"time"

	"github.com/dsnet/golib/unitconv"

	"github.com/symbolic-systems/sevm/go/sevm"
)

// Stats aggregates execution counters of one Exec run.
type Stats struct {
	Steps     int
	GasBurned sevm.Gas
	Duration  time.Duration

	startedAt time.Time
}

func (s *Stats) start() {
	s.startedAt = time.Now()
}

func (s *Stats) stop() {
	s.Duration = time.Since(s.startedAt)
}

// Rate is the number of executed instructions per second.
func (s *Stats) Rate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Steps) / s.Duration.Seconds()
}

func (s *Stats) String() string {
	return fmt.Sprintf(
		"%d steps, %d gas, ~%sips",
		s.Steps, s.GasBurned,
		unitconv.FormatPrefix(s.Rate(), unitconv.SI, 1),
	)
}
