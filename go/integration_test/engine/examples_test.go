// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package engine

import (
	"fmt"
	"testing"

	"github.com/symbolic-systems/sevm/go/examples"
)

var engineExamples = []examples.Example{
	examples.GetArithmeticExample(),
	examples.GetSha3Example(),
}

func TestEngine_Examples(t *testing.T) {
	for _, example := range engineExamples {
		for i := 0; i < 10; i++ {
			t.Run(fmt.Sprintf("%s-%d", example.Name, i), func(t *testing.T) {
				want := example.RunReference(i)
				got, err := example.RunOn(i)
				if err != nil {
					t.Fatalf("error running contract: %v", err)
				}
				if want != got.Result {
					t.Fatalf("incorrect result, wanted %d, got %d", want, got.Result)
				}
				if got.UsedGas <= 0 {
					t.Errorf("expected a positive gas consumption, got %d", got.UsedGas)
				}
			})
		}
	}
}

func TestEngine_ExampleGasIsDeterministic(t *testing.T) {
	example := examples.GetArithmeticExample()
	first, err := example.RunOn(5)
	if err != nil {
		t.Fatalf("error running contract: %v", err)
	}
	second, err := example.RunOn(5)
	if err != nil {
		t.Fatalf("error running contract: %v", err)
	}
	if first.UsedGas != second.UsedGas {
		t.Errorf("gas consumption must be deterministic, got %d and %d",
			first.UsedGas, second.UsedGas)
	}
}
