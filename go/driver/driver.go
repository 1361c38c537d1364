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
	"errors"

	"github.com/symbolic-systems/sevm/go/evm"
	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

//go:generate mockgen -source driver.go -destination driver_mock.go -package driver

// Fetcher supplies chain state the engine does not have, typically backed
// by an RPC endpoint. Implementations outside this repository own the wire
// format; the engine only sees the results.
type Fetcher interface {
	// FetchContract returns the account at the given address.
	FetchContract(addr sevm.Address) (*evm.Contract, error)

	// FetchSlot returns the value of one storage slot.
	FetchSlot(addr sevm.Address, slot sevm.W256) (sevm.W256, error)
}

// Oracle decides symbolic branch conditions, typically by handing the path
// condition to an SMT solver.
type Oracle interface {
	// AskBranch reports whether cond can be nonzero under the given path
	// condition.
	AskBranch(cond expr.Word, path []expr.Prop) evm.SMTResult
}

// Chooser resolves branches the oracle could not decide, typically by
// asking the user.
type Chooser interface {
	// ChoosePath picks whether the branch is taken.
	ChoosePath(cond expr.Word) bool
}

// FFIRunner executes a subprocess for the ffi cheat code.
type FFIRunner interface {
	// RunFFI runs the command line and returns its standard output.
	RunFFI(argv []string) ([]byte, error)
}

// Options configures the execution loop. Nil collaborators get conservative
// defaults: missing contracts resolve to fresh empty accounts, missing
// slots to zero, undecidable branches stop the run.
type Options struct {
	Fetcher  Fetcher
	Oracle   Oracle
	Chooser  Chooser
	FFI      FFIRunner
	MaxSteps int
}

var errNoChooser = errors.New("execution needs a branch decision and no chooser is configured")

// Exec steps the VM until it halts, servicing queries through the
// configured collaborators. The returned result is the VM's final result;
// the error is non-nil when a collaborator failed or a query could not be
// serviced.
func Exec(vm *evm.VM, opts Options) (*evm.Result, Stats, error) {
	var stats Stats
	stats.start()
	defer stats.stop()

	for {
		if opts.MaxSteps > 0 && stats.Steps >= opts.MaxSteps {
			return vm.Result, stats, errors.New("step limit exceeded")
		}
		burnedBefore := vm.Burned
		vm.Step()
		stats.Steps++
		stats.GasBurned += vm.Burned - burnedBefore

		if vm.Result == nil {
			continue
		}
		query, isQuery := vm.Result.Err.(evm.Query)
		if !isQuery {
			return vm.Result, stats, nil
		}
		if err := service(vm, query, &opts); err != nil {
			return vm.Result, stats, err
		}
	}
}

func service(vm *evm.VM, query evm.Query, opts *Options) error {
	switch q := query.(type) {
	case *evm.PleaseFetchContract:
		if opts.Fetcher == nil {
			return vm.ResumeContract(evm.NewContract(&evm.RuntimeCode{Concrete: []byte{}}))
		}
		contract, err := opts.Fetcher.FetchContract(q.Addr)
		if err != nil {
			return err
		}
		return vm.ResumeContract(contract)

	case *evm.PleaseFetchSlot:
		if opts.Fetcher == nil {
			return vm.ResumeSlot(sevm.W256{})
		}
		value, err := opts.Fetcher.FetchSlot(q.Addr, q.Slot)
		if err != nil {
			return err
		}
		return vm.ResumeSlot(value)

	case *evm.PleaseAskSMT:
		if opts.Oracle == nil {
			return vm.ResumeBranch(evm.Unknown)
		}
		return vm.ResumeBranch(opts.Oracle.AskBranch(q.Cond, q.Path))

	case *evm.PleaseChoosePath:
		if opts.Chooser == nil {
			return errNoChooser
		}
		return vm.ResumePath(opts.Chooser.ChoosePath(q.Cond))

	case *evm.PleaseDoFFI:
		if opts.FFI == nil {
			return errors.New("ffi requested but no runner is configured")
		}
		stdout, err := opts.FFI.RunFFI(q.Argv)
		if err != nil {
			return err
		}
		return vm.ResumeFFI(stdout)
	}
	return errors.New("unsupported query")
}
