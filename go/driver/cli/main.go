// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/symbolic-systems/sevm/go/driver"
	"github.com/symbolic-systems/sevm/go/evm"
	"github.com/symbolic-systems/sevm/go/expr"
	"github.com/symbolic-systems/sevm/go/sevm"
)

func main() {
	app := &cli.App{
		Name:  "sevm",
		Usage: "symbolic EVM execution engine",
		Commands: []*cli.Command{
			&runCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Run a bytecode program concretely",
	ArgsUsage: "<code-hex>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "calldata",
			Usage: "hex encoded calldata",
		},
		&cli.Int64Flag{
			Name:  "gas",
			Usage: "gas budget for the execution",
			Value: 10_000_000,
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "print the call trace after execution",
		},
	},
}

func doRun(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one bytecode argument")
	}
	code, err := decodeHex(context.Args().First())
	if err != nil {
		return fmt.Errorf("invalid bytecode: %w", err)
	}
	calldata, err := decodeHex(context.String("calldata"))
	if err != nil {
		return fmt.Errorf("invalid calldata: %w", err)
	}
	gas := sevm.Gas(context.Int64("gas"))

	vm := evm.NewVM(evm.VmOpts{
		Contract: evm.NewContract(&evm.RuntimeCode{Concrete: code}),
		Calldata: expr.NewConcreteBuf(calldata),
		Gas:      gas,
		GasLimit: gas,
		Schedule: sevm.LondonFees,
	})

	result, stats, err := driver.Exec(vm, driver.Options{})
	if err != nil {
		return err
	}

	if result.Err != nil {
		fmt.Printf("failed: %v\n", result.Err)
	} else if output, ok := expr.AsConcreteBuf(result.Output); ok {
		fmt.Printf("success: 0x%x\n", output)
	} else {
		fmt.Println("success: <symbolic output>")
	}
	fmt.Println(stats.String())

	if context.Bool("trace") {
		for _, root := range vm.TraceForest() {
			printTrace(root, 0)
		}
	}
	return nil
}

func printTrace(node *evm.TraceNode, depth int) {
	indent := strings.Repeat("  ", depth)
	switch entry := node.Entry.(type) {
	case *evm.CallTrace:
		fmt.Printf("%scall %v\n", indent, entry.Target)
	case *evm.CreateTrace:
		fmt.Printf("%screate %v\n", indent, entry.Addr)
	case *evm.ReturnTrace:
		kind := "return"
		if entry.Reverted {
			kind = "revert"
		}
		fmt.Printf("%s%s\n", indent, kind)
	case *evm.ErrorTrace:
		fmt.Printf("%serror: %v\n", indent, entry.Err)
	case *evm.EventTrace:
		fmt.Printf("%slog\n", indent)
	}
	for _, child := range node.Children {
		printTrace(child, depth+1)
	}
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
