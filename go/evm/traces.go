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

// TraceEntry is one node payload of the call/event trace tree.
type TraceEntry interface {
	isTraceEntry()
}

// CallTrace records entry into a message call.
type CallTrace struct {
	Target   sevm.Address
	Caller   sevm.Address
	Value    expr.Word
	Calldata expr.Buf
}

// CreateTrace records entry into a contract creation.
type CreateTrace struct {
	Addr sevm.Address
}

// ReturnTrace records a frame leaving normally or by revert.
type ReturnTrace struct {
	Output   expr.Buf
	Reverted bool
}

// ErrorTrace records a frame dying with an error.
type ErrorTrace struct {
	Err error
}

// EventTrace records an emitted log.
type EventTrace struct {
	Log expr.Log
}

func (*CallTrace) isTraceEntry()   {}
func (*CreateTrace) isTraceEntry() {}
func (*ReturnTrace) isTraceEntry() {}
func (*ErrorTrace) isTraceEntry()  {}
func (*EventTrace) isTraceEntry()  {}

// TraceNode is a node of the trace tree.
type TraceNode struct {
	Entry    TraceEntry
	Children []*TraceNode

	parent *TraceNode
}

// traceCursor is a zipper into the growing trace tree: appends happen at
// the current node, frame entry descends, frame exit ascends.
type traceCursor struct {
	roots   []*TraceNode
	current *TraceNode
}

func (t *traceCursor) insert(entry TraceEntry) {
	node := &TraceNode{Entry: entry, parent: t.current}
	if t.current == nil {
		t.roots = append(t.roots, node)
	} else {
		t.current.Children = append(t.current.Children, node)
	}
}

func (t *traceCursor) push(entry TraceEntry) {
	node := &TraceNode{Entry: entry, parent: t.current}
	if t.current == nil {
		t.roots = append(t.roots, node)
	} else {
		t.current.Children = append(t.current.Children, node)
	}
	t.current = node
}

func (t *traceCursor) pop(entry TraceEntry) {
	if t.current == nil {
		return
	}
	t.current.Children = append(t.current.Children, &TraceNode{Entry: entry, parent: t.current})
	t.current = t.current.parent
}

// TraceForest returns the roots of the trace tree accumulated so far.
func (vm *VM) TraceForest() []*TraceNode {
	return vm.traces.roots
}
