// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package driver is a generated GoMock package.
package driver

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	evm "github.com/symbolic-systems/sevm/go/evm"
	expr "github.com/symbolic-systems/sevm/go/expr"
	sevm "github.com/symbolic-systems/sevm/go/sevm"
)

// MockFetcher is a mock of Fetcher interface.
type MockFetcher struct {
	ctrl     *gomock.Controller
	recorder *MockFetcherMockRecorder
}

// MockFetcherMockRecorder is the mock recorder for MockFetcher.
type MockFetcherMockRecorder struct {
	mock *MockFetcher
}

// NewMockFetcher creates a new mock instance.
func NewMockFetcher(ctrl *gomock.Controller) *MockFetcher {
	mock := &MockFetcher{ctrl: ctrl}
	mock.recorder = &MockFetcherMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockFetcher) EXPECT() *MockFetcherMockRecorder {
	return m.recorder
}

// FetchContract mocks base method.
func (m *MockFetcher) FetchContract(addr sevm.Address) (*evm.Contract, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchContract", addr)
	ret0, _ := ret[0].(*evm.Contract)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchContract indicates an expected call of FetchContract.
func (mr *MockFetcherMockRecorder) FetchContract(addr any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchContract", reflect.TypeOf((*MockFetcher)(nil).FetchContract), addr)
}

// FetchSlot mocks base method.
func (m *MockFetcher) FetchSlot(addr sevm.Address, slot sevm.W256) (sevm.W256, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchSlot", addr, slot)
	ret0, _ := ret[0].(sevm.W256)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchSlot indicates an expected call of FetchSlot.
func (mr *MockFetcherMockRecorder) FetchSlot(addr, slot any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchSlot", reflect.TypeOf((*MockFetcher)(nil).FetchSlot), addr, slot)
}

// MockOracle is a mock of Oracle interface.
type MockOracle struct {
	ctrl     *gomock.Controller
	recorder *MockOracleMockRecorder
}

// MockOracleMockRecorder is the mock recorder for MockOracle.
type MockOracleMockRecorder struct {
	mock *MockOracle
}

// NewMockOracle creates a new mock instance.
func NewMockOracle(ctrl *gomock.Controller) *MockOracle {
	mock := &MockOracle{ctrl: ctrl}
	mock.recorder = &MockOracleMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockOracle) EXPECT() *MockOracleMockRecorder {
	return m.recorder
}

// AskBranch mocks base method.
func (m *MockOracle) AskBranch(cond expr.Word, path []expr.Prop) evm.SMTResult {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AskBranch", cond, path)
	ret0, _ := ret[0].(evm.SMTResult)
	return ret0
}

// AskBranch indicates an expected call of AskBranch.
func (mr *MockOracleMockRecorder) AskBranch(cond, path any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AskBranch", reflect.TypeOf((*MockOracle)(nil).AskBranch), cond, path)
}

// MockChooser is a mock of Chooser interface.
type MockChooser struct {
	ctrl     *gomock.Controller
	recorder *MockChooserMockRecorder
}

// MockChooserMockRecorder is the mock recorder for MockChooser.
type MockChooserMockRecorder struct {
	mock *MockChooser
}

// NewMockChooser creates a new mock instance.
func NewMockChooser(ctrl *gomock.Controller) *MockChooser {
	mock := &MockChooser{ctrl: ctrl}
	mock.recorder = &MockChooserMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockChooser) EXPECT() *MockChooserMockRecorder {
	return m.recorder
}

// ChoosePath mocks base method.
func (m *MockChooser) ChoosePath(cond expr.Word) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ChoosePath", cond)
	ret0, _ := ret[0].(bool)
	return ret0
}

// ChoosePath indicates an expected call of ChoosePath.
func (mr *MockChooserMockRecorder) ChoosePath(cond any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ChoosePath", reflect.TypeOf((*MockChooser)(nil).ChoosePath), cond)
}

// MockFFIRunner is a mock of FFIRunner interface.
type MockFFIRunner struct {
	ctrl     *gomock.Controller
	recorder *MockFFIRunnerMockRecorder
}

// MockFFIRunnerMockRecorder is the mock recorder for MockFFIRunner.
type MockFFIRunnerMockRecorder struct {
	mock *MockFFIRunner
}

// NewMockFFIRunner creates a new mock instance.
func NewMockFFIRunner(ctrl *gomock.Controller) *MockFFIRunner {
	mock := &MockFFIRunner{ctrl: ctrl}
	mock.recorder = &MockFFIRunnerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockFFIRunner) EXPECT() *MockFFIRunnerMockRecorder {
	return m.recorder
}

// RunFFI mocks base method.
func (m *MockFFIRunner) RunFFI(argv []string) ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RunFFI", argv)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// RunFFI indicates an expected call of RunFFI.
func (mr *MockFFIRunnerMockRecorder) RunFFI(argv any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RunFFI", reflect.TypeOf((*MockFFIRunner)(nil).RunFFI), argv)
}
