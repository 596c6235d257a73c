// Code generated manually in the style of mockery output. DO NOT hand-edit
// the Call wrapper types below without keeping them in sync with
// gateway.Service.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Service is a mock implementation of gateway.Service.
type Service struct {
	mock.Mock
}

// EXPECT returns a fluent expecter for setting up call expectations.
func (_m *Service) EXPECT() *Service_Expecter {
	return &Service_Expecter{mock: &_m.Mock}
}

func (_m *Service) Start(ctx context.Context) error {
	ret := _m.Called(ctx)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}
	return r0
}

func (_m *Service) Close() {
	_m.Called()
}

type Service_Expecter struct {
	mock *mock.Mock
}

type Service_Start_Call struct {
	*mock.Call
}

func (_e *Service_Expecter) Start(ctx interface{}) *Service_Start_Call {
	return &Service_Start_Call{Call: _e.mock.On("Start", ctx)}
}

func (_c *Service_Start_Call) Run(run func(ctx context.Context)) *Service_Start_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context))
	})
	return _c
}

func (_c *Service_Start_Call) Return(_a0 error) *Service_Start_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *Service_Start_Call) Once() *Service_Start_Call {
	_c.Call.Once()
	return _c
}

type Service_Close_Call struct {
	*mock.Call
}

func (_e *Service_Expecter) Close() *Service_Close_Call {
	return &Service_Close_Call{Call: _e.mock.On("Close")}
}

func (_c *Service_Close_Call) Run(run func()) *Service_Close_Call {
	_c.Call.Run(func(args mock.Arguments) { run() })
	return _c
}

func (_c *Service_Close_Call) Return() *Service_Close_Call {
	_c.Call.Return()
	return _c
}

func (_c *Service_Close_Call) Once() *Service_Close_Call {
	_c.Call.Once()
	return _c
}

// NewService builds a Service mock and registers t.Cleanup to assert every
// expectation was met.
func NewService(t interface {
	mock.TestingT
	Cleanup(func())
}) *Service {
	m := &Service{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
