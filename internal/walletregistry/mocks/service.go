// Code generated manually in the style of mockery output. DO NOT hand-edit
// the Call wrapper types below without keeping them in sync with
// walletregistry.Service.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Service is a mock implementation of walletregistry.Service.
type Service struct {
	mock.Mock
}

func (_m *Service) EXPECT() *Service_Expecter {
	return &Service_Expecter{mock: &_m.Mock}
}

func (_m *Service) StartWatching(ctx context.Context, network, address string) error {
	ret := _m.Called(ctx, network, address)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, network, address)
	} else {
		r0 = ret.Error(0)
	}
	return r0
}

func (_m *Service) StopWatching(ctx context.Context, network, address string) error {
	ret := _m.Called(ctx, network, address)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) error); ok {
		r0 = rf(ctx, network, address)
	} else {
		r0 = ret.Error(0)
	}
	return r0
}

type Service_Expecter struct {
	mock *mock.Mock
}

type Service_StartWatching_Call struct {
	*mock.Call
}

func (_e *Service_Expecter) StartWatching(ctx, network, address interface{}) *Service_StartWatching_Call {
	return &Service_StartWatching_Call{Call: _e.mock.On("StartWatching", ctx, network, address)}
}

func (_c *Service_StartWatching_Call) Run(run func(ctx context.Context, network, address string)) *Service_StartWatching_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string), args[2].(string))
	})
	return _c
}

func (_c *Service_StartWatching_Call) Return(_a0 error) *Service_StartWatching_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *Service_StartWatching_Call) Once() *Service_StartWatching_Call {
	_c.Call.Once()
	return _c
}

type Service_StopWatching_Call struct {
	*mock.Call
}

func (_e *Service_Expecter) StopWatching(ctx, network, address interface{}) *Service_StopWatching_Call {
	return &Service_StopWatching_Call{Call: _e.mock.On("StopWatching", ctx, network, address)}
}

func (_c *Service_StopWatching_Call) Run(run func(ctx context.Context, network, address string)) *Service_StopWatching_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(string), args[2].(string))
	})
	return _c
}

func (_c *Service_StopWatching_Call) Return(_a0 error) *Service_StopWatching_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *Service_StopWatching_Call) Once() *Service_StopWatching_Call {
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
