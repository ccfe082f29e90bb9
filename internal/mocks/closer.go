package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// CloserMock is a mock implementation of di.Closer.
type CloserMock struct {
	mock.Mock
}

// NewCloserMock creates a new CloserMock and asserts its expectations when the test finishes.
func NewCloserMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *CloserMock {
	m := &CloserMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *CloserMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// NoContextCloserMock is a mock of a service with a Close() method.
type NoContextCloserMock struct {
	mock.Mock
}

// NewNoContextCloserMock creates a new NoContextCloserMock and asserts its expectations when the test finishes.
func NewNoContextCloserMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *NoContextCloserMock {
	m := &NoContextCloserMock{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *NoContextCloserMock) Close() {
	m.Called()
}
