package mocks

import (
	"context"
	"image"

	"github.com/myrjola/noirline/internal/images"
	"github.com/stretchr/testify/mock"
)

// MockSynthesizer is a mock type for the images.Synthesizer type.
type MockSynthesizer struct {
	mock.Mock
}

// Synthesize provides a mock function with given fields: ctx, prompt, size
func (_m *MockSynthesizer) Synthesize(ctx context.Context, prompt string, size int) (image.Image, error) {
	ret := _m.Called(ctx, prompt, size)

	var r0 image.Image
	if rf, ok := ret.Get(0).(func(context.Context, string, int) image.Image); ok {
		r0 = rf(ctx, prompt, size)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(image.Image) //nolint:forcetypeassert // mock
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, int) error); ok {
		r1 = rf(ctx, prompt, size)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockSynthesizer creates a new instance of MockSynthesizer. It also registers a testing interface on the mock and
// a cleanup function to assert the mocks expectations.
func NewMockSynthesizer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSynthesizer {
	m := &MockSynthesizer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ images.Synthesizer = (*MockSynthesizer)(nil)
