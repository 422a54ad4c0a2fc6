package mocks

import (
	"context"

	"github.com/myrjola/noirline/internal/images"
	"github.com/myrjola/noirline/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockPromptGenerator is a mock type for the images.PromptGenerator type.
type MockPromptGenerator struct {
	mock.Mock
}

// GenerateBackgroundPrompt provides a mock function with given fields: ctx, levelNumber, levelSummary, sceneContext
func (_m *MockPromptGenerator) GenerateBackgroundPrompt(
	ctx context.Context,
	levelNumber int,
	levelSummary string,
	sceneContext string,
) models.ImagePrompt {
	ret := _m.Called(ctx, levelNumber, levelSummary, sceneContext)
	return ret.Get(0).(models.ImagePrompt) //nolint:forcetypeassert // mock
}

// GenerateSpritePrompt provides a mock function with given fields: ctx, characterName, characterDescription
func (_m *MockPromptGenerator) GenerateSpritePrompt(
	ctx context.Context,
	characterName string,
	characterDescription string,
) models.ImagePrompt {
	ret := _m.Called(ctx, characterName, characterDescription)
	return ret.Get(0).(models.ImagePrompt) //nolint:forcetypeassert // mock
}

// NewMockPromptGenerator creates a new instance of MockPromptGenerator. It also registers a testing interface on the
// mock and a cleanup function to assert the mocks expectations.
func NewMockPromptGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPromptGenerator {
	m := &MockPromptGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ images.PromptGenerator = (*MockPromptGenerator)(nil)
