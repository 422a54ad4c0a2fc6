package mocks

import (
	"context"

	"github.com/myrjola/noirline/internal/game"
	"github.com/myrjola/noirline/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockContentGenerator is a mock type for the game.ContentGenerator type.
type MockContentGenerator struct {
	mock.Mock
}

// GenerateOutline provides a mock function with given fields: ctx
func (_m *MockContentGenerator) GenerateOutline(ctx context.Context) (models.Outline, error) {
	ret := _m.Called(ctx)
	return ret.Get(0).(models.Outline), ret.Error(1) //nolint:forcetypeassert // mock
}

// GenerateLevelContent provides a mock function with given fields: ctx, outline, choicesHistory, levelNumber
func (_m *MockContentGenerator) GenerateLevelContent(
	ctx context.Context,
	outline models.Outline,
	choicesHistory []models.ChoiceRecord,
	levelNumber int,
) (models.DialogueTree, error) {
	ret := _m.Called(ctx, outline, choicesHistory, levelNumber)
	return ret.Get(0).(models.DialogueTree), ret.Error(1) //nolint:forcetypeassert // mock
}

// GenerateHeadline provides a mock function with given fields: ctx, outline, choicesHistory, levelNumber
func (_m *MockContentGenerator) GenerateHeadline(
	ctx context.Context,
	outline models.Outline,
	choicesHistory []models.ChoiceRecord,
	levelNumber int,
) (string, error) {
	ret := _m.Called(ctx, outline, choicesHistory, levelNumber)
	return ret.String(0), ret.Error(1)
}

// NewMockContentGenerator creates a new instance of MockContentGenerator. It also registers a testing interface on the
// mock and a cleanup function to assert the mocks expectations.
func NewMockContentGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockContentGenerator {
	m := &MockContentGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ game.ContentGenerator = (*MockContentGenerator)(nil)
