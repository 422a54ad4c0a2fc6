package mocks

import (
	"context"

	"github.com/myrjola/noirline/internal/game"
	"github.com/myrjola/noirline/internal/images"
	"github.com/myrjola/noirline/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockImageRenderer is a mock type for the game.ImageRenderer type.
type MockImageRenderer struct {
	mock.Mock
}

// GetOrGenerateBackground provides a mock function with given fields: ctx, g, levelNumber, sceneDescription,
// levelSummary
func (_m *MockImageRenderer) GetOrGenerateBackground(
	ctx context.Context,
	g models.Game,
	levelNumber int,
	sceneDescription string,
	levelSummary string,
) (images.Result, error) {
	ret := _m.Called(ctx, g, levelNumber, sceneDescription, levelSummary)
	return ret.Get(0).(images.Result), ret.Error(1) //nolint:forcetypeassert // mock
}

// GenerateSprite provides a mock function with given fields: ctx, characterName, characterDescription
func (_m *MockImageRenderer) GenerateSprite(
	ctx context.Context,
	characterName string,
	characterDescription string,
) (models.ImageEntry, error) {
	ret := _m.Called(ctx, characterName, characterDescription)
	return ret.Get(0).(models.ImageEntry), ret.Error(1) //nolint:forcetypeassert // mock
}

// NewMockImageRenderer creates a new instance of MockImageRenderer. It also registers a testing interface on the mock
// and a cleanup function to assert the mocks expectations.
func NewMockImageRenderer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockImageRenderer {
	m := &MockImageRenderer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ game.ImageRenderer = (*MockImageRenderer)(nil)
