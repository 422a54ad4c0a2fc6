package repositories_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/noirline/internal/models"
	"github.com/myrjola/noirline/internal/repositories"
	"github.com/myrjola/noirline/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *repositories.GameRepository {
	t.Helper()
	return repositories.NewGameRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))
}

func levelRecord(gameID string, n int) models.LevelRecord {
	return models.LevelRecord{
		GameID:      gameID,
		LevelNumber: n,
		Role:        models.RoleDetective,
		Content: models.DialogueTree{
			LevelNumber: n,
			Role:        models.RoleDetective,
			StartNode:   "n1",
			DialogueNodes: []models.DialogueNode{
				{ID: "n1", Speaker: "Narrator", Text: "Rain.", Choices: []models.Choice{{Text: "Go", NextID: "n2"}}},
				{ID: "n2", Speaker: "Narrator", Text: "Fin.", Choices: []models.Choice{}},
			},
		},
	}
}

func createGame(t *testing.T, repo *repositories.GameRepository, id string) models.Game {
	t.Helper()
	game := models.Game{ID: id, Outline: testhelpers.Outline(), CurrentLevel: 1}
	require.NoError(t, repo.Create(context.Background(), game, levelRecord(id, 1)))
	return game
}

func TestGameRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	createGame(t, repo, "game-1")

	got, err := repo.Get(ctx, "game-1")
	require.NoError(t, err)
	require.Equal(t, "game-1", got.ID)
	require.Equal(t, 1, got.CurrentLevel)
	require.Equal(t, testhelpers.Outline(), got.Outline)
	require.Empty(t, got.ChoicesHistory)
	require.Empty(t, got.BackgroundCache)
	require.False(t, got.Completed)
	require.False(t, got.CreatedAt.IsZero())
	require.Equal(t, got.CreatedAt, got.UpdatedAt)

	levels, err := repo.ListLevels(ctx, "game-1")
	require.NoError(t, err)
	require.Len(t, levels, 1)
	require.Equal(t, levelRecord("game-1", 1).Content, levels[0].Content)
	require.Equal(t, models.RoleDetective, levels[0].Role)
}

func TestGameRepository_Get_NotFound(t *testing.T) {
	_, err := newRepo(t).Get(context.Background(), "nope")
	require.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGameRepository_SaveProgress(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	game := createGame(t, repo, "game-1")

	game.CurrentLevel = 2
	game.ChoicesHistory = []models.ChoiceRecord{
		{Level: 1, Path: []models.ChoiceSelection{{NodeID: "n1", ChoiceText: "Go"}}},
	}
	next := levelRecord("game-1", 2)
	require.NoError(t, repo.SaveProgress(ctx, game, &next))

	got, err := repo.Get(ctx, "game-1")
	require.NoError(t, err)
	require.Equal(t, 2, got.CurrentLevel)
	require.Equal(t, game.ChoicesHistory, got.ChoicesHistory)

	levels, err := repo.ListLevels(ctx, "game-1")
	require.NoError(t, err)
	require.Len(t, levels, 2)
	require.Equal(t, 2, levels[1].LevelNumber)

	t.Run("level snapshots are immutable", func(t *testing.T) {
		game.ChoicesHistory = append(game.ChoicesHistory, models.ChoiceRecord{Level: 2})
		err = repo.SaveProgress(ctx, game, &next)
		require.ErrorIs(t, err, repositories.ErrLevelExists)

		// The failed transaction leaves the game untouched.
		got, err = repo.Get(ctx, "game-1")
		require.NoError(t, err)
		require.Len(t, got.ChoicesHistory, 1)
	})

	t.Run("completion without a level", func(t *testing.T) {
		game.Completed = true
		require.NoError(t, repo.SaveProgress(ctx, game, nil))
		got, err = repo.Get(ctx, "game-1")
		require.NoError(t, err)
		require.True(t, got.Completed)
	})

	t.Run("unknown game", func(t *testing.T) {
		err = repo.SaveProgress(ctx, models.Game{ID: "nope", CurrentLevel: 1}, nil)
		require.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestGameRepository_Backgrounds(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	createGame(t, repo, "game-1")
	key := models.BackgroundCacheKey(1, "Smoky office")

	_, ok, err := repo.GetBackground(ctx, "game-1", key)
	require.NoError(t, err)
	require.False(t, ok)

	first := models.ImageEntry{Prompt: "p1", ImageName: "a.png", URL: "/static/images/a.png"}
	stored, err := repo.PutBackground(ctx, "game-1", key, first)
	require.NoError(t, err)
	require.Equal(t, first, stored)

	// First writer wins.
	second := models.ImageEntry{Prompt: "p2", ImageName: "b.png", URL: "/static/images/b.png"}
	stored, err = repo.PutBackground(ctx, "game-1", key, second)
	require.NoError(t, err)
	require.Equal(t, first, stored)

	entry, ok, err := repo.GetBackground(ctx, "game-1", key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first, entry)

	game, err := repo.Get(ctx, "game-1")
	require.NoError(t, err)
	require.Equal(t, map[string]models.ImageEntry{key: first}, game.BackgroundCache)

	_, err = repo.PutBackground(ctx, "nope", key, first)
	require.ErrorIs(t, err, repositories.ErrNotFound)
}
