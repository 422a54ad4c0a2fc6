package images_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/myrjola/noirline/internal/ai/aitest"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/images"
	"github.com/myrjola/noirline/internal/mocks"
	"github.com/myrjola/noirline/internal/models"
	"github.com/myrjola/noirline/internal/repositories"
	"github.com/myrjola/noirline/internal/sqlite"
	"github.com/myrjola/noirline/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.RGBA{A: 255}
)

func TestResample(t *testing.T) {
	t.Parallel()
	got := images.Resample(aitest.Checkerboard(images.BackgroundSynthesisSize), images.BackgroundWidth,
		images.BackgroundHeight)
	require.Equal(t, image.Rect(0, 0, 800, 600), got.Bounds())

	// Nearest-neighbour never blends, so only the two source colours may appear.
	for y := range 600 {
		for x := range 800 {
			c := got.RGBAAt(x, y)
			if c != white && c != black {
				t.Fatalf("pixel (%d, %d) is %v", x, y, c)
			}
		}
	}
	assert.Equal(t, white, got.RGBAAt(0, 0))

	sprite := images.Resample(aitest.Solid(images.SpriteSynthesisSize, black), images.SpriteSize, images.SpriteSize)
	require.Equal(t, image.Rect(0, 0, 32, 32), sprite.Bounds())
	assert.Equal(t, black, sprite.RGBAAt(31, 31))
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestDiskStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "images")
	store := images.NewDiskStore(dir)

	require.False(t, store.Exists("clue.png"))
	url, err := store.Save(ctx, "clue.png", aitest.Solid(4, white))
	require.NoError(t, err)
	require.Equal(t, "/static/images/clue.png", url)
	require.True(t, store.Exists("clue.png"))
	require.Equal(t, image.Rect(0, 0, 4, 4), decodePNG(t, filepath.Join(dir, "clue.png")).Bounds())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")

	for _, name := range []string{"", "../clue.png", "sub/clue.png", ".clue.png", "clue.jpg"} {
		_, err = store.Save(ctx, name, aitest.Solid(4, white))
		require.ErrorIs(t, err, images.ErrInvalidName, name)
		require.False(t, store.Exists(name))
	}
}

type fixture struct {
	cache   *images.Cache
	repo    *repositories.GameRepository
	prompts *mocks.MockPromptGenerator
	synth   *mocks.MockSynthesizer
	dir     string
	game    models.Game
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := testhelpers.NewLogger(io.Discard)
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repositories.NewGameRepository(db, logger)
	game := models.Game{ID: "game-1", Outline: testhelpers.Outline(), CurrentLevel: 1}
	require.NoError(t, repo.Create(ctx, game, models.LevelRecord{
		GameID: game.ID, LevelNumber: 1, Role: models.RoleDetective,
		Content: models.DialogueTree{LevelNumber: 1, Role: models.RoleDetective, StartNode: "n1"},
	}))

	f := fixture{
		repo:    repo,
		prompts: mocks.NewMockPromptGenerator(t),
		synth:   mocks.NewMockSynthesizer(t),
		dir:     t.TempDir(),
		game:    game,
	}
	f.cache = images.NewCache(f.prompts, f.synth, repo, images.NewDiskStore(f.dir), logger)
	return f
}

func TestCache_GetOrGenerateBackground(t *testing.T) {
	ctx := context.Background()

	t.Run("miss renders and caches", func(t *testing.T) {
		f := newFixture(t)
		f.prompts.On("GenerateBackgroundPrompt", mock.Anything, 3, "Summary of level 3.", "Smoky bar").
			Return(models.ImagePrompt{Prompt: "A dim bar", ImageName: "dim_bar_x1.png"}).Once()
		f.synth.On("Synthesize", mock.Anything, "A dim bar", 512).
			Return(aitest.Checkerboard(512), nil).Once()

		want := models.ImageEntry{Prompt: "A dim bar", ImageName: "dim_bar_x1.png", URL: "/static/images/dim_bar_x1.png"}
		got, err := f.cache.GetOrGenerateBackground(ctx, f.game, 3, "Smoky bar", "Summary of level 3.")
		require.NoError(t, err)
		require.Equal(t, images.Result{Entry: want}, got)
		require.Equal(t, image.Rect(0, 0, 800, 600), decodePNG(t, filepath.Join(f.dir, "dim_bar_x1.png")).Bounds())

		// A stale game snapshot still finds the stored entry.
		got, err = f.cache.GetOrGenerateBackground(ctx, f.game, 3, "Smoky bar", "Summary of level 3.")
		require.NoError(t, err)
		require.Equal(t, want, got.Entry)

		game, err := f.repo.Get(ctx, f.game.ID)
		require.NoError(t, err)
		require.Equal(t, want, game.BackgroundCache[models.BackgroundCacheKey(3, "Smoky bar")])
		got, err = f.cache.GetOrGenerateBackground(ctx, game, 3, "Smoky bar", "ignored on hit")
		require.NoError(t, err)
		require.Equal(t, want, got.Entry)
	})

	t.Run("synthesis failure caches the default", func(t *testing.T) {
		f := newFixture(t)
		synthErr := errors.NewSentinel("content policy violation")
		f.prompts.On("GenerateBackgroundPrompt", mock.Anything, 1, "s", "Office").
			Return(models.ImagePrompt{Prompt: "An office", ImageName: "office_x1.png"}).Once()
		f.synth.On("Synthesize", mock.Anything, "An office", 512).Return(nil, synthErr).Once()

		got, err := f.cache.GetOrGenerateBackground(ctx, f.game, 1, "Office", "s")
		require.NoError(t, err)
		require.True(t, got.Fallback)
		require.ErrorIs(t, got.Reason, synthErr)
		require.Equal(t, models.ImageEntry{
			ImageName: "default_detective_office.png",
			URL:       "/static/images/default_detective_office.png",
		}, got.Entry)

		again, err := f.cache.GetOrGenerateBackground(ctx, f.game, 1, "Office", "s")
		require.NoError(t, err)
		require.Equal(t, got.Entry, again.Entry)
		require.False(t, again.Fallback)
	})

	t.Run("unsaveable name falls back", func(t *testing.T) {
		f := newFixture(t)
		f.prompts.On("GenerateBackgroundPrompt", mock.Anything, 5, "s", "").
			Return(models.ImagePrompt{Prompt: "A pier", ImageName: "../pier.png"}).Once()
		f.synth.On("Synthesize", mock.Anything, "A pier", 512).Return(aitest.Checkerboard(512), nil).Once()

		got, err := f.cache.GetOrGenerateBackground(ctx, f.game, 5, "", "s")
		require.NoError(t, err)
		require.True(t, got.Fallback)
		require.ErrorIs(t, got.Reason, images.ErrInvalidName)
		require.Equal(t, "placeholder_bg.png", got.Entry.ImageName)
	})

	t.Run("concurrent misses render once", func(t *testing.T) {
		f := newFixture(t)
		f.prompts.On("GenerateBackgroundPrompt", mock.Anything, 2, "s", "Newsroom").
			Return(models.ImagePrompt{Prompt: "A newsroom", ImageName: "newsroom_x1.png"}).Once()
		f.synth.On("Synthesize", mock.Anything, "A newsroom", 512).
			Run(func(mock.Arguments) { time.Sleep(20 * time.Millisecond) }).
			Return(aitest.Checkerboard(512), nil).Once()

		const callers = 8
		var wg sync.WaitGroup
		results := make([]images.Result, callers)
		errs := make([]error, callers)
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = f.cache.GetOrGenerateBackground(ctx, f.game, 2, "Newsroom", "s")
			}()
		}
		wg.Wait()
		for i := range callers {
			require.NoError(t, errs[i])
			require.Equal(t, "newsroom_x1.png", results[i].Entry.ImageName)
		}
	})

	t.Run("cancelled caller does not fail the others", func(t *testing.T) {
		f := newFixture(t)
		started := make(chan struct{})
		release := make(chan struct{})
		f.prompts.On("GenerateBackgroundPrompt", mock.Anything, 4, "s", "Pier").
			Return(models.ImagePrompt{Prompt: "A pier", ImageName: "pier_x1.png"}).Once()
		f.synth.On("Synthesize", mock.Anything, "A pier", 512).
			Run(func(args mock.Arguments) {
				close(started)
				<-release
				assert.NoError(t, args.Get(0).(context.Context).Err())
			}).
			Return(aitest.Checkerboard(512), nil).Once()

		firstCtx, cancelFirst := context.WithCancel(ctx)
		firstErr := make(chan error, 1)
		go func() {
			_, err := f.cache.GetOrGenerateBackground(firstCtx, f.game, 4, "Pier", "s")
			firstErr <- err
		}()
		<-started

		second := make(chan images.Result, 1)
		go func() {
			res, err := f.cache.GetOrGenerateBackground(ctx, f.game, 4, "Pier", "s")
			assert.NoError(t, err)
			second <- res
		}()

		cancelFirst()
		require.ErrorIs(t, <-firstErr, context.Canceled)
		close(release)
		res := <-second
		require.False(t, res.Fallback)
		require.Equal(t, "pier_x1.png", res.Entry.ImageName)

		game, err := f.repo.Get(ctx, f.game.ID)
		require.NoError(t, err)
		require.Equal(t, "pier_x1.png", game.BackgroundCache[models.BackgroundCacheKey(4, "Pier")].ImageName)
	})

	t.Run("unknown game", func(t *testing.T) {
		f := newFixture(t)
		f.prompts.On("GenerateBackgroundPrompt", mock.Anything, 1, "s", "x").
			Return(models.ImagePrompt{Prompt: "p", ImageName: "p.png"}).Once()
		f.synth.On("Synthesize", mock.Anything, "p", 512).Return(nil, errors.NewSentinel("boom")).Once()

		_, err := f.cache.GetOrGenerateBackground(ctx, models.Game{ID: "nope"}, 1, "x", "s")
		require.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestCache_GenerateSprite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	prompt := models.ImagePrompt{Prompt: "Sal in a fedora", ImageName: "sprite_sal_x1.png"}
	f.prompts.On("GenerateSpritePrompt", mock.Anything, "Sal Moretti", "a nervous bookie").Return(prompt).Twice()
	f.synth.On("Synthesize", mock.Anything, "Sal in a fedora", 256).Return(aitest.Solid(256, black), nil).Once()
	f.synth.On("Synthesize", mock.Anything, "Sal in a fedora", 256).Return(nil, errors.NewSentinel("boom")).Once()

	got, err := f.cache.GenerateSprite(ctx, "Sal Moretti", "a nervous bookie")
	require.NoError(t, err)
	require.Equal(t, models.ImageEntry{
		Prompt:    "Sal in a fedora",
		ImageName: "sprite_sal_x1.png",
		URL:       "/static/images/sprite_sal_x1.png",
	}, got)
	require.Equal(t, image.Rect(0, 0, 32, 32), decodePNG(t, filepath.Join(f.dir, "sprite_sal_x1.png")).Bounds())

	// Sprites are not cached.
	_, err = f.cache.GenerateSprite(ctx, "Sal Moretti", "a nervous bookie")
	require.ErrorIs(t, err, images.ErrSpriteGeneration)
}

func TestCache_EnsureDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.synth.On("Synthesize", mock.Anything, mock.AnythingOfType("string"), 512).
		Return(aitest.Checkerboard(512), nil).Twice()

	rendered, err := f.cache.EnsureDefaults(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"default_detective_office.png", "default_newsroom.png"}, rendered)

	rendered, err = f.cache.EnsureDefaults(ctx)
	require.NoError(t, err)
	require.Empty(t, rendered)
}

func TestDefaultBackground(t *testing.T) {
	t.Parallel()
	tests := map[int]string{
		1:  "default_detective_office.png",
		2:  "default_newsroom.png",
		3:  "placeholder_bg.png",
		10: "placeholder_bg.png",
	}
	for level, name := range tests {
		got := images.DefaultBackground(level)
		assert.Equal(t, name, got.ImageName)
		assert.Equal(t, "/static/images/"+name, got.URL)
		assert.Empty(t, got.Prompt)
	}
}
