// Package images renders background and sprite images and caches backgrounds per game.
//
// A background request always yields an image: when prompt generation or synthesis fails, the level's default
// asset is used instead and that choice is cached like any other. Sprites are rendered on every request and their
// failures are returned to the caller.
package images

import (
	"context"
	"image"
	"log/slog"

	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/models"
	"golang.org/x/sync/singleflight"
)

// Synthesis and output sizes in pixels.
const (
	BackgroundSynthesisSize = 512
	BackgroundWidth         = 800
	BackgroundHeight        = 600
	SpriteSynthesisSize     = 256
	SpriteSize              = 32
)

var ErrSpriteGeneration = errors.NewSentinel("sprite generation failed")

// Synthesizer renders a square image of size pixels from prompt.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string, size int) (image.Image, error)
}

// PromptGenerator describes images to render. It never fails.
type PromptGenerator interface {
	GenerateBackgroundPrompt(ctx context.Context, levelNumber int, levelSummary, sceneContext string) models.ImagePrompt
	GenerateSpritePrompt(ctx context.Context, characterName, characterDescription string) models.ImagePrompt
}

// CacheStore persists background cache entries per game. PutBackground keeps an existing entry and returns whatever
// is stored for the key afterwards.
type CacheStore interface {
	GetBackground(ctx context.Context, gameID, cacheKey string) (models.ImageEntry, bool, error)
	PutBackground(ctx context.Context, gameID, cacheKey string, entry models.ImageEntry) (models.ImageEntry, error)
}

// AssetStore keeps rendered images addressable by URL.
type AssetStore interface {
	Save(ctx context.Context, name string, img image.Image) (string, error)
	Exists(name string) bool
}

// Result is the outcome of a background request. Fallback is set when Entry is the default asset because rendering
// failed; Reason then holds the failure.
type Result struct {
	Entry    models.ImageEntry
	Fallback bool
	Reason   error
}

type Cache struct {
	prompts PromptGenerator
	synth   Synthesizer
	store   CacheStore
	assets  AssetStore
	logger  *slog.Logger
	flights singleflight.Group
}

func NewCache(
	prompts PromptGenerator,
	synth Synthesizer,
	store CacheStore,
	assets AssetStore,
	logger *slog.Logger,
) *Cache {
	return &Cache{
		prompts: prompts,
		synth:   synth,
		store:   store,
		assets:  assets,
		logger:  logger.With("source", "images.Cache"),
	}
}

// GetOrGenerateBackground returns the cached background of game for the level and scene, rendering it on a miss.
//
// Concurrent misses for the same key share one rendering, and the cache is written once per key. A caller whose
// context ends stops waiting without cancelling the rendering for the others. Other errors are only returned when
// the cache itself cannot be read or written.
func (c *Cache) GetOrGenerateBackground(
	ctx context.Context,
	game models.Game,
	levelNumber int,
	sceneDescription string,
	levelSummary string,
) (Result, error) {
	key := models.BackgroundCacheKey(levelNumber, sceneDescription)
	if entry, ok := game.BackgroundCache[key]; ok {
		backgroundRequests.WithLabelValues(outcomeHit).Inc()
		return Result{Entry: entry}, nil
	}
	// The rendering outlives any one caller. Model calls are bounded by the client's own timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(game.ID+"\x00"+key, func() (any, error) {
		return c.renderBackground(flightCtx, game.ID, key, levelNumber, sceneDescription, levelSummary)
	})
	select {
	case <-ctx.Done():
		return Result{}, errors.Wrap(ctx.Err(), "wait for background", slog.String("cache_key", key))
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err //nolint:wrapcheck // wrapped in renderBackground
		}
		return res.Val.(Result), nil //nolint:forcetypeassert // renderBackground returns Result
	}
}

func (c *Cache) renderBackground(
	ctx context.Context,
	gameID string,
	key string,
	levelNumber int,
	sceneDescription string,
	levelSummary string,
) (Result, error) {
	attrs := []slog.Attr{slog.String("cache_key", key), slog.Int("level_number", levelNumber)}

	// The game snapshot may predate an entry written by a concurrent request.
	entry, ok, err := c.store.GetBackground(ctx, gameID, key)
	if err != nil {
		return Result{}, errors.Wrap(err, "read background cache", attrs...)
	}
	if ok {
		backgroundRequests.WithLabelValues(outcomeHit).Inc()
		return Result{Entry: entry}, nil
	}

	result := Result{Entry: DefaultBackground(levelNumber)}
	prompt := c.prompts.GenerateBackgroundPrompt(ctx, levelNumber, levelSummary, sceneDescription)
	url, err := c.render(ctx, prompt, BackgroundSynthesisSize, BackgroundWidth, BackgroundHeight)
	if err != nil {
		result.Fallback = true
		result.Reason = err
		backgroundRequests.WithLabelValues(outcomeFallback).Inc()
		c.logger.LogAttrs(ctx, slog.LevelWarn, "using default background",
			append(attrs, slog.String("image_name", result.Entry.ImageName), errors.SlogError(err))...)
	} else {
		result.Entry = models.ImageEntry{Prompt: prompt.Prompt, ImageName: prompt.ImageName, URL: url}
		backgroundRequests.WithLabelValues(outcomeRendered).Inc()
	}

	stored, err := c.store.PutBackground(ctx, gameID, key, result.Entry)
	if err != nil {
		return Result{}, errors.Wrap(err, "write background cache", attrs...)
	}
	if stored != result.Entry {
		return Result{Entry: stored}, nil
	}
	return result, nil
}

// GenerateSprite renders a character sprite. Failures are marked with ErrSpriteGeneration.
func (c *Cache) GenerateSprite(ctx context.Context, characterName, characterDescription string) (models.ImageEntry, error) {
	prompt := c.prompts.GenerateSpritePrompt(ctx, characterName, characterDescription)
	url, err := c.render(ctx, prompt, SpriteSynthesisSize, SpriteSize, SpriteSize)
	if err != nil {
		spriteRequests.WithLabelValues("error").Inc()
		err = errors.Wrap(err, "render sprite", slog.String("character", characterName))
		return models.ImageEntry{}, errors.Mark(err, ErrSpriteGeneration)
	}
	spriteRequests.WithLabelValues("success").Inc()
	return models.ImageEntry{Prompt: prompt.Prompt, ImageName: prompt.ImageName, URL: url}, nil
}

// render synthesizes prompt at size, resamples it to width×height and saves it.
func (c *Cache) render(ctx context.Context, prompt models.ImagePrompt, size, width, height int) (string, error) {
	img, err := c.synth.Synthesize(ctx, prompt.Prompt, size)
	if err != nil {
		return "", errors.Wrap(err, "synthesize image")
	}
	url, err := c.assets.Save(ctx, prompt.ImageName, Resample(img, width, height))
	if err != nil {
		return "", errors.Wrap(err, "save image")
	}
	return url, nil
}
