// Package game runs the progression of a play-through: starting a game, advancing through its levels and
// answering headline and image requests for it.
package game

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/images"
	"github.com/myrjola/noirline/internal/logging"
	"github.com/myrjola/noirline/internal/models"
	"github.com/myrjola/noirline/internal/repositories"
)

var (
	ErrGameNotFound   = repositories.ErrNotFound
	ErrInvalidRequest = errors.NewSentinel("invalid request")
)

type ContentGenerator interface {
	GenerateOutline(ctx context.Context) (models.Outline, error)
	GenerateLevelContent(
		ctx context.Context,
		outline models.Outline,
		choicesHistory []models.ChoiceRecord,
		levelNumber int,
	) (models.DialogueTree, error)
	GenerateHeadline(
		ctx context.Context,
		outline models.Outline,
		choicesHistory []models.ChoiceRecord,
		levelNumber int,
	) (string, error)
}

type Repository interface {
	Create(ctx context.Context, game models.Game, level models.LevelRecord) error
	Get(ctx context.Context, id string) (models.Game, error)
	SaveProgress(ctx context.Context, game models.Game, level *models.LevelRecord) error
}

type ImageRenderer interface {
	GetOrGenerateBackground(
		ctx context.Context,
		game models.Game,
		levelNumber int,
		sceneDescription string,
		levelSummary string,
	) (images.Result, error)
	GenerateSprite(ctx context.Context, characterName, characterDescription string) (models.ImageEntry, error)
}

// Level is the content of the level a game is at.
type Level struct {
	Number  int
	Role    models.Role
	Summary string
	Content models.DialogueTree
}

// Advance is the outcome of AdvanceLevel. When Completed is set, the game is over and Level is empty.
type Advance struct {
	Game      models.Game
	Level     Level
	Completed bool
}

type Service struct {
	generator ContentGenerator
	repo      Repository
	images    ImageRenderer
	logger    *slog.Logger
	locks     *keyedMutex
	newID     func() string
}

func NewService(generator ContentGenerator, repo Repository, renderer ImageRenderer, logger *slog.Logger) *Service {
	return &Service{
		generator: generator,
		repo:      repo,
		images:    renderer,
		logger:    logger.With("source", "game.Service"),
		locks:     newKeyedMutex(),
		newID:     uuid.NewString,
	}
}

// StartGame generates the outline and the first level and stores them as a new game. Nothing is stored when
// either generation fails.
func (s *Service) StartGame(ctx context.Context) (models.Game, Level, error) {
	outline, err := s.generator.GenerateOutline(ctx)
	if err != nil {
		return models.Game{}, Level{}, errors.Wrap(err, "generate outline")
	}

	game := models.Game{
		ID:             s.newID(),
		Outline:        outline,
		CurrentLevel:   1,
		ChoicesHistory: []models.ChoiceRecord{},
	}
	ctx = logging.WithGameID(ctx, game.ID)

	level, record, err := s.generateLevel(ctx, game, 1)
	if err != nil {
		return models.Game{}, Level{}, err
	}
	if err = s.repo.Create(ctx, game, record); err != nil {
		return models.Game{}, Level{}, errors.Wrap(err, "create game")
	}
	gamesStarted.Inc()
	levelsGenerated.WithLabelValues("1").Inc()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "game started")
	return game, level, nil
}

// AdvanceLevel records the path the player took through the current level and moves the game to the next one.
//
// Advancing from the last level records the path once, marks the game completed and reports Completed. Advancing a
// completed game only reports Completed. Nothing is stored when generating the next level fails.
func (s *Service) AdvanceLevel(ctx context.Context, gameID string, path []models.ChoiceSelection) (Advance, error) {
	if gameID == "" {
		return Advance{}, errors.Wrap(ErrInvalidRequest, "game_id is required")
	}
	ctx = logging.WithGameID(ctx, gameID)
	unlock := s.locks.Lock(gameID)
	defer unlock()

	game, err := s.repo.Get(ctx, gameID)
	if err != nil {
		return Advance{}, errors.Wrap(err, "get game")
	}
	if game.Completed {
		return Advance{Game: game, Completed: true}, nil
	}

	history := withPath(game.ChoicesHistory, game.CurrentLevel, path)
	next := game.CurrentLevel + 1
	if next > models.LevelCount {
		game.ChoicesHistory = history
		game.Completed = true
		if err = s.repo.SaveProgress(ctx, game, nil); err != nil {
			return Advance{}, errors.Wrap(err, "save completion")
		}
		gamesCompleted.Inc()
		s.logger.LogAttrs(ctx, slog.LevelInfo, "game completed")
		return Advance{Game: game, Completed: true}, nil
	}

	candidate := game
	candidate.ChoicesHistory = history
	level, record, err := s.generateLevel(ctx, candidate, next)
	if err != nil {
		return Advance{}, err
	}
	candidate.CurrentLevel = next
	if err = s.repo.SaveProgress(ctx, candidate, &record); err != nil {
		return Advance{}, errors.Wrap(err, "save progress", slog.Int("level_number", next))
	}
	levelsGenerated.WithLabelValues(strconv.Itoa(next)).Inc()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "advanced level", slog.Int("level_number", next))
	return Advance{Game: candidate, Level: level}, nil
}

// Headline writes a headline for the current level as if path had been taken through it. The game is not changed.
func (s *Service) Headline(ctx context.Context, gameID string, path []models.ChoiceSelection) (string, error) {
	if gameID == "" {
		return "", errors.Wrap(ErrInvalidRequest, "game_id is required")
	}
	ctx = logging.WithGameID(ctx, gameID)
	game, err := s.repo.Get(ctx, gameID)
	if err != nil {
		return "", errors.Wrap(err, "get game")
	}
	history := withPath(game.ChoicesHistory, game.CurrentLevel, path)
	headline, err := s.generator.GenerateHeadline(ctx, game.Outline, history, game.CurrentLevel)
	if err != nil {
		return "", errors.Wrap(err, "generate headline")
	}
	return headline, nil
}

// Background returns the background for a scene of a level of the game.
func (s *Service) Background(
	ctx context.Context,
	gameID string,
	levelNumber int,
	sceneDescription string,
	levelSummary string,
) (images.Result, error) {
	if gameID == "" {
		return images.Result{}, errors.Wrap(ErrInvalidRequest, "game_id is required")
	}
	if levelNumber < 1 || levelNumber > models.LevelCount {
		return images.Result{}, errors.Wrap(ErrInvalidRequest, "level_number out of range",
			slog.Int("level_number", levelNumber))
	}
	ctx = logging.WithGameID(ctx, gameID)
	game, err := s.repo.Get(ctx, gameID)
	if err != nil {
		return images.Result{}, errors.Wrap(err, "get game")
	}
	result, err := s.images.GetOrGenerateBackground(ctx, game, levelNumber, sceneDescription, levelSummary)
	if err != nil {
		return images.Result{}, errors.Wrap(err, "get background")
	}
	return result, nil
}

// Sprite renders a character sprite.
func (s *Service) Sprite(ctx context.Context, characterName, characterDescription string) (models.ImageEntry, error) {
	if strings.TrimSpace(characterName) == "" || strings.TrimSpace(characterDescription) == "" {
		return models.ImageEntry{}, errors.Wrap(ErrInvalidRequest, "character_name and character_description are required")
	}
	entry, err := s.images.GenerateSprite(ctx, characterName, characterDescription)
	if err != nil {
		return models.ImageEntry{}, errors.Wrap(err, "generate sprite")
	}
	return entry, nil
}

func (s *Service) generateLevel(
	ctx context.Context,
	game models.Game,
	levelNumber int,
) (Level, models.LevelRecord, error) {
	tree, err := s.generator.GenerateLevelContent(ctx, game.Outline, game.ChoicesHistory, levelNumber)
	if err != nil {
		return Level{}, models.LevelRecord{}, errors.Wrap(err, "generate level", slog.Int("level_number", levelNumber))
	}
	role := tree.Role
	if role == "" {
		role = models.DefaultRole(levelNumber)
	}
	level := Level{
		Number:  levelNumber,
		Role:    role,
		Summary: game.Outline.Summary(levelNumber),
		Content: tree,
	}
	record := models.LevelRecord{GameID: game.ID, LevelNumber: levelNumber, Role: role, Content: tree}
	return level, record, nil
}

// withPath returns a copy of history with the path through levelNumber appended.
func withPath(history []models.ChoiceRecord, levelNumber int, path []models.ChoiceSelection) []models.ChoiceRecord {
	if path == nil {
		path = []models.ChoiceSelection{}
	}
	return append(slices.Clone(history), models.ChoiceRecord{Level: levelNumber, Path: path})
}
