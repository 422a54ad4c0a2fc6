// Package generator turns text completions into game content: the story outline, level dialogue trees,
// headlines and image prompts.
//
// Outline, level and headline generation fail loudly since the game cannot continue without them. Image prompt
// generation never fails; it falls back to templated prompts because a default image always exists.
package generator

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/myrjola/noirline/internal/ai"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/llmjson"
	"github.com/myrjola/noirline/internal/models"
	"github.com/myrjola/noirline/internal/random"
)

var (
	ErrOutlineGeneration  = errors.NewSentinel("outline generation failed")
	ErrLevelGeneration    = errors.NewSentinel("level generation failed")
	ErrHeadlineGeneration = errors.NewSentinel("headline generation failed")
	ErrLevelNotFound      = errors.NewSentinel("level not found in outline")
)

// Token budgets per content kind.
const (
	outlineMaxTokens     = 1000
	levelMaxTokens       = 2000
	headlineMaxTokens    = 100
	imagePromptMaxTokens = 200

	DefaultTemperature = 0.7
)

// Completer is the text-completion capability.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (string, error)
}

type Generator struct {
	completer   Completer
	logger      *slog.Logger
	temperature float32
	// suffix returns the random part of generated image names.
	suffix func() string
}

func New(completer Completer, temperature float32, logger *slog.Logger) *Generator {
	return &Generator{
		completer:   completer,
		logger:      logger.With("source", "Generator"),
		temperature: temperature,
		suffix:      randomSuffix,
	}
}

func randomSuffix() string {
	const suffixLength = 8
	s, err := random.Suffix(suffixLength)
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return s
}

func (g *Generator) complete(ctx context.Context, maxTokens int, system string, user any) (string, error) {
	messages := []ai.Message{{Role: ai.RoleSystem, Content: system}}
	if user != nil {
		payload, err := json.Marshal(user)
		if err != nil {
			return "", errors.Wrap(err, "marshal user message")
		}
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: string(payload)})
	}
	content, err := g.completer.Complete(ctx, ai.CompletionRequest{
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "complete")
	}
	return content, nil
}

// storyContext is the user message for level and headline generation.
type storyContext struct {
	Outline        models.Outline        `json:"outline"`
	ChoicesHistory []models.ChoiceRecord `json:"choices_history"`
	CurrentLevel   int                   `json:"current_level"`
}

func newStoryContext(outline models.Outline, history []models.ChoiceRecord, levelNumber int) storyContext {
	if history == nil {
		history = []models.ChoiceRecord{}
	}
	return storyContext{Outline: outline, ChoicesHistory: history, CurrentLevel: levelNumber}
}

// GenerateOutline generates the 10-level story outline.
func (g *Generator) GenerateOutline(ctx context.Context) (models.Outline, error) {
	content, err := g.complete(ctx, outlineMaxTokens, outlineSystemPrompt, nil)
	if err != nil {
		return models.Outline{}, errors.Mark(err, ErrOutlineGeneration)
	}

	var outline models.Outline
	if err = llmjson.Decode(content, &outline); err != nil {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "unparseable outline", slog.String("raw", content))
		return models.Outline{}, errors.Mark(errors.Wrap(err, "decode outline"), ErrOutlineGeneration)
	}
	if err = normalizeOutline(&outline); err != nil {
		return models.Outline{}, errors.Mark(err, ErrOutlineGeneration)
	}
	return outline, nil
}

var errIncompleteOutline = errors.NewSentinel("outline does not cover every level")

// normalizeOutline sorts the levels, requires levels 1..LevelCount exactly once and fills in missing or unknown
// roles.
// Role alternation itself is left to the model.
func normalizeOutline(outline *models.Outline) error {
	slices.SortFunc(outline.Levels, func(a, b models.LevelOutline) int {
		return a.LevelNumber - b.LevelNumber
	})
	if len(outline.Levels) != models.LevelCount {
		return errors.Wrap(errIncompleteOutline, "count levels", slog.Int("levels", len(outline.Levels)))
	}
	for i := range outline.Levels {
		lvl := &outline.Levels[i]
		if lvl.LevelNumber != i+1 {
			return errors.Wrap(errIncompleteOutline, "check level numbers", slog.Int("missing", i+1))
		}
		if role, ok := models.ParseRole(string(lvl.Role)); ok {
			lvl.Role = role
		} else {
			lvl.Role = models.DefaultRole(lvl.LevelNumber)
		}
	}
	return nil
}

// outlineRole is the role the outline gives level, or the alternating default when the outline's is unusable.
func outlineRole(level models.LevelOutline) models.Role {
	if role, ok := models.ParseRole(string(level.Role)); ok {
		return role
	}
	return models.DefaultRole(level.LevelNumber)
}

// GenerateLevelContent generates the dialogue tree of levelNumber, informed by the choices made so far.
func (g *Generator) GenerateLevelContent(
	ctx context.Context,
	outline models.Outline,
	choicesHistory []models.ChoiceRecord,
	levelNumber int,
) (models.DialogueTree, error) {
	attrs := slog.Int("level_number", levelNumber)
	level, ok := outline.Level(levelNumber)
	if !ok {
		return models.DialogueTree{}, errors.Wrap(ErrLevelNotFound, "find level", attrs)
	}

	content, err := g.complete(ctx, levelMaxTokens, levelSystemPrompt(level),
		newStoryContext(outline, choicesHistory, levelNumber))
	if err != nil {
		return models.DialogueTree{}, errors.Mark(errors.Wrap(err, "generate level", attrs), ErrLevelGeneration)
	}

	var tree models.DialogueTree
	if err = llmjson.Decode(content, &tree); err != nil {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "unparseable level", attrs, slog.String("raw", content))
		return models.DialogueTree{}, errors.Mark(errors.Wrap(err, "decode level", attrs), ErrLevelGeneration)
	}

	if tree.LevelNumber == 0 {
		tree.LevelNumber = levelNumber
	}
	if role, ok := models.ParseRole(string(tree.Role)); ok {
		tree.Role = role
	} else {
		if tree.Role != "" {
			g.logger.LogAttrs(ctx, slog.LevelDebug, "replacing unknown role", attrs, slog.String("role", string(tree.Role)))
		}
		tree.Role = outlineRole(level)
	}
	tree.FillEmptyText()
	for i := range tree.DialogueNodes {
		if tree.DialogueNodes[i].Choices == nil {
			tree.DialogueNodes[i].Choices = []models.Choice{}
		}
	}
	if decisions := tree.DecisionPoints(); decisions < 5 || decisions > 10 {
		g.logger.LogAttrs(ctx, slog.LevelDebug, "decision points outside requested range",
			attrs, slog.Int("decision_points", decisions))
	}
	return tree, nil
}

// GenerateHeadline writes a newspaper headline for levelNumber. The result is plain text.
func (g *Generator) GenerateHeadline(
	ctx context.Context,
	outline models.Outline,
	choicesHistory []models.ChoiceRecord,
	levelNumber int,
) (string, error) {
	content, err := g.complete(ctx, headlineMaxTokens, headlineSystemPrompt(levelNumber),
		newStoryContext(outline, choicesHistory, levelNumber))
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "generate headline", slog.Int("level_number", levelNumber)),
			ErrHeadlineGeneration)
	}
	headline := strings.Trim(strings.TrimSpace(content), `"`)
	if headline == "" {
		return "", errors.Wrap(ErrHeadlineGeneration, "empty headline", slog.String("raw", content))
	}
	return headline, nil
}

type backgroundRequest struct {
	LevelNumber  int    `json:"level_number"`
	LevelSummary string `json:"level_summary"`
	SceneContext string `json:"scene_context,omitempty"`
}

// GenerateBackgroundPrompt describes a background image for the level and scene. It never fails.
func (g *Generator) GenerateBackgroundPrompt(
	ctx context.Context,
	levelNumber int,
	levelSummary string,
	sceneContext string,
) models.ImagePrompt {
	fallback := models.ImagePrompt{
		Prompt:    fallbackBackgroundPrompt(levelNumber, levelSummary, sceneContext),
		ImageName: "bg_" + strconv.Itoa(levelNumber) + "_" + slugOr(sceneContext, "default") + "_" + g.suffix() + ".png",
	}
	return g.imagePrompt(ctx, backgroundSystemPrompt, backgroundRequest{
		LevelNumber:  levelNumber,
		LevelSummary: levelSummary,
		SceneContext: sceneContext,
	}, fallback, slog.String("kind", "background"), slog.Int("level_number", levelNumber))
}

type spriteRequest struct {
	CharacterName        string `json:"character_name"`
	CharacterDescription string `json:"character_description"`
}

// GenerateSpritePrompt describes a character sprite. It never fails.
func (g *Generator) GenerateSpritePrompt(
	ctx context.Context,
	characterName string,
	characterDescription string,
) models.ImagePrompt {
	fallback := models.ImagePrompt{
		Prompt:    fallbackSpritePrompt(characterName, characterDescription),
		ImageName: "sprite_" + slugOr(characterName, "character") + "_" + g.suffix() + ".png",
	}
	return g.imagePrompt(ctx, spriteSystemPrompt, spriteRequest{
		CharacterName:        characterName,
		CharacterDescription: characterDescription,
	}, fallback, slog.String("kind", "sprite"), slog.String("character", characterName))
}

func (g *Generator) imagePrompt(
	ctx context.Context,
	system string,
	request any,
	fallback models.ImagePrompt,
	attrs ...slog.Attr,
) models.ImagePrompt {
	content, err := g.complete(ctx, imagePromptMaxTokens, system, request)
	if err != nil {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "using fallback image prompt", append(attrs, errors.SlogError(err))...)
		return fallback
	}
	var suggested models.ImagePrompt
	if err = llmjson.Decode(content, &suggested); err != nil {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "using fallback image prompt", append(attrs, errors.SlogError(err))...)
		return fallback
	}

	result := fallback
	if p := strings.TrimSpace(suggested.Prompt); p != "" {
		result.Prompt = p
	}
	// The name becomes a file name, so only accept plain names.
	if name := strings.TrimSpace(suggested.ImageName); safeImageName.MatchString(name) {
		result.ImageName = strings.TrimSuffix(name, ".png") + "_" + g.suffix() + ".png"
	}
	return result
}

var (
	safeImageName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}\.png$`)
	nonSlug       = regexp.MustCompile(`[^a-z0-9]+`)
)

const maxSlugLength = 40

// slugOr lowercases s and replaces everything but letters and digits with underscores.
func slugOr(s string, fallback string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "_")
	}
	if slug == "" {
		return fallback
	}
	return slug
}
