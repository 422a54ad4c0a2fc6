package models

import (
	"strconv"
	"time"
)

// Game holds the progress of one play-through.
type Game struct {
	ID              string
	Outline         Outline
	CurrentLevel    int
	ChoicesHistory  []ChoiceRecord
	BackgroundCache map[string]ImageEntry
	Completed       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ChoiceRecord is the path the player took through one level.
type ChoiceRecord struct {
	Level int               `json:"level"`
	Path  []ChoiceSelection `json:"path"`
}

// ChoiceSelection is one choice the player made at a dialogue node.
type ChoiceSelection struct {
	NodeID     string `json:"node_id"`
	ChoiceText string `json:"choice_text"`
}

// ImageEntry is a rendered image addressable by URL. Prompt is empty for default assets.
type ImageEntry struct {
	Prompt    string `json:"prompt"`
	ImageName string `json:"image_name"`
	URL       string `json:"url"`
}

// LevelRecord is the immutable snapshot of the content generated for a level of a game.
type LevelRecord struct {
	GameID      string
	LevelNumber int
	Role        Role
	Content     DialogueTree
	CreatedAt   time.Time
}

// BackgroundCacheKey derives the cache key for a background from the level and the scene it illustrates.
func BackgroundCacheKey(levelNumber int, sceneDescription string) string {
	return "lvl" + strconv.Itoa(levelNumber) + ":" + sceneDescription
}
