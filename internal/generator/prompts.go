package generator

import (
	"fmt"

	"github.com/myrjola/noirline/internal/models"
)

const outlineSystemPrompt = `You are the story designer of a dialogue-driven noir game set in New York in the 1940s.
Design an overarching story of exactly 10 levels. The player role alternates between detective and journalist,
starting with detective at level 1. Weave in historical context of the era, invented characters, a central
mystery that deepens from level to level, and the key branching points.

Answer with a single JSON object and nothing else. It has one key "levels": a list of 10 objects, each with
"level_number" (1-10), "role" ("detective" or "journalist"), "summary" (a short paragraph with the focus of the
level: the investigation, the event or the scoop) and optionally "key_characters" (a list of the important
non-player character names of the level).`

func levelSystemPrompt(level models.LevelOutline) string {
	return fmt.Sprintf(`You are the narrative engine of a dialogue-driven noir game set in New York in the 1940s.
Write the branching dialogue tree of level %d as a JSON object. The player is the %s.
The outline summary of this level is: %s
The user message contains the whole outline and the choices the player made in earlier levels. Keep the story
coherent with them and let the characters remember how the player treated them.

Every dialogue node has "id" (unique string), "speaker" (a character name or "Narrator"), "text" (the line shown to
the player), optionally "scene_description" (what the scene looks like), and "choices": a list of
{"text": "option text", "next_id": "id of the next node"}. Include between 5 and 10 decision points, i.e. nodes
with choices.

Answer with the JSON object only. Its keys are "level_number", "role", "background_description" (a short
description of the background image to show), "dialogue_nodes" (the list of nodes) and "start_node" (id of the
first node).`, level.LevelNumber, level.Role, level.Summary)
}

func headlineSystemPrompt(levelNumber int) string {
	return fmt.Sprintf(`You write front page headlines for a New York newspaper in the 1940s.
The user message contains the story outline and the choices the player made up to level %d. Write one
sensational headline in the language of the era that sums up the events of this level and the mark the player
left on them. Answer with the headline text only, on a single line.`, levelNumber)
}

const backgroundSystemPrompt = `You are the art director of a pixel art noir game set in New York in the 1940s.
The user message describes a level and optionally the scene currently on screen. Describe one background image
for an image generation model: the location, the time of day, the light and the mood, rendered as detailed
pixel art with a muted palette. No text or lettering in the image.

Answer with a single JSON object with the keys "prompt" (the image description) and "image_name" (a short file
name in lowercase letters, digits and underscores ending in .png).`

const spriteSystemPrompt = `You are the character artist of a pixel art noir game set in New York in the 1940s.
The user message names a character and describes them. Describe one full-body character sprite for an image
generation model: clothing of the era, posture, the one detail that makes the character recognisable, on a plain
background.

Answer with a single JSON object with the keys "prompt" (the sprite description) and "image_name" (a short file
name in lowercase letters, digits and underscores ending in .png).`

func fallbackBackgroundPrompt(levelNumber int, levelSummary, sceneContext string) string {
	if sceneContext == "" {
		sceneContext = "an establishing shot of the city"
	}
	return fmt.Sprintf("Pixel art background for level %d of a 1940s New York noir story. %s Scene: %s. "+
		"Rain-soaked streets, low warm light, long shadows, muted palette, no text.", levelNumber, levelSummary,
		sceneContext)
}

func fallbackSpritePrompt(characterName, characterDescription string) string {
	return fmt.Sprintf("Pixel art full-body sprite of %s, %s. 1940s New York noir style, plain background.",
		characterName, characterDescription)
}
