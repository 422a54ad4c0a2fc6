package testhelpers

import (
	"fmt"
	"strings"

	"github.com/myrjola/noirline/internal/models"
)

// OutlineJSON is a valid 10-level outline completion.
func OutlineJSON() string {
	levels := make([]string, models.LevelCount)
	for i := range levels {
		n := i + 1
		role := "detective"
		if n%2 == 0 {
			role = "journalist"
		}
		levels[i] = fmt.Sprintf(`{"level_number": %d, "role": %q, "summary": "Summary of level %d.", `+
			`"key_characters": ["Vera Lang", "Sal Moretti"]}`, n, role, n)
	}
	return `{"levels": [` + strings.Join(levels, ", ") + `]}`
}

// Outline is the parsed form of OutlineJSON.
func Outline() models.Outline {
	outline := models.Outline{Levels: make([]models.LevelOutline, models.LevelCount)}
	for i := range outline.Levels {
		n := i + 1
		role := models.RoleDetective
		if n%2 == 0 {
			role = models.RoleJournalist
		}
		outline.Levels[i] = models.LevelOutline{
			LevelNumber:   n,
			Role:          role,
			Summary:       fmt.Sprintf("Summary of level %d.", n),
			KeyCharacters: []string{"Vera Lang", "Sal Moretti"},
		}
	}
	return outline
}

// LevelJSON is a valid dialogue tree completion for levelNumber wrapped in a little prose.
func LevelJSON(levelNumber int) string {
	return fmt.Sprintf(`Here is the level:
{"level_number": %d, "background_description": "A smoky office at night", "start_node": "n1",
 "dialogue_nodes": [
  {"id": "n1", "speaker": "Vera Lang", "text": "You took your time.", "scene_description": "A smoky office",
   "choices": [{"text": "Accept", "next_id": "n2"}, {"text": "Refuse", "next_id": "n3"}]},
  {"id": "n2", "speaker": "Narrator", "text": "", "scene_description": "  The rain keeps falling.  "},
  {"id": "n3", "speaker": "Narrator", "text": ""}
 ]}`, levelNumber)
}
