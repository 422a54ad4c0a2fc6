package models

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// LevelCount is the number of levels in every story outline.
const LevelCount = 10

// Role is the player character for a level. Levels alternate between the two, starting with detective.
type Role string

const (
	RoleDetective  Role = "detective"
	RoleJournalist Role = "journalist"
)

// DefaultRole is the role of levelNumber when the roles alternate starting with detective.
func DefaultRole(levelNumber int) Role {
	if levelNumber%2 == 1 {
		return RoleDetective
	}
	return RoleJournalist
}

// Outline is the story skeleton generated once per game.
type Outline struct {
	Levels []LevelOutline `json:"levels"`
}

// LevelOutline describes the focus of a single level.
type LevelOutline struct {
	LevelNumber   int      `json:"level_number"`
	Role          Role     `json:"role"`
	Summary       string   `json:"summary"`
	KeyCharacters []string `json:"key_characters,omitempty"`
}

func (l *LevelOutline) UnmarshalJSON(data []byte) error {
	type plain LevelOutline
	var aux struct {
		plain
		LevelNumber looseInt `json:"level_number"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err //nolint:wrapcheck // keep json error types for callers
	}
	*l = LevelOutline(aux.plain)
	l.LevelNumber = int(aux.LevelNumber)
	return nil
}

// Level returns the outline entry for levelNumber.
func (o Outline) Level(levelNumber int) (LevelOutline, bool) {
	for _, lvl := range o.Levels {
		if lvl.LevelNumber == levelNumber {
			return lvl, true
		}
	}
	return LevelOutline{}, false
}

// Summary returns the summary of levelNumber or an empty string when the level is missing.
func (o Outline) Summary(levelNumber int) string {
	lvl, _ := o.Level(levelNumber)
	return lvl.Summary
}

// PlaceholderText replaces dialogue text that the model left empty and for which no scene description exists.
const PlaceholderText = "..."

// DialogueTree is the branching conversation for one level.
type DialogueTree struct {
	LevelNumber           int            `json:"level_number"`
	Role                  Role           `json:"role"`
	BackgroundDescription string         `json:"background_description,omitempty"`
	DialogueNodes         []DialogueNode `json:"dialogue_nodes"`
	StartNode             string         `json:"start_node"`
}

// DialogueNode is a line of dialogue with the options the player has after it.
type DialogueNode struct {
	ID               string   `json:"id"`
	Speaker          string   `json:"speaker"`
	Text             string   `json:"text"`
	Choices          []Choice `json:"choices"`
	SceneDescription string   `json:"scene_description,omitempty"`
}

// Choice points to the node the conversation continues from. NextID is not validated against the tree.
type Choice struct {
	Text   string `json:"text"`
	NextID string `json:"next_id"`
}

func (n *DialogueNode) UnmarshalJSON(data []byte) error {
	type plain DialogueNode
	var aux struct {
		plain
		ID looseString `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err //nolint:wrapcheck // keep json error types for callers
	}
	*n = DialogueNode(aux.plain)
	n.ID = string(aux.ID)
	return nil
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	type plain Choice
	var aux struct {
		plain
		NextID looseString `json:"next_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err //nolint:wrapcheck // keep json error types for callers
	}
	*c = Choice(aux.plain)
	c.NextID = string(aux.NextID)
	return nil
}

// FillEmptyText makes sure every node has display text by falling back to the scene description or a placeholder.
func (t *DialogueTree) FillEmptyText() {
	for i := range t.DialogueNodes {
		node := &t.DialogueNodes[i]
		if strings.TrimSpace(node.Text) != "" {
			continue
		}
		if scene := strings.TrimSpace(node.SceneDescription); scene != "" {
			node.Text = scene
		} else {
			node.Text = PlaceholderText
		}
	}
}

// DecisionPoints counts the nodes that offer the player at least one choice.
func (t DialogueTree) DecisionPoints() int {
	n := 0
	for _, node := range t.DialogueNodes {
		if len(node.Choices) > 0 {
			n++
		}
	}
	return n
}

// ImagePrompt is what the model suggests to render for a background or a sprite.
type ImagePrompt struct {
	Prompt    string `json:"prompt"`
	ImageName string `json:"image_name"`
}

// UnmarshalJSON accepts dialogue_nodes both as a list and as an object keyed by node id. Ids and the level
// number may be given as numbers or strings.
func (t *DialogueTree) UnmarshalJSON(data []byte) error {
	type plain DialogueTree
	var aux struct {
		plain
		LevelNumber   looseInt        `json:"level_number"`
		StartNode     looseString     `json:"start_node"`
		DialogueNodes json.RawMessage `json:"dialogue_nodes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err //nolint:wrapcheck // keep json error types for callers
	}
	*t = DialogueTree(aux.plain)
	t.LevelNumber = int(aux.LevelNumber)
	t.StartNode = string(aux.StartNode)
	t.DialogueNodes = nil

	raw := bytes.TrimSpace(aux.DialogueNodes)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '{' {
		return json.Unmarshal(raw, &t.DialogueNodes) //nolint:wrapcheck // see above
	}

	var byID map[string]DialogueNode
	if err := json.Unmarshal(raw, &byID); err != nil {
		return err //nolint:wrapcheck // see above
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		node := byID[id]
		if node.ID == "" {
			node.ID = id
		}
		t.DialogueNodes = append(t.DialogueNodes, node)
	}
	return nil
}
