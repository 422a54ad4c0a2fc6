package images

import (
	"context"
	"log/slog"

	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/models"
)

const PlaceholderBackground = "placeholder_bg.png"

// defaultBackgrounds maps level numbers to their default background.
var defaultBackgrounds = map[int]string{
	1: "default_detective_office.png",
	2: "default_newsroom.png",
}

// DefaultBackground is the background used for levelNumber when none could be rendered.
func DefaultBackground(levelNumber int) models.ImageEntry {
	name, ok := defaultBackgrounds[levelNumber]
	if !ok {
		name = PlaceholderBackground
	}
	return models.ImageEntry{ImageName: name, URL: URL(name)}
}

// defaultPrompts describe the default backgrounds that can be rendered. The placeholder ships as a static file.
var defaultPrompts = []models.ImagePrompt{
	{
		ImageName: "default_detective_office.png",
		Prompt: "16-bit pixel art of a 1940s detective office: wooden desk with typewriter, dim lamp, files strewn, " +
			"venetian blinds casting shadows, noir atmosphere, limited grayscale palette, hard edges, chiaroscuro",
	},
	{
		ImageName: "default_newsroom.png",
		Prompt: "16-bit pixel art of a 1940s newspaper newsroom: rows of desks with typewriters, journalists at work, " +
			"overhead lamps, bulletin boards with headlines, sepia-toned noir style, limited palette, hard edges",
	},
}

// EnsureDefaults renders the default backgrounds missing from the asset store and returns their names.
// It stops at the first failure.
func (c *Cache) EnsureDefaults(ctx context.Context) ([]string, error) {
	var rendered []string
	for _, prompt := range defaultPrompts {
		if c.assets.Exists(prompt.ImageName) {
			continue
		}
		c.logger.LogAttrs(ctx, slog.LevelInfo, "rendering default background", slog.String("image_name", prompt.ImageName))
		if _, err := c.render(ctx, prompt, BackgroundSynthesisSize, BackgroundWidth, BackgroundHeight); err != nil {
			return rendered, errors.Wrap(err, "render default background", slog.String("image_name", prompt.ImageName))
		}
		rendered = append(rendered, prompt.ImageName)
	}
	return rendered, nil
}
