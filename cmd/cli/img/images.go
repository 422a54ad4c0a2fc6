package img

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/myrjola/noirline/internal/ai"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/images"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "img",
	Title: "Image operations",
}

// ClientFunc returns the model client configured from the environment.
type ClientFunc func() (*ai.Client, error)

var errUnknownKind = errors.NewSentinel("unknown image kind")

type kind struct {
	size, width, height int
}

var kinds = map[string]kind{
	"background": {images.BackgroundSynthesisSize, images.BackgroundWidth, images.BackgroundHeight},
	"sprite":     {images.SpriteSynthesisSize, images.SpriteSize, images.SpriteSize},
}

// NewGenerate returns the command that renders a single prompt to a PNG file.
func NewGenerate(newClient ClientFunc, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gen [prompt]",
		GroupID: Group.ID,
		Short:   "Generate image",
		Long:    `Renders the prompt and downsamples it to the pixel-art size of the chosen kind.`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kindName, _ := cmd.Flags().GetString("kind")
			k, ok := kinds[kindName]
			if !ok {
				return errors.Wrap(errUnknownKind, "check kind", slog.String("kind", kindName))
			}
			outPath, _ := cmd.Flags().GetString("out")

			client, err := newClient()
			if err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			src, err := client.Synthesize(cmd.Context(), prompt, k.size)
			if err != nil {
				return errors.Wrap(err, "synthesize image")
			}
			store := images.NewDiskStore(filepath.Dir(outPath))
			if _, err = store.Save(cmd.Context(), filepath.Base(outPath), images.Resample(src, k.width, k.height)); err != nil {
				return errors.Wrap(err, "save image", slog.String("out", outPath))
			}
			logger.LogAttrs(cmd.Context(), slog.LevelDebug, "image saved", slog.String("out", outPath))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "The image was saved as %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().String("out", "./out.png", "path to generated image file")
	cmd.Flags().String("kind", "background", "image kind, background or sprite")
	return cmd
}

// NewDefaults returns the command that renders the default backgrounds missing from a directory.
func NewDefaults(newClient ClientFunc, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "defaults",
		GroupID: Group.ID,
		Short:   "Render default backgrounds",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			client, err := newClient()
			if err != nil {
				return err
			}
			cache := images.NewCache(nil, client, nil, images.NewDiskStore(dir), logger)
			rendered, err := cache.EnsureDefaults(cmd.Context())
			for _, name := range rendered {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s\n", filepath.Join(dir, name))
			}
			return errors.Wrap(err, "render defaults")
		},
	}
	cmd.Flags().String("dir", "./ui/static/images", "directory holding the default backgrounds")
	return cmd
}
