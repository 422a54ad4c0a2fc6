package img_test

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/myrjola/noirline/cmd/cli/img"
	"github.com/myrjola/noirline/internal/ai"
	"github.com/myrjola/noirline/internal/ai/aitest"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/testhelpers"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientFor(t *testing.T, fake *aitest.Server) img.ClientFunc {
	t.Helper()
	return func() (*ai.Client, error) {
		return ai.NewClient(ai.Config{APIKey: "test", BaseURL: fake.BaseURL}, testhelpers.NewLogger(io.Discard)), nil
	}
}

func TestGenerate(t *testing.T) {
	fake := aitest.NewServer(t, nil, func(openai.ImageRequest) (image.Image, error) {
		return aitest.Checkerboard(256), nil
	})
	out := filepath.Join(t.TempDir(), "vera.png")

	cmd := img.NewGenerate(clientFor(t, fake), testhelpers.NewLogger(io.Discard))
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--kind", "sprite", "--out", out, "a", "singer"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "The image was saved as "+out+"\n", stdout.String())
	require.Len(t, fake.ImageRequests(), 1)
	assert.Equal(t, "a singer", fake.ImageRequests()[0].Prompt)

	f, err := os.Open(out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), decoded.Bounds())
}

func TestGenerate_unknownKind(t *testing.T) {
	fake := aitest.NewServer(t, nil, nil)
	cmd := img.NewGenerate(clientFor(t, fake), testhelpers.NewLogger(io.Discard))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--kind", "poster", "a prompt"})
	require.Error(t, cmd.Execute())
	assert.Empty(t, fake.ImageRequests())
}

func TestDefaults(t *testing.T) {
	fake := aitest.NewServer(t, nil, func(openai.ImageRequest) (image.Image, error) {
		return aitest.Checkerboard(512), nil
	})
	dir := t.TempDir()

	var stdout bytes.Buffer
	cmd := img.NewDefaults(clientFor(t, fake), testhelpers.NewLogger(io.Discard))
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--dir", dir})
	require.NoError(t, cmd.Execute())
	assert.Len(t, fake.ImageRequests(), 2)
	assert.FileExists(t, filepath.Join(dir, "default_detective_office.png"))
	assert.FileExists(t, filepath.Join(dir, "default_newsroom.png"))

	t.Run("existing defaults are kept", func(t *testing.T) {
		cmd := img.NewDefaults(clientFor(t, fake), testhelpers.NewLogger(io.Discard))
		cmd.SetOut(io.Discard)
		cmd.SetArgs([]string{"--dir", dir})
		require.NoError(t, cmd.Execute())
		assert.Len(t, fake.ImageRequests(), 2)
	})

	t.Run("failure is reported", func(t *testing.T) {
		fake.SetImage(func(openai.ImageRequest) (image.Image, error) {
			return nil, errors.NewSentinel("down")
		})
		cmd := img.NewDefaults(clientFor(t, fake), testhelpers.NewLogger(io.Discard))
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"--dir", t.TempDir()})
		require.Error(t, cmd.Execute())
	})
}
