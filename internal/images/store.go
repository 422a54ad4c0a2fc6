package images

import (
	"context"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/myrjola/noirline/internal/errors"
)

// URLPrefix is the URL path the static image directory is served under.
const URLPrefix = "/static/images/"

var ErrInvalidName = errors.NewSentinel("invalid image name")

// URL returns the URL path of the image called name.
func URL(name string) string {
	return URLPrefix + name
}

// DiskStore writes PNG images into a directory served as static files.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

func validName(name string) bool {
	return name != "" && name == filepath.Base(name) && !strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".png")
}

// Save encodes img as PNG into the store and returns its URL. The file appears atomically.
func (s *DiskStore) Save(_ context.Context, name string, img image.Image) (string, error) {
	if !validName(name) {
		return "", errors.Wrap(ErrInvalidName, "validate name", slog.String("name", name))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil { //nolint:mnd // rwxr-xr-x
		return "", errors.Wrap(err, "create image directory", slog.String("dir", s.dir))
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", errors.Wrap(err, "create temporary file")
	}
	defer func() {
		// Only fails when the rename below succeeded.
		_ = os.Remove(tmp.Name())
	}()
	if err = png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "encode png", slog.String("name", name))
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "close temporary file")
	}
	if err = os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", errors.Wrap(err, "move image into place", slog.String("name", name))
	}
	return URL(name), nil
}

// Exists reports whether the store holds an image called name.
func (s *DiskStore) Exists(name string) bool {
	if !validName(name) {
		return false
	}
	info, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil && info.Mode().IsRegular()
}
