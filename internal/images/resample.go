package images

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Resample scales src to width×height with nearest-neighbour sampling, which keeps pixel art edges hard.
func Resample(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
