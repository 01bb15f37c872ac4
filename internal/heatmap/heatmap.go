package heatmap

import (
	"errors"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/HugoSmits86/nativewebp"
	"github.com/suturelab/tissuesim/internal/tissue"
	"golang.org/x/image/draw"
)

var ErrLevelCount = errors.New("damage levels do not match resolution")

var (
	restTone    = color.NRGBA{R: 236, G: 194, B: 172, A: 255}
	bruisedTone = color.NRGBA{R: 122, G: 8, B: 24, A: 255}
)

// Project collapses per-node damage onto the X/Z plane, keeping the peak
// over Y. The result is nx*nz values indexed x + nx*z.
func Project(levels []float64, res tissue.GridResolution) ([]float64, error) {
	if len(levels) != res.Count() {
		return nil, ErrLevelCount
	}
	out := make([]float64, res.X*res.Z)
	for z := 0; z < res.Z; z++ {
		for y := 0; y < res.Y; y++ {
			for x := 0; x < res.X; x++ {
				l := levels[x+res.X*(y+res.Y*z)]
				if i := x + res.X*z; l > out[i] {
					out[i] = l
				}
			}
		}
	}
	return out, nil
}

// Tone maps damage in [0, maxDamage] from the resting skin tone to bruised red.
func Tone(level, maxDamage float64) color.NRGBA {
	t := 0.0
	if maxDamage > 0 {
		t = math.Max(0, math.Min(1, level/maxDamage))
	}
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return color.NRGBA{
		R: lerp(restTone.R, bruisedTone.R),
		G: lerp(restTone.G, bruisedTone.G),
		B: lerp(restTone.B, bruisedTone.B),
		A: 255,
	}
}

// Render draws the projected damage map with one pixel per lattice column.
func Render(levels []float64, res tissue.GridResolution, maxDamage float64) (*image.NRGBA, error) {
	proj, err := Project(levels, res)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, res.X, res.Z))
	for z := 0; z < res.Z; z++ {
		for x := 0; x < res.X; x++ {
			img.SetNRGBA(x, z, Tone(proj[x+res.X*z], maxDamage))
		}
	}
	return img, nil
}

// Scale fits img into a size*size canvas, preserving aspect, with CatmullRom.
func Scale(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	sc := float64(size) / float64(max(b.Dx(), b.Dy()))
	dstW := max(1, int(float64(b.Dx())*sc))
	dstH := max(1, int(float64(b.Dy())*sc))

	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	offX := (size - dstW) / 2
	offY := (size - dstH) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(offX, offY, offX+dstW, offY+dstH), img, b, draw.Src, nil)
	return canvas
}

// Encode writes a size*size WebP of the damage map to w.
func Encode(w io.Writer, levels []float64, res tissue.GridResolution, maxDamage float64, size int) error {
	img, err := Render(levels, res, maxDamage)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = 256
	}
	return nativewebp.Encode(w, Scale(img, size), nil)
}
