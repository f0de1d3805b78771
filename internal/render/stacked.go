// Package render implements the waterfall renderer (C6): stacking
// per-spectrum flux rows into a contrast-scaled, optionally colormapped
// and resized PNG, and compositing individual preview PNGs into a grid
// mosaic. See spec.md section 4.6.
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/sdss-spectro/spectro-service/internal/errs"
)

// StackedImageParams bundles the C6 rendering knobs spec.md section 4.6
// lists: stripe thickness, inversion, colormap, and the two independent
// resize strategies (relative scale factors vs. absolute pixel size).
type StackedImageParams struct {
	Thickness int
	Inverse   bool
	Colormap  string
	XScale    float64
	YScale    float64
	Width     int
	Height    int
}

// StackedImage renders rows (already padded to a common length by the
// alignment engine) into a PNG: each row is replicated Thickness times
// vertically to give the stripe visible thickness, the stack is
// contrast-scaled with ZScale, optionally colormapped, and resized.
func StackedImage(rows [][]float64, p StackedImageParams) ([]byte, error) {
	if len(rows) == 0 {
		return nil, errs.New(errs.KindParamError, "stackedImage requires a non-empty row list")
	}
	t := p.Thickness
	if t < 1 {
		t = 1
	}
	width := len(rows[0])
	height := len(rows) * t

	flat := make([]float64, 0, width*len(rows))
	for _, row := range rows {
		flat = append(flat, row...)
	}
	z1, z2 := ZScale(flat, 0.25, 5)
	denom := z2 - z1
	if denom == 0 {
		denom = 1
	}

	cmap, err := NewColormap(p.Colormap)
	if err != nil {
		return nil, err
	}

	var img image.Image
	if cmap.name == "gray" {
		gray := image.NewGray(image.Rect(0, 0, width, height))
		for r, row := range rows {
			for x, v := range row {
				b := scaleByte(v, z1, denom, p.Inverse)
				for k := 0; k < t; k++ {
					gray.SetGray(x, r*t+k, color.Gray{Y: b})
				}
			}
		}
		img = gray
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for r, row := range rows {
			for x, v := range row {
				b := scaleByte(v, z1, denom, p.Inverse)
				c := cmap.At(b)
				for k := 0; k < t; k++ {
					rgba.SetRGBA(x, r*t+k, c)
				}
			}
		}
		img = rgba
	}

	img = resize(img, p.XScale, p.YScale, p.Width, p.Height)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errs.Wrap(errs.KindUnsupportedFormat, err, "encoding stacked image png")
	}
	return buf.Bytes(), nil
}

func scaleByte(v, z1, denom float64, inverse bool) uint8 {
	scaled := math.Round(255 * (v - z1) / denom)
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 255 {
		scaled = 255
	}
	b := uint8(scaled)
	if inverse {
		b = 255 - b
	}
	return b
}

// resize applies the relative (xscale, yscale) factors if either is
// non-unit, else the absolute (width, height) if non-zero, else leaves
// img untouched -- spec.md section 4.6's precedence order.
func resize(img image.Image, xscale, yscale float64, width, height int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	targetW, targetH := w, h
	switch {
	case xscale != 0 && xscale != 1 || yscale != 0 && yscale != 1:
		if xscale == 0 {
			xscale = 1
		}
		if yscale == 0 {
			yscale = 1
		}
		targetW = int(math.Round(float64(w) * xscale))
		targetH = int(math.Round(float64(h) * yscale))
	case width != 0 || height != 0:
		if width != 0 {
			targetW = width
		}
		if height != 0 {
			targetH = height
		}
	default:
		return img
	}
	if targetW < 1 {
		targetW = 1
	}
	if targetH < 1 {
		targetH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
