package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/sdss-spectro/spectro-service/internal/errs"
)

// PlotGrid composes a set of already-rendered preview PNGs into a single
// white-background mosaic, per spec.md section 4.7: images are pasted
// left-to-right, top-to-bottom at their native size; column widths and
// row heights are each column's/row's max image dimension, laid out by
// cumulative sum.
func PlotGrid(pngs [][]byte, ncols int) ([]byte, error) {
	if len(pngs) == 0 {
		return nil, errs.New(errs.KindParamError, "plotGrid requires a non-empty image list")
	}
	if ncols < 1 {
		ncols = 1
	}
	nrows := (len(pngs) + ncols - 1) / ncols

	images := make([]image.Image, len(pngs))
	for i, raw := range pngs {
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, errs.Wrap(errs.KindUnsupportedFormat, err, "decoding preview image %d", i)
		}
		images[i] = img
	}

	colWidths := make([]int, ncols)
	rowHeights := make([]int, nrows)
	for i, img := range images {
		row, col := i/ncols, i%ncols
		b := img.Bounds()
		if b.Dx() > colWidths[col] {
			colWidths[col] = b.Dx()
		}
		if b.Dy() > rowHeights[row] {
			rowHeights[row] = b.Dy()
		}
	}

	colOffset := make([]int, ncols+1)
	for i := 0; i < ncols; i++ {
		colOffset[i+1] = colOffset[i] + colWidths[i]
	}
	rowOffset := make([]int, nrows+1)
	for i := 0; i < nrows; i++ {
		rowOffset[i+1] = rowOffset[i] + rowHeights[i]
	}

	canvas := image.NewRGBA(image.Rect(0, 0, colOffset[ncols], rowOffset[nrows]))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i, img := range images {
		row, col := i/ncols, i%ncols
		dst := image.Rect(colOffset[col], rowOffset[row], colOffset[col+1], rowOffset[row+1])
		draw.Draw(canvas, dst, img, image.Point{}, draw.Over)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, errs.Wrap(errs.KindUnsupportedFormat, err, "encoding plotGrid png")
	}
	return buf.Bytes(), nil
}
