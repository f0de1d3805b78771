package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZScaleConstantSampleCollapses(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = 5.0
	}
	z1, z2 := ZScale(samples, 0.25, 5)
	require.InDelta(t, 5.0, z1, 1e-9)
	require.InDelta(t, 5.0, z2, 1e-9)
}

func TestZScaleOrdersLimits(t *testing.T) {
	samples := make([]float64, 200)
	for i := range samples {
		samples[i] = float64(i)
	}
	z1, z2 := ZScale(samples, 0.25, 5)
	require.LessOrEqual(t, z1, z2)
}

func TestNewColormapUnknownRejected(t *testing.T) {
	_, err := NewColormap("not-a-real-colormap")
	require.Error(t, err)
}

func TestColormapGrayIdentity(t *testing.T) {
	cmap, err := NewColormap("gray")
	require.NoError(t, err)
	c := cmap.At(128)
	require.Equal(t, uint8(128), c.R)
	require.Equal(t, uint8(128), c.G)
	require.Equal(t, uint8(128), c.B)
}

func TestColormapViridisEndpoints(t *testing.T) {
	cmap, err := NewColormap("viridis")
	require.NoError(t, err)
	lo := cmap.At(0)
	hi := cmap.At(255)
	require.NotEqual(t, lo, hi)
}

func TestStackedImageProducesValidPNG(t *testing.T) {
	rows := [][]float64{
		{0, 1, 2, 3},
		{1, 2, 3, 4},
		{2, 3, 4, 5},
	}
	data, err := StackedImage(rows, StackedImageParams{Thickness: 2, Colormap: "gray"})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 4, img.Bounds().Dx())
	require.Equal(t, 6, img.Bounds().Dy())
}

func TestStackedImageRejectsEmpty(t *testing.T) {
	_, err := StackedImage(nil, StackedImageParams{})
	require.Error(t, err)
}

func encodeSolidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPlotGridLayout(t *testing.T) {
	a := encodeSolidPNG(t, 10, 20, color.Black)
	b := encodeSolidPNG(t, 15, 5, color.Black)
	c := encodeSolidPNG(t, 8, 8, color.Black)

	data, err := PlotGrid([][]byte{a, b, c}, 2)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// col widths: max(10,8)=10, max(15)=15 -> total width 25
	// row heights: max(10x20,15x5)=20, row2=8 -> total height 28
	require.Equal(t, 25, img.Bounds().Dx())
	require.Equal(t, 28, img.Bounds().Dy())
}
