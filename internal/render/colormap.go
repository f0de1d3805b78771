package render

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/sdss-spectro/spectro-service/internal/errs"
)

// Colormap maps an 8-bit gray value to a display color. "gray" needs no
// table; named colormaps interpolate a short list of fixed control
// points in perceptually-uniform Lab space, the same approach
// go-colorful's own README demonstrates for building custom gradients.
type Colormap struct {
	name  string
	stops []colorful.Color
}

var namedColormaps = map[string][]string{
	"viridis": {"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"},
	"inferno": {"#000004", "#420a68", "#932667", "#dd513a", "#fca50a", "#fcffa4"},
}

// NewColormap resolves a colormap by name. "gray" is always valid.
func NewColormap(name string) (*Colormap, error) {
	if name == "" || name == "gray" {
		return &Colormap{name: "gray"}, nil
	}
	hexes, ok := namedColormaps[name]
	if !ok {
		return nil, errs.New(errs.KindInvalidField, "unknown colormap %q", name)
	}
	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidField, err, "parsing colormap stop %q", h)
		}
		stops[i] = c
	}
	return &Colormap{name: name, stops: stops}, nil
}

// At maps an 8-bit intensity (0-255) to its display color.
func (c *Colormap) At(v uint8) color.RGBA {
	if c.name == "gray" || len(c.stops) == 0 {
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}
	t := float64(v) / 255
	segment := t * float64(len(c.stops)-1)
	i := int(segment)
	if i >= len(c.stops)-1 {
		i = len(c.stops) - 2
	}
	frac := segment - float64(i)
	blended := c.stops[i].BlendLab(c.stops[i+1], frac)
	r, g, b := blended.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
