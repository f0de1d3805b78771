package align

import (
	"math"

	"github.com/sdss-spectro/spectro-service/internal/errs"
	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

// AlignColumn pads a single named column (typically flux) to the common
// span, the same lpad/rpad computation Align uses for every column, but
// without materializing the rest of the row-array -- spec.md section
// 4.6: the waterfall renderer "pad[s] the flux column only (not the
// full row-array)".
func AlignColumn(spectra []*rowarray.RowArray, span Span, column string) ([][]float64, error) {
	if len(spectra) == 0 {
		return nil, errs.New(errs.KindParamError, "alignColumn requires a non-empty spectrum list")
	}

	minDisp := math.Inf(1)
	type rowInfo struct {
		lpad int
		src  []float64
	}
	infos := make([]rowInfo, len(spectra))
	for i, sp := range spectra {
		loglam, err := loglamOf(sp)
		if err != nil {
			return nil, err
		}
		col, ok := sp.Column(column)
		if !ok {
			return nil, errs.New(errs.KindMalformedSpectrum, "spectrum %d missing column %s", i, column)
		}
		disp := dispersionOf(loglam)
		lpad := int(math.RoundToEven(math.Max((loglam[0]-span.W0)/disp, 0)))
		infos[i] = rowInfo{lpad: lpad, src: col.Float64s()}
		if disp < minDisp {
			minDisp = disp
		}
	}

	l := 1 + int(math.RoundToEven((span.W1-span.W0)/minDisp))
	if l < 1 {
		l = 1
	}

	out := make([][]float64, len(spectra))
	for i, info := range infos {
		row := make([]float64, l)
		pos := 0
		for j := 0; j < info.lpad && pos < l; j++ {
			pos++
		}
		for j := 0; j < len(info.src) && pos < l; j++ {
			row[pos] = info.src[j]
			pos++
		}
		out[i] = row
	}
	return out, nil
}
