// Package align implements the log-wavelength alignment engine (C5):
// computing the common span across a set of spectra and padding each to
// that span so they stack into a rectangular array, per spec.md section
// 4.5.
package align

import (
	"math"
	"strings"

	"github.com/sdss-spectro/spectro-service/internal/errs"
	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

// Span is the (w0, w1, N) alignment descriptor of spec.md section 3.
type Span struct {
	W0 float64
	W1 float64
	N  int
}

func loglamOf(r *rowarray.RowArray) ([]float64, error) {
	col, ok := r.Column("loglam")
	if !ok {
		return nil, errs.New(errs.KindMalformedSpectrum, "missing required column loglam")
	}
	vals := col.Float64s()
	if len(vals) == 0 {
		return nil, errs.New(errs.KindMalformedSpectrum, "empty loglam column")
	}
	return vals, nil
}

// ListSpan computes the common span across an ordered set of spectra:
// w0 = min of each spectrum's first loglam sample, w1 = max of each
// spectrum's last loglam sample. This is also exposed standalone as the
// POST /listSpan endpoint.
func ListSpan(spectra []*rowarray.RowArray) (Span, error) {
	if len(spectra) == 0 {
		return Span{}, errs.New(errs.KindParamError, "listSpan requires a non-empty spectrum list")
	}
	w0 := math.Inf(1)
	w1 := math.Inf(-1)
	for _, sp := range spectra {
		loglam, err := loglamOf(sp)
		if err != nil {
			return Span{}, err
		}
		if loglam[0] < w0 {
			w0 = loglam[0]
		}
		if loglam[len(loglam)-1] > w1 {
			w1 = loglam[len(loglam)-1]
		}
	}
	return Span{W0: w0, W1: w1, N: len(spectra)}, nil
}

func dispersionOf(loglam []float64) float64 {
	return (loglam[len(loglam)-1] - loglam[0]) / float64(len(loglam))
}

// Aligned is the rectangular result of Align: N rows of identical length
// L, one column set shared across the stack.
type Aligned struct {
	N       int
	L       int
	Columns []rowarray.Column // each column's Data has length N*L*elemSize
}

// Align pads each spectrum on both sides in log-wavelength space so that
// all rows share the span (w0, w1) and an identical length L, then
// stacks them. L is derived from the minimum per-spectrum dispersion
// across the set (spec.md testable property 3:
// L = 1 + round((w1-w0)/min_disp)); each row's own dispersion still
// governs how its samples are distributed between left and right
// padding, with the right pad absorbing whatever remainder is needed to
// reach the shared L exactly -- this is the tie-break the "disp may
// differ slightly between rows" note in spec.md section 4.5 requires,
// since naive per-row lpad+native+rpad sums would not otherwise agree.
func Align(spectra []*rowarray.RowArray, span Span) (*Aligned, error) {
	if len(spectra) == 0 {
		return nil, errs.New(errs.KindParamError, "align requires a non-empty spectrum list")
	}

	type rowInfo struct {
		loglam   []float64
		disp     float64
		lpad     int
		nativeLn int
	}
	infos := make([]rowInfo, len(spectra))
	minDisp := math.Inf(1)
	for i, sp := range spectra {
		loglam, err := loglamOf(sp)
		if err != nil {
			return nil, err
		}
		disp := dispersionOf(loglam)
		lpad := int(math.RoundToEven(math.Max((loglam[0]-span.W0)/disp, 0)))
		infos[i] = rowInfo{loglam: loglam, disp: disp, lpad: lpad, nativeLn: len(loglam)}
		if disp < minDisp {
			minDisp = disp
		}
	}

	l := 1 + int(math.RoundToEven((span.W1-span.W0)/minDisp))
	if l < 1 {
		l = 1
	}

	// Collect the set of column names from the first spectrum; all
	// spectra in a set are expected to share the same schema.
	names := make([]string, 0, len(spectra[0].Columns))
	for _, c := range spectra[0].Columns {
		names = append(names, c.Name)
	}

	out := &Aligned{N: len(spectra), L: l}
	for _, name := range names {
		data := make([]float64, len(spectra)*l)
		isLoglam := strings.EqualFold(name, "loglam")
		for i, sp := range spectra {
			info := infos[i]
			rowOut := data[i*l : (i+1)*l]
			if isLoglam {
				writeRamp(rowOut, span.W0, span.W1)
				continue
			}
			col, ok := sp.Column(name)
			if !ok {
				return nil, errs.New(errs.KindMalformedSpectrum, "spectrum %d missing column %s", i, name)
			}
			src := col.Float64s()
			pos := 0
			for j := 0; j < info.lpad && pos < l; j++ {
				rowOut[pos] = 0
				pos++
			}
			for j := 0; j < len(src) && pos < l; j++ {
				rowOut[pos] = src[j]
				pos++
			}
			for ; pos < l; pos++ {
				rowOut[pos] = 0
			}
		}
		out.Columns = append(out.Columns, rowarray.NewFloat64Column(name, data))
	}
	return out, nil
}

// Select drops every column not named in names, preserving order and
// the shared (N, L) shape. Used for getSpec's post-align `values`
// column sub-selection (DESIGN.md's Open Question 1 resolution).
func (a *Aligned) Select(names []string) (*Aligned, error) {
	out := &Aligned{N: a.N, L: a.L}
	for _, name := range names {
		found := false
		for _, c := range a.Columns {
			if strings.EqualFold(c.Name, name) {
				out.Columns = append(out.Columns, c)
				found = true
				break
			}
		}
		if !found {
			return nil, errs.New(errs.KindParamError, "unknown column %q", name)
		}
	}
	return out, nil
}

// RowArray flattens the (N, L) stack into the wire framing's single
// Rows dimension: each column's data is N*L elements in row-major order.
// The N/L split itself travels out-of-band (the getSpec response's
// X-Spectro-N/X-Spectro-L headers), since the row-array framing has no
// native concept of a second dimension.
func (a *Aligned) RowArray() *rowarray.RowArray {
	return &rowarray.RowArray{Rows: a.N * a.L, Columns: a.Columns}
}

// writeRamp fills row with a uniform linear ramp from w0 to w1 inclusive.
func writeRamp(row []float64, w0, w1 float64) {
	n := len(row)
	if n == 1 {
		row[0] = w0
		return
	}
	step := (w1 - w0) / float64(n-1)
	for i := range row {
		row[i] = w0 + float64(i)*step
	}
	row[n-1] = w1
}

