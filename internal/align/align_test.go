package align

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

func makeSpectrum(loglam0, loglam1 float64, n int) *rowarray.RowArray {
	loglam := make([]float64, n)
	flux := make([]float32, n)
	step := (loglam1 - loglam0) / float64(n-1)
	for i := range loglam {
		loglam[i] = loglam0 + float64(i)*step
		flux[i] = float32(i)
	}
	return &rowarray.RowArray{
		Rows: n,
		Columns: []rowarray.Column{
			rowarray.NewFloat64Column("loglam", loglam),
			rowarray.NewFloat32Column("flux", flux),
		},
	}
}

func TestListSpanScenarioS4(t *testing.T) {
	spectra := []*rowarray.RowArray{
		makeSpectrum(3.55, 3.95, 400),
		makeSpectrum(3.56, 3.96, 400),
	}
	span, err := ListSpan(spectra)
	require.NoError(t, err)
	require.InDelta(t, 3.55, span.W0, 1e-9)
	require.InDelta(t, 3.96, span.W1, 1e-9)
	require.Equal(t, 2, span.N)
}

func TestAlignRowsShareLengthAndSpan(t *testing.T) {
	spectra := []*rowarray.RowArray{
		makeSpectrum(3.55, 3.95, 400),
		makeSpectrum(3.56, 3.96, 400),
	}
	span, err := ListSpan(spectra)
	require.NoError(t, err)

	aligned, err := Align(spectra, span)
	require.NoError(t, err)
	require.Equal(t, 2, aligned.N)

	loglamCol, ok := aligned.columnByName("loglam")
	require.True(t, ok)
	vals := loglamCol.Float64s()
	for row := 0; row < aligned.N; row++ {
		rowVals := vals[row*aligned.L : (row+1)*aligned.L]
		require.InDelta(t, span.W0, rowVals[0], 1e-9)
		require.InDelta(t, span.W1, rowVals[len(rowVals)-1], 1e-9)
	}
}

func TestAlignPassThroughWhenSpanMatches(t *testing.T) {
	sp := makeSpectrum(3.5, 3.9, 100)
	span, err := ListSpan([]*rowarray.RowArray{sp})
	require.NoError(t, err)
	aligned, err := Align([]*rowarray.RowArray{sp}, span)
	require.NoError(t, err)
	// lpad is 0, so the 100 native samples are copied unshifted; with
	// disp = span/100, L = 1 + round(span/disp) = 101, leaving one
	// trailing zero-padded sample.
	require.Equal(t, 101, aligned.L)
}

func TestListSpanRejectsMissingLoglam(t *testing.T) {
	bad := &rowarray.RowArray{Rows: 1, Columns: []rowarray.Column{rowarray.NewFloat32Column("flux", []float32{1})}}
	_, err := ListSpan([]*rowarray.RowArray{bad})
	require.Error(t, err)
}

func TestListSpanRejectsEmptyList(t *testing.T) {
	_, err := ListSpan(nil)
	require.Error(t, err)
}

func TestWriteRampEndpoints(t *testing.T) {
	row := make([]float64, 10)
	writeRamp(row, 1.0, 2.0)
	require.Equal(t, 1.0, row[0])
	require.Equal(t, 2.0, row[len(row)-1])
}

// columnByName is a tiny test helper exposing Aligned's internal column
// slice by name without adding a public API the production code doesn't
// otherwise need.
func (a *Aligned) columnByName(name string) (*rowarray.Column, bool) {
	for i := range a.Columns {
		if a.Columns[i].Name == name {
			return &a.Columns[i], true
		}
	}
	return nil, false
}
