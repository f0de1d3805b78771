package rowarray

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ra := &RowArray{
		Rows: 3,
		Columns: []Column{
			NewFloat64Column("loglam", []float64{3.55, 3.56, 3.57}),
			NewFloat32Column("flux", []float32{1.0, 2.0, 3.0}),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ra))

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, 3, got.Rows)

	loglam, ok := got.Column("LOGLAM")
	require.True(t, ok, "column lookup must be case-insensitive")
	require.Equal(t, []float64{3.55, 3.56, 3.57}, loglam.Float64s())

	flux, ok := got.Column("flux")
	require.True(t, ok)
	require.Equal(t, []float64{1, 2, 3}, flux.Float64s())
}

func TestSelect(t *testing.T) {
	ra := &RowArray{
		Rows: 2,
		Columns: []Column{
			NewFloat64Column("loglam", []float64{1, 2}),
			NewFloat32Column("flux", []float32{1, 2}),
			NewFloat32Column("sky", []float32{0, 0}),
		},
	}
	sel, err := ra.Select([]string{"flux"})
	require.NoError(t, err)
	require.Len(t, sel.Columns, 1)
	require.Equal(t, "flux", sel.Columns[0].Name)

	_, err = ra.Select([]string{"nope"})
	require.Error(t, err)
}
