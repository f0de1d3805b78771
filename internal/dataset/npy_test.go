package dataset

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildNpy constructs a minimal v1.0 structured-array npy file with two
// float64 fields, loglam and flux, each of length n.
func buildNpy(t *testing.T, loglam, flux []float64) []byte {
	t.Helper()
	header := "{'descr': [('loglam', '<f8'), ('flux', '<f8')], 'fortran_order': False, 'shape': (" +
		strconv.Itoa(len(loglam)) + ",), }"
	// Pad header so (10 + len(header) + 1) is a multiple of 64, terminated
	// with a newline, matching numpy's own convention.
	total := 10 + len(header) + 1
	pad := (64 - total%64) % 64
	for i := 0; i < pad; i++ {
		header += " "
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.WriteByte(1) // major
	buf.WriteByte(0) // minor
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	buf.Write(hlen[:])
	buf.WriteString(header)

	for i := range loglam {
		var b8 [8]byte
		binary.LittleEndian.PutUint64(b8[:], math.Float64bits(loglam[i]))
		buf.Write(b8[:])
		binary.LittleEndian.PutUint64(b8[:], math.Float64bits(flux[i]))
		buf.Write(b8[:])
	}
	return buf.Bytes()
}

func TestReadNpyRoundTrip(t *testing.T) {
	loglam := []float64{3.55, 3.56, 3.57}
	flux := []float64{1.0, 2.0, 3.0}
	raw := buildNpy(t, loglam, flux)

	dir := t.TempDir()
	path := filepath.Join(dir, "spec.npy")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	arr, err := readNpy(path)
	require.NoError(t, err)
	require.Equal(t, 3, arr.Rows)

	col, ok := arr.Column("loglam")
	require.True(t, ok)
	require.Equal(t, loglam, col.Float64s())

	col, ok = arr.Column("FLUX")
	require.True(t, ok)
	require.Equal(t, flux, col.Float64s())
}
