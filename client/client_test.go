package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

func TestSentinelActiveReflectsFileExistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SDC_DEBUG")
	require.False(t, sentinelActive(path))

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.True(t, sentinelActive(path))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/spec/ping", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c := New(srv.URL + "/spec")
	require.NoError(t, c.Ping(context.Background()))
}

func TestPingErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Param Error: context is required"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Ping(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "Param Error")
}

func TestGetSpecAligned(t *testing.T) {
	ra := &rowarray.RowArray{Rows: 4, Columns: []rowarray.Column{
		rowarray.NewFloat64Column("flux", []float64{1, 2, 3, 4}),
	}}
	buf, err := rowarray.EncodeBytes(ra)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/getSpec", r.URL.Path)
		w.Header().Set("X-Spectro-N", "2")
		w.Header().Set("X-Spectro-L", "2")
		w.Write(buf)
	}))
	defer srv.Close()

	c := New(srv.URL)
	specs, aligned, raw, err := c.GetSpec(context.Background(), GetSpecOptions{
		Context: "sdss", IDList: "1,2", Align: true,
	})
	require.NoError(t, err)
	require.Nil(t, specs)
	require.Nil(t, raw)
	require.NotNil(t, aligned)
	require.Equal(t, 2, aligned.N)
	require.Equal(t, 2, aligned.L)
	col, ok := aligned.Data.Column("flux")
	require.True(t, ok)
	require.Equal(t, []float64{1, 2, 3, 4}, col.Float64s())
}

func TestGetSpecUnaligned(t *testing.T) {
	ra1 := &rowarray.RowArray{Rows: 2, Columns: []rowarray.Column{rowarray.NewFloat64Column("flux", []float64{1, 2})}}
	ra2 := &rowarray.RowArray{Rows: 3, Columns: []rowarray.Column{rowarray.NewFloat64Column("flux", []float64{3, 4, 5})}}

	b1, _ := rowarray.EncodeBytes(ra1)
	b2, _ := rowarray.EncodeBytes(ra2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(append(append([]byte{}, b1...), b2...))
	}))
	defer srv.Close()

	c := New(srv.URL)
	specs, aligned, raw, err := c.GetSpec(context.Background(), GetSpecOptions{Context: "sdss", IDList: "1,2"})
	require.NoError(t, err)
	require.Nil(t, aligned)
	require.Nil(t, raw)
	require.Len(t, specs, 2)
	require.Equal(t, 2, specs[0].Data.Rows)
	require.Equal(t, 3, specs[1].Data.Rows)
}

func TestGetSpecFITS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("SIMPLE  = T raw fits bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	specs, aligned, raw, err := c.GetSpec(context.Background(), GetSpecOptions{
		Context: "sdss", IDList: "1", Format: "fits",
	})
	require.NoError(t, err)
	require.Nil(t, specs)
	require.Nil(t, aligned)
	require.NotNil(t, raw)
	require.Contains(t, string(raw.Raw), "SIMPLE")
}

func TestListSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"w0":3.55,"w1":3.97}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	w0, w1, err := c.ListSpan(context.Background(), "sdss", "1,2,3")
	require.NoError(t, err)
	require.InDelta(t, 3.55, w0, 1e-9)
	require.InDelta(t, 3.97, w1, 1e-9)
}
