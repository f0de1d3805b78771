package spectrum

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdss-spectro/spectro-service/internal/dataset"
)

type nopCatalog struct{}

func (nopCatalog) Query(ctx context.Context, sql string) ([]byte, error) { return nil, nil }

// writeFakeNpy writes a tiny but well-formed npy file so the real
// decoder path is exercised end to end, not just mocked.
func writeFakeNpy(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	header := "{'descr': [('loglam', '<f8'), ('flux', '<f8')], 'fortran_order': False, 'shape': (2,), }"
	total := 10 + len(header) + 1
	pad := (64 - total%64) % 64
	for i := 0; i < pad; i++ {
		header += " "
	}
	header += "\n"

	buf := []byte{}
	buf = append(buf, []byte("\x93NUMPY")...)
	buf = append(buf, 1, 0)
	hlen := len(header)
	buf = append(buf, byte(hlen&0xff), byte(hlen>>8))
	buf = append(buf, []byte(header)...)
	// two rows of (loglam float64, flux float64), little-endian, zeroed.
	buf = append(buf, make([]byte, 2*16)...)

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestLoadResolvesAndDecodesCachedNpy(t *testing.T) {
	cacheRoot := t.TempDir()
	dctx := &dataset.Context{
		Name:            "sdss_dr16",
		Release:         "dr16",
		MetadataRelease: "dr16",
		DefaultSurvey:   "eboss",
		CacheRoot:       cacheRoot,
		PermittedRun2d:  []string{"v5_13_0"},
	}
	path := filepath.Join(cacheRoot, "dr16", "eboss", "spectro", "redux", "v5_13_0", "spectra", "1963", "spec-1963-54331-0019.npy")
	writeFakeNpy(t, path)

	strategy := dataset.NewSDSSStrategy(nopCatalog{})
	ref := dataset.IDRef{Concrete: dataset.Concrete5{Plate: 1963, MJD: 54331, Fiber: 19}}

	loaded, err := Load(strategy, dctx, ref)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, 2, loaded.Data.Rows)
}

func TestLoadNotFound(t *testing.T) {
	dctx := &dataset.Context{
		Name:            "sdss_dr16",
		Release:         "dr16",
		MetadataRelease: "dr16",
		DefaultSurvey:   "eboss",
		CacheRoot:       t.TempDir(),
		AuthRoot:        t.TempDir(),
		PermittedRun2d:  []string{"v5_13_0"},
	}
	strategy := dataset.NewSDSSStrategy(nopCatalog{})
	ref := dataset.IDRef{Concrete: dataset.Concrete5{Plate: 1, MJD: 1, Fiber: 1}}

	_, err := Load(strategy, dctx, ref)
	require.Error(t, err)
}
