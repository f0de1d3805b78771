// Package spectrum implements the spectrum loader (C4): turning a
// resolved identifier into its on-disk path and decoded row-array via
// the dataset adapter. See spec.md section 4.4.
package spectrum

import (
	"github.com/sdss-spectro/spectro-service/internal/dataset"
	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

// Loaded pairs a spectrum's resolved path with its decoded data.
type Loaded struct {
	ID   dataset.IDRef
	Path string
	Data *rowarray.RowArray
}

// Load resolves id's data path and decodes it. Column sub-selection is
// deliberately NOT applied here: every loaded row keeps its full column
// set so the alignment engine (C5) always has loglam to work with,
// regardless of which columns a caller ultimately asked for. The facade
// drops unrequested columns as the last step before serialization (see
// DESIGN.md's Open Question 1 resolution).
func Load(strategy *dataset.SDSSStrategy, dctx *dataset.Context, id dataset.IDRef) (*Loaded, error) {
	path, _, err := strategy.DataPath(dctx, id)
	if err != nil {
		return nil, err
	}
	data, err := strategy.GetData(dctx, id)
	if err != nil {
		return nil, err
	}
	return &Loaded{ID: id, Path: path, Data: data}, nil
}

// LoadAll loads every id in order, stopping at the first error.
func LoadAll(strategy *dataset.SDSSStrategy, dctx *dataset.Context, ids []dataset.IDRef) ([]*Loaded, error) {
	out := make([]*Loaded, 0, len(ids))
	for _, id := range ids {
		loaded, err := Load(strategy, dctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded)
	}
	return out, nil
}
