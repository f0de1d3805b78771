package service

import (
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/sdss-spectro/spectro-service/internal/align"
	"github.com/sdss-spectro/spectro-service/internal/errs"
	"github.com/sdss-spectro/spectro-service/internal/expand"
	"github.com/sdss-spectro/spectro-service/internal/render"
	"github.com/sdss-spectro/spectro-service/internal/rowarray"
	"github.com/sdss-spectro/spectro-service/internal/spectrum"
)

// handlePreview resolves a single identifier's cached preview PNG and
// returns its raw bytes.
func (s *Service) handlePreview(r *http.Request) (apiResponse, error) {
	strategy, dctx, err := s.resolveContext(r)
	if err != nil {
		return apiResponse{}, err
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	tokens, err := expand.Parse(formValue(r, "id"))
	if err != nil {
		return apiResponse{}, err
	}
	ids, err := expand.Expand(ctx, strategy, dctx, tokens)
	if err != nil {
		return apiResponse{}, err
	}
	if len(ids) != 1 {
		return apiResponse{}, errs.New(errs.KindParamError, "preview requires exactly one id, got %d", len(ids))
	}

	path, err := strategy.PreviewPath(dctx, ids[0])
	if err != nil {
		return apiResponse{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return apiResponse{}, errs.Wrap(errs.KindNotFound, err, "reading %s", path)
	}
	return apiResponse{Status: http.StatusOK, Body: raw, ContentType: "image/png"}, nil
}

// handlePlotGrid fetches every id's preview PNG concurrently -- each
// fetch is independent disk I/O, so fanning out costs nothing and
// golang.org/x/sync/errgroup keeps results in input order by writing
// into a preallocated slice by index, same ordering guarantee
// spec.md section 5 requires for the non-concurrent paths -- then
// composes them into one mosaic via render.PlotGrid.
func (s *Service) handlePlotGrid(r *http.Request) (apiResponse, error) {
	strategy, dctx, err := s.resolveContext(r)
	if err != nil {
		return apiResponse{}, err
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	tokens, err := expand.Parse(formValue(r, "id_list"))
	if err != nil {
		return apiResponse{}, err
	}
	ids, err := expand.Expand(ctx, strategy, dctx, tokens)
	if err != nil {
		return apiResponse{}, err
	}
	if len(ids) == 0 {
		return apiResponse{}, errs.New(errs.KindParamError, "plotGrid requires a non-empty id_list")
	}

	pngs := make([][]byte, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := strategy.PreviewPath(dctx, id)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return errs.Wrap(errs.KindNotFound, err, "reading %s", path)
			}
			pngs[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return apiResponse{}, err
	}

	ncols := intParam(r, "ncols", 1)
	out, err := render.PlotGrid(pngs, ncols)
	if err != nil {
		return apiResponse{}, err
	}
	return apiResponse{Status: http.StatusOK, Body: out, ContentType: "image/png"}, nil
}

// handleStackedImage renders the C6 waterfall: align every requested
// spectrum's flux column to the common span, then hand the padded rows
// to render.StackedImage.
func (s *Service) handleStackedImage(r *http.Request) (apiResponse, error) {
	strategy, dctx, err := s.resolveContext(r)
	if err != nil {
		return apiResponse{}, err
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	tokens, err := expand.Parse(formValue(r, "id_list"))
	if err != nil {
		return apiResponse{}, err
	}
	ids, err := expand.Expand(ctx, strategy, dctx, tokens)
	if err != nil {
		return apiResponse{}, err
	}
	if len(ids) == 0 {
		return apiResponse{}, errs.New(errs.KindParamError, "stackedImage requires a non-empty id_list")
	}

	loaded, err := spectrum.LoadAll(strategy, dctx, ids)
	if err != nil {
		return apiResponse{}, err
	}
	rows := make([]*rowarray.RowArray, len(loaded))
	for i, l := range loaded {
		rows[i] = l.Data
	}
	span, err := resolveSpan(r, rows)
	if err != nil {
		return apiResponse{}, err
	}
	fluxRows, err := align.AlignColumn(rows, span, "flux")
	if err != nil {
		return apiResponse{}, err
	}

	params := render.StackedImageParams{
		Thickness: intParam(r, "thickness", 1),
		Inverse:   boolParam(r, "inverse", false),
		Colormap:  formValue(r, "colormap"),
		XScale:    floatParam(r, "xscale", 0),
		YScale:    floatParam(r, "yscale", 0),
		Width:     intParam(r, "width", 0),
		Height:    intParam(r, "height", 0),
	}
	out, err := render.StackedImage(fluxRows, params)
	if err != nil {
		return apiResponse{}, err
	}
	return apiResponse{Status: http.StatusOK, Body: out, ContentType: "image/png"}, nil
}
