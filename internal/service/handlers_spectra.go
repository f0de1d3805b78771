package service

import (
	"bytes"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sdss-spectro/spectro-service/internal/align"
	"github.com/sdss-spectro/spectro-service/internal/errs"
	"github.com/sdss-spectro/spectro-service/internal/expand"
	"github.com/sdss-spectro/spectro-service/internal/rowarray"
	"github.com/sdss-spectro/spectro-service/internal/spectrum"
)

func splitValues(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "all" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// handleGetSpec is the hot path (C7 + C3 + C4 + C5): parse the id list,
// expand any wildcards, load every spectrum, optionally align them, and
// serialize the result. See spec.md section 4.7.
func (s *Service) handleGetSpec(r *http.Request) (apiResponse, error) {
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
		return apiResponse{}, errs.New(errs.KindParamError, "getSpec requires a non-empty id_list")
	}

	format := formValue(r, "format")
	if format == "" {
		format = "npy"
	}
	if format != "npy" && format != "fits" {
		return apiResponse{}, errs.New(errs.KindParamError, "unsupported format %q", format)
	}

	if format == "fits" {
		if len(ids) != 1 {
			return apiResponse{}, errs.New(errs.KindParamError, "format=fits is only supported for single-id requests")
		}
		path, err := strategy.ResolvePath(dctx, ids[0], "fits")
		if err != nil {
			return apiResponse{}, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return apiResponse{}, errs.Wrap(errs.KindNotFound, err, "reading %s", path)
		}
		return apiResponse{Status: http.StatusOK, Body: raw, ContentType: "application/octet-stream"}, nil
	}

	loaded, err := spectrum.LoadAll(strategy, dctx, ids)
	if err != nil {
		return apiResponse{}, err
	}

	values := splitValues(formValue(r, "values"))
	doAlign := boolParam(r, "align", false)

	if doAlign {
		rows := make([]*rowarray.RowArray, len(loaded))
		for i, l := range loaded {
			rows[i] = l.Data
		}
		span, err := resolveSpan(r, rows)
		if err != nil {
			return apiResponse{}, err
		}
		aligned, err := align.Align(rows, span)
		if err != nil {
			return apiResponse{}, err
		}
		if values != nil {
			aligned, err = aligned.Select(values)
			if err != nil {
				return apiResponse{}, err
			}
		}
		buf, err := rowarray.EncodeBytes(aligned.RowArray())
		if err != nil {
			return apiResponse{}, errs.Wrap(errs.KindParamError, err, "encoding aligned result")
		}
		headers := http.Header{}
		headers.Set("X-Spectro-N", strconv.Itoa(aligned.N))
		headers.Set("X-Spectro-L", strconv.Itoa(aligned.L))
		return apiResponse{Status: http.StatusOK, Body: buf, ContentType: "application/octet-stream", Headers: headers}, nil
	}

	// align=false: emit each spectrum as its own independent record,
	// concatenated in input order (spec.md's "per-spectrum
	// concatenation"); a client reads SPRA blocks off the stream until
	// EOF.
	var buf bytes.Buffer
	for _, l := range loaded {
		ra := l.Data
		if values != nil {
			selected, err := ra.Select(values)
			if err != nil {
				return apiResponse{}, errs.Wrap(errs.KindParamError, err, "selecting values")
			}
			ra = selected
		}
		if err := rowarray.Encode(&buf, ra); err != nil {
			return apiResponse{}, errs.Wrap(errs.KindParamError, err, "encoding spectrum")
		}
	}
	return apiResponse{Status: http.StatusOK, Body: buf.Bytes(), ContentType: "application/octet-stream"}, nil
}

// resolveSpan honors explicit w0/w1 (spec.md: "0/0 means compute"),
// else derives the span from the loaded set via align.ListSpan.
func resolveSpan(r *http.Request, rows []*rowarray.RowArray) (align.Span, error) {
	w0 := floatParam(r, "w0", 0)
	w1 := floatParam(r, "w1", 0)
	if w0 != 0 || w1 != 0 {
		return align.Span{W0: w0, W1: w1, N: len(rows)}, nil
	}
	return align.ListSpan(rows)
}

type listSpanResult struct {
	W0 float64 `json:"w0"`
	W1 float64 `json:"w1"`
}

// handleListSpan exposes the listSpan primitive directly: loads every
// requested spectrum and returns the common log-wavelength span.
func (s *Service) handleListSpan(r *http.Request) (apiResponse, error) {
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
	loaded, err := spectrum.LoadAll(strategy, dctx, ids)
	if err != nil {
		return apiResponse{}, err
	}
	rows := make([]*rowarray.RowArray, len(loaded))
	for i, l := range loaded {
		rows[i] = l.Data
	}
	span, err := align.ListSpan(rows)
	if err != nil {
		return apiResponse{}, err
	}
	body, err := json.Marshal(listSpanResult{W0: span.W0, W1: span.W1})
	if err != nil {
		return apiResponse{}, errs.Wrap(errs.KindParamError, err, "encoding listSpan result")
	}
	return apiResponse{Status: http.StatusOK, Body: body, ContentType: "application/json"}, nil
}
