package service

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sdss-spectro/spectro-service/internal/dataset"
	"github.com/sdss-spectro/spectro-service/internal/errs"
)

// apiResponse is a handler's successful result: a status, a body, its
// content type, and any extra response headers (used by getSpec's
// aligned-shape metadata).
type apiResponse struct {
	Status      int
	Body        []byte
	ContentType string
	Headers     http.Header
}

func textResponse(body string) (apiResponse, error) {
	return apiResponse{Status: http.StatusOK, Body: []byte(body), ContentType: "text/plain; charset=utf-8"}, nil
}

// timed wraps a handler with a metrics observation and the catch-all
// typed-error-to-text-response conversion spec.md section 4.7's failure
// semantics describe: every endpoint returns 200 with a "Param Error:"
// or "Error:" body rather than propagating the error as a 5xx status.
// Every error is also logged once, via the Service's process-wide
// logger, before the observation is recorded.
func (s *Service) timed(endpoint string, fn func(*http.Request) (apiResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp, err := fn(r)
		errKind := ""
		if err != nil {
			errKind = string(errs.KindOf(err))
			prefix := "Error: "
			if errs.IsParamError(err) {
				prefix = "Param Error: "
			}
			s.logger().Printf("%s: %s%s", endpoint, prefix, err.Error())
			resp = apiResponse{Status: http.StatusOK, Body: []byte(prefix + err.Error()), ContentType: "text/plain; charset=utf-8"}
		}
		s.Metrics.Observe(endpoint, start, errKind)
		for k, vs := range resp.Headers {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		if resp.Status == 0 {
			resp.Status = http.StatusOK
		}
		w.WriteHeader(resp.Status)
		w.Write(resp.Body)
	}
}

// formValue reads a field from either the query string (GET) or the
// parsed form body (POST), after ensuring ParseForm has run.
func formValue(r *http.Request, name string) string {
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.FormValue(name)
}

func boolParam(r *http.Request, name string, def bool) bool {
	v := strings.TrimSpace(formValue(r, name))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func floatParam(r *http.Request, name string, def float64) float64 {
	v := strings.TrimSpace(formValue(r, name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}

func intParam(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(formValue(r, name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// resolveContext picks the named dataset context (defaulting to the
// first alphabetically when unspecified is not allowed by spec.md, so
// an empty context name is a ParamError instead of a silent guess).
func (s *Service) resolveContext(r *http.Request) (*dataset.SDSSStrategy, *dataset.Context, error) {
	name := formValue(r, "context")
	if name == "" {
		return nil, nil, errs.New(errs.KindParamError, "context is required")
	}
	profile := formValue(r, "profile")
	if profile != "" {
		if _, ok := s.Config.Profiles[profile]; !ok {
			return nil, nil, errs.New(errs.KindParamError, "unknown profile %q", profile)
		}
	}
	strategy, dctx, ok := s.Registry.Strategy(name)
	if !ok {
		return nil, nil, errs.New(errs.KindParamError, "unknown context %q", name)
	}
	return strategy, dctx, nil
}

// requestContext derives a bounded context from the incoming request,
// honoring X-DL-TimeoutRequest if the client supplied one (spec.md
// section 5's cancellation model) else the catalog client's own
// DefaultTimeoutSeconds.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	secs := dataset.DefaultTimeoutSeconds
	if h := r.Header.Get("X-DL-TimeoutRequest"); h != "" {
		if n, err := strconv.Atoi(h); err == nil && n > 0 {
			secs = n
		}
	}
	return context.WithTimeout(r.Context(), time.Duration(secs)*time.Second)
}
