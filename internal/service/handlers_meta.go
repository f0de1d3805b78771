package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sdss-spectro/spectro-service/internal/errs"
)

func (s *Service) handleRoot(r *http.Request) (apiResponse, error) {
	return textResponse(fmt.Sprintf("Hello from Spectro Service! %s\n", Version))
}

func (s *Service) handlePing(r *http.Request) (apiResponse, error) {
	return textResponse("OK")
}

func (s *Service) handleAvailable(r *http.Request) (apiResponse, error) {
	return textResponse("True")
}

// handleShutdown is a documented no-op: spec.md section 4.7 allows the
// endpoint to simply acknowledge without tearing the process down.
func (s *Service) handleShutdown(r *http.Request) (apiResponse, error) {
	return textResponse("OK")
}

func (s *Service) handleDebug(r *http.Request) (apiResponse, error) {
	if s.toggleDebug() {
		return textResponse("true")
	}
	return textResponse("false")
}

// renderTable emits rows (with header as rows[0]) in the requested
// format: "json" as an array of objects, "csv" via encoding/csv, and
// anything else ("text" or unset) as a simple aligned listing.
func renderTable(format string, rows [][]string) ([]byte, string, error) {
	if len(rows) == 0 {
		return nil, "", errs.New(errs.KindParamError, "nothing to render")
	}
	header := rows[0]
	switch strings.ToLower(format) {
	case "json":
		out := make([]map[string]string, 0, len(rows)-1)
		for _, row := range rows[1:] {
			rec := make(map[string]string, len(header))
			for i, h := range header {
				if i < len(row) {
					rec[h] = row[i]
				}
			}
			out = append(out, rec)
		}
		body, err := json.Marshal(out)
		if err != nil {
			return nil, "", errs.Wrap(errs.KindParamError, err, "encoding json response")
		}
		return body, "application/json", nil
	case "csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return nil, "", errs.Wrap(errs.KindParamError, err, "encoding csv response")
			}
		}
		w.Flush()
		return buf.Bytes(), "text/csv", nil
	default:
		var buf bytes.Buffer
		for _, row := range rows[1:] {
			fmt.Fprintln(&buf, strings.Join(row, "\t"))
		}
		return buf.Bytes(), "text/plain; charset=utf-8", nil
	}
}

func (s *Service) handleProfiles(r *http.Request) (apiResponse, error) {
	format := formValue(r, "format")
	want := formValue(r, "profile")

	names := make([]string, 0, len(s.Config.Profiles))
	for name := range s.Config.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := [][]string{{"profile", "type", "description", "host", "port"}}
	for _, name := range names {
		if want != "" && name != want {
			continue
		}
		p := s.Config.Profiles[name]
		rows = append(rows, []string{name, p.Type, p.Description, p.Host, fmt.Sprint(p.Port)})
	}
	body, ct, err := renderTable(format, rows)
	if err != nil {
		return apiResponse{}, err
	}
	return apiResponse{Status: http.StatusOK, Body: body, ContentType: ct}, nil
}

func (s *Service) handleContexts(r *http.Request) (apiResponse, error) {
	format := formValue(r, "format")
	want := formValue(r, "context")

	names := s.Registry.Names()
	sort.Strings(names)

	rows := [][]string{{"context", "release", "metadataRelease", "defaultSurvey", "catalog"}}
	for _, name := range names {
		if want != "" && name != want {
			continue
		}
		_, dctx, ok := s.Registry.Strategy(name)
		if !ok {
			continue
		}
		rows = append(rows, []string{name, dctx.Release, dctx.MetadataRelease, dctx.DefaultSurvey, dctx.Catalog})
	}
	body, ct, err := renderTable(format, rows)
	if err != nil {
		return apiResponse{}, err
	}
	return apiResponse{Status: http.StatusOK, Body: body, ContentType: ct}, nil
}

func (s *Service) handleCatalogs(r *http.Request) (apiResponse, error) {
	format := formValue(r, "format")
	want := formValue(r, "context")
	if profile := formValue(r, "profile"); profile != "" {
		if _, ok := s.Config.Profiles[profile]; !ok {
			return apiResponse{}, errs.New(errs.KindParamError, "unknown profile %q", profile)
		}
	}

	names := s.Registry.Names()
	sort.Strings(names)

	rows := [][]string{{"context", "catalog"}}
	for _, name := range names {
		if want != "" && name != want {
			continue
		}
		_, dctx, ok := s.Registry.Strategy(name)
		if !ok {
			continue
		}
		catalogs := append([]string(nil), dctx.Catalogs...)
		sort.Strings(catalogs)
		for _, c := range catalogs {
			rows = append(rows, []string{name, c})
		}
	}
	body, ct, err := renderTable(format, rows)
	if err != nil {
		return apiResponse{}, err
	}
	return apiResponse{Status: http.StatusOK, Body: body, ContentType: ct}, nil
}

// handleValidate answers spec.md scenario S6: validate?what=context&
// value=<unknown> returns "Error", a known value returns "OK". This is
// a plain text verdict, not routed through the Param-Error/Error
// wrapping the rest of the facade applies.
func (s *Service) handleValidate(r *http.Request) (apiResponse, error) {
	what := formValue(r, "what")
	value := formValue(r, "value")

	var ok bool
	switch what {
	case "context":
		_, ok = s.Config.Contexts[value]
	case "profile":
		_, ok = s.Config.Profiles[value]
	default:
		return textResponse("Error")
	}
	if ok {
		return textResponse("OK")
	}
	return textResponse("Error")
}

func (s *Service) handleQuery(r *http.Request) (apiResponse, error) {
	strategy, dctx, err := s.resolveContext(r)
	if err != nil {
		return apiResponse{}, err
	}

	var idPtr *uint64
	if raw := strings.TrimSpace(formValue(r, "id")); raw != "" {
		id, perr := parseUint64(raw)
		if perr != nil {
			return apiResponse{}, errs.Wrap(errs.KindParamError, perr, "parsing id %q", raw)
		}
		idPtr = &id
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	body, err := strategy.Query(ctx, dctx, formValue(r, "fields"), formValue(r, "catalog"), formValue(r, "cond"), idPtr)
	if err != nil {
		return apiResponse{}, err
	}
	return apiResponse{Status: http.StatusOK, Body: body, ContentType: "text/csv"}, nil
}
