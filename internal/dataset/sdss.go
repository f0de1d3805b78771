package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sdss-spectro/spectro-service/internal/errs"
	"github.com/sdss-spectro/spectro-service/internal/identifier"
	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SDSSStrategy is the one concrete dataset family spec.md section 4.2
// describes: spectra laid out under a fixed release/survey/run2d/plate
// directory template, resolved against a permitted reduction-version
// list, with wildcard expansion and ad-hoc queries answered by the
// external catalog.
type SDSSStrategy struct {
	catalog CatalogClient
}

// NewSDSSStrategy binds a strategy to the catalog client it dispatches
// queries and expansions to.
func NewSDSSStrategy(catalog CatalogClient) *SDSSStrategy {
	return &SDSSStrategy{catalog: catalog}
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// filePath builds the path template spec.md section 3 describes:
//
//	<root>/<release>/<survey>/spectro/redux/<run2d>/spectra/<plate4>/spec-<plate4>-<mjd5>-<fiber4>.<ext>
func filePath(root, release, survey, run2d string, plate, mjd, fiber int, ext string) string {
	return filepath.Join(root, release, survey, "spectro", "redux", run2d, "spectra",
		pad(plate, 4),
		fmt.Sprintf("spec-%s-%s-%s.%s", pad(plate, 4), pad(mjd, 5), pad(fiber, 4), ext))
}

// globPattern is the survey- and run2d-agnostic fallback spec.md section
// 4.2's 4-step locator falls through to: SDSS's "full" reduction tree
// mirrors every survey/run2d combination under a single "full" branch,
// searched with a wildcard survey and run2d segment.
func globPattern(root, release string, plate, mjd, fiber int, ext string) string {
	return filepath.Join(root, release, "*", "spectro", "redux", "*", "spectra", "full",
		pad(plate, 4),
		fmt.Sprintf("spec-%s-%s-%s.%s", pad(plate, 4), pad(mjd, 5), pad(fiber, 4), ext))
}

func (s *SDSSStrategy) concreteOf(ctx *Context, ref IDRef) Concrete5 {
	if !ref.HasPacked {
		return ref.Concrete
	}
	fields := identifier.Unpack(ref.Packed)
	survey := ctx.DefaultSurvey
	return Concrete5{Plate: fields.Plate, MJD: fields.MJD, Fiber: fields.Fiber, Run2d: fields.Run2d, Survey: survey}
}

// locate resolves a concrete identifier to an on-disk path under root,
// following spec.md section 4.2's four-step algorithm: (1) the pinned
// run2d if one was given, (2) each of the context's permitted run2d
// codes in declared order, (3) a survey/run2d-agnostic glob fallback,
// (4) report not-found. Callers retry across npy/fits themselves.
func (s *SDSSStrategy) locate(dctx *Context, c Concrete5, root, ext string) (string, error) {
	survey := c.Survey
	if survey == "" {
		survey = dctx.DefaultSurvey
	}

	if c.Run2d != "" {
		p := filePath(root, dctx.Release, survey, c.Run2d, c.Plate, c.MJD, c.Fiber, ext)
		if fileExists(p) {
			return p, nil
		}
	}
	for _, run2d := range dctx.PermittedRun2d {
		p := filePath(root, dctx.Release, survey, run2d, c.Plate, c.MJD, c.Fiber, ext)
		if fileExists(p) {
			return p, nil
		}
	}

	pattern := globPattern(root, dctx.Release, c.Plate, c.MJD, c.Fiber, ext)
	matches, err := filepath.Glob(pattern)
	if err == nil && len(matches) > 0 {
		return matches[0], nil
	}

	return "", errs.New(errs.KindNotFound, "no %s file found for plate=%d mjd=%d fiber=%d", ext, c.Plate, c.MJD, c.Fiber)
}

// DataPath resolves the cached-data path for an identifier, trying the
// npy cache first and falling back to the authoritative FITS file, per
// spec.md section 4.2.
func (s *SDSSStrategy) DataPath(dctx *Context, ref IDRef) (string, string, error) {
	c := s.concreteOf(dctx, ref)
	if p, err := s.locate(dctx, c, dctx.CacheRoot, "npy"); err == nil {
		return p, "npy", nil
	}
	if p, err := s.locate(dctx, c, dctx.AuthRoot, "fits"); err == nil {
		return p, "fits", nil
	}
	return "", "", errs.New(errs.KindNotFound, "no cached or authoritative spectrum found for plate=%d mjd=%d fiber=%d", c.Plate, c.MJD, c.Fiber)
}

// ResolvePath resolves an identifier to a path of the specifically
// requested format (npy/fits/png), without the npy-then-fits fallback
// DataPath applies. Used when a caller pins format explicitly, e.g.
// getSpec's format=fits raw-bytes request.
func (s *SDSSStrategy) ResolvePath(dctx *Context, ref IDRef, ext string) (string, error) {
	c := s.concreteOf(dctx, ref)
	root := dctx.CacheRoot
	if ext == "fits" {
		root = dctx.AuthRoot
	}
	return s.locate(dctx, c, root, ext)
}

// PreviewPath resolves the cached preview-image path for an identifier.
func (s *SDSSStrategy) PreviewPath(dctx *Context, ref IDRef) (string, error) {
	c := s.concreteOf(dctx, ref)
	return s.locate(dctx, c, dctx.CacheRoot, "png")
}

// GetData loads and decodes the spectrum data for an identifier,
// preferring the npy cache and falling back to FITS.
func (s *SDSSStrategy) GetData(dctx *Context, ref IDRef) (*rowarray.RowArray, error) {
	path, format, err := s.DataPath(dctx, ref)
	if err != nil {
		return nil, err
	}
	switch format {
	case "npy":
		return readNpy(path)
	case "fits":
		return readFits(path)
	default:
		return nil, errs.New(errs.KindUnsupportedFormat, "unknown spectrum format %q", format)
	}
}

// Query runs an ad-hoc SQL query (or single-id lookup) against this
// context's catalog, returning CSV bytes. fields is a comma-separated
// column projection, or "" / "all" for every column; the primary-key
// column is always included, per spec.md section 4.2.
func (s *SDSSStrategy) Query(ctx context.Context, dctx *Context, fields, catalogName, cond string, id *uint64) ([]byte, error) {
	table := catalogName
	if table == "" {
		table = dctx.Catalog
	}

	projection := "*"
	fields = strings.TrimSpace(fields)
	if fields != "" && fields != "all" {
		cols := strings.Split(fields, ",")
		hasKey := false
		for i, c := range cols {
			cols[i] = strings.TrimSpace(c)
			if strings.EqualFold(cols[i], "specobjid") {
				hasKey = true
			}
		}
		if !hasKey {
			cols = append([]string{"specobjid"}, cols...)
		}
		projection = strings.Join(cols, ",")
	}

	var where string
	switch {
	case id != nil:
		// spec.md section 9 Open Question 2: the stored specobjid primary
		// key is a signed bigint, so a WHERE clause must reinterpret the
		// unsigned packed identifier as its two's-complement signed
		// spelling. This cast is confined to this clause only -- the
		// decoded/returned identifier elsewhere in the service always
		// stays unsigned.
		where = fmt.Sprintf("WHERE specobjid = %d", int64(*id))
	case cond != "":
		upper := strings.ToUpper(strings.TrimSpace(cond))
		if strings.HasPrefix(upper, "ORDER") || strings.HasPrefix(upper, "LIMIT") {
			where = cond
		} else {
			where = "WHERE " + cond
		}
	}

	sql := fmt.Sprintf("SELECT %s FROM %s %s", projection, table, where)
	body, err := s.catalog.Query(ctx, strings.TrimSpace(sql))
	if err != nil {
		return nil, err
	}
	return retypeSpecobjidUnsigned(body)
}

// retypeSpecobjidUnsigned undoes the signed storage of specobjid: the
// catalog's own column is a signed bigint (the same reason Query's id
// lookup casts the other way, above), but every identifier elsewhere in
// the service is unsigned, and a plate's high bits routinely set the
// sign bit of the packed value. Left alone, such a row comes back as a
// negative decimal that callers treating the column as unsigned would
// misparse.
func retypeSpecobjidUnsigned(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}
	r := csv.NewReader(strings.NewReader(string(body)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, errs.Wrap(errs.KindCatalogError, err, "parsing query response")
	}
	if len(records) == 0 {
		return body, nil
	}

	col := -1
	for i, h := range records[0] {
		if strings.EqualFold(strings.TrimSpace(h), "specobjid") {
			col = i
			break
		}
	}
	if col == -1 {
		return body, nil
	}

	for _, row := range records[1:] {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		signed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		row[col] = strconv.FormatUint(uint64(signed), 10)
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, errs.Wrap(errs.KindCatalogError, err, "re-encoding query response")
	}
	return []byte(buf.String()), nil
}

// ExpandID resolves a wildcard tuple into the set of concrete 5-tuples
// it matches, by querying the catalog's specobj metadata table. At
// least one of plate or mjd must be constrained (spec.md section 4.3);
// a fully open tuple is rejected to bound the result set.
func (s *SDSSStrategy) ExpandID(ctx context.Context, dctx *Context, t WildcardTuple) ([]Concrete5, error) {
	if t.Plate.Any && t.MJD.Any {
		return nil, errs.New(errs.KindUnderconstrainedWild, "expandID requires plate or mjd to be constrained")
	}

	var clauses []string
	if c := intFieldClause("plate", t.Plate); c != "" {
		clauses = append(clauses, c)
	}
	if c := intFieldClause("mjd", t.MJD); c != "" {
		clauses = append(clauses, c)
	}
	if c := intFieldClause("fiberid", t.Fiber); c != "" {
		clauses = append(clauses, c)
	}
	if c := strFieldClause("run2d", t.Run2d); c != "" {
		clauses = append(clauses, c)
	}
	if c := strFieldClause("survey", t.Survey); c != "" {
		clauses = append(clauses, c)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	// Open Question 3: expansion always queries the release named by
	// MetadataRelease, independent of the data-serving Release, because
	// older releases' specobj tables may be missing columns this query
	// depends on.
	sql := fmt.Sprintf("SELECT plate, mjd, fiberid, run2d, survey FROM %s.specobj %s", dctx.MetadataRelease, where)

	body, err := s.catalog.Query(ctx, strings.TrimSpace(sql))
	if err != nil {
		return nil, err
	}
	return parseExpandCSV(body)
}

func intFieldClause(column string, f IntField) string {
	switch {
	case f.Any:
		return ""
	case f.HasRange:
		return fmt.Sprintf("%s BETWEEN %d AND %d", column, f.Lo, f.Hi)
	case len(f.Values) == 1:
		return fmt.Sprintf("%s = %d", column, f.Values[0])
	case len(f.Values) > 1:
		parts := make([]string, len(f.Values))
		for i, v := range f.Values {
			parts[i] = strconv.Itoa(v)
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(parts, ","))
	default:
		return ""
	}
}

func strFieldClause(column string, f StrField) string {
	switch {
	case f.Any:
		return ""
	case len(f.Values) == 1:
		return fmt.Sprintf("%s = '%s'", column, normalizeSurvey(f.Values[0]))
	case len(f.Values) > 1:
		parts := make([]string, len(f.Values))
		for i, v := range f.Values {
			parts[i] = "'" + normalizeSurvey(v) + "'"
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(parts, ","))
	default:
		return ""
	}
}

// normalizeSurvey folds every segue-family survey name to "sdss", the
// spelling the specobj table actually stores.
func normalizeSurvey(name string) string {
	if strings.HasPrefix(strings.ToLower(name), "segue") {
		return "sdss"
	}
	return name
}

func parseExpandCSV(body []byte) ([]Concrete5, error) {
	r := csv.NewReader(strings.NewReader(string(body)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, errs.Wrap(errs.KindCatalogError, err, "parsing expandID response")
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	need := []string{"plate", "mjd", "fiberid", "run2d", "survey"}
	for _, n := range need {
		if _, ok := idx[n]; !ok {
			return nil, errs.New(errs.KindCatalogError, "expandID response missing column %q", n)
		}
	}

	out := make([]Concrete5, 0, len(records)-1)
	for _, row := range records[1:] {
		plate, _ := strconv.Atoi(strings.TrimSpace(row[idx["plate"]]))
		mjd, _ := strconv.Atoi(strings.TrimSpace(row[idx["mjd"]]))
		fiber, _ := strconv.Atoi(strings.TrimSpace(row[idx["fiberid"]]))
		out = append(out, Concrete5{
			Plate:  plate,
			MJD:    mjd,
			Fiber:  fiber,
			Run2d:  strings.TrimSpace(row[idx["run2d"]]),
			Survey: strings.TrimSpace(row[idx["survey"]]),
		})
	}
	return out, nil
}
