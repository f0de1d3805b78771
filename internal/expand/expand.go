// Package expand implements the ID expansion engine (C3): parsing the
// wire-string form of an identifier list and turning it into a flat,
// order-preserving list of concrete identifiers, dispatching any
// wildcarded tuple through the dataset adapter's expandID. See spec.md
// section 4.3.
package expand

import (
	"context"
	"strconv"
	"strings"

	"github.com/sdss-spectro/spectro-service/internal/dataset"
	"github.com/sdss-spectro/spectro-service/internal/errs"
)

// TokenKind discriminates the three shapes an input identifier token can
// take once parsed.
type TokenKind int

const (
	TokenPacked TokenKind = iota
	TokenTuple
	TokenWildcard
)

// Token is the sum type spec.md section 9 asks for: Packed(u64) |
// Tuple(Concrete5) | Wildcard(WildcardTuple).
type Token struct {
	Kind     TokenKind
	Packed   uint64
	Tuple    dataset.Concrete5
	Wildcard dataset.WildcardTuple
}

// Parse tokenizes the wire string form of an identifier list per
// spec.md section 4.3: strip an optional outer "[ ]", split on
// whitespace if any tuple is present, otherwise on commas; decode an
// all-digits token list directly as packed ids.
func Parse(s string) ([]Token, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errs.New(errs.KindParamError, "empty identifier list")
	}

	hasParen := strings.Contains(s, "(")

	var rawTokens []string
	if hasParen {
		rawTokens = splitTuplesByWhitespace(s)
	} else {
		rawTokens = splitTopLevel(s, ',')
		for i := range rawTokens {
			rawTokens[i] = strings.Trim(strings.TrimSpace(rawTokens[i]), `"'`)
		}
	}

	if !hasParen && allDigits(rawTokens) {
		tokens := make([]Token, 0, len(rawTokens))
		for _, t := range rawTokens {
			id, err := strconv.ParseUint(t, 10, 64)
			if err != nil {
				return nil, errs.Wrap(errs.KindParamError, err, "parsing packed id %q", t)
			}
			tokens = append(tokens, Token{Kind: TokenPacked, Packed: id})
		}
		return tokens, nil
	}

	tokens := make([]Token, 0, len(rawTokens))
	for _, raw := range rawTokens {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "(") {
			tok, err := parseTuple(raw)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			continue
		}
		if !allDigits([]string{raw}) {
			return nil, errs.New(errs.KindParamError, "unrecognized identifier token %q", raw)
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, errs.Wrap(errs.KindParamError, err, "parsing packed id %q", raw)
		}
		tokens = append(tokens, Token{Kind: TokenPacked, Packed: id})
	}
	return tokens, nil
}

func allDigits(tokens []string) bool {
	for _, t := range tokens {
		if t == "" {
			return false
		}
		for _, r := range t {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// splitTuplesByWhitespace normalizes the compact "(...),(...)"  spelling
// to whitespace-separated tuples before splitting, so both "(a) (b)" and
// "(a),(b)" are accepted.
func splitTuplesByWhitespace(s string) []string {
	s = strings.ReplaceAll(s, "),(", ") (")
	s = strings.ReplaceAll(s, "), (", ") (")
	return strings.Fields(s)
}

// splitTopLevel splits s on sep, ignoring occurrences inside [ ] or ( )
// nesting, so a field's own comma-separated sub-list (spec.md section 3:
// "any positional field may be ... a comma-separated sub-list") can be
// written bracketed, e.g. "(1963,[1,2,3],*,*)", without being mistaken
// for additional top-level tuple fields.
func splitTopLevel(s string, sep rune) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// parseTuple parses a single "(...)" token into either a literal
// concrete tuple or, if any field carries a wildcard/list/range, a
// WildcardTuple token to dispatch through expandID.
func parseTuple(raw string) (Token, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
	fields := splitTopLevel(inner, ',')
	for i := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(fields[i]), `"'`)
	}
	// Pad to 4 positional fields (plate, mjd, fiber, run2d); survey is a
	// 5th, optional field that defaults later at the dataset layer when
	// absent.
	for len(fields) < 4 {
		fields = append(fields, "*")
	}

	plate, plateWild, err := parseIntField("plate", fields[0])
	if err != nil {
		return Token{}, err
	}
	mjd, mjdWild, err := parseIntField("mjd", fields[1])
	if err != nil {
		return Token{}, err
	}
	fiber, fiberWild, err := parseFiberField(fields[2])
	if err != nil {
		return Token{}, err
	}
	run2d, run2dWild := parseStrField(fields[3])
	survey := dataset.StrField{Any: true}
	surveyWild := false
	if len(fields) >= 5 {
		survey, surveyWild = parseStrField(fields[4])
	}

	if plateWild || mjdWild || fiberWild || run2dWild || surveyWild {
		return Token{Kind: TokenWildcard, Wildcard: dataset.WildcardTuple{
			Plate: plate, MJD: mjd, Fiber: fiber, Run2d: run2d, Survey: survey,
		}}, nil
	}

	surveyVal := ""
	if len(survey.Values) == 1 {
		surveyVal = survey.Values[0]
	}
	return Token{Kind: TokenTuple, Tuple: dataset.Concrete5{
		Plate: plate.Values[0], MJD: mjd.Values[0], Fiber: fiber.Values[0],
		Run2d: firstOrEmpty(run2d.Values), Survey: surveyVal,
	}}, nil
}

func firstOrEmpty(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// parseIntField parses a plate or mjd field. spec.md section 3 scopes
// range syntax ("a-b" / "a:b") to fiber only, so a range-shaped plate or
// mjd field is rejected rather than silently accepted as a BETWEEN
// clause.
func parseIntField(name, raw string) (dataset.IntField, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "*" || raw == "" {
		return dataset.IntField{Any: true}, true, nil
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		raw = raw[1 : len(raw)-1]
	}
	if _, _, ok := parseRange(raw); ok {
		return dataset.IntField{}, false, errs.New(errs.KindInvalidField, "range syntax %q is only valid on fiber, not %s", raw, name)
	}
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return dataset.IntField{}, false, errs.Wrap(errs.KindInvalidField, err, "parsing %s field %q", name, raw)
		}
		values = append(values, n)
	}
	return dataset.IntField{Values: values}, len(values) != 1, nil
}

// parseFiberField parses a fiber field, the one positional field spec.md
// allows a range on.
func parseFiberField(raw string) (dataset.IntField, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "*" || raw == "" {
		return dataset.IntField{Any: true}, true, nil
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		raw = raw[1 : len(raw)-1]
	}
	if lo, hi, ok := parseRange(raw); ok {
		return dataset.IntField{HasRange: true, Lo: lo, Hi: hi}, true, nil
	}
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return dataset.IntField{}, false, errs.Wrap(errs.KindInvalidField, err, "parsing fiber field %q", raw)
		}
		values = append(values, n)
	}
	return dataset.IntField{Values: values}, len(values) != 1, nil
}

func parseRange(raw string) (int, int, bool) {
	for _, sep := range []string{"-", ":"} {
		if idx := strings.Index(raw[1:], sep); idx >= 0 {
			loStr, hiStr := raw[:idx+1], raw[idx+2:]
			lo, err1 := strconv.Atoi(strings.TrimSpace(loStr))
			hi, err2 := strconv.Atoi(strings.TrimSpace(hiStr))
			if err1 == nil && err2 == nil {
				return lo, hi, true
			}
		}
	}
	return 0, 0, false
}

func parseStrField(raw string) (dataset.StrField, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "*" || raw == "" {
		return dataset.StrField{Any: true}, true
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		raw = raw[1 : len(raw)-1]
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		values = append(values, strings.TrimSpace(p))
	}
	return dataset.StrField{Values: values}, len(values) != 1
}

// Expand walks parsed tokens in order, dispatching any WildcardTuple
// through the dataset strategy's ExpandID and splicing its results in
// place, so the returned list preserves input order exactly as spec.md
// section 4.3's ordering guarantee requires.
func Expand(ctx context.Context, strategy *dataset.SDSSStrategy, dctx *dataset.Context, tokens []Token) ([]dataset.IDRef, error) {
	out := make([]dataset.IDRef, 0, len(tokens))
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenPacked:
			out = append(out, dataset.IDRef{HasPacked: true, Packed: tok.Packed})
		case TokenTuple:
			out = append(out, dataset.IDRef{Concrete: tok.Tuple})
		case TokenWildcard:
			matches, err := strategy.ExpandID(ctx, dctx, tok.Wildcard)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				out = append(out, dataset.IDRef{Concrete: m})
			}
		}
	}
	return out, nil
}
