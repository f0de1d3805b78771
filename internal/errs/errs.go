// Package errs defines the typed error kinds shared across the spectro
// service. Every component that can fail returns one of these so the
// facade can render a consistent "Param Error:"/"Error:" text body.
package errs

import "fmt"

// Kind identifies the category of a service error.
type Kind string

const (
	KindInvalidField         Kind = "InvalidField"
	KindUnderconstrainedWild Kind = "UnderconstrainedWildcard"
	KindNotFound             Kind = "NotFound"
	KindUnsupportedFormat    Kind = "UnsupportedFormat"
	KindMalformedSpectrum    Kind = "MalformedSpectrum"
	KindCatalogError         Kind = "CatalogError"
	KindParamError           Kind = "ParamError"
)

// Error is a typed error carrying a Kind plus a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsParamError reports whether err should be rendered with the
// "Param Error:" prefix rather than the generic "Error:" prefix -- the
// wire-compatibility distinction spec.md's failure semantics require.
func IsParamError(err error) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	switch e.Kind {
	case KindParamError, KindInvalidField, KindUnderconstrainedWild:
		return true
	default:
		return false
	}
}

// KindOf extracts the Kind from err, defaulting to ParamError when err
// is not one of our typed errors (a defensive decoding failure).
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindParamError
}
