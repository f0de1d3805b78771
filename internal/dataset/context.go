package dataset

// Context is a named dataset strategy configuration (spec.md section 3,
// "Dataset context"): it fixes the cached/authoritative file roots, the
// permitted reduction-version codes, and the catalog consulted for
// queries and wildcard expansion. Contexts are process-wide and
// immutable after configuration load.
type Context struct {
	Name string

	// Release is the SDSS data release this context serves data for
	// (e.g. "dr16"), used in the cached/authoritative path template.
	Release string

	// MetadataRelease is the release whose specobj table ExpandID
	// queries, independent of Release: spec.md section 9 Open Question 3
	// requires that expansion always hit the *current* release's
	// metadata table, because older releases may lack the columns the
	// expansion query depends on. This is deliberately not derived from
	// Release.
	MetadataRelease string

	// DefaultSurvey is assumed for packed identifiers, which do not
	// themselves encode a survey name.
	DefaultSurvey string

	CacheRoot string // root for cached .npy/.png files
	AuthRoot  string // root for authoritative .fits files

	// PermittedRun2d lists reduction-version codes to try, in order,
	// when a request does not pin run2d explicitly.
	PermittedRun2d []string

	// Catalog is the default table name used by Query when the caller
	// does not specify one.
	Catalog string

	// Catalogs lists the catalog names this context exposes, for the
	// /catalogs endpoint.
	Catalogs []string
}

// Registry is the process-wide, read-only map of dataset contexts,
// keyed by name -- the "runtime polymorphism by name lookup" pattern of
// spec.md section 9, modeled as a map rather than a name-based dynamic
// dispatch table.
type Registry struct {
	contexts map[string]*Context
	strategy *SDSSStrategy
}

// NewRegistry builds a registry from a set of contexts, all served by
// the single SDSS strategy variant (the only concrete dataset family
// today, per spec.md section 4.2).
func NewRegistry(contexts map[string]*Context, catalog CatalogClient) *Registry {
	return &Registry{contexts: contexts, strategy: NewSDSSStrategy(catalog)}
}

// Context returns the named dataset context.
func (r *Registry) Context(name string) (*Context, bool) {
	c, ok := r.contexts[name]
	return c, ok
}

// Names lists all registered context names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.contexts))
	for name := range r.contexts {
		names = append(names, name)
	}
	return names
}

// Strategy returns the dataset strategy implementation for the named
// context, bound to that context's configuration.
func (r *Registry) Strategy(name string) (*SDSSStrategy, *Context, bool) {
	ctx, ok := r.contexts[name]
	if !ok {
		return nil, nil, false
	}
	return r.strategy, ctx, true
}
