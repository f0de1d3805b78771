// Package dataset implements the dataset adapter (C2): a registry of
// named dataset contexts plus the SDSS strategy that resolves
// identifiers to cached files, answers tabular metadata queries, and
// expands wildcarded tuples against the catalog. See spec.md section 4.2.
package dataset

// Concrete5 is a fully-specified identifier tuple with no wildcards:
// (plate, mjd, fiber, run2d, survey).
type Concrete5 struct {
	Plate  int
	MJD    int
	Fiber  int
	Run2d  string
	Survey string
}

// IntField is a constrained-or-wildcard field for plate/mjd/fiber.
type IntField struct {
	Any      bool
	Values   []int // set form: "1,2,3"
	HasRange bool
	Lo, Hi   int // range form: "a-b" / "a:b" (fiber only)
}

// StrField is a constrained-or-wildcard field for run2d/survey.
type StrField struct {
	Any    bool
	Values []string
}

// WildcardTuple is the intermediate representation C3 builds for any
// token it cannot resolve locally; ExpandID dispatches it against the
// catalog.
type WildcardTuple struct {
	Plate  IntField
	MJD    IntField
	Fiber  IntField
	Run2d  StrField
	Survey StrField
}

// IsWildcard reports whether t constrains anything with a list, range or
// "*", as opposed to being fully pinned to single scalar values.
func (t WildcardTuple) IsWildcard() bool {
	return t.Plate.Any || len(t.Plate.Values) != 1 || t.Plate.HasRange ||
		t.MJD.Any || len(t.MJD.Values) != 1 || t.MJD.HasRange ||
		t.Fiber.Any || len(t.Fiber.Values) != 1 || t.Fiber.HasRange ||
		t.Run2d.Any || len(t.Run2d.Values) > 1 ||
		t.Survey.Any || len(t.Survey.Values) > 1
}

// IDRef is the union of ways a single spectrum may be addressed once
// input has been decoded: a packed 64-bit identifier, or a fully
// resolved 5-tuple.
type IDRef struct {
	HasPacked bool
	Packed    uint64
	Concrete  Concrete5
}
