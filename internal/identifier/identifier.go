// Package identifier implements the packed 64-bit spectrum identifier
// (specObjID) codec: pack/unpack of the plate/fiber/mjd/run2d bit-fields
// and the ReductionVersion encoding described in spec.md section 3-4.1.
//
// Bit layout, MSB first:
//
//	plate  63..50  14 bits
//	fiber  49..38  12 bits
//	mjd    37..24  14 bits  (stored as mjd-50000)
//	run2d  23..10  14 bits
//	index  9..0    10 bits  (always zero)
package identifier

import (
	"fmt"
	"regexp"
	"strconv"

	version "github.com/hashicorp/go-version"

	"github.com/sdss-spectro/spectro-service/internal/errs"
)

const (
	plateShift = 50
	fiberShift = 38
	mjdShift   = 24
	run2dShift = 10

	plateWidth = 14
	fiberWidth = 12
	mjdWidth   = 14
	run2dWidth = 14

	plateMax = 1<<plateWidth - 1
	fiberMax = 1<<fiberWidth - 1
	mjdMax   = 1<<mjdWidth - 1
	run2dMax = 1<<run2dWidth - 1

	mjdEpoch = 50000
)

var run2dPattern = regexp.MustCompile(`^v(\d+)_(\d+)_(\d+)$`)

// legacyToCode / codeToLegacy hold the bidirectional table for the three
// SDSS reduction versions that are spelled as plain integers rather than
// vN_M_P on the wire, per spec.md section 3 and 9: 103<->v5_1_3,
// 104<->v5_1_4, 26<->v5_0_26. These must never be silently re-spelled.
var legacyToCode = map[string]uint16{
	"103": encodeVersionParts(5, 1, 3),
	"104": encodeVersionParts(5, 1, 4),
	"26":  encodeVersionParts(5, 0, 26),
}

var codeToLegacy = map[uint16]string{
	encodeVersionParts(5, 1, 3):  "103",
	encodeVersionParts(5, 1, 4):  "104",
	encodeVersionParts(5, 0, 26): "26",
}

func encodeVersionParts(n, m, p int) uint16 {
	return uint16((n-5)*10000 + m*100 + p)
}

// Fields is the unpacked form of a SpectrumID.
type Fields struct {
	Plate int
	MJD   int
	Fiber int
	Run2d string // empty when the encoded run2d sub-value is 0
}

// Pack assembles the 64-bit identifier from its constituent fields,
// validating that each fits its bit width. run2d may be a small decimal
// integer string ("103"), a vN_M_P string, or empty (encodes to 0).
func Pack(plate, mjd, fiber int, run2d string) (uint64, error) {
	if plate <= 0 || plate > plateMax {
		return 0, errs.New(errs.KindInvalidField, "plate %d out of range 1..%d", plate, plateMax)
	}
	if fiber <= 0 || fiber > fiberMax {
		return 0, errs.New(errs.KindInvalidField, "fiber %d out of range 1..%d", fiber, fiberMax)
	}
	if mjd <= mjdEpoch {
		return 0, errs.New(errs.KindInvalidField, "mjd %d must be greater than %d", mjd, mjdEpoch)
	}
	mjdVal := mjd - mjdEpoch
	if mjdVal > mjdMax {
		return 0, errs.New(errs.KindInvalidField, "mjd-%d value %d out of range", mjdEpoch, mjdVal)
	}

	run2dVal, err := EncodeRun2d(run2d)
	if err != nil {
		return 0, err
	}

	id := (uint64(plate) << plateShift) |
		(uint64(fiber) << fiberShift) |
		(uint64(mjdVal) << mjdShift) |
		(uint64(run2dVal) << run2dShift)
	return id, nil
}

// Unpack inverts Pack, returning the canonical spelling of run2d (the
// three legacy codes come back as their decimal string, never vN_M_P).
func Unpack(id uint64) Fields {
	plate := int((id >> plateShift) & plateMax)
	fiber := int((id >> fiberShift) & fiberMax)
	mjd := int((id>>mjdShift)&mjdMax) + mjdEpoch
	run2dVal := uint16((id >> run2dShift) & run2dMax)

	return Fields{
		Plate: plate,
		MJD:   mjd,
		Fiber: fiber,
		Run2d: DecodeRun2d(run2dVal),
	}
}

// EncodeRun2d converts a run2d spelling (decimal integer, vN_M_P string,
// or empty) into its 14-bit encoded value.
func EncodeRun2d(run2d string) (uint16, error) {
	if run2d == "" {
		return 0, nil
	}
	if code, ok := legacyToCode[run2d]; ok {
		return code, nil
	}
	if n, err := strconv.Atoi(run2d); err == nil {
		if n < 0 || n > run2dMax {
			return 0, errs.New(errs.KindInvalidField, "run2d integer %d out of range", n)
		}
		return uint16(n), nil
	}
	m := run2dPattern.FindStringSubmatch(run2d)
	if m == nil {
		return 0, errs.New(errs.KindInvalidField, "malformed run2d %q", run2d)
	}
	n, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	p, _ := strconv.Atoi(m[3])
	if n < 5 || n > 6 {
		return 0, errs.New(errs.KindInvalidField, "run2d major version %d out of range 5..6", n)
	}
	if mm < 0 || mm > 99 || p < 0 || p > 99 {
		return 0, errs.New(errs.KindInvalidField, "run2d minor/patch out of range in %q", run2d)
	}
	return encodeVersionParts(n, mm, p), nil
}

// DecodeRun2d is the inverse of EncodeRun2d. A zero sub-value decodes to
// the empty string.
func DecodeRun2d(code uint16) string {
	if code == 0 {
		return ""
	}
	if legacy, ok := codeToLegacy[code]; ok {
		return legacy
	}
	n := int(code)/10000 + 5
	m := (int(code) % 10000) / 100
	p := int(code) % 100
	return fmt.Sprintf("v%d_%d_%d", n, m, p)
}

// CompareRun2d orders two run2d spellings by their encoded reduction
// version. It parses each through go-version's Version type (vN_M_P
// reads cleanly as a 3-component semantic version). The dataset
// adapter's file locator does not call it: it tries permitted run2d
// codes in their declared order.
func CompareRun2d(a, b string) (int, error) {
	va, err := toSemver(a)
	if err != nil {
		return 0, err
	}
	vb, err := toSemver(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

func toSemver(run2d string) (*version.Version, error) {
	code, err := EncodeRun2d(run2d)
	if err != nil {
		return nil, err
	}
	n := int(code)/10000 + 5
	m := (int(code) % 10000) / 100
	p := int(code) % 100
	return version.NewVersion(fmt.Sprintf("%d.%d.%d", n, m, p))
}
