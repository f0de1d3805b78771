package dataset

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sdss-spectro/spectro-service/internal/errs"
	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

const fitsBlockSize = 2880
const fitsCardSize = 80

var tformRe = regexp.MustCompile(`^(\d*)([A-Za-z])`)

type fitsHeader struct {
	cards map[string]string
	end   int // byte offset immediately after this header's END block
}

// parseFITSHeader reads consecutive 2880-byte blocks starting at pos
// until an END card is seen, returning the parsed keyword cards and the
// offset of the following data section.
func parseFITSHeader(data []byte, pos int) (*fitsHeader, error) {
	h := &fitsHeader{cards: map[string]string{}}
	for {
		if pos+fitsBlockSize > len(data) {
			return nil, errs.New(errs.KindUnsupportedFormat, "truncated FITS header")
		}
		block := data[pos : pos+fitsBlockSize]
		pos += fitsBlockSize
		done := false
		for i := 0; i < fitsBlockSize; i += fitsCardSize {
			card := string(block[i : i+fitsCardSize])
			key := strings.TrimSpace(card[0:8])
			if key == "END" {
				done = true
				break
			}
			if key == "" || key == "COMMENT" || key == "HISTORY" {
				continue
			}
			if len(card) < 10 || card[8:10] != "= " {
				continue
			}
			val := card[10:]
			if slash := strings.Index(val, "/"); slash >= 0 {
				val = val[:slash]
			}
			val = strings.TrimSpace(val)
			val = strings.Trim(val, "'")
			val = strings.TrimSpace(val)
			h.cards[key] = val
		}
		if done {
			break
		}
	}
	h.end = pos
	return h, nil
}

func headerInt(h *fitsHeader, key string, def int) int {
	v, ok := h.cards[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func roundUpBlock(n int) int {
	rem := n % fitsBlockSize
	if rem == 0 {
		return n
	}
	return n + (fitsBlockSize - rem)
}

type fitsColumn struct {
	name   string
	offset int
	size   int
	repeat int
	kind   rowarray.DType
	keep   bool
}

// readFits decodes HDU 1 of an authoritative FITS spectrum file (spec.md
// section 3's "authoritative" path) into a RowArray, reading only the
// scalar numeric columns a row-array needs. HDU 1 must be a binary
// table; later HDUs are not searched.
// FITS stores binary tables in big-endian, row-major byte order with
// fixed-width 2880-byte header blocks -- no library in the dependency
// set parses FITS, so this is hand-rolled against the FITS standard
// directly.
func readFits(path string) (*rowarray.RowArray, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, err, "reading fits file %s", path)
	}

	primary, err := parseFITSHeader(data, 0)
	if err != nil {
		return nil, err
	}
	naxis := headerInt(primary, "NAXIS", 0)
	dataBytes := 0
	if naxis > 0 {
		bitpix := headerInt(primary, "BITPIX", 8)
		size := bitpix / 8
		if size < 0 {
			size = -size
		}
		for i := 1; i <= naxis; i++ {
			size *= headerInt(primary, fmt.Sprintf("NAXIS%d", i), 1)
		}
		dataBytes = size
	}
	pos := primary.end + roundUpBlock(dataBytes)

	table, err := parseFITSHeader(data, pos)
	if err != nil {
		return nil, err
	}
	xtension := table.cards["XTENSION"]
	if !strings.Contains(xtension, "BINTABLE") {
		return nil, errs.New(errs.KindUnsupportedFormat, "%s HDU1 is not a binary table (XTENSION=%q)", path, xtension)
	}

	rowBytes := headerInt(table, "NAXIS1", 0)
	rows := headerInt(table, "NAXIS2", 0)
	tfields := headerInt(table, "TFIELDS", 0)
	if rowBytes == 0 || rows == 0 || tfields == 0 {
		return nil, errs.New(errs.KindMalformedSpectrum, "%s binary table header incomplete", path)
	}

	cols := make([]fitsColumn, 0, tfields)
	offset := 0
	for i := 1; i <= tfields; i++ {
		name := strings.ToLower(table.cards[fmt.Sprintf("TTYPE%d", i)])
		form := table.cards[fmt.Sprintf("TFORM%d", i)]
		m := tformRe.FindStringSubmatch(strings.TrimSpace(form))
		if m == nil {
			return nil, errs.New(errs.KindUnsupportedFormat, "%s column %d has unparseable TFORM %q", path, i, form)
		}
		repeat := 1
		if m[1] != "" {
			repeat, _ = strconv.Atoi(m[1])
		}
		elemSize, kind, ok := fitsTypeSize(m[2])
		col := fitsColumn{name: name, offset: offset, repeat: repeat, kind: kind, keep: ok && repeat == 1}
		col.size = elemSize * repeat
		cols = append(cols, col)
		offset += col.size
	}

	tableData := data[table.end:]
	columns := make([]rowarray.Column, 0, len(cols))
	for _, c := range cols {
		if !c.keep {
			continue
		}
		out := make([]byte, rows*elemSizeOf(c.kind))
		for r := 0; r < rows; r++ {
			src := tableData[r*rowBytes+c.offset : r*rowBytes+c.offset+c.size]
			dst := out[r*elemSizeOf(c.kind) : (r+1)*elemSizeOf(c.kind)]
			copy(dst, reorderBigToLittle(src))
		}
		columns = append(columns, rowarray.Column{Name: c.name, Type: c.kind, Data: out})
	}

	return &rowarray.RowArray{Rows: rows, Columns: columns}, nil
}

func elemSizeOf(k rowarray.DType) int {
	switch k {
	case rowarray.Float32, rowarray.Int32:
		return 4
	case rowarray.Float64, rowarray.Int64:
		return 8
	default:
		return 0
	}
}

// reorderBigToLittle converts a big-endian FITS field value into the
// little-endian layout rowarray.Column stores its raw bytes in.
func reorderBigToLittle(src []byte) []byte {
	out := make([]byte, len(src))
	for i, b := range src {
		out[len(src)-1-i] = b
	}
	return out
}

func fitsTypeSize(code string) (int, rowarray.DType, bool) {
	switch code {
	case "E":
		return 4, rowarray.Float32, true
	case "D":
		return 8, rowarray.Float64, true
	case "J":
		return 4, rowarray.Int32, true
	case "K":
		return 8, rowarray.Int64, true
	case "I":
		return 2, rowarray.Int32, false // widening not worth a dedicated path; skip
	case "B", "L":
		return 1, rowarray.Int32, false
	default:
		return 0, 0, false
	}
}
