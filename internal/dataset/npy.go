package dataset

import (
	"encoding/binary"
	"os"
	"regexp"
	"strconv"

	"github.com/edsrzf/mmap-go"

	"github.com/sdss-spectro/spectro-service/internal/errs"
	"github.com/sdss-spectro/spectro-service/internal/rowarray"
)

const npyMagic = "\x93NUMPY"

var (
	descrFieldRe = regexp.MustCompile(`\('(\w+)',\s*'([<>=|]?[a-zA-Z0-9]+)'\)`)
	shapeRe      = regexp.MustCompile(`'shape':\s*\((\d+)`)
)

type npyField struct {
	name string
	kind rowarray.DType
	size int
}

func npyDType(code string) (rowarray.DType, int, error) {
	switch code {
	case "<f4", "=f4", "f4":
		return rowarray.Float32, 4, nil
	case "<f8", "=f8", "f8":
		return rowarray.Float64, 8, nil
	case "<i4", "=i4", "i4", "<u4", "=u4", "u4":
		return rowarray.Int32, 4, nil
	case "<i8", "=i8", "i8", "<u8", "=u8", "u8":
		return rowarray.Int64, 8, nil
	default:
		return 0, 0, errs.New(errs.KindMalformedSpectrum, "unsupported npy field dtype %q", code)
	}
}

// readNpy memory-maps path and decodes its structured array into a
// RowArray. The cached spectra files spec.md section 3 describes are
// numpy structured arrays (one record per sample, fields interleaved
// row-major), not column-major, so decoding de-interleaves them into
// rowarray's column-major layout.
func readNpy(path string) (*rowarray.RowArray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, err, "opening npy file %s", path)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnsupportedFormat, err, "mmap %s", path)
	}
	defer m.Unmap()

	data := []byte(m)
	if len(data) < 10 || string(data[:6]) != npyMagic {
		return nil, errs.New(errs.KindUnsupportedFormat, "%s is not an npy file", path)
	}
	major := data[6]
	var headerLen int
	var headerStart int
	if major == 1 {
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		headerStart = 10
	} else {
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		headerStart = 12
	}
	header := string(data[headerStart : headerStart+headerLen])
	body := data[headerStart+headerLen:]

	fieldMatches := descrFieldRe.FindAllStringSubmatch(header, -1)
	if len(fieldMatches) == 0 {
		return nil, errs.New(errs.KindUnsupportedFormat, "%s header has no structured descr", path)
	}
	fields := make([]npyField, 0, len(fieldMatches))
	itemSize := 0
	for _, m := range fieldMatches {
		kind, size, err := npyDType(m[2])
		if err != nil {
			return nil, err
		}
		fields = append(fields, npyField{name: m[1], kind: kind, size: size})
		itemSize += size
	}

	shapeMatch := shapeRe.FindStringSubmatch(header)
	if shapeMatch == nil {
		return nil, errs.New(errs.KindUnsupportedFormat, "%s header has no shape", path)
	}
	rows, err := strconv.Atoi(shapeMatch[1])
	if err != nil {
		return nil, errs.Wrap(errs.KindUnsupportedFormat, err, "parsing npy shape")
	}

	columns := make([]rowarray.Column, len(fields))
	for i, fld := range fields {
		columns[i] = rowarray.Column{Name: fld.name, Type: fld.kind, Data: make([]byte, rows*fld.size)}
	}

	offset := 0
	for row := 0; row < rows; row++ {
		for i, fld := range fields {
			src := body[offset : offset+fld.size]
			copy(columns[i].Data[row*fld.size:(row+1)*fld.size], src)
			offset += fld.size
		}
	}

	return &rowarray.RowArray{Rows: rows, Columns: columns}, nil
}
