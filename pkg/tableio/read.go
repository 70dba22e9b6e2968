// Package tableio reads and writes delimited tables.
//
// The delimiter follows the file extension (.csv or .tsv, optionally
// gzipped). Input may be in any of a handful of legacy charsets; output is
// always UTF-8 and is written atomically.
package tableio

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Options controls reading.
type Options struct {
	// Encoding names the input charset. Empty means UTF-8.
	Encoding string
	// Comma overrides the delimiter chosen from the extension.
	Comma rune
	// Strings lists columns kept as text regardless of content.
	Strings []string
	// NullValues are cell texts read as null in addition to the empty string.
	NullValues []string
	// NoInfer keeps every cell as text.
	NoInfer bool
}

var encodings = map[string]encoding.Encoding{
	"utf-8":        unicode.UTF8BOM,
	"utf8":         unicode.UTF8BOM,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"utf-16":       unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// LookupEncoding resolves a charset name.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return unicode.UTF8BOM, nil
	}
	enc, ok := encodings[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewValidationError("encoding", name, "unsupported charset")
	}
	return enc, nil
}

// Delimiter picks the field separator for path.
func Delimiter(path string) rune {
	if strings.EqualFold(filepath.Ext(strings.TrimSuffix(path, ".gz")), ".tsv") {
		return '\t'
	}
	return ','
}

// ReadFile reads the table at path.
func ReadFile(path string, opts Options) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, path)
		}
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.WrapIO("gunzip", path, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	if opts.Comma == 0 {
		opts.Comma = Delimiter(path)
	}
	t, err := Read(r, opts)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return nil, err
	}
	return t, nil
}

// Read parses a delimited table whose first record is the header.
func Read(r io.Reader, opts Options) (*table.Table, error) {
	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(transform.NewReader(r, enc.NewDecoder()))
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewParseError("csv", "", "missing header", nil)
	}
	if err != nil {
		return nil, csvError(err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		records = append(records, rec)
	}

	nulls := map[string]bool{"": true}
	for _, v := range opts.NullValues {
		nulls[v] = true
	}
	keep := map[string]bool{}
	for _, c := range opts.Strings {
		keep[c] = true
	}

	columns := make([][]any, len(header))
	for j, name := range header {
		cells := make([]string, len(records))
		for i, rec := range records {
			cells[i] = rec[j]
		}
		columns[j] = convert(cells, nulls, opts.NoInfer || keep[name])
	}
	rows := make([][]any, len(records))
	for i := range records {
		row := make([]any, len(header))
		for j := range header {
			row[j] = columns[j][i]
		}
		rows[i] = row
	}
	t, err := table.New(header, rows...)
	if err != nil {
		return nil, errors.NewParseError("csv", "", "bad header", err)
	}
	return t, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &errors.ParseError{Format: "csv", Line: pe.Line, Message: pe.Err.Error(), Err: err}
	}
	return errors.NewParseError("csv", "", err.Error(), err)
}

type kind int

const (
	kindInt kind = iota
	kindFloat
	kindDate
	kindString
)

// convert types one column. The column takes the narrowest kind every
// non-null cell fits; numbers with leading zeros stay text.
func convert(cells []string, nulls map[string]bool, text bool) []any {
	k := kindString
	if !text {
		k = kindInt
		for k < kindString && !allFit(cells, nulls, k) {
			k++
		}
	}
	out := make([]any, len(cells))
	for i, c := range cells {
		if nulls[c] {
			continue
		}
		out[i] = parse(c, k)
	}
	return out
}

func allFit(cells []string, nulls map[string]bool, k kind) bool {
	for _, c := range cells {
		if !nulls[c] && !fits(c, k) {
			return false
		}
	}
	return true
}

func leadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	whole, _, _ := strings.Cut(s, ".")
	return len(whole) > 1 && whole[0] == '0'
}

func fits(s string, k kind) bool {
	switch k {
	case kindInt:
		if leadingZero(s) {
			return false
		}
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	case kindFloat:
		if leadingZero(s) || strings.ContainsAny(strings.ToLower(s), "xpni_") {
			return false
		}
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	case kindDate:
		_, err := time.Parse(table.DateLayout, s)
		return err == nil
	}
	return true
}

func parse(s string, k kind) any {
	switch k {
	case kindInt:
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	case kindFloat:
		v, _ := strconv.ParseFloat(s, 64)
		return v
	case kindDate:
		v, _ := time.Parse(table.DateLayout, s)
		return v
	}
	return s
}
