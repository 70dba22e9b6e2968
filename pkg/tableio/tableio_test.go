package tableio_test

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/table"
	"github.com/agentstation/crosswalk/pkg/tableio"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func TestReadInfersTypes(t *testing.T) {
	in := strings.Join([]string{
		"id,zip,age,score,born,name,empty",
		"1,02134,40,1.5,1980-02-03,Ann,",
		"2,90210,,2,1981-12-31,Bob,",
		"3,10001,7,-0.25,,Carl,",
	}, "\n")
	tb, err := tableio.Read(strings.NewReader(in), tableio.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "zip", "age", "score", "born", "name", "empty"}, tb.Columns())
	want := [][]any{
		{int64(1), "02134", int64(40), 1.5, time.Date(1980, 2, 3, 0, 0, 0, 0, time.UTC), "Ann", nil},
		{int64(2), "90210", nil, 2.0, time.Date(1981, 12, 31, 0, 0, 0, 0, time.UTC), "Bob", nil},
		{int64(3), "10001", int64(7), -0.25, nil, "Carl", nil},
	}
	if diff := cmp.Diff(want, tb.Records()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestReadOptions(t *testing.T) {
	in := "id\tcode\n1\t12\n2\tNA\n"

	tests := []struct {
		name string
		opts tableio.Options
		want [][]any
	}{
		{"tab delimited", tableio.Options{Comma: '\t'}, [][]any{{int64(1), "12"}, {int64(2), "NA"}}},
		{"null values", tableio.Options{Comma: '\t', NullValues: []string{"NA"}}, [][]any{{int64(1), int64(12)}, {int64(2), nil}}},
		{"string columns", tableio.Options{Comma: '\t', NullValues: []string{"NA"}, Strings: []string{"code"}}, [][]any{{int64(1), "12"}, {int64(2), nil}}},
		{"no inference", tableio.Options{Comma: '\t', NoInfer: true}, [][]any{{"1", "12"}, {"2", "NA"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb, err := tableio.Read(strings.NewReader(in), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tb.Records())
		})
	}
}

func TestReadEncodings(t *testing.T) {
	text := "id,name\n1,Zoë Müller\n"

	tests := []struct {
		name     string
		encoding string
		encoder  transform.Transformer
	}{
		{"latin1", "latin1", charmap.ISO8859_1.NewEncoder()},
		{"windows-1252", "windows-1252", charmap.Windows1252.NewEncoder()},
		{"utf-16 with bom", "utf-16", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()},
		{"utf-8 with bom", "utf-8", unicode.UTF8BOM.NewEncoder()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _, err := transform.String(tt.encoder, text)
			require.NoError(t, err)
			tb, err := tableio.Read(strings.NewReader(raw), tableio.Options{Encoding: tt.encoding})
			require.NoError(t, err)
			assert.Equal(t, []string{"id", "name"}, tb.Columns())
			assert.Equal(t, "Zoë Müller", tb.Value(0, "name"))
		})
	}

	_, err := tableio.Read(strings.NewReader(text), tableio.Options{Encoding: "ebcdic"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestReadErrors(t *testing.T) {
	_, err := tableio.Read(strings.NewReader(""), tableio.Options{})
	var pe *errors.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "missing header", pe.Message)

	_, err = tableio.Read(strings.NewReader("a,b\n1,2,3\n"), tableio.Options{})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)

	_, err = tableio.Read(strings.NewReader("a,a\n1,2\n"), tableio.Options{})
	assert.Error(t, err)

	_, err = tableio.ReadFile(filepath.Join(t.TempDir(), "missing.csv"), tableio.Options{})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestWriteFileRoundTrip(t *testing.T) {
	tb := table.MustNew([]string{"uid", "zip", "name", "born"},
		[]any{1, "02134", "Ann, Jr.", time.Date(1980, 2, 3, 0, 0, 0, 0, time.UTC)},
		[]any{2, "90210", nil, nil},
	)
	for _, name := range []string{"out.csv", "out.tsv", "out.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, tableio.WriteFile(path, tb))

			got, err := tableio.ReadFile(path, tableio.Options{})
			require.NoError(t, err)
			if diff := cmp.Diff(tb.Records(), got.Records()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temp files left behind")
		})
	}

	t.Run("tsv on disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.tsv")
		require.NoError(t, tableio.WriteFile(path, tb))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "uid\tzip\tname\tborn\n1\t02134\tAnn, Jr.\t1980-02-03\n2\t90210\t\t\n", string(raw))
	})

	t.Run("gzip on disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv.gz")
		require.NoError(t, tableio.WriteFile(path, tb))
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		_, err = gzip.NewReader(f)
		assert.NoError(t, err)
	})
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canonical.csv")

	lock, err := tableio.Acquire(path)
	require.NoError(t, err)
	assert.FileExists(t, path+".lock")

	_, err = tableio.Acquire(path)
	assert.ErrorIs(t, err, errors.ErrLocked)

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, path+".lock")
	assert.NoError(t, lock.Release())

	again, err := tableio.Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestDelimiter(t *testing.T) {
	assert.Equal(t, '\t', tableio.Delimiter("a.tsv"))
	assert.Equal(t, '\t', tableio.Delimiter("a.TSV.gz"))
	assert.Equal(t, ',', tableio.Delimiter("a.csv"))
	assert.Equal(t, ',', tableio.Delimiter("a.txt"))
}
