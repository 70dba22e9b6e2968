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

	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Write renders t as delimited text.
func Write(w io.Writer, t *table.Table, comma rune) error {
	cw := csv.NewWriter(w)
	if comma != 0 {
		cw.Comma = comma
	}
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns()))
	for _, row := range t.Records() {
		for j, v := range row {
			rec[j] = table.Format(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile replaces the file at path with t. The table is written to a
// temporary file in the same directory and renamed into place, so readers
// see either the old table or the new one.
func WriteFile(path string, t *table.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WrapIO("create", "temp file", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := writeTo(tmp, path, t); err != nil {
		_ = tmp.Close()
		return errors.WrapIO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("close", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, constants.FilePermissions); err != nil {
		return errors.WrapIO("chmod", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.WrapIO("move", path, err)
	}
	return nil
}

func writeTo(f *os.File, path string, t *table.Table) error {
	if !strings.HasSuffix(path, ".gz") {
		return Write(f, t, Delimiter(path))
	}
	gz := gzip.NewWriter(f)
	if err := Write(gz, t, Delimiter(path)); err != nil {
		return err
	}
	return gz.Close()
}

// Lock is an exclusive claim on a canonical table.
type Lock struct {
	path string
}

// Acquire claims path by creating <path>.lock. It fails with an error
// wrapping errors.ErrLocked when another process holds the claim.
func Acquire(path string) (*Lock, error) {
	lockPath := path + constants.LockSuffix
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := os.ReadFile(lockPath)
			return nil, fmt.Errorf("%w: %s held by pid %s", errors.ErrLocked, path, strings.TrimSpace(string(holder)))
		}
		return nil, errors.WrapIO("lock", lockPath, err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(lockPath)
		return nil, errors.WrapIO("lock", lockPath, errors.Join(werr, cerr))
	}
	return &Lock{path: lockPath}, nil
}

// Path is the lock file.
func (l *Lock) Path() string { return l.path }

// Release drops the claim. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("unlock", path, err)
	}
	return nil
}
