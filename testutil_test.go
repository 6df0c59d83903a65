package xlscope

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sheet1 = "Sheet1"

// testdataDir returns the path to testdata directory, creating it if needed.
func testdataDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join("testdata")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

// buildTemplate creates an in-memory template on Sheet1 and returns its bytes.
func buildTemplate(t *testing.T, build func(f *excelize.File)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	build(f)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// saveTemplate writes a template to testdata and removes it when the test ends.
func saveTemplate(t *testing.T, name string, build func(f *excelize.File)) string {
	t.Helper()
	path := filepath.Join(testdataDir(t), name)
	require.NoError(t, os.WriteFile(path, buildTemplate(t, build), 0o644))
	t.Cleanup(func() { os.Remove(path) })
	return path
}

// openTemplate builds a template and loads it as a Workbook.
func openTemplate(t *testing.T, build func(f *excelize.File), opts ...Option) *Workbook {
	t.Helper()
	wb, err := OpenReader(bytes.NewReader(buildTemplate(t, build)), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close() })
	return wb
}

// reopen saves wb and opens the result with excelize.
func reopen(t *testing.T, wb *Workbook) *excelize.File {
	t.Helper()
	data, err := wb.Bytes()
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// valueAt returns the registry value at ref on Sheet1, or nil if the cell is empty.
func valueAt(t *testing.T, wb *Workbook, ref string) any {
	t.Helper()
	ws, err := wb.Sheet(sheet1)
	require.NoError(t, err)
	c := ws.CellAt(ref)
	if c == nil {
		return nil
	}
	return c.Value
}

// scopeAt returns the live scope on Sheet1 whose range is ref.
func scopeAt(wb *Workbook, ref string) *Scope {
	for _, s := range wb.Scopes() {
		if s.Sheet == sheet1 && s.Ref() == ref {
			return s
		}
	}
	return nil
}

// rangeTemplate returns the range-template formula binding ref to template.
func rangeTemplate(ref, template string) string {
	return `IFERROR(N(` + ref + `),"` + template + `")`
}
