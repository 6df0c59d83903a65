package xlscope

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// Workbook is a loaded template: the document, one cell registry per sheet and
// the scope tree discovered from the template markers.
type Workbook struct {
	file   *excelize.File
	sheets []*Worksheet
	tree   *scopeTree
	opts   *Options
}

// Open loads a template from an xlsx file.
func Open(path string, opts ...Option) (*Workbook, error) {
	o := applyOptions(opts)
	f, err := excelize.OpenFile(path, excelize.Options{Password: o.password})
	if err != nil {
		return nil, fmt.Errorf("open template %q: %w", path, err)
	}
	wb, err := newWorkbook(f, o)
	if err != nil {
		f.Close()
		return nil, err
	}
	return wb, nil
}

// OpenReader loads a template from r.
func OpenReader(r io.Reader, opts ...Option) (*Workbook, error) {
	o := applyOptions(opts)
	f, err := excelize.OpenReader(r, excelize.Options{Password: o.password})
	if err != nil {
		return nil, fmt.Errorf("open template reader: %w", err)
	}
	wb, err := newWorkbook(f, o)
	if err != nil {
		f.Close()
		return nil, err
	}
	return wb, nil
}

// New wraps an already opened excelize file.
func New(f *excelize.File, opts ...Option) (*Workbook, error) {
	return newWorkbook(f, applyOptions(opts))
}

func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newWorkbook(f *excelize.File, o *Options) (*Workbook, error) {
	wb := &Workbook{file: f, tree: newScopeTree(), opts: o}
	for _, name := range f.GetSheetList() {
		ws, err := wb.loadSheet(name)
		if err != nil {
			return nil, err
		}
		wb.sheets = append(wb.sheets, ws)
	}
	if err := wb.discoverScopes(); err != nil {
		return nil, err
	}
	return wb, nil
}

// loadSheet reads every non-empty cell of a sheet. Range-template formulas are
// set aside; everything else goes into the registry.
func (wb *Workbook) loadSheet(name string) (*Worksheet, error) {
	f := wb.file
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows from sheet %q: %w", name, err)
	}
	maxRow, maxCol := len(rows), 0
	for _, row := range rows {
		maxCol = max(maxCol, len(row))
	}
	if dim, err := f.GetSheetDimension(name); err == nil && dim != "" {
		if r, err := ParseRangeAddress(dim); err == nil && r.Last.Row >= 0 && r.Last.Col >= 0 {
			maxRow = max(maxRow, r.Last.Row+1)
			maxCol = max(maxCol, r.Last.Col+1)
		}
	}

	ws := NewWorksheet(name)
	for r := 0; r < maxRow; r++ {
		for c := 0; c < maxCol; c++ {
			var raw string
			if r < len(rows) && c < len(rows[r]) {
				raw = rows[r][c]
			}
			addr := CellAddress{Col: c, Row: r}
			ref := addr.Ref()
			formula, err := f.GetCellFormula(name, ref)
			if err != nil {
				return nil, fmt.Errorf("read formula %s!%s: %w", name, ref, err)
			}
			style, err := f.GetCellStyle(name, ref)
			if err != nil {
				return nil, fmt.Errorf("read style %s!%s: %w", name, ref, err)
			}
			if raw == "" && formula == "" && style == 0 {
				continue
			}
			ws.loaded[addr] = struct{}{}

			cell := &Cell{addr: addr, Style: style}
			if formula != "" {
				cell.Formula = formula
				cell.Type = CellFormula
				cell.Value = raw
				if _, _, ok := matchRangeTemplate(formula); ok {
					ws.ranges = append(ws.ranges, cell)
					continue
				}
			} else {
				cell.Value = decodeValue(f, name, ref, raw)
				cell.Type = inferCellType(cell.Value)
			}
			ws.addCell(cell)
		}
	}

	for r := 0; r < maxRow; r++ {
		h, err := f.GetRowHeight(name, r+1)
		if err != nil {
			continue
		}
		visible, _ := f.GetRowVisible(name, r+1)
		ws.addRow(&Row{Index: r, Height: h, Hidden: !visible})
	}
	wb.opts.logger.Debug("sheet loaded", "sheet", name, "cells", len(ws.cells), "ranges", len(ws.ranges))
	return ws, nil
}

// decodeValue converts a raw cell value to string, float64 or bool.
func decodeValue(f *excelize.File, sheet, ref, raw string) any {
	if raw == "" {
		return nil
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || raw == "TRUE" || raw == "true"
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	}
	return raw
}

// discoverScopes builds the scope tree: range-template formulas first, then
// every cell whose value starts with a marker.
func (wb *Workbook) discoverScopes() error {
	var ids []int
	for _, ws := range wb.sheets {
		for _, c := range ws.ranges {
			ref, template, _ := matchRangeTemplate(c.Formula)
			rng, err := ParseRangeAddress(ref)
			if err != nil {
				return fmt.Errorf("range template at %s!%s: %w", ws.Name(), c.Ref(), err)
			}
			ids = append(ids, wb.tree.add(ws.Name(), rng, template, RangeScope))
		}
	}
	for _, ws := range wb.sheets {
		for _, c := range ws.Cells() {
			s, ok := c.Value.(string)
			if !ok || c.Formula != "" || templateKind(s) == NoTemplate {
				continue
			}
			ids = append(ids, wb.tree.add(ws.Name(), CellRange(c.addr), s, CellScope))
		}
	}
	wb.tree.build(ids)
	wb.opts.logger.Debug("scopes discovered", "count", len(ids))
	return nil
}

// Evaluate interpolates data into the workbook in place. opts override the
// workbook's options for this pass only.
//
// Errors caused by the data (a row or column template bound to a non-array, a
// failing expression) skip the offending scope and are returned joined once the
// pass completes. Registry and geometry errors stop the pass immediately.
func (wb *Workbook) Evaluate(data any, opts ...Option) error {
	o := wb.opts.clone()
	for _, opt := range opts {
		opt(o)
	}
	start := time.Now()
	err := newInterpolator(wb, o).run(data)
	o.logger.Debug("evaluated", "scopes", len(wb.tree.scopes()), "elapsed", time.Since(start), "err", err)
	return err
}

// Write saves the current cell state to w.
func (wb *Workbook) Write(w io.Writer) error {
	if err := wb.flush(); err != nil {
		return err
	}
	return wb.file.Write(w)
}

// WriteFile saves the current cell state to path.
func (wb *Workbook) WriteFile(path string) error {
	if err := wb.flush(); err != nil {
		return err
	}
	if err := wb.file.SaveAs(path); err != nil {
		return fmt.Errorf("save %q: %w", path, err)
	}
	return nil
}

// Bytes returns the saved document.
func (wb *Workbook) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close releases the underlying document.
func (wb *Workbook) Close() error {
	return wb.file.Close()
}

// File returns the underlying excelize file for advanced operations. Changes
// made through it are overwritten by the next save for every registry cell.
func (wb *Workbook) File() *excelize.File {
	return wb.file
}

// flush writes the registries back into the document: addresses that were
// vacated are cleared, every current cell is rewritten.
func (wb *Workbook) flush() error {
	var fonts *fontSizes
	if wb.opts.autoRowHeight {
		fonts = newFontSizes(wb.file)
	}
	for _, ws := range wb.sheets {
		if err := wb.flushSheet(ws); err != nil {
			return fmt.Errorf("save sheet %q: %w", ws.Name(), err)
		}
		if fonts != nil {
			if err := applyRowHeights(wb.file, ws, fonts); err != nil {
				return fmt.Errorf("set row heights on %q: %w", ws.Name(), err)
			}
		}
	}
	return nil
}

func (wb *Workbook) flushSheet(ws *Worksheet) error {
	f, name := wb.file, ws.Name()
	for addr := range ws.loaded {
		if ws.Occupied(addr) {
			continue
		}
		ref := addr.Ref()
		if err := f.SetCellFormula(name, ref, ""); err != nil {
			return err
		}
		if err := f.SetCellValue(name, ref, nil); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, ref, ref, 0); err != nil {
			return err
		}
	}

	written := make(map[CellAddress]struct{}, len(ws.cells))
	for _, c := range ws.Cells() {
		if err := wb.writeCell(ws, c); err != nil {
			return fmt.Errorf("write %s: %w", c.Ref(), err)
		}
		written[c.addr] = struct{}{}
	}
	ws.loaded = written
	return nil
}

// writeCell stores value, then formula, then style. Setting a value drops any
// formula already at the address.
func (wb *Workbook) writeCell(ws *Worksheet, c *Cell) error {
	f, name, ref := wb.file, ws.Name(), c.Ref()
	if err := f.SetCellFormula(name, ref, ""); err != nil {
		return err
	}
	switch v := c.Value.(type) {
	case HyperlinkValue:
		if err := writeHyperlink(f, name, ref, v); err != nil {
			return err
		}
	case *HyperlinkValue:
		if err := writeHyperlink(f, name, ref, *v); err != nil {
			return err
		}
	case nil, string, bool, time.Time, time.Duration, []byte,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		if err := f.SetCellValue(name, ref, v); err != nil {
			return err
		}
	default:
		if err := f.SetCellValue(name, ref, stringify(v)); err != nil {
			return err
		}
	}
	if c.Formula != "" {
		if err := f.SetCellFormula(name, ref, c.Formula); err != nil {
			return err
		}
	}
	if _, isTime := c.Value.(time.Time); isTime && c.Style == 0 {
		return nil // keep the date format excelize picked
	}
	return f.SetCellStyle(name, ref, ref, c.Style)
}

// SheetNames returns the sheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.sheets))
	for i, ws := range wb.sheets {
		names[i] = ws.Name()
	}
	return names
}

// Sheet returns the registry of the named sheet.
func (wb *Workbook) Sheet(name string) (*Worksheet, error) {
	return wb.sheet(name)
}

func (wb *Workbook) sheet(name string) (*Worksheet, error) {
	for _, ws := range wb.sheets {
		if ws.Name() == name {
			return ws, nil
		}
	}
	return nil, &SheetError{Name: name, Err: ErrSheetNotFound}
}

// RenameSheet renames a sheet in the document, its registry and every scope
// bound to it.
func (wb *Workbook) RenameSheet(oldName, newName string) error {
	ws, err := wb.sheet(oldName)
	if err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if _, err := wb.sheet(newName); err == nil {
		return &SheetError{Name: newName, Err: ErrDuplicateSheet}
	}
	if err := wb.file.SetSheetName(oldName, newName); err != nil {
		return &SheetError{Name: oldName, Err: fmt.Errorf("rename to %q: %w", newName, err)}
	}
	ws.name = newName
	for _, s := range wb.tree.nodes {
		if s.Sheet == oldName {
			s.Sheet = newName
		}
	}
	return nil
}

// Scopes returns every live scope in discovery and creation order.
func (wb *Workbook) Scopes() []*Scope {
	return wb.tree.scopes()
}

// Children returns the child scopes of s, or the top-level scopes if s is nil.
func (wb *Workbook) Children(s *Scope) []*Scope {
	id := rootID
	if s != nil {
		id = s.id
	}
	node := wb.tree.get(id)
	out := make([]*Scope, len(node.children))
	for i, c := range node.children {
		out[i] = wb.tree.get(c)
	}
	return out
}

// Parent returns the parent of s, or nil for a top-level scope.
func (wb *Workbook) Parent(s *Scope) *Scope {
	if s.parent == noParent || s.parent == rootID {
		return nil
	}
	return wb.tree.get(s.parent)
}
