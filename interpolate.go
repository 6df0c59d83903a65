package xlscope

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// interpolator runs one evaluation pass over a workbook's scope tree.
type interpolator struct {
	wb        *Workbook
	tree      *scopeTree
	eval      ExpressionEvaluator
	globals   map[string]any
	maxDepth  int
	logger    *slog.Logger
	listeners []CellListener

	errs []error // recovered data errors, joined at the end of the pass
}

func newInterpolator(wb *Workbook, o *Options) *interpolator {
	return &interpolator{
		wb:        wb,
		tree:      wb.tree,
		eval:      o.evaluator,
		globals:   o.builtins(),
		maxDepth:  o.maxDepth,
		logger:    o.logger,
		listeners: o.listeners,
	}
}

// run interpolates every top-level scope against data.
func (ip *interpolator) run(data any) error {
	root := ip.tree.root()
	for _, id := range append([]int(nil), root.children...) {
		if err := ip.interpolate(id, data, 1); err != nil {
			return err
		}
	}
	return errors.Join(ip.errs...)
}

// interpolate evaluates one scope and dispatches on its template kind. Data errors
// end the scope's branch and are recorded; geometry errors are returned.
func (ip *interpolator) interpolate(id int, context any, depth int) error {
	s := ip.tree.get(id)
	if depth > ip.maxDepth {
		return ip.scopeError(s, nil, ErrMaxDepth)
	}
	kind, value, err := ip.evaluate(s, context)
	if err == nil {
		switch kind {
		case Scalar:
			err = ip.interpolateScalar(id, value, depth)
		case ColumnRepeat, RowRepeat:
			err = ip.interpolateStack(id, value, kind.direction(), depth)
		}
	}
	if err != nil && isDataError(err) {
		ip.logger.Debug("scope skipped", "sheet", s.Sheet, "range", s.Ref(), "err", err)
		ip.errs = append(ip.errs, err)
		return nil
	}
	return err
}

// evaluate resolves the scope's template against context. A scalar template with
// text around or between its expressions renders to a string.
func (ip *interpolator) evaluate(s *Scope, context any) (TemplateKind, any, error) {
	kind, path, ok := parseTemplate(s.Template)
	if kind == NoTemplate {
		return kind, nil, nil
	}
	if !ok {
		if kind != Scalar || s.Kind != CellScope {
			return kind, nil, ip.scopeError(s, nil, ErrMalformedTemplate)
		}
		v, err := ip.render(s.Template, context)
		if err != nil {
			return kind, nil, ip.scopeError(s, nil, err)
		}
		return kind, v, nil
	}
	v, err := ip.eval.Evaluate(path, context, ip.globals)
	if err != nil {
		return kind, nil, ip.scopeError(s, nil, err)
	}
	return kind, v, nil
}

// render concatenates literal text and evaluated expressions.
func (ip *interpolator) render(template string, context any) (string, error) {
	var b strings.Builder
	for _, seg := range ParseExpressions(template) {
		if !seg.IsExpression {
			b.WriteString(seg.Text)
			continue
		}
		v, err := ip.eval.Evaluate(seg.Text, context, ip.globals)
		if err != nil {
			return "", err
		}
		if v != nil {
			fmt.Fprint(&b, v)
		}
	}
	return b.String(), nil
}

func (ip *interpolator) interpolateScalar(id int, value any, depth int) error {
	s := ip.tree.get(id)
	if s.Kind == RangeScope {
		for _, child := range append([]int(nil), s.children...) {
			if err := ip.interpolate(child, value, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	ws, err := ip.wb.sheet(s.Sheet)
	if err != nil {
		return err
	}
	cell := ws.Cell(s.Anchor())
	if cell == nil {
		return &CellError{Sheet: s.Sheet, From: s.Anchor(), To: s.Anchor(), Err: ErrSourceNotOccupied}
	}
	ip.setCell(ws, cell, value)
	return nil
}

// interpolateStack expands a repeating scope once per element of value.
func (ip *interpolator) interpolateStack(id int, value any, d Direction, depth int) error {
	s := ip.tree.get(id)
	if value == nil {
		return nil
	}
	items, err := toSlice(value)
	if err != nil {
		return ip.scopeError(s, value, ErrNotAnArray)
	}
	if s.Kind == CellScope {
		return ip.interpolateCell(id, items, d)
	}
	return ip.interpolateRange(id, items, d, depth)
}

// interpolateCell writes one element per cell starting at the anchor, inserting a
// fresh cell for every element after the first.
func (ip *interpolator) interpolateCell(id int, items []any, d Direction) error {
	s := ip.tree.get(id)
	ws, err := ip.wb.sheet(s.Sheet)
	if err != nil {
		return err
	}
	anchor := s.Anchor()
	cell := ws.Cell(anchor)
	if cell == nil {
		return &CellError{Sheet: s.Sheet, From: anchor, To: anchor, Err: ErrSourceNotOccupied}
	}
	if len(items) == 0 {
		ip.setCell(ws, cell, nil)
		return nil
	}
	ip.logger.Debug("repeat cell", "sheet", s.Sheet, "range", s.Ref(), "direction", d, "n", len(items))
	for i, v := range items {
		to := anchor.Add(Offset(i, d))
		if i > 0 {
			if err := ip.cloneCell(id, ws, anchor, to, d); err != nil {
				return err
			}
		}
		ip.setCell(ws, ws.Cell(to), v)
	}
	return nil
}

// cloneCell opens a slot at to, copies the anchor cell into it, grows the scope by
// one unit and pushes every scope behind the slot one unit further.
func (ip *interpolator) cloneCell(id int, ws *Worksheet, from, to CellAddress, d Direction) error {
	prev := to.Sub(Offset(1, d))
	after, err := ip.affectedScopes(id, CellRange(to), d, func(r RangeAddress) bool {
		return rangeIsAfterCell(prev, r, d)
	})
	if err != nil {
		return err
	}
	if err := ws.InsertCellsShifting(to, d); err != nil {
		return err
	}
	if err := ws.CloneCell(from, to); err != nil {
		return err
	}
	ip.tree.grow(id, Offset(1, d))
	ip.shiftScopes(after, Offset(1, d))
	return nil
}

// interpolateRange replicates a range scope once per element. Clone i is placed
// i*size units along d; the original scope becomes their scalar parent.
func (ip *interpolator) interpolateRange(id int, items []any, d Direction, depth int) error {
	s := ip.tree.get(id)
	ws, err := ip.wb.sheet(s.Sheet)
	if err != nil {
		return err
	}
	size := s.Range.Dim(d)
	ip.tree.makeScalar(id)
	if len(items) == 0 {
		ws.ClearRange(s.Range)
		ip.tree.replaceChildren(id, nil)
		return nil
	}
	ip.logger.Debug("repeat range", "sheet", s.Sheet, "range", s.Ref(), "direction", d, "n", len(items))

	clones := make([]int, len(items))
	for i := range items {
		c := ip.tree.cloneAsScalar(id, i)
		ip.tree.get(c).parent = id
		clones[i] = c
	}
	for i := 1; i < len(clones); i++ {
		if err := ip.cloneScope(clones[i], ws, i*size, size, d); err != nil {
			return err
		}
	}
	ip.tree.replaceChildren(id, clones)

	for _, c := range clones {
		if err := ip.interpolate(c, items, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// cloneScope moves clone c offset units along d, copies the template region's
// cells to its new place, grows the parent by one repetition and pushes every
// scope at or after the new region out of the way.
func (ip *interpolator) cloneScope(c int, ws *Worksheet, offset, size int, d Direction) error {
	s := ip.tree.get(c)
	from := s.Range
	to := from.Move(Offset(offset, d))
	after, err := ip.affectedScopes(c, to, d, func(r RangeAddress) bool {
		return rangeAtOrAfterRange(r, to, d)
	})
	if err != nil {
		return err
	}
	ip.tree.move(c, Offset(offset, d))
	if err := ws.CopyRange(from, to, d); err != nil {
		return err
	}
	ip.tree.grow(s.parent, Offset(size, d))
	ip.shiftScopes(after, Offset(size, d))
	return nil
}

// affectedScopes returns the outermost scopes on self's sheet that an insertion
// at band must push along d. Self, its ancestors and its descendants are never
// selected. A scope that overlaps the band off-axis but either straddles the
// insertion line or reaches outside the band cannot be shifted intact, and
// yields ErrOverlappingExpansion.
func (ip *interpolator) affectedScopes(self int, band RangeAddress, d Direction, after func(RangeAddress) bool) ([]int, error) {
	me := ip.tree.get(self)
	related := ip.lineage(self)
	insertAt := band.First.primary(d)

	set := make(map[int]bool)
	for _, s := range ip.tree.scopes() {
		if s.Sheet != me.Sheet || related[s.id] || !s.Range.spanOverlaps(band, d) {
			continue
		}
		switch {
		case after(s.Range):
			if !band.spanContains(s.Range, d) {
				return nil, ip.overlapError(me, s, band, d)
			}
			set[s.id] = true
		case s.Range.Last.primary(d) >= insertAt:
			return nil, ip.overlapError(me, s, band, d)
		}
	}

	out := make([]int, 0, len(set))
	for id := range set {
		if !ip.tree.hasAncestorIn(id, set) {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out, nil
}

// lineage collects id, its ancestors and its descendants.
func (ip *interpolator) lineage(id int) map[int]bool {
	set := map[int]bool{id: true}
	for p := ip.tree.get(id).parent; p != noParent; p = ip.tree.get(p).parent {
		set[p] = true
	}
	var down func(int)
	down = func(n int) {
		for _, c := range ip.tree.get(n).children {
			set[c] = true
			down(c)
		}
	}
	down(id)
	return set
}

// shiftScopes moves each scope, and with it its subtree, by delta.
func (ip *interpolator) shiftScopes(ids []int, delta CellAddress) {
	for _, id := range ids {
		ip.tree.move(id, delta)
	}
}

// setCell writes value into cell unless a listener vetoes it.
func (ip *interpolator) setCell(ws *Worksheet, cell *Cell, value any) {
	for _, l := range ip.listeners {
		if !l.BeforeSetCell(ws.Name(), cell, value) {
			return
		}
	}
	cell.setValue(value)
	for _, l := range ip.listeners {
		l.AfterSetCell(ws.Name(), cell)
	}
}

func (ip *interpolator) scopeError(s *Scope, value any, err error) error {
	se := &ScopeError{Sheet: s.Sheet, Range: s.Ref(), Template: s.Template, Err: err}
	if value != nil {
		se.Value = stringify(value)
	}
	return se
}

func (ip *interpolator) overlapError(expanding, blocked *Scope, band RangeAddress, d Direction) error {
	return ip.scopeError(expanding, nil, fmt.Errorf("%w: inserting %s along %s would cut through %s",
		ErrOverlappingExpansion, band.Ref(), d, blocked.Ref()))
}
