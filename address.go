package xlscope

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Direction is the growth axis of a repeating region.
type Direction int

const (
	// Down grows along rows (vertical): the row index changes.
	Down Direction = iota
	// Right grows along columns (horizontal): the column index changes.
	Right
)

// String returns "DOWN" or "RIGHT".
func (d Direction) String() string {
	if d == Right {
		return "RIGHT"
	}
	return "DOWN"
}

// CellAddress is a zero-based cell coordinate. A negative component means the
// axis is unbounded, which only occurs in full-row or full-column ranges.
type CellAddress struct {
	Col int
	Row int
}

// primary returns the coordinate along d.
func (a CellAddress) primary(d Direction) int {
	if d == Right {
		return a.Col
	}
	return a.Row
}

// secondary returns the coordinate orthogonal to d.
func (a CellAddress) secondary(d Direction) int {
	if d == Right {
		return a.Row
	}
	return a.Col
}

// Add returns the component-wise sum.
func (a CellAddress) Add(b CellAddress) CellAddress {
	return CellAddress{Col: a.Col + b.Col, Row: a.Row + b.Row}
}

// Sub returns the component-wise difference a-b.
func (a CellAddress) Sub(b CellAddress) CellAddress {
	return CellAddress{Col: a.Col - b.Col, Row: a.Row - b.Row}
}

// Ref formats the address as "B3". Unbounded axes are omitted ("B" or "3").
func (a CellAddress) Ref() string {
	var b strings.Builder
	if a.Col >= 0 {
		b.WriteString(ColToName(a.Col))
	}
	if a.Row >= 0 {
		b.WriteString(strconv.Itoa(a.Row + 1))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (a CellAddress) String() string { return a.Ref() }

// Offset returns {Col: n} for Right and {Row: n} for Down.
func Offset(n int, d Direction) CellAddress {
	if d == Right {
		return CellAddress{Col: n}
	}
	return CellAddress{Row: n}
}

// ParseCellAddress parses a reference like "B3" (or "$B$3") into {Col:1, Row:2}.
func ParseCellAddress(ref string) (CellAddress, error) {
	a, err := parseAddress(ref, false)
	if err != nil {
		return CellAddress{}, &ReferenceError{Ref: ref, Err: err}
	}
	return a, nil
}

// MustCellAddress is like ParseCellAddress but panics on malformed input.
// It is intended for constants in tests and examples.
func MustCellAddress(ref string) CellAddress {
	a, err := ParseCellAddress(ref)
	if err != nil {
		panic(err)
	}
	return a
}

// parseAddress splits letters and digits. With unbounded set, either part may be
// missing and is then reported as -1.
func parseAddress(ref string, unbounded bool) (CellAddress, error) {
	s := strings.ReplaceAll(strings.TrimSpace(ref), "$", "")
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		s = s[idx+1:]
	}
	if s == "" {
		return CellAddress{}, fmt.Errorf("empty reference")
	}
	i := 0
	for i < len(s) && isAlpha(s[i]) {
		i++
	}
	letters, digits := s[:i], s[i:]
	if !unbounded && (letters == "" || digits == "") {
		return CellAddress{}, fmt.Errorf("invalid cell name %q", s)
	}
	if letters == "" && digits == "" {
		return CellAddress{}, fmt.Errorf("invalid cell name %q", s)
	}

	a := CellAddress{Col: -1, Row: -1}
	if letters != "" {
		col, err := NameToCol(letters)
		if err != nil {
			return CellAddress{}, err
		}
		a.Col = col
	}
	if digits != "" {
		row := 0
		for _, ch := range digits {
			if ch < '0' || ch > '9' {
				return CellAddress{}, fmt.Errorf("invalid row in cell name %q", s)
			}
			row = row*10 + int(ch-'0')
		}
		if row < 1 {
			return CellAddress{}, fmt.Errorf("invalid row number in cell name %q", s)
		}
		a.Row = row - 1
	}
	return a, nil
}

func isAlpha(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// ColToName converts a 0-based column index to a column name.
// 0→"A", 25→"Z", 26→"AA", 702→"AAA"
func ColToName(col int) string {
	result := ""
	col++
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// NameToCol converts a column name to a 0-based column index.
// "A"→0, "Z"→25, "AA"→26
func NameToCol(name string) (int, error) {
	name = strings.ToUpper(name)
	if name == "" {
		return 0, &ReferenceError{Ref: name, Err: fmt.Errorf("empty column name")}
	}
	col := 0
	for _, ch := range name {
		if ch < 'A' || ch > 'Z' {
			return 0, &ReferenceError{Ref: name, Err: fmt.Errorf("invalid column name")}
		}
		col = col*26 + int(ch-'A') + 1
	}
	return col - 1, nil
}

// RangeAddress is an ordered [top-left, bottom-right] pair.
type RangeAddress struct {
	First CellAddress
	Last  CellAddress
}

// CellRange returns the single-cell range at a.
func CellRange(a CellAddress) RangeAddress {
	return RangeAddress{First: a, Last: a}
}

// ParseRangeAddress parses "A1:C5". A lone reference "B2" yields a single-cell range,
// and "A:C" or "2:4" yield ranges unbounded on one axis.
func ParseRangeAddress(ref string) (RangeAddress, error) {
	parts := strings.SplitN(strings.TrimSpace(ref), ":", 2)
	first, err := parseAddress(parts[0], len(parts) == 2)
	if err != nil {
		return RangeAddress{}, &ReferenceError{Ref: ref, Err: err}
	}
	if len(parts) == 1 {
		return CellRange(first), nil
	}
	last, err := parseAddress(parts[1], true)
	if err != nil {
		return RangeAddress{}, &ReferenceError{Ref: ref, Err: err}
	}
	if (first.Col < 0) != (last.Col < 0) || (first.Row < 0) != (last.Row < 0) {
		return RangeAddress{}, &ReferenceError{Ref: ref, Err: fmt.Errorf("mismatched range bounds")}
	}
	return RangeAddress{First: first, Last: last}, nil
}

// Ref formats the range as "A1:C5".
func (r RangeAddress) Ref() string {
	return r.First.Ref() + ":" + r.Last.Ref()
}

// String implements fmt.Stringer.
func (r RangeAddress) String() string { return r.Ref() }

// Move translates both corners by delta.
func (r RangeAddress) Move(delta CellAddress) RangeAddress {
	return RangeAddress{First: r.First.Add(delta), Last: r.Last.Add(delta)}
}

// Dim returns the inclusive span along d.
func (r RangeAddress) Dim(d Direction) int {
	return 1 + r.Last.primary(d) - r.First.primary(d)
}

// InRange reports whether a lies within r, treating negative bounds as unbounded.
func (r RangeAddress) InRange(a CellAddress) bool {
	within := func(s, v, e int) bool { return s <= v && v <= e }
	return (r.First.Col < 0 || within(r.First.Col, a.Col, r.Last.Col)) &&
		(r.First.Row < 0 || within(r.First.Row, a.Row, r.Last.Row))
}

// ContainsRange reports whether every cell of o lies within r.
func (r RangeAddress) ContainsRange(o RangeAddress) bool {
	if r.First.Col >= 0 && o.First.Col < 0 {
		return false
	}
	if r.First.Row >= 0 && o.First.Row < 0 {
		return false
	}
	return r.InRange(o.First) && r.InRange(o.Last)
}

// span returns r's inclusive bounds on the axis orthogonal to d. An unbounded
// axis spans everything.
func (r RangeAddress) span(d Direction) (lo, hi int) {
	if r.First.secondary(d) < 0 {
		return math.MinInt, math.MaxInt
	}
	return r.First.secondary(d), r.Last.secondary(d)
}

// spanContains reports whether o's off-axis span lies inside r's off-axis span.
func (r RangeAddress) spanContains(o RangeAddress, d Direction) bool {
	rlo, rhi := r.span(d)
	olo, ohi := o.span(d)
	return rlo <= olo && ohi <= rhi
}

// spanOverlaps reports whether the off-axis spans of r and o intersect.
func (r RangeAddress) spanOverlaps(o RangeAddress, d Direction) bool {
	rlo, rhi := r.span(d)
	olo, ohi := o.span(d)
	return rlo <= ohi && olo <= rhi
}

// atOrAfterAlongAxis reports whether a shares origin's off-axis coordinate and is
// at or beyond it along d.
func atOrAfterAlongAxis(a, origin CellAddress, d Direction) bool {
	delta := a.Sub(origin)
	return delta.secondary(d) == 0 && delta.primary(d) >= 0
}

// rangeIsAfterCell reports whether c's off-axis coordinate lies in r's off-axis span
// and r starts strictly after c along d.
func rangeIsAfterCell(c CellAddress, r RangeAddress, d Direction) bool {
	lo, hi := r.span(d)
	return lo <= c.secondary(d) && c.secondary(d) <= hi && r.First.primary(d) > c.primary(d)
}

// cellAtOrAfterRange reports whether c lies in r's off-axis span and at or after
// r's start along d.
func cellAtOrAfterRange(c CellAddress, r RangeAddress, d Direction) bool {
	lo, hi := r.span(d)
	return lo <= c.secondary(d) && c.secondary(d) <= hi && c.primary(d) >= r.First.primary(d)
}

// rangeAtOrAfterRange reports whether s overlaps r on the off axis and starts at
// or after r along d.
func rangeAtOrAfterRange(s, r RangeAddress, d Direction) bool {
	return s.spanOverlaps(r, d) && s.First.primary(d) >= r.First.primary(d)
}
