package xlscope

import "sort"

// CellType represents the type of data in a cell.
type CellType int

const (
	CellBlank CellType = iota
	CellString
	CellNumber
	CellBoolean
	CellFormula
)

// String returns a human-readable name for the CellType.
func (ct CellType) String() string {
	switch ct {
	case CellBlank:
		return "Blank"
	case CellString:
		return "String"
	case CellNumber:
		return "Number"
	case CellBoolean:
		return "Boolean"
	case CellFormula:
		return "Formula"
	default:
		return "Unknown"
	}
}

// Cell is a single worksheet cell. Shared strings are already resolved into Value.
// Moving a cell changes only its address.
type Cell struct {
	addr    CellAddress
	Style   int    // style ID
	Value   any    // string, float64, bool, HyperlinkValue or nil
	Formula string // Excel formula without leading "="
	Type    CellType
}

// NewCell creates a cell at addr.
func NewCell(addr CellAddress, value any) *Cell {
	return &Cell{addr: addr, Value: value, Type: inferCellType(value)}
}

// Address returns the cell's current position.
func (c *Cell) Address() CellAddress { return c.addr }

// Ref returns the cell's current reference, e.g. "B3".
func (c *Cell) Ref() string { return c.addr.Ref() }

// copyTo duplicates the cell under a new address.
func (c *Cell) copyTo(addr CellAddress) *Cell {
	cp := *c
	cp.addr = addr
	return &cp
}

// setValue replaces the value and re-derives the type. Formula cells keep their type.
func (c *Cell) setValue(v any) {
	c.Value = v
	if c.Formula == "" {
		c.Type = inferCellType(v)
	}
}

// Row carries a row's pass-through attributes. It never drives geometry.
type Row struct {
	Index  int // 0-based
	Height float64
	Hidden bool
}

// inferCellType determines the CellType from a Go value.
func inferCellType(v any) CellType {
	if v == nil {
		return CellBlank
	}
	switch v.(type) {
	case bool:
		return CellBoolean
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return CellNumber
	default:
		return CellString
	}
}

// sortCells orders cells by their coordinate along d, ties broken by the other
// axis so the result is deterministic.
func sortCells(cells []*Cell, d Direction, reverse bool) {
	sort.SliceStable(cells, func(i, j int) bool {
		ai, aj := cells[i].addr, cells[j].addr
		pi, pj := ai.primary(d), aj.primary(d)
		if pi == pj {
			si, sj := ai.secondary(d), aj.secondary(d)
			if reverse {
				return si > sj
			}
			return si < sj
		}
		if reverse {
			return pi > pj
		}
		return pi < pj
	})
}
