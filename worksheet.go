package xlscope

// Worksheet is the per-sheet cell and row registry. It indexes cells by address,
// by row and by column, and keeps the three indices consistent across every move
// and clone. It has no knowledge of scopes.
type Worksheet struct {
	name   string
	cells  map[CellAddress]*Cell
	byRow  map[int]map[int]*Cell // row → col → cell
	byCol  map[int]map[int]*Cell // col → row → cell
	rows   map[int]*Row
	ranges []*Cell // range-template cells, kept out of the ordinary index

	// loaded holds every address present in the underlying document, so that
	// vacated cells can be cleared on save.
	loaded map[CellAddress]struct{}
}

// NewWorksheet creates an empty registry.
func NewWorksheet(name string) *Worksheet {
	return &Worksheet{
		name:   name,
		cells:  make(map[CellAddress]*Cell),
		byRow:  make(map[int]map[int]*Cell),
		byCol:  make(map[int]map[int]*Cell),
		rows:   make(map[int]*Row),
		loaded: make(map[CellAddress]struct{}),
	}
}

// Name returns the sheet name.
func (ws *Worksheet) Name() string { return ws.name }

// Cell returns the cell at addr or nil.
func (ws *Worksheet) Cell(addr CellAddress) *Cell { return ws.cells[addr] }

// CellAt returns the cell at a textual reference like "B3", or nil.
func (ws *Worksheet) CellAt(ref string) *Cell {
	addr, err := ParseCellAddress(ref)
	if err != nil {
		return nil
	}
	return ws.cells[addr]
}

// Occupied reports whether a cell is indexed at addr.
func (ws *Worksheet) Occupied(addr CellAddress) bool {
	_, ok := ws.cells[addr]
	return ok
}

// Cells returns all ordinary cells in row-major order.
func (ws *Worksheet) Cells() []*Cell {
	out := make([]*Cell, 0, len(ws.cells))
	for _, c := range ws.cells {
		out = append(out, c)
	}
	sortCells(out, Down, false)
	return out
}

// Ranges returns the range-template cells extracted at load time.
func (ws *Worksheet) Ranges() []*Cell { return ws.ranges }

// RowCells returns the cells of a row sorted by column.
func (ws *Worksheet) RowCells(row int) []*Cell {
	out := make([]*Cell, 0, len(ws.byRow[row]))
	for _, c := range ws.byRow[row] {
		out = append(out, c)
	}
	sortCells(out, Right, false)
	return out
}

// ColumnCells returns the cells of a column sorted by row.
func (ws *Worksheet) ColumnCells(col int) []*Cell {
	out := make([]*Cell, 0, len(ws.byCol[col]))
	for _, c := range ws.byCol[col] {
		out = append(out, c)
	}
	sortCells(out, Down, false)
	return out
}

// Row returns the stored row attributes or nil.
func (ws *Worksheet) Row(index int) *Row { return ws.rows[index] }

func (ws *Worksheet) addRow(r *Row) { ws.rows[r.Index] = r }

// addCell indexes c under its own address in all three indices.
func (ws *Worksheet) addCell(c *Cell) {
	a := c.addr
	ws.cells[a] = c
	if ws.byRow[a.Row] == nil {
		ws.byRow[a.Row] = make(map[int]*Cell)
	}
	if ws.byCol[a.Col] == nil {
		ws.byCol[a.Col] = make(map[int]*Cell)
	}
	ws.byRow[a.Row][a.Col] = c
	ws.byCol[a.Col][a.Row] = c
}

// removeCell drops c from all three indices.
func (ws *Worksheet) removeCell(c *Cell) {
	a := c.addr
	delete(ws.cells, a)
	if m := ws.byRow[a.Row]; m != nil {
		delete(m, a.Col)
		if len(m) == 0 {
			delete(ws.byRow, a.Row)
		}
	}
	if m := ws.byCol[a.Col]; m != nil {
		delete(m, a.Row)
		if len(m) == 0 {
			delete(ws.byCol, a.Col)
		}
	}
}

// MoveCell relocates the cell at from to to. It fails with ErrOccupiedTarget if to
// is indexed, leaving both cells untouched.
func (ws *Worksheet) MoveCell(from, to CellAddress) error {
	if ws.Occupied(to) {
		return &CellError{Sheet: ws.name, From: from, To: to, Err: ErrOccupiedTarget}
	}
	c := ws.cells[from]
	if c == nil {
		return &CellError{Sheet: ws.name, From: from, To: to, Err: ErrSourceNotOccupied}
	}
	ws.removeCell(c)
	c.addr = to
	ws.addCell(c)
	return nil
}

// CloneCell duplicates the cell at from under to, replacing whatever was indexed
// there. It fails with ErrSourceNotOccupied if from is empty.
func (ws *Worksheet) CloneCell(from, to CellAddress) error {
	c := ws.cells[from]
	if c == nil {
		return &CellError{Sheet: ws.name, From: from, To: to, Err: ErrSourceNotOccupied}
	}
	if old := ws.cells[to]; old != nil {
		ws.removeCell(old)
	}
	ws.addCell(c.copyTo(to))
	return nil
}

// InsertCellsShifting moves every cell at or after origin along d (same off-axis
// coordinate) one unit further, farthest first.
func (ws *Worksheet) InsertCellsShifting(origin CellAddress, d Direction) error {
	var after []*Cell
	for a, c := range ws.cells {
		if atOrAfterAlongAxis(a, origin, d) {
			after = append(after, c)
		}
	}
	return ws.shiftCells(after, Offset(1, d), d)
}

// CopyRange duplicates every cell of from into to. Cells at or after to's start
// within to's off-axis span are first shifted out of the way by from's size along d.
func (ws *Worksheet) CopyRange(from, to RangeAddress, d Direction) error {
	delta := to.First.Sub(from.First)
	size := from.Dim(d)

	var after []*Cell
	for a, c := range ws.cells {
		if cellAtOrAfterRange(a, to, d) {
			after = append(after, c)
		}
	}
	if err := ws.shiftCells(after, Offset(size, d), d); err != nil {
		return err
	}

	var inside []*Cell
	for a, c := range ws.cells {
		if from.InRange(a) {
			inside = append(inside, c)
		}
	}
	sortCells(inside, d, false)
	for _, c := range inside {
		if err := ws.CloneCell(c.addr, c.addr.Add(delta)); err != nil {
			return err
		}
	}
	return nil
}

// ClearRange blanks the values of every cell in r, keeping style and formula.
func (ws *Worksheet) ClearRange(r RangeAddress) {
	for a, c := range ws.cells {
		if r.InRange(a) {
			c.setValue(nil)
		}
	}
}

// shiftCells moves cells by delta, processing them farthest first along d so no
// target collides with a cell that has not moved yet.
func (ws *Worksheet) shiftCells(cells []*Cell, delta CellAddress, d Direction) error {
	sortCells(cells, d, true)
	for _, c := range cells {
		if err := ws.MoveCell(c.addr, c.addr.Add(delta)); err != nil {
			return err
		}
	}
	return nil
}
