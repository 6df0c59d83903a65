package xlscope

// CellListener is notified around every cell value written during evaluation.
// Implement it to log, audit or veto writes.
type CellListener interface {
	// BeforeSetCell is called before value is stored in cell. Return false to
	// leave the cell unchanged.
	BeforeSetCell(sheet string, cell *Cell, value any) bool

	// AfterSetCell is called once the value has been stored.
	AfterSetCell(sheet string, cell *Cell)
}
