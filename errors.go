package xlscope

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReference indicates an unparseable cell or range reference.
	ErrMalformedReference = errors.New("malformed reference")

	// ErrMalformedTemplate indicates a marker that does not follow the template grammar.
	ErrMalformedTemplate = errors.New("malformed template")

	// ErrOccupiedTarget indicates a move onto a cell that is already indexed.
	ErrOccupiedTarget = errors.New("target cell is occupied")

	// ErrSourceNotOccupied indicates a clone or move from an empty cell.
	ErrSourceNotOccupied = errors.New("source cell is not occupied")

	// ErrNotAnArray indicates a row or column template bound to a non-array value.
	ErrNotAnArray = errors.New("value is not an array")

	// ErrSheetNotFound indicates a lookup of a sheet that is not in the workbook.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrDuplicateSheet indicates a rename onto an existing sheet name.
	ErrDuplicateSheet = errors.New("sheet name must be unique")

	// ErrOverlappingExpansion indicates a shift that would cut through another scope.
	ErrOverlappingExpansion = errors.New("overlapping expansion")

	// ErrMaxDepth indicates nested repeating scopes deeper than the configured limit.
	ErrMaxDepth = errors.New("maximum scope depth exceeded")
)

// ReferenceError reports a reference that could not be parsed.
type ReferenceError struct {
	Ref string
	Err error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("malformed reference %q: %v", e.Ref, e.Err)
}

// Is matches ErrMalformedReference.
func (e *ReferenceError) Is(target error) bool { return target == ErrMalformedReference }

func (e *ReferenceError) Unwrap() error { return e.Err }

// CellError reports a registry invariant violation with the offending coordinates.
type CellError struct {
	Sheet string
	From  CellAddress
	To    CellAddress
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("sheet %q: %s → %s: %v", e.Sheet, e.From, e.To, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// ScopeError reports a failure while interpolating a single scope.
type ScopeError struct {
	Sheet    string
	Range    string
	Template string
	Value    string // stringified offending value, if any
	Err      error
}

func (e *ScopeError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("scope %s!%s %q: %v: %s", e.Sheet, e.Range, e.Template, e.Err, e.Value)
	}
	return fmt.Sprintf("scope %s!%s %q: %v", e.Sheet, e.Range, e.Template, e.Err)
}

func (e *ScopeError) Unwrap() error { return e.Err }

// SheetError reports a sheet lookup or rename failure.
type SheetError struct {
	Name string
	Err  error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %q: %v", e.Name, e.Err)
}

func (e *SheetError) Unwrap() error { return e.Err }

// isDataError reports whether err stems from the bound data rather than from the
// geometry bookkeeping. Data errors abort only the scope that raised them.
func isDataError(err error) bool {
	var se *ScopeError
	if !errors.As(err, &se) {
		return false
	}
	return !errors.Is(err, ErrOccupiedTarget) &&
		!errors.Is(err, ErrSourceNotOccupied) &&
		!errors.Is(err, ErrOverlappingExpansion) &&
		!errors.Is(err, ErrMaxDepth)
}
