package xlscope

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestInterpolate_RowCell(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "B2", "_{letters}")
		f.SetCellValue(sheet1, "C2", "c")
		f.SetCellValue(sheet1, "D2", "d")
	})

	require.NoError(t, wb.Evaluate(map[string]any{"letters": []any{"x", "y", "z"}}))

	assert.Equal(t, "x", valueAt(t, wb, "B2"))
	assert.Equal(t, "y", valueAt(t, wb, "C2"))
	assert.Equal(t, "z", valueAt(t, wb, "D2"))
	assert.Equal(t, "c", valueAt(t, wb, "E2"), "pre-existing cells shift right")
	assert.Equal(t, "d", valueAt(t, wb, "F2"))

	s := scopeAt(wb, "B2:D2")
	require.NotNil(t, s, "scope grows by one cell per extra element")
	assert.Equal(t, CellScope, s.Kind)

	out := reopen(t, wb)
	for ref, want := range map[string]string{"B2": "x", "C2": "y", "D2": "z", "E2": "c", "F2": "d"} {
		got, err := out.GetCellValue(sheet1, ref)
		require.NoError(t, err)
		assert.Equal(t, want, got, ref)
	}
}

func TestInterpolate_ColumnCellShiftsScopesBelow(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "|{names}")
		f.SetCellValue(sheet1, "A3", "${total}")
		f.SetCellValue(sheet1, "B3", "beside")
	})

	require.NoError(t, wb.Evaluate(map[string]any{
		"names": []string{"a", "b", "c"},
		"total": 3,
	}))

	assert.Equal(t, "a", valueAt(t, wb, "A1"))
	assert.Equal(t, "b", valueAt(t, wb, "A2"))
	assert.Equal(t, "c", valueAt(t, wb, "A3"))
	assert.Nil(t, valueAt(t, wb, "A4"))
	assert.Equal(t, 3, valueAt(t, wb, "A5"))
	assert.Equal(t, "beside", valueAt(t, wb, "B3"), "other columns stay put")
	assert.NotNil(t, scopeAt(wb, "A5"))
	assert.NotNil(t, scopeAt(wb, "A1:A3"))
}

func TestInterpolate_RangeDown(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A4", "Name")
		f.SetCellValue(sheet1, "A5", "${name}")
		f.SetCellValue(sheet1, "C5", "each")
		f.SetCellValue(sheet1, "B6", "${self.qty}")
		f.SetCellFormula(sheet1, "F5", rangeTemplate("A5:D6", "|{items}"))
		f.SetCellValue(sheet1, "A11", "${total}")
	})

	items := []any{
		map[string]any{"name": "a", "qty": 1},
		map[string]any{"name": "b", "qty": 2},
		map[string]any{"name": "c", "qty": 3},
	}
	require.NoError(t, wb.Evaluate(map[string]any{"items": items, "total": 6}))

	assert.Equal(t, "Name", valueAt(t, wb, "A4"))
	for i, want := range []struct {
		name string
		qty  int
	}{{"a", 1}, {"b", 2}, {"c", 3}} {
		row := 5 + 2*i
		assert.Equal(t, want.name, valueAt(t, wb, "A"+strconv.Itoa(row)))
		assert.Equal(t, "each", valueAt(t, wb, "C"+strconv.Itoa(row)))
		assert.Equal(t, want.qty, valueAt(t, wb, "B"+strconv.Itoa(row+1)))
	}

	assert.Nil(t, valueAt(t, wb, "A11"))
	assert.Equal(t, 6, valueAt(t, wb, "A15"), "sibling below moves down by the added rows")
	assert.NotNil(t, scopeAt(wb, "A15"))

	parent := scopeAt(wb, "A5:D10")
	require.NotNil(t, parent)
	assert.Equal(t, "${items}", parent.Template)
	children := wb.Children(parent)
	require.Len(t, children, 3)
	for i, c := range children {
		assert.Equal(t, "${self["+strconv.Itoa(i)+"]}", c.Template)
		assert.Same(t, parent, wb.Parent(c))
	}
	assert.Equal(t, "A9:D10", children[2].Ref())

	out := reopen(t, wb)
	formula, err := out.GetCellFormula(sheet1, "F5")
	require.NoError(t, err)
	assert.Empty(t, formula, "range templates are removed from the output")
	v, _ := out.GetCellValue(sheet1, "A15")
	assert.Equal(t, "6", v)
}

func TestInterpolate_RangeRight(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "B1", "${name}")
		f.SetCellValue(sheet1, "B2", "${n}")
		f.SetCellValue(sheet1, "D1", "${x}")
		f.SetCellFormula(sheet1, "A5", rangeTemplate("B1:B2", "_{cols}"))
	})

	require.NoError(t, wb.Evaluate(map[string]any{
		"cols": []any{
			map[string]any{"name": "a", "n": 1},
			map[string]any{"name": "b", "n": 2},
			map[string]any{"name": "c", "n": 3},
		},
		"x": "X",
	}))

	assert.Equal(t, "a", valueAt(t, wb, "B1"))
	assert.Equal(t, "b", valueAt(t, wb, "C1"))
	assert.Equal(t, "c", valueAt(t, wb, "D1"))
	assert.Equal(t, 1, valueAt(t, wb, "B2"))
	assert.Equal(t, 3, valueAt(t, wb, "D2"))
	assert.Equal(t, "X", valueAt(t, wb, "F1"))
	assert.NotNil(t, scopeAt(wb, "B1:D2"))
}

func TestInterpolate_NestedRanges(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "Orders")
		f.SetCellValue(sheet1, "A2", "${id}")
		f.SetCellValue(sheet1, "A3", "${sku}")
		f.SetCellValue(sheet1, "B3", "${qty}")
		f.SetCellValue(sheet1, "A4", "end")
		f.SetCellValue(sheet1, "A6", "${footer}")
		f.SetCellFormula(sheet1, "E2", rangeTemplate("A2:C4", "|{orders}"))
		f.SetCellFormula(sheet1, "E3", rangeTemplate("A3:C3", "|{lines}"))
	})

	data := map[string]any{
		"orders": []any{
			map[string]any{"id": 1, "lines": []any{
				map[string]any{"sku": "a", "qty": 1},
				map[string]any{"sku": "b", "qty": 2},
			}},
			map[string]any{"id": 2, "lines": []any{
				map[string]any{"sku": "c", "qty": 3},
			}},
		},
		"footer": "done",
	}
	require.NoError(t, wb.Evaluate(data))

	want := map[string]any{
		"A1": "Orders",
		"A2": 1,
		"A3": "a", "B3": 1,
		"A4": "b", "B4": 2,
		"A5": "end",
		"A6": 2,
		"A7": "c", "B7": 3,
		"A8":  "end",
		"A10": "done",
	}
	ws, err := wb.Sheet(sheet1)
	require.NoError(t, err)
	assert.Equal(t, want, sheetValues(ws))

	assert.NotNil(t, scopeAt(wb, "A2:C8"), "outer scope covers both orders")
	assert.NotNil(t, scopeAt(wb, "A3:C4"), "first order's lines grew by one row")
	assert.NotNil(t, scopeAt(wb, "A6:C8"), "second order moved down")
	assert.NotNil(t, scopeAt(wb, "A10"))
}

func TestInterpolate_EmptyArray(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A2", "${name}")
		f.SetCellValue(sheet1, "B2", "label")
		f.SetCellFormula(sheet1, "E2", rangeTemplate("A2:B2", "|{items}"))
		f.SetCellValue(sheet1, "A3", "${after}")
		f.SetCellValue(sheet1, "C5", "|{none}")
	})

	require.NoError(t, wb.Evaluate(map[string]any{
		"items": []any{},
		"none":  []string{},
		"after": "after",
	}))

	assert.Nil(t, valueAt(t, wb, "A2"))
	assert.Nil(t, valueAt(t, wb, "B2"))
	assert.Nil(t, valueAt(t, wb, "C5"))
	assert.Equal(t, "after", valueAt(t, wb, "A3"), "nothing moves")
	assert.Empty(t, wb.Children(scopeAt(wb, "A2:B2")))

	out := reopen(t, wb)
	v, _ := out.GetCellValue(sheet1, "B2")
	assert.Empty(t, v)
}

func TestInterpolate_NilIsNoop(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "|{missing}")
		f.SetCellValue(sheet1, "A2", "${title}")
	})

	require.NoError(t, wb.Evaluate(map[string]any{"title": "T"}))
	assert.Equal(t, "|{missing}", valueAt(t, wb, "A1"))
	assert.Equal(t, "T", valueAt(t, wb, "A2"))
}

func TestInterpolate_Idempotent(t *testing.T) {
	build := func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "title")
		f.SetCellValue(sheet1, "B2", 3.5)
		f.SetCellValue(sheet1, "C3", true)
		f.SetCellFormula(sheet1, "D4", "B2*2")
	}
	wb := openTemplate(t, build)
	ws, err := wb.Sheet(sheet1)
	require.NoError(t, err)
	before := sheetValues(ws)

	require.NoError(t, wb.Evaluate(map[string]any{"unused": 1}))
	assert.Equal(t, before, sheetValues(ws))
	assert.Equal(t, "title", before["A1"])
	assert.Equal(t, 3.5, before["B2"])
	assert.Equal(t, true, before["C3"])
	assert.Equal(t, CellFormula, ws.CellAt("D4").Type)

	out := reopen(t, wb)
	v, _ := out.GetCellValue(sheet1, "B2")
	assert.Equal(t, "3.5", v)
	v, _ = out.GetCellValue(sheet1, "C3")
	assert.Equal(t, "TRUE", v)
	formula, _ := out.GetCellFormula(sheet1, "D4")
	assert.Equal(t, "B2*2", formula)
}

func TestInterpolate_NotAnArrayDoesNotAbortSiblings(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "_{name}")
		f.SetCellValue(sheet1, "B3", "${other}")
	})

	err := wb.Evaluate(map[string]any{"name": "str", "other": "ok"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAnArray)

	var se *ScopeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "A1", se.Range)
	assert.Equal(t, `"str"`, se.Value)
	assert.Equal(t, "_{name}", se.Template)

	assert.Equal(t, "_{name}", valueAt(t, wb, "A1"), "failed scope is left as is")
	assert.Equal(t, "ok", valueAt(t, wb, "B3"))
}

func TestInterpolate_ExpressionErrors(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "${1 +}")
		f.SetCellValue(sheet1, "A2", "${ok}")
		f.SetCellValue(sheet1, "A3", "|{a} and ${b}")
	})

	err := wb.Evaluate(map[string]any{"ok": "fine"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedTemplate)
	assert.Contains(t, err.Error(), "compile expression")
	assert.Equal(t, "fine", valueAt(t, wb, "A2"))

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 2)
}

func TestInterpolate_OverlappingExpansion(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "|{names}")
		f.SetCellFormula(sheet1, "E3", rangeTemplate("A3:C4", "|{rows}"))
	})

	err := wb.Evaluate(map[string]any{"names": []any{"a", "b", "c"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverlappingExpansion)
	assert.Contains(t, err.Error(), "A3:C4")
	assert.False(t, isDataError(err))
}

func TestInterpolate_MaxDepth(t *testing.T) {
	build := func(f *excelize.File) {
		f.SetCellValue(sheet1, "B2", "${x}")
		f.SetCellFormula(sheet1, "F1", rangeTemplate("A1:D4", "${outer}"))
		f.SetCellFormula(sheet1, "F2", rangeTemplate("B2:C3", "${inner}"))
	}
	data := map[string]any{"outer": map[string]any{"inner": map[string]any{"x": 1}}}

	wb := openTemplate(t, build)
	err := wb.Evaluate(data, WithMaxDepth(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxDepth)

	wb = openTemplate(t, build)
	require.NoError(t, wb.Evaluate(data))
	assert.Equal(t, 1, valueAt(t, wb, "B2"))
}

func TestInterpolate_ScopeWithoutMarkerIsSkipped(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "${x}")
		f.SetCellFormula(sheet1, "F1", rangeTemplate("A1:B2", "plain"))
		f.SetCellValue(sheet1, "A4", "${x}")
	})

	require.NoError(t, wb.Evaluate(map[string]any{"x": "X"}))
	assert.Equal(t, "${x}", valueAt(t, wb, "A1"))
	assert.Equal(t, "X", valueAt(t, wb, "A4"))
}

type recordingListener struct {
	before []string
	after  []string
}

func (l *recordingListener) BeforeSetCell(sheet string, cell *Cell, value any) bool {
	l.before = append(l.before, sheet+"!"+cell.Ref())
	return value != "secret"
}

func (l *recordingListener) AfterSetCell(sheet string, cell *Cell) {
	l.after = append(l.after, sheet+"!"+cell.Ref())
}

func TestInterpolate_Listener(t *testing.T) {
	l := &recordingListener{}
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "${a}")
		f.SetCellValue(sheet1, "A2", "${b}")
	}, WithListener(l))

	require.NoError(t, wb.Evaluate(map[string]any{"a": "secret", "b": "public"}))
	assert.Equal(t, "${a}", valueAt(t, wb, "A1"), "vetoed")
	assert.Equal(t, "public", valueAt(t, wb, "A2"))
	assert.Equal(t, []string{"Sheet1!A1", "Sheet1!A2"}, l.before)
	assert.Equal(t, []string{"Sheet1!A2"}, l.after)
}

func TestInterpolate_MixedContent(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "${first} ${last}")
		f.SetCellValue(sheet1, "A2", "${n} items")
		f.SetCellValue(sheet1, "A3", "${missing}x")
		f.SetCellValue(sheet1, "A4", "Total: ${n}")
	})

	require.NoError(t, wb.Evaluate(map[string]any{"first": "Ada", "last": "Lovelace", "n": 3}))
	assert.Equal(t, "Ada Lovelace", valueAt(t, wb, "A1"))
	assert.Equal(t, "3 items", valueAt(t, wb, "A2"))
	assert.Equal(t, "x", valueAt(t, wb, "A3"))
	assert.Equal(t, "Total: ${n}", valueAt(t, wb, "A4"), "only marker-prefixed cells are templates")
}

func TestInterpolate_GlobalsAndBuiltins(t *testing.T) {
	build := func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "${formatDate(created, 'd mmmm yyyy')}")
		f.SetCellValue(sheet1, "A2", "${shout(name)}")
		f.SetCellValue(sheet1, "A3", "${formatDate(created)}")
	}
	data := map[string]any{"created": "2024-03-05", "name": "ada"}
	shout := WithGlobal("shout", func(s string) string { return strings.ToUpper(s) + "!" })

	wb := openTemplate(t, build, shout)
	require.NoError(t, wb.Evaluate(data))
	assert.Equal(t, "5 March 2024", valueAt(t, wb, "A1"))
	assert.Equal(t, "ADA!", valueAt(t, wb, "A2"))
	assert.Equal(t, "2024-03-05", valueAt(t, wb, "A3"))

	wb = openTemplate(t, build, shout, WithDateLocale("de"))
	require.NoError(t, wb.Evaluate(data))
	assert.Equal(t, "5 März 2024", valueAt(t, wb, "A1"))
}

func TestInterpolate_StructData(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "${Title}")
		f.SetCellValue(sheet1, "A2", "|{Names}")
	})

	data := struct {
		Title string
		Names []string
	}{"Team", []string{"Ada", "Grace"}}
	require.NoError(t, wb.Evaluate(data))
	assert.Equal(t, "Team", valueAt(t, wb, "A1"))
	assert.Equal(t, "Ada", valueAt(t, wb, "A2"))
	assert.Equal(t, "Grace", valueAt(t, wb, "A3"))
}

func TestInterpolate_MovedFormulaKeepsText(t *testing.T) {
	wb := openTemplate(t, func(f *excelize.File) {
		f.SetCellValue(sheet1, "A1", "|{names}")
		f.SetCellFormula(sheet1, "A2", "1+1")
	})

	require.NoError(t, wb.Evaluate(map[string]any{"names": []any{"a", "b"}}))

	out := reopen(t, wb)
	formula, _ := out.GetCellFormula(sheet1, "A3")
	assert.Equal(t, "1+1", formula)
	formula, _ = out.GetCellFormula(sheet1, "A2")
	assert.Empty(t, formula)
	v, _ := out.GetCellValue(sheet1, "A2")
	assert.Equal(t, "b", v)
}
