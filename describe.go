package xlscope

import (
	"fmt"
	"strings"
)

// Describe opens a template and returns a human-readable tree of its scopes.
// Useful for debugging templates during development.
func Describe(templatePath string, opts ...Option) (string, error) {
	wb, err := Open(templatePath, opts...)
	if err != nil {
		return "", err
	}
	defer wb.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "Template: %s\n", templatePath)
	b.WriteString(wb.Describe())
	return b.String(), nil
}

// Describe returns the scope tree, grouped by sheet:
//
//	Sheet1
//	  A5:D6 range "|{orders}" repeats DOWN (2x4)
//	    B5 cell "${self.id}"
func (wb *Workbook) Describe() string {
	var b strings.Builder
	top := wb.Children(nil)
	for _, name := range wb.SheetNames() {
		b.WriteString(name)
		b.WriteByte('\n')
		for _, s := range top {
			if s.Sheet == name {
				wb.describeScope(&b, s, 1)
			}
		}
	}
	return b.String()
}

func (wb *Workbook) describeScope(b *strings.Builder, s *Scope, indent int) {
	prefix := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%s%s %s %q", prefix, s.Ref(), s.Kind, s.Template)
	if kind := templateKind(s.Template); kind == ColumnRepeat || kind == RowRepeat {
		fmt.Fprintf(b, " repeats %s", kind.direction())
	}
	if s.Kind == RangeScope {
		fmt.Fprintf(b, " (%dx%d)", s.Range.Dim(Down), s.Range.Dim(Right))
	}
	b.WriteByte('\n')
	for _, c := range wb.Children(s) {
		wb.describeScope(b, c, indent+1)
	}
}
