package xlscope

import (
	"fmt"
	"sort"
)

// Severity indicates the severity of a validation issue.
type Severity int

const (
	SeverityError   Severity = iota // Template will fail at runtime
	SeverityWarning                 // Template may produce unexpected results
)

// ValidationIssue is a single problem found in a template.
type ValidationIssue struct {
	Severity Severity
	Sheet    string
	Ref      string
	Message  string
}

// String formats the issue as "[ERROR] Sheet1!A2: message" or "[WARN] ...".
func (v ValidationIssue) String() string {
	sev := "ERROR"
	if v.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s!%s: %s", sev, v.Sheet, v.Ref, v.Message)
}

// Validate checks a template without data. A non-nil error means the template
// could not be opened or its range references could not be parsed.
func Validate(templatePath string, opts ...Option) ([]ValidationIssue, error) {
	wb, err := Open(templatePath, opts...)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.Validate(), nil
}

// Validate performs static checks on the scope tree: marker grammar, expression
// syntax and partially overlapping scopes.
func (wb *Workbook) Validate() []ValidationIssue {
	scopes := wb.Scopes()
	var issues []ValidationIssue
	for _, s := range scopes {
		issues = append(issues, validateTemplate(s)...)
	}
	issues = append(issues, validateOverlaps(scopes)...)
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Sheet != issues[j].Sheet {
			return issues[i].Sheet < issues[j].Sheet
		}
		return issues[i].Ref < issues[j].Ref
	})
	return issues
}

// validateTemplate checks the marker grammar and compiles every expression.
func validateTemplate(s *Scope) []ValidationIssue {
	issue := func(sev Severity, format string, args ...any) ValidationIssue {
		return ValidationIssue{Severity: sev, Sheet: s.Sheet, Ref: s.Ref(), Message: fmt.Sprintf(format, args...)}
	}

	kind, path, ok := parseTemplate(s.Template)
	switch {
	case kind == NoTemplate:
		return []ValidationIssue{issue(SeverityWarning, "range template %q has no marker and is ignored", s.Template)}
	case ok:
		if path == "" {
			return []ValidationIssue{issue(SeverityWarning, "empty expression in %q", s.Template)}
		}
		if err := compileCheck(path); err != nil {
			return []ValidationIssue{issue(SeverityError, "invalid expression syntax %q: %v", path, err)}
		}
		return nil
	case kind != Scalar || s.Kind == RangeScope:
		return []ValidationIssue{issue(SeverityError, "%s template %q must hold exactly one expression", kind, s.Template)}
	}

	var issues []ValidationIssue
	for _, seg := range ParseExpressions(s.Template) {
		if !seg.IsExpression {
			continue
		}
		if err := compileCheck(seg.Text); err != nil {
			issues = append(issues, issue(SeverityError, "invalid expression syntax %q: %v", seg.Text, err))
		}
	}
	return issues
}

// validateOverlaps reports scopes on the same sheet that intersect without one
// containing the other. Such scopes are not nested in the tree and shifting one
// of them corrupts the other.
func validateOverlaps(scopes []*Scope) []ValidationIssue {
	var issues []ValidationIssue
	for i, a := range scopes {
		for _, b := range scopes[i+1:] {
			if a.Sheet != b.Sheet || !intersects(a.Range, b.Range) {
				continue
			}
			if a.Range.ContainsRange(b.Range) || b.Range.ContainsRange(a.Range) {
				continue
			}
			issues = append(issues, ValidationIssue{
				Severity: SeverityError,
				Sheet:    a.Sheet,
				Ref:      a.Ref(),
				Message:  fmt.Sprintf("scope partially overlaps %s", b.Ref()),
			})
		}
	}
	return issues
}

func intersects(a, b RangeAddress) bool {
	return a.spanOverlaps(b, Down) && a.spanOverlaps(b, Right)
}
