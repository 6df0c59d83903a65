package xlscope

import (
	"regexp"
	"strings"
)

// TemplateKind is the repetition kind declared by a template marker.
type TemplateKind int

const (
	// NoTemplate means the string carries no marker.
	NoTemplate TemplateKind = iota
	// Scalar is "${…}": substitute one value.
	Scalar
	// ColumnRepeat is "|{…}": repeat once per element, growing Down.
	ColumnRepeat
	// RowRepeat is "_{…}": repeat once per element, growing Right.
	RowRepeat
)

// String returns the marker kind name.
func (k TemplateKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case ColumnRepeat:
		return "column"
	case RowRepeat:
		return "row"
	default:
		return "none"
	}
}

// direction returns the growth axis of a repeating kind.
func (k TemplateKind) direction() Direction {
	if k == RowRepeat {
		return Right
	}
	return Down
}

const (
	markerScalar = "${"
	markerColumn = "|{"
	markerRow    = "_{"
	markerEnd    = "}"
)

// rangeTemplatePattern matches IFERROR(N(<range>), "<template>") formulas.
var rangeTemplatePattern = regexp.MustCompile(`(?i)^IFERROR\(N\((.+)?\),\s*"(.*?)"\)$`)

// templatePattern extracts the expression from a single-marker template.
var templatePattern = regexp.MustCompile(`^[$|_]\{(.*?)\}$`)

// templateKind classifies a string by its two-character prefix.
func templateKind(s string) TemplateKind {
	if len(s) < 2 {
		return NoTemplate
	}
	switch s[:2] {
	case markerScalar:
		return Scalar
	case markerColumn:
		return ColumnRepeat
	case markerRow:
		return RowRepeat
	default:
		return NoTemplate
	}
}

// parseTemplate returns the kind and the inner expression of a template.
// ok is false when the string has a marker prefix but is not a single expression.
func parseTemplate(s string) (kind TemplateKind, path string, ok bool) {
	kind = templateKind(s)
	if kind == NoTemplate {
		return kind, "", false
	}
	m := templatePattern.FindStringSubmatch(s)
	if m == nil || strings.Contains(m[1], markerScalar) {
		return kind, "", false
	}
	return kind, m[1], true
}

// matchRangeTemplate returns the bound range reference and inner template of a
// range-template formula.
func matchRangeTemplate(formula string) (rangeRef, template string, ok bool) {
	m := rangeTemplatePattern.FindStringSubmatch(strings.TrimPrefix(formula, "="))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// scalarTemplate rewrites a repeating marker into a scalar one.
func scalarTemplate(s string) string {
	switch templateKind(s) {
	case ColumnRepeat, RowRepeat:
		return markerScalar + s[2:]
	}
	return s
}

// ExpressionSegment represents a part of a cell value: either literal text or an expression.
type ExpressionSegment struct {
	IsExpression bool
	Text         string // literal text or expression content (without delimiters)
}

// ParseExpressions splits a cell value into segments of literal text and "${…}"
// expressions. For example, "Name: ${e.Name}" → [{false, "Name: "}, {true, "e.Name"}]
func ParseExpressions(value string) []ExpressionSegment {
	var segments []ExpressionSegment
	remaining := value

	for {
		startIdx := strings.Index(remaining, markerScalar)
		if startIdx < 0 {
			break
		}

		searchFrom := startIdx + len(markerScalar)
		endIdx := findMatchingEnd(remaining[searchFrom:])
		if endIdx < 0 {
			break
		}
		endIdx += searchFrom

		if startIdx > 0 {
			segments = append(segments, ExpressionSegment{Text: remaining[:startIdx]})
		}
		segments = append(segments, ExpressionSegment{
			IsExpression: true,
			Text:         remaining[searchFrom:endIdx],
		})
		remaining = remaining[endIdx+len(markerEnd):]
	}

	if remaining != "" {
		segments = append(segments, ExpressionSegment{Text: remaining})
	}
	return segments
}

// findMatchingEnd finds the position of the closing brace, skipping nested
// brace pairs such as map literals inside the expression.
func findMatchingEnd(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}
