package xlscope

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// HyperlinkValue is a cell value that is written as a clickable link. A URL that
// starts with "#" points inside the workbook, e.g. "#Sheet2!A1".
type HyperlinkValue struct {
	URL     string
	Display string
}

// String returns the text shown in the cell.
func (h HyperlinkValue) String() string {
	if h.Display != "" {
		return h.Display
	}
	return h.URL
}

// Hyperlink builds a HyperlinkValue. In templates: ${hyperlink(row.url, row.title)}
func Hyperlink(url, display string) HyperlinkValue {
	return HyperlinkValue{URL: url, Display: display}
}

// linkTarget returns excelize's link type and target for h.
func (h HyperlinkValue) linkTarget() (linkType, target string) {
	if rest, ok := strings.CutPrefix(h.URL, "#"); ok {
		return "Location", rest
	}
	return "External", h.URL
}

// writeHyperlink stores h's display text and link at ref.
func writeHyperlink(f *excelize.File, sheet, ref string, h HyperlinkValue) error {
	if err := f.SetCellValue(sheet, ref, h.String()); err != nil {
		return err
	}
	linkType, target := h.linkTarget()
	display := h.String()
	return f.SetCellHyperLink(sheet, ref, target, linkType, excelize.HyperlinkOpts{Display: &display})
}
