package xlscope

import (
	"math"

	"github.com/xuri/excelize/v2"
)

const (
	defaultFontSize = 11.0
	minRowHeight    = 12.8
)

// rowHeightForFont approximates the height in points a row needs to show text of
// the given font size.
func rowHeightForFont(size float64) float64 {
	return math.Max(1.1776412347*size+0.88468841, minRowHeight)
}

// fontSizes resolves and caches the font size of each style ID.
type fontSizes struct {
	file  *excelize.File
	sizes map[int]float64
}

func newFontSizes(f *excelize.File) *fontSizes {
	return &fontSizes{file: f, sizes: make(map[int]float64)}
}

// size returns the font size of a style, falling back to the workbook default.
func (fs *fontSizes) size(styleID int) float64 {
	if s, ok := fs.sizes[styleID]; ok {
		return s
	}
	size := defaultFontSize
	if style, err := fs.file.GetStyle(styleID); err == nil && style != nil && style.Font != nil && style.Font.Size > 0 {
		size = style.Font.Size
	}
	fs.sizes[styleID] = size
	return size
}

// applyRowHeights sets every occupied row's height from the largest font among
// its cells.
func applyRowHeights(f *excelize.File, ws *Worksheet, fs *fontSizes) error {
	for row, cells := range ws.byRow {
		height := minRowHeight
		for _, c := range cells {
			height = math.Max(height, rowHeightForFont(fs.size(c.Style)))
		}
		if err := f.SetRowHeight(ws.Name(), row+1, height); err != nil {
			return err
		}
	}
	return nil
}
