package spreadsheet

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// FontRecord is one entry of a workbook's font table.
type FontRecord struct {
	excelize.Font
}

func (r FontRecord) clone() FontRecord {
	c := r
	if r.ColorTheme != nil {
		theme := *r.ColorTheme
		c.ColorTheme = &theme
	}
	return c
}

// FillRecord is one entry of a workbook's fill table.
type FillRecord struct {
	excelize.Fill
}

func (r FillRecord) clone() FillRecord {
	c := r
	c.Color = slices.Clone(r.Color)
	return c
}

// FormatRecord is a cell format: a font reference, a fill reference and alignment.
// Any number of cells may share one FormatRecord, so a record is never changed
// once it is in a StyleTable.
type FormatRecord struct {
	Font      int
	Fill      int
	Alignment *excelize.Alignment

	// base is the format this record was derived from; it supplies borders,
	// number format and protection when the record is inserted.
	base int
}

func (r FormatRecord) clone() FormatRecord {
	c := r
	if r.Alignment != nil {
		a := *r.Alignment
		c.Alignment = &a
	}
	return c
}

// StyleTable is the style collaborator used by ApplyAttribute. Get methods are
// read-only; Add methods always hand back an index for the inserted record.
type StyleTable interface {
	Format(index int) (FormatRecord, error)
	Font(index int) (FontRecord, error)
	Fill(index int) (FillRecord, error)
	AddFont(FontRecord) (int, error)
	AddFill(FillRecord) (int, error)
	AddFormat(FormatRecord) (int, error)
}

// workbookStyles adapts an excelize workbook to StyleTable. Format indices are
// the workbook's cellXfs style IDs. Fonts and fills are kept in append-only
// arenas for the lifetime of the session, so every AddFont/AddFill allocates.
// Format reads a cellXfs entry into the arenas once and serves later lookups
// of the same index from formats.
type workbookStyles struct {
	file    *excelize.File
	fonts   []FontRecord
	fills   []FillRecord
	formats map[int]FormatRecord
}

func newWorkbookStyles(f *excelize.File) *workbookStyles {
	return &workbookStyles{file: f, formats: make(map[int]FormatRecord)}
}

func (s *workbookStyles) Format(index int) (FormatRecord, error) {
	if rec, ok := s.formats[index]; ok {
		return rec.clone(), nil
	}
	style, err := s.file.GetStyle(index)
	if err != nil {
		return FormatRecord{}, fmt.Errorf("%w: format %d: %v", ErrStyleLookup, index, err)
	}

	font := FontRecord{}
	if style.Font != nil {
		font.Font = *style.Font
	}
	fontIndex, _ := s.AddFont(font)
	fillIndex, _ := s.AddFill(FillRecord{Fill: style.Fill})

	rec := FormatRecord{Font: fontIndex, Fill: fillIndex, base: index}
	if style.Alignment != nil {
		a := *style.Alignment
		rec.Alignment = &a
	}
	s.formats[index] = rec
	return rec.clone(), nil
}

func (s *workbookStyles) Font(index int) (FontRecord, error) {
	if index < 0 || index >= len(s.fonts) {
		return FontRecord{}, fmt.Errorf("%w: font %d", ErrStyleLookup, index)
	}
	return s.fonts[index], nil
}

func (s *workbookStyles) Fill(index int) (FillRecord, error) {
	if index < 0 || index >= len(s.fills) {
		return FillRecord{}, fmt.Errorf("%w: fill %d", ErrStyleLookup, index)
	}
	return s.fills[index], nil
}

func (s *workbookStyles) AddFont(r FontRecord) (int, error) {
	s.fonts = append(s.fonts, r.clone())
	return len(s.fonts) - 1, nil
}

func (s *workbookStyles) AddFill(r FillRecord) (int, error) {
	s.fills = append(s.fills, r.clone())
	return len(s.fills) - 1, nil
}

func (s *workbookStyles) AddFormat(r FormatRecord) (int, error) {
	font, err := s.Font(r.Font)
	if err != nil {
		return 0, err
	}
	fill, err := s.Fill(r.Fill)
	if err != nil {
		return 0, err
	}

	// GetStyle returns a fresh copy, so filling it in does not touch the base record.
	style, err := s.file.GetStyle(r.base)
	if err != nil {
		return 0, fmt.Errorf("%w: base format %d: %v", ErrStyleLookup, r.base, err)
	}

	f := font.clone().Font
	style.Font = &f
	style.Fill = fill.clone().Fill
	style.Alignment = nil
	if r.Alignment != nil {
		a := *r.Alignment
		style.Alignment = &a
	}

	id, err := s.file.NewStyle(style)
	if err != nil {
		return 0, fmt.Errorf("%w: create format: %v", ErrStyleLookup, err)
	}
	return id, nil
}

// Color is an opaque RGB colour
type Color struct {
	R, G, B uint8
}

var hexColourPattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// ParseColor accepts "RRGGBB" or "#RRGGBB".
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if !hexColourPattern.MatchString(hex) {
		return Color{}, fmt.Errorf("invalid colour %q: expected RRGGBB", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// Hex renders the colour as "RRGGBB".
func (c Color) Hex() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// HorizontalAlignment is the horizontal placement of cell content
type HorizontalAlignment int

const (
	HorizontalUnchanged HorizontalAlignment = iota
	HorizontalLeft
	HorizontalCenter
	HorizontalRight
)

// VerticalAlignment is the vertical placement of cell content
type VerticalAlignment int

const (
	VerticalUnchanged VerticalAlignment = iota
	VerticalTop
	VerticalCenter
	VerticalBottom
)

var (
	horizontalNames = map[string]HorizontalAlignment{"": HorizontalUnchanged, "left": HorizontalLeft, "center": HorizontalCenter, "centre": HorizontalCenter, "right": HorizontalRight}
	verticalNames   = map[string]VerticalAlignment{"": VerticalUnchanged, "top": VerticalTop, "center": VerticalCenter, "centre": VerticalCenter, "bottom": VerticalBottom}
)

// ParseHorizontal maps "left", "center" or "right" to a HorizontalAlignment; "" means unchanged.
func ParseHorizontal(s string) (HorizontalAlignment, error) {
	h, ok := horizontalNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return HorizontalUnchanged, fmt.Errorf("invalid horizontal alignment %q: expected left, center or right", s)
	}
	return h, nil
}

// ParseVertical maps "top", "center" or "bottom" to a VerticalAlignment; "" means unchanged.
func ParseVertical(s string) (VerticalAlignment, error) {
	v, ok := verticalNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return VerticalUnchanged, fmt.Errorf("invalid vertical alignment %q: expected top, center or bottom", s)
	}
	return v, nil
}

func (h HorizontalAlignment) xlsx() string {
	switch h {
	case HorizontalLeft:
		return "left"
	case HorizontalCenter:
		return "center"
	case HorizontalRight:
		return "right"
	}
	return ""
}

func (v VerticalAlignment) xlsx() string {
	switch v {
	case VerticalTop:
		return "top"
	case VerticalCenter:
		return "center"
	case VerticalBottom:
		return "bottom"
	}
	return ""
}
