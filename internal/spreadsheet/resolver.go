package spreadsheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// StyledCells gives ApplyAttribute access to per-cell format indices and the
// table they point into.
type StyledCells interface {
	Styles() StyleTable
	CellStyle(row, col int) (int, error)
	SetCellStyle(row, col, format int) error
}

// Mutation is a single style attribute change. The set of implementations is closed.
type Mutation interface {
	name() string
}

type fontMutation interface {
	Mutation
	applyFont(*FontRecord)
}

type fillMutation interface {
	Mutation
	applyFill(*FillRecord)
}

type formatMutation interface {
	Mutation
	applyFormat(*FormatRecord)
}

// SetFontColor sets the font colour.
type SetFontColor struct{ Color Color }

// SetFontSize sets the font size in points.
type SetFontSize struct{ Points float64 }

// SetBold turns bold on or off.
type SetBold struct{ On bool }

// SetItalic turns italic on or off.
type SetItalic struct{ On bool }

// SetUnderline turns single underline on or off.
type SetUnderline struct{ On bool }

// SetFillColor sets a solid background fill.
type SetFillColor struct{ Color Color }

// SetAlignment sets horizontal and/or vertical alignment. Unchanged axes keep their value.
type SetAlignment struct {
	Horizontal HorizontalAlignment
	Vertical   VerticalAlignment
}

func (SetFontColor) name() string { return "font_color" }
func (SetFontSize) name() string  { return "font_size" }
func (SetBold) name() string      { return "bold" }
func (SetItalic) name() string    { return "italic" }
func (SetUnderline) name() string { return "underline" }
func (SetFillColor) name() string { return "fill_color" }
func (SetAlignment) name() string { return "alignment" }

func (m SetFontColor) applyFont(f *FontRecord) {
	f.Color = m.Color.Hex()
	f.ColorTheme = nil
	f.ColorIndexed = 0
	f.ColorTint = 0
}

func (m SetFontSize) applyFont(f *FontRecord) { f.Size = m.Points }
func (m SetBold) applyFont(f *FontRecord)     { f.Bold = m.On }
func (m SetItalic) applyFont(f *FontRecord)   { f.Italic = m.On }

func (m SetUnderline) applyFont(f *FontRecord) {
	if m.On {
		f.Underline = "single"
	} else {
		f.Underline = ""
	}
}

func (m SetFillColor) applyFill(f *FillRecord) {
	f.Type = "pattern"
	f.Pattern = 1
	f.Color = []string{m.Color.Hex()}
}

func (m SetAlignment) applyFormat(r *FormatRecord) {
	if r.Alignment == nil {
		r.Alignment = &excelize.Alignment{}
	}
	if h := m.Horizontal.xlsx(); h != "" {
		r.Alignment.Horizontal = h
	}
	if v := m.Vertical.xlsx(); v != "" {
		r.Alignment.Vertical = v
	}
}

// ApplyAttribute changes one style attribute of one cell without touching any
// other cell. The cell's current format and the affected sub-record are
// cloned, changed and inserted as new records; only the final reassignment of
// the cell's format index is visible, and it happens only if everything
// before it succeeded.
func ApplyAttribute(cells StyledCells, row, col int, m Mutation) error {
	ref, err := CellName(row, col)
	if err != nil {
		return err
	}
	if m == nil {
		return &StyleError{Operation: "apply", Cell: ref, Cause: fmt.Errorf("%w: no mutation given", ErrStyleLookup)}
	}

	styles := cells.Styles()
	current, err := cells.CellStyle(row, col)
	if err != nil {
		return &StyleError{Operation: m.name(), Cell: ref, Cause: err}
	}
	format, err := styles.Format(current)
	if err != nil {
		return &StyleError{Operation: m.name(), Cell: ref, Cause: err}
	}
	next := format.clone()

	switch mut := m.(type) {
	case fontMutation:
		font, err := styles.Font(format.Font)
		if err != nil {
			return &StyleError{Operation: m.name(), Cell: ref, Cause: err}
		}
		clone := font.clone()
		mut.applyFont(&clone)
		if next.Font, err = styles.AddFont(clone); err != nil {
			return &StyleError{Operation: m.name(), Cell: ref, Cause: err}
		}
	case fillMutation:
		fill, err := styles.Fill(format.Fill)
		if err != nil {
			return &StyleError{Operation: m.name(), Cell: ref, Cause: err}
		}
		clone := fill.clone()
		mut.applyFill(&clone)
		if next.Fill, err = styles.AddFill(clone); err != nil {
			return &StyleError{Operation: m.name(), Cell: ref, Cause: err}
		}
	case formatMutation:
		mut.applyFormat(&next)
	default:
		return &StyleError{Operation: m.name(), Cell: ref, Cause: fmt.Errorf("%w: unhandled mutation %T", ErrStyleLookup, m)}
	}

	index, err := styles.AddFormat(next)
	if err != nil {
		return &StyleError{Operation: m.name(), Cell: ref, Cause: err}
	}
	if err := cells.SetCellStyle(row, col, index); err != nil {
		return &StyleError{Operation: m.name(), Cell: ref, Cause: err}
	}
	return nil
}

// ApplyAttributes applies mutations in order and stops at the first failure.
// Mutations applied before the failure stay applied.
func ApplyAttributes(cells StyledCells, row, col int, mutations ...Mutation) (applied int, err error) {
	for _, m := range mutations {
		if err := ApplyAttribute(cells, row, col, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
