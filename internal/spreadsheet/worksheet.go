package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is the selected worksheet of a Session. It implements CellReader,
// CellWriter and StyledCells over the session's workbook.
type Sheet struct {
	session *Session
	name    string
}

// Name returns the sheet's stored name.
func (sh *Sheet) Name() string { return sh.name }

// Session returns the session the sheet belongs to.
func (sh *Sheet) Session() *Session { return sh.session }

func (sh *Sheet) file() *excelize.File { return sh.session.file }

// CellValue reads the typed value of one cell.
func (sh *Sheet) CellValue(row, col int) (Value, error) {
	ref, err := CellName(row, col)
	if err != nil {
		return nil, err
	}
	f := sh.file()

	kind, err := f.GetCellType(sh.name, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIOFailure, ref, err)
	}
	raw, err := f.GetCellValue(sh.name, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIOFailure, ref, err)
	}

	switch kind {
	case excelize.CellTypeBool:
		return Bool(raw == "1" || strings.EqualFold(raw, "TRUE")), nil
	case excelize.CellTypeError:
		return nil, fmt.Errorf("%w: %s holds error %s", ErrUnsupportedCell, ref, raw)
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		// A string cell holding "" is still a string
		return Text(raw), nil
	case excelize.CellTypeDate:
		if raw == "" {
			return Empty{}, nil
		}
		return Text(raw), nil
	case excelize.CellTypeFormula:
		// Formula results cached as strings
		if raw == "" {
			return Empty{}, nil
		}
		return Text(raw), nil
	default:
		if raw == "" {
			return Empty{}, nil
		}
		if v, ok := parseNumber(raw); ok {
			return v, nil
		}
		return Text(raw), nil
	}
}

// SetCellValue writes a typed value into one cell.
func (sh *Sheet) SetCellValue(row, col int, v Value) error {
	ref, err := CellName(row, col)
	if err != nil {
		return err
	}
	f := sh.file()

	switch val := v.(type) {
	case Empty:
		err = f.SetCellDefault(sh.name, ref, "")
	case Bool:
		err = f.SetCellBool(sh.name, ref, bool(val))
	case Int:
		err = f.SetCellValue(sh.name, ref, int64(val))
	case Float:
		err = f.SetCellDefault(sh.name, ref, formatFloat(float64(val)))
	case Text:
		if err := checkTextLength(val); err != nil {
			return err
		}
		err = f.SetCellStr(sh.name, ref, string(val))
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValueType, v)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIOFailure, ref, err)
	}
	sh.session.markDirty()
	return nil
}

// Styles returns the workbook's style table.
func (sh *Sheet) Styles() StyleTable { return sh.session.styles }

// CellStyle returns the format index of one cell.
func (sh *Sheet) CellStyle(row, col int) (int, error) {
	ref, err := CellName(row, col)
	if err != nil {
		return 0, err
	}
	idx, err := sh.file().GetCellStyle(sh.name, ref)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrStyleLookup, ref, err)
	}
	return idx, nil
}

// SetCellStyle points one cell at a format index.
func (sh *Sheet) SetCellStyle(row, col, format int) error {
	ref, err := CellName(row, col)
	if err != nil {
		return err
	}
	if err := sh.file().SetCellStyle(sh.name, ref, ref, format); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStyleLookup, ref, err)
	}
	sh.session.markDirty()
	return nil
}

// checkSize rejects a range that covers more cells than the session allows.
func (sh *Sheet) checkSize(operation string, rng Range) error {
	if err := rng.Validate(); err != nil {
		return err
	}
	if limit := sh.session.opts.maxRangeCells; rng.Cells() > limit {
		return &RangeError{
			Operation: operation,
			Range:     rng.String(),
			Cause:     fmt.Errorf("%w: range covers %d cells, limit is %d", ErrInvalidRange, rng.Cells(), limit),
		}
	}
	return nil
}

// ReadRange reads rng as a dense matrix.
func (sh *Sheet) ReadRange(rng Range) ([][]any, error) {
	if err := sh.checkSize("read", rng); err != nil {
		return nil, err
	}
	return ReadRange(sh, rng)
}

// ReadSparse reads the non-empty cells of rng as "value@A1" tokens.
func (sh *Sheet) ReadSparse(rng Range) ([]string, error) {
	if err := sh.checkSize("read", rng); err != nil {
		return nil, err
	}
	return ReadSparse(sh, rng)
}

// WriteRange decodes raw and writes it with its top-left value at the given cell.
// It returns the number of cells written.
func (sh *Sheet) WriteRange(firstRow, firstCol int, raw any) (int, error) {
	return WriteGeneric(sh, firstRow, firstCol, raw)
}

// ApplyStyle applies mutations to every cell of rng, cell by cell.
func (sh *Sheet) ApplyStyle(rng Range, mutations ...Mutation) (int, error) {
	if err := sh.checkSize("style", rng); err != nil {
		return 0, err
	}
	cells := 0
	for r := rng.FirstRow; r <= rng.LastRow; r++ {
		for c := rng.FirstCol; c <= rng.LastCol; c++ {
			if _, err := ApplyAttributes(sh, r, c, mutations...); err != nil {
				return cells, err
			}
			cells++
		}
	}
	return cells, nil
}

// ClearCell empties one cell's value. Its format is kept.
func (sh *Sheet) ClearCell(row, col int) error {
	return sh.SetCellValue(row, col, Empty{})
}

// ClearRange empties every cell of rng and returns the number of cells cleared.
func (sh *Sheet) ClearRange(rng Range) (int, error) {
	if err := sh.checkSize("clear", rng); err != nil {
		return 0, err
	}
	cells := 0
	for r := rng.FirstRow; r <= rng.LastRow; r++ {
		for c := rng.FirstCol; c <= rng.LastCol; c++ {
			if err := sh.ClearCell(r, c); err != nil {
				return cells, err
			}
			cells++
		}
	}
	return cells, nil
}

// MergeCells merges rng into a single cell. Only the top-left value survives.
func (sh *Sheet) MergeCells(rng Range) error {
	if err := rng.Validate(); err != nil {
		return err
	}
	if rng.Cells() < 2 {
		return &RangeError{Operation: "merge", Range: rng.String(), Cause: fmt.Errorf("%w: merge needs at least two cells", ErrInvalidRange)}
	}
	top, _ := rng.TopLeft()
	bottom, _ := rng.BottomRight()
	if err := sh.file().MergeCell(sh.name, top, bottom); err != nil {
		return &RangeError{Operation: "merge", Range: rng.String(), Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	sh.session.markDirty()
	return nil
}

// UnmergeCells removes every merge that overlaps rng.
func (sh *Sheet) UnmergeCells(rng Range) error {
	if err := rng.Validate(); err != nil {
		return err
	}
	top, _ := rng.TopLeft()
	bottom, _ := rng.BottomRight()
	if err := sh.file().UnmergeCell(sh.name, top, bottom); err != nil {
		return &RangeError{Operation: "unmerge", Range: rng.String(), Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	sh.session.markDirty()
	return nil
}

// MergedRanges lists the sheet's merged areas.
func (sh *Sheet) MergedRanges() ([]Range, error) {
	merges, err := sh.file().GetMergeCells(sh.name)
	if err != nil {
		return nil, &SheetError{Operation: "merged_ranges", SheetName: sh.name, Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	out := make([]Range, 0, len(merges))
	for _, m := range merges {
		rng, err := ParseRange(m.GetStartAxis() + ":" + m.GetEndAxis())
		if err != nil {
			return nil, err
		}
		out = append(out, rng)
	}
	return out, nil
}

// Column width and row height limits, in Excel units
const (
	MaxColumnWidth = 255.0
	MaxRowHeight   = 409.0
)

// SetColumnWidth sets the width of columns first..last.
func (sh *Sheet) SetColumnWidth(first, last int, width float64) error {
	if first > last {
		first, last = last, first
	}
	from, err := ColumnName(first)
	if err != nil {
		return err
	}
	to, err := ColumnName(last)
	if err != nil {
		return err
	}
	if width <= 0 || width > MaxColumnWidth {
		return &ValueError{
			Operation: "set_column_width",
			Location:  from + ":" + to,
			Value:     width,
			Cause:     fmt.Errorf("%w: width must be greater than 0 and at most %g", ErrInvalidSize, MaxColumnWidth),
		}
	}
	if err := sh.file().SetColWidth(sh.name, from, to, width); err != nil {
		return &SheetError{Operation: "set_column_width", SheetName: sh.name, Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	sh.session.markDirty()
	return nil
}

// SetRowHeight sets the height of one row in points.
func (sh *Sheet) SetRowHeight(row int, height float64) error {
	if _, err := CellName(row, 1); err != nil {
		return err
	}
	if height <= 0 || height > MaxRowHeight {
		return &ValueError{
			Operation: "set_row_height",
			Location:  "row " + strconv.Itoa(row),
			Value:     height,
			Cause:     fmt.Errorf("%w: height must be greater than 0 and at most %g", ErrInvalidSize, MaxRowHeight),
		}
	}
	if err := sh.file().SetRowHeight(sh.name, row, height); err != nil {
		return &SheetError{Operation: "set_row_height", SheetName: sh.name, Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	sh.session.markDirty()
	return nil
}

// Dimensions returns the number of used rows and columns, counted from A1.
func (sh *Sheet) Dimensions() (rows, cols int, err error) {
	grid, err := sh.file().GetRows(sh.name, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, 0, &SheetError{Operation: "dimensions", SheetName: sh.name, Cause: fmt.Errorf("%w: %v", ErrIOFailure, err)}
	}
	for i, row := range grid {
		if len(row) > 0 {
			rows = i + 1
		}
		cols = max(cols, len(row))
	}
	return rows, cols, nil
}

// UsedRange returns A1 through the last used cell, or false for an empty sheet.
func (sh *Sheet) UsedRange() (Range, bool, error) {
	rows, cols, err := sh.Dimensions()
	if err != nil || rows == 0 || cols == 0 {
		return Range{}, false, err
	}
	return Range{FirstRow: 1, FirstCol: 1, LastRow: rows, LastCol: cols}, true, nil
}

// RowValues reads one row from column A up to the sheet's last used column.
func (sh *Sheet) RowValues(row int) ([]any, error) {
	if _, err := CellName(row, 1); err != nil {
		return nil, err
	}
	_, cols, err := sh.Dimensions()
	if err != nil {
		return nil, err
	}
	if cols == 0 {
		return []any{}, nil
	}
	m, err := sh.ReadRange(Range{FirstRow: row, FirstCol: 1, LastRow: row, LastCol: cols})
	if err != nil {
		return nil, err
	}
	return trimTrailingNil(m[0]), nil
}

// ColumnValues reads one column from row 1 down to the sheet's last used row.
func (sh *Sheet) ColumnValues(col int) ([]any, error) {
	if _, err := CellName(1, col); err != nil {
		return nil, err
	}
	rows, _, err := sh.Dimensions()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return []any{}, nil
	}
	m, err := sh.ReadRange(Range{FirstRow: 1, FirstCol: col, LastRow: rows, LastCol: col})
	if err != nil {
		return nil, err
	}
	out := make([]any, len(m))
	for i, r := range m {
		out[i] = r[0]
	}
	return trimTrailingNil(out), nil
}

// SetRowValues writes values across one row starting at firstCol.
func (sh *Sheet) SetRowValues(row, firstCol int, values []any) (int, error) {
	return sh.WriteRange(row, firstCol, []any{values})
}

// SetColumnValues writes values down one column starting at firstRow.
func (sh *Sheet) SetColumnValues(col, firstRow int, values []any) (int, error) {
	m := make([]any, len(values))
	for i, v := range values {
		m[i] = []any{v}
	}
	return sh.WriteRange(firstRow, col, m)
}

func trimTrailingNil(values []any) []any {
	end := len(values)
	for end > 0 && values[end-1] == nil {
		end--
	}
	return values[:end]
}
