package spreadsheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Excel limits
const (
	MaxRows    = 1048576
	MaxColumns = 16384
)

var (
	cellReferencePattern = regexp.MustCompile(`^([A-Z]+)([1-9][0-9]*)$`)
	columnPattern        = regexp.MustCompile(`^[A-Z]+$`)
)

// ColumnName converts a 1-based column number to its letters (1 -> A, 27 -> AA).
//
// Column letters are bijective base-26: there is no zero digit, so a remainder of
// zero is written as 'Z' and borrows one from the quotient.
func ColumnName(col int) (string, error) {
	if col < 1 || col > MaxColumns {
		return "", &AddressError{Col: col, Cause: fmt.Errorf("%w: column must be between 1 and %d", ErrInvalidAddress, MaxColumns)}
	}

	var letters []byte
	for n := col; n > 0; {
		rem := n % 26
		if rem == 0 {
			letters = append(letters, 'Z')
			n = n/26 - 1
		} else {
			letters = append(letters, byte('A'+rem-1))
			n /= 26
		}
	}

	for i, j := 0, len(letters)-1; i < j; i, j = i+1, j-1 {
		letters[i], letters[j] = letters[j], letters[i]
	}
	return string(letters), nil
}

// ColumnNumber converts column letters back to a 1-based column number.
func ColumnNumber(letters string) (int, error) {
	upper := strings.ToUpper(letters)
	if !columnPattern.MatchString(upper) {
		return 0, &AddressError{Ref: letters, Cause: fmt.Errorf("%w: invalid column letters", ErrInvalidAddress)}
	}

	col := 0
	for _, ch := range upper {
		col = col*26 + int(ch-'A'+1)
		if col > MaxColumns {
			return 0, &AddressError{Ref: letters, Cause: fmt.Errorf("%w: column must be between 1 and %d", ErrInvalidAddress, MaxColumns)}
		}
	}
	return col, nil
}

// CellName encodes a 1-based (row, col) pair as an A1-style reference.
func CellName(row, col int) (string, error) {
	if row < 1 || row > MaxRows {
		return "", &AddressError{Row: row, Col: col, Cause: fmt.Errorf("%w: row must be between 1 and %d", ErrInvalidAddress, MaxRows)}
	}
	letters, err := ColumnName(col)
	if err != nil {
		return "", &AddressError{Row: row, Col: col, Cause: fmt.Errorf("%w: column must be between 1 and %d", ErrInvalidAddress, MaxColumns)}
	}
	return letters + strconv.Itoa(row), nil
}

// ParseCellName decodes an A1-style reference into a 1-based (row, col) pair.
// Lower-case letters and absolute markers ("$A$1") are accepted.
func ParseCellName(ref string) (row, col int, err error) {
	clean := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(ref), "$", ""))
	m := cellReferencePattern.FindStringSubmatch(clean)
	if m == nil {
		return 0, 0, &AddressError{Ref: ref, Cause: fmt.Errorf("%w: expected a reference like 'A1'", ErrInvalidAddress)}
	}

	col, err = ColumnNumber(m[1])
	if err != nil {
		return 0, 0, &AddressError{Ref: ref, Cause: fmt.Errorf("%w: column out of range", ErrInvalidAddress)}
	}
	row, err = strconv.Atoi(m[2])
	if err != nil || row > MaxRows {
		return 0, 0, &AddressError{Ref: ref, Cause: fmt.Errorf("%w: row must be between 1 and %d", ErrInvalidAddress, MaxRows)}
	}
	return row, col, nil
}

// Range is a rectangular block of cells, inclusive on both ends.
type Range struct {
	FirstRow int `json:"first_row"`
	FirstCol int `json:"first_column"`
	LastRow  int `json:"last_row"`
	LastCol  int `json:"last_column"`
}

// CellRange returns the 1x1 range covering a single cell.
func CellRange(row, col int) Range {
	return Range{FirstRow: row, FirstCol: col, LastRow: row, LastCol: col}
}

// ParseRange parses "A1:C3" (or a single cell such as "B2") into a Range.
func ParseRange(ref string) (Range, error) {
	if strings.TrimSpace(ref) == "" {
		return Range{}, &RangeError{Operation: "parse", Range: ref, Cause: fmt.Errorf("%w: range cannot be empty", ErrInvalidRange)}
	}

	start, end, found := strings.Cut(ref, ":")
	if !found {
		end = start
	}

	firstRow, firstCol, err := ParseCellName(start)
	if err != nil {
		return Range{}, err
	}
	lastRow, lastCol, err := ParseCellName(end)
	if err != nil {
		return Range{}, err
	}

	r := Range{FirstRow: firstRow, FirstCol: firstCol, LastRow: lastRow, LastCol: lastCol}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate checks that every coordinate is addressable and that first <= last on both axes.
func (r Range) Validate() error {
	if _, err := CellName(r.FirstRow, r.FirstCol); err != nil {
		return err
	}
	if _, err := CellName(r.LastRow, r.LastCol); err != nil {
		return err
	}
	if r.FirstRow > r.LastRow || r.FirstCol > r.LastCol {
		return &RangeError{
			Operation: "validate",
			Range:     fmt.Sprintf("rows %d-%d, columns %d-%d", r.FirstRow, r.LastRow, r.FirstCol, r.LastCol),
			Cause:     fmt.Errorf("%w: first cell must not be after last cell", ErrInvalidRange),
		}
	}
	return nil
}

// Rows returns the number of rows covered by the range.
func (r Range) Rows() int { return r.LastRow - r.FirstRow + 1 }

// Cols returns the number of columns covered by the range.
func (r Range) Cols() int { return r.LastCol - r.FirstCol + 1 }

// Cells returns the number of cells covered by the range.
func (r Range) Cells() int { return r.Rows() * r.Cols() }

// TopLeft returns the reference of the first cell.
func (r Range) TopLeft() (string, error) { return CellName(r.FirstRow, r.FirstCol) }

// BottomRight returns the reference of the last cell.
func (r Range) BottomRight() (string, error) { return CellName(r.LastRow, r.LastCol) }

// String renders the range in A1 notation. Invalid ranges render their raw coordinates.
func (r Range) String() string {
	first, err1 := r.TopLeft()
	last, err2 := r.BottomRight()
	if err1 != nil || err2 != nil {
		return fmt.Sprintf("R%dC%d:R%dC%d", r.FirstRow, r.FirstCol, r.LastRow, r.LastCol)
	}
	if first == last {
		return first
	}
	return first + ":" + last
}
