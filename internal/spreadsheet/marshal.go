package spreadsheet

import (
	"errors"
	"fmt"
)

// CellReader reads typed values. A reader returns ErrUnsupportedCell (wrapped
// or bare) for a cell whose content has no Value variant.
type CellReader interface {
	CellValue(row, col int) (Value, error)
}

// CellWriter writes typed values.
type CellWriter interface {
	SetCellValue(row, col int, v Value) error
}

// visitRange calls fn for every cell of rng in row-major order. Unsupported
// cells are passed with a nil Value and unsupported set.
func visitRange(src CellReader, rng Range, fn func(row, col int, v Value, unsupported bool)) error {
	if err := rng.Validate(); err != nil {
		return err
	}
	for r := rng.FirstRow; r <= rng.LastRow; r++ {
		for c := rng.FirstCol; c <= rng.LastCol; c++ {
			v, err := src.CellValue(r, c)
			switch {
			case errors.Is(err, ErrUnsupportedCell):
				fn(r, c, nil, true)
			case err != nil:
				return &RangeError{Operation: "read", Range: rng.String(), Cause: err}
			default:
				fn(r, c, v, false)
			}
		}
	}
	return nil
}

// ReadRange returns the values of rng as a row-major matrix of nil, bool,
// int64, float64 and string. A cell that cannot be represented becomes
// UnsupportedMarker rather than failing the read.
func ReadRange(src CellReader, rng Range) ([][]any, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	out := make([][]any, rng.Rows())
	for i := range out {
		out[i] = make([]any, rng.Cols())
	}
	err := visitRange(src, rng, func(row, col int, v Value, unsupported bool) {
		cell := &out[row-rng.FirstRow][col-rng.FirstCol]
		if unsupported {
			*cell = UnsupportedMarker
			return
		}
		*cell = ToGeneric(v)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadSparse returns only the non-empty cells of rng, each rendered as
// "value@A1", in row-major order.
func ReadSparse(src CellReader, rng Range) ([]string, error) {
	tokens := []string{}
	var nameErr error
	err := visitRange(src, rng, func(row, col int, v Value, unsupported bool) {
		if !unsupported && IsEmpty(v) {
			return
		}
		ref, err := CellName(row, col)
		if err != nil {
			nameErr = err
			return
		}
		text := UnsupportedMarker
		if !unsupported {
			text = FormatToken(v)
		}
		tokens = append(tokens, text+"@"+ref)
	})
	if err != nil {
		return nil, err
	}
	if nameErr != nil {
		return nil, nameErr
	}
	return tokens, nil
}

// WriteRange writes m with its top-left value at (firstRow, firstCol). Rows may
// have different lengths. Writing stops at the first failure; cells written
// before it keep their new values.
func WriteRange(dst CellWriter, firstRow, firstCol int, m [][]Value) error {
	if _, err := CellName(firstRow, firstCol); err != nil {
		return err
	}
	if err := checkExtent(firstRow, firstCol, m); err != nil {
		return err
	}

	for r, row := range m {
		for c, v := range row {
			if v == nil {
				v = Empty{}
			}
			if err := dst.SetCellValue(firstRow+r, firstCol+c, v); err != nil {
				ref, _ := CellName(firstRow+r, firstCol+c)
				return &ValueError{Operation: "write", Location: ref, Value: ToGeneric(v), Cause: err}
			}
		}
	}
	return nil
}

// WriteGeneric decodes the whole of raw before writing any of it, so an
// unsupported value anywhere in the matrix fails with ErrUnsupportedValueType
// and leaves the sheet untouched.
func WriteGeneric(dst CellWriter, firstRow, firstCol int, raw any) (int, error) {
	m, err := DecodeMatrix(raw)
	if err != nil {
		return 0, err
	}
	if err := WriteRange(dst, firstRow, firstCol, m); err != nil {
		return 0, err
	}
	return countCells(m), nil
}

// checkExtent rejects a matrix that would run past the last row or column.
func checkExtent(firstRow, firstCol int, m [][]Value) error {
	widest := 0
	for _, row := range m {
		widest = max(widest, len(row))
	}
	if len(m) == 0 || widest == 0 {
		return nil
	}
	lastRow, lastCol := firstRow+len(m)-1, firstCol+widest-1
	if _, err := CellName(lastRow, lastCol); err != nil {
		return &RangeError{
			Operation: "write",
			Range:     fmt.Sprintf("%d rows x %d columns from row %d, column %d", len(m), widest, firstRow, firstCol),
			Cause:     fmt.Errorf("%w: matrix extends past the sheet limits", ErrInvalidRange),
		}
	}
	return nil
}

func countCells(m [][]Value) int {
	n := 0
	for _, row := range m {
		n += len(row)
	}
	return n
}
