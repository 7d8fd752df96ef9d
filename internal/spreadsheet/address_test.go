package spreadsheet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestColumnName(t *testing.T) {
	tests := []struct {
		col  int
		want string
	}{
		{1, "A"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{53, "BA"},
		{676, "YZ"},
		{677, "ZA"},
		{702, "ZZ"},
		{703, "AAA"},
		{MaxColumns, "XFD"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := ColumnName(tt.col)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := ColumnNumber(got)
			require.NoError(t, err)
			assert.Equal(t, tt.col, back)
		})
	}
}

func TestColumnName_OutOfRange(t *testing.T) {
	for _, col := range []int{0, -1, MaxColumns + 1} {
		_, err := ColumnName(col)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidAddress))
		assert.Equal(t, "InvalidAddress", KindOf(err))
	}
}

func TestCellName(t *testing.T) {
	got, err := CellName(1, 1)
	require.NoError(t, err)
	assert.Equal(t, "A1", got)

	got, err = CellName(1, 27)
	require.NoError(t, err)
	assert.Equal(t, "AA1", got)

	got, err = CellName(MaxRows, MaxColumns)
	require.NoError(t, err)
	assert.Equal(t, "XFD1048576", got)

	_, err = CellName(0, 5)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = CellName(5, 0)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = CellName(MaxRows+1, 1)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = CellName(1, MaxColumns+1)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestCellName_MatchesExcelize(t *testing.T) {
	for _, col := range []int{1, 2, 25, 26, 27, 28, 51, 52, 53, 675, 676, 677, 701, 702, 703, MaxColumns - 1, MaxColumns} {
		for _, row := range []int{1, 9, 10, 100, MaxRows} {
			ours, err := CellName(row, col)
			require.NoError(t, err)
			theirs, err := excelize.CoordinatesToCellName(col, row)
			require.NoError(t, err)
			assert.Equal(t, theirs, ours, "row %d col %d", row, col)
		}
	}
}

func TestParseCellName(t *testing.T) {
	tests := []struct {
		ref     string
		row     int
		col     int
		wantErr bool
	}{
		{ref: "A1", row: 1, col: 1},
		{ref: "aa10", row: 10, col: 27},
		{ref: "$C$3", row: 3, col: 3},
		{ref: " XFD1048576 ", row: MaxRows, col: MaxColumns},
		{ref: "", wantErr: true},
		{ref: "A0", wantErr: true},
		{ref: "1A", wantErr: true},
		{ref: "A", wantErr: true},
		{ref: "XFE1", wantErr: true},
		{ref: "A1048577", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			row, col, err := ParseCellName(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.row, row)
			assert.Equal(t, tt.col, col)
		})
	}
}

func TestParseRange(t *testing.T) {
	rng, err := ParseRange("B2:D5")
	require.NoError(t, err)
	assert.Equal(t, Range{FirstRow: 2, FirstCol: 2, LastRow: 5, LastCol: 4}, rng)
	assert.Equal(t, 4, rng.Rows())
	assert.Equal(t, 3, rng.Cols())
	assert.Equal(t, 12, rng.Cells())
	assert.Equal(t, "B2:D5", rng.String())

	single, err := ParseRange("c7")
	require.NoError(t, err)
	assert.Equal(t, CellRange(7, 3), single)
	assert.Equal(t, "C7", single.String())
}

func TestParseRange_Errors(t *testing.T) {
	_, err := ParseRange("")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseRange("D5:B2")
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Equal(t, "InvalidRange", KindOf(err))

	_, err = ParseRange("A1:ZZZZ1")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestRangeValidate(t *testing.T) {
	assert.NoError(t, Range{FirstRow: 1, FirstCol: 1, LastRow: 1, LastCol: 1}.Validate())

	err := Range{FirstRow: 3, FirstCol: 1, LastRow: 2, LastCol: 1}.Validate()
	assert.ErrorIs(t, err, ErrInvalidRange)

	err = Range{FirstRow: 1, FirstCol: 4, LastRow: 1, LastCol: 2}.Validate()
	assert.ErrorIs(t, err, ErrInvalidRange)

	err = Range{FirstRow: 0, FirstCol: 1, LastRow: 2, LastCol: 2}.Validate()
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
