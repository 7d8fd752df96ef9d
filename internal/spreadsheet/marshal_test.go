package spreadsheet

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cellKey struct{ row, col int }

// memoryGrid is an in-memory CellReader and CellWriter.
type memoryGrid struct {
	cells       map[cellKey]Value
	unsupported map[cellKey]bool
	writes      int
	failAt      *cellKey
}

func newMemoryGrid() *memoryGrid {
	return &memoryGrid{cells: map[cellKey]Value{}, unsupported: map[cellKey]bool{}}
}

func (g *memoryGrid) CellValue(row, col int) (Value, error) {
	k := cellKey{row, col}
	if g.unsupported[k] {
		return nil, fmt.Errorf("%w: test cell", ErrUnsupportedCell)
	}
	if v, ok := g.cells[k]; ok {
		return v, nil
	}
	return Empty{}, nil
}

func (g *memoryGrid) SetCellValue(row, col int, v Value) error {
	k := cellKey{row, col}
	if g.failAt != nil && *g.failAt == k {
		return errors.New("disk full")
	}
	g.writes++
	if IsEmpty(v) {
		delete(g.cells, k)
		return nil
	}
	g.cells[k] = v
	return nil
}

func TestReadRange_EmptyRange(t *testing.T) {
	g := newMemoryGrid()
	rng, err := ParseRange("A1:B2")
	require.NoError(t, err)

	got, err := ReadRange(g, rng)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{nil, nil}, {nil, nil}}, got)
}

func TestWriteThenReadRange(t *testing.T) {
	g := newMemoryGrid()
	values := [][]any{
		{"name", "qty", "price", "active"},
		{"apple", 3, 1.5, true},
		{"pear", nil, 2.0, false},
	}

	n, err := WriteGeneric(g, 2, 2, values)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	rng, err := ParseRange("B2:E4")
	require.NoError(t, err)
	got, err := ReadRange(g, rng)
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"name", "qty", "price", "active"},
		{"apple", int64(3), 1.5, true},
		{"pear", nil, 2.0, false},
	}, got)
}

func TestReadSparse(t *testing.T) {
	g := newMemoryGrid()
	g.cells[cellKey{2, 2}] = Text("x")
	g.cells[cellKey{4, 4}] = Int(7)

	rng, err := ParseRange("A1:E5")
	require.NoError(t, err)
	got, err := ReadSparse(g, rng)
	require.NoError(t, err)
	assert.Equal(t, []string{"x@B2", "7@D4"}, got)
}

func TestReadSparse_TokenFormats(t *testing.T) {
	g := newMemoryGrid()
	g.cells[cellKey{1, 1}] = Bool(true)
	g.cells[cellKey{1, 2}] = Float(2.25)
	g.cells[cellKey{1, 3}] = Text("a@b")
	g.unsupported[cellKey{1, 4}] = true

	got, err := ReadSparse(g, Range{FirstRow: 1, FirstCol: 1, LastRow: 1, LastCol: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"TRUE@A1", "2.25@B1", "a@b@C1", UnsupportedMarker + "@D1"}, got)
}

func TestReadSparse_EmptyIsNotNil(t *testing.T) {
	got, err := ReadSparse(newMemoryGrid(), CellRange(1, 1))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadRange_UnsupportedCellBecomesMarker(t *testing.T) {
	g := newMemoryGrid()
	g.unsupported[cellKey{1, 2}] = true
	g.cells[cellKey{1, 1}] = Int(1)

	got, err := ReadRange(g, Range{FirstRow: 1, FirstCol: 1, LastRow: 1, LastCol: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), UnsupportedMarker}}, got)
}

func TestReadRange_InvalidRange(t *testing.T) {
	_, err := ReadRange(newMemoryGrid(), Range{FirstRow: 5, FirstCol: 1, LastRow: 1, LastCol: 1})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ReadSparse(newMemoryGrid(), Range{FirstRow: 1, FirstCol: 0, LastRow: 1, LastCol: 1})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestWriteGeneric_UnsupportedWritesNothing(t *testing.T) {
	g := newMemoryGrid()
	_, err := WriteGeneric(g, 1, 1, []any{
		[]any{1, 2, 3},
		[]any{4, []any{5}, 6},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedValueType)
	assert.Equal(t, 0, g.writes)
	assert.Empty(t, g.cells)
}

func TestWriteRange_RaggedRows(t *testing.T) {
	g := newMemoryGrid()
	err := WriteRange(g, 1, 1, [][]Value{{Int(1)}, {Int(2), Int(3), Int(4)}})
	require.NoError(t, err)
	assert.Equal(t, Int(4), g.cells[cellKey{2, 3}])
	assert.Equal(t, 4, g.writes)
}

func TestWriteRange_PastSheetLimits(t *testing.T) {
	g := newMemoryGrid()
	err := WriteRange(g, MaxRows, 1, [][]Value{{Int(1)}, {Int(2)}})
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Equal(t, 0, g.writes)

	err = WriteRange(g, 0, 1, [][]Value{{Int(1)}})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestWriteRange_WriterFailure(t *testing.T) {
	g := newMemoryGrid()
	g.failAt = &cellKey{1, 2}

	err := WriteRange(g, 1, 1, [][]Value{{Int(1), Int(2)}})
	require.Error(t, err)
	var valueErr *ValueError
	require.ErrorAs(t, err, &valueErr)
	assert.Equal(t, "B1", valueErr.Location)
}
