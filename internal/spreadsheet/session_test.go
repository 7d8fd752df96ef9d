package spreadsheet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// createWorkbook writes a workbook with a few typed cells on "Data" and an empty "Notes".
func createWorkbook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.xlsx")

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetName("Sheet1", "Data"))
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)

	require.NoError(t, f.SetCellValue("Data", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Data", "B1", 42))
	require.NoError(t, f.SetCellValue("Data", "C1", 2.5))
	require.NoError(t, f.SetCellValue("Data", "D1", true))
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestSession_Lifecycle(t *testing.T) {
	path := createWorkbook(t)
	s := NewSession(testLogger())
	assert.Equal(t, StateClosed, s.State())

	names, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Data", "Notes"}, names)
	assert.Equal(t, StateOpen, s.State())

	_, err = s.Sheet()
	assert.ErrorIs(t, err, ErrDocumentNotOpen)

	require.NoError(t, s.SelectSheet("Data"))
	assert.Equal(t, StateSheetSelected, s.State())
	assert.Equal(t, "Data", s.CurrentSheet())

	sheet, err := s.Sheet()
	require.NoError(t, err)
	got, err := sheet.ReadRange(Range{FirstRow: 1, FirstCol: 1, LastRow: 1, LastCol: 5})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Name", int64(42), 2.5, true, nil}}, got)

	assert.True(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.True(t, s.Close(), "close must be idempotent")
}

func TestSession_OpenTwiceIsBusy(t *testing.T) {
	path := createWorkbook(t)
	s := NewSession(testLogger())
	_, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Open(context.Background(), path)
	assert.ErrorIs(t, err, ErrSessionBusy)
}

func TestSession_OpenMissingFile(t *testing.T) {
	s := NewSession(nil)
	_, err := s.Open(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.Equal(t, StateClosed, s.State())
	assert.True(t, s.Close())
}

func TestSession_RejectsUnknownExtension(t *testing.T) {
	s := NewSession(nil)
	_, err := s.Open(context.Background(), filepath.Join(t.TempDir(), "book.csv"))
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestSession_OperationsWithoutDocument(t *testing.T) {
	s := NewSession(nil)
	assert.ErrorIs(t, s.SelectSheet("Data"), ErrDocumentNotOpen)
	_, err := s.Sheet()
	assert.ErrorIs(t, err, ErrDocumentNotOpen)
	_, err = s.SheetNames()
	assert.ErrorIs(t, err, ErrDocumentNotOpen)
	_, err = s.AddSheet("X")
	assert.ErrorIs(t, err, ErrDocumentNotOpen)
	assert.Equal(t, "DocumentNotOpen", KindOf(s.SaveAs(filepath.Join(t.TempDir(), "x.xlsx"))))
}

func TestSession_SelectSheet(t *testing.T) {
	path := createWorkbook(t)
	s := NewSession(testLogger())
	_, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SelectSheet("notes"))
	assert.Equal(t, "Notes", s.CurrentSheet())

	require.NoError(t, s.SelectSheetIndex(0))
	assert.Equal(t, "Data", s.CurrentSheet())

	err = s.SelectSheetIndex(5)
	assert.ErrorIs(t, err, ErrSheetNotFound)

	err = s.SelectSheet("Dta")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSheetNotFound)
	assert.Contains(t, err.Error(), "did you mean: Data")
	assert.Equal(t, "SheetNotFound", KindOf(err))
}

func TestRun_WritePersists(t *testing.T) {
	path := createWorkbook(t)
	ctx := context.Background()

	err := Run(ctx, testLogger(), path, "Notes", func(s *Session) error {
		sheet, err := s.Sheet()
		if err != nil {
			return err
		}
		_, err = sheet.WriteRange(2, 2, [][]any{{"x", nil, nil}, {nil, nil, 7}})
		return err
	})
	require.NoError(t, err)

	var sparse []string
	err = Run(ctx, testLogger(), path, "Notes", func(s *Session) error {
		sheet, err := s.Sheet()
		if err != nil {
			return err
		}
		rng, err := ParseRange("A1:E5")
		if err != nil {
			return err
		}
		sparse, err = sheet.ReadSparse(rng)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x@B2", "7@D3"}, sparse)
}

func TestRun_FloatsAndBooleansSurviveSave(t *testing.T) {
	path := createWorkbook(t)
	ctx := context.Background()

	err := Run(ctx, testLogger(), path, "Notes", func(s *Session) error {
		sheet, _ := s.Sheet()
		_, err := sheet.WriteRange(1, 1, [][]any{{3.0, false, int64(-4), "TRUE"}})
		return err
	})
	require.NoError(t, err)

	var got [][]any
	err = Run(ctx, testLogger(), path, "Notes", func(s *Session) error {
		sheet, _ := s.Sheet()
		var err error
		got, err = sheet.ReadRange(Range{FirstRow: 1, FirstCol: 1, LastRow: 1, LastCol: 4})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{3.0, false, int64(-4), "TRUE"}}, got)
}

func TestRun_FailedOperationIsNotSaved(t *testing.T) {
	path := createWorkbook(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := Run(ctx, testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		if _, err := sheet.WriteRange(1, 1, [][]any{{"changed"}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	v, err := f.GetCellValue("Data", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Name", v)
}

func TestRun_UnsupportedValueLeavesFileUntouched(t *testing.T) {
	path := createWorkbook(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = Run(context.Background(), testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		_, err := sheet.WriteRange(1, 1, []any{[]any{"a", map[string]any{"b": 1}}})
		return err
	})
	assert.ErrorIs(t, err, ErrUnsupportedValueType)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRun_UnknownSheet(t *testing.T) {
	path := createWorkbook(t)
	called := false
	err := Run(context.Background(), testLogger(), path, "Missing", func(*Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrSheetNotFound)
	assert.False(t, called)
}

func TestRun_ReleasesLock(t *testing.T) {
	path := createWorkbook(t)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, Run(ctx, testLogger(), path, "", func(*Session) error { return nil }, WithLockTimeout(200*time.Millisecond)))
	}
}

func TestSession_LockContention(t *testing.T) {
	path := createWorkbook(t)
	ctx := context.Background()

	holder := NewSession(testLogger())
	_, err := holder.Open(ctx, path)
	require.NoError(t, err)
	defer holder.Close()

	waiter := NewSession(testLogger(), WithLockTimeout(100*time.Millisecond))
	_, err = waiter.Open(ctx, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.Equal(t, StateClosed, waiter.State())
}

func TestRunCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "new.xlsx")
	ctx := context.Background()

	err := RunCreate(ctx, testLogger(), path, false, func(s *Session) error {
		if err := s.SelectSheet("Sheet1"); err != nil {
			return err
		}
		sheet, _ := s.Sheet()
		_, err := sheet.SetRowValues(1, 1, []any{"id", "name"})
		return err
	}, WithFileMode(0640))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	err = RunCreate(ctx, testLogger(), path, false, nil)
	assert.ErrorIs(t, err, ErrIOFailure)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".new."), "temporary file left behind: %s", e.Name())
	}
}

func TestSession_SheetManagement(t *testing.T) {
	path := createWorkbook(t)
	s := NewSession(testLogger())
	_, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	idx, err := s.AddSheet("Summary")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = s.AddSheet("summary")
	assert.ErrorIs(t, err, ErrInvalidSheetName)
	_, err = s.AddSheet("bad/name")
	assert.ErrorIs(t, err, ErrInvalidSheetName)
	_, err = s.AddSheet(strings.Repeat("x", MaxSheetNameLength+1))
	assert.ErrorIs(t, err, ErrInvalidSheetName)

	require.NoError(t, s.SelectSheet("Summary"))
	require.NoError(t, s.RenameSheet("Summary", "Totals"))
	assert.Equal(t, "Totals", s.CurrentSheet())
	assert.ErrorIs(t, s.RenameSheet("Totals", "DATA"), ErrInvalidSheetName)

	require.NoError(t, s.DeleteSheet("Totals"))
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, "", s.CurrentSheet())

	require.NoError(t, s.DeleteSheet("Notes"))
	assert.ErrorIs(t, s.DeleteSheet("Data"), ErrInvalidSheetName)
	assert.ErrorIs(t, s.DeleteSheet("Nope"), ErrSheetNotFound)

	count, err := s.SheetCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, s.Dirty())
}

func TestSheet_GeometryAndMerges(t *testing.T) {
	path := createWorkbook(t)
	ctx := context.Background()

	err := Run(ctx, testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		rng, _ := ParseRange("A3:C4")
		if err := sheet.MergeCells(rng); err != nil {
			return err
		}
		if err := sheet.SetColumnWidth(1, 2, 20); err != nil {
			return err
		}
		return sheet.SetRowHeight(3, 30)
	})
	require.NoError(t, err)

	err = Run(ctx, testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		merges, err := sheet.MergedRanges()
		require.NoError(t, err)
		require.Len(t, merges, 1)
		assert.Equal(t, "A3:C4", merges[0].String())

		assert.ErrorIs(t, sheet.MergeCells(CellRange(1, 1)), ErrInvalidRange)
		assert.ErrorIs(t, sheet.SetColumnWidth(1, 1, 0), ErrInvalidSize)
		assert.ErrorIs(t, sheet.SetRowHeight(1, MaxRowHeight+1), ErrInvalidSize)
		assert.Equal(t, "InvalidSize", KindOf(sheet.SetRowHeight(1, -1)))

		rng, _ := ParseRange("A3:C4")
		if err := sheet.UnmergeCells(rng); err != nil {
			return err
		}
		merges, err = sheet.MergedRanges()
		require.NoError(t, err)
		assert.Empty(t, merges)
		return nil
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	width, err := f.GetColWidth("Data", "B")
	require.NoError(t, err)
	assert.InDelta(t, 20, width, 0.01)
	height, err := f.GetRowHeight("Data", 3)
	require.NoError(t, err)
	assert.InDelta(t, 30, height, 0.01)
}

func TestSheet_RowsAndColumns(t *testing.T) {
	path := createWorkbook(t)

	err := Run(context.Background(), testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		_, err := sheet.SetColumnValues(1, 2, []any{"a", "b", "c"})
		require.NoError(t, err)

		rows, cols, err := sheet.Dimensions()
		require.NoError(t, err)
		assert.Equal(t, 4, rows)
		assert.Equal(t, 4, cols)

		row, err := sheet.RowValues(1)
		require.NoError(t, err)
		assert.Equal(t, []any{"Name", int64(42), 2.5, true}, row)

		col, err := sheet.ColumnValues(1)
		require.NoError(t, err)
		assert.Equal(t, []any{"Name", "a", "b", "c"}, col)

		require.NoError(t, sheet.ClearCell(1, 2))
		row, err = sheet.RowValues(1)
		require.NoError(t, err)
		assert.Equal(t, []any{"Name", nil, 2.5, true}, row)

		used, ok, err := sheet.UsedRange()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "A1:D4", used.String())
		return nil
	})
	require.NoError(t, err)
}

func TestSheet_ReadLimit(t *testing.T) {
	path := createWorkbook(t)
	err := Run(context.Background(), testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		_, err := sheet.ReadRange(Range{FirstRow: 1, FirstCol: 1, LastRow: 10, LastCol: 10})
		return err
	}, WithMaxRangeCells(50))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRun_ScalarShapesRoundTrip(t *testing.T) {
	path := createWorkbook(t)
	ctx := context.Background()
	want := [][]any{
		{"", "a", nil, int64(7)},
		{2.5, true, false, ""},
	}
	rng := Range{FirstRow: 1, FirstCol: 1, LastRow: 2, LastCol: 4}

	var before [][]any
	err := Run(ctx, testLogger(), path, "Notes", func(s *Session) error {
		sheet, _ := s.Sheet()
		if _, err := sheet.WriteRange(1, 1, want); err != nil {
			return err
		}
		var err error
		before, err = sheet.ReadRange(rng)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, want, before)

	var after [][]any
	err = Run(ctx, testLogger(), path, "Notes", func(s *Session) error {
		sheet, _ := s.Sheet()
		var err error
		after, err = sheet.ReadRange(rng)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, want, after, "values survive a save")
}

func TestRun_ClearedCellReadsEmpty(t *testing.T) {
	path := createWorkbook(t)
	err := Run(context.Background(), testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		require.NoError(t, sheet.ClearCell(1, 1))
		v, err := sheet.CellValue(1, 1)
		require.NoError(t, err)
		assert.Equal(t, Empty{}, v)
		return nil
	})
	require.NoError(t, err)
}

func TestRun_LongTextLeavesFileUntouched(t *testing.T) {
	path := createWorkbook(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = Run(context.Background(), testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		_, err := sheet.WriteRange(1, 1, [][]any{{"short", strings.Repeat("z", 40000)}})
		return err
	})
	assert.ErrorIs(t, err, ErrUnsupportedValueType)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSheet_SetCellValueRejectsLongText(t *testing.T) {
	path := createWorkbook(t)
	err := Run(context.Background(), testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		err := sheet.SetCellValue(1, 1, Text(strings.Repeat("z", MaxTextLength+1)))
		assert.ErrorIs(t, err, ErrUnsupportedValueType)
		v, err := sheet.CellValue(1, 1)
		require.NoError(t, err)
		assert.Equal(t, Text("Name"), v)
		return nil
	})
	require.NoError(t, err)
}

func TestSheet_StyleAndClearLimit(t *testing.T) {
	path := createWorkbook(t)
	rng := Range{FirstRow: 1, FirstCol: 1, LastRow: 3, LastCol: 3}

	err := Run(context.Background(), testLogger(), path, "Data", func(s *Session) error {
		sheet, _ := s.Sheet()
		before, err := sheet.CellStyle(1, 1)
		require.NoError(t, err)

		styled, err := sheet.ApplyStyle(rng, SetBold{On: true})
		assert.ErrorIs(t, err, ErrInvalidRange)
		assert.Equal(t, 0, styled)
		after, err := sheet.CellStyle(1, 1)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		cleared, err := sheet.ClearRange(rng)
		assert.ErrorIs(t, err, ErrInvalidRange)
		assert.Equal(t, 0, cleared)
		v, err := sheet.CellValue(1, 1)
		require.NoError(t, err)
		assert.Equal(t, Text("Name"), v)

		small := Range{FirstRow: 1, FirstCol: 1, LastRow: 2, LastCol: 2}
		styled, err = sheet.ApplyStyle(small, SetBold{On: true})
		require.NoError(t, err)
		assert.Equal(t, 4, styled)
		cleared, err = sheet.ClearRange(small)
		require.NoError(t, err)
		assert.Equal(t, 4, cleared)
		return nil
	}, WithMaxRangeCells(4))
	require.NoError(t, err)
}

func TestSession_SaveAs(t *testing.T) {
	path := createWorkbook(t)
	copyPath := filepath.Join(t.TempDir(), "copy.xlsx")

	s := NewSession(testLogger())
	_, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.SaveAs(copyPath))
	assert.ErrorIs(t, s.SaveAs(filepath.Join(t.TempDir(), "copy.txt")), ErrIOFailure)
	assert.True(t, s.Close())

	f, err := excelize.OpenFile(copyPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{"Data", "Notes"}, f.GetSheetList())
}
