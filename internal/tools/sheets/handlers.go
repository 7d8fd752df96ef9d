package sheets

import (
	"context"
	"os"
	"slices"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/cache"
	"github.com/sammcj/mcp-sheets/internal/spreadsheet"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
)

// call carries one request through its handler
type call struct {
	tool    *SpreadsheetTool
	logger  *logrus.Logger
	path    string
	sheet   string
	options map[string]any
}

type handlerFunc func(ctx context.Context, c *call) (*mcp.CallToolResult, error)

var handlers = map[string]handlerFunc{
	"open_workbook":    handleOpenWorkbook,
	"create_workbook":  handleCreateWorkbook,
	"close_workbook":   handleCloseWorkbook,
	"save_as":          handleSaveAs,
	"list_sheets":      handleListSheets,
	"add_sheet":        handleAddSheet,
	"delete_sheet":     handleDeleteSheet,
	"rename_sheet":     handleRenameSheet,
	"get_sheet_info":   handleGetSheetInfo,
	"read_range":       handleReadRange,
	"write_range":      handleWriteRange,
	"read_row":         handleReadRow,
	"read_column":      handleReadColumn,
	"write_row":        handleWriteRow,
	"write_column":     handleWriteColumn,
	"clear_cell":       handleClearCell,
	"set_style":        handleSetStyle,
	"merge_cells":      handleMergeCells,
	"unmerge_cells":    handleUnmergeCells,
	"set_column_width": handleSetColumnWidth,
	"set_row_height":   handleSetRowHeight,
}

// sheetListing is a cached list_sheets answer, valid while the file is unchanged
type sheetListing struct {
	modTime time.Time
	size    int64
	names   []string
}

const sheetCacheTTL = 10 * time.Minute

var sheetCache = cache.NewCache[sheetListing](sheetCacheTTL)

// run opens the workbook, optionally selecting sheet, and calls fn
func (c *call) run(ctx context.Context, sheet string, fn func(*spreadsheet.Session) error) error {
	return spreadsheet.Run(ctx, c.logger, c.path, sheet, fn, c.tool.sessionOptions()...)
}

// withSheet runs fn against the requested sheet, which must be named
func (c *call) withSheet(ctx context.Context, fn func(*spreadsheet.Sheet) error) error {
	if err := c.requireSheetName(); err != nil {
		return err
	}
	return c.run(ctx, c.sheet, func(s *spreadsheet.Session) error {
		sh, err := s.Sheet()
		if err != nil {
			return err
		}
		return fn(sh)
	})
}

func (c *call) requireSheetName() error {
	if c.sheet == "" {
		return &ValidationError{Field: "sheet_name", Message: "sheet_name is required for this function"}
	}
	return nil
}

// remember makes the workbook the active one. Failing to persist the state is
// logged and not reported to the client.
func (c *call) remember() {
	if err := c.tool.stateFile().SetActiveWorkbook(c.path, c.tool.settings().RecentLimit); err != nil {
		c.logger.WithError(err).Warn("Failed to save active workbook")
	}
}

func handleOpenWorkbook(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var names []string
	err := c.run(ctx, "", func(s *spreadsheet.Session) error {
		var err error
		names, err = s.SheetNames()
		return err
	})
	if err != nil {
		return nil, err
	}
	c.remember()

	recent := c.tool.stateFile().Recent()
	recentPaths := make([]string, 0, len(recent))
	for _, r := range recent {
		recentPaths = append(recentPaths, r.Path)
	}
	return tools.NewToolResultJSON(map[string]any{
		"file_path": c.path,
		"sheets":    names,
		"recent":    recentPaths,
	})
}

func handleCreateWorkbook(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var args createArgs
	if err := parseOptions(createSchema, c.options, &args); err != nil {
		return nil, err
	}

	var names []string
	err := spreadsheet.RunCreate(ctx, c.logger, c.path, args.Overwrite, func(s *spreadsheet.Session) error {
		current, err := s.SheetNames()
		if err != nil {
			return err
		}
		if c.sheet != "" && c.sheet != current[0] {
			if err := s.RenameSheet(current[0], c.sheet); err != nil {
				return err
			}
		}
		names, err = s.SheetNames()
		return err
	}, c.tool.sessionOptions()...)
	if err != nil {
		return nil, err
	}
	sheetCache.Delete(c.path)
	c.remember()

	return tools.NewToolResultJSON(map[string]any{
		"file_path": c.path,
		"sheets":    names,
		"created":   true,
	})
}

func handleCloseWorkbook(_ context.Context, c *call) (*mcp.CallToolResult, error) {
	state := c.tool.stateFile()
	wasActive := state.GetActiveWorkbook() == c.path
	if err := state.ClearActiveWorkbook(c.path); err != nil {
		c.logger.WithError(err).Warn("Failed to clear active workbook")
	}
	sheetCache.Delete(c.path)

	return tools.NewToolResultJSON(map[string]any{
		"file_path": c.path,
		"closed":    wasActive,
	})
}

func handleSaveAs(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var args saveAsArgs
	if err := parseOptions(saveAsSchema, c.options, &args); err != nil {
		return nil, err
	}
	target, err := c.tool.resolvePath(args.TargetPath)
	if err != nil {
		return nil, err
	}

	if err := c.run(ctx, "", func(s *spreadsheet.Session) error {
		return s.SaveAs(target)
	}); err != nil {
		return nil, err
	}
	sheetCache.Delete(target)

	return tools.NewToolResultJSON(map[string]any{
		"file_path":   c.path,
		"target_path": target,
	})
}

func handleListSheets(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	if info, err := os.Stat(c.path); err == nil {
		if cached, ok := sheetCache.Get(c.path); ok {
			if cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
				return tools.NewToolResultJSON(map[string]any{
					"file_path": c.path,
					"sheets":    cached.names,
					"cached":    true,
				})
			}
			sheetCache.Delete(c.path)
		}
	}

	var names []string
	if err := c.run(ctx, "", func(s *spreadsheet.Session) error {
		var err error
		names, err = s.SheetNames()
		return err
	}); err != nil {
		return nil, err
	}

	if info, err := os.Stat(c.path); err == nil {
		sheetCache.Set(c.path, sheetListing{modTime: info.ModTime(), size: info.Size(), names: names})
	}
	return tools.NewToolResultJSON(map[string]any{
		"file_path": c.path,
		"sheets":    names,
		"cached":    false,
	})
}

func handleAddSheet(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	if err := c.requireSheetName(); err != nil {
		return nil, err
	}

	var index int
	var names []string
	if err := c.run(ctx, "", func(s *spreadsheet.Session) error {
		var err error
		if index, err = s.AddSheet(c.sheet); err != nil {
			return err
		}
		names, err = s.SheetNames()
		return err
	}); err != nil {
		return nil, err
	}
	sheetCache.Delete(c.path)

	return tools.NewToolResultJSON(map[string]any{
		"sheet":  c.sheet,
		"index":  index,
		"sheets": names,
	})
}

func handleDeleteSheet(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	if err := c.requireSheetName(); err != nil {
		return nil, err
	}

	var names []string
	if err := c.run(ctx, "", func(s *spreadsheet.Session) error {
		if err := s.DeleteSheet(c.sheet); err != nil {
			return err
		}
		var err error
		names, err = s.SheetNames()
		return err
	}); err != nil {
		return nil, err
	}
	sheetCache.Delete(c.path)

	return tools.NewToolResultJSON(map[string]any{
		"deleted": c.sheet,
		"sheets":  names,
	})
}

func handleRenameSheet(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	if err := c.requireSheetName(); err != nil {
		return nil, err
	}
	var args renameArgs
	if err := parseOptions(renameSchema, c.options, &args); err != nil {
		return nil, err
	}

	var names []string
	if err := c.run(ctx, "", func(s *spreadsheet.Session) error {
		if err := s.RenameSheet(c.sheet, args.NewName); err != nil {
			return err
		}
		var err error
		names, err = s.SheetNames()
		return err
	}); err != nil {
		return nil, err
	}
	sheetCache.Delete(c.path)

	return tools.NewToolResultJSON(map[string]any{
		"old_name": c.sheet,
		"new_name": args.NewName,
		"sheets":   names,
	})
}

func handleGetSheetInfo(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	result := map[string]any{}
	err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		names, err := sh.Session().SheetNames()
		if err != nil {
			return err
		}
		rows, cols, err := sh.Dimensions()
		if err != nil {
			return err
		}
		merged, err := sh.MergedRanges()
		if err != nil {
			return err
		}
		mergedRefs := make([]string, 0, len(merged))
		for _, m := range merged {
			mergedRefs = append(mergedRefs, m.String())
		}

		usedRange := ""
		if used, ok, err := sh.UsedRange(); err != nil {
			return err
		} else if ok {
			usedRange = used.String()
		}

		result["sheet"] = sh.Name()
		result["index"] = slices.Index(names, sh.Name())
		result["rows"] = rows
		result["columns"] = cols
		result["used_range"] = usedRange
		result["merged_ranges"] = mergedRefs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(result)
}

func handleReadRange(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var area areaArgs
	if err := parseOptions(areaSchema, c.options, &area); err != nil {
		return nil, err
	}
	var args readArgs
	if err := parseOptions(readSchema, c.options, &args); err != nil {
		return nil, err
	}
	rng, given, err := area.resolve()
	if err != nil {
		return nil, err
	}

	result := map[string]any{}
	err = c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		result["sheet"] = sh.Name()
		if !given {
			used, ok, err := sh.UsedRange()
			if err != nil {
				return err
			}
			if !ok {
				result["range"] = ""
				if args.Sparse {
					result["cells"] = []string{}
				} else {
					result["values"] = [][]any{}
				}
				return nil
			}
			rng = used
		}
		result["range"] = rng.String()

		if args.Sparse {
			cells, err := sh.ReadSparse(rng)
			if err != nil {
				return err
			}
			result["cells"] = cells
			return nil
		}
		values, err := sh.ReadRange(rng)
		if err != nil {
			return err
		}
		result["values"] = values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(result)
}

func handleWriteRange(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var area areaArgs
	if err := parseOptions(areaSchema, c.options, &area); err != nil {
		return nil, err
	}
	rng, err := area.required()
	if err != nil {
		return nil, err
	}
	values, err := valuesOption(c.options, "values")
	if err != nil {
		return nil, err
	}

	var written int
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		written, err = sh.WriteRange(rng.FirstRow, rng.FirstCol, values)
		return err
	}); err != nil {
		return nil, err
	}

	topLeft, _ := rng.TopLeft()
	return tools.NewToolResultJSON(map[string]any{
		"sheet":         c.sheet,
		"cell":          topLeft,
		"cells_written": written,
	})
}

func handleReadRow(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var args rowArgs
	if err := parseOptions(rowSchema, c.options, &args); err != nil {
		return nil, err
	}

	var values []any
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		var err error
		values, err = sh.RowValues(args.Row)
		return err
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":  c.sheet,
		"row":    args.Row,
		"values": values,
	})
}

func handleReadColumn(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var args columnArgs
	if err := parseOptions(columnSchema, c.options, &args); err != nil {
		return nil, err
	}
	col, err := spreadsheet.ColumnNumber(args.Column)
	if err != nil {
		return nil, err
	}

	var values []any
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		values, err = sh.ColumnValues(col)
		return err
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":  c.sheet,
		"column": args.Column,
		"values": values,
	})
}

func handleWriteRow(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var args rowArgs
	if err := parseOptions(rowSchema, c.options, &args); err != nil {
		return nil, err
	}
	values, err := listOption(c.options, "values")
	if err != nil {
		return nil, err
	}

	var written int
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		written, err = sh.SetRowValues(args.Row, args.FirstColumn, values)
		return err
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":         c.sheet,
		"row":           args.Row,
		"cells_written": written,
	})
}

func handleWriteColumn(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var args columnArgs
	if err := parseOptions(columnSchema, c.options, &args); err != nil {
		return nil, err
	}
	col, err := spreadsheet.ColumnNumber(args.Column)
	if err != nil {
		return nil, err
	}
	values, err := listOption(c.options, "values")
	if err != nil {
		return nil, err
	}

	var written int
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		written, err = sh.SetColumnValues(col, args.FirstRow, values)
		return err
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":         c.sheet,
		"column":        args.Column,
		"cells_written": written,
	})
}

func handleClearCell(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	rng, err := requiredArea(c.options)
	if err != nil {
		return nil, err
	}

	var cleared int
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		cleared, err = sh.ClearRange(rng)
		return err
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":         c.sheet,
		"range":         rng.String(),
		"cells_cleared": cleared,
	})
}

func handleSetStyle(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	rng, err := requiredArea(c.options)
	if err != nil {
		return nil, err
	}
	var args styleArgs
	if err := parseOptions(styleSchema, c.options, &args); err != nil {
		return nil, err
	}
	mutations, err := args.mutations(c.options)
	if err != nil {
		return nil, err
	}

	var styled int
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		styled, err = sh.ApplyStyle(rng, mutations...)
		return err
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":        c.sheet,
		"range":        rng.String(),
		"cells_styled": styled,
		"attributes":   len(mutations),
	})
}

func handleMergeCells(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	rng, err := requiredArea(c.options)
	if err != nil {
		return nil, err
	}
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		return sh.MergeCells(rng)
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":  c.sheet,
		"merged": rng.String(),
	})
}

func handleUnmergeCells(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	rng, err := requiredArea(c.options)
	if err != nil {
		return nil, err
	}
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		return sh.UnmergeCells(rng)
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":    c.sheet,
		"unmerged": rng.String(),
	})
}

func handleSetColumnWidth(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var args columnWidthArgs
	if err := parseOptions(columnWidthSchema, c.options, &args); err != nil {
		return nil, err
	}
	first, last, err := args.span()
	if err != nil {
		return nil, err
	}
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		return sh.SetColumnWidth(first, last, args.Width)
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":   c.sheet,
		"columns": args.Columns,
		"width":   args.Width,
	})
}

func handleSetRowHeight(ctx context.Context, c *call) (*mcp.CallToolResult, error) {
	var args rowHeightArgs
	if err := parseOptions(rowHeightSchema, c.options, &args); err != nil {
		return nil, err
	}
	if err := c.withSheet(ctx, func(sh *spreadsheet.Sheet) error {
		return sh.SetRowHeight(args.Row, args.Height)
	}); err != nil {
		return nil, err
	}
	return tools.NewToolResultJSON(map[string]any{
		"sheet":  c.sheet,
		"row":    args.Row,
		"height": args.Height,
	})
}

func requiredArea(options map[string]any) (spreadsheet.Range, error) {
	var area areaArgs
	if err := parseOptions(areaSchema, options, &area); err != nil {
		return spreadsheet.Range{}, err
	}
	return area.required()
}
