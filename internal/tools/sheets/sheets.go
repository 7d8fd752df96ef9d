package sheets

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/config"
	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/spreadsheet"
	"github.com/sirupsen/logrus"
)

// ToolName is the name the tool is registered under
const ToolName = "spreadsheet"

var functionNames = []string{
	// Workbook
	"open_workbook", "create_workbook", "close_workbook", "save_as",
	// Sheets
	"list_sheets", "add_sheet", "delete_sheet", "rename_sheet", "get_sheet_info",
	// Data
	"read_range", "write_range", "read_row", "read_column", "write_row", "write_column", "clear_cell",
	// Formatting
	"set_style", "merge_cells", "unmerge_cells", "set_column_width", "set_row_height",
}

// SpreadsheetTool reads, writes and formats xlsx workbooks
type SpreadsheetTool struct {
	// cfg and state default to config.Current and config.GetGlobalState
	cfg   *config.Config
	state *config.StateFile
}

func init() {
	registry.Register(&SpreadsheetTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *SpreadsheetTool) Definition() mcp.Tool {
	return mcp.NewTool(
		ToolName,
		mcp.WithDescription(`Spreadsheet (.xlsx) reading, writing and formatting. Every call opens the workbook, performs one operation and saves it; a failed call leaves the file untouched.

Cells are addressed in A1 notation ("B2", "A1:C3") or with 1-based first_row/first_column/last_row/last_column. Values are null (empty cell), booleans, numbers or strings. Integers and floats are kept apart: 3 stays 3, 3.5 stays 3.5.

Typical workflow: create_workbook or open_workbook, write_range with a 2D array of values, set_style for fonts, fills and alignment, read_range to check the result. After open_workbook, file_path may be omitted and the workbook is reused.

Errors start with a stable kind, e.g. "SheetNotFound: ...", "InvalidAddress: ...", "UnsupportedValueType: ...".

Use get_tool_help with tool_name="spreadsheet" for examples and troubleshooting.`),
		mcp.WithString("function",
			mcp.Required(),
			mcp.Description("Operation to perform"),
			mcp.Enum(functionNames...),
		),
		mcp.WithString("file_path",
			mcp.Description("Path to the workbook (.xlsx, .xlsm, .xltx, .xltm). Relative paths resolve under the configured base directory and may not leave it. Absolute paths are used as given and are not confined to the base directory. Defaults to the workbook last opened."),
		),
		mcp.WithString("sheet_name",
			mcp.Description("Worksheet name. Required for cell operations, add_sheet, delete_sheet and rename_sheet. Matching is case-insensitive when no exact match exists."),
		),
		mcp.WithObject("options",
			mcp.Description("Function-specific options"),
			mcp.Properties(map[string]any{
				"range": map[string]any{
					"type":        "string",
					"description": "Range in A1 notation, e.g. 'A1:C3'. read_range and get_sheet_info default to the used range.",
				},
				"cell": map[string]any{
					"type":        "string",
					"description": "Single cell in A1 notation, e.g. 'B2'. For write_range, the top-left cell.",
				},
				"first_row": map[string]any{
					"type":        "number",
					"description": "First row (1-based)",
				},
				"first_column": map[string]any{
					"type":        "number",
					"description": "First column (1-based, A=1)",
				},
				"last_row": map[string]any{
					"type":        "number",
					"description": "Last row (1-based, defaults to first_row)",
				},
				"last_column": map[string]any{
					"type":        "number",
					"description": "Last column (1-based, defaults to first_column)",
				},
				"sparse": map[string]any{
					"type":        "boolean",
					"description": "read_range: return only non-empty cells as 'value@A1' strings",
					"default":     false,
				},
				"values": map[string]any{
					"type":        "array",
					"description": "write_range: 2D array of rows, e.g. [['Name','Qty'],['Apples',3]]. write_row/write_column: flat array.",
				},
				"row": map[string]any{
					"type":        "number",
					"description": "Row number for read_row, write_row and set_row_height",
				},
				"column": map[string]any{
					"type":        "string",
					"description": "Column letters for read_column and write_column, e.g. 'C'",
				},
				"columns": map[string]any{
					"type":        "string",
					"description": "set_column_width: a column or span, e.g. 'B' or 'B:D'",
				},
				"width": map[string]any{
					"type":        "number",
					"description": "Column width in characters (up to 255)",
				},
				"height": map[string]any{
					"type":        "number",
					"description": "Row height in points (up to 409)",
				},
				"font_color": map[string]any{
					"type":        "string",
					"description": "Font colour as RRGGBB",
				},
				"font_size": map[string]any{
					"type":        "number",
					"description": "Font size in points",
				},
				"bold": map[string]any{
					"type": "boolean",
				},
				"italic": map[string]any{
					"type": "boolean",
				},
				"underline": map[string]any{
					"type": "boolean",
				},
				"fill_color": map[string]any{
					"type":        "string",
					"description": "Solid background colour as RRGGBB",
				},
				"horizontal": map[string]any{
					"type": "string",
					"enum": []string{"left", "center", "right"},
				},
				"vertical": map[string]any{
					"type": "string",
					"enum": []string{"top", "center", "bottom"},
				},
				"new_name": map[string]any{
					"type":        "string",
					"description": "rename_sheet: the new sheet name",
				},
				"overwrite": map[string]any{
					"type":        "boolean",
					"description": "create_workbook: replace an existing file",
					"default":     false,
				},
				"target_path": map[string]any{
					"type":        "string",
					"description": "save_as: where to write a copy of the workbook",
				},
			}),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute runs one spreadsheet function
func (t *SpreadsheetTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var top toolArgs
	if err := parseOptions(toolArgsSchema, args, &top); err != nil {
		return toolResult(nil, err)
	}

	options, _ := args["options"].(map[string]any)
	if options == nil {
		options = make(map[string]any)
	}

	if top.Function == "create_workbook" && top.FilePath == "" {
		return toolResult(nil, &ValidationError{Field: "file_path", Message: "file_path is required to create a workbook"})
	}
	path, err := t.resolvePath(top.FilePath)
	if err != nil {
		return toolResult(nil, err)
	}

	logger.WithFields(logrus.Fields{
		"function":   top.Function,
		"file_path":  path,
		"sheet_name": top.SheetName,
	}).Info("Executing spreadsheet operation")

	handler, ok := handlers[top.Function]
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", top.Function)
	}
	c := &call{tool: t, logger: logger, path: path, sheet: top.SheetName, options: options}
	return toolResult(handler(ctx, c))
}

func (t *SpreadsheetTool) settings() *config.Config {
	if t.cfg != nil {
		return t.cfg
	}
	return config.Current()
}

func (t *SpreadsheetTool) stateFile() *config.StateFile {
	if t.state != nil {
		return t.state
	}
	return config.GetGlobalState()
}

func (t *SpreadsheetTool) sessionOptions() []spreadsheet.Option {
	cfg := t.settings()
	return []spreadsheet.Option{
		spreadsheet.WithLockTimeout(cfg.LockTimeout),
		spreadsheet.WithFileMode(cfg.Mode()),
		spreadsheet.WithMaxRangeCells(cfg.MaxRangeCells),
	}
}

// resolvePath turns file_path into an absolute workbook path. An empty path
// means the active workbook; relative paths must stay inside the base directory.
// Absolute paths are trusted as given.
func (t *SpreadsheetTool) resolvePath(filePath string) (string, error) {
	if filePath == "" {
		active := t.stateFile().GetActiveWorkbook()
		if active == "" {
			return "", fmt.Errorf("%w: file_path is required when no workbook has been opened", spreadsheet.ErrDocumentNotOpen)
		}
		return active, nil
	}

	if filepath.IsAbs(filePath) {
		return filepath.Clean(filePath), nil
	}
	if !filepath.IsLocal(filePath) {
		return "", &ValidationError{Field: "file_path", Value: filePath, Message: "relative paths must stay inside the base directory"}
	}
	return filepath.Join(t.settings().BaseDir, filePath), nil
}
