package sheets

import "github.com/sammcj/mcp-sheets/internal/tools"

// ProvideExtendedInfo provides detailed usage information for the spreadsheet tool
func (t *SpreadsheetTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Create a workbook with a named first sheet",
				Arguments: map[string]any{
					"function":   "create_workbook",
					"file_path":  "reports/stock.xlsx",
					"sheet_name": "Stock",
				},
				ExpectedResult: `{"file_path": ".../reports/stock.xlsx", "sheets": ["Stock"], "created": true}`,
			},
			{
				Description: "Write a header row and data starting at A1",
				Arguments: map[string]any{
					"function":   "write_range",
					"sheet_name": "Stock",
					"options": map[string]any{
						"cell":   "A1",
						"values": []any{[]any{"Item", "Qty", "Price"}, []any{"Apples", 3, 0.5}, []any{"Pears", nil, 0.75}},
					},
				},
				ExpectedResult: `{"cell": "A1", "cells_written": 9}`,
			},
			{
				Description: "Read only the non-empty cells of a range",
				Arguments: map[string]any{
					"function":   "read_range",
					"sheet_name": "Stock",
					"options":    map[string]any{"range": "A1:C3", "sparse": true},
				},
				ExpectedResult: `{"cells": ["Item@A1", "Qty@B1", "Price@C1", "Apples@A2", "3@B2", "0.5@C2", "Pears@A3", "0.75@C3"]}`,
			},
			{
				Description: "Bold, centred header with a yellow fill",
				Arguments: map[string]any{
					"function":   "set_style",
					"sheet_name": "Stock",
					"options": map[string]any{
						"range":      "A1:C1",
						"bold":       true,
						"fill_color": "FFFF00",
						"horizontal": "center",
					},
				},
			},
			{
				Description: "Widen columns B to D",
				Arguments: map[string]any{
					"function":   "set_column_width",
					"sheet_name": "Stock",
					"options":    map[string]any{"columns": "B:D", "width": 18},
				},
			},
		},
		CommonPatterns: []string{
			"open_workbook once, then omit file_path on later calls to reuse the workbook",
			"read_range without a range reads the sheet's used range",
			"Use sparse reads on large, mostly empty sheets",
			"Write null to clear a cell as part of a write_range",
			"Style changes only touch the attributes you pass; other formatting is kept",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "SheetNotFound error",
				Solution: "Check the sheet name with list_sheets. The error suggests close matches when there are any.",
			},
			{
				Problem:  "UnsupportedValueType error on write_range",
				Solution: "values must be an array of arrays containing only null, booleans, numbers and strings. Nothing is written when any value is rejected.",
			},
			{
				Problem:  "IOFailure: workbook is locked",
				Solution: "Another call or process is using the workbook. Retry once it finishes. Locks are held on a '<workbook>.lock' file created next to the workbook; the file is left in place after the lock is released.",
			},
			{
				Problem:  "DocumentNotOpen error without file_path",
				Solution: "No workbook is active. Pass file_path or call open_workbook first.",
			},
			{
				Problem:  "InvalidRange error when reading",
				Solution: "The range may be reversed or larger than the configured max_range_cells. Read it in smaller pieces.",
			},
		},
		ParameterDetails: map[string]string{
			"file_path":  "Absolute path, or a path relative to the base directory (SHEETS_BASE_DIR, default ~/.mcp-sheets/workbooks). Relative paths may not leave the base directory; absolute paths are not restricted. A '<path>.lock' file is created next to each workbook that is opened. Supported extensions: .xlsx, .xlsm, .xltx, .xltm.",
			"sheet_name": "Exact names are tried first, then a case-insensitive match.",
			"values":     "Rows of values. Integers stay integers; 3.5 is stored as a float. Strings are stored as text, never as formulas.",
			"range":      "A1 notation such as 'B2:D10', or a single cell. first_row/first_column/last_row/last_column are the numeric equivalent.",
			"sparse":     "Returns 'value@A1' strings for non-empty cells, row by row.",
		},
		WhenToUse:    "Reading, writing and formatting local xlsx workbooks: tabular data, reports, simple styling, sheet management.",
		WhenNotToUse: "Formulas, charts, pivot tables or legacy .xls files. Cloud spreadsheets are not supported.",
	}
}
