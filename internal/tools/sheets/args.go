package sheets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/sammcj/mcp-sheets/internal/spreadsheet"
)

// toolArgs are the top-level arguments shared by every function
type toolArgs struct {
	Function  string `zog:"function"`
	FilePath  string `zog:"file_path"`
	SheetName string `zog:"sheet_name"`
}

var toolArgsSchema = z.Struct(z.Shape{
	"function":  z.String().Required().OneOf(functionNames),
	"filePath":  z.String().Trim(),
	"sheetName": z.String(),
})

// areaArgs locate a cell or range: "cell", "range" or numeric coordinates
type areaArgs struct {
	Cell        string `zog:"cell"`
	Range       string `zog:"range"`
	FirstRow    int    `zog:"first_row"`
	FirstColumn int    `zog:"first_column"`
	LastRow     int    `zog:"last_row"`
	LastColumn  int    `zog:"last_column"`
}

var areaSchema = z.Struct(z.Shape{
	"cell":        z.String().Trim(),
	"range":       z.String().Trim(),
	"firstRow":    z.Int().GTE(1),
	"firstColumn": z.Int().GTE(1),
	"lastRow":     z.Int().GTE(1),
	"lastColumn":  z.Int().GTE(1),
})

// resolve returns the area the arguments describe. ok is false when none was given.
// Missing last coordinates default to the first, so first_row/first_column alone
// select a single cell.
func (a areaArgs) resolve() (rng spreadsheet.Range, ok bool, err error) {
	switch {
	case a.Range != "":
		rng, err = spreadsheet.ParseRange(a.Range)
		return rng, true, err
	case a.Cell != "":
		row, col, err := spreadsheet.ParseCellName(a.Cell)
		if err != nil {
			return spreadsheet.Range{}, true, err
		}
		return spreadsheet.CellRange(row, col), true, nil
	case a.FirstRow == 0 && a.FirstColumn == 0:
		return spreadsheet.Range{}, false, nil
	}

	rng = spreadsheet.Range{FirstRow: a.FirstRow, FirstCol: a.FirstColumn, LastRow: a.LastRow, LastCol: a.LastColumn}
	if rng.LastRow == 0 {
		rng.LastRow = rng.FirstRow
	}
	if rng.LastCol == 0 {
		rng.LastCol = rng.FirstCol
	}
	return rng, true, rng.Validate()
}

// required is resolve for functions that cannot default the area
func (a areaArgs) required() (spreadsheet.Range, error) {
	rng, ok, err := a.resolve()
	if err != nil {
		return spreadsheet.Range{}, err
	}
	if !ok {
		return spreadsheet.Range{}, &ValidationError{Field: "range", Message: "one of range, cell or first_row/first_column is required"}
	}
	return rng, nil
}

type createArgs struct {
	Overwrite bool `zog:"overwrite"`
}

var createSchema = z.Struct(z.Shape{
	"overwrite": z.Bool().Default(false),
})

type readArgs struct {
	Sparse bool `zog:"sparse"`
}

var readSchema = z.Struct(z.Shape{
	"sparse": z.Bool().Default(false),
})

type styleArgs struct {
	FontColor  string  `zog:"font_color"`
	FontSize   float64 `zog:"font_size"`
	Bold       bool    `zog:"bold"`
	Italic     bool    `zog:"italic"`
	Underline  bool    `zog:"underline"`
	FillColor  string  `zog:"fill_color"`
	Horizontal string  `zog:"horizontal"`
	Vertical   string  `zog:"vertical"`
}

var styleSchema = z.Struct(z.Shape{
	"fontColor":  z.String().Trim(),
	"fontSize":   z.Float().GT(0).LTE(409),
	"bold":       z.Bool(),
	"italic":     z.Bool(),
	"underline":  z.Bool(),
	"fillColor":  z.String().Trim(),
	"horizontal": z.String().Trim(),
	"vertical":   z.String().Trim(),
})

// mutations builds the style changes in a fixed order. Boolean attributes are
// only applied when present in options, so "bold": false clears bold while an
// absent key leaves it alone.
func (a styleArgs) mutations(options map[string]any) ([]spreadsheet.Mutation, error) {
	var out []spreadsheet.Mutation

	if a.FontColor != "" {
		c, err := spreadsheet.ParseColor(a.FontColor)
		if err != nil {
			return nil, &ValidationError{Field: "font_color", Value: a.FontColor, Message: err.Error()}
		}
		out = append(out, spreadsheet.SetFontColor{Color: c})
	}
	if a.FontSize > 0 {
		out = append(out, spreadsheet.SetFontSize{Points: a.FontSize})
	}
	if _, ok := options["bold"]; ok {
		out = append(out, spreadsheet.SetBold{On: a.Bold})
	}
	if _, ok := options["italic"]; ok {
		out = append(out, spreadsheet.SetItalic{On: a.Italic})
	}
	if _, ok := options["underline"]; ok {
		out = append(out, spreadsheet.SetUnderline{On: a.Underline})
	}
	if a.FillColor != "" {
		c, err := spreadsheet.ParseColor(a.FillColor)
		if err != nil {
			return nil, &ValidationError{Field: "fill_color", Value: a.FillColor, Message: err.Error()}
		}
		out = append(out, spreadsheet.SetFillColor{Color: c})
	}

	h, err := spreadsheet.ParseHorizontal(a.Horizontal)
	if err != nil {
		return nil, &ValidationError{Field: "horizontal", Value: a.Horizontal, Message: err.Error()}
	}
	v, err := spreadsheet.ParseVertical(a.Vertical)
	if err != nil {
		return nil, &ValidationError{Field: "vertical", Value: a.Vertical, Message: err.Error()}
	}
	if h != spreadsheet.HorizontalUnchanged || v != spreadsheet.VerticalUnchanged {
		out = append(out, spreadsheet.SetAlignment{Horizontal: h, Vertical: v})
	}

	if len(out) == 0 {
		return nil, &ValidationError{Field: "options", Message: "at least one style attribute is required"}
	}
	return out, nil
}

type renameArgs struct {
	NewName string `zog:"new_name"`
}

var renameSchema = z.Struct(z.Shape{
	"newName": z.String().Trim().Required(),
})

type columnWidthArgs struct {
	Columns string  `zog:"columns"`
	Width   float64 `zog:"width"`
}

var columnWidthSchema = z.Struct(z.Shape{
	"columns": z.String().Trim().Required(),
	"width":   z.Float().Required(),
})

// span parses "B" or "B:D" into column numbers
func (a columnWidthArgs) span() (first, last int, err error) {
	from, to, found := strings.Cut(a.Columns, ":")
	if !found {
		to = from
	}
	if first, err = spreadsheet.ColumnNumber(strings.TrimSpace(from)); err != nil {
		return 0, 0, err
	}
	if last, err = spreadsheet.ColumnNumber(strings.TrimSpace(to)); err != nil {
		return 0, 0, err
	}
	return first, last, nil
}

type rowHeightArgs struct {
	Row    int     `zog:"row"`
	Height float64 `zog:"height"`
}

var rowHeightSchema = z.Struct(z.Shape{
	"row":    z.Int().Required(),
	"height": z.Float().Required(),
})

type rowArgs struct {
	Row         int `zog:"row"`
	FirstColumn int `zog:"first_column"`
}

var rowSchema = z.Struct(z.Shape{
	"row":         z.Int().Required(),
	"firstColumn": z.Int().Default(1),
})

type columnArgs struct {
	Column   string `zog:"column"`
	FirstRow int    `zog:"first_row"`
}

var columnSchema = z.Struct(z.Shape{
	"column":   z.String().Trim().Required(),
	"firstRow": z.Int().Default(1),
})

type saveAsArgs struct {
	TargetPath string `zog:"target_path"`
}

var saveAsSchema = z.Struct(z.Shape{
	"targetPath": z.String().Trim().Required(),
})

// parseOptions validates options against schema into dst
func parseOptions(schema *z.StructSchema, options map[string]any, dst any) error {
	if issues := schema.Parse(options, dst); len(issues) != 0 {
		return issuesError(issues)
	}
	return nil
}

// valuesOption returns options[key] re-decoded so whole numbers come back as
// json.Number and are written as integers rather than floats.
func valuesOption(options map[string]any, key string) (any, error) {
	raw, ok := options[key]
	if !ok || raw == nil {
		return nil, &ValidationError{Field: key, Message: "values are required"}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, &ValidationError{Field: key, Message: fmt.Sprintf("values cannot be encoded: %v", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, &ValidationError{Field: key, Message: fmt.Sprintf("values cannot be decoded: %v", err)}
	}
	return out, nil
}

// listOption is valuesOption for a flat list
func listOption(options map[string]any, key string) ([]any, error) {
	raw, err := valuesOption(options, key)
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &ValidationError{Field: key, Value: raw, Message: "expected an array of values"}
	}
	return list, nil
}
