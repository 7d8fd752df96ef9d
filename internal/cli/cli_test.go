package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/sammcj/mcp-sheets/internal/tools/sheets"
)

func testDefinition() mcp.Tool {
	return mcp.NewTool("spreadsheet",
		mcp.WithString("function", mcp.Required()),
		mcp.WithString("file_path"),
		mcp.WithObject("options", mcp.Properties(map[string]any{
			"range":  map[string]any{"type": "string"},
			"sparse": map[string]any{"type": "boolean"},
			"width":  map[string]any{"type": "number"},
			"values": map[string]any{"type": "array"},
		})),
	)
}

func TestParseArgs(t *testing.T) {
	params, err := parseArgs([]string{
		"--function=read_range",
		"--file-path", "/tmp/book.xlsx",
		"--range=A1:B2",
		"--sparse",
		"--width=12.5",
		"--values", `[["a", 1]]`,
		`{"function": "ignored", "sheet_name": "Data"}`,
	}, testDefinition())
	require.NoError(t, err)

	assert.Equal(t, "read_range", params["function"])
	assert.Equal(t, "/tmp/book.xlsx", params["file_path"])
	assert.Equal(t, "Data", params["sheet_name"])
	assert.Equal(t, map[string]any{
		"range":  "A1:B2",
		"sparse": true,
		"width":  12.5,
		"values": []any{[]any{"a", float64(1)}},
	}, params["options"])
}

func TestParseArgs_Errors(t *testing.T) {
	_, err := parseArgs([]string{"stray"}, testDefinition())
	assert.Error(t, err)

	_, err = parseArgs([]string{"--range"}, testDefinition())
	assert.Error(t, err)

	_, err = parseArgs([]string{"{not json"}, testDefinition())
	assert.Error(t, err)
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, int64(42), coerceValue("42", "number"))
	assert.Equal(t, 4.5, coerceValue("4.5", "number"))
	assert.Equal(t, "abc", coerceValue("abc", "number"))
	assert.Equal(t, false, coerceValue("no", "boolean"))
	assert.Equal(t, []string{"a", "b"}, coerceValue("a,b", "array"))
	assert.Equal(t, "B2", coerceValue("B2", "string"))
}

func TestToFlagName(t *testing.T) {
	assert.Equal(t, "sheet-name", toFlagName("sheet_name"))
	assert.Equal(t, "file-path", toFlagName("filePath"))
}

func TestRunner_EndToEnd(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	t.Setenv("SHEETS_BASE_DIR", dir)
	t.Setenv("MCP_SHEETS_STATE_PATH", filepath.Join(dir, "state.json"))
	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	config.SetCurrent(cfg)
	t.Cleanup(func() { config.SetCurrent(nil) })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	var out bytes.Buffer
	runner := NewRunner(logger, &out, OutputText)
	ctx := context.Background()
	book := filepath.Join(dir, "cli.xlsx")

	require.NoError(t, runner.RunTool(ctx, "spreadsheet", []string{
		"--function=create_workbook", "--file-path=" + book, "--sheet-name=Data",
	}))
	require.NoError(t, runner.RunTool(ctx, "spreadsheet", []string{
		"--function=write_range", "--file-path=" + book, "--sheet-name=Data",
		"--cell=B2", `--values=[["x", 2], [true, null]]`,
	}))

	out.Reset()
	require.NoError(t, runner.RunTool(ctx, "spreadsheet", []string{
		"--function=read_range", "--file-path=" + book, "--sheet-name=Data", "--range=B2:C3",
	}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Data!B2:C3", lines[0])
	assert.Equal(t, []string{"B", "C"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "x", "2"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"3", "true"}, strings.Fields(lines[3]))

	out.Reset()
	err = runner.RunTool(ctx, "spreadsheet", []string{
		"--function=read_range", "--file-path=" + book, "--sheet-name=Nope",
	})
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "SheetNotFound:"), out.String())

	err = runner.RunTool(ctx, "no-such-tool", nil)
	assert.ErrorContains(t, err, "unknown tool")
}

func TestRunner_ListAndHelp(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	runner := NewRunner(logrus.New(), &out, OutputText)

	require.NoError(t, runner.ListTools())
	assert.Contains(t, out.String(), "spreadsheet")

	out.Reset()
	require.NoError(t, runner.HelpTool("spreadsheet"))
	assert.Contains(t, out.String(), "--function")
	assert.Contains(t, out.String(), "(required)")
	assert.Contains(t, out.String(), "--sparse")

	out.Reset()
	runner = NewRunner(logrus.New(), &out, OutputJSON)
	require.NoError(t, runner.ListTools())
	assert.True(t, strings.HasPrefix(out.String(), "["))
}
