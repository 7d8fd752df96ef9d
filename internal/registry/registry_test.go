package registry

import (
	"context"
	"maps"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type fakeTool struct{ name string }

func (f *fakeTool) Definition() mcp.Tool { return mcp.NewTool(f.name) }

func (f *fakeTool) Execute(context.Context, *logrus.Logger, map[string]any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(f.name), nil
}

type helpfulTool struct{ fakeTool }

func (h *helpfulTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{WhenToUse: "always"}
}

// isolate swaps in an empty registry for the duration of a test
func isolate(t *testing.T) {
	t.Helper()
	saved := maps.Clone(toolRegistry)
	savedDisabled := maps.Clone(disabledTools)
	toolRegistry = make(map[string]tools.Tool)
	disabledTools = make(map[string]bool)
	t.Cleanup(func() {
		toolRegistry = saved
		disabledTools = savedDisabled
	})
}

func TestRegister_AndLookup(t *testing.T) {
	isolate(t)

	Register(&fakeTool{name: "alpha"})
	Register(&helpfulTool{fakeTool{name: "beta"}})

	tool, ok := GetTool("alpha")
	assert.True(t, ok)
	assert.Equal(t, "alpha", tool.Definition().Name)

	_, ok = GetTool("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"alpha", "beta"}, GetEnabledToolNames())
	assert.Equal(t, []string{"beta"}, GetToolNamesWithExtendedHelp())
}

func TestDisabledTools(t *testing.T) {
	isolate(t)
	t.Setenv("DISABLED_TOOLS", " get-tool-help ,other")
	t.Setenv("DISABLED_FUNCTIONS", "")

	Register(&fakeTool{name: "get_tool_help"})
	Register(&fakeTool{name: "spreadsheet"})
	Init(nil)

	assert.False(t, ShouldRegisterTool("get_tool_help"))
	assert.True(t, ShouldRegisterTool("spreadsheet"))

	_, ok := GetTool("get_tool_help")
	assert.False(t, ok, "tools registered before Init are still filtered")
	assert.Equal(t, []string{"spreadsheet"}, GetEnabledToolNames())
	assert.NotContains(t, GetEnabledTools(), "get_tool_help")
}

func TestDisabledTools_LegacyVariable(t *testing.T) {
	isolate(t)
	t.Setenv("DISABLED_TOOLS", "")
	t.Setenv("DISABLED_FUNCTIONS", "spreadsheet")
	Init(nil)

	Register(&fakeTool{name: "spreadsheet"})
	assert.Empty(t, GetEnabledTools())
}
