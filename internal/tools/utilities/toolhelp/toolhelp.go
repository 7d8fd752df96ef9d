package toolhelp

import (
	"context"
	"fmt"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
)

// ToolHelpTool returns examples and troubleshooting tips for other tools
type ToolHelpTool struct{}

var toolHelpSchema = z.Struct(z.Shape{
	"toolName": z.String().Trim().Required(),
})

func init() {
	registry.Register(&ToolHelpTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ToolHelpTool) Definition() mcp.Tool {
	toolsWithExtendedHelp := registry.GetToolNamesWithExtendedHelp()

	description := "No tools currently provide extended help information."
	if len(toolsWithExtendedHelp) > 0 {
		description = "Get detailed usage examples and troubleshooting for mcp-sheets tools when a call fails unexpectedly."
	}

	return mcp.NewTool(
		"get_tool_help",
		mcp.WithDescription(description),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for"),
			mcp.Enum(toolsWithExtendedHelp...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the get_tool_help tool
func (t *ToolHelpTool) Execute(_ context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	var req toolHelpArgs
	if issues := toolHelpSchema.Parse(args, &req); len(issues) != 0 {
		return tools.NewKindErrorResult("ValidationError", fmt.Errorf("tool_name is required")), nil
	}

	available := registry.GetToolNamesWithExtendedHelp()
	tool, exists := registry.GetTool(req.ToolName)
	if !exists {
		return tools.NewKindErrorResult("ValidationError",
			fmt.Errorf("tool '%s' not found or disabled. Tools with extended help: %s", req.ToolName, strings.Join(available, ", "))), nil
	}
	provider, ok := tool.(tools.ExtendedHelpProvider)
	if !ok {
		return tools.NewKindErrorResult("ValidationError",
			fmt.Errorf("tool '%s' does not provide extended help. Tools with extended help: %s", req.ToolName, strings.Join(available, ", "))), nil
	}

	definition := tool.Definition()
	response := &ToolHelpResponse{
		ToolName:     req.ToolName,
		Description:  definition.Description,
		ExtendedInfo: provider.ProvideExtendedInfo(),
	}
	if definition.InputSchema.Type != "" {
		response.InputSchema = definition.InputSchema
	}
	if response.ExtendedInfo == nil {
		response.Message = fmt.Sprintf("Tool '%s' returned no extended information", req.ToolName)
	}

	if logger != nil {
		logger.WithField("tool_name", req.ToolName).Debug("Returning extended tool help")
	}
	return tools.NewToolResultJSON(response)
}
