package toolhelp

import "github.com/sammcj/mcp-sheets/internal/tools"

// toolHelpArgs are the get_tool_help arguments
type toolHelpArgs struct {
	ToolName string `zog:"tool_name"`
}

// ToolHelpResponse is the output of get_tool_help
type ToolHelpResponse struct {
	ToolName     string              `json:"tool_name"`
	Description  string              `json:"description"`
	InputSchema  any                 `json:"input_schema,omitempty"`
	ExtendedInfo *tools.ExtendedHelp `json:"extended_info,omitempty"`
	Message      string              `json:"message,omitempty"`
}
