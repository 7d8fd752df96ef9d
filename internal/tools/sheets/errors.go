package sheets

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/spreadsheet"
	"github.com/sammcj/mcp-sheets/internal/tools"
)

// ValidationError represents an argument the tool cannot use
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// issuesError converts zog issues into a ValidationError naming the first field
// (alphabetically) and every message.
func issuesError(issues z.ZogIssueMap) error {
	sanitized := z.Issues.SanitizeMap(issues)
	fields := slices.Sorted(maps.Keys(sanitized))

	var parts []string
	first := ""
	for _, field := range fields {
		if strings.HasPrefix(field, "$") {
			continue
		}
		if first == "" {
			first = field
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(sanitized[field], "; ")))
	}
	if first == "" {
		return &ValidationError{Field: "options", Message: "invalid arguments"}
	}
	return &ValidationError{Field: first, Message: strings.Join(parts, ", ")}
}

// errorKind names the kind reported to the client, or "" for unexpected failures.
func errorKind(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return "ValidationError"
	}
	if kind := spreadsheet.KindOf(err); kind != "Internal" {
		return kind
	}
	return ""
}

// toolResult turns a handler failure into an error result. Failures with no
// known kind are returned as errors.
func toolResult(result *mcp.CallToolResult, err error) (*mcp.CallToolResult, error) {
	if err == nil {
		return result, nil
	}
	if kind := errorKind(err); kind != "" {
		return tools.NewKindErrorResult(kind, err), nil
	}
	return nil, err
}
