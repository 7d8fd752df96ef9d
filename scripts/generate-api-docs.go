// Package main generates API documentation from MCP tool definitions
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/spreadsheet"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	// Import all tools to register them
	_ "github.com/sammcj/mcp-sheets/internal/imports"
)

type ToolInfo struct {
	Title        string
	Name         string
	Description  string
	Parameters   []ParameterInfo
	Options      []ParameterInfo
	Help         *tools.ExtendedHelp
	ErrorKinds   []string
	Environment  []EnvVarInfo
	ExampleCalls []string
}

type ParameterInfo struct {
	Name        string
	Type        string
	Required    bool
	Description string
	EnumValues  []string
}

type EnvVarInfo struct {
	Name        string
	Description string
}

const toolTemplate = `# {{.Title}}

{{.Description}}

## Parameters

| Name | Type | Required | Description |
|------|------|----------|-------------|
{{- range .Parameters}}
| ` + "`{{.Name}}`" + ` | {{.Type}} | {{if .Required}}yes{{else}}no{{end}} | {{.Description}}{{if .EnumValues}} One of: {{join .EnumValues ", "}}.{{end}} |
{{- end}}
{{if .Options}}
### Options

| Name | Type | Description |
|------|------|-------------|
{{- range .Options}}
| ` + "`{{.Name}}`" + ` | {{.Type}} | {{.Description}}{{if .EnumValues}} One of: {{join .EnumValues ", "}}.{{end}} |
{{- end}}
{{end}}
{{- if .Help}}{{if .Help.WhenToUse}}
## When to use

{{.Help.WhenToUse}}
{{end}}{{if .Help.Examples}}
## Examples
{{range .ExampleCalls}}
` + "```json\n{{.}}\n```" + `
{{end}}{{end}}{{if .Help.Troubleshooting}}
## Troubleshooting
{{range .Help.Troubleshooting}}
- **{{.Problem}}**: {{.Solution}}
{{- end}}
{{end}}{{end}}
## Error kinds

Failed calls return an error result whose text starts with the kind, e.g. ` + "`SheetNotFound: ...`" + `.
{{range .ErrorKinds}}
- ` + "`{{.}}`" + `
{{- end}}

## Environment

| Variable | Description |
|----------|-------------|
{{- range .Environment}}
| ` + "`{{.Name}}`" + ` | {{.Description}} |
{{- end}}
`

func main() {
	var (
		toolName  = flag.String("tool", "", "Generate docs for specific tool only")
		outputDir = flag.String("output", "docs/api", "Output directory")
	)
	flag.Parse()

	tmpl := template.Must(newTemplate())

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "creating output directory: %v\n", err)
		os.Exit(1)
	}

	generated := 0
	for _, name := range registry.GetEnabledToolNames() {
		if *toolName != "" && name != *toolName {
			continue
		}
		tool, _ := registry.GetTool(name)
		if err := generateToolDoc(tmpl, extractToolInfo(tool), *outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "generating %s: %v\n", name, err)
			os.Exit(1)
		}
		generated++
	}

	if *toolName != "" && generated == 0 {
		fmt.Fprintf(os.Stderr, "Tool '%s' not found\n", *toolName)
		os.Exit(1)
	}
	fmt.Printf("Generated documentation for %d tools in %s\n", generated, *outputDir)
}

func newTemplate() (*template.Template, error) {
	return template.New("tool").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(toolTemplate)
}

func extractToolInfo(tool tools.Tool) ToolInfo {
	definition := tool.Definition()
	title := cases.Title(language.English).String(strings.ReplaceAll(definition.Name, "_", " "))

	info := ToolInfo{
		Title:       title,
		Name:        definition.Name,
		Description: definition.Description,
		ErrorKinds:  append([]string{"ValidationError"}, spreadsheet.KindNames()...),
		Environment: getEnvironmentVariables(),
	}

	info.Parameters = extractParameters(definition.InputSchema.Properties, definition.InputSchema.Required)
	if options, ok := definition.InputSchema.Properties["options"].(map[string]any); ok {
		if props, ok := options["properties"].(map[string]any); ok {
			info.Options = extractParameters(props, nil)
		}
	}

	if provider, ok := tool.(tools.ExtendedHelpProvider); ok {
		info.Help = provider.ProvideExtendedInfo()
		for _, example := range info.Help.Examples {
			info.ExampleCalls = append(info.ExampleCalls, formatExample(example))
		}
	}
	return info
}

func extractParameters(properties map[string]any, required []string) []ParameterInfo {
	var params []ParameterInfo
	for name, schema := range properties {
		prop, _ := schema.(map[string]any)
		param := ParameterInfo{
			Name:     name,
			Required: isRequired(name, required),
		}
		param.Type, _ = prop["type"].(string)
		param.Description, _ = prop["description"].(string)
		param.EnumValues = getEnumValues(prop)
		params = append(params, param)
	}
	sort.Slice(params, func(i, j int) bool {
		// Required parameters first
		if params[i].Required != params[j].Required {
			return params[i].Required
		}
		return params[i].Name < params[j].Name
	})
	return params
}

func generateToolDoc(tmpl *template.Template, tool ToolInfo, outputDir string) error {
	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s.md", tool.Name))
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer file.Close()
	return renderToolDoc(file, tmpl, tool)
}

func renderToolDoc(w io.Writer, tmpl *template.Template, tool ToolInfo) error {
	if err := tmpl.Execute(w, tool); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}
	return nil
}

func formatExample(example tools.ToolExample) string {
	keys := make([]string, 0, len(example.Arguments))
	for key := range example.Arguments {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "// %s\n{", example.Description)
	for i, key := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "\n  %q: %s", key, formatValue(example.Arguments[key]))
	}
	b.WriteString("\n}")
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for key := range val {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = fmt.Sprintf("%q: %s", key, formatValue(val[key]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func isRequired(paramName string, required []string) bool {
	for _, req := range required {
		if req == paramName {
			return true
		}
	}
	return false
}

func getEnumValues(prop map[string]any) []string {
	switch enum := prop["enum"].(type) {
	case []string:
		return enum
	case []any:
		values := make([]string, 0, len(enum))
		for _, v := range enum {
			values = append(values, fmt.Sprint(v))
		}
		return values
	}
	return nil
}

func getEnvironmentVariables() []EnvVarInfo {
	return []EnvVarInfo{
		{"SHEETS_BASE_DIR", "Directory that relative workbook paths resolve against"},
		{"SHEETS_MAX_RANGE_CELLS", "Largest number of cells a single read may cover"},
		{"SHEETS_LOCK_TIMEOUT", "How long to wait for another process's workbook lock, e.g. 5s"},
		{"SHEETS_FILE_MODE", "Octal permissions for saved workbooks, e.g. 0600"},
		{"LOG_LEVEL", "debug, info, warn or error"},
		{"DISABLED_TOOLS", "Comma separated tool names to disable"},
		{"LOG_TOOL_ERRORS", "Set to true to record failed tool calls in ~/.mcp-sheets/logs/tool-errors.log"},
		{"MCP_SHEETS_STATE_PATH", "Location of the active and recent workbook state file"},
	}
}
