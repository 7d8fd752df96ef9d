// Package cli provides a direct command-line interface to mcp-sheets tools,
// bypassing the MCP server entirely. Tools are invoked in-process via the
// registry, so no server or network round-trip is needed.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/spreadsheet"
	"github.com/sirupsen/logrus"
)

// OutputFormat controls how tool results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// nestedObject is the object parameter whose properties can be passed as
// top-level flags, e.g. --range=A1:B2 for options.range.
const nestedObject = "options"

var (
	heading = color.New(color.Bold)
	muted   = color.New(color.Faint)
	failed  = color.New(color.FgRed, color.Bold)
)

// Runner executes CLI commands against the tool registry.
type Runner struct {
	logger *logrus.Logger
	out    io.Writer
	output OutputFormat
}

// NewRunner creates a Runner that writes to out in the given format.
func NewRunner(logger *logrus.Logger, out io.Writer, output OutputFormat) *Runner {
	return &Runner{logger: logger, out: out, output: output}
}

// ListTools prints all enabled tools with their descriptions.
func (r *Runner) ListTools() error {
	tools := registry.GetEnabledTools()

	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	entries := make([]entry, 0, len(tools))
	for _, t := range tools {
		def := t.Definition()
		entries = append(entries, entry{Name: def.Name, Description: firstLine(def.Description)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	if r.output == OutputJSON {
		return writeJSON(r.out, entries)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", heading.Sprint(e.Name), e.Description)
	}
	return w.Flush()
}

// HelpTool prints the schema and usage information for a single tool.
func (r *Runner) HelpTool(name string) error {
	resolved, found := resolveTool(name)
	if !found {
		return fmt.Errorf("unknown tool: %s", name)
	}
	tool, _ := registry.GetTool(resolved)
	def := tool.Definition()

	if r.output == OutputJSON {
		return writeJSON(r.out, def)
	}

	heading.Fprintf(r.out, "Tool: %s\n\n", def.Name)
	if def.Description != "" {
		fmt.Fprintf(r.out, "%s\n\n", def.Description)
	}

	props := def.InputSchema.Properties
	if len(props) == 0 {
		fmt.Fprintln(r.out, "No parameters.")
		return nil
	}

	heading.Fprintln(r.out, "Parameters:")
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	writeParams(w, props, toSet(def.InputSchema.Required), "  ")
	if nested, ok := nestedProperties(def); ok {
		fmt.Fprintf(w, "\n  %s\t\t\n", muted.Sprintf("%s (may also be passed as top-level flags):", nestedObject))
		writeParams(w, nested, nil, "    ")
	}
	return w.Flush()
}

func writeParams(w io.Writer, props map[string]any, required map[string]bool, indent string) {
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	slices.Sort(names)

	for _, pName := range names {
		pMap, ok := props[pName].(map[string]any)
		if !ok {
			continue
		}
		pType, _ := pMap["type"].(string)
		pDesc, _ := pMap["description"].(string)

		reqMark := ""
		if required[pName] {
			reqMark = " (required)"
		}
		fmt.Fprintf(w, "%s--%s\t%s\t%s%s%s\n", indent, toFlagName(pName), pType, firstLine(pDesc), reqMark, formatEnum(pMap))
	}
}

// RunTool executes a tool by name with the given arguments.
// args can be:
//   - A single JSON string: '{"key": "value"}'
//   - Flag-style arguments: --key=value --flag
//   - Mixed: --key=value '{"other": "json"}'  (flags take precedence)
func (r *Runner) RunTool(ctx context.Context, name string, args []string) error {
	resolved, found := resolveTool(name)
	if !found {
		return fmt.Errorf("unknown tool: %s (run 'mcp-sheets cli list' to see available tools)", name)
	}
	tool, _ := registry.GetTool(resolved)

	params, err := parseArgs(args, tool.Definition())
	if err != nil {
		return fmt.Errorf("argument error: %w", err)
	}

	result, err := tool.Execute(ctx, r.logger, params)
	if err != nil {
		return fmt.Errorf("tool error: %w", err)
	}
	return r.renderResult(result)
}

// parseArgs converts CLI arguments into a map[string]any suitable for tool.Execute().
// Supports JSON input, --key=value flags, and --flag (boolean true).
func parseArgs(args []string, def mcp.Tool) (map[string]any, error) {
	params := make(map[string]any)
	schema := buildSchemaInfo(def)

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "{") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(arg), &obj); err != nil {
				return nil, fmt.Errorf("invalid JSON argument: %w", err)
			}
			// Earlier flags take precedence
			for k, v := range obj {
				if _, exists := params[k]; !exists {
					params[k] = v
				}
			}
			continue
		}

		if strings.HasPrefix(arg, "--") {
			key, val, err := parseFlag(arg, args, &i, schema)
			if err != nil {
				return nil, err
			}
			setParam(params, key, val)
			continue
		}

		return nil, fmt.Errorf("unexpected argument: %s (use --key=value flags or pass a JSON object)", arg)
	}

	return params, nil
}

// setParam stores val at key, where "options.range" addresses a nested object.
func setParam(params map[string]any, key string, val any) {
	parent, child, nested := strings.Cut(key, ".")
	if !nested {
		params[key] = val
		return
	}
	obj, ok := params[parent].(map[string]any)
	if !ok {
		obj = make(map[string]any)
		params[parent] = obj
	}
	obj[child] = val
}

// schemaInfo holds resolved schema information for argument parsing.
type schemaInfo struct {
	// typeMap maps parameter keys (possibly "options.x") to their JSON Schema types
	typeMap map[string]string
	// flagToParam maps kebab-case flag names to parameter keys
	flagToParam map[string]string
}

// parseFlag parses a single --key=value or --key value or --flag (bool true).
func parseFlag(arg string, args []string, idx *int, schema schemaInfo) (string, any, error) {
	stripped := strings.TrimPrefix(arg, "--")

	if flagName, rawVal, found := strings.Cut(stripped, "="); found {
		paramName := schema.resolveParam(flagName)
		return paramName, coerceValue(rawVal, schema.typeMap[paramName]), nil
	}

	flagName := stripped
	paramName := schema.resolveParam(flagName)
	if schema.typeMap[paramName] == "boolean" {
		return paramName, true, nil
	}

	*idx++
	if *idx >= len(args) {
		return "", nil, fmt.Errorf("flag --%s requires a value", flagName)
	}
	return paramName, coerceValue(args[*idx], schema.typeMap[paramName]), nil
}

// resolveParam converts a kebab-case flag name to the parameter key. Unknown
// flags fall back to snake_case.
func (s schemaInfo) resolveParam(flagName string) string {
	if actual, ok := s.flagToParam[flagName]; ok {
		return actual
	}
	return strings.ReplaceAll(flagName, "-", "_")
}

// buildSchemaInfo extracts parameter types and builds a flag→param mapping from
// the tool definition. Properties of the nested options object are reachable
// as top-level flags unless a top-level parameter has the same name.
func buildSchemaInfo(def mcp.Tool) schemaInfo {
	info := schemaInfo{
		typeMap:     make(map[string]string),
		flagToParam: make(map[string]string),
	}
	if nested, ok := nestedProperties(def); ok {
		for name, prop := range nested {
			key := nestedObject + "." + name
			info.typeMap[key] = propertyType(prop)
			info.flagToParam[toFlagName(name)] = key
			info.flagToParam[toFlagName(key)] = key
		}
	}
	for name, prop := range def.InputSchema.Properties {
		info.typeMap[name] = propertyType(prop)
		info.flagToParam[toFlagName(name)] = name
	}
	return info
}

func nestedProperties(def mcp.Tool) (map[string]any, bool) {
	obj, ok := def.InputSchema.Properties[nestedObject].(map[string]any)
	if !ok {
		return nil, false
	}
	props, ok := obj["properties"].(map[string]any)
	return props, ok && len(props) > 0
}

func propertyType(prop any) string {
	if pm, ok := prop.(map[string]any); ok {
		t, _ := pm["type"].(string)
		return t
	}
	return ""
}

// coerceValue converts a string value to the appropriate Go type based on JSON Schema type.
func coerceValue(raw, schemaType string) any {
	switch schemaType {
	case "number", "integer":
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	case "boolean":
		switch strings.ToLower(raw) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
		return raw
	case "array":
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return arr
		}
		return strings.Split(raw, ",")
	case "object":
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			return obj
		}
		return raw
	default:
		return raw
	}
}

// renderResult formats a CallToolResult for terminal output. In text mode a
// result carrying a "values" matrix is drawn as a grid labelled with column
// letters and row numbers.
func (r *Runner) renderResult(result *mcp.CallToolResult) error {
	if result == nil {
		return nil
	}

	if r.output == OutputJSON {
		if err := writeJSON(r.out, result); err != nil {
			return err
		}
		if result.IsError {
			return fmt.Errorf("tool returned an error")
		}
		return nil
	}

	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			if result.IsError {
				failed.Fprintln(r.out, c.Text)
				continue
			}
			if r.renderGrid(c.Text) {
				continue
			}
			fmt.Fprintln(r.out, c.Text)
		default:
			data, err := json.MarshalIndent(c, "", "  ")
			if err != nil {
				fmt.Fprintf(r.out, "%+v\n", c)
			} else {
				fmt.Fprintln(r.out, string(data))
			}
		}
	}

	if result.IsError {
		return fmt.Errorf("tool returned an error")
	}
	return nil
}

// renderGrid draws {"range": "B2:C3", "values": [[...]]} as a table. It
// returns false when text is not such a result.
func (r *Runner) renderGrid(text string) bool {
	var payload struct {
		Sheet  string  `json:"sheet"`
		Range  string  `json:"range"`
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Values == nil || payload.Range == "" {
		return false
	}
	rng, err := spreadsheet.ParseRange(payload.Range)
	if err != nil {
		return false
	}

	if payload.Sheet != "" {
		heading.Fprintf(r.out, "%s!%s\n", payload.Sheet, payload.Range)
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "\t")
	for col := rng.FirstCol; col <= rng.LastCol; col++ {
		name, _ := spreadsheet.ColumnName(col)
		fmt.Fprintf(w, "%s\t", name)
	}
	fmt.Fprintln(w)
	for i, row := range payload.Values {
		fmt.Fprintf(w, "%d\t", rng.FirstRow+i)
		for _, v := range row {
			if v == nil {
				fmt.Fprint(w, "\t")
				continue
			}
			fmt.Fprintf(w, "%v\t", v)
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()
	return true
}

// resolveTool looks up a tool by name, trying the name as-is first,
// then with hyphens converted to underscores (since CLI users naturally
// type kebab-case but tools are registered with snake_case names).
func resolveTool(name string) (string, bool) {
	if _, ok := registry.GetTool(name); ok {
		return name, true
	}
	snakeName := strings.ReplaceAll(name, "-", "_")
	if snakeName != name {
		if _, ok := registry.GetTool(snakeName); ok {
			return snakeName, true
		}
	}
	return name, false
}

// --- helpers ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	if before, _, found := strings.Cut(s, "\n"); found {
		return before
	}
	return s
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// toFlagName converts camelCase or snake_case to kebab-case for CLI flags.
func toFlagName(s string) string {
	s = strings.ReplaceAll(s, "_", "-")
	var out strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				out.WriteByte('-')
			}
			out.WriteRune(r + 32)
		} else {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func formatEnum(pMap map[string]any) string {
	var vals []string
	switch enum := pMap["enum"].(type) {
	case []string:
		vals = enum
	case []any:
		for _, v := range enum {
			vals = append(vals, fmt.Sprint(v))
		}
	}
	if len(vals) == 0 {
		return ""
	}
	return " [" + strings.Join(vals, "|") + "]"
}
