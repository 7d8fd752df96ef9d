package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
)

var (
	// toolRegistry is a map of tool names to tool implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is a set of normalised tool names to disable
	disabledTools = make(map[string]bool)

	// logger is the shared logger instance
	logger *logrus.Logger

	mu sync.RWMutex
)

// Init initialises the registry and reads DISABLED_TOOLS
func Init(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	parseDisabledTools()
}

// normaliseName lowercases a tool name and treats '_' and '-' as equal
func normaliseName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
}

// parseDisabledTools parses the DISABLED_TOOLS and DISABLED_FUNCTIONS (legacy) environment variables
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	parseAndAdd := func(envValue, source string) {
		if envValue == "" {
			return
		}
		for tool := range strings.SplitSeq(envValue, ",") {
			tool = normaliseName(tool)
			if tool == "" {
				continue
			}
			disabledTools[tool] = true
			if logger != nil {
				logger.WithField("tool", tool).WithField("source", source).Debug("Tool disabled")
			}
		}
	}

	if legacyEnv := os.Getenv("DISABLED_FUNCTIONS"); legacyEnv != "" {
		if logger != nil {
			logger.Warn("DISABLED_FUNCTIONS environment variable is deprecated, please use DISABLED_TOOLS instead")
		}
		parseAndAdd(legacyEnv, "DISABLED_FUNCTIONS")
	}
	parseAndAdd(os.Getenv("DISABLED_TOOLS"), "DISABLED_TOOLS")

	if logger != nil && len(disabledTools) > 0 {
		logger.WithField("count", len(disabledTools)).Debug("Parsed disabled tools from environment")
	}
}

func isDisabled(name string) bool {
	return disabledTools[normaliseName(name)]
}

// ShouldRegisterTool reports whether a tool is enabled. Every tool is enabled
// unless DISABLED_TOOLS names it.
func ShouldRegisterTool(toolName string) bool {
	mu.RLock()
	defer mu.RUnlock()
	if isDisabled(toolName) {
		if logger != nil {
			logger.WithField("tool", toolName).Debug("Tool disabled via environment variable")
		}
		return false
	}
	return true
}

// Register adds a tool implementation to the registry. Tools register from
// init functions, before Init has read the environment, so disabled tools are
// filtered again on lookup.
func Register(tool tools.Tool) {
	toolName := tool.Definition().Name
	if !ShouldRegisterTool(toolName) {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	toolRegistry[toolName] = tool
	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool successfully registered")
	}
}

// GetTool retrieves a tool by name, returns false if unknown or disabled
func GetTool(name string) (tools.Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if isDisabled(name) {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns all registered tools that are not disabled
func GetEnabledTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()
	filteredTools := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if isDisabled(name) {
			continue
		}
		filteredTools[name] = tool
	}
	return filteredTools
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	var names []string
	for name := range GetEnabledTools() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	var names []string
	for name, tool := range GetEnabledTools() {
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
