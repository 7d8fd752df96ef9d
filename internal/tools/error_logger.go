package tools

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultLogRetentionDays is the default number of days to retain error logs
const DefaultLogRetentionDays = 60

// ToolErrorLogEntry is one line of the tool error log
type ToolErrorLogEntry struct {
	Timestamp string         `json:"timestamp"`
	ToolName  string         `json:"tool_name"`
	Function  string         `json:"function,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Error     string         `json:"error"`
	Transport string         `json:"transport,omitempty"`
}

// ToolErrorLogger appends failed tool calls to a JSONL file
type ToolErrorLogger struct {
	enabled   bool
	logFile   *os.File
	logger    *logrus.Logger
	mu        sync.Mutex
	filePath  string
	retention time.Duration
	now       func() time.Time
}

var (
	globalErrorLogger *ToolErrorLogger
	errorLoggerOnce   sync.Once
)

// InitGlobalErrorLogger initialises the global error logger. Logging is only
// enabled when LOG_TOOL_ERRORS=true; the log lives in ~/.mcp-sheets/logs.
func InitGlobalErrorLogger(logger *logrus.Logger) error {
	var initErr error
	errorLoggerOnce.Do(func() {
		if os.Getenv("LOG_TOOL_ERRORS") != "true" {
			globalErrorLogger = &ToolErrorLogger{logger: logger}
			return
		}

		homeDir, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("failed to get home directory: %w", err)
			return
		}

		l, err := NewToolErrorLogger(logger, filepath.Join(homeDir, ".mcp-sheets", "logs", "tool-errors.log"), DefaultLogRetentionDays)
		if err != nil {
			initErr = err
			return
		}
		globalErrorLogger = l

		// Rotation can be slow on large logs
		go func() {
			if rotateErr := l.RotateOldLogs(); rotateErr != nil {
				logger.WithError(rotateErr).Warn("Failed to rotate old tool error logs")
			}
		}()
		logger.Infof("Tool error logging enabled: %s", l.filePath)
	})
	return initErr
}

// NewToolErrorLogger opens (creating if needed) an error log at path.
func NewToolErrorLogger(logger *logrus.Logger, path string, retentionDays int) (*ToolErrorLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	l := &ToolErrorLogger{
		enabled:   true,
		logger:    logger,
		filePath:  path,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
	if err := l.reopenLogFileLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

// GetGlobalErrorLogger returns the global error logger, or a disabled one
func GetGlobalErrorLogger() *ToolErrorLogger {
	if globalErrorLogger == nil {
		return &ToolErrorLogger{}
	}
	return globalErrorLogger
}

// LogToolError records a failed tool call. kind is the error kind reported to
// the client, or "" for an unexpected failure.
func (l *ToolErrorLogger) LogToolError(toolName string, args map[string]any, kind, message, transport string) {
	if !l.enabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return
	}

	function, _ := args["function"].(string)
	entry := ToolErrorLogEntry{
		Timestamp: l.now().Format(time.RFC3339),
		ToolName:  toolName,
		Function:  function,
		Kind:      kind,
		Arguments: args,
		Error:     message,
		Transport: transport,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.warn(err, "Failed to marshal tool error log entry")
		return
	}
	if _, err := l.logFile.Write(append(data, '\n')); err != nil {
		l.warn(err, "Failed to write tool error log entry")
		return
	}
	if err := l.logFile.Sync(); err != nil {
		l.warn(err, "Failed to sync tool error log file")
	}
}

func (l *ToolErrorLogger) warn(err error, msg string) {
	if l.logger != nil {
		l.logger.WithError(err).Error(msg)
	}
}

// Close closes the error log
func (l *ToolErrorLogger) Close() error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// IsEnabled returns whether error logging is enabled
func (l *ToolErrorLogger) IsEnabled() bool {
	return l.enabled
}

// GetLogFilePath returns the path to the error log file
func (l *ToolErrorLogger) GetLogFilePath() string {
	return l.filePath
}

// RotateOldLogs drops entries older than the retention period. The mutex is
// held throughout so LogToolError never writes to a file being replaced.
func (l *ToolErrorLogger) RotateOldLogs() error {
	if !l.enabled || l.filePath == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file for rotation: %w", err)
		}
		l.logFile = nil
	}

	file, err := os.Open(l.filePath)
	if err != nil {
		return l.reopenLogFileLocked()
	}

	var kept []string
	cutoff := l.now().Add(-l.retention)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Malformed lines are kept rather than lost
		var entry ToolErrorLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			kept = append(kept, line)
			continue
		}
		ts, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil || ts.After(cutoff) {
			kept = append(kept, line)
		}
	}
	scanErr := scanner.Err()
	_ = file.Close()
	if scanErr != nil {
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("error reading log file during rotation: %w", scanErr)
	}

	content := ""
	if len(kept) > 0 {
		content = strings.Join(kept, "\n") + "\n"
	}
	tmpPath := l.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("failed to write temporary rotated log file: %w", err)
	}
	if err := os.Rename(tmpPath, l.filePath); err != nil {
		_ = os.Remove(tmpPath)
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("failed to rename temporary log file during rotation: %w", err)
	}
	return l.reopenLogFileLocked()
}

// reopenLogFileLocked reopens the log file in append mode.
// Caller must hold l.mu.
func (l *ToolErrorLogger) reopenLogFileLocked() error {
	logFile, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open tool error log file: %w", err)
	}
	l.logFile = logFile
	return nil
}
