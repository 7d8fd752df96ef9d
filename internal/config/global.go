package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// DefaultRecentLimit is how many recently used workbooks are remembered
const DefaultRecentLimit = 10

// StateFile is the persisted state shared between tool calls
type StateFile struct {
	ActiveWorkbook  string           `json:"active_workbook,omitempty"`
	RecentWorkbooks []RecentWorkbook `json:"recent_workbooks,omitempty"`

	path string
	mu   sync.RWMutex
}

// RecentWorkbook is one entry of the recent workbook list
type RecentWorkbook struct {
	Path     string `json:"path"`
	LastUsed int64  `json:"last_used"` // Unix timestamp
}

var (
	globalState *StateFile
	stateOnce   sync.Once
)

// GetGlobalState returns the singleton global state
func GetGlobalState() *StateFile {
	stateOnce.Do(func() {
		globalState = LoadState(getStatePath())
	})
	return globalState
}

// LoadState loads state from path. A missing or unreadable file gives empty state.
func LoadState(path string) *StateFile {
	state := &StateFile{path: path}
	if data, err := os.ReadFile(path); err == nil {
		// Ignore JSON parsing errors and use defaults
		_ = json.Unmarshal(data, state)
	}
	return state
}

// Save saves the state to disk
func (s *StateFile) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *StateFile) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// SetActiveWorkbook makes path the active workbook, moves it to the front of
// the recent list (trimmed to limit) and saves the state.
func (s *StateFile) SetActiveWorkbook(path string, limit int) error {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ActiveWorkbook = path
	s.RecentWorkbooks = slices.DeleteFunc(s.RecentWorkbooks, func(r RecentWorkbook) bool {
		return r.Path == path
	})
	s.RecentWorkbooks = append([]RecentWorkbook{{Path: path, LastUsed: getCurrentTimestamp()}}, s.RecentWorkbooks...)
	if len(s.RecentWorkbooks) > limit {
		s.RecentWorkbooks = s.RecentWorkbooks[:limit]
	}
	return s.saveLocked()
}

// ClearActiveWorkbook forgets the active workbook if it is path.
func (s *StateFile) ClearActiveWorkbook(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ActiveWorkbook != path {
		return nil
	}
	s.ActiveWorkbook = ""
	return s.saveLocked()
}

// GetActiveWorkbook returns the active workbook path, or "" when none is set
func (s *StateFile) GetActiveWorkbook() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ActiveWorkbook
}

// Recent returns a copy of the recent workbook list, most recent first
func (s *StateFile) Recent() []RecentWorkbook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.RecentWorkbooks)
}

// getStatePath returns the path to the global state file
func getStatePath() string {
	if customPath := os.Getenv("MCP_SHEETS_STATE_PATH"); customPath != "" {
		return customPath
	}

	// Default to ~/.mcp-sheets/state.json
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".mcp-sheets", "state.json")
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
