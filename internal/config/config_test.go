package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSheetsEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SHEETS_BASE_DIR", "LOG_LEVEL", "SHEETS_MAX_RANGE_CELLS", "SHEETS_LOCK_TIMEOUT", "SHEETS_FILE_MODE"} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearSheetsEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".mcp-sheets", "workbooks"), cfg.BaseDir)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultMaxRangeCells, cfg.MaxRangeCells)
	assert.Equal(t, DefaultLockTimeout, cfg.LockTimeout)
	assert.Equal(t, DefaultFileMode, cfg.Mode())
	assert.Equal(t, DefaultRecentLimit, cfg.RecentLimit)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	clearSheetsEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlConfig := `
base_dir: ` + dir + `/books
log_level: info
max_range_cells: 500
lock_timeout: 2s
file_mode: "0640"
recent_limit: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "books"), cfg.BaseDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 500, cfg.MaxRangeCells)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, os.FileMode(0640), cfg.Mode())
	assert.Equal(t, 3, cfg.RecentLimit)

	t.Setenv("SHEETS_MAX_RANGE_CELLS", "42")
	t.Setenv("SHEETS_LOCK_TIMEOUT", "250ms")
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.MaxRangeCells)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "bad yaml", yaml: "base_dir: [unclosed"},
		{name: "bad level", yaml: "log_level: loud"},
		{name: "negative cells", yaml: "max_range_cells: -1"},
		{name: "bad mode", yaml: `file_mode: "rw"`},
		{name: "bad env number", env: map[string]string{"SHEETS_MAX_RANGE_CELLS": "lots"}},
		{name: "bad env duration", env: map[string]string{"SHEETS_LOCK_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearSheetsEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestStateFile_ActiveAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "state.json")
	state := LoadState(path)
	assert.Equal(t, "", state.GetActiveWorkbook())

	require.NoError(t, state.SetActiveWorkbook("/a.xlsx", 2))
	require.NoError(t, state.SetActiveWorkbook("/b.xlsx", 2))
	require.NoError(t, state.SetActiveWorkbook("/a.xlsx", 2))
	require.NoError(t, state.SetActiveWorkbook("/c.xlsx", 2))

	assert.Equal(t, "/c.xlsx", state.GetActiveWorkbook())
	recent := state.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "/c.xlsx", recent[0].Path)
	assert.Equal(t, "/a.xlsx", recent[1].Path)

	reloaded := LoadState(path)
	assert.Equal(t, "/c.xlsx", reloaded.GetActiveWorkbook())
	assert.Len(t, reloaded.Recent(), 2)

	require.NoError(t, reloaded.ClearActiveWorkbook("/other.xlsx"))
	assert.Equal(t, "/c.xlsx", reloaded.GetActiveWorkbook())
	require.NoError(t, reloaded.ClearActiveWorkbook("/c.xlsx"))
	assert.Equal(t, "", LoadState(path).GetActiveWorkbook())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadState_CorruptFileGivesEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	assert.Equal(t, "", LoadState(path).GetActiveWorkbook())
}
