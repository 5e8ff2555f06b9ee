package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DESKRUNNER_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 40, cfg.MaxActions)
	assert.False(t, cfg.ResumeReassess)
	assert.Equal(t, 7*24*time.Hour, cfg.ApprovalStaleAfter)
	assert.Equal(t, 140, cfg.RecordMaxActions)
	assert.Equal(t, "F8", cfg.RecordStopKey)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deskrunner.toml")
	content := `
[server]
port = 9090

[runner]
max_actions = 25
resume_reassess = true

[executor]
command = "powershell"
args = "-NoProfile -File run.ps1"

[approvals]
stale_after = "48h"

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DESKRUNNER_CONFIG", path)
	t.Setenv("DESKRUNNER_MAX_ACTIONS", "30")
	t.Setenv("DESKRUNNER_RESUME_REASSESS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 30, cfg.MaxActions, "env wins over file")
	assert.False(t, cfg.ResumeReassess, "env wins over file")
	assert.Equal(t, "powershell", cfg.ActionCommand)
	assert.Equal(t, "-NoProfile -File run.ps1", cfg.ActionArgs)
	assert.Equal(t, 48*time.Hour, cfg.ApprovalStaleAfter)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	t.Setenv("DESKRUNNER_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	_, err := Load()
	require.NoError(t, err)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport ="), 0o600))
	t.Setenv("DESKRUNNER_CONFIG", path)
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.MaxActions = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())
}
