package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/crosswalk/pkg/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "uid", config.UIDColumn)
	assert.Equal(t, "auto", config.LogFormat)
	assert.False(t, config.DryRun)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crosswalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("uid_column: entity\ndry_run: true\nanswers: answers.txt\nformat: json\n"), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "entity", config.UIDColumn)
	assert.True(t, config.DryRun)
	assert.Equal(t, "answers.txt", config.Answers)
	assert.Equal(t, "json", config.Format)
	assert.Equal(t, path, config.ConfigFile)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CROSSWALK_UID_COLUMN", "person")
	t.Setenv("CROSSWALK_NO_PROMPT", "true")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "person", config.UIDColumn)
	assert.True(t, config.NoPrompt)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	var ce *errors.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestUpdateFromFlags(t *testing.T) {
	c := &Config{Format: "yaml", LogLevel: "warn"}
	c.UpdateFromFlags(true, false, true, "", "")
	assert.True(t, c.Verbose)
	assert.True(t, c.NoColor)
	assert.Equal(t, "yaml", c.Format)
	assert.Equal(t, "warn", c.LogLevel)

	c.UpdateFromFlags(false, false, false, "json", "trace")
	assert.Equal(t, "json", c.Format)
	assert.Equal(t, "trace", c.LogLevel)
}
