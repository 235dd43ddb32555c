package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigRoot(t *testing.T) {
	t.Helper()
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestProfileLifecycle(t *testing.T) {
	testConfigRoot(t)

	_, err := InitDefaultConfig()
	require.NoError(t, err)

	path, err := CreateEmptyConfig("fast")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = CreateEmptyConfig("fast")
	require.Error(t, err, "duplicate labels are rejected")

	require.NoError(t, SwitchConfig("fast"))
	label, err := CurrentLabel()
	require.NoError(t, err)
	assert.Equal(t, "fast", label)

	require.NoError(t, RenameConfig("fast", "faster"))
	label, _ = CurrentLabel()
	assert.Equal(t, "faster", label, "renaming the active profile follows it")

	switched, err := RemoveConfig("faster")
	require.NoError(t, err)
	assert.True(t, switched, "removing the active profile falls back to Default")
	label, _ = CurrentLabel()
	assert.Equal(t, "Default", label)

	_, err = RemoveConfig("Default")
	require.Error(t, err)
}

func TestListConfigsDecodesProfiles(t *testing.T) {
	testConfigRoot(t)

	_, err := InitDefaultConfig()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Output = "/data/manga"
	cfg.GlobalWorkers = 7
	require.NoError(t, SaveYAML(cfg, filepath.Join(ConfigsDir(), "bulk.yaml")))
	require.NoError(t, os.WriteFile(filepath.Join(ConfigsDir(), "broken.yaml"), []byte("{nope"), 0644))

	list, err := ListConfigs()
	require.NoError(t, err)
	require.Len(t, list, 3)

	byLabel := map[string]ConfigInfo{}
	for _, c := range list {
		byLabel[c.Label] = c
	}

	require.NotNil(t, byLabel["bulk"].Config)
	assert.Equal(t, "/data/manga", byLabel["bulk"].Config.Output)
	assert.Equal(t, 7, byLabel["bulk"].Config.GlobalWorkers)
	assert.True(t, byLabel["Default"].Active)
	assert.Nil(t, byLabel["broken"].Config, "unparseable profiles are listed without content")
}
