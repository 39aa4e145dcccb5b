package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestReadFilesKeepsOrderAndEntryFile(t *testing.T) {
	dir := t.TempDir()
	entry := writeTempFile(t, dir, "main.py", "print('hi')")
	aux := writeTempFile(t, dir, "util.py", "X = 1")

	files, err := readFiles([]string{entry, aux})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "main.py", files[0].Name)
	assert.Equal(t, "print('hi')", files[0].Code)
	assert.Equal(t, "util.py", files[1].Name)
}

func TestReadFilesDuplicateNameKeepsPosition(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	first := writeTempFile(t, dir1, "main.py", "old")
	other := writeTempFile(t, dir1, "util.py", "X = 1")
	second := writeTempFile(t, dir2, "main.py", "new")

	files, err := readFiles([]string{first, other, second})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "main.py", files[0].Name)
	assert.Equal(t, "new", files[0].Code)
	assert.Equal(t, "util.py", files[1].Name)
}

func TestReadFilesMissingFile(t *testing.T) {
	_, err := readFiles([]string{filepath.Join(t.TempDir(), "nope.py")})
	require.Error(t, err)
}

func TestBuildEndpoint(t *testing.T) {
	out, err := buildEndpoint("wss://host/socket.io/?lang=python3&transport=websocket", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://host/socket.io/?lang=python3&transport=websocket", out)

	out, err = buildEndpoint("wss://host/socket.io/?lang=python3&transport=websocket", "cpp")
	require.NoError(t, err)
	assert.Contains(t, out, "lang=cpp")
	assert.Contains(t, out, "transport=websocket")
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "replrun.toml", `
url = "wss://example.test/socket.io/"
lang = "python3"
log = "/tmp/replrun.log"
`)

	cfg, err := loadFileConfig(path, defaults{url: defaultURL})
	require.NoError(t, err)
	assert.Equal(t, "wss://example.test/socket.io/", cfg.url)
	assert.Equal(t, "python3", cfg.lang)
	assert.Equal(t, "/tmp/replrun.log", cfg.logPath)
}

func TestLoadFileConfigKeepsDefaultsForOmittedKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "replrun.toml", `lang = "cpp"`)

	cfg, err := loadFileConfig(path, defaults{url: defaultURL, logPath: "keep.log"})
	require.NoError(t, err)
	assert.Equal(t, defaultURL, cfg.url)
	assert.Equal(t, "cpp", cfg.lang)
	assert.Equal(t, "keep.log", cfg.logPath)
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	_, err := loadFileConfig(filepath.Join(t.TempDir(), "nope.toml"), defaults{})
	require.Error(t, err)
}
