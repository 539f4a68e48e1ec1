package plugininfra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

func newTestInstaller(t *testing.T) (*FileSystemInstaller, string) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	dir := filepath.Join(t.TempDir(), "plugins")
	return NewFileSystemInstaller(dir, logger), dir
}

func TestFileSystemInstaller_InstallCopiesContent(t *testing.T) {
	installer, dir := newTestInstaller(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "PLUGIN.md"), "---\nname: copy-me\n---\n")
	writeFile(t, filepath.Join(src, "templates", "page.tmpl"), "{{ .Title }}")

	target, err := installer.Install(src, "copy-me")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "copy-me"), target)
	assert.FileExists(t, filepath.Join(target, "PLUGIN.md"))
	assert.FileExists(t, filepath.Join(target, "templates", "page.tmpl"))
	assert.True(t, installer.Exists("copy-me"))
	assert.FileExists(t, filepath.Join(src, "PLUGIN.md"), "source is left in place")
}

func TestFileSystemInstaller_InstallReplacesWholeDirectory(t *testing.T) {
	installer, _ := newTestInstaller(t)

	first := t.TempDir()
	writeFile(t, filepath.Join(first, "old-only.txt"), "old")
	writeFile(t, filepath.Join(first, "shared.txt"), "v1")
	_, err := installer.Install(first, "replaced")
	require.NoError(t, err)

	second := t.TempDir()
	writeFile(t, filepath.Join(second, "shared.txt"), "v2")
	target, err := installer.Install(second, "replaced")
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(target, "old-only.txt"), "reinstall must not merge")
	data, err := os.ReadFile(filepath.Join(target, "shared.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestFileSystemInstaller_InstallRejectsBadNames(t *testing.T) {
	installer, _ := newTestInstaller(t)
	src := t.TempDir()

	for _, name := range []string{"", "../escape", "_registry", "Upper", "a/b"} {
		_, err := installer.Install(src, name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestFileSystemInstaller_InstallRejectsSourceContainingPluginsDir(t *testing.T) {
	project := t.TempDir()
	logger, _ := test.NewNullLogger()
	installer := NewFileSystemInstaller(filepath.Join(project, "plugins"), logger)

	_, err := installer.Install(project, "whole-project")

	assert.Error(t, err)
	assert.NoDirExists(t, filepath.Join(project, "plugins", "whole-project"))
}

func TestFileSystemInstaller_InstallInPlace(t *testing.T) {
	installer, dir := newTestInstaller(t)
	inPlace := filepath.Join(dir, "in-place")
	writeFile(t, filepath.Join(inPlace, "README.md"), "# in place\n")

	target, err := installer.Install(inPlace, "in-place")
	require.NoError(t, err)

	assert.Equal(t, inPlace, target)
	assert.FileExists(t, filepath.Join(inPlace, "README.md"))
}

func TestFileSystemInstaller_Uninstall(t *testing.T) {
	installer, dir := newTestInstaller(t)
	writeFile(t, filepath.Join(dir, "gone", "PLUGIN.md"), "x")

	require.NoError(t, installer.Uninstall("gone"))
	assert.NoDirExists(t, filepath.Join(dir, "gone"))

	err := installer.Uninstall("gone")
	assert.True(t, errors.Is(err, plugindomain.ErrNotFound))
}

func TestFileSystemInstaller_GetInstalled(t *testing.T) {
	installer, dir := newTestInstaller(t)

	names, err := installer.GetInstalled()
	require.NoError(t, err)
	assert.Empty(t, names, "missing directory lists nothing")

	writeFile(t, filepath.Join(dir, "zeta", "PLUGIN.md"), "x")
	writeFile(t, filepath.Join(dir, "alpha", "README.md"), "x")
	writeFile(t, filepath.Join(dir, TempExtractDirName, "PLUGIN.md"), "x")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "x")
	writeFile(t, filepath.Join(dir, plugindomain.RegistryFileName), "plugins: []\n")

	names, err = installer.GetInstalled()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestFileSystemInstaller_Exists(t *testing.T) {
	installer, dir := newTestInstaller(t)
	writeFile(t, filepath.Join(dir, "present", "x"), "x")
	writeFile(t, filepath.Join(dir, "file-not-dir"), "x")

	assert.True(t, installer.Exists("present"))
	assert.False(t, installer.Exists("absent"))
	assert.False(t, installer.Exists("file-not-dir"))
	assert.False(t, installer.Exists(".."))
	assert.False(t, installer.Exists("present/x"))
}

func TestFileSystemInstaller_FailedCopyKeepsPreviousInstall(t *testing.T) {
	installer, dir := newTestInstaller(t)

	first := t.TempDir()
	writeFile(t, filepath.Join(first, "PLUGIN.md"), "---\nname: keeper\nversion: 1.0.0\n---\n")
	_, err := installer.Install(first, "keeper")
	require.NoError(t, err)

	second := t.TempDir()
	writeFile(t, filepath.Join(second, "PLUGIN.md"), "---\nname: keeper\nversion: 2.0.0\n---\n")
	if err := os.Symlink("/etc/passwd", filepath.Join(second, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err = installer.Install(second, "keeper")
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "keeper", "PLUGIN.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1.0.0")
	assert.NoDirExists(t, filepath.Join(dir, TempInstallDirName))

	names, err := installer.GetInstalled()
	require.NoError(t, err)
	assert.Equal(t, []string{"keeper"}, names)
}

func TestFileSystemInstaller_InstallClearsStaleStaging(t *testing.T) {
	installer, dir := newTestInstaller(t)
	writeFile(t, filepath.Join(dir, TempInstallDirName, "leftover.txt"), "stale")
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "PLUGIN.md"), "---\nname: fresh\n---\n")

	target, err := installer.Install(src, "fresh")
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(target, "leftover.txt"))
	assert.NoDirExists(t, filepath.Join(dir, TempInstallDirName))
}
