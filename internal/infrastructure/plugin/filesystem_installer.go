package plugininfra

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

// FileSystemInstaller owns the managed plugins directory: one subdirectory
// per installed plugin, named after its sanitized identity
type FileSystemInstaller struct {
	targetDir string
	log       *logrus.Logger
}

// NewFileSystemInstaller creates a new filesystem plugin installer
func NewFileSystemInstaller(targetDir string, log *logrus.Logger) *FileSystemInstaller {
	if log == nil {
		log = logrus.New()
	}
	return &FileSystemInstaller{
		targetDir: expandPath(targetDir),
		log:       log,
	}
}

// PluginDir returns the managed directory for a plugin name
func (i *FileSystemInstaller) PluginDir(name string) string {
	return filepath.Join(i.targetDir, name)
}

// Install copies srcDir into plugins/<name>, replacing any existing
// directory of that name entirely
func (i *FileSystemInstaller) Install(srcDir, name string) (string, error) {
	if !plugindomain.IsValidName(name) {
		return "", fmt.Errorf("invalid plugin directory name %q", name)
	}
	if err := os.MkdirAll(i.targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create plugins directory: %w", err)
	}

	target := i.PluginDir(name)
	if same, err := samePath(srcDir, target); err == nil && same {
		return target, nil
	}
	if within, err := isWithin(srcDir, i.targetDir); err == nil && within {
		return "", fmt.Errorf("plugin source %s contains the plugins directory", srcDir)
	}

	// the previous install is only replaced once the new copy is complete
	staging := filepath.Join(i.targetDir, TempInstallDirName)
	if err := os.RemoveAll(staging); err != nil {
		return "", fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.CopyFS(staging, os.DirFS(srcDir)); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("failed to copy plugin content: %w", err)
	}
	if err := os.RemoveAll(target); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("failed to remove existing plugin directory: %w", err)
	}
	if err := os.Rename(staging, target); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("failed to move plugin into place: %w", err)
	}

	i.log.WithFields(logrus.Fields{"plugin": name, "path": target}).Debug("Copied plugin content")
	return target, nil
}

// Exists reports whether plugins/<name> is present
func (i *FileSystemInstaller) Exists(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return false
	}
	info, err := os.Stat(i.PluginDir(name))
	return err == nil && info.IsDir()
}

// Uninstall removes plugins/<name>
func (i *FileSystemInstaller) Uninstall(name string) error {
	if !i.Exists(name) {
		return &plugindomain.NotFoundError{Name: name, Where: i.targetDir}
	}
	if err := os.RemoveAll(i.PluginDir(name)); err != nil {
		return fmt.Errorf("failed to remove plugin directory: %w", err)
	}
	i.log.WithField("plugin", name).Debug("Removed plugin directory")
	return nil
}

// GetInstalled returns the names of installed plugin directories in
// lexical order. Entries starting with "_" are reserved and skipped.
func (i *FileSystemInstaller) GetInstalled() ([]string, error) {
	entries, err := os.ReadDir(i.targetDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), plugindomain.ReservedDirPrefix) || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

// isWithin reports whether path equals parent or lies below it
func isWithin(parent, path string) (bool, error) {
	absParent, err := filepath.Abs(parent)
	if err != nil {
		return false, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(absParent, absPath)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

// expandPath expands ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
