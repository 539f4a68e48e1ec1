package plugininfra

import (
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nlepage/go-tarfs"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

// ExtractArchive unpacks archivePath into destDir. Zip-family archives
// (.zip, .skill) are read through archive/zip; gzip tarballs through tarfs.
// Both are exposed as fs.FS so entry names outside the archive root are
// never written.
func ExtractArchive(archivePath, destDir string, tarGz bool) error {
	if tarGz {
		return extractTarGz(archivePath, destDir)
	}
	return extractZip(archivePath, destDir)
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) {
			if zr != nil {
				zr.Close()
			}
			return fmt.Errorf("archive contains unsafe paths: %w", err)
		}
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if name := strings.TrimSuffix(f.Name, "/"); name != "" && !filepath.IsLocal(name) {
			return fmt.Errorf("archive contains unsafe path %q", f.Name)
		}
	}

	if err := os.CopyFS(destDir, zr); err != nil {
		return fmt.Errorf("failed to extract zip archive: %w", err)
	}
	return nil
}

func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gzReader, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tfs, err := tarfs.New(gzReader)
	if err != nil {
		return fmt.Errorf("failed to read tar archive: %w", err)
	}

	if err := os.CopyFS(destDir, tfs); err != nil {
		return fmt.Errorf("failed to extract tar archive: %w", err)
	}
	return nil
}

// FindPluginRoot locates the real plugin directory inside an extraction
// root. Archives downloaded from repository hosts nest their content one
// level deep under a generated directory.
func FindPluginRoot(extractDir string) string {
	if hasAny(extractDir, plugindomain.ManifestFileName, plugindomain.SkillFileName) {
		return extractDir
	}

	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return extractDir
	}
	// os.ReadDir returns entries sorted by name
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(extractDir, entry.Name())
		if hasAny(candidate, plugindomain.ManifestFileName, plugindomain.SkillFileName, plugindomain.ReadmeFileName) {
			return candidate
		}
	}
	return extractDir
}

func hasAny(dir string, names ...string) bool {
	for _, name := range names {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}
