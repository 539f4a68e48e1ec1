package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

// YAMLStore persists the plugin registry as a single YAML document
type YAMLStore struct {
	path string
	log  *logrus.Logger
}

// NewYAMLStore creates a store for the registry file at path
func NewYAMLStore(path string, log *logrus.Logger) *YAMLStore {
	if log == nil {
		log = logrus.New()
	}
	return &YAMLStore{path: path, log: log}
}

// NewYAMLStoreForDir creates a store for the registry inside a plugins directory
func NewYAMLStoreForDir(pluginsDir string, log *logrus.Logger) *YAMLStore {
	return NewYAMLStore(filepath.Join(pluginsDir, plugindomain.RegistryFileName), log)
}

// Path returns the registry file location
func (s *YAMLStore) Path() string {
	return s.path
}

// BackupPath is where an unparsable registry is copied before it can be overwritten
func (s *YAMLStore) BackupPath() string {
	return s.path + ".corrupt"
}

// Load reads the registry. A missing, empty or unreadable file yields an
// empty document; corruption is logged and never returned.
func (s *YAMLStore) Load(ctx context.Context) *plugindomain.RegistryDocument {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(&plugindomain.RegistryCorruptionError{Path: s.path, Err: err}).
				Warn("Treating registry as empty")
		}
		return plugindomain.NewRegistryDocument()
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return plugindomain.NewRegistryDocument()
	}

	var doc plugindomain.RegistryDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log := s.log.WithError(&plugindomain.RegistryCorruptionError{Path: s.path, Err: err})
		// the next save replaces the file, so keep what was there
		if backupErr := os.WriteFile(s.BackupPath(), data, 0644); backupErr != nil {
			log.WithField("backup_error", backupErr.Error()).Warn("Treating registry as empty")
		} else {
			log.WithField("backup", s.BackupPath()).Warn("Treating registry as empty")
		}
		return plugindomain.NewRegistryDocument()
	}
	if doc.Plugins == nil {
		doc.Plugins = []plugindomain.RegistryEntry{}
	}

	s.log.WithFields(logrus.Fields{"path": s.path, "plugins": len(doc.Plugins)}).Debug("Loaded registry")
	return &doc
}

// Save writes the document, creating parent directories as needed. The
// content goes to a sibling temp file first and is renamed into place.
func (s *YAMLStore) Save(ctx context.Context, doc *plugindomain.RegistryDocument) error {
	if doc == nil {
		doc = plugindomain.NewRegistryDocument()
	}
	if doc.Plugins == nil {
		doc.Plugins = []plugindomain.RegistryEntry{}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create registry temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set registry permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}

	s.log.WithFields(logrus.Fields{"path": s.path, "plugins": len(doc.Plugins)}).Debug("Saved registry")
	return nil
}
