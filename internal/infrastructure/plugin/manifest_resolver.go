package plugininfra

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

var (
	frontmatterPattern = regexp.MustCompile(`(?s)^---[ \t]*\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|$)`)
	skillNamePattern   = regexp.MustCompile(`(?m)^[ \t]*name:[ \t]*(.+?)[ \t]*\r?$`)
	skillDescPattern   = regexp.MustCompile(`(?m)^[ \t]*description:[ \t]*(.+?)[ \t]*\r?$`)
)

var (
	skillHooks   = []string{plugindomain.HookAfterAnalyze, plugindomain.HookBeforeGenerate}
	genericHooks = []string{plugindomain.HookAfterAnalyze}
)

// ManifestResolver locates, parses and synthesizes PLUGIN.md manifests
type ManifestResolver struct {
	log *logrus.Logger
}

// NewManifestResolver creates a new manifest resolver
func NewManifestResolver(log *logrus.Logger) *ManifestResolver {
	if log == nil {
		log = logrus.New()
	}
	return &ManifestResolver{log: log}
}

// Resolve parses the primary manifest in dir. It never writes; a missing or
// malformed manifest yields a *plugindomain.ManifestError.
func (r *ManifestResolver) Resolve(dir string) (*plugindomain.Manifest, error) {
	path := filepath.Join(dir, plugindomain.ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &plugindomain.ManifestError{Path: path, Err: plugindomain.ErrManifestAbsent}
		}
		return nil, &plugindomain.ManifestError{Path: path, Err: err}
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, &plugindomain.ManifestError{Path: path, Err: err}
	}

	if manifest.Version != plugindomain.DefaultManifestVersion {
		if _, err := semver.NewVersion(manifest.Version); err != nil {
			r.log.WithFields(logrus.Fields{"plugin": manifest.Name, "version": manifest.Version}).
				Warn("Plugin version is not a semantic version")
		}
	}

	return manifest, nil
}

// ParseManifest decodes PLUGIN.md content: YAML frontmatter followed by a
// markdown body
func ParseManifest(data []byte) (*plugindomain.Manifest, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	match := frontmatterPattern.FindSubmatchIndex(data)
	if match == nil {
		return nil, errors.New("no frontmatter block")
	}

	var manifest plugindomain.Manifest
	if err := yaml.Unmarshal(data[match[2]:match[3]], &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if strings.TrimSpace(manifest.Name) == "" {
		return nil, errors.New("manifest name is required")
	}

	manifest.Body = strings.TrimLeft(string(data[match[1]:]), "\r\n")
	manifest.ApplyDefaults()
	return &manifest, nil
}

// EncodeManifest renders a manifest as PLUGIN.md content
func EncodeManifest(manifest *plugindomain.Manifest) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(manifest); err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	buf.WriteString("---\n")
	if manifest.Body != "" {
		buf.WriteString("\n")
		buf.WriteString(manifest.Body)
		if !strings.HasSuffix(manifest.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// Synthesize builds a fallback manifest for a directory that has no valid
// PLUGIN.md. A SKILL.md descriptor is wrapped as the plugin body; otherwise a
// minimal manifest is derived from the directory name and README.md.
func (r *ManifestResolver) Synthesize(dir string) *plugindomain.Manifest {
	base := filepath.Base(filepath.Clean(dir))

	if skill, err := os.ReadFile(filepath.Join(dir, plugindomain.SkillFileName)); err == nil {
		name := base
		if m := skillNamePattern.FindSubmatch(skill); m != nil {
			if v := trimQuotes(string(m[1])); v != "" {
				name = v
			}
		}
		manifest := &plugindomain.Manifest{
			Name:    name,
			Type:    plugindomain.DefaultPluginType,
			Version: plugindomain.SynthesizedVersion,
			Hooks:   append([]string(nil), skillHooks...),
			Body:    string(skill),
		}
		if m := skillDescPattern.FindSubmatch(skill); m != nil {
			manifest.Description = trimQuotes(string(m[1]))
		}
		r.log.WithFields(logrus.Fields{"dir": dir, "plugin": name}).Debug("Synthesized manifest from skill descriptor")
		return manifest
	}

	manifest := &plugindomain.Manifest{
		Name:        base,
		Type:        plugindomain.DefaultPluginType,
		Version:     plugindomain.SynthesizedVersion,
		Hooks:       append([]string(nil), genericHooks...),
		Description: readmeSummary(filepath.Join(dir, plugindomain.ReadmeFileName)),
	}
	r.log.WithFields(logrus.Fields{"dir": dir, "plugin": base}).Debug("Synthesized generic manifest")
	return manifest
}

// Materialize writes manifest to dir/PLUGIN.md, replacing any existing file
func (r *ManifestResolver) Materialize(dir string, manifest *plugindomain.Manifest) error {
	data, err := EncodeManifest(manifest)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, plugindomain.ManifestFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ResolveOrMaterialize resolves the manifest in dir and, when it is missing
// or malformed, synthesizes one and writes it back. The boolean reports
// whether a manifest was synthesized. A failed write still returns the
// synthesized manifest alongside the error.
func (r *ManifestResolver) ResolveOrMaterialize(dir string) (*plugindomain.Manifest, bool, error) {
	manifest, err := r.Resolve(dir)
	if err == nil {
		return manifest, false, nil
	}
	if !errors.Is(err, plugindomain.ErrManifestAbsent) {
		r.log.WithError(err).Warn("Replacing invalid plugin manifest")
	}

	manifest = r.Synthesize(dir)
	if err := r.Materialize(dir, manifest); err != nil {
		return manifest, true, err
	}
	return manifest, true, nil
}

// readmeSummary returns the first prose line of a README, skipping headings
// and blank lines
func readmeSummary(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "<") || strings.HasPrefix(line, "![") {
			continue
		}
		return line
	}
	return ""
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
