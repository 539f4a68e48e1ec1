package plugindomain

import (
	"encoding/json"
	"time"
)

// Well-known file names inside a plugin directory and the managed plugins directory
const (
	ManifestFileName = "PLUGIN.md"
	SkillFileName    = "SKILL.md"
	ReadmeFileName   = "README.md"

	RegistryFileName = "_registry.yaml"
	PluginsDirName   = "plugins"
)

// Defaults applied to manifests and registry entries
const (
	DefaultPluginType       = "enhancer"
	DefaultManifestVersion  = "0.0.0"
	SynthesizedVersion      = "1.0.0"
	UnregisteredPriority    = 100
	PriorityStep            = 10
	HookAfterAnalyze        = "after_analyze"
	HookBeforeGenerate      = "before_generate"
	ReservedDirPrefix       = "_"
	DefaultSynthesizedName  = "plugin"
	DefaultHostedRepoBranch = "main"
)

// SourceType identifies where an installed plugin came from
type SourceType string

const (
	SourceTypeLocal  SourceType = "local"
	SourceTypeURL    SourceType = "url"
	SourceTypeGitHub SourceType = "github"
)

// Manifest is the declarative description of one plugin.
// It is stored as YAML frontmatter at the top of PLUGIN.md; Body holds
// the markdown that follows the frontmatter.
type Manifest struct {
	Name        string   `yaml:"name" json:"name"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Version     string   `yaml:"version,omitempty" json:"version,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string   `yaml:"author,omitempty" json:"author,omitempty"`
	Requires    []string `yaml:"requires,omitempty" json:"requires,omitempty"`
	Hooks       []string `yaml:"hooks,omitempty" json:"hooks,omitempty"`

	Body string `yaml:"-" json:"-"`
}

// ApplyDefaults fills the fields a descriptor may omit
func (m *Manifest) ApplyDefaults() {
	if m.Type == "" {
		m.Type = DefaultPluginType
	}
	if m.Version == "" {
		m.Version = DefaultManifestVersion
	}
}

// HasHook reports whether the manifest declares participation in hook
func (m *Manifest) HasHook(hook string) bool {
	for _, h := range m.Hooks {
		if h == hook {
			return true
		}
	}
	return false
}

// Provenance records the origin of an installation so that update can
// fetch it again. Branch is nil for non-repository sources.
type Provenance struct {
	Type   SourceType `yaml:"type" json:"type"`
	Origin string     `yaml:"origin" json:"origin"`
	Branch *string    `yaml:"branch" json:"branch"`
}

// BranchName returns the recorded branch or an empty string
func (p Provenance) BranchName() string {
	if p.Branch == nil {
		return ""
	}
	return *p.Branch
}

// RegistryEntry is the persisted metadata for one installed plugin
type RegistryEntry struct {
	Name        string     `yaml:"name" json:"name"`
	Enabled     bool       `yaml:"enabled" json:"enabled"`
	Priority    int        `yaml:"priority" json:"priority"`
	Type        string     `yaml:"type,omitempty" json:"type,omitempty"`
	Version     string     `yaml:"version,omitempty" json:"version,omitempty"`
	Source      Provenance `yaml:"source" json:"source"`
	InstalledAt Timestamp  `yaml:"installed_at" json:"installed_at"`

	// Extra keeps keys this tool does not know about, so hand edits survive
	// a load/save cycle of entries that are not rewritten.
	Extra map[string]interface{} `yaml:",inline" json:"-"`
}

// Timestamp is a registry time value. Text that does not parse as a
// timestamp is kept verbatim in Raw and written back unchanged.
type Timestamp struct {
	time.Time
	Raw string
}

// NewTimestamp wraps t
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalYAML decodes a timestamp, falling back to the raw scalar text
func (t *Timestamp) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var parsed time.Time
	if err := unmarshal(&parsed); err == nil {
		*t = Timestamp{Time: parsed}
		return nil
	}
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*t = Timestamp{Raw: raw}
	return nil
}

// MarshalYAML writes the raw text when the value never parsed
func (t Timestamp) MarshalYAML() (interface{}, error) {
	if t.Raw != "" {
		return t.Raw, nil
	}
	return t.Time, nil
}

// MarshalJSON mirrors MarshalYAML
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Raw != "" {
		return json.Marshal(t.Raw)
	}
	return json.Marshal(t.Time)
}

// InstalledPlugin is one row of the list operation: manifest data joined
// with registry metadata
type InstalledPlugin struct {
	Manifest    `yaml:",inline"`
	Path        string `json:"path" yaml:"path"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Priority    int    `json:"priority" yaml:"priority"`
	Registered  bool   `json:"registered" yaml:"registered"`
	Synthesized bool   `json:"synthesized,omitempty" yaml:"synthesized,omitempty"`
}

// Result is the structured outcome of a manager operation
type Result struct {
	Success bool
	Name    string
	Message string
	Err     error
}

// Succeeded builds a successful result
func Succeeded(name, message string) Result {
	return Result{Success: true, Name: name, Message: message}
}

// Failed builds a failed result carrying the underlying error
func Failed(name string, err error, message string) Result {
	return Result{Name: name, Message: message, Err: err}
}
