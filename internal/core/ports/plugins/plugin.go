package plugins

import (
	"context"
	"io"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
)

// FetchedSource is plugin content materialized on the local filesystem.
// Cleanup removes any temporary download or extraction artifacts and is
// safe to call more than once.
type FetchedSource struct {
	Dir        string
	Provenance plugindomain.Provenance
	// NameHint names the plugin when Dir carries no meaningful name of its
	// own, such as the root of an extraction directory
	NameHint string
	cleanup  []func() error
}

// NewFetchedSource builds a FetchedSource with optional cleanup steps
func NewFetchedSource(dir string, provenance plugindomain.Provenance, cleanup ...func() error) *FetchedSource {
	return &FetchedSource{Dir: dir, Provenance: provenance, cleanup: cleanup}
}

// Cleanup runs every cleanup step and returns the first error
func (f *FetchedSource) Cleanup() error {
	if f == nil {
		return nil
	}
	var first error
	for _, fn := range f.cleanup {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	f.cleanup = nil
	return first
}

// SourceFetcher turns an install source into a local directory
type SourceFetcher interface {
	// Parse classifies a raw install argument
	Parse(raw string) (plugindomain.SourceSpec, error)

	// Fetch materializes the source; the caller must call Cleanup on the result
	Fetch(ctx context.Context, spec plugindomain.SourceSpec) (*FetchedSource, error)
}

// ManifestResolver reads and, when needed, synthesizes plugin manifests
type ManifestResolver interface {
	// Resolve parses the primary manifest without touching the filesystem
	Resolve(dir string) (*plugindomain.Manifest, error)

	// Synthesize builds a fallback manifest for dir without writing it
	Synthesize(dir string) *plugindomain.Manifest

	// Materialize writes manifest as the primary manifest of dir
	Materialize(dir string, manifest *plugindomain.Manifest) error

	// ResolveOrMaterialize resolves dir's manifest, writing a synthesized
	// one when it is absent or invalid
	ResolveOrMaterialize(dir string) (*plugindomain.Manifest, bool, error)
}

// RegistryStore persists the registry document
type RegistryStore interface {
	Load(ctx context.Context) *plugindomain.RegistryDocument
	Save(ctx context.Context, doc *plugindomain.RegistryDocument) error
}

// PluginInstaller owns the managed plugins directory
type PluginInstaller interface {
	// Install replaces plugins/<name> with the content of srcDir
	Install(srcDir, name string) (string, error)
	Exists(name string) bool
	Uninstall(name string) error
	// GetInstalled lists managed plugin directory names, skipping reserved ones
	GetInstalled() ([]string, error)
	PluginDir(name string) string
}

// Downloader streams a remote resource
type Downloader interface {
	// Download writes the body of url to w
	Download(ctx context.Context, url string, w io.Writer) error

	// DefaultBranch returns the default branch of an owner/name repository
	DefaultBranch(ctx context.Context, owner, name string) (string, error)
}
