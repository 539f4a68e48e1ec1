package plugindomain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func entries(names ...string) *RegistryDocument {
	doc := NewRegistryDocument()
	for i, n := range names {
		doc.Plugins = append(doc.Plugins, RegistryEntry{Name: n, Enabled: true, Priority: (i + 1) * PriorityStep})
	}
	return doc
}

func TestRegistryDocument_Find(t *testing.T) {
	doc := entries("alpha", "beta")

	entry, ok := doc.Find("beta")
	require.True(t, ok)
	assert.Equal(t, 20, entry.Priority)

	// mutations through the returned pointer land in the document
	entry.Enabled = false
	assert.False(t, doc.Plugins[1].Enabled)

	_, ok = doc.Find("Beta")
	assert.False(t, ok, "matching is exact on the sanitized identity")
}

func TestRegistryDocument_Remove(t *testing.T) {
	doc := entries("alpha", "beta", "gamma")

	assert.True(t, doc.Remove("beta"))
	assert.False(t, doc.Remove("beta"))
	require.Len(t, doc.Plugins, 2)
	assert.Equal(t, "alpha", doc.Plugins[0].Name)
	assert.Equal(t, "gamma", doc.Plugins[1].Name)
}

func TestRegistryDocument_NextPriority(t *testing.T) {
	assert.Equal(t, 10, NewRegistryDocument().NextPriority())
	assert.Equal(t, 40, entries("a", "b", "c").NextPriority())
}

func TestRegistryDocument_UpsertReplacesAndAppends(t *testing.T) {
	doc := entries("alpha", "beta", "gamma")

	doc.Upsert(RegistryEntry{Name: "alpha", Version: "2.0.0"})

	require.Len(t, doc.Plugins, 3)
	assert.Equal(t, "beta", doc.Plugins[0].Name)
	assert.Equal(t, "alpha", doc.Plugins[2].Name)
	assert.Equal(t, "2.0.0", doc.Plugins[2].Version)
}

func TestRegistryDocument_NamesStayUnique(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		doc := NewRegistryDocument()
		ops := rapid.SliceOf(rapid.SampledFrom([]string{"a", "b", "c", "d"})).Draw(t, "installs")

		for _, name := range ops {
			doc.Remove(name)
			doc.Upsert(RegistryEntry{Name: name, Priority: doc.NextPriority()})
		}

		seen := map[string]bool{}
		for _, e := range doc.Plugins {
			if seen[e.Name] {
				t.Fatalf("duplicate registry entry %q", e.Name)
			}
			seen[e.Name] = true
		}
	})
}

func TestProvenance_ReinstallSource(t *testing.T) {
	branch := "develop"

	tests := []struct {
		name       string
		provenance Provenance
		expected   string
		err        error
	}{
		{"URL", Provenance{Type: SourceTypeURL, Origin: "https://example.com/p.zip"}, "https://example.com/p.zip", nil},
		{"GitHubWithBranch", Provenance{Type: SourceTypeGitHub, Origin: "acme/tools", Branch: &branch}, "acme/tools@develop", nil},
		{"GitHubWithoutBranch", Provenance{Type: SourceTypeGitHub, Origin: "acme/tools"}, "acme/tools", nil},
		{"Local_ShouldFail", Provenance{Type: SourceTypeLocal, Origin: "/src/p"}, "", ErrLocalUpdate},
		{"Unknown_ShouldFail", Provenance{Type: "ftp", Origin: "x"}, "", ErrUnsupportedSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.provenance.ReinstallSource()
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestManifest_ApplyDefaults(t *testing.T) {
	m := Manifest{Name: "x"}
	m.ApplyDefaults()
	assert.Equal(t, DefaultPluginType, m.Type)
	assert.Equal(t, DefaultManifestVersion, m.Version)

	m = Manifest{Name: "x", Type: "formatter", Version: "2.1.0", Hooks: []string{HookBeforeGenerate}}
	m.ApplyDefaults()
	assert.Equal(t, "formatter", m.Type)
	assert.Equal(t, "2.1.0", m.Version)
	assert.True(t, m.HasHook(HookBeforeGenerate))
	assert.False(t, m.HasHook(HookAfterAnalyze))
}

func TestSourceHelpers(t *testing.T) {
	assert.True(t, IsArchivePath("plugin.ZIP"))
	assert.True(t, IsArchivePath("writer.skill"))
	assert.True(t, IsArchivePath("bundle.tar.gz"))
	assert.True(t, IsArchivePath("bundle.tgz"))
	assert.False(t, IsArchivePath("notes.md"))

	assert.True(t, IsTarGzPath("bundle.TGZ"))
	assert.False(t, IsTarGzPath("bundle.zip"))

	assert.Equal(t, "acme/tools", HostedRepoSource{Owner: "acme", Name: "tools"}.String())
	assert.Equal(t, "acme/tools@v2", HostedRepoSource{Owner: "acme", Name: "tools", Branch: "v2"}.String())
}

func TestNotFoundError_IsErrNotFound(t *testing.T) {
	var err error = &NotFoundError{Name: "ghost", Where: "registry"}
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `"ghost"`)
}
