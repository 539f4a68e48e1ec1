package plugindomain

import (
	"fmt"
	"strings"
)

// SourceSpec is a normalized install source. The concrete kinds are
// LocalSource, ArchiveSource, RemoteSource and HostedRepoSource.
type SourceSpec interface {
	String() string
	isSourceSpec()
}

// LocalSource is a plugin directory on the local filesystem
type LocalSource struct {
	Path string
}

// ArchiveSource is a zip-family or tar.gz archive on the local filesystem
type ArchiveSource struct {
	Path string
}

// RemoteSource is an http(s) URL pointing at an archive
type RemoteSource struct {
	URL string
}

// HostedRepoSource is an owner/name repository shorthand. An empty Branch
// means the repository's default branch.
type HostedRepoSource struct {
	Owner  string
	Name   string
	Branch string
}

func (s LocalSource) String() string   { return s.Path }
func (s ArchiveSource) String() string { return s.Path }
func (s RemoteSource) String() string  { return s.URL }

func (s HostedRepoSource) String() string {
	if s.Branch == "" {
		return s.Repo()
	}
	return fmt.Sprintf("%s@%s", s.Repo(), s.Branch)
}

// Repo returns the owner/name form recorded as provenance origin
func (s HostedRepoSource) Repo() string {
	return s.Owner + "/" + s.Name
}

func (LocalSource) isSourceSpec()      {}
func (ArchiveSource) isSourceSpec()    {}
func (RemoteSource) isSourceSpec()     {}
func (HostedRepoSource) isSourceSpec() {}

var archiveSuffixes = []string{".zip", ".skill", ".tar.gz", ".tgz"}

// IsArchivePath reports whether path carries a supported archive extension
func IsArchivePath(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// IsTarGzPath reports whether path names a gzip-compressed tarball
func IsTarGzPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// ReinstallSource rebuilds the install argument for an entry's provenance.
// Local provenance cannot be re-fetched and yields ErrLocalUpdate.
func (p Provenance) ReinstallSource() (string, error) {
	switch p.Type {
	case SourceTypeURL:
		return p.Origin, nil
	case SourceTypeGitHub:
		if b := p.BranchName(); b != "" {
			return p.Origin + "@" + b, nil
		}
		return p.Origin, nil
	case SourceTypeLocal:
		return "", ErrLocalUpdate
	default:
		return "", fmt.Errorf("%w: provenance type %q", ErrUnsupportedSource, p.Type)
	}
}
