package plugininfra

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
	"miniwiki.dev/cli/internal/core/ports/plugins"
)

// Temporary artifacts live inside the managed directory under reserved
// names so that a crashed run leaves nothing list would pick up
const (
	TempExtractDirName   = "_temp_extract"
	TempDownloadBaseName = "_temp_download"
	TempInstallDirName   = "_temp_install"
)

// DefaultArchiveBaseURL is the host serving hosted-repository branch archives
const DefaultArchiveBaseURL = "https://github.com"

var hostedRepoPattern = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)/([A-Za-z0-9._-]+?)(?:\.git)?(?:@([A-Za-z0-9._/-]+))?$`)

// FetcherConfig configures a SourceFetcher
type FetcherConfig struct {
	// WorkDir hosts temporary downloads and extractions, normally the plugins directory
	WorkDir string
	// ArchiveBaseURL serves {owner}/{name}/archive/refs/heads/{branch}.zip
	ArchiveBaseURL string
	// ResolveDefaultBranch asks the repository API for the default branch
	// instead of assuming main
	ResolveDefaultBranch bool
}

// SourceFetcher normalizes install sources into a local plugin directory
type SourceFetcher struct {
	cfg        FetcherConfig
	downloader plugins.Downloader
	log        *logrus.Logger
}

// NewSourceFetcher creates a new source fetcher
func NewSourceFetcher(cfg FetcherConfig, downloader plugins.Downloader, log *logrus.Logger) *SourceFetcher {
	if log == nil {
		log = logrus.New()
	}
	if cfg.ArchiveBaseURL == "" {
		cfg.ArchiveBaseURL = DefaultArchiveBaseURL
	}
	cfg.ArchiveBaseURL = strings.TrimRight(cfg.ArchiveBaseURL, "/")
	return &SourceFetcher{cfg: cfg, downloader: downloader, log: log}
}

// Parse classifies a raw install argument. Existing paths win over the
// owner/name shorthand.
func (f *SourceFetcher) Parse(raw string) (plugindomain.SourceSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &plugindomain.FetchError{Source: raw, Err: fmt.Errorf("%w: empty source", plugindomain.ErrUnsupportedSource)}
	}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, &plugindomain.FetchError{Source: raw, Err: fmt.Errorf("%w: invalid URL", plugindomain.ErrUnsupportedSource)}
		}
		return plugindomain.RemoteSource{URL: raw}, nil
	}

	if info, err := os.Stat(raw); err == nil {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return nil, &plugindomain.FetchError{Source: raw, Err: err}
		}
		switch {
		case info.IsDir():
			return plugindomain.LocalSource{Path: abs}, nil
		case plugindomain.IsArchivePath(raw):
			return plugindomain.ArchiveSource{Path: abs}, nil
		default:
			return nil, &plugindomain.FetchError{Source: raw, Err: fmt.Errorf("%w: not a directory or supported archive", plugindomain.ErrUnsupportedSource)}
		}
	}

	if m := hostedRepoPattern.FindStringSubmatch(raw); m != nil {
		return plugindomain.HostedRepoSource{Owner: m[1], Name: m[2], Branch: m[3]}, nil
	}

	return nil, &plugindomain.FetchError{Source: raw, Err: fmt.Errorf("%w: %s does not exist", plugindomain.ErrUnsupportedSource, raw)}
}

// Fetch materializes spec as a local directory. Temporary artifacts are
// removed by the returned source's Cleanup, or before returning on error.
func (f *SourceFetcher) Fetch(ctx context.Context, spec plugindomain.SourceSpec) (*plugins.FetchedSource, error) {
	switch s := spec.(type) {
	case plugindomain.LocalSource:
		return plugins.NewFetchedSource(s.Path, plugindomain.Provenance{
			Type:   plugindomain.SourceTypeLocal,
			Origin: s.Path,
		}), nil

	case plugindomain.ArchiveSource:
		return f.extract(s.Path, plugindomain.IsTarGzPath(s.Path), archiveStem(s.Path), plugindomain.Provenance{
			Type:   plugindomain.SourceTypeLocal,
			Origin: s.Path,
		})

	case plugindomain.RemoteSource:
		return f.fetchRemote(ctx, s.URL, "", plugindomain.Provenance{
			Type:   plugindomain.SourceTypeURL,
			Origin: s.URL,
		})

	case plugindomain.HostedRepoSource:
		branch := f.resolveBranch(ctx, s)
		archiveURL := fmt.Sprintf("%s/%s/%s/archive/refs/heads/%s.zip", f.cfg.ArchiveBaseURL, s.Owner, s.Name, branch)
		return f.fetchRemote(ctx, archiveURL, s.Name, plugindomain.Provenance{
			Type:   plugindomain.SourceTypeGitHub,
			Origin: s.Repo(),
			Branch: &branch,
		})

	default:
		return nil, &plugindomain.FetchError{Source: fmt.Sprint(spec), Err: plugindomain.ErrUnsupportedSource}
	}
}

// resolveBranch picks the explicit branch, the remote default branch, or main
func (f *SourceFetcher) resolveBranch(ctx context.Context, s plugindomain.HostedRepoSource) string {
	if s.Branch != "" {
		return s.Branch
	}
	if !f.cfg.ResolveDefaultBranch || f.downloader == nil {
		return plugindomain.DefaultHostedRepoBranch
	}

	branch, err := f.downloader.DefaultBranch(ctx, s.Owner, s.Name)
	if err != nil {
		f.log.WithError(err).WithField("repo", s.Repo()).Debug("Default branch lookup failed, assuming main")
		return plugindomain.DefaultHostedRepoBranch
	}
	return branch
}

func (f *SourceFetcher) fetchRemote(ctx context.Context, rawURL, nameHint string, provenance plugindomain.Provenance) (*plugins.FetchedSource, error) {
	if f.downloader == nil {
		return nil, &plugindomain.FetchError{Source: rawURL, Err: fmt.Errorf("no downloader configured")}
	}

	tarGz := false
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		tarGz = plugindomain.IsTarGzPath(base)
		if nameHint == "" && plugindomain.IsArchivePath(base) {
			nameHint = archiveStem(base)
		}
	}

	if err := os.MkdirAll(f.cfg.WorkDir, 0755); err != nil {
		return nil, &plugindomain.FetchError{Source: rawURL, Err: err}
	}
	f.removeStaleDownloads()

	downloadPath := filepath.Join(f.cfg.WorkDir, TempDownloadBaseName+".zip")
	if tarGz {
		downloadPath = filepath.Join(f.cfg.WorkDir, TempDownloadBaseName+".tar.gz")
	}
	removeDownload := func() error {
		if err := os.Remove(downloadPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	file, err := os.Create(downloadPath)
	if err != nil {
		return nil, &plugindomain.FetchError{Source: rawURL, Err: err}
	}

	f.log.WithField("url", rawURL).Debug("Downloading plugin")
	err = f.downloader.Download(ctx, rawURL, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		removeDownload()
		return nil, &plugindomain.FetchError{Source: rawURL, Err: err}
	}

	fetched, err := f.extract(downloadPath, tarGz, nameHint, provenance)
	if err != nil {
		removeDownload()
		return nil, err
	}
	// the download is only needed until extraction finishes
	if err := removeDownload(); err != nil {
		f.log.WithError(err).Warn("Failed to remove temporary download")
	}
	return fetched, nil
}

func (f *SourceFetcher) extract(archivePath string, tarGz bool, nameHint string, provenance plugindomain.Provenance) (*plugins.FetchedSource, error) {
	extractDir := filepath.Join(f.cfg.WorkDir, TempExtractDirName)

	// leftovers from a failed run would mix into this extraction
	if err := os.RemoveAll(extractDir); err != nil {
		return nil, &plugindomain.FetchError{Source: archivePath, Err: fmt.Errorf("failed to clear stale extraction directory: %w", err)}
	}
	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return nil, &plugindomain.FetchError{Source: archivePath, Err: err}
	}
	cleanup := func() error { return os.RemoveAll(extractDir) }

	if err := ExtractArchive(archivePath, extractDir, tarGz); err != nil {
		cleanup()
		return nil, &plugindomain.FetchError{Source: archivePath, Err: err}
	}

	root := FindPluginRoot(extractDir)
	f.log.WithFields(logrus.Fields{"archive": archivePath, "root": root}).Debug("Extracted plugin archive")

	fetched := plugins.NewFetchedSource(root, provenance, cleanup)
	// hosted archives wrap the repository in a generated <name>-<branch>
	// directory that must not become the plugin name
	if root == extractDir || (provenance.Type == plugindomain.SourceTypeGitHub && isSoleEntry(extractDir, root)) {
		fetched.NameHint = nameHint
	}
	return fetched, nil
}

// isSoleEntry reports whether path is the only entry of dir
func isSoleEntry(dir, path string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		return false
	}
	return filepath.Join(dir, entries[0].Name()) == path
}

// archiveStem strips directories and archive extensions from a file name
func archiveStem(p string) string {
	base := filepath.Base(p)
	lower := strings.ToLower(base)
	for _, ext := range []string{".tar.gz", ".tgz", ".zip", ".skill"} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

func (f *SourceFetcher) removeStaleDownloads() {
	for _, ext := range []string{".zip", ".tar.gz"} {
		p := filepath.Join(f.cfg.WorkDir, TempDownloadBaseName+ext)
		if err := os.Remove(p); err == nil {
			f.log.WithField("path", p).Debug("Removed stale download")
		}
	}
}
