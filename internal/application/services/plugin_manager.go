package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	plugindomain "miniwiki.dev/cli/internal/core/domain/plugin"
	"miniwiki.dev/cli/internal/core/ports/plugins"
)

// installStage names one step of the install state machine
type installStage string

const (
	stageFetching         installStage = "fetching"
	stageResolving        installStage = "resolving"
	stageNamingAndCopying installStage = "naming_and_copying"
	stageRegistryUpdate   installStage = "registry_update"
	stageCleanup          installStage = "cleanup"
	stageDone             installStage = "done"
	stageFailed           installStage = "failed"
)

// ManagerConfig tunes PluginManager behavior
type ManagerConfig struct {
	// PreserveEnabledOnReinstall carries a previous entry's enabled flag
	// over a reinstall instead of resetting it to true
	PreserveEnabledOnReinstall bool

	// Now stamps installed_at; defaults to time.Now
	Now func() time.Time
}

// PluginManager orchestrates install, update, enable, disable, uninstall
// and list over the managed plugins directory of one project. Every call
// loads the registry, mutates it and saves it; nothing is cached between calls.
type PluginManager struct {
	fetcher   plugins.SourceFetcher
	resolver  plugins.ManifestResolver
	installer plugins.PluginInstaller
	registry  plugins.RegistryStore
	cfg       ManagerConfig
	log       *logrus.Logger
}

// NewPluginManager creates a new plugin manager
func NewPluginManager(
	fetcher plugins.SourceFetcher,
	resolver plugins.ManifestResolver,
	installer plugins.PluginInstaller,
	registry plugins.RegistryStore,
	cfg ManagerConfig,
	log *logrus.Logger,
) *PluginManager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logrus.New()
	}
	return &PluginManager{
		fetcher:   fetcher,
		resolver:  resolver,
		installer: installer,
		registry:  registry,
		cfg:       cfg,
		log:       log,
	}
}

// installOutcome describes a completed install
type installOutcome struct {
	entry       plugindomain.RegistryEntry
	previous    *plugindomain.RegistryEntry
	synthesized bool
}

// Install fetches source, resolves its manifest, copies it into
// plugins/<name> and records it in the registry
func (m *PluginManager) Install(ctx context.Context, source string) plugindomain.Result {
	outcome, err := m.install(ctx, source)
	if err != nil {
		return plugindomain.Failed("", err, fmt.Sprintf("Failed to install %s: %v", source, err))
	}

	verb := "Installed"
	if outcome.previous != nil {
		verb = "Reinstalled"
	}
	msg := fmt.Sprintf("%s %s v%s", verb, outcome.entry.Name, outcome.entry.Version)
	if outcome.synthesized {
		msg += " (manifest generated)"
	}
	return plugindomain.Succeeded(outcome.entry.Name, msg)
}

func (m *PluginManager) install(ctx context.Context, source string) (_ *installOutcome, err error) {
	log := m.log.WithField("source", source)
	stage := stageFetching
	enter := func(next installStage) {
		stage = next
		log.WithField("stage", stage).Debug("Install stage")
	}
	enter(stageFetching)

	var fetched *plugins.FetchedSource
	defer func() {
		if err == nil {
			return
		}
		if cleanupErr := fetched.Cleanup(); cleanupErr != nil {
			log.WithError(cleanupErr).Warn("Failed to remove temporary plugin files")
		}
		log.WithError(err).WithFields(logrus.Fields{"stage": stageFailed, "failed_stage": stage}).Debug("Install stage")
	}()

	spec, err := m.fetcher.Parse(source)
	if err != nil {
		return nil, err
	}
	fetched, err = m.fetcher.Fetch(ctx, spec)
	if err != nil {
		return nil, err
	}

	enter(stageResolving)
	manifest, err := m.resolver.Resolve(fetched.Dir)
	synthesized := false
	if err != nil {
		if !errors.Is(err, plugindomain.ErrManifestAbsent) {
			log.WithError(err).Warn("Ignoring invalid plugin manifest")
		}
		manifest = m.resolver.Synthesize(fetched.Dir)
		if fetched.NameHint != "" && manifest.Name == filepath.Base(fetched.Dir) {
			manifest.Name = fetched.NameHint
		}
		synthesized = true
		err = nil
	}

	enter(stageNamingAndCopying)
	name := plugindomain.SanitizeName(manifest.Name)
	target, err := m.installer.Install(fetched.Dir, name)
	if err != nil {
		return nil, fmt.Errorf("failed to copy plugin %s: %w", name, err)
	}
	if synthesized {
		if err = m.resolver.Materialize(target, manifest); err != nil {
			return nil, fmt.Errorf("failed to write manifest for %s: %w", name, err)
		}
	}

	enter(stageRegistryUpdate)
	doc := m.registry.Load(ctx)
	enabled := true
	var previous *plugindomain.RegistryEntry
	if old, ok := doc.Find(name); ok {
		prev := *old
		previous = &prev
		if m.cfg.PreserveEnabledOnReinstall {
			enabled = prev.Enabled
		}
	}
	doc.Remove(name)
	entry := plugindomain.RegistryEntry{
		Name:        name,
		Enabled:     enabled,
		Priority:    doc.NextPriority(),
		Type:        manifest.Type,
		Version:     manifest.Version,
		Source:      fetched.Provenance,
		InstalledAt: plugindomain.NewTimestamp(m.cfg.Now().UTC().Truncate(time.Second)),
	}
	doc.Upsert(entry)
	if err = m.registry.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save plugin registry: %w", err)
	}

	enter(stageCleanup)
	if cleanupErr := fetched.Cleanup(); cleanupErr != nil {
		log.WithError(cleanupErr).Warn("Failed to remove temporary plugin files")
	}

	enter(stageDone)
	log.WithFields(logrus.Fields{"plugin": name, "version": entry.Version, "priority": entry.Priority}).Debug("Plugin installed")
	return &installOutcome{entry: entry, previous: previous, synthesized: synthesized}, nil
}

// Update re-fetches a plugin from its recorded provenance. Local
// installations cannot be re-fetched and are left untouched.
func (m *PluginManager) Update(ctx context.Context, name string) plugindomain.Result {
	doc := m.registry.Load(ctx)
	entry, ok := m.findEntry(doc, name)
	if !ok {
		err := &plugindomain.NotFoundError{Name: name, Where: "registry"}
		return plugindomain.Failed(name, err, fmt.Sprintf("Plugin %s not found", name))
	}
	return m.update(ctx, *entry)
}

// UpdateAll updates every plugin that was not installed from a local source
func (m *PluginManager) UpdateAll(ctx context.Context) []plugindomain.Result {
	doc := m.registry.Load(ctx)
	entries := make([]plugindomain.RegistryEntry, 0, len(doc.Plugins))
	for _, e := range doc.Plugins {
		if e.Source.Type == plugindomain.SourceTypeLocal {
			m.log.WithField("plugin", e.Name).Debug("Skipping local plugin")
			continue
		}
		entries = append(entries, e)
	}

	results := make([]plugindomain.Result, 0, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			results = append(results, plugindomain.Failed(e.Name, ctx.Err(), fmt.Sprintf("Update of %s cancelled", e.Name)))
			continue
		}
		results = append(results, m.update(ctx, e))
	}
	return results
}

func (m *PluginManager) update(ctx context.Context, entry plugindomain.RegistryEntry) plugindomain.Result {
	source, err := entry.Source.ReinstallSource()
	if err != nil {
		if errors.Is(err, plugindomain.ErrLocalUpdate) {
			return plugindomain.Failed(entry.Name, err, fmt.Sprintf("Cannot auto-update local plugin %s", entry.Name))
		}
		return plugindomain.Failed(entry.Name, err, fmt.Sprintf("Cannot update %s: %v", entry.Name, err))
	}

	m.log.WithFields(logrus.Fields{"plugin": entry.Name, "source": source}).Info("Updating plugin")
	outcome, err := m.install(ctx, source)
	if err != nil {
		return plugindomain.Failed(entry.Name, err, fmt.Sprintf("Failed to update %s: %v", entry.Name, err))
	}
	return plugindomain.Succeeded(outcome.entry.Name, versionDelta(outcome.entry.Name, entry.Version, outcome.entry.Version))
}

// versionDelta describes the version change of an update
func versionDelta(name, from, to string) string {
	oldV, oldErr := semver.NewVersion(from)
	newV, newErr := semver.NewVersion(to)
	if oldErr != nil || newErr != nil {
		if from == to {
			return fmt.Sprintf("Reinstalled %s %s", name, to)
		}
		return fmt.Sprintf("Updated %s from %s to %s", name, from, to)
	}

	switch newV.Compare(oldV) {
	case 0:
		return fmt.Sprintf("Reinstalled %s v%s (already up to date)", name, newV)
	case -1:
		return fmt.Sprintf("Updated %s from v%s to v%s (downgrade)", name, oldV, newV)
	default:
		return fmt.Sprintf("Updated %s from v%s to v%s", name, oldV, newV)
	}
}

// SetEnabled toggles the enabled flag of a registered plugin. The registry
// is only written when the plugin exists.
func (m *PluginManager) SetEnabled(ctx context.Context, name string, enabled bool) plugindomain.Result {
	doc := m.registry.Load(ctx)
	entry, ok := m.findEntry(doc, name)
	if !ok {
		err := &plugindomain.NotFoundError{Name: name, Where: "registry"}
		return plugindomain.Failed(name, err, fmt.Sprintf("Plugin %s not found", name))
	}

	entry.Enabled = enabled
	if err := m.registry.Save(ctx, doc); err != nil {
		return plugindomain.Failed(entry.Name, err, fmt.Sprintf("Failed to save plugin registry: %v", err))
	}

	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	return plugindomain.Succeeded(entry.Name, fmt.Sprintf("%s %s", verb, entry.Name))
}

// Uninstall removes plugins/<name> and its registry entry. A missing
// directory is reported as not found even when a stale entry exists.
func (m *PluginManager) Uninstall(ctx context.Context, name string) plugindomain.Result {
	if !m.installer.Exists(name) {
		// accept the display name the same way update and enable do
		sanitized := plugindomain.SanitizeName(name)
		if sanitized == name || !m.installer.Exists(sanitized) {
			err := &plugindomain.NotFoundError{Name: name, Where: "plugins directory"}
			return plugindomain.Failed(name, err, fmt.Sprintf("Plugin %s not found", name))
		}
		name = sanitized
	}
	if err := m.installer.Uninstall(name); err != nil {
		return plugindomain.Failed(name, err, fmt.Sprintf("Failed to remove %s: %v", name, err))
	}

	doc := m.registry.Load(ctx)
	if doc.Remove(name) {
		if err := m.registry.Save(ctx, doc); err != nil {
			return plugindomain.Failed(name, err, fmt.Sprintf("Removed %s but failed to update registry: %v", name, err))
		}
	}
	return plugindomain.Succeeded(name, fmt.Sprintf("Uninstalled %s", name))
}

// List returns installed plugins in load order: ascending priority, then name.
// Plugin directories without a manifest get one generated on the way.
func (m *PluginManager) List(ctx context.Context) ([]plugindomain.InstalledPlugin, error) {
	names, err := m.installer.GetInstalled()
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	doc := m.registry.Load(ctx)
	installed := make([]plugindomain.InstalledPlugin, 0, len(names))
	for _, name := range names {
		dir := m.installer.PluginDir(name)
		manifest, synthesized, err := m.resolver.ResolveOrMaterialize(dir)
		if err != nil {
			m.log.WithError(err).WithField("path", dir).Warn("Failed to write generated manifest")
		}
		if manifest == nil {
			continue
		}

		p := plugindomain.InstalledPlugin{
			Manifest:    *manifest,
			Path:        dir,
			Enabled:     true,
			Priority:    plugindomain.UnregisteredPriority,
			Synthesized: synthesized,
		}
		if entry, ok := doc.Find(name); ok {
			p.Enabled = entry.Enabled
			p.Priority = entry.Priority
			p.Registered = true
		}
		installed = append(installed, p)
	}

	sort.SliceStable(installed, func(i, j int) bool {
		if installed[i].Priority != installed[j].Priority {
			return installed[i].Priority < installed[j].Priority
		}
		return filepath.Base(installed[i].Path) < filepath.Base(installed[j].Path)
	})
	return installed, nil
}

// HookPlan returns the enabled plugins participating in hook, in load order
func (m *PluginManager) HookPlan(ctx context.Context, hook string) ([]plugindomain.InstalledPlugin, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var plan []plugindomain.InstalledPlugin
	for _, p := range all {
		if p.Enabled && p.HasHook(hook) {
			plan = append(plan, p)
		}
	}
	return plan, nil
}

// findEntry looks a plugin up by its registry name, accepting the
// unsanitized display name too
func (m *PluginManager) findEntry(doc *plugindomain.RegistryDocument, name string) (*plugindomain.RegistryEntry, bool) {
	if entry, ok := doc.Find(name); ok {
		return entry, true
	}
	if sanitized := plugindomain.SanitizeName(name); sanitized != name {
		return doc.Find(sanitized)
	}
	return nil, false
}
