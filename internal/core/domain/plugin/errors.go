package plugindomain

import (
	"errors"
	"fmt"
)

// Plugin manager errors.
var (
	// ErrNotFound is returned when an operation targets a plugin that is not installed.
	ErrNotFound = errors.New("plugin not found")

	// ErrManifestAbsent is returned when a directory carries no primary manifest.
	ErrManifestAbsent = errors.New("manifest not found")

	// ErrLocalUpdate is returned when update is asked for a plugin installed from a local path.
	ErrLocalUpdate = errors.New("cannot auto-update local plugin")

	// ErrUnsupportedSource is returned when a source string matches no known source kind.
	ErrUnsupportedSource = errors.New("unsupported plugin source")
)

// FetchError reports a network or archive failure. It aborts an install.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ManifestError reports a missing or malformed descriptor. It is recovered
// by manifest synthesis and never surfaced to the user.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// NotFoundError reports an operation target absent from the registry or
// the managed directory.
type NotFoundError struct {
	Name  string
	Where string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plugin %q not found in %s", e.Name, e.Where)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RegistryCorruptionError reports an unreadable registry file. Load treats
// it as an empty registry.
type RegistryCorruptionError struct {
	Path string
	Err  error
}

func (e *RegistryCorruptionError) Error() string {
	return fmt.Sprintf("registry %s is unreadable: %v", e.Path, e.Err)
}

func (e *RegistryCorruptionError) Unwrap() error { return e.Err }
