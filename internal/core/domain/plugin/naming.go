package plugindomain

import (
	"regexp"
	"strings"
)

var (
	invalidNameChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	validName        = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// SanitizeName derives the canonical install identity from a manifest name.
// The result is lower case, every run of characters outside [a-z0-9_-] is
// replaced by a single "-", and leading/trailing separators are trimmed.
// It is used both as the registry key and as the managed directory name.
func SanitizeName(name string) string {
	s := invalidNameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	// "_" prefixed directories are reserved for the registry and temp files
	s = strings.TrimRight(strings.TrimLeft(s, "-_"), "-")
	if s == "" {
		return DefaultSynthesizedName
	}
	return s
}

// IsValidName reports whether name is already in canonical form
func IsValidName(name string) bool {
	return validName.MatchString(name) && !strings.HasPrefix(name, ReservedDirPrefix)
}
