// Package target defines the build targets fwb produces bundles for and the
// cacheable unit of work derived from them.
package target

import (
	"sort"
	"strings"
)

// Kind classifies how a target's bundle is produced.
type Kind string

const (
	// Library targets are compiled from source by the toolchain.
	Library Kind = "library"

	// Binary targets reference an already-built artifact that only needs
	// extracting into the output directory.
	Binary Kind = "binary"
)

// Valid reports whether the kind is one fwb can build.
func (k Kind) Valid() bool {
	return k == Library || k == Binary
}

// BinaryRef describes the prebuilt artifact a binary target points at.
type BinaryRef struct {
	// Path to the prebuilt bundle on disk
	Path string

	// Checksum of the artifact contents. Feeds the fingerprint so a swapped
	// artifact invalidates cached output.
	Checksum string
}

// Target is one resolved build product. Immutable once resolved.
type Target struct {
	Name string
	Kind Kind

	// SourcePath is the source directory for library targets
	SourcePath string

	// Binary is set for binary targets only
	Binary *BinaryRef
}

// BuildOptions describes the configuration that affects compiled output.
// A base option set applies to all targets; per-target overrides replace it
// wholly.
type BuildOptions struct {
	Platforms         []string
	Configuration     string
	EmbedDebugSymbols bool
	LibraryEvolution  bool
	ExtraFlags        []string
}

// CacheTarget pairs a target with its effective build options. It is the
// unit of cacheable work.
type CacheTarget struct {
	Target  Target
	Options BuildOptions
}

// Key returns a stable identity for the cache target. Slice-valued option
// fields are sorted first, so declaration order never changes the key.
func (ct CacheTarget) Key() string {
	platforms := sortedCopy(ct.Options.Platforms)
	flags := sortedCopy(ct.Options.ExtraFlags)

	checksum := ""
	if ct.Target.Kind == Binary && ct.Target.Binary != nil {
		checksum = ct.Target.Binary.Checksum
	}

	parts := []string{
		ct.Target.Name,
		string(ct.Target.Kind),
		checksum,
		strings.Join(platforms, ","),
		ct.Options.Configuration,
		boolKey(ct.Options.EmbedDebugSymbols),
		boolKey(ct.Options.LibraryEvolution),
		strings.Join(flags, ","),
	}

	return strings.Join(parts, "|")
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)

	return out
}

func boolKey(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
