// Package cache decides whether previously produced framework bundles can be
// reused instead of rebuilt.
//
// Every cache target gets a fingerprint derived from its identity and
// effective build options. The fingerprint is both the validity token
// recorded next to a produced bundle and the key under which the bundle is
// stored in a storage backend. A bundle is reusable iff the fingerprint that
// produced it equals the one computed for the current run.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/framewell/fwb/internal/target"
)

// fingerprintSchema salts the hash so the fingerprint space can be rotated
// when the canonical record changes shape.
const fingerprintSchema = 1

// fingerprintRecord is the canonical form that gets hashed. Slice fields are
// sorted before encoding, so option declaration order never changes the
// fingerprint.
type fingerprintRecord struct {
	Schema            int      `json:"schema"`
	Name              string   `json:"name"`
	Kind              string   `json:"kind"`
	Checksum          string   `json:"checksum,omitempty"`
	Platforms         []string `json:"platforms"`
	Configuration     string   `json:"configuration"`
	EmbedDebugSymbols bool     `json:"embed_debug_symbols"`
	LibraryEvolution  bool     `json:"library_evolution"`
	ExtraFlags        []string `json:"extra_flags"`
}

// Fingerprint computes the deterministic identity of a cache target's
// expected output.
func Fingerprint(ct target.CacheTarget) (string, error) {
	record := fingerprintRecord{
		Schema:            fingerprintSchema,
		Name:              ct.Target.Name,
		Kind:              string(ct.Target.Kind),
		Platforms:         sortedCopy(ct.Options.Platforms),
		Configuration:     ct.Options.Configuration,
		EmbedDebugSymbols: ct.Options.EmbedDebugSymbols,
		LibraryEvolution:  ct.Options.LibraryEvolution,
		ExtraFlags:        sortedCopy(ct.Options.ExtraFlags),
	}

	if ct.Target.Kind == target.Binary && ct.Target.Binary != nil {
		record.Checksum = ct.Target.Binary.Checksum
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode fingerprint record: %w", err)
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:]), nil
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)

	return out
}
