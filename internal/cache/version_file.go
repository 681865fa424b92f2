package cache

import (
	"encoding/json"
	"fmt"
	"os"
)

// versionFileSchema is bumped when the version file layout changes; files
// with a different schema never validate.
const versionFileSchema = 1

// VersionFile is the on-disk witness stored next to a produced bundle. It
// records the fingerprint that produced the bundle so validity can be
// checked without re-hashing the bundle contents.
type VersionFile struct {
	SchemaVersion int    `json:"schema_version"`
	TargetName    string `json:"target_name"`
	Fingerprint   string `json:"fingerprint"`
}

// WriteVersionFile writes or overwrites the witness at path.
func WriteVersionFile(path, targetName, fingerprint string) error {
	vf := VersionFile{
		SchemaVersion: versionFileSchema,
		TargetName:    targetName,
		Fingerprint:   fingerprint,
	}

	data, err := json.MarshalIndent(vf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode version file: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write version file: %w", err)
	}

	return nil
}

// ReadVersionFile reads the witness at path. A missing file, unreadable
// content, or a schema mismatch all return an error.
func ReadVersionFile(path string) (*VersionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var vf VersionFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("failed to decode version file: %w", err)
	}

	if vf.SchemaVersion != versionFileSchema {
		return nil, fmt.Errorf("unsupported version file schema: %d", vf.SchemaVersion)
	}

	return &vf, nil
}
