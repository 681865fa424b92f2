package config

import (
	"os"
	"path/filepath"
)

// FindLocalConfig walks up from dir looking for a project config file
// (.fwb.yml/.yaml/.json/.toml). Returns an empty string when none exists.
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range []string{"yml", "yaml", "json", "toml"} {
			path := filepath.Join(dir, ".fwb."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
