package target

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Spec is one manifest entry describing a target to resolve.
type Spec struct {
	Name     string `mapstructure:"name"`
	Kind     string `mapstructure:"kind"`
	Path     string `mapstructure:"path"`
	Checksum string `mapstructure:"checksum"`
}

// Resolver turns a build description into concrete targets.
type Resolver interface {
	Resolve(ctx context.Context) ([]Target, error)
}

// ManifestResolver resolves targets from a static manifest. Entries with
// kinds other than library/binary are dropped; binary entries without a
// declared checksum get one computed from the artifact on disk.
type ManifestResolver struct {
	specs []Spec
}

// NewManifestResolver creates a resolver over the given manifest entries.
func NewManifestResolver(specs []Spec) *ManifestResolver {
	return &ManifestResolver{specs: specs}
}

// Resolve returns the library/binary targets described by the manifest.
func (r *ManifestResolver) Resolve(ctx context.Context) ([]Target, error) {
	var targets []Target

	for _, spec := range r.specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if spec.Name == "" {
			return nil, fmt.Errorf("manifest entry without a name")
		}

		kind := Kind(strings.ToLower(spec.Kind))
		if !kind.Valid() {
			continue
		}

		if spec.Path == "" {
			return nil, fmt.Errorf("target %s has no path", spec.Name)
		}

		path, err := filepath.Abs(spec.Path)
		if err != nil {
			return nil, fmt.Errorf("target %s: invalid path: %w", spec.Name, err)
		}

		t := Target{Name: spec.Name, Kind: kind}

		switch kind {
		case Library:
			t.SourcePath = path
		case Binary:
			checksum := spec.Checksum
			if checksum == "" {
				checksum, err = Checksum(path)
				if err != nil {
					return nil, fmt.Errorf("target %s: failed to checksum artifact: %w", spec.Name, err)
				}
			}

			t.Binary = &BinaryRef{Path: path, Checksum: checksum}
		}

		targets = append(targets, t)
	}

	return targets, nil
}

// Checksum hashes a file or directory tree. Directory trees are hashed over
// sorted relative paths plus contents so the result is layout-stable.
func Checksum(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		return checksumFile(path)
	}

	var files []string
	err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !fi.IsDir() {
			files = append(files, p)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Strings(files)

	h := sha256.New()
	for _, file := range files {
		rel, err := filepath.Rel(path, file)
		if err != nil {
			return "", err
		}

		h.Write([]byte(filepath.ToSlash(rel)))

		f, err := os.Open(file)
		if err != nil {
			return "", err
		}

		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
