package compiler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/framewell/fwb/internal/target"
)

// CopyExtractor places a binary target's prebuilt bundle into the output
// directory by copying its tree.
type CopyExtractor struct{}

// NewCopyExtractor creates an extractor for prebuilt bundles.
func NewCopyExtractor() *CopyExtractor {
	return &CopyExtractor{}
}

// Extract copies the referenced artifact to <outputDir>/<name>.framework.
func (e *CopyExtractor) Extract(ctx context.Context, t target.Target, outputDir string, overwrite bool) error {
	if t.Binary == nil {
		return fmt.Errorf("target %s has no binary artifact", t.Name)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	destDir := filepath.Join(outputDir, t.Name+".framework")

	if _, err := os.Stat(destDir); err == nil {
		if !overwrite {
			return fmt.Errorf("bundle already exists: %s", destDir)
		}

		if err := os.RemoveAll(destDir); err != nil {
			return fmt.Errorf("failed to remove existing bundle: %w", err)
		}
	}

	if err := copyTree(t.Binary.Path, destDir); err != nil {
		return fmt.Errorf("failed to extract %s: %w", t.Name, err)
	}

	return nil
}

// copyTree copies a directory tree from src to dst, preserving file modes.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return copyFile(src, dst)
	}

	return filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		dest := filepath.Join(dst, rel)

		if fi.IsDir() {
			return os.MkdirAll(dest, fi.Mode())
		}

		return copyFile(path, dest)
	})
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	// Create parent directory if needed
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	// Preserve file permissions
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.Chmod(dst, srcInfo.Mode())
}
