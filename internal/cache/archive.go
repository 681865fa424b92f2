package cache

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// packBundle writes dir as a gzipped tarball to w. Entry names are relative
// to dir so the archive can be unpacked at any destination.
func packBundle(dir string, w io.Writer) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}

		header.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to pack bundle: %w", err)
	}

	if err := tw.Close(); err != nil {
		return err
	}

	return gw.Close()
}

// restoreBundle unpacks a gzipped tarball from r next to destDir and renames
// it into place, so a failed unpack never leaves a partial bundle behind.
func restoreBundle(r io.Reader, destDir string) error {
	tmpDir := destDir + ".fetch"
	if err := os.RemoveAll(tmpDir); err != nil {
		return err
	}

	if err := unpackBundle(r, tmpDir); err != nil {
		os.RemoveAll(tmpDir)
		return err
	}

	if err := os.RemoveAll(destDir); err != nil {
		os.RemoveAll(tmpDir)
		return err
	}

	if err := os.Rename(tmpDir, destDir); err != nil {
		os.RemoveAll(tmpDir)
		return fmt.Errorf("failed to place bundle: %w", err)
	}

	return nil
}

// unpackBundle extracts a gzipped tarball from r into destDir.
func unpackBundle(r io.Reader, destDir string) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to read bundle archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read bundle archive: %w", err)
		}

		name := filepath.FromSlash(header.Name)
		if strings.Contains(name, "..") {
			return fmt.Errorf("bundle archive contains invalid path: %s", header.Name)
		}

		path := filepath.Join(destDir, name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}

			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return err
			}

			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}

			if err := f.Close(); err != nil {
				return err
			}
		default:
			// symlinks and specials are not part of framework bundles
			continue
		}
	}
}
