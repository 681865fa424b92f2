package cache

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackBundle_RoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	srcDir := filepath.Join(tempDir, "src")
	writeBundleDir(t, srcDir)

	var buf bytes.Buffer
	require.NoError(t, packBundle(srcDir, &buf))

	destDir := filepath.Join(tempDir, "dest")
	require.NoError(t, unpackBundle(&buf, destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "Modules", "module.modulemap"))
	require.NoError(t, err)
	assert.Equal(t, "module X {}", string(data))

	info, err := os.Stat(filepath.Join(destDir, "binary"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "file modes survive the round trip")
}

func TestUnpackBundle_RejectsPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	content := []byte("escape")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(content)),
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	err = unpackBundle(&buf, t.TempDir())
	assert.Error(t, err)
}
