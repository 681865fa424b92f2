package target

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func libraryTarget(name string) Target {
	return Target{Name: name, Kind: Library, SourcePath: "/src/" + name}
}

func TestCacheTargetKey_OrderIndependent(t *testing.T) {
	ct1 := CacheTarget{
		Target: libraryTarget("Networking"),
		Options: BuildOptions{
			Platforms:     []string{"ios", "ios-simulator"},
			Configuration: "release",
			ExtraFlags:    []string{"-a", "-b"},
		},
	}

	ct2 := CacheTarget{
		Target: libraryTarget("Networking"),
		Options: BuildOptions{
			Platforms:     []string{"ios-simulator", "ios"}, // Reversed
			Configuration: "release",
			ExtraFlags:    []string{"-b", "-a"}, // Reversed
		},
	}

	assert.Equal(t, ct1.Key(), ct2.Key(), "Slice order should not change the key")
}

func TestCacheTargetKey_Sensitivity(t *testing.T) {
	base := CacheTarget{
		Target: libraryTarget("Networking"),
		Options: BuildOptions{
			Platforms:     []string{"ios"},
			Configuration: "release",
		},
	}

	differentConfig := base
	differentConfig.Options.Configuration = "debug"
	assert.NotEqual(t, base.Key(), differentConfig.Key())

	differentKind := base
	differentKind.Target.Kind = Binary
	differentKind.Target.Binary = &BinaryRef{Path: "/x", Checksum: "abc"}
	assert.NotEqual(t, base.Key(), differentKind.Key())
}

func TestSet_Deduplicates(t *testing.T) {
	set := NewSet()

	ct := CacheTarget{
		Target:  libraryTarget("Networking"),
		Options: BuildOptions{Platforms: []string{"ios"}, Configuration: "release"},
	}

	same := CacheTarget{
		Target:  libraryTarget("Networking"),
		Options: BuildOptions{Platforms: []string{"ios"}, Configuration: "release"},
	}

	other := CacheTarget{
		Target:  libraryTarget("Analytics"),
		Options: BuildOptions{Platforms: []string{"ios"}, Configuration: "release"},
	}

	set.Add(ct)
	set.Add(same)
	set.Add(other)

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(ct))
	assert.True(t, set.Contains(other))
}

func TestSet_EveryMemberExactlyOnce(t *testing.T) {
	set := NewSet()

	names := []string{"A", "B", "C", "D", "E"}
	for _, name := range names {
		set.Add(CacheTarget{Target: libraryTarget(name)})
	}

	seen := make(map[string]int)
	for _, ct := range set.Items() {
		seen[ct.Target.Name]++
	}

	for _, name := range names {
		assert.Equal(t, 1, seen[name], "each member should appear exactly once")
	}
}

func TestManifestResolver_FiltersUnknownKinds(t *testing.T) {
	specs := []Spec{
		{Name: "Networking", Kind: "library", Path: "/src/networking"},
		{Name: "Plugin", Kind: "plugin", Path: "/src/plugin"},
		{Name: "Analytics", Kind: "Library", Path: "/src/analytics"},
	}

	targets, err := NewManifestResolver(specs).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "Networking", targets[0].Name)
	assert.Equal(t, "Analytics", targets[1].Name)
}

func TestManifestResolver_ChecksumsBinaryArtifacts(t *testing.T) {
	tempDir := t.TempDir()
	artifactDir := filepath.Join(tempDir, "Prebuilt.framework")
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "binary"), []byte("prebuilt"), 0o644))

	specs := []Spec{{Name: "Prebuilt", Kind: "binary", Path: artifactDir}}

	targets, err := NewManifestResolver(specs).Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.NotNil(t, targets[0].Binary)
	assert.NotEmpty(t, targets[0].Binary.Checksum)

	// Declared checksum wins over a computed one
	specs[0].Checksum = "deadbeef"
	targets, err = NewManifestResolver(specs).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", targets[0].Binary.Checksum)
}

func TestChecksum_StableAndContentSensitive(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "a.txt"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "b.txt"), []byte("bbb"), 0o644))

	sum1, err := Checksum(tempDir)
	require.NoError(t, err)

	sum2, err := Checksum(tempDir)
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2, "Checksum should be consistent")

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "b.txt"), []byte("changed"), 0o644))

	sum3, err := Checksum(tempDir)
	require.NoError(t, err)
	assert.NotEqual(t, sum1, sum3, "Different content should produce different checksum")
}
