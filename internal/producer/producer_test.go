package producer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewell/fwb/internal/cache"
	"github.com/framewell/fwb/internal/config"
	"github.com/framewell/fwb/internal/target"
)

type fakeResolver struct {
	targets []target.Target
	err     error
}

func (r *fakeResolver) Resolve(ctx context.Context) ([]target.Target, error) {
	return r.targets, r.err
}

type fakeCompiler struct {
	compiled []string
	failFor  map[string]error
}

func (c *fakeCompiler) Compile(ctx context.Context, t target.Target, opts target.BuildOptions, outputDir string, overwrite bool) error {
	if err := c.failFor[t.Name]; err != nil {
		return err
	}

	c.compiled = append(c.compiled, t.Name)

	bundleDir := filepath.Join(outputDir, t.Name+".framework")
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(bundleDir, "binary"), []byte("compiled "+t.Name), 0o644)
}

type fakeExtractor struct {
	extracted []string
}

func (e *fakeExtractor) Extract(ctx context.Context, t target.Target, outputDir string, overwrite bool) error {
	e.extracted = append(e.extracted, t.Name)

	bundleDir := filepath.Join(outputDir, t.Name+".framework")
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(bundleDir, "binary"), []byte("extracted "+t.Name), 0o644)
}

type memoryStorage struct {
	mu         sync.Mutex
	blobs      map[string]bool
	fetchErr   error
	fetchCalls int
	stored     []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{blobs: make(map[string]bool)}
}

func (s *memoryStorage) Store(ctx context.Context, fingerprint, bundleDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[fingerprint] = true
	s.stored = append(s.stored, fingerprint)

	return nil
}

func (s *memoryStorage) Fetch(ctx context.Context, fingerprint, destDir string) (bool, error) {
	s.mu.Lock()
	s.fetchCalls++
	found := s.blobs[fingerprint]
	err := s.fetchErr
	s.mu.Unlock()

	if err != nil {
		return false, err
	}

	if !found {
		return false, nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return false, err
	}

	return true, os.WriteFile(filepath.Join(destDir, "binary"), []byte("restored"), 0o644)
}

func testConfig(t *testing.T, mode config.CacheMode, roles config.CacheRoles) *config.Config {
	t.Helper()
	tempDir := t.TempDir()

	return &config.Config{
		OutputDir:  filepath.Join(tempDir, "Frameworks"),
		WorkDir:    filepath.Join(tempDir, "work"),
		CacheMode:  mode,
		CacheRoles: roles,
		BaseOptions: target.BuildOptions{
			Platforms:     []string{"ios"},
			Configuration: "release",
		},
	}
}

func libraryTarget(name string) target.Target {
	return target.Target{Name: name, Kind: target.Library, SourcePath: "/src/" + name}
}

func binaryTarget(name string) target.Target {
	return target.Target{
		Name:   name,
		Kind:   target.Binary,
		Binary: &target.BinaryRef{Path: "/artifacts/" + name, Checksum: "c-" + name},
	}
}

func newProducer(cfg *config.Config, resolver target.Resolver, storage cache.Storage) (*Producer, *fakeCompiler, *fakeExtractor, *cache.System) {
	fetch := cfg.FetchEnabled() && storage != nil
	produce := cfg.ProduceEnabled() && storage != nil
	system := cache.NewSystem(cfg.OutputDir, storage, fetch, produce)

	comp := &fakeCompiler{failFor: make(map[string]error)}
	extr := &fakeExtractor{}

	return New(cfg, resolver, comp, extr, system), comp, extr, system
}

func TestRun_CacheDisabledBuildsEverything(t *testing.T) {
	cfg := testConfig(t, config.CacheDisabled, config.CacheRoles{})
	storage := newMemoryStorage()
	resolver := &fakeResolver{targets: []target.Target{libraryTarget("A"), binaryTarget("B")}}

	p, comp, extr, _ := newProducer(cfg, resolver, storage)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"A"}, comp.compiled)
	assert.Equal(t, []string{"B"}, extr.extracted)
	assert.Zero(t, storage.fetchCalls, "disabled cache never attempts restore")
	assert.Empty(t, storage.stored, "disabled cache never attempts writeback")
}

func TestRun_EmptyResolutionIsNoop(t *testing.T) {
	cfg := testConfig(t, config.CacheProject, config.CacheRoles{})
	p, comp, extr, _ := newProducer(cfg, &fakeResolver{}, nil)

	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, comp.compiled)
	assert.Empty(t, extr.extracted)
}

func TestRun_WarmRunRestoresEverything(t *testing.T) {
	cfg := testConfig(t, config.CacheStorage, config.CacheRoles{Consumer: true, Producer: true})
	storage := newMemoryStorage()
	resolver := &fakeResolver{targets: []target.Target{libraryTarget("A"), libraryTarget("B")}}

	p, comp, _, _ := newProducer(cfg, resolver, storage)

	// Cold run builds and writes back both targets
	require.NoError(t, p.Run(context.Background()))
	require.Len(t, comp.compiled, 2)
	require.Len(t, storage.stored, 2)

	// Warm run restores 100%, builds 0
	p2, comp2, _, _ := newProducer(cfg, resolver, storage)
	require.NoError(t, p2.Run(context.Background()))
	assert.Empty(t, comp2.compiled)

	// Fresh checkout: local bundles gone, restore comes from storage
	require.NoError(t, os.RemoveAll(cfg.OutputDir))

	p3, comp3, _, _ := newProducer(cfg, resolver, storage)
	require.NoError(t, p3.Run(context.Background()))
	assert.Empty(t, comp3.compiled)

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "A.framework", "binary"))
	require.NoError(t, err)
	assert.Equal(t, "restored", string(data))
}

func TestRun_FetchFailureFallsBackToBuild(t *testing.T) {
	cfg := testConfig(t, config.CacheStorage, config.CacheRoles{Consumer: true})
	storage := newMemoryStorage()
	storage.fetchErr = errors.New("storage unavailable")
	resolver := &fakeResolver{targets: []target.Target{libraryTarget("A")}}

	p, comp, _, _ := newProducer(cfg, resolver, storage)

	require.NoError(t, p.Run(context.Background()), "storage failure must not fail the run")
	assert.Equal(t, []string{"A"}, comp.compiled)
}

func TestRun_WritebackOnlyBuiltTargets(t *testing.T) {
	cfg := testConfig(t, config.CacheStorage, config.CacheRoles{Consumer: true, Producer: true})
	storage := newMemoryStorage()
	resolver := &fakeResolver{targets: []target.Target{libraryTarget("Cached"), libraryTarget("Fresh")}}

	p, comp, _, system := newProducer(cfg, resolver, storage)

	// Cached already has a valid local bundle
	cached := target.CacheTarget{Target: libraryTarget("Cached"), Options: cfg.BaseOptions}
	require.NoError(t, os.MkdirAll(system.BundlePath("Cached"), 0o755))
	require.NoError(t, system.Stamp(cached))

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"Fresh"}, comp.compiled)

	freshFP, err := cache.Fingerprint(target.CacheTarget{Target: libraryTarget("Fresh"), Options: cfg.BaseOptions})
	require.NoError(t, err)
	assert.Equal(t, []string{freshFP}, storage.stored, "restored targets are never written back")
}

func TestRun_ResolutionFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, config.CacheProject, config.CacheRoles{})
	resolver := &fakeResolver{err: errors.New("graph cycle")}

	p, _, _, _ := newProducer(cfg, resolver, nil)

	err := p.Run(context.Background())
	var resolveErr *ResolutionError
	require.ErrorAs(t, err, &resolveErr)
}

func TestRun_BuildFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, config.CacheProject, config.CacheRoles{})
	resolver := &fakeResolver{targets: []target.Target{libraryTarget("A")}}

	p, comp, _, _ := newProducer(cfg, resolver, nil)
	comp.failFor["A"] = errors.New("linker error")

	err := p.Run(context.Background())

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "A", buildErr.Target)
}

func TestRun_UnexpectedKindIsInvariantViolation(t *testing.T) {
	cfg := testConfig(t, config.CacheDisabled, config.CacheRoles{})
	resolver := &fakeResolver{targets: []target.Target{{Name: "Weird", Kind: target.Kind("plugin")}}}

	p, _, _, _ := newProducer(cfg, resolver, nil)

	err := p.Run(context.Background())

	var invariantErr *InvariantError
	require.ErrorAs(t, err, &invariantErr)

	var buildErr *BuildError
	assert.False(t, errors.As(err, &buildErr), "programmer defects are not build errors")
}

func TestRun_StampedBundlesValidateNextRun(t *testing.T) {
	cfg := testConfig(t, config.CacheProject, config.CacheRoles{})
	resolver := &fakeResolver{targets: []target.Target{libraryTarget("A")}}

	p, _, _, system := newProducer(cfg, resolver, nil)
	require.NoError(t, p.Run(context.Background()))

	ct := target.CacheTarget{Target: libraryTarget("A"), Options: cfg.BaseOptions}
	assert.True(t, system.Valid(ct), "built targets get stamped")

	changed := ct
	changed.Options.Configuration = "debug"
	assert.False(t, system.Valid(changed))
}
