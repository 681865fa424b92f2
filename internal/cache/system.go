package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/framewell/fwb/internal/target"
)

// restoreBatchSize caps how many restore attempts run at once. Batches are
// processed strictly in sequence.
const restoreBatchSize = 4

// System owns fingerprinting, validity checking, restore, version-file I/O
// and writeback for one producer run.
type System struct {
	outputDir string
	storage   Storage
	fetch     bool
	produce   bool
}

// NewSystem creates a cache system writing bundles under outputDir.
// storage may be nil when no backend is configured; fetch and produce gate
// remote restore and writeback respectively.
func NewSystem(outputDir string, storage Storage, fetch, produce bool) *System {
	return &System{
		outputDir: outputDir,
		storage:   storage,
		fetch:     fetch,
		produce:   produce,
	}
}

// BundlePath returns where the named target's bundle lives.
func (s *System) BundlePath(name string) string {
	return filepath.Join(s.outputDir, name+".framework")
}

// VersionFilePath returns where the named target's witness lives.
func (s *System) VersionFilePath(name string) string {
	return filepath.Join(s.outputDir, "."+name+".version")
}

// Valid reports whether the target's local bundle can be reused as-is. It
// never mutates the filesystem: a missing bundle, a missing or unreadable
// version file, or a fingerprint mismatch all report invalid.
func (s *System) Valid(ct target.CacheTarget) bool {
	fingerprint, err := Fingerprint(ct)
	if err != nil {
		return false
	}

	return s.validFor(ct, fingerprint)
}

func (s *System) validFor(ct target.CacheTarget, fingerprint string) bool {
	if _, err := os.Stat(s.BundlePath(ct.Target.Name)); err != nil {
		return false
	}

	vf, err := ReadVersionFile(s.VersionFilePath(ct.Target.Name))
	if err != nil {
		return false
	}

	return vf.Fingerprint == fingerprint
}

// RestoreAll tries to restore every member of set without building, at most
// restoreBatchSize attempts at a time, and returns the subset that was
// restored. Failures only ever degrade a target to "needs build".
func (s *System) RestoreAll(ctx context.Context, set *target.Set) []target.CacheTarget {
	items := set.Items()
	restored := make([]bool, len(items))

	for start := 0; start < len(items); start += restoreBatchSize {
		end := start + restoreBatchSize
		if end > len(items) {
			end = len(items)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				restored[i] = s.restore(ctx, items[i])
				return nil
			})
		}

		// Restore attempts never report errors; the batch always completes.
		_ = g.Wait()
	}

	var out []target.CacheTarget
	for i, ok := range restored {
		if ok {
			out = append(out, items[i])
		}
	}

	return out
}

// restore runs the per-target restore state machine: a valid local bundle is
// kept, a stale one is deleted and refetched from storage, and anything else
// leaves the target to the build phase.
func (s *System) restore(ctx context.Context, ct target.CacheTarget) bool {
	name := ct.Target.Name

	fingerprint, err := Fingerprint(ct)
	if err != nil {
		log.Warnf("cache: failed to fingerprint %s: %v", name, err)
		return false
	}

	if s.validFor(ct, fingerprint) {
		log.Debugf("cache: %s is up to date", name)
		return true
	}

	bundlePath := s.BundlePath(name)
	if _, err := os.Stat(bundlePath); err == nil {
		if err := os.RemoveAll(bundlePath); err != nil {
			log.Warnf("cache: failed to remove stale bundle for %s: %v", name, err)
			return false
		}
	}

	if !s.fetch || s.storage == nil {
		return false
	}

	found, err := s.storage.Fetch(ctx, fingerprint, bundlePath)
	if err != nil {
		log.Warnf("cache: failed to fetch %s from storage: %v", name, err)
		return false
	}

	if !found {
		log.Debugf("cache: no stored bundle for %s", name)
		return false
	}

	if err := s.Stamp(ct); err != nil {
		log.Warnf("cache: %v", err)
	}

	log.Infof("cache: restored %s from storage", name)

	return true
}

// Stamp writes the target's version file so the bundle validates as a local
// cache hit on the next run.
func (s *System) Stamp(ct target.CacheTarget) error {
	fingerprint, err := Fingerprint(ct)
	if err != nil {
		return fmt.Errorf("failed to stamp %s: %w", ct.Target.Name, err)
	}

	if err := WriteVersionFile(s.VersionFilePath(ct.Target.Name), ct.Target.Name, fingerprint); err != nil {
		return fmt.Errorf("failed to stamp %s: %w", ct.Target.Name, err)
	}

	return nil
}

// Writeback stores freshly built bundles in storage. Per-target failures are
// logged and never affect the other targets or the run.
func (s *System) Writeback(ctx context.Context, built []target.CacheTarget) {
	if !s.produce || s.storage == nil {
		return
	}

	for _, ct := range built {
		name := ct.Target.Name

		fingerprint, err := Fingerprint(ct)
		if err != nil {
			log.Warnf("cache: failed to fingerprint %s for writeback: %v", name, err)
			continue
		}

		if err := s.storage.Store(ctx, fingerprint, s.BundlePath(name)); err != nil {
			log.Warnf("cache: failed to store %s: %v", name, err)
			continue
		}

		log.Debugf("cache: stored %s as %s", name, fingerprint)
	}
}
