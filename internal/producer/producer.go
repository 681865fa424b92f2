// Package producer drives an end-to-end fwb run: clean, resolve, restore
// what the cache allows, build the rest, stamp version files and write fresh
// bundles back to storage.
package producer

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"

	"github.com/framewell/fwb/internal/cache"
	"github.com/framewell/fwb/internal/config"
	"github.com/framewell/fwb/internal/target"
)

// Compiler turns a library target into a framework bundle at
// <outputDir>/<name>.framework.
type Compiler interface {
	Compile(ctx context.Context, t target.Target, opts target.BuildOptions, outputDir string, overwrite bool) error
}

// Extractor places a binary target's prebuilt bundle at
// <outputDir>/<name>.framework.
type Extractor interface {
	Extract(ctx context.Context, t target.Target, outputDir string, overwrite bool) error
}

// Producer orchestrates one run.
type Producer struct {
	cfg       *config.Config
	resolver  target.Resolver
	compiler  Compiler
	extractor Extractor
	cache     *cache.System
}

// New creates a producer over the given collaborators.
func New(cfg *config.Config, resolver target.Resolver, compiler Compiler, extractor Extractor, cacheSystem *cache.System) *Producer {
	return &Producer{
		cfg:       cfg,
		resolver:  resolver,
		compiler:  compiler,
		extractor: extractor,
		cache:     cacheSystem,
	}
}

// Run executes the sequential phases: clean, resolve, partition, build,
// stamp, writeback. Cache-layer failures degrade targets to the build phase;
// build failures abort the run.
func (p *Producer) Run(ctx context.Context) error {
	if err := os.RemoveAll(p.cfg.WorkDir); err != nil {
		return fmt.Errorf("failed to clean work directory: %w", err)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	targets, err := p.resolver.Resolve(ctx)
	if err != nil {
		return &ResolutionError{Err: err}
	}

	if len(targets) == 0 {
		log.Infof("nothing to build")
		return nil
	}

	set := target.NewSet()
	for _, t := range targets {
		set.Add(target.CacheTarget{Target: t, Options: p.cfg.OptionsFor(t.Name)})
	}

	worklist := set.Items()

	if p.cfg.ConsumeEnabled() {
		restored := p.cache.RestoreAll(ctx, set)
		worklist = subtract(worklist, restored)
		log.Infof("restored %d of %d targets from cache", len(restored), set.Len())
	}

	built := make([]target.CacheTarget, 0, len(worklist))
	for _, ct := range worklist {
		if err := p.dispatch(ctx, ct); err != nil {
			return err
		}

		built = append(built, ct)
	}

	for _, ct := range built {
		if err := p.cache.Stamp(ct); err != nil {
			// Best effort: the bundle exists either way, the target just
			// won't validate as a local hit until restamped.
			log.Warnf("%v", err)
		}
	}

	p.cache.Writeback(ctx, built)

	log.Infof("built %d targets, %d bundles total", len(built), set.Len())

	return nil
}

// dispatch builds one target strictly by kind.
func (p *Producer) dispatch(ctx context.Context, ct target.CacheTarget) error {
	switch ct.Target.Kind {
	case target.Library:
		if err := p.compiler.Compile(ctx, ct.Target, ct.Options, p.cfg.OutputDir, p.cfg.Overwrite); err != nil {
			return &BuildError{Target: ct.Target.Name, Err: err}
		}
	case target.Binary:
		if err := p.extractor.Extract(ctx, ct.Target, p.cfg.OutputDir, p.cfg.Overwrite); err != nil {
			return &BuildError{Target: ct.Target.Name, Err: err}
		}
	default:
		return &InvariantError{Target: ct.Target.Name, Kind: ct.Target.Kind}
	}

	return nil
}

// subtract returns the members of all that are not in the removed slice.
func subtract(all, removed []target.CacheTarget) []target.CacheTarget {
	gone := make(map[string]struct{}, len(removed))
	for _, ct := range removed {
		gone[ct.Key()] = struct{}{}
	}

	var out []target.CacheTarget
	for _, ct := range all {
		if _, ok := gone[ct.Key()]; !ok {
			out = append(out, ct)
		}
	}

	return out
}
