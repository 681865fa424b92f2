package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/framewell/fwb/internal/target"
)

// Default configuration values
const (
	DefaultCompilerPath  = "fwkc"
	DefaultOutputDir     = "Frameworks"
	DefaultWorkDir       = ".fwb-work"
	DefaultConfiguration = "release"
	DefaultBackend       = "local"
)

// CacheMode is the closed set of caching behaviors. Role flags only have
// meaning in storage mode, which keeps invalid combinations out of the
// config surface.
type CacheMode int

const (
	// CacheDisabled builds every target, touching neither version files for
	// validation nor any storage backend.
	CacheDisabled CacheMode = iota

	// CacheProject reuses bundles that validate against their local version
	// file but never talks to a storage backend.
	CacheProject

	// CacheStorage additionally fetches from and stores to a configured
	// backend, gated by the consumer/producer roles.
	CacheStorage
)

func (m CacheMode) String() string {
	switch m {
	case CacheProject:
		return "project"
	case CacheStorage:
		return "storage"
	default:
		return "disabled"
	}
}

// CacheRoles selects which directions of storage traffic are allowed in
// storage mode.
type CacheRoles struct {
	Consumer bool
	Producer bool
}

// ParseCacheMode parses a cache mode string: "disabled", "project",
// "storage" (both roles), or "storage:consumer,producer" with any non-empty
// role subset.
func ParseCacheMode(s string) (CacheMode, CacheRoles, error) {
	mode, rolePart, hasRoles := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")

	switch mode {
	case "", "disabled":
		if hasRoles {
			return CacheDisabled, CacheRoles{}, fmt.Errorf("cache mode %q does not take roles", mode)
		}

		return CacheDisabled, CacheRoles{}, nil
	case "project":
		if hasRoles {
			return CacheDisabled, CacheRoles{}, fmt.Errorf("cache mode %q does not take roles", mode)
		}

		return CacheProject, CacheRoles{}, nil
	case "storage":
		if !hasRoles {
			return CacheStorage, CacheRoles{Consumer: true, Producer: true}, nil
		}

		var roles CacheRoles
		for _, role := range strings.Split(rolePart, ",") {
			switch strings.TrimSpace(role) {
			case "consumer":
				roles.Consumer = true
			case "producer":
				roles.Producer = true
			default:
				return CacheDisabled, CacheRoles{}, fmt.Errorf("unknown cache role: %q", role)
			}
		}

		return CacheStorage, roles, nil
	default:
		return CacheDisabled, CacheRoles{}, fmt.Errorf("unknown cache mode: %q", mode)
	}
}

// OptionsSpec is the config-file shape of build options.
type OptionsSpec struct {
	Platforms         []string `mapstructure:"platforms"`
	Configuration     string   `mapstructure:"configuration"`
	EmbedDebugSymbols bool     `mapstructure:"embed_debug_symbols"`
	LibraryEvolution  bool     `mapstructure:"library_evolution"`
	ExtraFlags        []string `mapstructure:"extra_flags"`
}

func (o OptionsSpec) buildOptions() target.BuildOptions {
	configuration := o.Configuration
	if configuration == "" {
		configuration = DefaultConfiguration
	}

	return target.BuildOptions{
		Platforms:         o.Platforms,
		Configuration:     configuration,
		EmbedDebugSymbols: o.EmbedDebugSymbols,
		LibraryEvolution:  o.LibraryEvolution,
		ExtraFlags:        o.ExtraFlags,
	}
}

// Holds the configuration options for fwb
type Config struct {
	// Path to the framework compiler binary
	CompilerPath string

	// Directory produced bundles are placed in
	OutputDir string

	// Scratch directory removed at the start of every run
	WorkDir string

	// Overwrite existing bundles when building
	Overwrite bool

	// Caching behavior
	CacheMode  CacheMode
	CacheRoles CacheRoles

	// Storage backend selection ("local" or "s3") and its settings
	StorageBackend string
	LocalCacheDir  string
	S3Bucket       string
	S3Prefix       string
	S3Region       string

	// Base build options applied to every target
	BaseOptions target.BuildOptions

	// Per-target option overrides; an override replaces the base wholly
	Overrides map[string]target.BuildOptions

	// Target manifest
	Targets []target.Spec

	// Enable verbose output
	Verbose bool
}

// Load builds a Config from the current viper state.
func Load() (*Config, error) {
	mode, roles, err := ParseCacheMode(viper.GetString("cache"))
	if err != nil {
		return nil, err
	}

	var base OptionsSpec
	if err := viper.UnmarshalKey("options", &base); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	var overrideSpecs map[string]OptionsSpec
	if err := viper.UnmarshalKey("overrides", &overrideSpecs); err != nil {
		return nil, fmt.Errorf("invalid overrides: %w", err)
	}

	overrides := make(map[string]target.BuildOptions, len(overrideSpecs))
	for name, spec := range overrideSpecs {
		overrides[name] = spec.buildOptions()
	}

	var targets []target.Spec
	if err := viper.UnmarshalKey("targets", &targets); err != nil {
		return nil, fmt.Errorf("invalid targets: %w", err)
	}

	cfg := &Config{
		CompilerPath:   viper.GetString("compiler_path"),
		OutputDir:      viper.GetString("output_dir"),
		WorkDir:        viper.GetString("work_dir"),
		Overwrite:      viper.GetBool("overwrite"),
		CacheMode:      mode,
		CacheRoles:     roles,
		StorageBackend: viper.GetString("storage.backend"),
		LocalCacheDir:  viper.GetString("storage.local_dir"),
		S3Bucket:       viper.GetString("storage.s3_bucket"),
		S3Prefix:       viper.GetString("storage.s3_prefix"),
		S3Region:       viper.GetString("storage.s3_region"),
		BaseOptions:    base.buildOptions(),
		Overrides:      overrides,
		Targets:        targets,
		Verbose:        viper.GetBool("verbose"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate applies defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.CompilerPath == "" {
		c.CompilerPath = DefaultCompilerPath
	}

	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}

	if c.WorkDir == "" {
		c.WorkDir = DefaultWorkDir
	}

	for _, field := range []*string{&c.OutputDir, &c.WorkDir} {
		abs, err := filepath.Abs(*field)
		if err != nil {
			return fmt.Errorf("invalid directory path %q: %w", *field, err)
		}

		*field = abs
	}

	if c.StorageBackend == "" {
		c.StorageBackend = DefaultBackend
	}

	switch c.StorageBackend {
	case "local":
		// LocalCacheDir empty means the backend's default
	case "s3":
		if c.CacheMode == CacheStorage && c.S3Bucket == "" {
			return fmt.Errorf("s3 storage backend requires storage.s3_bucket")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.StorageBackend)
	}

	return nil
}

// OptionsFor returns the effective build options for the named target.
func (c *Config) OptionsFor(name string) target.BuildOptions {
	if opts, ok := c.Overrides[name]; ok {
		return opts
	}

	return c.BaseOptions
}

// ConsumeEnabled reports whether the restore phase runs at all.
func (c *Config) ConsumeEnabled() bool {
	return c.CacheMode == CacheProject || (c.CacheMode == CacheStorage && c.CacheRoles.Consumer)
}

// FetchEnabled reports whether restore may fetch from the storage backend.
func (c *Config) FetchEnabled() bool {
	return c.CacheMode == CacheStorage && c.CacheRoles.Consumer
}

// ProduceEnabled reports whether built bundles are written back to storage.
func (c *Config) ProduceEnabled() bool {
	return c.CacheMode == CacheStorage && c.CacheRoles.Producer
}
