package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framewell/fwb/internal/cache"
	"github.com/framewell/fwb/internal/compiler"
	"github.com/framewell/fwb/internal/config"
	"github.com/framewell/fwb/internal/producer"
	"github.com/framewell/fwb/internal/target"
)

var buildCmd = &cobra.Command{
	Use:          "build",
	Short:        "Build framework bundles",
	Long:         `Build every target in the manifest, restoring from the cache where fingerprints match and compiling or extracting the rest.`,
	RunE:         runBuild,
	SilenceUsage: true,
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "Directory to place bundles in")
	buildCmd.Flags().String("cache", "", "Cache mode: disabled, project, or storage[:consumer,producer]")
	buildCmd.Flags().Bool("overwrite", false, "Overwrite existing bundles")
	buildCmd.Flags().String("compiler", "", "Path to the framework compiler")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return &configError{err: err}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return &configError{err: err}
	}
	if closeStorage != nil {
		defer closeStorage()
	}

	system := cache.NewSystem(cfg.OutputDir, storage, cfg.FetchEnabled(), cfg.ProduceEnabled())

	p := producer.New(
		cfg,
		target.NewManifestResolver(cfg.Targets),
		compiler.NewToolchain(cfg.CompilerPath),
		compiler.NewCopyExtractor(),
		system,
	)

	return p.Run(ctx)
}

// openStorage builds the configured storage backend. Only storage mode gets
// one; project and disabled modes never touch a backend.
func openStorage(ctx context.Context, cfg *config.Config) (cache.Storage, func() error, error) {
	if cfg.CacheMode != config.CacheStorage {
		return nil, nil, nil
	}

	switch cfg.StorageBackend {
	case "local":
		local, err := cache.NewLocalStorage(cfg.LocalCacheDir)
		if err != nil {
			return nil, nil, err
		}

		return local, local.Close, nil
	case "s3":
		remote, err := cache.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
		if err != nil {
			return nil, nil, err
		}

		return remote, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %q", cfg.StorageBackend)
	}
}
