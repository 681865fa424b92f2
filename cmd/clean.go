package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/framewell/fwb/internal/config"
)

var cleanCmd = &cobra.Command{
	Use:          "clean",
	Short:        "Remove produced bundles and scratch data",
	RunE:         runClean,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return &configError{err: err}
	}

	for _, dir := range []string{cfg.OutputDir, cfg.WorkDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}

	return nil
}
